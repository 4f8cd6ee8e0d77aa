package response

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform result shape returned by every public HTTP
// operation: failures carry a message instead of data, nothing escapes
// as an unhandled fault.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func JSON(w http.ResponseWriter, status int, data any) error {
	return write(w, status, Envelope{Success: true, Data: data})
}

func Error(w http.ResponseWriter, status int, msg string) error {
	return write(w, status, Envelope{Success: false, Error: msg})
}

func write(w http.ResponseWriter, status int, env Envelope) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(env)
}
