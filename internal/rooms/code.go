package rooms

import (
	"math/rand/v2"
	"net/url"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// CodeLength is the fixed length of every room code.
	CodeLength = 6
)

// GenerateCode draws a room code uniformly from the code alphabet.
// Uniqueness is the caller's problem.
func GenerateCode() string {
	code := make([]byte, CodeLength)
	for i := range code {
		code[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	return string(code)
}

// ShareLink builds the invite URL for a room code.
func ShareLink(base, code string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?room=" + code
	}
	q := u.Query()
	q.Set("room", code)
	u.RawQuery = q.Encode()
	return u.String()
}

// CodeFromURL extracts the room code from a share link. Only the `room`
// query parameter counts; anything else yields "".
func CodeFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get("room")
}
