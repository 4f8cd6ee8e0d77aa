package handlers

import (
	"net/http"

	"github.com/milad1377/stork-quiz-game/pkg/common/response"
)

func (hr *HandlerRepo) HealthHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
