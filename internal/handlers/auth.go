package handlers

import (
	"errors"
	"net/http"

	"github.com/milad1377/stork-quiz-game/internal/identity"
	"github.com/milad1377/stork-quiz-game/pkg/common/request"
	"github.com/milad1377/stork-quiz-game/pkg/common/response"
)

type exchangeRequest struct {
	Code string `json:"code"`
}

// ExchangeCodeHandler trades an OAuth authorization code for a token.
// The client secret never leaves the server, so clients go through here
// instead of talking to the identity provider directly.
func (hr *HandlerRepo) ExchangeCodeHandler(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := hr.exchanger.Exchange(r.Context(), req.Code)
	if err != nil {
		if errors.Is(err, identity.ErrNoCode) {
			response.Error(w, http.StatusBadRequest, "missing authorization code")
			return
		}
		hr.logger.Error("token exchange failed", "error", err)
		response.Error(w, http.StatusBadGateway, "token exchange failed")
		return
	}

	response.JSON(w, http.StatusOK, token)
}

// MeHandler resolves a bearer token to the identity profile behind it.
func (hr *HandlerRepo) MeHandler(w http.ResponseWriter, r *http.Request) {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		response.Error(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	user, err := hr.exchanger.FetchUser(r.Context(), auth[len(prefix):])
	if err != nil {
		hr.logger.Error("profile fetch failed", "error", err)
		response.Error(w, http.StatusBadGateway, "profile fetch failed")
		return
	}

	response.JSON(w, http.StatusOK, user)
}
