package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/milad1377/stork-quiz-game/internal/identity"
	"github.com/milad1377/stork-quiz-game/internal/rooms"
	"github.com/milad1377/stork-quiz-game/internal/store"
	"github.com/milad1377/stork-quiz-game/pkg/common/request"
	"github.com/milad1377/stork-quiz-game/pkg/common/response"
)

type CreateRoomRequest struct {
	HostDiscordID  string              `json:"host_discord_id"`
	Difficulty     store.Difficulty    `json:"difficulty"`
	ScoreLimit     int                 `json:"score_limit"`
	QuestionsMode  store.QuestionsMode `json:"questions_mode"`
	TotalQuestions int                 `json:"total_questions"`
	User           *identity.User      `json:"user,omitempty"`
}

type RoomWithSession struct {
	Room    store.Room    `json:"room"`
	Session store.Session `json:"session"`
}

func (hr *HandlerRepo) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.HostDiscordID == "" {
		response.Error(w, http.StatusBadRequest, "host_discord_id is required")
		return
	}

	if _, err := hr.registry.CreateOrGet(r.Context(), req.HostDiscordID); err != nil {
		hr.logger.Error("host registration failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "could not register host")
		return
	}

	room, session, err := hr.rooms.CreateRoom(r.Context(), rooms.CreateParams{
		HostDiscordID:  req.HostDiscordID,
		Difficulty:     req.Difficulty,
		ScoreLimit:     req.ScoreLimit,
		QuestionsMode:  req.QuestionsMode,
		TotalQuestions: req.TotalQuestions,
		Auth:           req.User,
	})
	if err != nil {
		if errors.Is(err, rooms.ErrCodeGeneration) {
			response.Error(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		hr.logger.Error("room creation failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "could not create room")
		return
	}

	response.JSON(w, http.StatusCreated, RoomWithSession{Room: room, Session: session})
}

func (hr *HandlerRepo) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	room, err := hr.rooms.GetRoomByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "room not found")
			return
		}
		hr.logger.Error("room lookup failed", "code", code, "error", err)
		response.Error(w, http.StatusInternalServerError, "could not look up room")
		return
	}
	response.JSON(w, http.StatusOK, room)
}

type JoinRoomRequest struct {
	DiscordID string         `json:"discord_id"`
	User      *identity.User `json:"user,omitempty"`
}

// JoinRoomHandler joins a player into a room by code. Repeat joins are
// idempotent and return the existing session. Guests whose name
// collides with a room member or an authenticated username get a 409.
func (hr *HandlerRepo) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req JoinRoomRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DiscordID == "" {
		response.Error(w, http.StatusBadRequest, "discord_id is required")
		return
	}

	code := chi.URLParam(r, "code")
	room, err := hr.rooms.GetRoomByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "room not found")
			return
		}
		hr.logger.Error("room lookup failed", "code", code, "error", err)
		response.Error(w, http.StatusInternalServerError, "could not look up room")
		return
	}

	_, findErr := hr.store.FindSession(r.Context(), room.ID, req.DiscordID)
	if findErr != nil && !errors.Is(findErr, store.ErrNotFound) {
		hr.logger.Error("session lookup failed", "room_id", room.ID, "error", findErr)
		response.Error(w, http.StatusInternalServerError, "could not look up session")
		return
	}

	// The name guard applies to guests entering the room for the first
	// time. A player with an existing session is rejoining, not colliding
	// with their own name.
	if req.User == nil && errors.Is(findErr, store.ErrNotFound) {
		if err := hr.rooms.CheckGuestName(r.Context(), room.ID, req.DiscordID); err != nil {
			if errors.Is(err, rooms.ErrNameTaken) {
				response.Error(w, http.StatusConflict, "name taken")
				return
			}
			hr.logger.Error("guest name check failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "could not validate name")
			return
		}
	}

	if _, err := hr.registry.CreateOrGet(r.Context(), req.DiscordID); err != nil {
		hr.logger.Error("player registration failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "could not register player")
		return
	}

	joined, err := hr.rooms.JoinRoom(r.Context(), room.ID, req.DiscordID, false, req.User)
	if err != nil {
		hr.logger.Error("join failed", "room_id", room.ID, "error", err)
		response.Error(w, http.StatusInternalServerError, "could not join room")
		return
	}

	status := http.StatusCreated
	if joined.AlreadyJoined {
		status = http.StatusOK
	}
	response.JSON(w, status, joined.Session)
}

type StartRoomRequest struct {
	QuestionIDs []uuid.UUID `json:"question_ids,omitempty"`
}

func (hr *HandlerRepo) StartRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req StartRoomRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	code := chi.URLParam(r, "code")
	room, err := hr.rooms.GetRoomByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "room not found")
			return
		}
		hr.logger.Error("room lookup failed", "code", code, "error", err)
		response.Error(w, http.StatusInternalServerError, "could not look up room")
		return
	}

	started, err := hr.rooms.StartRoom(r.Context(), room.ID, req.QuestionIDs)
	if err != nil {
		hr.logger.Error("room start failed", "room_id", room.ID, "error", err)
		response.Error(w, http.StatusInternalServerError, "could not start room")
		return
	}
	response.JSON(w, http.StatusOK, started)
}

func (hr *HandlerRepo) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	room, err := hr.rooms.GetRoomByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "room not found")
			return
		}
		hr.logger.Error("room lookup failed", "code", code, "error", err)
		response.Error(w, http.StatusInternalServerError, "could not look up room")
		return
	}

	views, err := hr.rooms.SessionsByRoom(r.Context(), room.ID)
	if err != nil {
		hr.logger.Error("session listing failed", "room_id", room.ID, "error", err)
		response.Error(w, http.StatusInternalServerError, "could not list sessions")
		return
	}
	response.JSON(w, http.StatusOK, views)
}

func (hr *HandlerRepo) LeaveRoomHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid session id")
		return
	}

	if err := hr.rooms.LeaveRoom(r.Context(), sessionID); err != nil {
		hr.logger.Error("leave failed", "session_id", sessionID, "error", err)
		response.Error(w, http.StatusInternalServerError, "could not leave room")
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"status": "left"})
}
