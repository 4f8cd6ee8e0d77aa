package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/milad1377/stork-quiz-game/internal/questions"
	"github.com/milad1377/stork-quiz-game/internal/store"
	"github.com/milad1377/stork-quiz-game/pkg/common/request"
	"github.com/milad1377/stork-quiz-game/pkg/common/response"
)

// RandomQuestionsHandler draws a shuffled sample from the question pool.
// Defaults: mixed difficulty, 20 questions.
func (hr *HandlerRepo) RandomQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	difficulty := store.Difficulty(r.URL.Query().Get("difficulty"))
	if difficulty == "" {
		difficulty = store.DifficultyMixed
	}

	count := 20
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.Error(w, http.StatusBadRequest, "invalid count")
			return
		}
		count = n
	}

	qs, err := hr.resolver.Random(r.Context(), count, difficulty)
	if err != nil {
		if errors.Is(err, questions.ErrEmptyPool) {
			response.Error(w, http.StatusNotFound, "no questions available")
			return
		}
		hr.logger.Error("question draw failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "could not load questions")
		return
	}
	response.JSON(w, http.StatusOK, qs)
}

type SeedQuestionsRequest struct {
	Questions []store.Question `json:"questions"`
}

// SeedQuestionsHandler bulk-loads questions into the pool. Existing ids
// are left untouched.
func (hr *HandlerRepo) SeedQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	var req SeedQuestionsRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Questions) == 0 {
		response.Error(w, http.StatusBadRequest, "questions is required")
		return
	}

	if err := hr.store.InsertQuestions(r.Context(), req.Questions); err != nil {
		hr.logger.Error("question seed failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "could not seed questions")
		return
	}

	hr.logger.Info("questions seeded", "count", len(req.Questions))
	response.JSON(w, http.StatusCreated, map[string]int{"inserted": len(req.Questions)})
}
