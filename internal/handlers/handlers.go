package handlers

import (
	"log/slog"

	"github.com/milad1377/stork-quiz-game/internal/identity"
	"github.com/milad1377/stork-quiz-game/internal/questions"
	"github.com/milad1377/stork-quiz-game/internal/registry"
	"github.com/milad1377/stork-quiz-game/internal/rooms"
	"github.com/milad1377/stork-quiz-game/internal/store"
)

// HandlerRepo holds all the dependencies required by the handlers:
// the application logger, the room manager, the question resolver,
// the player registry, the store and the identity exchanger.
type HandlerRepo struct {
	logger    *slog.Logger
	store     store.Store
	rooms     *rooms.Manager
	registry  *registry.Registry
	resolver  *questions.Resolver
	exchanger *identity.Exchanger
}

// NewHandlerRepo creates a new HandlerRepo with the provided dependencies.
func NewHandlerRepo(
	logger *slog.Logger,
	st store.Store,
	rm *rooms.Manager,
	reg *registry.Registry,
	res *questions.Resolver,
	ex *identity.Exchanger,
) *HandlerRepo {
	return &HandlerRepo{
		logger:    logger,
		store:     st,
		rooms:     rm,
		registry:  reg,
		resolver:  res,
		exchanger: ex,
	}
}
