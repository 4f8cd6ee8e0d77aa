// Package registry maps external identities to persistent player records.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/milad1377/stork-quiz-game/internal/store"
)

type Registry struct {
	store  store.Store
	logger *slog.Logger
}

func New(st store.Store, logger *slog.Logger) *Registry {
	return &Registry{store: st, logger: logger}
}

// CreateOrGet is idempotent: concurrent creations for the same discord id
// converge on one record. A losing insert hits the uniqueness constraint
// and reselects the winner's row.
func (r *Registry) CreateOrGet(ctx context.Context, discordID string) (store.Player, error) {
	if discordID == "" {
		return store.Player{}, errors.New("registry: discord id required")
	}

	existing, err := r.store.GetPlayerByDiscordID(ctx, discordID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.Player{}, fmt.Errorf("lookup player: %w", err)
	}

	created, err := r.store.InsertPlayer(ctx, store.Player{DiscordID: discordID})
	if errors.Is(err, store.ErrConflict) {
		r.logger.Debug("player insert lost a race, reselecting", "discord_id", discordID)
		winner, retryErr := r.store.GetPlayerByDiscordID(ctx, discordID)
		if retryErr != nil {
			return store.Player{}, fmt.Errorf("reselect player after conflict: %w", retryErr)
		}
		return winner, nil
	}
	if err != nil {
		return store.Player{}, fmt.Errorf("insert player: %w", err)
	}
	return created, nil
}
