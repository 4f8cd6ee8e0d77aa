// Package questions selects the ordered question sequence for a room.
package questions

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/milad1377/stork-quiz-game/internal/store"
)

// ErrEmptyPool means the store held no questions matching the room's
// difficulty.
var ErrEmptyPool = errors.New("questions: no questions available")

type Resolver struct {
	store store.Store
}

func NewResolver(st store.Store) *Resolver {
	return &Resolver{store: st}
}

// Resolve returns the question sequence for a room. A persisted id list
// (same mode, after start) is fetched and reordered to match exactly;
// otherwise a fresh random draw is made, which per-player mode repeats
// independently on every client.
func (r *Resolver) Resolve(ctx context.Context, room store.Room) ([]store.Question, error) {
	if len(room.QuestionIDs) > 0 {
		return r.ByIDs(ctx, room.QuestionIDs)
	}
	return r.Random(ctx, room.TotalQuestions, room.Difficulty)
}

// ByIDs fetches questions and reorders them to match ids exactly. Ids
// that resolve to nothing are silently dropped, so the result may be
// shorter than requested.
func (r *Resolver) ByIDs(ctx context.Context, ids []uuid.UUID) ([]store.Question, error) {
	fetched, err := r.store.QuestionsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch questions by ids: %w", err)
	}

	byID := make(map[uuid.UUID]store.Question, len(fetched))
	for _, q := range fetched {
		byID[q.ID] = q
	}

	ordered := make([]store.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}
	return ordered, nil
}

// Random draws count questions without replacement from the pool filtered
// by difficulty (mixed means no filter): full-pool fetch, in-memory
// shuffle, truncate.
func (r *Resolver) Random(ctx context.Context, count int, difficulty store.Difficulty) ([]store.Question, error) {
	pool, err := r.store.QuestionsByDifficulty(ctx, difficulty)
	if err != nil {
		return nil, fmt.Errorf("fetch question pool: %w", err)
	}
	if len(pool) == 0 {
		return nil, ErrEmptyPool
	}

	shuffled := make([]store.Question, len(pool))
	copy(shuffled, pool)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	if count > len(shuffled) {
		count = len(shuffled)
	}
	return shuffled[:count], nil
}
