package registry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/milad1377/stork-quiz-game/internal/store"
)

func newTestRegistry() (*Registry, *store.Memory) {
	mem := store.NewMemory()
	return New(mem, slog.New(slog.NewTextHandler(io.Discard, nil))), mem
}

func TestCreateOrGetCreatesOnce(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	first, err := r.CreateOrGet(ctx, "alice")
	if err != nil {
		t.Fatalf("CreateOrGet: %v", err)
	}
	if first.DiscordID != "alice" {
		t.Errorf("discord id = %q, want alice", first.DiscordID)
	}

	second, err := r.CreateOrGet(ctx, "alice")
	if err != nil {
		t.Fatalf("repeat CreateOrGet: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("repeat lookup returned a new player: %s vs %s", second.ID, first.ID)
	}
}

// conflictStore makes the first insert lose the uniqueness race: the
// winner's row lands first and the caller's insert reports conflict.
type conflictStore struct {
	*store.Memory
	remaining int
}

func (s *conflictStore) InsertPlayer(ctx context.Context, p store.Player) (store.Player, error) {
	if s.remaining > 0 {
		s.remaining--
		if _, err := s.Memory.InsertPlayer(ctx, p); err != nil {
			return store.Player{}, err
		}
		return store.Player{}, store.ErrConflict
	}
	return s.Memory.InsertPlayer(ctx, p)
}

func TestCreateOrGetReselectsAfterConflict(t *testing.T) {
	cs := &conflictStore{Memory: store.NewMemory(), remaining: 1}
	r := New(cs, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	player, err := r.CreateOrGet(ctx, "alice")
	if err != nil {
		t.Fatalf("CreateOrGet after conflict: %v", err)
	}

	winner, err := cs.GetPlayerByDiscordID(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if player.ID != winner.ID {
		t.Errorf("returned player %s is not the stored winner %s", player.ID, winner.ID)
	}
}

func TestCreateOrGetRequiresID(t *testing.T) {
	r, _ := newTestRegistry()
	if _, err := r.CreateOrGet(context.Background(), ""); err == nil {
		t.Fatal("empty discord id accepted")
	}
}

func TestCreateOrGetDistinctNames(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	a, err := r.CreateOrGet(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.CreateOrGet(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == b.ID {
		t.Error("distinct names share a player id")
	}
}
