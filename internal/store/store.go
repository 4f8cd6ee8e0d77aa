package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by single-record selects that match nothing.
	ErrNotFound = errors.New("store: record not found")
	// ErrConflict is returned when an insert violates a uniqueness
	// constraint (player discord_id, room code).
	ErrConflict = errors.New("store: conflict")
)

// Store is the shared mutable-record store every client coordinates
// through. Last write wins; there is no locking and no ownership. All
// implementations must be safe for concurrent use.
type Store interface {
	// Discord users.
	UpsertDiscordUser(ctx context.Context, u DiscordUser) (DiscordUser, error)
	GetDiscordUser(ctx context.Context, id string) (DiscordUser, error)
	// FindDiscordUserByName matches case-insensitively.
	FindDiscordUserByName(ctx context.Context, username string) (DiscordUser, error)

	// Player registry.
	GetPlayerByDiscordID(ctx context.Context, discordID string) (Player, error)
	InsertPlayer(ctx context.Context, p Player) (Player, error)

	// Rooms.
	InsertRoom(ctx context.Context, r Room) (Room, error)
	GetRoomByID(ctx context.Context, id uuid.UUID) (Room, error)
	GetRoomByCode(ctx context.Context, code string) (Room, error)
	// UpdateRoom applies status/started_at/question_ids and returns the
	// stored record.
	UpdateRoom(ctx context.Context, r Room) (Room, error)

	// Sessions.
	InsertSession(ctx context.Context, s Session) (Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (Session, error)
	// FindSession looks up the session for a (room, player) pair.
	FindSession(ctx context.Context, roomID uuid.UUID, playerDiscordID string) (Session, error)
	// SessionsByRoom returns sessions ordered by joined_at ascending.
	SessionsByRoom(ctx context.Context, roomID uuid.UUID) ([]Session, error)
	UpdateSession(ctx context.Context, s Session) (Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error

	// Questions (read-only for the game; writes are the seeder's business).
	QuestionsByDifficulty(ctx context.Context, d Difficulty) ([]Question, error)
	QuestionsByIDs(ctx context.Context, ids []uuid.UUID) ([]Question, error)
	InsertQuestions(ctx context.Context, qs []Question) error

	// Answers. Append-only, duplicates allowed.
	InsertAnswer(ctx context.Context, a Answer) (Answer, error)
	SessionStatsByID(ctx context.Context, sessionID uuid.UUID) (SessionStats, error)
}
