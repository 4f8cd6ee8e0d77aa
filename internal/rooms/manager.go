// Package rooms manages room lifecycle and membership over the shared
// record store.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/milad1377/stork-quiz-game/internal/identity"
	"github.com/milad1377/stork-quiz-game/internal/store"
)

const (
	codeGenerationAttempts = 10
	defaultTotalQuestions  = 20
)

var (
	// ErrCodeGeneration means every code draw collided with an existing
	// room. Creation fails explicitly rather than looping forever.
	ErrCodeGeneration = errors.New("rooms: failed to generate room code")
	// ErrNameTaken rejects a guest join whose name collides with a member
	// of the room or with an authenticated username.
	ErrNameTaken = errors.New("rooms: name taken")
)

type Manager struct {
	store  store.Store
	logger *slog.Logger

	// codeFn is swapped in tests to force collisions.
	codeFn func() string
}

func NewManager(st store.Store, logger *slog.Logger) *Manager {
	return &Manager{store: st, logger: logger, codeFn: GenerateCode}
}

type CreateParams struct {
	HostDiscordID  string
	Difficulty     store.Difficulty
	ScoreLimit     int
	QuestionsMode  store.QuestionsMode
	TotalQuestions int
	// Auth is the authenticated identity of the creator, nil for guests.
	Auth *identity.User
}

// CreateRoom generates a unique code, inserts the room in waiting status
// and joins the host as its first session.
//
// The existence check before insert leaves a narrow race window; the
// store's unique index on room_code closes it by failing the losing
// insert.
func (m *Manager) CreateRoom(ctx context.Context, p CreateParams) (store.Room, store.Session, error) {
	if p.Difficulty == "" {
		p.Difficulty = store.DifficultyMixed
	}
	if p.QuestionsMode == "" {
		p.QuestionsMode = store.ModeSame
	}
	if p.TotalQuestions <= 0 {
		p.TotalQuestions = defaultTotalQuestions
	}

	var code string
	attempts := 0
	for ; attempts < codeGenerationAttempts; attempts++ {
		candidate := m.codeFn()
		_, err := m.store.GetRoomByCode(ctx, candidate)
		if errors.Is(err, store.ErrNotFound) {
			code = candidate
			break
		}
		if err != nil {
			return store.Room{}, store.Session{}, fmt.Errorf("check room code: %w", err)
		}
	}
	if attempts == codeGenerationAttempts {
		return store.Room{}, store.Session{}, ErrCodeGeneration
	}

	room, err := m.store.InsertRoom(ctx, store.Room{
		RoomCode:       code,
		HostDiscordID:  p.HostDiscordID,
		Difficulty:     p.Difficulty,
		ScoreLimit:     p.ScoreLimit,
		QuestionsMode:  p.QuestionsMode,
		TotalQuestions: p.TotalQuestions,
		Status:         store.RoomStatusWaiting,
	})
	if err != nil {
		return store.Room{}, store.Session{}, fmt.Errorf("insert room: %w", err)
	}
	m.logger.Info("room created", "room_id", room.ID, "code", room.RoomCode, "host", p.HostDiscordID)

	joined, err := m.JoinRoom(ctx, room.ID, p.HostDiscordID, true, p.Auth)
	if err != nil {
		return store.Room{}, store.Session{}, fmt.Errorf("join room as host: %w", err)
	}
	return room, joined.Session, nil
}

type JoinResult struct {
	Session       store.Session
	AlreadyJoined bool
}

// JoinRoom is idempotent for one client: an existing (room, player)
// session is returned as-is, with the linked identity backfilled when the
// join is authenticated and the session has none. The lookup-then-insert
// is not atomic, so two clients racing for the same pair can both insert;
// the duplicate session is tolerated.
func (m *Manager) JoinRoom(ctx context.Context, roomID uuid.UUID, discordID string, isHost bool, auth *identity.User) (JoinResult, error) {
	authenticated := auth != nil && auth.DiscordID == discordID
	if authenticated {
		_, err := m.store.UpsertDiscordUser(ctx, store.DiscordUser{
			ID:            auth.DiscordID,
			Username:      auth.Username,
			Discriminator: auth.Discriminator,
			AvatarURL:     auth.AvatarURL,
		})
		if err != nil {
			m.logger.Warn("discord user upsert failed", "discord_id", auth.DiscordID, "error", err)
		}
	}

	existing, err := m.store.FindSession(ctx, roomID, discordID)
	if err == nil {
		if existing.DiscordUserID == "" && authenticated {
			existing.DiscordUserID = auth.DiscordID
			updated, upErr := m.store.UpdateSession(ctx, existing)
			if upErr != nil {
				m.logger.Warn("linked identity backfill failed", "session_id", existing.ID, "error", upErr)
			} else {
				existing = updated
			}
		}
		return JoinResult{Session: existing, AlreadyJoined: true}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return JoinResult{}, fmt.Errorf("find session: %w", err)
	}

	linkedID := ""
	if authenticated {
		linkedID = auth.DiscordID
	}
	session, err := m.store.InsertSession(ctx, store.Session{
		RoomID:          roomID,
		PlayerDiscordID: discordID,
		IsHost:          isHost,
		DiscordUserID:   linkedID,
	})
	if err != nil {
		return JoinResult{}, fmt.Errorf("insert session: %w", err)
	}
	return JoinResult{Session: session, AlreadyJoined: false}, nil
}

// LeaveRoom deletes the session unconditionally.
func (m *Manager) LeaveRoom(ctx context.Context, sessionID uuid.UUID) error {
	if err := m.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (m *Manager) GetRoomByCode(ctx context.Context, code string) (store.Room, error) {
	return m.store.GetRoomByCode(ctx, code)
}

func (m *Manager) GetRoomByID(ctx context.Context, id uuid.UUID) (store.Room, error) {
	return m.store.GetRoomByID(ctx, id)
}

// StartRoom transitions waiting → active, stamping started_at and, for
// "same" mode, persisting the question order every player will follow.
func (m *Manager) StartRoom(ctx context.Context, roomID uuid.UUID, questionIDs []uuid.UUID) (store.Room, error) {
	room, err := m.store.GetRoomByID(ctx, roomID)
	if err != nil {
		return store.Room{}, fmt.Errorf("get room: %w", err)
	}

	now := time.Now()
	room.Status = store.RoomStatusActive
	room.StartedAt = &now
	if len(questionIDs) > 0 {
		room.QuestionIDs = questionIDs
	}

	updated, err := m.store.UpdateRoom(ctx, room)
	if err != nil {
		return store.Room{}, fmt.Errorf("update room: %w", err)
	}
	m.logger.Info("room started", "room_id", updated.ID, "code", updated.RoomCode, "questions", len(updated.QuestionIDs))
	return updated, nil
}

// CheckGuestName enforces both guest-name guards, case-insensitively:
// the name must not already sit in the room, and must not belong to any
// authenticated identity anywhere. Best-effort, not transactional.
func (m *Manager) CheckGuestName(ctx context.Context, roomID uuid.UUID, name string) error {
	sessions, err := m.store.SessionsByRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	for _, s := range sessions {
		if strings.EqualFold(s.PlayerDiscordID, name) {
			return ErrNameTaken
		}
	}

	_, err = m.store.FindDiscordUserByName(ctx, name)
	if err == nil {
		return ErrNameTaken
	}
	if !errors.Is(err, store.ErrNotFound) {
		// Best-effort: an unreachable registry does not block the join.
		m.logger.Warn("authenticated-username check failed", "name", name, "error", err)
	}
	return nil
}

// SessionsByRoom returns the room's sessions in join order, enriched with
// their linked discord users.
func (m *Manager) SessionsByRoom(ctx context.Context, roomID uuid.UUID) ([]store.SessionView, error) {
	sessions, err := m.store.SessionsByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	views := make([]store.SessionView, 0, len(sessions))
	for _, s := range sessions {
		view := store.SessionView{Session: s}
		if s.DiscordUserID != "" {
			user, err := m.store.GetDiscordUser(ctx, s.DiscordUserID)
			if err == nil {
				view.DiscordUser = &user
			}
		}
		views = append(views, view)
	}
	return views, nil
}
