package store

import (
	"time"

	"github.com/google/uuid"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyMixed  Difficulty = "mixed"
)

type QuestionsMode string

const (
	ModeSame      QuestionsMode = "same"
	ModePerPlayer QuestionsMode = "per-player"
)

type RoomStatus string

// RoomStatusEnded is never written to the shared store; the progression
// engine terminates locally per client.
const (
	RoomStatusWaiting RoomStatus = "waiting"
	RoomStatusActive  RoomStatus = "active"
	RoomStatusEnded   RoomStatus = "ended"
)

// DiscordUser is the persisted external identity of an authenticated player.
type DiscordUser struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Discriminator string    `json:"discriminator"`
	AvatarURL     string    `json:"avatar_url"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Player links an external discord id (or a guest name) to a registry record.
// Immutable after creation.
type Player struct {
	ID        uuid.UUID `json:"id"`
	DiscordID string    `json:"discord_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Room struct {
	ID             uuid.UUID     `json:"id"`
	RoomCode       string        `json:"room_code"`
	HostDiscordID  string        `json:"host_discord_id"`
	Difficulty     Difficulty    `json:"difficulty"`
	ScoreLimit     int           `json:"score_limit"` // 0 disables the win threshold
	QuestionsMode  QuestionsMode `json:"questions_mode"`
	TotalQuestions int           `json:"total_questions"`
	Status         RoomStatus    `json:"status"`
	QuestionIDs    []uuid.UUID   `json:"question_ids"`
	StartedAt      *time.Time    `json:"started_at"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Session is one player's membership in one room. There is no unique
// constraint on (room_id, player_discord_id): a duplicate-insert race
// yields two sessions for one logical player, tolerated as a display
// anomaly.
type Session struct {
	ID              uuid.UUID `json:"id"`
	RoomID          uuid.UUID `json:"room_id"`
	PlayerDiscordID string    `json:"player_discord_id"`
	IsHost          bool      `json:"is_host"`
	DiscordUserID   string    `json:"discord_user_id"` // empty when the join was not authenticated
	TotalScore      int       `json:"total_score"`
	JoinedAt        time.Time `json:"joined_at"`
}

// SessionView is a session enriched with its linked discord user, for
// player lists and leaderboards.
type SessionView struct {
	Session
	DiscordUser *DiscordUser `json:"discord_user"`
}

func (v SessionView) DisplayName() string {
	if v.DiscordUser != nil && v.DiscordUser.Username != "" {
		return v.DiscordUser.Username
	}
	return v.PlayerDiscordID
}

type Question struct {
	ID            uuid.UUID  `json:"id"`
	QuestionText  string     `json:"question_text"`
	OptionA       string     `json:"option_a"`
	OptionB       string     `json:"option_b"`
	OptionC       string     `json:"option_c"`
	OptionD       string     `json:"option_d"`
	CorrectAnswer string     `json:"correct_answer"` // option key "a".."d"
	Difficulty    Difficulty `json:"difficulty"`
}

// Option returns the text for an option key, or "" for an unknown key.
func (q Question) Option(key string) string {
	switch key {
	case "a":
		return q.OptionA
	case "b":
		return q.OptionB
	case "c":
		return q.OptionC
	case "d":
		return q.OptionD
	}
	return ""
}

// Answer is append-only. There is no unique constraint on
// (session_id, question_id): a client retrying a submission produces a
// second row, independently scored.
type Answer struct {
	ID           uuid.UUID `json:"id"`
	SessionID    uuid.UUID `json:"session_id"`
	QuestionID   uuid.UUID `json:"question_id"`
	PlayerAnswer string    `json:"player_answer"`
	IsCorrect    bool      `json:"is_correct"`
	TimeTakenMs  int       `json:"time_taken_ms"`
	PointsEarned int       `json:"points_earned"`
	AnsweredAt   time.Time `json:"answered_at"`
}

// SessionStats aggregates a session's answers for the final leaderboard.
type SessionStats struct {
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
	Total     int `json:"total"`
}
