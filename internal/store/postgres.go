package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS discord_users (
	id            text PRIMARY KEY,
	username      text NOT NULL,
	discriminator text NOT NULL DEFAULT '0',
	avatar_url    text NOT NULL DEFAULT '',
	updated_at    timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS players (
	id         uuid PRIMARY KEY,
	discord_id text NOT NULL UNIQUE,
	created_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS game_rooms (
	id              uuid PRIMARY KEY,
	room_code       text NOT NULL UNIQUE,
	host_discord_id text NOT NULL,
	difficulty      text NOT NULL DEFAULT 'mixed',
	score_limit     int  NOT NULL DEFAULT 0,
	questions_mode  text NOT NULL DEFAULT 'same',
	total_questions int  NOT NULL DEFAULT 20,
	status          text NOT NULL DEFAULT 'waiting',
	question_ids    uuid[],
	started_at      timestamptz,
	created_at      timestamptz NOT NULL DEFAULT now()
);

-- Deliberately no UNIQUE (room_id, player_discord_id): duplicate joins
-- racing past the lookup are a tolerated anomaly.
CREATE TABLE IF NOT EXISTS game_sessions (
	id                uuid PRIMARY KEY,
	room_id           uuid NOT NULL REFERENCES game_rooms(id) ON DELETE CASCADE,
	player_discord_id text NOT NULL,
	is_host           bool NOT NULL DEFAULT false,
	discord_user_id   text NOT NULL DEFAULT '',
	total_score       int  NOT NULL DEFAULT 0,
	joined_at         timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS questions (
	id             uuid PRIMARY KEY,
	question_text  text NOT NULL,
	option_a       text NOT NULL,
	option_b       text NOT NULL,
	option_c       text NOT NULL,
	option_d       text NOT NULL,
	correct_answer text NOT NULL,
	difficulty     text NOT NULL
);

-- Deliberately no UNIQUE (session_id, question_id): retried submissions
-- double-count, a documented gap of the no-authority design.
CREATE TABLE IF NOT EXISTS answers (
	id            uuid PRIMARY KEY,
	session_id    uuid NOT NULL REFERENCES game_sessions(id) ON DELETE CASCADE,
	question_id   uuid NOT NULL,
	player_answer text NOT NULL DEFAULT '',
	is_correct    bool NOT NULL,
	time_taken_ms int  NOT NULL,
	points_earned int  NOT NULL,
	answered_at   timestamptz NOT NULL DEFAULT now()
);
`

// Postgres is the production Store. Change events are published through
// the configured Notifier after each successful room/session write; a
// failed publish is logged and dropped, the heartbeat covers the loss.
type Postgres struct {
	pool     *pgxpool.Pool
	notifier Notifier
	logger   *slog.Logger
}

var _ Store = (*Postgres)(nil)

func NewPostgres(pool *pgxpool.Pool, notifier Notifier, logger *slog.Logger) *Postgres {
	return &Postgres{pool: pool, notifier: notifier, logger: logger}
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (p *Postgres) publish(ctx context.Context, ev ChangeEvent) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Publish(ctx, ev); err != nil {
		p.logger.Warn("change publish failed", "table", ev.Table, "kind", ev.Kind, "error", err)
	}
}

// Discord users

func (p *Postgres) UpsertDiscordUser(ctx context.Context, u DiscordUser) (DiscordUser, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO discord_users (id, username, discriminator, avatar_url, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username,
		    discriminator = EXCLUDED.discriminator,
		    avatar_url = EXCLUDED.avatar_url,
		    updated_at = now()
		RETURNING id, username, discriminator, avatar_url, updated_at`,
		u.ID, u.Username, u.Discriminator, u.AvatarURL)
	return scanDiscordUser(row)
}

func (p *Postgres) GetDiscordUser(ctx context.Context, id string) (DiscordUser, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, username, discriminator, avatar_url, updated_at
		FROM discord_users WHERE id = $1`, id)
	return scanDiscordUser(row)
}

func (p *Postgres) FindDiscordUserByName(ctx context.Context, username string) (DiscordUser, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, username, discriminator, avatar_url, updated_at
		FROM discord_users WHERE lower(username) = lower($1)
		LIMIT 1`, username)
	return scanDiscordUser(row)
}

func scanDiscordUser(row pgx.Row) (DiscordUser, error) {
	var u DiscordUser
	err := row.Scan(&u.ID, &u.Username, &u.Discriminator, &u.AvatarURL, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return DiscordUser{}, ErrNotFound
	}
	if err != nil {
		return DiscordUser{}, err
	}
	return u, nil
}

// Players

func (p *Postgres) GetPlayerByDiscordID(ctx context.Context, discordID string) (Player, error) {
	var pl Player
	var id string
	err := p.pool.QueryRow(ctx, `
		SELECT id, discord_id, created_at FROM players WHERE discord_id = $1`,
		discordID).Scan(&id, &pl.DiscordID, &pl.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Player{}, ErrNotFound
	}
	if err != nil {
		return Player{}, err
	}
	pl.ID, err = uuid.Parse(id)
	return pl, err
}

func (p *Postgres) InsertPlayer(ctx context.Context, pl Player) (Player, error) {
	if pl.ID == uuid.Nil {
		pl.ID = uuid.New()
	}
	err := p.pool.QueryRow(ctx, `
		INSERT INTO players (id, discord_id) VALUES ($1, $2)
		RETURNING created_at`,
		pl.ID.String(), pl.DiscordID).Scan(&pl.CreatedAt)
	if isUniqueViolation(err) {
		return Player{}, ErrConflict
	}
	if err != nil {
		return Player{}, err
	}
	return pl, nil
}

// Rooms

const roomColumns = `id, room_code, host_discord_id, difficulty, score_limit,
	questions_mode, total_questions, status, question_ids, started_at, created_at`

func (p *Postgres) InsertRoom(ctx context.Context, r Room) (Room, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	err := p.pool.QueryRow(ctx, `
		INSERT INTO game_rooms (id, room_code, host_discord_id, difficulty,
			score_limit, questions_mode, total_questions, status, question_ids, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		r.ID.String(), r.RoomCode, r.HostDiscordID, string(r.Difficulty),
		r.ScoreLimit, string(r.QuestionsMode), r.TotalQuestions,
		string(r.Status), uuidStrings(r.QuestionIDs), r.StartedAt).Scan(&r.CreatedAt)
	if isUniqueViolation(err) {
		return Room{}, ErrConflict
	}
	if err != nil {
		return Room{}, err
	}
	p.publish(ctx, ChangeEvent{Table: TableRooms, Kind: Insert, RoomID: r.ID, Room: &r})
	return r, nil
}

func (p *Postgres) GetRoomByID(ctx context.Context, id uuid.UUID) (Room, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM game_rooms WHERE id = $1`, id.String())
	return scanRoom(row)
}

func (p *Postgres) GetRoomByCode(ctx context.Context, code string) (Room, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM game_rooms WHERE room_code = $1`, code)
	return scanRoom(row)
}

func (p *Postgres) UpdateRoom(ctx context.Context, r Room) (Room, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE game_rooms
		SET status = $2, question_ids = $3, started_at = $4
		WHERE id = $1
		RETURNING `+roomColumns,
		r.ID.String(), string(r.Status), uuidStrings(r.QuestionIDs), r.StartedAt)
	updated, err := scanRoom(row)
	if err != nil {
		return Room{}, err
	}
	p.publish(ctx, ChangeEvent{Table: TableRooms, Kind: Update, RoomID: updated.ID, Room: &updated})
	return updated, nil
}

func scanRoom(row pgx.Row) (Room, error) {
	var (
		r           Room
		id          string
		questionIDs []string
	)
	err := row.Scan(&id, &r.RoomCode, &r.HostDiscordID, &r.Difficulty,
		&r.ScoreLimit, &r.QuestionsMode, &r.TotalQuestions, &r.Status,
		&questionIDs, &r.StartedAt, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Room{}, ErrNotFound
	}
	if err != nil {
		return Room{}, err
	}
	if r.ID, err = uuid.Parse(id); err != nil {
		return Room{}, err
	}
	r.QuestionIDs, err = parseUUIDs(questionIDs)
	return r, err
}

// Sessions

const sessionColumns = `id, room_id, player_discord_id, is_host, discord_user_id, total_score, joined_at`

func (p *Postgres) InsertSession(ctx context.Context, s Session) (Session, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	err := p.pool.QueryRow(ctx, `
		INSERT INTO game_sessions (id, room_id, player_discord_id, is_host, discord_user_id, total_score)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING joined_at`,
		s.ID.String(), s.RoomID.String(), s.PlayerDiscordID, s.IsHost,
		s.DiscordUserID, s.TotalScore).Scan(&s.JoinedAt)
	if err != nil {
		return Session{}, err
	}
	p.publish(ctx, ChangeEvent{Table: TableSessions, Kind: Insert, RoomID: s.RoomID, Session: &s})
	return s, nil
}

func (p *Postgres) GetSession(ctx context.Context, id uuid.UUID) (Session, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM game_sessions WHERE id = $1`, id.String())
	return scanSession(row)
}

func (p *Postgres) FindSession(ctx context.Context, roomID uuid.UUID, playerDiscordID string) (Session, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM game_sessions
		WHERE room_id = $1 AND player_discord_id = $2
		ORDER BY joined_at ASC
		LIMIT 1`, roomID.String(), playerDiscordID)
	return scanSession(row)
}

func (p *Postgres) SessionsByRoom(ctx context.Context, roomID uuid.UUID) ([]Session, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+sessionColumns+` FROM game_sessions
		WHERE room_id = $1
		ORDER BY joined_at ASC`, roomID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (p *Postgres) UpdateSession(ctx context.Context, s Session) (Session, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE game_sessions
		SET discord_user_id = $2, total_score = $3
		WHERE id = $1
		RETURNING `+sessionColumns, s.ID.String(), s.DiscordUserID, s.TotalScore)
	updated, err := scanSession(row)
	if err != nil {
		return Session{}, err
	}
	p.publish(ctx, ChangeEvent{Table: TableSessions, Kind: Update, RoomID: updated.RoomID, Session: &updated})
	return updated, nil
}

func (p *Postgres) DeleteSession(ctx context.Context, id uuid.UUID) error {
	row := p.pool.QueryRow(ctx, `
		DELETE FROM game_sessions WHERE id = $1
		RETURNING `+sessionColumns, id.String())
	deleted, err := scanSession(row)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	p.publish(ctx, ChangeEvent{Table: TableSessions, Kind: Delete, RoomID: deleted.RoomID, Session: &deleted})
	return nil
}

func scanSession(row pgx.Row) (Session, error) {
	var (
		s          Session
		id, roomID string
	)
	err := row.Scan(&id, &roomID, &s.PlayerDiscordID, &s.IsHost,
		&s.DiscordUserID, &s.TotalScore, &s.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	if s.ID, err = uuid.Parse(id); err != nil {
		return Session{}, err
	}
	s.RoomID, err = uuid.Parse(roomID)
	return s, err
}

// Questions

const questionColumns = `id, question_text, option_a, option_b, option_c, option_d, correct_answer, difficulty`

func (p *Postgres) QuestionsByDifficulty(ctx context.Context, d Difficulty) ([]Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions`
	args := []any{}
	if d != "" && d != DifficultyMixed {
		query += ` WHERE difficulty = $1`
		args = append(args, string(d))
	}
	return p.queryQuestions(ctx, query, args...)
}

func (p *Postgres) QuestionsByIDs(ctx context.Context, ids []uuid.UUID) ([]Question, error) {
	return p.queryQuestions(ctx, `
		SELECT `+questionColumns+` FROM questions WHERE id = ANY($1)`, uuidStrings(ids))
}

func (p *Postgres) queryQuestions(ctx context.Context, query string, args ...any) ([]Question, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		var (
			q  Question
			id string
		)
		if err := rows.Scan(&id, &q.QuestionText, &q.OptionA, &q.OptionB,
			&q.OptionC, &q.OptionD, &q.CorrectAnswer, &q.Difficulty); err != nil {
			return nil, err
		}
		if q.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (p *Postgres) InsertQuestions(ctx context.Context, qs []Question) error {
	batch := &pgx.Batch{}
	for _, q := range qs {
		id := q.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		batch.Queue(`
			INSERT INTO questions (id, question_text, option_a, option_b, option_c, option_d, correct_answer, difficulty)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING`,
			id.String(), q.QuestionText, q.OptionA, q.OptionB, q.OptionC,
			q.OptionD, q.CorrectAnswer, string(q.Difficulty))
	}
	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range qs {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// Answers

func (p *Postgres) InsertAnswer(ctx context.Context, a Answer) (Answer, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := p.pool.QueryRow(ctx, `
		INSERT INTO answers (id, session_id, question_id, player_answer, is_correct, time_taken_ms, points_earned)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING answered_at`,
		a.ID.String(), a.SessionID.String(), a.QuestionID.String(),
		a.PlayerAnswer, a.IsCorrect, a.TimeTakenMs, a.PointsEarned).Scan(&a.AnsweredAt)
	if err != nil {
		return Answer{}, err
	}
	return a, nil
}

func (p *Postgres) SessionStatsByID(ctx context.Context, sessionID uuid.UUID) (SessionStats, error) {
	var stats SessionStats
	err := p.pool.QueryRow(ctx, `
		SELECT count(*) FILTER (WHERE is_correct),
		       count(*) FILTER (WHERE NOT is_correct),
		       count(*)
		FROM answers WHERE session_id = $1`, sessionID.String()).
		Scan(&stats.Correct, &stats.Incorrect, &stats.Total)
	return stats, err
}

func uuidStrings(ids []uuid.UUID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]uuid.UUID, len(raw))
	for i, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parse uuid %q: %w", s, err)
		}
		out[i] = id
	}
	return out, nil
}
