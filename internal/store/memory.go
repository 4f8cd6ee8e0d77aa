package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const subscriberBuffer = 16

// Memory is a map-backed Store that doubles as its own change Notifier.
// It backs tests and single-host deployments; dispatch to subscribers is
// non-blocking, so a slow consumer loses events just like the remote
// transports can.
type Memory struct {
	usersMu sync.RWMutex
	users   map[string]DiscordUser

	playersMu sync.RWMutex
	players   map[uuid.UUID]Player

	roomsMu sync.RWMutex
	rooms   map[uuid.UUID]Room

	sessionsMu sync.RWMutex
	sessions   map[uuid.UUID]Session

	questionsMu sync.RWMutex
	questions   map[uuid.UUID]Question

	answersMu sync.RWMutex
	answers   map[uuid.UUID]Answer

	subsMu sync.RWMutex
	subs   map[int]*memorySub
	nextID int
}

var _ Store = (*Memory)(nil)
var _ Notifier = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		users:     make(map[string]DiscordUser),
		players:   make(map[uuid.UUID]Player),
		rooms:     make(map[uuid.UUID]Room),
		sessions:  make(map[uuid.UUID]Session),
		questions: make(map[uuid.UUID]Question),
		answers:   make(map[uuid.UUID]Answer),
		subs:      make(map[int]*memorySub),
	}
}

// Discord users

func (m *Memory) UpsertDiscordUser(ctx context.Context, u DiscordUser) (DiscordUser, error) {
	m.usersMu.Lock()
	defer m.usersMu.Unlock()
	u.UpdatedAt = time.Now()
	m.users[u.ID] = u
	return u, nil
}

func (m *Memory) GetDiscordUser(ctx context.Context, id string) (DiscordUser, error) {
	m.usersMu.RLock()
	defer m.usersMu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return DiscordUser{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) FindDiscordUserByName(ctx context.Context, username string) (DiscordUser, error) {
	m.usersMu.RLock()
	defer m.usersMu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return DiscordUser{}, ErrNotFound
}

// Players

func (m *Memory) GetPlayerByDiscordID(ctx context.Context, discordID string) (Player, error) {
	m.playersMu.RLock()
	defer m.playersMu.RUnlock()
	for _, p := range m.players {
		if p.DiscordID == discordID {
			return p, nil
		}
	}
	return Player{}, ErrNotFound
}

func (m *Memory) InsertPlayer(ctx context.Context, p Player) (Player, error) {
	m.playersMu.Lock()
	defer m.playersMu.Unlock()
	for _, existing := range m.players {
		if existing.DiscordID == p.DiscordID {
			return Player{}, ErrConflict
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	m.players[p.ID] = p
	return p, nil
}

// Rooms

func (m *Memory) InsertRoom(ctx context.Context, r Room) (Room, error) {
	m.roomsMu.Lock()
	for _, existing := range m.rooms {
		if existing.RoomCode == r.RoomCode {
			m.roomsMu.Unlock()
			return Room{}, ErrConflict
		}
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.CreatedAt = time.Now()
	m.rooms[r.ID] = r
	m.roomsMu.Unlock()

	m.dispatch(ChangeEvent{Table: TableRooms, Kind: Insert, RoomID: r.ID, Room: &r})
	return r, nil
}

func (m *Memory) GetRoomByID(ctx context.Context, id uuid.UUID) (Room, error) {
	m.roomsMu.RLock()
	defer m.roomsMu.RUnlock()
	r, ok := m.rooms[id]
	if !ok {
		return Room{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) GetRoomByCode(ctx context.Context, code string) (Room, error) {
	m.roomsMu.RLock()
	defer m.roomsMu.RUnlock()
	for _, r := range m.rooms {
		if r.RoomCode == code {
			return r, nil
		}
	}
	return Room{}, ErrNotFound
}

func (m *Memory) UpdateRoom(ctx context.Context, r Room) (Room, error) {
	m.roomsMu.Lock()
	if _, ok := m.rooms[r.ID]; !ok {
		m.roomsMu.Unlock()
		return Room{}, ErrNotFound
	}
	m.rooms[r.ID] = r
	m.roomsMu.Unlock()

	m.dispatch(ChangeEvent{Table: TableRooms, Kind: Update, RoomID: r.ID, Room: &r})
	return r, nil
}

// Sessions

func (m *Memory) InsertSession(ctx context.Context, s Session) (Session, error) {
	m.sessionsMu.Lock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.JoinedAt = time.Now()
	m.sessions[s.ID] = s
	m.sessionsMu.Unlock()

	m.dispatch(ChangeEvent{Table: TableSessions, Kind: Insert, RoomID: s.RoomID, Session: &s})
	return s, nil
}

func (m *Memory) GetSession(ctx context.Context, id uuid.UUID) (Session, error) {
	m.sessionsMu.RLock()
	defer m.sessionsMu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) FindSession(ctx context.Context, roomID uuid.UUID, playerDiscordID string) (Session, error) {
	m.sessionsMu.RLock()
	defer m.sessionsMu.RUnlock()
	var (
		found    Session
		earliest bool
	)
	for _, s := range m.sessions {
		if s.RoomID != roomID || s.PlayerDiscordID != playerDiscordID {
			continue
		}
		if !earliest || s.JoinedAt.Before(found.JoinedAt) {
			found = s
			earliest = true
		}
	}
	if !earliest {
		return Session{}, ErrNotFound
	}
	return found, nil
}

func (m *Memory) SessionsByRoom(ctx context.Context, roomID uuid.UUID) ([]Session, error) {
	m.sessionsMu.RLock()
	var result []Session
	for _, s := range m.sessions {
		if s.RoomID == roomID {
			result = append(result, s)
		}
	}
	m.sessionsMu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].JoinedAt.Before(result[j].JoinedAt)
	})
	return result, nil
}

func (m *Memory) UpdateSession(ctx context.Context, s Session) (Session, error) {
	m.sessionsMu.Lock()
	if _, ok := m.sessions[s.ID]; !ok {
		m.sessionsMu.Unlock()
		return Session{}, ErrNotFound
	}
	m.sessions[s.ID] = s
	m.sessionsMu.Unlock()

	m.dispatch(ChangeEvent{Table: TableSessions, Kind: Update, RoomID: s.RoomID, Session: &s})
	return s, nil
}

func (m *Memory) DeleteSession(ctx context.Context, id uuid.UUID) error {
	m.sessionsMu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.sessionsMu.Unlock()
	if !ok {
		return nil
	}

	m.dispatch(ChangeEvent{Table: TableSessions, Kind: Delete, RoomID: s.RoomID, Session: &s})
	return nil
}

// Questions

func (m *Memory) QuestionsByDifficulty(ctx context.Context, d Difficulty) ([]Question, error) {
	m.questionsMu.RLock()
	defer m.questionsMu.RUnlock()
	var result []Question
	for _, q := range m.questions {
		if d == DifficultyMixed || d == "" || q.Difficulty == d {
			result = append(result, q)
		}
	}
	return result, nil
}

func (m *Memory) QuestionsByIDs(ctx context.Context, ids []uuid.UUID) ([]Question, error) {
	m.questionsMu.RLock()
	defer m.questionsMu.RUnlock()
	var result []Question
	for _, id := range ids {
		if q, ok := m.questions[id]; ok {
			result = append(result, q)
		}
	}
	return result, nil
}

func (m *Memory) InsertQuestions(ctx context.Context, qs []Question) error {
	m.questionsMu.Lock()
	defer m.questionsMu.Unlock()
	for _, q := range qs {
		if q.ID == uuid.Nil {
			q.ID = uuid.New()
		}
		m.questions[q.ID] = q
	}
	return nil
}

// Answers

func (m *Memory) InsertAnswer(ctx context.Context, a Answer) (Answer, error) {
	m.answersMu.Lock()
	defer m.answersMu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.AnsweredAt = time.Now()
	m.answers[a.ID] = a
	return a, nil
}

func (m *Memory) SessionStatsByID(ctx context.Context, sessionID uuid.UUID) (SessionStats, error) {
	m.answersMu.RLock()
	defer m.answersMu.RUnlock()
	var stats SessionStats
	for _, a := range m.answers {
		if a.SessionID != sessionID {
			continue
		}
		if a.IsCorrect {
			stats.Correct++
		} else {
			stats.Incorrect++
		}
	}
	stats.Total = stats.Correct + stats.Incorrect
	return stats, nil
}

// Notifier

type memorySub struct {
	store  *Memory
	id     int
	table  Table
	kinds  []Kind
	roomID uuid.UUID
	ch     chan ChangeEvent
	once   sync.Once
}

func (s *memorySub) Events() <-chan ChangeEvent { return s.ch }

func (s *memorySub) Unsubscribe() {
	s.once.Do(func() {
		s.store.subsMu.Lock()
		delete(s.store.subs, s.id)
		s.store.subsMu.Unlock()
		close(s.ch)
	})
}

func (m *Memory) Subscribe(ctx context.Context, table Table, kinds []Kind, roomID uuid.UUID) (Subscription, error) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	m.nextID++
	sub := &memorySub{
		store:  m,
		id:     m.nextID,
		table:  table,
		kinds:  kinds,
		roomID: roomID,
		ch:     make(chan ChangeEvent, subscriberBuffer),
	}
	m.subs[sub.id] = sub
	return sub, nil
}

func (m *Memory) Publish(ctx context.Context, ev ChangeEvent) error {
	m.dispatch(ev)
	return nil
}

func (m *Memory) dispatch(ev ChangeEvent) {
	m.subsMu.RLock()
	defer m.subsMu.RUnlock()
	for _, sub := range m.subs {
		if !Matches(ev, sub.table, sub.kinds, sub.roomID) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Subscriber buffer full; delivery is best-effort and the
			// heartbeat repairs what the feed drops.
		}
	}
}
