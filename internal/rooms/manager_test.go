package rooms

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/milad1377/stork-quiz-game/internal/identity"
	"github.com/milad1377/stork-quiz-game/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(mem, logger), mem
}

func TestCreateRoomJoinsHost(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	room, session, err := m.CreateRoom(ctx, CreateParams{HostDiscordID: "alice"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	if room.Status != store.RoomStatusWaiting {
		t.Errorf("status = %q, want waiting", room.Status)
	}
	if len(room.RoomCode) != CodeLength {
		t.Errorf("code %q has wrong length", room.RoomCode)
	}
	if room.Difficulty != store.DifficultyMixed || room.QuestionsMode != store.ModeSame || room.TotalQuestions != 20 {
		t.Errorf("defaults not applied: %+v", room)
	}
	if !session.IsHost || session.PlayerDiscordID != "alice" || session.RoomID != room.ID {
		t.Errorf("host session wrong: %+v", session)
	}
}

func TestCreateRoomCodeExhaustion(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	// Every draw collides with the first room's code.
	existing, _, err := m.CreateRoom(ctx, CreateParams{HostDiscordID: "alice"})
	if err != nil {
		t.Fatal(err)
	}

	draws := 0
	m.codeFn = func() string {
		draws++
		return existing.RoomCode
	}

	_, _, err = m.CreateRoom(ctx, CreateParams{HostDiscordID: "bob"})
	if !errors.Is(err, ErrCodeGeneration) {
		t.Fatalf("err = %v, want ErrCodeGeneration", err)
	}
	if draws != 10 {
		t.Errorf("draws = %d, want exactly 10 attempts", draws)
	}
}

func TestJoinRoomIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	room, _, err := m.CreateRoom(ctx, CreateParams{HostDiscordID: "alice"})
	if err != nil {
		t.Fatal(err)
	}

	first, err := m.JoinRoom(ctx, room.ID, "bob", false, nil)
	if err != nil {
		t.Fatalf("first join: %v", err)
	}
	if first.AlreadyJoined {
		t.Error("first join flagged as repeat")
	}

	second, err := m.JoinRoom(ctx, room.ID, "bob", false, nil)
	if err != nil {
		t.Fatalf("second join: %v", err)
	}
	if !second.AlreadyJoined {
		t.Error("repeat join not flagged")
	}
	if second.Session.ID != first.Session.ID {
		t.Error("repeat join produced a different session")
	}

	views, err := m.SessionsByRoom(ctx, room.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 {
		t.Errorf("sessions = %d, want host + bob", len(views))
	}
}

func TestJoinRoomBackfillsLinkedIdentity(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	room, _, err := m.CreateRoom(ctx, CreateParams{HostDiscordID: "alice"})
	if err != nil {
		t.Fatal(err)
	}

	// First join as a plain guest, then again with a matching identity.
	first, err := m.JoinRoom(ctx, room.ID, "bob", false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.Session.DiscordUserID != "" {
		t.Fatalf("guest session unexpectedly linked: %+v", first.Session)
	}

	auth := &identity.User{DiscordID: "bob", Username: "bob"}
	second, err := m.JoinRoom(ctx, room.ID, "bob", false, auth)
	if err != nil {
		t.Fatal(err)
	}
	if !second.AlreadyJoined || second.Session.DiscordUserID != "bob" {
		t.Errorf("identity not backfilled: %+v", second.Session)
	}
}

func TestJoinRoomIgnoresMismatchedIdentity(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	room, _, err := m.CreateRoom(ctx, CreateParams{HostDiscordID: "alice"})
	if err != nil {
		t.Fatal(err)
	}

	auth := &identity.User{DiscordID: "someone-else", Username: "someone-else"}
	joined, err := m.JoinRoom(ctx, room.ID, "bob", false, auth)
	if err != nil {
		t.Fatal(err)
	}
	if joined.Session.DiscordUserID != "" {
		t.Errorf("mismatched identity linked anyway: %+v", joined.Session)
	}
}

func TestCheckGuestName(t *testing.T) {
	m, mem := newTestManager(t)
	ctx := context.Background()

	room, _, err := m.CreateRoom(ctx, CreateParams{HostDiscordID: "Alice"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mem.UpsertDiscordUser(ctx, store.DiscordUser{ID: "1", Username: "Carol"}); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name  string
		taken bool
	}{
		{"bob", false},
		{"Alice", true},
		{"alice", true}, // member names match case-insensitively
		{"ALICE", true},
		{"carol", true}, // authenticated usernames too
		{"Carol", true},
	}
	for _, c := range cases {
		err := m.CheckGuestName(ctx, room.ID, c.name)
		if c.taken && !errors.Is(err, ErrNameTaken) {
			t.Errorf("CheckGuestName(%q) = %v, want ErrNameTaken", c.name, err)
		}
		if !c.taken && err != nil {
			t.Errorf("CheckGuestName(%q) = %v, want nil", c.name, err)
		}
	}
}

func TestStartRoomPersistsQuestionOrder(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	room, _, err := m.CreateRoom(ctx, CreateParams{HostDiscordID: "alice"})
	if err != nil {
		t.Fatal(err)
	}

	questionIDs := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	started, err := m.StartRoom(ctx, room.ID, questionIDs)
	if err != nil {
		t.Fatalf("StartRoom: %v", err)
	}
	if started.Status != store.RoomStatusActive {
		t.Errorf("status = %q, want active", started.Status)
	}
	if started.StartedAt == nil {
		t.Error("started_at not stamped")
	}
	if len(started.QuestionIDs) != 3 {
		t.Fatalf("question ids = %d, want 3", len(started.QuestionIDs))
	}
	for i := range questionIDs {
		if started.QuestionIDs[i] != questionIDs[i] {
			t.Fatalf("question order not preserved at %d", i)
		}
	}
}

func TestLeaveRoomRemovesSession(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	room, session, err := m.CreateRoom(ctx, CreateParams{HostDiscordID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.LeaveRoom(ctx, session.ID); err != nil {
		t.Fatalf("LeaveRoom: %v", err)
	}

	views, err := m.SessionsByRoom(ctx, room.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 0 {
		t.Errorf("sessions after leave = %d, want 0", len(views))
	}
}
