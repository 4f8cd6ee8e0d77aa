package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryRoomCodeUniqueness(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.InsertRoom(ctx, Room{RoomCode: "AAAAAA", Status: RoomStatusWaiting}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.InsertRoom(ctx, Room{RoomCode: "AAAAAA", Status: RoomStatusWaiting}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate code err = %v, want ErrConflict", err)
	}
}

func TestMemoryPlayerUniqueness(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.InsertPlayer(ctx, Player{DiscordID: "alice"}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.InsertPlayer(ctx, Player{DiscordID: "alice"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate player err = %v, want ErrConflict", err)
	}
}

func TestMemorySessionsByRoomJoinOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	roomID := uuid.New()

	for _, name := range []string{"first", "second", "third"} {
		if _, err := m.InsertSession(ctx, Session{RoomID: roomID, PlayerDiscordID: name}); err != nil {
			t.Fatal(err)
		}
		time.Sleep(time.Millisecond)
	}

	sessions, err := m.SessionsByRoom(ctx, roomID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 3 {
		t.Fatalf("len = %d, want 3", len(sessions))
	}
	want := []string{"first", "second", "third"}
	for i, s := range sessions {
		if s.PlayerDiscordID != want[i] {
			t.Fatalf("position %d is %q, want %q", i, s.PlayerDiscordID, want[i])
		}
	}
}

func TestMemoryDuplicateAnswersAccumulate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	sessionID := uuid.New()
	questionID := uuid.New()

	// No uniqueness on (session, question): both land and both count.
	for i := 0; i < 2; i++ {
		if _, err := m.InsertAnswer(ctx, Answer{SessionID: sessionID, QuestionID: questionID, IsCorrect: true}); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := m.SessionStatsByID(ctx, sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 || stats.Correct != 2 {
		t.Errorf("stats = %+v, want both rows counted", stats)
	}
}

func TestMemorySubscribeFilters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	roomA, err := m.InsertRoom(ctx, Room{RoomCode: "AAAAAA", Status: RoomStatusWaiting})
	if err != nil {
		t.Fatal(err)
	}
	roomB, err := m.InsertRoom(ctx, Room{RoomCode: "BBBBBB", Status: RoomStatusWaiting})
	if err != nil {
		t.Fatal(err)
	}

	sub, err := m.Subscribe(ctx, TableRooms, []Kind{Update}, roomA.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	// Noise the filter must reject: another room's update, and a session
	// insert in the watched room.
	roomB.Status = RoomStatusActive
	if _, err := m.UpdateRoom(ctx, roomB); err != nil {
		t.Fatal(err)
	}
	if _, err := m.InsertSession(ctx, Session{RoomID: roomA.ID, PlayerDiscordID: "alice"}); err != nil {
		t.Fatal(err)
	}

	roomA.Status = RoomStatusActive
	if _, err := m.UpdateRoom(ctx, roomA); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-sub.Events():
		if ev.Table != TableRooms || ev.Kind != Update || ev.RoomID != roomA.ID {
			t.Fatalf("unexpected event %+v", ev)
		}
		if ev.Room == nil || ev.Room.Status != RoomStatusActive {
			t.Fatalf("event payload wrong: %+v", ev.Room)
		}
	case <-time.After(time.Second):
		t.Fatal("matching event never delivered")
	}

	select {
	case ev := <-sub.Events():
		t.Fatalf("filter leaked event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryUnsubscribeClosesChannel(t *testing.T) {
	m := NewMemory()
	sub, err := m.Subscribe(context.Background(), TableSessions, nil, uuid.Nil)
	if err != nil {
		t.Fatal(err)
	}

	sub.Unsubscribe()
	sub.Unsubscribe() // safe to repeat

	if _, ok := <-sub.Events(); ok {
		t.Fatal("channel still open after unsubscribe")
	}
}

func TestMemoryFindSessionReturnsEarliest(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	roomID := uuid.New()

	first, err := m.InsertSession(ctx, Session{RoomID: roomID, PlayerDiscordID: "bob"})
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	if _, err := m.InsertSession(ctx, Session{RoomID: roomID, PlayerDiscordID: "bob"}); err != nil {
		t.Fatal(err)
	}

	found, err := m.FindSession(ctx, roomID, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if found.ID != first.ID {
		t.Error("FindSession did not return the earliest duplicate")
	}
}

func TestMemoryDeleteSessionIdempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	s, err := m.InsertSession(ctx, Session{RoomID: uuid.New(), PlayerDiscordID: "bob"})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.DeleteSession(ctx, s.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.DeleteSession(ctx, s.ID); err != nil {
		t.Fatalf("second delete errored: %v", err)
	}
	if _, err := m.GetSession(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("session still present: %v", err)
	}
}
