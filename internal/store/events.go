package store

import (
	"context"

	"github.com/google/uuid"
)

type Table string

const (
	TableRooms    Table = "game_rooms"
	TableSessions Table = "game_sessions"
)

type Kind string

const (
	Insert Kind = "INSERT"
	Update Kind = "UPDATE"
	Delete Kind = "DELETE"
)

// ChangeEvent is one best-effort record-change notification. Delivery may
// be lost or duplicated; consumers reconcile against the store rather than
// trusting the payload alone.
type ChangeEvent struct {
	Table  Table     `json:"table"`
	Kind   Kind      `json:"kind"`
	RoomID uuid.UUID `json:"room_id"`

	// Exactly one of these is set, matching Table. For deletes it holds
	// the old record.
	Room    *Room    `json:"room,omitempty"`
	Session *Session `json:"session,omitempty"`
}

// Subscription is one live change feed. Unsubscribe is idempotent and
// closes the Events channel.
type Subscription interface {
	Events() <-chan ChangeEvent
	Unsubscribe()
}

// Notifier is the change-notification channel shared by all clients of a
// room. Publish never blocks on slow consumers.
type Notifier interface {
	Publish(ctx context.Context, ev ChangeEvent) error
	// Subscribe delivers events for one table, filtered by kind (empty
	// kinds = all) and by room id (uuid.Nil = all rooms).
	Subscribe(ctx context.Context, table Table, kinds []Kind, roomID uuid.UUID) (Subscription, error)
}

// Matches reports whether ev passes a (table, kinds, roomID) filter.
func Matches(ev ChangeEvent, table Table, kinds []Kind, roomID uuid.UUID) bool {
	if ev.Table != table {
		return false
	}
	if roomID != uuid.Nil && ev.RoomID != roomID {
		return false
	}
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if ev.Kind == k {
			return true
		}
	}
	return false
}
