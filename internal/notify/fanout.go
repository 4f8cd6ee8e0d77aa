// Package notify provides the remote transports for the record-change
// feed: Postgres LISTEN/NOTIFY and Redis pub/sub. Both are best-effort
// channels; the game's heartbeat poll repairs anything they lose.
package notify

import (
	"sync"

	"github.com/google/uuid"

	"github.com/milad1377/stork-quiz-game/internal/store"
)

const subscriberBuffer = 16

// fanout delivers incoming change events to local subscriptions, each with
// its own (table, kinds, room) filter. Dispatch never blocks: a subscriber
// whose buffer is full loses the event.
type fanout struct {
	mu     sync.RWMutex
	subs   map[int]*fanoutSub
	nextID int
}

func newFanout() *fanout {
	return &fanout{subs: make(map[int]*fanoutSub)}
}

type fanoutSub struct {
	parent *fanout
	id     int
	table  store.Table
	kinds  []store.Kind
	roomID uuid.UUID
	ch     chan store.ChangeEvent
	once   sync.Once
}

func (s *fanoutSub) Events() <-chan store.ChangeEvent { return s.ch }

func (s *fanoutSub) Unsubscribe() {
	s.once.Do(func() {
		s.parent.mu.Lock()
		delete(s.parent.subs, s.id)
		s.parent.mu.Unlock()
		close(s.ch)
	})
}

func (f *fanout) subscribe(table store.Table, kinds []store.Kind, roomID uuid.UUID) *fanoutSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	sub := &fanoutSub{
		parent: f,
		id:     f.nextID,
		table:  table,
		kinds:  kinds,
		roomID: roomID,
		ch:     make(chan store.ChangeEvent, subscriberBuffer),
	}
	f.subs[sub.id] = sub
	return sub
}

func (f *fanout) dispatch(ev store.ChangeEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, sub := range f.subs {
		if !store.Matches(ev, sub.table, sub.kinds, sub.roomID) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

func (f *fanout) closeAll() {
	f.mu.Lock()
	subs := make([]*fanoutSub, 0, len(f.subs))
	for _, sub := range f.subs {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}
