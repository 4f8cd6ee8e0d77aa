package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/milad1377/stork-quiz-game/internal/store"
)

const (
	pgChannelPrefix  = "quiz_changes_"
	reconnectBackoff = 2 * time.Second
)

func pgChannel(table store.Table) string {
	return pgChannelPrefix + string(table)
}

// PG carries change events over Postgres LISTEN/NOTIFY. One dedicated
// connection listens on a channel per table; the loop reconnects with
// backoff, and events raised while disconnected are simply lost.
type PG struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	fan    *fanout
}

var _ store.Notifier = (*PG)(nil)

// NewPG starts the listen loop; it stops when ctx is cancelled.
func NewPG(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) *PG {
	p := &PG{pool: pool, logger: logger, fan: newFanout()}
	go p.listen(ctx)
	return p
}

func (p *PG) Publish(ctx context.Context, ev store.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if _, err := p.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, pgChannel(ev.Table), string(payload)); err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	return nil
}

func (p *PG) Subscribe(ctx context.Context, table store.Table, kinds []store.Kind, roomID uuid.UUID) (store.Subscription, error) {
	return p.fan.subscribe(table, kinds, roomID), nil
}

func (p *PG) listen(ctx context.Context) {
	defer p.fan.closeAll()
	for {
		if err := p.listenOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("notify listener disconnected, retrying", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectBackoff):
		}
	}
}

func (p *PG) listenOnce(ctx context.Context) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	for _, table := range []store.Table{store.TableRooms, store.TableSessions} {
		if _, err := conn.Exec(ctx, `LISTEN `+pgChannel(table)); err != nil {
			return fmt.Errorf("listen %s: %w", table, err)
		}
	}

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		var ev store.ChangeEvent
		if err := json.Unmarshal([]byte(notification.Payload), &ev); err != nil {
			p.logger.Warn("dropping malformed change payload", "channel", notification.Channel, "error", err)
			continue
		}
		p.fan.dispatch(ev)
	}
}
