package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/milad1377/stork-quiz-game/internal/store"
)

const redisChannelPrefix = "quiz:changes:"

func redisChannel(table store.Table) string {
	return redisChannelPrefix + string(table)
}

// Redis carries change events over Redis pub/sub, for deployments where
// the store connection cannot LISTEN.
type Redis struct {
	client *redis.Client
	logger *slog.Logger
	fan    *fanout
}

var _ store.Notifier = (*Redis)(nil)

// NewRedis starts the receive loop; it stops when ctx is cancelled.
func NewRedis(ctx context.Context, client *redis.Client, logger *slog.Logger) *Redis {
	r := &Redis{client: client, logger: logger, fan: newFanout()}
	go r.receive(ctx)
	return r
}

func (r *Redis) Publish(ctx context.Context, ev store.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if err := r.client.Publish(ctx, redisChannel(ev.Table), payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, table store.Table, kinds []store.Kind, roomID uuid.UUID) (store.Subscription, error) {
	return r.fan.subscribe(table, kinds, roomID), nil
}

func (r *Redis) receive(ctx context.Context) {
	defer r.fan.closeAll()

	pubsub := r.client.Subscribe(ctx, redisChannel(store.TableRooms), redisChannel(store.TableSessions))
	defer pubsub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			var ev store.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.logger.Warn("dropping malformed change payload", "channel", msg.Channel, "error", err)
				continue
			}
			r.fan.dispatch(ev)
		}
	}
}
