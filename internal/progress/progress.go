// Package progress publishes generation progress events. Subscribers (a UI
// or another service) follow a microcycle's sessions as they complete.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Event is one status change during microcycle generation.
type Event struct {
	ProgramID    uuid.UUID `json:"program_id"`
	MicrocycleID uuid.UUID `json:"microcycle_id"`
	SessionID    uuid.UUID `json:"session_id,omitempty"`
	Day          int       `json:"day,omitempty"`
	Status       string    `json:"status"`
	Total        int       `json:"total"`
	Completed    int       `json:"completed"`
	Failed       int       `json:"failed"`
	Error        string    `json:"error,omitempty"`
	At           time.Time `json:"at"`
}

// Publisher delivers events. Publishing is best effort: callers log failures
// and carry on.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Redis publishes events as JSON on a pub/sub channel.
type Redis struct {
	rdb     *goredis.Client
	channel string
	log     *slog.Logger
}

var _ Publisher = (*Redis)(nil)

// NewRedis connects to addr and verifies the connection.
func NewRedis(addr, channel string, log *slog.Logger) (*Redis, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedis(rdb, channel, log), nil
}

func newRedis(rdb *goredis.Client, channel string, log *slog.Logger) *Redis {
	return &Redis{rdb: rdb, channel: channel, log: log.With("component", "progress")}
}

func (r *Redis) Publish(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding progress event: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, raw).Err(); err != nil {
		return fmt.Errorf("publishing progress event: %w", err)
	}
	return nil
}

// Subscribe calls fn for every event until ctx is done.
func (r *Redis) Subscribe(ctx context.Context, fn func(Event)) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(m.Payload), &e); err != nil {
					r.log.Warn("bad progress payload", "error", err)
					continue
				}
				fn(e)
			}
		}
	}()
	return nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
