package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// Channel carries setlist events between service instances.
const Channel = "setlist-events"

type envelope struct {
	SetlistID string          `json:"setlistId"`
	Payload   json.RawMessage `json:"payload"`
}

// Relay publishes events through Redis so that every instance, this one included,
// delivers them to its own connections. While Run holds no subscription, events are
// delivered to this instance's connections only.
type Relay struct {
	rdb       *redis.Client
	engine    *Engine
	log       *slog.Logger
	ready     chan struct{}
	readyOnce sync.Once
	live      atomic.Bool
}

func NewRelay(rdb *redis.Client, engine *Engine, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{
		rdb:    rdb,
		engine: engine,
		log:    log,
		ready:  make(chan struct{}),
	}
}

// Publish sends the event through Redis. If the relay is not subscribed, or Redis
// rejects the message, local connections still get it.
func (r *Relay) Publish(ctx context.Context, setlistID string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if !r.live.Load() {
		r.log.Debug("setlist-service: relay not subscribed, delivering locally", "setlist", setlistID)
		r.engine.Deliver(setlistID, payload)
		return nil
	}

	data, err := json.Marshal(envelope{SetlistID: setlistID, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := r.rdb.Publish(ctx, Channel, data).Err(); err != nil {
		r.engine.Deliver(setlistID, payload)
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Ready is closed once the subscription is confirmed.
func (r *Relay) Ready() <-chan struct{} {
	return r.ready
}

// Run delivers relayed events to local subscribers until ctx ends.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, Channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", Channel, err)
	}
	r.live.Store(true)
	defer r.live.Store(false)
	r.readyOnce.Do(func() { close(r.ready) })

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || env.SetlistID == "" {
				r.log.Warn("setlist-service: dropping malformed relay message", "err", err)
				continue
			}
			r.engine.Deliver(env.SetlistID, env.Payload)
		}
	}
}
