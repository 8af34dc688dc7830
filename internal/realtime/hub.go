package realtime

import "log/slog"

// Subscriber is one live connection that can receive messages.
type Subscriber interface {
	ID() string
	// Send queues msg without blocking and reports whether it was accepted.
	Send(msg []byte) bool
	Close()
}

// Hub holds the subscriber set of every setlist. A message for one setlist only ever
// reaches that setlist's subscribers.
type Hub struct {
	groups *buckets[map[string]Subscriber]
	log    *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		groups: newBuckets(func() map[string]Subscriber { return make(map[string]Subscriber) }),
		log:    log,
	}
}

func (h *Hub) Subscribe(setlistID string, sub Subscriber) {
	h.groups.with(setlistID, true, func(g map[string]Subscriber) bool {
		g[sub.ID()] = sub
		return false
	})
}

// Unsubscribe reports whether sub was still subscribed.
func (h *Hub) Unsubscribe(setlistID string, sub Subscriber) bool {
	removed := false
	h.groups.with(setlistID, false, func(g map[string]Subscriber) bool {
		if cur, ok := g[sub.ID()]; ok && cur == sub {
			delete(g, sub.ID())
			removed = true
		}
		return len(g) == 0
	})
	return removed
}

// Broadcast sends msg to every subscriber of the setlist and returns how many accepted
// it.
func (h *Hub) Broadcast(setlistID string, msg []byte) int {
	return h.BroadcastExcept(setlistID, msg, nil)
}

// BroadcastExcept is Broadcast skipping one subscriber. A subscriber whose queue is
// full is dropped from the group and closed.
func (h *Hub) BroadcastExcept(setlistID string, msg []byte, except Subscriber) int {
	var (
		delivered int
		slow      []Subscriber
	)
	h.groups.with(setlistID, false, func(g map[string]Subscriber) bool {
		for id, sub := range g {
			if except != nil && sub == except {
				continue
			}
			if sub.Send(msg) {
				delivered++
				continue
			}
			delete(g, id)
			slow = append(slow, sub)
		}
		return len(g) == 0
	})

	for _, sub := range slow {
		h.log.Warn("setlist-service: dropping slow subscriber", "setlist", setlistID, "conn", sub.ID())
		sub.Close()
	}
	return delivered
}

func (h *Hub) Subscribers(setlistID string) int {
	n := 0
	h.groups.with(setlistID, false, func(g map[string]Subscriber) bool {
		n = len(g)
		return false
	})
	return n
}
