package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	msgPresenceUpdate = "presence-update"
	msgStartEditing   = "start-editing"
	msgStopEditing    = "stop-editing"
)

type presenceMessage struct {
	Type      string    `json:"type"`
	Presence  []Entry   `json:"presence"`
	Timestamp time.Time `json:"timestamp"`
}

type inboundMessage struct {
	Type string `json:"type"`
}

// Engine ties the presence registry to the hub. It is the in-process half of the
// live channel; transports hand it subscribers and raw inbound messages.
type Engine struct {
	presence *Registry
	hub      *Hub
	log      *slog.Logger
	now      func() time.Time
}

func NewEngine(log *slog.Logger, now func() time.Time) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{
		presence: NewRegistry(now),
		hub:      NewHub(log),
		log:      log,
		now:      now,
	}
}

func (e *Engine) Presence() *Registry { return e.presence }
func (e *Engine) Hub() *Hub           { return e.hub }

// Deliver fans an already encoded event out to the setlist's local subscribers.
func (e *Engine) Deliver(setlistID string, msg []byte) int {
	return e.hub.Broadcast(setlistID, msg)
}

// Publish encodes v and delivers it locally. It serves as the event publisher when
// the process runs alone.
func (e *Engine) Publish(ctx context.Context, setlistID string, v any) error {
	msg, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	e.Deliver(setlistID, msg)
	return nil
}

func (e *Engine) presenceMessage(list []Entry) []byte {
	msg, err := json.Marshal(presenceMessage{
		Type:      msgPresenceUpdate,
		Presence:  list,
		Timestamp: e.now().UTC(),
	})
	if err != nil {
		e.log.Error("setlist-service: encode presence", "err", err)
	}
	return msg
}

// Member is who a connection belongs to.
type Member struct {
	UserID        *string
	UserName      string
	Authenticated bool
}

// Session is the state of one connection on one setlist.
type Session struct {
	engine    *Engine
	setlistID string
	sub       Subscriber
	leaveOnce sync.Once
}

// Join registers presence, subscribes sub, sends the snapshot to sub directly, then
// to everyone else in the group.
func (e *Engine) Join(setlistID string, sub Subscriber, m Member) *Session {
	list := e.presence.AddUser(setlistID, sub.ID(), m.UserID, m.UserName, m.Authenticated)
	e.hub.Subscribe(setlistID, sub)

	msg := e.presenceMessage(list)
	if !sub.Send(msg) {
		e.log.Debug("setlist-service: joiner did not take presence snapshot", "setlist", setlistID, "conn", sub.ID())
	}
	e.hub.BroadcastExcept(setlistID, msg, sub)

	e.log.Debug("setlist-service: connection joined", "setlist", setlistID, "conn", sub.ID(), "present", len(list))
	return &Session{engine: e, setlistID: setlistID, sub: sub}
}

// Handle processes one inbound message. Unparseable or unknown messages are ignored.
func (s *Session) Handle(raw []byte) {
	var in inboundMessage
	if err := json.Unmarshal(raw, &in); err != nil {
		s.engine.log.Debug("setlist-service: ignoring malformed message", "conn", s.sub.ID(), "err", err)
		return
	}

	var editing bool
	switch in.Type {
	case msgStartEditing:
		editing = true
	case msgStopEditing:
		editing = false
	default:
		s.engine.log.Debug("setlist-service: ignoring message", "conn", s.sub.ID(), "type", in.Type)
		return
	}

	list := s.engine.presence.UpdateEditingStatus(s.setlistID, s.sub.ID(), editing)
	s.engine.hub.Broadcast(s.setlistID, s.engine.presenceMessage(list))
}

// Leave removes the connection from presence and from the group and tells whoever is
// left. Only the first call has an effect.
func (s *Session) Leave() {
	s.leaveOnce.Do(func() {
		e := s.engine
		e.hub.Unsubscribe(s.setlistID, s.sub)
		remaining := e.presence.RemoveUser(s.setlistID, s.sub.ID())
		if len(remaining) > 0 {
			e.hub.Broadcast(s.setlistID, e.presenceMessage(remaining))
		}
		e.log.Debug("setlist-service: connection left", "setlist", s.setlistID, "conn", s.sub.ID(), "present", len(remaining))
	})
}
