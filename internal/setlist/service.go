package setlist

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"setlist-service/internal/auth"
)

const guestName = "Guest"

// Credentials are what a request presents about its caller. Both tokens are optional.
type Credentials struct {
	AccessToken string
	ShareToken  string
	// DisplayName is used when the access token does not carry a name.
	DisplayName string
}

type actor struct {
	caller Caller
	name   string
}

func (a actor) authenticated() bool { return a.caller.UserID != "" }

func (a actor) userID() *string {
	if a.caller.UserID == "" {
		return nil
	}
	id := a.caller.UserID
	return &id
}

// Service runs every setlist mutation: authorize, validate, persist, then publish an
// event to the setlist's viewers.
type Service struct {
	store     Store
	identity  auth.Resolver
	publisher Publisher
	log       *slog.Logger
	now       func() time.Time
	newID     func() string
	newToken  func() (string, error)
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTokenSource replaces the share token generator.
func WithTokenSource(fn func() (string, error)) Option {
	return func(s *Service) { s.newToken = fn }
}

func NewService(store Store, identity auth.Resolver, opts ...Option) *Service {
	s := &Service{
		store:     store,
		identity:  identity,
		publisher: nopPublisher{},
		log:       slog.Default(),
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
		newToken:  randomToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.identity == nil {
		s.identity = auth.Anonymous{}
	}
	return s
}

func randomToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// actor resolves the calling identity. A token that does not verify makes the caller
// anonymous; it is never an error by itself.
func (s *Service) actor(ctx context.Context, cred Credentials) actor {
	a := actor{
		caller: Caller{ShareToken: cred.ShareToken},
		name:   cred.DisplayName,
	}
	if cred.AccessToken != "" {
		id, err := s.identity.Resolve(ctx, cred.AccessToken)
		if err != nil {
			s.log.Debug("setlist-service: treating caller as anonymous", "err", err)
		} else {
			a.caller.UserID = id.UserID
			if id.DisplayName != "" {
				a.name = id.DisplayName
			}
		}
	}
	if a.name == "" {
		a.name = guestName
	}
	return a
}

func (s *Service) resolver(st Store) *Resolver {
	return NewResolver(st, s.now)
}

func (s *Service) findSetlist(ctx context.Context, st Store, id string) (*SetList, error) {
	sl, err := st.FindSetlist(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, notFound("setlist not found")
	}
	return sl, err
}

// authorized loads a setlist and checks the caller holds want on it.
func (s *Service) authorized(ctx context.Context, st Store, setlistID string, a actor, want Level, intent Intent) (*SetList, Level, error) {
	sl, err := s.findSetlist(ctx, st, setlistID)
	if err != nil {
		return nil, LevelNone, err
	}
	lvl, err := s.resolver(st).Authorize(ctx, sl, a.caller, want, intent)
	if err != nil {
		return nil, lvl, err
	}
	return sl, lvl, nil
}

// mutate runs fn in one atomic unit holding the setlist's write lock, after checking
// the caller may edit it.
func (s *Service) mutate(ctx context.Context, setlistID string, a actor, want Level, fn func(tx Store, sl *SetList) error) error {
	return s.store.RunAtomic(ctx, func(tx Store) error {
		if err := tx.LockSetlist(ctx, setlistID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return notFound("setlist not found")
			}
			return err
		}
		sl, _, err := s.authorized(ctx, tx, setlistID, a, want, IntentWrite)
		if err != nil {
			return err
		}
		return fn(tx, sl)
	})
}

// emit publishes after the change is committed. A failed publish is logged; the change
// itself stands.
func (s *Service) emit(ctx context.Context, a actor, eventType, setlistID string, data any) {
	ev := Event{
		Type:      eventType,
		SetlistID: setlistID,
		Data:      data,
		UserID:    a.userID(),
		UserName:  a.name,
		Timestamp: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, setlistID, ev); err != nil {
		s.log.Error("setlist-service: publish event", "type", eventType, "setlist", setlistID, "err", err)
	}
}

// Viewer describes a caller allowed to watch a setlist.
type Viewer struct {
	UserID      string // empty for anonymous viewers
	DisplayName string
	Level       Level
}

// Viewer authorizes read access for a live connection.
func (s *Service) Viewer(ctx context.Context, cred Credentials, setlistID string) (Viewer, error) {
	a := s.actor(ctx, cred)
	_, lvl, err := s.authorized(ctx, s.store, setlistID, a, LevelView, IntentRead)
	if err != nil {
		return Viewer{}, err
	}
	return Viewer{UserID: a.caller.UserID, DisplayName: a.name, Level: lvl}, nil
}
