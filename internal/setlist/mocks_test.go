package setlist

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"setlist-service/internal/auth"
)

type MockLookup struct {
	mock.Mock
}

func (m *MockLookup) IsGroupMember(ctx context.Context, groupID, userID string) (bool, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLookup) FindShareByToken(ctx context.Context, token string) (*Share, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Share), args.Error(1)
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(ctx context.Context, setlistID string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, v.(Event))
	return nil
}

func (p *recordingPublisher) all() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

func (p *recordingPublisher) last() Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return Event{}
	}
	return p.events[len(p.events)-1]
}

// staticIdentity maps access tokens to identities.
type staticIdentity map[string]auth.Identity

func (s staticIdentity) Resolve(ctx context.Context, token string) (auth.Identity, error) {
	id, ok := s[token]
	if !ok {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return id, nil
}
