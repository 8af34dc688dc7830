package setlist

import (
	"context"

	"setlist-service/internal/position"
)

// Store is the repository behind the mutation service. Lookups of a missing row
// return an error matching ErrNotFound; writes that violate a uniqueness rule return
// an error matching ErrConflict.
type Store interface {
	// RunAtomic runs fn in one transaction. fn must use the Store it is given; if fn
	// returns an error nothing it wrote is kept.
	RunAtomic(ctx context.Context, fn func(tx Store) error) error
	// LockSetlist serializes writers of one setlist until the surrounding atomic
	// unit ends.
	LockSetlist(ctx context.Context, setlistID string) error

	FindSetlist(ctx context.Context, id string) (*SetList, error)
	CreateSetlist(ctx context.Context, sl *SetList) error

	ListItems(ctx context.Context, setlistID string) ([]Item, error)
	FindItem(ctx context.Context, setlistID, id string) (*Item, error)
	CreateItem(ctx context.Context, it *Item) error
	UpdateItem(ctx context.Context, it *Item) error
	DeleteItem(ctx context.Context, setlistID, id string) error
	SetItemPosition(ctx context.Context, setlistID, id string, pos int) error

	ListSections(ctx context.Context, setlistID string) ([]Section, error)
	FindSection(ctx context.Context, setlistID, id string) (*Section, error)
	CreateSection(ctx context.Context, sec *Section) error
	UpdateSection(ctx context.Context, sec *Section) error
	DeleteSection(ctx context.Context, setlistID, id string) error
	SetSectionPosition(ctx context.Context, setlistID, id string, pos int) error
	// UnsectionItems clears the section of every item that references it and
	// returns how many items changed.
	UnsectionItems(ctx context.Context, setlistID, sectionID string) (int, error)

	// MaxPosition returns the highest position in one collection, nil when empty.
	MaxPosition(ctx context.Context, setlistID string, kind position.Kind) (*int, error)
	PositionTaken(ctx context.Context, setlistID string, kind position.Kind, pos int) (bool, error)

	TrackExists(ctx context.Context, trackID string) (bool, error)
	IsGroupMember(ctx context.Context, groupID, userID string) (bool, error)

	// FindShareByToken returns the share regardless of expiry.
	FindShareByToken(ctx context.Context, token string) (*Share, error)
	ListShares(ctx context.Context, setlistID string) ([]Share, error)
	CreateShare(ctx context.Context, sh *Share) error
	DeleteShare(ctx context.Context, setlistID, id string) error
}

// Publisher fans an event out to every connection watching a setlist.
type Publisher interface {
	Publish(ctx context.Context, setlistID string, v any) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, setlistID string, v any) error { return nil }
