package setlist

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Level is the access a caller holds on a setlist. Each level implies the ones below.
type Level int

const (
	LevelNone Level = iota
	LevelView
	LevelEdit
	LevelOwner
)

func (l Level) String() string {
	switch l {
	case LevelView:
		return "view"
	case LevelEdit:
		return "edit"
	case LevelOwner:
		return "owner"
	default:
		return "none"
	}
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Caller is the resolved acting party of a request.
type Caller struct {
	UserID     string // empty for anonymous callers
	ShareToken string
}

type accessLookup interface {
	IsGroupMember(ctx context.Context, groupID, userID string) (bool, error)
	FindShareByToken(ctx context.Context, token string) (*Share, error)
}

// Resolver decides what a caller may do with a setlist. It has no side effects and
// is safe for concurrent use.
//
// Rules, first match wins:
//  1. the owner holds LevelOwner;
//  2. a member of the setlist's group holds LevelView;
//  3. a live share of this setlist matching the caller's token grants LevelView
//     (VIEW_ONLY) or LevelEdit (CAN_EDIT);
//  4. nobody else has access.
type Resolver struct {
	lookup accessLookup
	now    func() time.Time
}

func NewResolver(lookup accessLookup, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{lookup: lookup, now: now}
}

func (r *Resolver) Level(ctx context.Context, sl *SetList, c Caller) (Level, error) {
	if c.UserID != "" && c.UserID == sl.OwnerID {
		return LevelOwner, nil
	}

	if c.UserID != "" && sl.GroupID != nil && *sl.GroupID != "" {
		member, err := r.lookup.IsGroupMember(ctx, *sl.GroupID, c.UserID)
		if err != nil {
			return LevelNone, fmt.Errorf("group membership: %w", err)
		}
		if member {
			return LevelView, nil
		}
	}

	if c.ShareToken != "" {
		sh, err := r.lookup.FindShareByToken(ctx, c.ShareToken)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return LevelNone, fmt.Errorf("share lookup: %w", err)
		case sh == nil:
		case sh.SetlistID != sl.ID || sh.Expired(r.now()):
		case sh.Permission == PermissionCanEdit:
			return LevelEdit, nil
		case sh.Permission == PermissionViewOnly:
			return LevelView, nil
		}
	}

	return LevelNone, nil
}

// Intent tells Authorize whether the caller wants to read or change the setlist.
type Intent int

const (
	IntentRead Intent = iota
	IntentWrite
)

// Authorize fails unless the caller holds at least want. A read by a caller without
// any access gets ErrNotFound so private setlists do not leak their existence. Every
// other denial, and every denied write, is ErrForbidden naming the capability.
func (r *Resolver) Authorize(ctx context.Context, sl *SetList, c Caller, want Level, intent Intent) (Level, error) {
	got, err := r.Level(ctx, sl, c)
	if err != nil {
		return LevelNone, err
	}
	if got >= want {
		return got, nil
	}
	if got == LevelNone && intent == IntentRead {
		return got, notFound("setlist not found")
	}
	return got, forbidden("%s access required", want)
}
