package setlist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestResolverLevel(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	sl := &SetList{ID: "sl1", OwnerID: "owner", GroupID: strPtr("band")}

	t.Run("owner", func(t *testing.T) {
		lookup := new(MockLookup)
		lvl, err := NewResolver(lookup, clock).Level(ctx, sl, Caller{UserID: "owner"})
		require.NoError(t, err)
		assert.Equal(t, LevelOwner, lvl)
		lookup.AssertNotCalled(t, "IsGroupMember", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("group member reads only", func(t *testing.T) {
		lookup := new(MockLookup)
		lookup.On("IsGroupMember", ctx, "band", "drummer").Return(true, nil)

		lvl, err := NewResolver(lookup, clock).Level(ctx, sl, Caller{UserID: "drummer", ShareToken: "edit-tok"})
		require.NoError(t, err)
		assert.Equal(t, LevelView, lvl)
		lookup.AssertNotCalled(t, "FindShareByToken", mock.Anything, mock.Anything)
	})

	t.Run("non member falls through to share", func(t *testing.T) {
		lookup := new(MockLookup)
		lookup.On("IsGroupMember", ctx, "band", "fan").Return(false, nil)
		lookup.On("FindShareByToken", ctx, "edit-tok").
			Return(&Share{SetlistID: "sl1", Permission: PermissionCanEdit}, nil)

		lvl, err := NewResolver(lookup, clock).Level(ctx, sl, Caller{UserID: "fan", ShareToken: "edit-tok"})
		require.NoError(t, err)
		assert.Equal(t, LevelEdit, lvl)
	})

	shareCases := []struct {
		name  string
		share *Share
		err   error
		want  Level
	}{
		{"view only", &Share{SetlistID: "sl1", Permission: PermissionViewOnly}, nil, LevelView},
		{"can edit", &Share{SetlistID: "sl1", Permission: PermissionCanEdit}, nil, LevelEdit},
		{"live expiry", &Share{SetlistID: "sl1", Permission: PermissionCanEdit, ExpiresAt: &future}, nil, LevelEdit},
		{"expired edit", &Share{SetlistID: "sl1", Permission: PermissionCanEdit, ExpiresAt: &past}, nil, LevelNone},
		{"expired view", &Share{SetlistID: "sl1", Permission: PermissionViewOnly, ExpiresAt: &past}, nil, LevelNone},
		{"expires exactly now", &Share{SetlistID: "sl1", Permission: PermissionViewOnly, ExpiresAt: &now}, nil, LevelNone},
		{"other setlist", &Share{SetlistID: "sl2", Permission: PermissionCanEdit}, nil, LevelNone},
		{"unknown token", nil, ErrNotFound, LevelNone},
	}
	for _, tc := range shareCases {
		t.Run("anonymous share "+tc.name, func(t *testing.T) {
			lookup := new(MockLookup)
			if tc.share != nil {
				lookup.On("FindShareByToken", ctx, "tok").Return(tc.share, nil)
			} else {
				lookup.On("FindShareByToken", ctx, "tok").Return(nil, tc.err)
			}

			lvl, err := NewResolver(lookup, clock).Level(ctx, sl, Caller{ShareToken: "tok"})
			require.NoError(t, err)
			assert.Equal(t, tc.want, lvl)
			lookup.AssertNotCalled(t, "IsGroupMember", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("lookup failure is an error", func(t *testing.T) {
		lookup := new(MockLookup)
		lookup.On("FindShareByToken", ctx, "tok").Return(nil, errors.New("connection reset"))

		_, err := NewResolver(lookup, clock).Level(ctx, sl, Caller{ShareToken: "tok"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("nobody", func(t *testing.T) {
		lookup := new(MockLookup)
		lvl, err := NewResolver(lookup, clock).Level(ctx, &SetList{ID: "sl1", OwnerID: "owner"}, Caller{})
		require.NoError(t, err)
		assert.Equal(t, LevelNone, lvl)
	})
}

func TestResolverAuthorize(t *testing.T) {
	ctx := context.Background()
	sl := &SetList{ID: "sl1", OwnerID: "owner"}

	lookup := new(MockLookup)
	lookup.On("FindShareByToken", ctx, "view").Return(&Share{SetlistID: "sl1", Permission: PermissionViewOnly}, nil)
	lookup.On("FindShareByToken", ctx, "edit").Return(&Share{SetlistID: "sl1", Permission: PermissionCanEdit}, nil)
	r := NewResolver(lookup, nil)

	_, err := r.Authorize(ctx, sl, Caller{}, LevelView, IntentRead)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Authorize(ctx, sl, Caller{UserID: "stranger"}, LevelOwner, IntentRead)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Authorize(ctx, sl, Caller{UserID: "stranger"}, LevelEdit, IntentWrite)
	require.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "edit access required", err.Error())

	_, err = r.Authorize(ctx, sl, Caller{}, LevelOwner, IntentWrite)
	require.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "owner access required", err.Error())

	lvl, err := r.Authorize(ctx, sl, Caller{ShareToken: "view"}, LevelView, IntentRead)
	require.NoError(t, err)
	assert.Equal(t, LevelView, lvl)

	_, err = r.Authorize(ctx, sl, Caller{ShareToken: "view"}, LevelEdit, IntentWrite)
	require.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "edit access required", err.Error())

	_, err = r.Authorize(ctx, sl, Caller{ShareToken: "edit"}, LevelOwner, IntentRead)
	require.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "owner access required", err.Error())

	lvl, err = r.Authorize(ctx, sl, Caller{UserID: "owner"}, LevelOwner, IntentWrite)
	require.NoError(t, err)
	assert.Equal(t, LevelOwner, lvl)
}
