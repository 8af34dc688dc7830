package setlist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"setlist-service/internal/position"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresStore(mock), mock
}

var itemRowColumns = []string{
	"id", "setlist_id", "track_id", "position",
	"custom_tuning", "notes", "custom_duration", "section_id", "created_at",
}

func TestPostgresRunAtomicCommits(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE set_items").
		WithArgs("i1", "sl1", -1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := store.RunAtomic(ctx, func(tx Store) error {
		return tx.SetItemPosition(ctx, "sl1", "i1", -1)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunAtomicRollsBack(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE set_items").
		WithArgs("i1", "sl1", -1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := store.RunAtomic(ctx, func(tx Store) error {
		if err := tx.SetItemPosition(ctx, "sl1", "i1", -1); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUniqueViolationIsConflict(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO set_items").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_set_items_setlist_position"})

	err := store.CreateItem(ctx, &Item{ID: "i1", SetlistID: "sl1", TrackID: "t1", Position: 0})
	require.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "idx_set_items_setlist_position")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindSetlist(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery("FROM setlists").
		WithArgs("sl1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "description", "owner_id", "group_id", "is_private", "created_at", "updated_at",
		}).AddRow("sl1", "Gig", nil, "owner", nil, true, created, created))
	mock.ExpectQuery("FROM setlists").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	sl, err := store.FindSetlist(ctx, "sl1")
	require.NoError(t, err)
	assert.Equal(t, "Gig", sl.Name)
	assert.Equal(t, "owner", sl.OwnerID)
	assert.Nil(t, sl.GroupID)
	assert.True(t, sl.IsPrivate)

	_, err = store.FindSetlist(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteMissingRow(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM set_items").
		WithArgs("i1", "sl1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("DELETE FROM setlist_shares").
		WithArgs("sh1", "sl1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	assert.ErrorIs(t, store.DeleteItem(ctx, "sl1", "i1"), ErrNotFound)
	assert.NoError(t, store.DeleteShare(ctx, "sl1", "sh1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMaxPosition(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)
	four := 4

	mock.ExpectQuery("SELECT MAX\\(position\\) FROM set_items").
		WithArgs("sl1").
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(nil))
	mock.ExpectQuery("SELECT MAX\\(position\\) FROM set_sections").
		WithArgs("sl1").
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(&four))

	max, err := store.MaxPosition(ctx, "sl1", position.KindItem)
	require.NoError(t, err)
	assert.Nil(t, max)
	assert.Equal(t, 0, position.Next(max))

	max, err = store.MaxPosition(ctx, "sl1", position.KindSection)
	require.NoError(t, err)
	require.NotNil(t, max)
	assert.Equal(t, 5, position.Next(max))

	_, err = store.MaxPosition(ctx, "sl1", position.Kind("venue"))
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUnsectionItems(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)

	mock.ExpectExec("SET section_id = NULL").
		WithArgs("sl1", "sec1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := store.UnsectionItems(ctx, "sl1", "sec1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The reorder must park every moved row on a negative position before any row takes
// its final one, all inside one transaction holding the setlist row lock.
func TestPostgresReorderWritesTwoPhases(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	itemRows := func(pos ...int) *pgxmock.Rows {
		rows := pgxmock.NewRows(itemRowColumns)
		for i, id := range []string{"i0", "i1", "i2"} {
			rows.AddRow(id, "sl1", "t1", pos[i], nil, nil, nil, nil, created)
		}
		return rows
	}

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("sl1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("sl1"))
	mock.ExpectQuery("FROM setlists").
		WithArgs("sl1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "description", "owner_id", "group_id", "is_private", "created_at", "updated_at",
		}).AddRow("sl1", "Gig", nil, "owner", nil, true, created, created))
	mock.ExpectQuery("FROM set_items").
		WithArgs("sl1").
		WillReturnRows(itemRows(0, 1, 2))
	mock.ExpectExec("UPDATE set_items").WithArgs("i2", "sl1", -1).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE set_items").WithArgs("i0", "sl1", -2).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE set_items").WithArgs("i2", "sl1", 0).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE set_items").WithArgs("i0", "sl1", 2).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("FROM set_items").
		WithArgs("sl1").
		WillReturnRows(itemRows(2, 1, 0))
	mock.ExpectCommit()

	svc := NewService(store, staticIdentity{"tok-owner": {UserID: "owner"}})
	items, err := svc.ReorderItems(ctx, ownerCred, "sl1", []position.Move{
		{ID: "i2", Position: 0},
		{ID: "i0", Position: 2},
	})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}
