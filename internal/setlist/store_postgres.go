package setlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"setlist-service/internal/position"
)

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PostgresStore struct {
	db   DBTX
	inTx bool
}

func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// mapErr turns driver errors into the store's error kinds.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}

func expectOne(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RunAtomic(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&PostgresStore{db: tx, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", mapErr(err))
	}
	return nil
}

func (s *PostgresStore) LockSetlist(ctx context.Context, setlistID string) error {
	var id string
	err := s.db.QueryRow(ctx, `
		SELECT id FROM setlists WHERE id = $1 FOR UPDATE
	`, setlistID).Scan(&id)
	return mapErr(err)
}

func (s *PostgresStore) FindSetlist(ctx context.Context, id string) (*SetList, error) {
	var sl SetList
	err := s.db.QueryRow(ctx, `
		SELECT id, name, description, owner_id, group_id, is_private, created_at, updated_at
		FROM setlists
		WHERE id = $1
	`, id).Scan(
		&sl.ID, &sl.Name, &sl.Description, &sl.OwnerID, &sl.GroupID,
		&sl.IsPrivate, &sl.CreatedAt, &sl.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &sl, nil
}

func (s *PostgresStore) CreateSetlist(ctx context.Context, sl *SetList) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO setlists (id, name, description, owner_id, group_id, is_private, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, sl.ID, sl.Name, sl.Description, sl.OwnerID, sl.GroupID, sl.IsPrivate, sl.CreatedAt, sl.UpdatedAt)
	return mapErr(err)
}

const itemColumns = `id, setlist_id, track_id, position, custom_tuning, notes, custom_duration, section_id, created_at`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(
		&it.ID, &it.SetlistID, &it.TrackID, &it.Position,
		&it.CustomTuning, &it.Notes, &it.CustomDuration, &it.SectionID, &it.CreatedAt,
	)
	return it, err
}

func (s *PostgresStore) ListItems(ctx context.Context, setlistID string) ([]Item, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+itemColumns+`
		FROM set_items
		WHERE setlist_id = $1
		ORDER BY position ASC
	`, setlistID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *PostgresStore) FindItem(ctx context.Context, setlistID, id string) (*Item, error) {
	it, err := scanItem(s.db.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM set_items
		WHERE id = $1 AND setlist_id = $2
	`, id, setlistID))
	if err != nil {
		return nil, mapErr(err)
	}
	return &it, nil
}

func (s *PostgresStore) CreateItem(ctx context.Context, it *Item) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO set_items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, it.ID, it.SetlistID, it.TrackID, it.Position,
		it.CustomTuning, it.Notes, it.CustomDuration, it.SectionID, it.CreatedAt)
	return mapErr(err)
}

func (s *PostgresStore) UpdateItem(ctx context.Context, it *Item) error {
	return expectOne(s.db.Exec(ctx, `
		UPDATE set_items
		SET custom_tuning = $3, notes = $4, custom_duration = $5, section_id = $6
		WHERE id = $1 AND setlist_id = $2
	`, it.ID, it.SetlistID, it.CustomTuning, it.Notes, it.CustomDuration, it.SectionID))
}

func (s *PostgresStore) DeleteItem(ctx context.Context, setlistID, id string) error {
	return expectOne(s.db.Exec(ctx, `
		DELETE FROM set_items WHERE id = $1 AND setlist_id = $2
	`, id, setlistID))
}

func (s *PostgresStore) SetItemPosition(ctx context.Context, setlistID, id string, pos int) error {
	return expectOne(s.db.Exec(ctx, `
		UPDATE set_items
		SET position = $3
		WHERE id = $1 AND setlist_id = $2
	`, id, setlistID, pos))
}

const sectionColumns = `id, setlist_id, name, position, break_duration, created_at`

func scanSection(row pgx.Row) (Section, error) {
	var sec Section
	err := row.Scan(&sec.ID, &sec.SetlistID, &sec.Name, &sec.Position, &sec.BreakDuration, &sec.CreatedAt)
	return sec, err
}

func (s *PostgresStore) ListSections(ctx context.Context, setlistID string) ([]Section, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+sectionColumns+`
		FROM set_sections
		WHERE setlist_id = $1
		ORDER BY position ASC
	`, setlistID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	sections := []Section{}
	for rows.Next() {
		sec, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		sections = append(sections, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sections, nil
}

func (s *PostgresStore) FindSection(ctx context.Context, setlistID, id string) (*Section, error) {
	sec, err := scanSection(s.db.QueryRow(ctx, `
		SELECT `+sectionColumns+`
		FROM set_sections
		WHERE id = $1 AND setlist_id = $2
	`, id, setlistID))
	if err != nil {
		return nil, mapErr(err)
	}
	return &sec, nil
}

func (s *PostgresStore) CreateSection(ctx context.Context, sec *Section) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO set_sections (`+sectionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sec.ID, sec.SetlistID, sec.Name, sec.Position, sec.BreakDuration, sec.CreatedAt)
	return mapErr(err)
}

func (s *PostgresStore) UpdateSection(ctx context.Context, sec *Section) error {
	return expectOne(s.db.Exec(ctx, `
		UPDATE set_sections
		SET name = $3, break_duration = $4
		WHERE id = $1 AND setlist_id = $2
	`, sec.ID, sec.SetlistID, sec.Name, sec.BreakDuration))
}

func (s *PostgresStore) DeleteSection(ctx context.Context, setlistID, id string) error {
	return expectOne(s.db.Exec(ctx, `
		DELETE FROM set_sections WHERE id = $1 AND setlist_id = $2
	`, id, setlistID))
}

func (s *PostgresStore) SetSectionPosition(ctx context.Context, setlistID, id string, pos int) error {
	return expectOne(s.db.Exec(ctx, `
		UPDATE set_sections
		SET position = $3
		WHERE id = $1 AND setlist_id = $2
	`, id, setlistID, pos))
}

func (s *PostgresStore) UnsectionItems(ctx context.Context, setlistID, sectionID string) (int, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE set_items
		SET section_id = NULL
		WHERE setlist_id = $1 AND section_id = $2
	`, setlistID, sectionID)
	if err != nil {
		return 0, mapErr(err)
	}
	return int(tag.RowsAffected()), nil
}

func collectionTable(kind position.Kind) (string, error) {
	switch kind {
	case position.KindItem:
		return "set_items", nil
	case position.KindSection:
		return "set_sections", nil
	default:
		return "", fmt.Errorf("unknown collection %q", kind)
	}
}

func (s *PostgresStore) MaxPosition(ctx context.Context, setlistID string, kind position.Kind) (*int, error) {
	table, err := collectionTable(kind)
	if err != nil {
		return nil, err
	}
	var max *int
	if err := s.db.QueryRow(ctx, `SELECT MAX(position) FROM `+table+` WHERE setlist_id = $1`, setlistID).Scan(&max); err != nil {
		return nil, mapErr(err)
	}
	return max, nil
}

func (s *PostgresStore) PositionTaken(ctx context.Context, setlistID string, kind position.Kind, pos int) (bool, error) {
	table, err := collectionTable(kind)
	if err != nil {
		return false, err
	}
	var exists bool
	err = s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM `+table+` WHERE setlist_id = $1 AND position = $2)
	`, setlistID, pos).Scan(&exists)
	return exists, mapErr(err)
}

func (s *PostgresStore) TrackExists(ctx context.Context, trackID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tracks WHERE id = $1)`, trackID).Scan(&exists)
	return exists, mapErr(err)
}

func (s *PostgresStore) IsGroupMember(ctx context.Context, groupID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)
	`, groupID, userID).Scan(&exists)
	return exists, mapErr(err)
}

const shareColumns = `id, setlist_id, token, permission, expires_at, created_by, created_at`

func scanShare(row pgx.Row) (Share, error) {
	var sh Share
	err := row.Scan(&sh.ID, &sh.SetlistID, &sh.Token, &sh.Permission, &sh.ExpiresAt, &sh.CreatedBy, &sh.CreatedAt)
	return sh, err
}

func (s *PostgresStore) FindShareByToken(ctx context.Context, token string) (*Share, error) {
	sh, err := scanShare(s.db.QueryRow(ctx, `
		SELECT `+shareColumns+`
		FROM setlist_shares
		WHERE token = $1
	`, token))
	if err != nil {
		return nil, mapErr(err)
	}
	return &sh, nil
}

func (s *PostgresStore) ListShares(ctx context.Context, setlistID string) ([]Share, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+shareColumns+`
		FROM setlist_shares
		WHERE setlist_id = $1
		ORDER BY created_at ASC
	`, setlistID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	shares := []Share{}
	for rows.Next() {
		sh, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		shares = append(shares, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return shares, nil
}

func (s *PostgresStore) CreateShare(ctx context.Context, sh *Share) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO setlist_shares (`+shareColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sh.ID, sh.SetlistID, sh.Token, string(sh.Permission), sh.ExpiresAt, sh.CreatedBy, sh.CreatedAt)
	return mapErr(err)
}

func (s *PostgresStore) DeleteShare(ctx context.Context, setlistID, id string) error {
	return expectOne(s.db.Exec(ctx, `
		DELETE FROM setlist_shares WHERE id = $1 AND setlist_id = $2
	`, id, setlistID))
}
