package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/farmsync/internal/client/models"
	"github.com/dmitrijs2005/farmsync/internal/common"
	"github.com/dmitrijs2005/farmsync/internal/dbx"
)

// timeLayout keeps a fixed width so that TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const columns = `id, data, is_deleted, deleted_at, created_at, updated_at, _last_modified, _synced`

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var envelopeColumns = map[string]struct{}{
	"id": {}, "is_deleted": {}, "deleted_at": {}, "created_at": {},
	"updated_at": {}, "_last_modified": {}, "_synced": {},
}

// SQLiteRepository implements Repository over a DBTX (either *sql.DB or *sql.Tx).
// The table name is checked against the registry before it is used in SQL.
type SQLiteRepository struct {
	db    dbx.DBTX
	table models.Table
}

// NewSQLiteRepository binds table to db.
func NewSQLiteRepository(db dbx.DBTX, table models.Table) (*SQLiteRepository, error) {
	if _, err := models.LookupTable(table); err != nil {
		return nil, err
	}
	return &SQLiteRepository{db: db, table: table}, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, columns, r.table)

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s/%s: %w", r.table, id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", r.table, id, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) Query(ctx context.Context, f Filter) ([]models.Record, error) {
	if f.IDs != nil && len(f.IDs) == 0 {
		return nil, nil
	}

	var (
		where []string
		args  []any
	)

	if !f.IncludeDeleted {
		where = append(where, "is_deleted = 0")
	}
	if len(f.IDs) > 0 {
		where = append(where, "id IN ("+strings.TrimSuffix(strings.Repeat("?,", len(f.IDs)), ",")+")")
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	if f.DirtyOnly {
		where = append(where, "(_synced IS NULL OR _synced <> 1)")
	}

	keys := make([]string, 0, len(f.Where))
	for k := range f.Where {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if !identRe.MatchString(k) {
			return nil, fmt.Errorf("%w: bad field name %q", common.ErrConstraint, k)
		}
		where = append(where, fmt.Sprintf("json_extract(data, '$.%s') = ?", k))
		args = append(args, f.Where[k])
	}

	order, err := orderExpr(f.OrderBy)
	if err != nil {
		return nil, err
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", columns, r.table)
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	fmt.Fprintf(&sb, " ORDER BY %s %s, id %s", order, dir, dir)
	if f.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", r.table, err)
	}
	defer rows.Close()

	var result []models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", r.table, err)
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", r.table, err)
	}
	return result, nil
}

func orderExpr(field string) (string, error) {
	if field == "" {
		return "created_at", nil
	}
	if !identRe.MatchString(field) {
		return "", fmt.Errorf("%w: bad order field %q", common.ErrConstraint, field)
	}
	if _, ok := envelopeColumns[field]; ok {
		return field, nil
	}
	return fmt.Sprintf("json_extract(data, '$.%s')", field), nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, rec models.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: %s record without id", common.ErrConstraint, r.table)
	}

	fields := rec.Fields
	if fields == nil {
		fields = models.Fields{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("%w: %s/%s fields: %v", common.ErrConstraint, r.table, rec.ID, err)
	}

	var deletedAt any
	if rec.DeletedAt != nil {
		deletedAt = formatTime(*rec.DeletedAt)
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			is_deleted = excluded.is_deleted,
			deleted_at = excluded.deleted_at,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			_last_modified = excluded._last_modified,
			_synced = excluded._synced`, r.table, columns)

	_, err = r.db.ExecContext(ctx, query,
		rec.ID, string(data), boolToInt(rec.IsDeleted), deletedAt,
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt), rec.LastModified, rec.Synced)
	if err != nil {
		return fmt.Errorf("failed to upsert %s/%s: %w", r.table, rec.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, lastModified int64) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET _synced = 1 WHERE id = ? AND _last_modified = ?`, r.table)

	res, err := r.db.ExecContext(ctx, query, id, lastModified)
	if err != nil {
		return false, fmt.Errorf("failed to mark %s/%s synced: %w", r.table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) CountDirty(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE _synced IS NULL OR _synced <> 1`, r.table)

	var n int
	if err := r.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count dirty %s: %w", r.table, err)
	}
	return n, nil
}

// DeleteAll removes every row, tombstones included.
func (r *SQLiteRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, r.table)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", r.table, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.Record, error) {
	var (
		rec       models.Record
		data      string
		isDeleted int
		deletedAt sql.NullString
		createdAt string
		updatedAt string
	)

	if err := s.Scan(&rec.ID, &data, &isDeleted, &deletedAt, &createdAt, &updatedAt, &rec.LastModified, &rec.Synced); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(data), &rec.Fields); err != nil {
		return nil, fmt.Errorf("record %s: bad data: %w", rec.ID, err)
	}
	if rec.Fields == nil {
		rec.Fields = models.Fields{}
	}
	rec.IsDeleted = isDeleted != 0

	var err error
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		t, err := parseTime(deletedAt.String)
		if err != nil {
			return nil, err
		}
		rec.DeletedAt = &t
	}
	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
