package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/farmsync/internal/common"
	"github.com/dmitrijs2005/farmsync/internal/dbx"
	"github.com/dmitrijs2005/farmsync/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, userID, table, id string) (*models.Record, error) {
	query :=
		`SELECT payload, is_deleted, modified_at, version FROM records
		 WHERE user_id = $1 AND table_name = $2 AND id = $3
		 `

	rec := &models.Record{UserID: userID, Table: table, ID: id}
	err := r.db.QueryRowContext(ctx, query, userID, table, id).
		Scan(&rec.Payload, &rec.IsDeleted, &rec.ModifiedAt, &rec.Version)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return rec, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, rec *models.Record) error {
	query :=
		`INSERT INTO records (user_id, table_name, id, payload, is_deleted, modified_at, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id, table_name, id) DO UPDATE SET
		     payload = EXCLUDED.payload,
		     is_deleted = EXCLUDED.is_deleted,
		     modified_at = EXCLUDED.modified_at,
		     version = EXCLUDED.version
		 `

	_, err := r.db.ExecContext(ctx, query,
		rec.UserID, rec.Table, rec.ID, string(rec.Payload), rec.IsDeleted, rec.ModifiedAt, rec.Version)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) ListSince(ctx context.Context, userID, table string, since int64, limit int) ([]models.Record, error) {
	query :=
		`SELECT id, payload, is_deleted, modified_at, version FROM records
		 WHERE user_id = $1 AND table_name = $2 AND version > $3
		 ORDER BY version
		 LIMIT $4
		 `

	rows, err := r.db.QueryContext(ctx, query, userID, table, since, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Record
	for rows.Next() {
		rec := models.Record{UserID: userID, Table: table}
		if err := rows.Scan(&rec.ID, &rec.Payload, &rec.IsDeleted, &rec.ModifiedAt, &rec.Version); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
