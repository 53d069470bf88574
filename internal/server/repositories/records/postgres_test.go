package records

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/farmsync/internal/common"
	"github.com/dmitrijs2005/farmsync/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

const getQ = `(?s)^SELECT\s+payload,\s*is_deleted,\s*modified_at,\s*version\s+FROM\s+records\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+table_name\s*=\s*\$2\s+AND\s+id\s*=\s*\$3\s*$`

func TestGet(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(getQ).
		WithArgs("u-1", "plots", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"payload", "is_deleted", "modified_at", "version"}).
			AddRow([]byte(`{"id":"p1"}`), false, int64(1000), int64(3)))

	got, err := repo.Get(context.Background(), "u-1", "plots", "p1")
	require.NoError(t, err)
	assert.Equal(t, &models.Record{
		UserID: "u-1", Table: "plots", ID: "p1",
		Payload: []byte(`{"id":"p1"}`), ModifiedAt: 1000, Version: 3,
	}, got)
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(getQ).WithArgs("u-1", "plots", "nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "u-1", "plots", "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpsert(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^INSERT\s+INTO\s+records\s*\(user_id,.*\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7\)\s*ON\s+CONFLICT\s*\(user_id,\s*table_name,\s*id\)\s*DO\s+UPDATE\s+SET.*$`
	mock.ExpectExec(q).
		WithArgs("u-1", "crops", "c1", `{"id":"c1"}`, true, int64(2000), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), &models.Record{
		UserID: "u-1", Table: "crops", ID: "c1", Payload: []byte(`{"id":"c1"}`),
		IsDeleted: true, ModifiedAt: 2000, Version: 5,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+records`).WillReturnError(errors.New("db down"))

	err := repo.Upsert(context.Background(), &models.Record{UserID: "u", Table: "t", ID: "i"})
	assert.ErrorContains(t, err, "db error: db down")
}

func TestListSince(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^SELECT\s+id,\s*payload,\s*is_deleted,\s*modified_at,\s*version\s+FROM\s+records\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+table_name\s*=\s*\$2\s+AND\s+version\s*>\s*\$3\s+ORDER\s+BY\s+version\s+LIMIT\s+\$4\s*$`
	mock.ExpectQuery(q).
		WithArgs("u-1", "plots", int64(2), 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "payload", "is_deleted", "modified_at", "version"}).
			AddRow("p1", []byte(`{}`), false, int64(10), int64(3)).
			AddRow("p2", []byte(`{}`), true, int64(11), int64(4)))

	got, err := repo.ListSince(context.Background(), "u-1", "plots", 2, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ID)
	assert.True(t, got[1].IsDeleted)
	assert.Equal(t, int64(4), got[1].Version)
	assert.Equal(t, "plots", got[1].Table)
}

func TestListSince_ScanError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "payload", "is_deleted", "modified_at", "version"}).
			AddRow("p1", []byte(`{}`), false, "not-a-number", int64(3)))

	_, err := repo.ListSince(context.Background(), "u-1", "plots", 0, 10)
	assert.ErrorContains(t, err, "db error")
}
