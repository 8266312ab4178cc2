package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/mtms/internal/common"
	"github.com/dmitrijs2005/mtms/internal/dbx"
	"github.com/dmitrijs2005/mtms/internal/snapshot/snapshottest"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	qDeleteTransfers = `(?s)^DELETE\s+FROM\s+transfers$`
	qDeleteUsers     = `(?s)^DELETE\s+FROM\s+users$`
	qInsertUser      = `(?s)^INSERT\s+INTO\s+users\s*\(position,\s*id,\s*username,\s*credential,\s*full_name,\s*role,\s*created_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7\)$`
	qInsertTransfer  = `(?s)^INSERT\s+INTO\s+transfers\s*\(.+\)\s*VALUES\s*\(\$1,.*\$11\)$`
	qUpsertMeta      = `(?s)^INSERT\s+INTO\s+snapshot_meta.+VALUES\s*\(1,\s*\$1,\s*\$2\)\s*ON\s+CONFLICT`
	qSelectMeta      = `(?s)^SELECT\s+schema_version\s+FROM\s+snapshot_meta\s+WHERE\s+id\s*=\s*1$`
	qSelectUsers     = `(?s)^SELECT\s+id,\s*username,.+FROM\s+users\s+ORDER\s+BY\s+position$`
	qSelectTransfers = `(?s)^SELECT\s+id,\s*customer_name,.+FROM\s+transfers\s+ORDER\s+BY\s+position$`
)

func newPostgresWithMock(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	s := New(db, dbx.Postgres)
	s.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return s, mock, db
}

func TestPostgres_SaveReplacesTablesInOneTx(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	snap := snapshottest.Sample()

	mock.ExpectBegin()
	mock.ExpectExec(qDeleteTransfers).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(qDeleteUsers).WillReturnResult(sqlmock.NewResult(0, 2))
	for i, u := range snap.Users {
		mock.ExpectExec(qInsertUser).
			WithArgs(i, u.ID, u.Username, u.Credential, u.FullName, string(u.Role), u.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	tr0 := snap.Transfers[0]
	mock.ExpectExec(qInsertTransfer).
		WithArgs(0, tr0.ID, tr0.CustomerName, tr0.BankAccount, "100", tr0.CreatedAt,
			tr0.CreatedBy, tr0.CreatorName, "reached", *tr0.UpdatedAt, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	tr1 := snap.Transfers[1]
	mock.ExpectExec(qInsertTransfer).
		WithArgs(1, tr1.ID, tr1.CustomerName, tr1.BankAccount, "2500.75", tr1.CreatedAt,
			tr1.CreatedBy, tr1.CreatorName, "pending", nil, int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(qUpsertMeta).
		WithArgs(1, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Save(context.Background(), snap))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveRollsBackOnInsertError(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(qDeleteTransfers).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(qDeleteUsers).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(qInsertUser).WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	err := s.Save(context.Background(), snapshottest.Sample())
	require.ErrorIs(t, err, common.ErrPersistence)
	assert.Contains(t, err.Error(), "db down")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LoadWithoutMetaIsEmpty(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qSelectMeta).WillReturnError(sql.ErrNoRows)

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Users)
	assert.Empty(t, got.Transfers)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LoadReadsRowsInOrder(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	want := snapshottest.Sample()

	mock.ExpectQuery(qSelectMeta).
		WillReturnRows(sqlmock.NewRows([]string{"schema_version"}).AddRow(1))

	userRows := sqlmock.NewRows([]string{"id", "username", "credential", "full_name", "role", "created_at"})
	for _, u := range want.Users {
		userRows.AddRow(u.ID, u.Username, u.Credential, u.FullName, string(u.Role), u.CreatedAt)
	}
	mock.ExpectQuery(qSelectUsers).WillReturnRows(userRows)

	transferRows := sqlmock.NewRows([]string{"id", "customer_name", "bank_account", "amount", "created_at",
		"created_by", "creator_name", "status", "updated_at", "version"})
	for _, tr := range want.Transfers {
		var updated any
		if tr.UpdatedAt != nil {
			updated = *tr.UpdatedAt
		}
		transferRows.AddRow(tr.ID, tr.CustomerName, tr.BankAccount, tr.Amount.String(), tr.CreatedAt,
			tr.CreatedBy, tr.CreatorName, string(tr.Status), updated, tr.Version)
	}
	mock.ExpectQuery(qSelectTransfers).WillReturnRows(transferRows)

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	snapshottest.AssertSnapshotsEqual(t, want, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LoadWrapsQueryErrors(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qSelectMeta).
		WillReturnRows(sqlmock.NewRows([]string{"schema_version"}).AddRow(1))
	mock.ExpectQuery(qSelectUsers).WillReturnError(errors.New("connection reset"))

	_, err := s.Load(context.Background())
	require.ErrorIs(t, err, common.ErrPersistence)
}

func TestPostgres_LoadRejectsFutureSchema(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qSelectMeta).
		WillReturnRows(sqlmock.NewRows([]string{"schema_version"}).AddRow(7))
	mock.ExpectQuery(qSelectUsers).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "credential", "full_name", "role", "created_at"}))
	mock.ExpectQuery(qSelectTransfers).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_name", "bank_account", "amount", "created_at",
			"created_by", "creator_name", "status", "updated_at", "version"}))

	_, err := s.Load(context.Background())
	require.ErrorIs(t, err, common.ErrUnsupportedSchema)
}

func TestRunMigrations_UsesDialectDirectory(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}

	require.NoError(t, RunMigrations(context.Background(), db, dbx.Postgres))
	assert.Equal(t, ".", gotDir)
}

func TestRunMigrations_PropagatesError(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}

	err = RunMigrations(context.Background(), db, dbx.Postgres)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
