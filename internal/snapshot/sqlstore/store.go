// Package sqlstore persists snapshots in a relational database, either an
// embedded SQLite file or a PostgreSQL server. Every Save replaces the
// contents of the tables inside a single transaction.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/mtms/internal/common"
	"github.com/dmitrijs2005/mtms/internal/dbx"
	"github.com/dmitrijs2005/mtms/internal/models"
	"github.com/dmitrijs2005/mtms/internal/snapshot"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Store struct {
	db      *sql.DB
	dialect dbx.Dialect
	now     func() time.Time
}

// New wraps an already opened database. The schema is expected to be
// migrated; see RunMigrations.
func New(db *sql.DB, d dbx.Dialect) *Store {
	return &Store{db: db, dialect: d, now: time.Now}
}

// OpenSQLite opens (creating if needed) the SQLite database at path and
// migrates it.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open(dbx.SQLite.Driver, path)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between the tx and plain reads
	db.SetMaxOpenConns(1)
	return open(ctx, db, dbx.SQLite)
}

// OpenPostgres connects to dsn and migrates the database.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open(dbx.Postgres.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	return open(ctx, db, dbx.Postgres)
}

func open(ctx context.Context, db *sql.DB, d dbx.Dialect) (*Store, error) {
	if err := RunMigrations(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return New(db, d), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context) (*models.Snapshot, error) {
	version, err := s.loadMeta(ctx, s.db)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return snapshot.Empty(), nil
		}
		return nil, common.Persistence("load snapshot meta", err)
	}

	users, err := s.loadUsers(ctx, s.db)
	if err != nil {
		return nil, common.Persistence("load users", err)
	}
	transfers, err := s.loadTransfers(ctx, s.db)
	if err != nil {
		return nil, common.Persistence("load transfers", err)
	}

	return snapshot.Normalize(&models.Snapshot{
		SchemaVersion: version,
		Users:         users,
		Transfers:     transfers,
	})
}

func (s *Store) Save(ctx context.Context, snap *models.Snapshot) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transfers`); err != nil {
			return fmt.Errorf("clear transfers: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
			return fmt.Errorf("clear users: %w", err)
		}
		if err := s.insertUsers(ctx, tx, snap.Users); err != nil {
			return err
		}
		if err := s.insertTransfers(ctx, tx, snap.Transfers); err != nil {
			return err
		}
		return s.saveMeta(ctx, tx)
	})
	return common.Persistence("save snapshot", err)
}

func (s *Store) loadMeta(ctx context.Context, q dbx.DBTX) (int, error) {
	var version int
	err := q.QueryRowContext(ctx, `SELECT schema_version FROM snapshot_meta WHERE id = 1`).Scan(&version)
	return version, err
}

func (s *Store) saveMeta(ctx context.Context, tx dbx.DBTX) error {
	query := s.dialect.Rebind(
		`INSERT INTO snapshot_meta (id, schema_version, saved_at)
		 VALUES (1, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET schema_version = excluded.schema_version, saved_at = excluded.saved_at`)

	if _, err := tx.ExecContext(ctx, query, snapshot.CurrentSchemaVersion, s.dialect.TimeArg(s.now())); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	return nil
}
