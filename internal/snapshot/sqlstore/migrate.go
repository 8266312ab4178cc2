package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sync"

	"github.com/dmitrijs2005/mtms/internal/dbx"
	"github.com/dmitrijs2005/mtms/internal/snapshot/sqlstore/migrations"
	"github.com/pressly/goose/v3"
)

var gooseUpContext = goose.UpContext

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

func dialectDir(d dbx.Dialect) string {
	if d == dbx.Postgres {
		return "postgres"
	}
	return "sqlite"
}

// RunMigrations brings the schema of db up to date for dialect d.
func RunMigrations(ctx context.Context, db *sql.DB, d dbx.Dialect) error {
	sub, err := fs.Sub(migrations.FS, dialectDir(d))
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(sub)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(d.Goose); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
