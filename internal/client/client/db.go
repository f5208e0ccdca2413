package client

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/gatherhall/doorsync/internal/client/migrations"
	"github.com/gatherhall/doorsync/internal/client/repositories/metadata"
	"github.com/gatherhall/doorsync/internal/client/repositories/queue"
	"github.com/gatherhall/doorsync/internal/client/repositories/snapshots"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Repositories groups the client's local stores around one SQLite database.
type Repositories struct {
	Queue     queue.Repository
	Snapshots snapshots.Repository
	Metadata  metadata.Repository
	DB        *sql.DB
}

// RunMigrations applies the embedded goose migrations to the local database.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens (creating if needed) the local database, migrates it,
// and wires the repositories. snapshotTTL <= 0 uses the default 24h.
func InitDatabase(ctx context.Context, dsn string, snapshotTTL time.Duration) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open local db: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return &Repositories{
		Queue:     queue.NewSQLiteRepository(db),
		Snapshots: snapshots.NewSQLiteRepository(db, snapshotTTL),
		Metadata:  metadata.NewSQLiteRepository(db),
		DB:        db,
	}, nil
}
