// Package postgres implements storage.Store on top of PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spigell/love-machine/internal/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// New creates a connection pool and verifies the connection.
func New(ctx context.Context, dbURL string, logger *zap.Logger) (*Store, error) {
	const op = "storage/postgres/New"

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{db: db, logger: logger}, nil
}

// Migrate applies the embedded schema migrations in order. Applied versions
// are tracked in schema_migrations.
func (s *Store) Migrate(ctx context.Context) error {
	const op = "storage/postgres/Migrate"

	if _, err := s.db.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	names, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	sort.Strings(names)

	for _, name := range names {
		var applied bool
		if err := s.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, name,
		).Scan(&applied); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if applied {
			continue
		}

		body, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		tx, err := s.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if _, err := tx.Exec(ctx, string(body)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("%s: %s: %w", op, name, err)
		}

		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("%s: %w", op, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		s.logger.Info("migration applied", zap.String("name", name))
	}

	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the pool. It must be called on shutdown.
func (s *Store) Close() {
	s.db.Close()
}

var _ storage.Store = (*Store)(nil)
