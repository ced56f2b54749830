package results

import (
	"context"
	stdsql "database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations

	"github.com/tradecouncil/tradecouncil/pkg/models"
)

//go:embed migrations
var migrationsFS embed.FS

// Store persists completed analyses to Postgres, one row per session.
// Migrations are embedded and applied on startup.
type Store struct {
	pool *pgxpool.Pool
}

var _ Persister = (*Store)(nil)

// NewStore applies pending migrations and opens the connection pool.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if err := runMigrations(dsn); err != nil {
		return nil, fmt.Errorf("results: migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("results: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("results: ping: %w", err)
	}
	slog.Info("Results store connected")
	return &Store{pool: pool}, nil
}

// Persist inserts the completed analysis.
func (s *Store) Persist(ctx context.Context, resp *models.AnalysisResponse) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("results: marshal response: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO analyses (id, ticker, analysis_date, processed_signal, response, error)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), resp.Ticker, resp.AnalysisDate, resp.ProcessedSignal, raw, resp.Error)
	if err != nil {
		return fmt.Errorf("results: insert analysis for %s: %w", resp.Ticker, err)
	}
	return nil
}

// Ping reports store reachability for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// runMigrations applies embedded migrations through a short-lived
// database/sql connection; the pgx pool never sees DDL.
func runMigrations(dsn string) error {
	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer func() { _ = db.Close() }()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return source.Close()
}
