package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/staffmatch/internal/domain/types"
	"github.com/okian/staffmatch/pkg/logger"
	"github.com/okian/staffmatch/pkg/metrics"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore is a Cache backed by a PostgreSQL table. Each Put is a
// single-row upsert, so readers observe either the old or the new envelope.
type PostgresStore struct {
	pool           *pgxpool.Pool
	logger         logger.Logger
	skipMigrations bool
}

// NewPostgresStore connects to databaseURL and applies pending migrations.
func NewPostgresStore(ctx context.Context, databaseURL string, opts ...PostgresOption) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{pool: pool, logger: logger.Get().Named("pgstore")}
	for _, opt := range opts {
		opt(s)
	}

	if !s.skipMigrations {
		if err := s.RunMigrations(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// RunMigrations executes pending SQL migration files in name order, recording
// each in schema_migrations.
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT filename FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	applied, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("failed to scan applied migrations: %w", err)
	}
	done := make(map[string]bool, len(applied))
	for _, f := range applied {
		done[f] = true
	}

	files, err := pendingMigrations(done)
	if err != nil {
		return err
	}
	for _, filename := range files {
		if err := s.apply(ctx, filename); err != nil {
			return err
		}
		s.logger.Info(ctx, "applied migration", logger.String("file", filename))
	}
	return nil
}

func pendingMigrations(done map[string]bool) ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") && !done[e.Name()] {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func (s *PostgresStore) apply(ctx context.Context, filename string) error {
	content, err := fs.ReadFile(migrationsFS, "migrations/"+filename)
	if err != nil {
		return fmt.Errorf("failed to read migration %s: %w", filename, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for %s: %w", filename, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", filename, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, filename); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", filename, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", filename, err)
	}
	return nil
}

// Get implements Cache.Get.
func (s *PostgresStore) Get(ctx context.Context, requirementID string) (types.CacheEntry, bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordCacheOperation(BackendPostgres, "get", float64(time.Since(start).Microseconds())/1000)
	}()

	var (
		raw        []byte
		computedAt time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT envelope, computed_at FROM recommendation_cache WHERE requirement_id = $1`,
		requirementID,
	).Scan(&raw, &computedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.CacheEntry{}, false, nil
	}
	if err != nil {
		return types.CacheEntry{}, false, fmt.Errorf("failed to read cache entry %s: %w", requirementID, err)
	}

	var env types.RecommendationEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return types.CacheEntry{}, false, fmt.Errorf("failed to decode cache entry %s: %w", requirementID, err)
	}
	return types.CacheEntry{RequirementID: requirementID, Envelope: env, ComputedAt: computedAt.UTC()}, true, nil
}

// Put implements Cache.Put.
func (s *PostgresStore) Put(ctx context.Context, requirementID string, env types.RecommendationEnvelope) error {
	start := time.Now()
	defer func() {
		metrics.RecordCacheOperation(BackendPostgres, "put", float64(time.Since(start).Microseconds())/1000)
	}()

	if requirementID == "" {
		return ErrEmptyKey
	}
	if env.RequirementID != requirementID {
		return fmt.Errorf("%w: %q != %q", ErrKeyMismatch, env.RequirementID, requirementID)
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope %s: %w", requirementID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO recommendation_cache (requirement_id, envelope, computed_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (requirement_id) DO UPDATE SET envelope = $2, computed_at = NOW()`,
		requirementID, raw,
	)
	if err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", requirementID, err)
	}
	return nil
}

// Count implements Cache.Count.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM recommendation_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	metrics.UpdateCacheEntries(n)
	return n, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
