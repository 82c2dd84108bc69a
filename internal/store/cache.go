package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AnalysisCache persists language model responses keyed by a prompt hash, so
// a label set that was already analysed does not cost another model call.
type AnalysisCache struct {
	db *sql.DB
}

// NewAnalysisCache creates the cache and initialises its schema.
func NewAnalysisCache(db *sql.DB) (*AnalysisCache, error) {
	c := &AnalysisCache{db: db}
	if err := c.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return c, nil
}

// currentSchemaVersion is bumped whenever the schema changes.
const currentSchemaVersion = 1

func (c *AnalysisCache) migrate() error {
	if _, err := c.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := c.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := c.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// Index 0 = migration from v0 to v1, etc.
	migrations := []func() error{
		c.migrateV1, // v0 → v1: analysis_cache table
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := c.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}
	return nil
}

func (c *AnalysisCache) migrateV1() error {
	_, err := c.db.Exec(`
	CREATE TABLE IF NOT EXISTS analysis_cache (
		prompt_hash TEXT PRIMARY KEY,
		response    TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);`)
	return err
}

// Get returns the cached response for hash. ok is false on a miss.
func (c *AnalysisCache) Get(ctx context.Context, hash string) (response string, ok bool, err error) {
	err = c.db.QueryRowContext(ctx, `SELECT response FROM analysis_cache WHERE prompt_hash = ?`, hash).Scan(&response)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return response, true, nil
}

// Set stores or replaces the response for hash.
func (c *AnalysisCache) Set(ctx context.Context, hash, response string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO analysis_cache (prompt_hash, response, created_at) VALUES (?, ?, ?)
		ON CONFLICT(prompt_hash) DO UPDATE SET response = excluded.response, created_at = excluded.created_at`,
		hash, response, now,
	)
	return err
}

// Len returns the number of cached responses.
func (c *AnalysisCache) Len(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_cache`).Scan(&n)
	return n, err
}
