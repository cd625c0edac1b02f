// Package cache remembers delegate selections between runs in a sqlite
// database under .bindsmith/.
//
// A selection is keyed by a fingerprint of the configuration, the candidate
// set and the type model, so changing any of them invalidates every
// selection made against the old inputs.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/funvibe/bindsmith/internal/binding"
)

// codegenVersion is bumped when selection or emission semantics change.
// This ensures stale selections are recomputed.
const codegenVersion = "v1"

const schema = `
CREATE TABLE IF NOT EXISTS selections (
	key        TEXT    NOT NULL,
	receiver   TEXT    NOT NULL,
	candidate  TEXT    NOT NULL,
	score      TEXT    NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (key, receiver)
)`

// Selection is one remembered receiver binding.
type Selection struct {
	Receiver  string
	Candidate string
	Score     string
	CreatedAt time.Time
}

// Cache is a sqlite-backed selection store. It is safe for concurrent use.
type Cache struct {
	db *sql.DB
}

// Dir returns the cache directory of a project.
func Dir(projectDir string) string {
	return filepath.Join(projectDir, ".bindsmith")
}

// OpenProject opens the cache database of projectDir, creating it if needed.
func OpenProject(ctx context.Context, projectDir string) (*Cache, error) {
	if err := os.MkdirAll(Dir(projectDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	return Open(ctx, filepath.Join(Dir(projectDir), "cache.db"))
}

// Open opens the database at path. ":memory:" gives a private in-memory
// store.
func Open(ctx context.Context, path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache %s: %w", path, err)
	}
	if path == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

// Lookup returns the selection stored for receiver under key.
func (c *Cache) Lookup(ctx context.Context, key, receiver string) (Selection, bool, error) {
	var (
		sel     Selection
		created int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT receiver, candidate, score, created_at FROM selections WHERE key = ? AND receiver = ?`,
		key, receiver).Scan(&sel.Receiver, &sel.Candidate, &sel.Score, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Selection{}, false, nil
	}
	if err != nil {
		return Selection{}, false, fmt.Errorf("reading selection for %s: %w", receiver, err)
	}
	sel.CreatedAt = time.Unix(created, 0)
	return sel, true, nil
}

// Store records sel under key, replacing an earlier selection for the same
// receiver.
func (c *Cache) Store(ctx context.Context, key string, sel Selection) error {
	if sel.CreatedAt.IsZero() {
		sel.CreatedAt = time.Now()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO selections (key, receiver, candidate, score, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (key, receiver) DO UPDATE SET
			candidate = excluded.candidate,
			score = excluded.score,
			created_at = excluded.created_at`,
		key, sel.Receiver, sel.Candidate, sel.Score, sel.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("storing selection for %s: %w", sel.Receiver, err)
	}
	return nil
}

// Len counts the stored selections.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM selections`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting selections: %w", err)
	}
	return n, nil
}

// Prune removes every selection not stored under key.
func (c *Cache) Prune(ctx context.Context, key string) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM selections WHERE key <> ?`, key)
	if err != nil {
		return 0, fmt.Errorf("pruning selections: %w", err)
	}
	return res.RowsAffected()
}

// Clean removes all selections.
func (c *Cache) Clean(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM selections`); err != nil {
		return fmt.Errorf("cleaning cache: %w", err)
	}
	return nil
}

// Key fingerprints a configuration together with the candidate set it is
// resolved against and the type model the oracle answers from. Candidate
// order does not matter.
func Key(configData []byte, candidates []binding.Candidate, model string) string {
	ids := make([]string, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		ids[i] = fmt.Sprintf("%s|%s|%s|%t|%t|%t|%d", c.String(), c.Package, c.Visibility, c.Static, c.Special, c.Ignored, c.Priority)
	}
	sort.Strings(ids)

	h := sha256.New()
	h.Write(normalize(configData))
	for _, id := range ids {
		h.Write([]byte("\x00"))
		h.Write([]byte(id))
	}
	h.Write([]byte("\x00"))
	h.Write([]byte(model))
	h.Write([]byte("\x00"))
	h.Write([]byte(codegenVersion))

	return hex.EncodeToString(h.Sum(nil))[:16] // First 16 hex chars = 64 bits
}

// normalize trims trailing whitespace on each line and trailing newlines,
// so trivial whitespace changes don't invalidate the cache.
func normalize(data []byte) []byte {
	lines := strings.Split(string(data), "\n")
	var normalized strings.Builder
	for _, line := range lines {
		normalized.WriteString(strings.TrimRight(line, " \t\r"))
		normalized.WriteString("\n")
	}
	return []byte(strings.TrimRight(normalized.String(), "\n"))
}
