package build

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	_ "modernc.org/sqlite"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS content_hashes (
	file_path TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`

// Cache is a content-hash build cache backed by SQLite. A page whose
// inputs hash to the stored value is skipped on rebuild.
type Cache struct {
	db   *sql.DB
	path string
}

// OpenCache opens (or creates) a cache database. Use ":memory:" for an
// ephemeral cache.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open build cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping build cache: %w", err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init build cache schema: %w", err)
	}
	return &Cache{db: db, path: path}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get returns the stored hash for a file path, or "" when absent.
func (c *Cache) Get(filePath string) (string, error) {
	var hash string
	err := c.db.QueryRow(
		`SELECT content_hash FROM content_hashes WHERE file_path = ?`, filePath,
	).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get content hash: %w", err)
	}
	return hash, nil
}

// Set stores the hash for a file path, replacing any previous value.
func (c *Cache) Set(filePath, hash string) error {
	_, err := c.db.Exec(
		`INSERT INTO content_hashes (file_path, content_hash, updated_at)
		 VALUES (?, ?, datetime('now'))
		 ON CONFLICT(file_path) DO UPDATE SET
		   content_hash = excluded.content_hash,
		   updated_at = excluded.updated_at`,
		filePath, hash,
	)
	if err != nil {
		return fmt.Errorf("set content hash: %w", err)
	}
	return nil
}

// Delete removes the stored hash for a file path.
func (c *Cache) Delete(filePath string) error {
	if _, err := c.db.Exec(`DELETE FROM content_hashes WHERE file_path = ?`, filePath); err != nil {
		return fmt.Errorf("delete content hash: %w", err)
	}
	return nil
}

// hashFiles hashes the contents of the given files in order. Missing
// files contribute their absence, so adding or removing a layout
// changes the hash.
func hashFiles(paths ...string) (string, error) {
	h := sha256.New()
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Fprintf(h, "missing:%s\n", path)
				continue
			}
			return "", err
		}
		fmt.Fprintf(h, "file:%s\n", path)
		if _, err := io.Copy(h, f); err != nil {
			_ = f.Close()
			return "", err
		}
		_ = f.Close()
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
