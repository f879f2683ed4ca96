package cache

import (
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/canopy/pkg/metrics"
	"github.com/vanderheijden86/canopy/pkg/model"
)

// SQLite is a persistent Store backed by a local SQLite database.
// Because it survives process restarts, pairing it with the resume
// snapshot lets an interrupted run continue without re-deriving any
// completed subtree from the adapter.
type SQLite struct {
	db   *sql.DB
	path string
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS nodes (
	path_key  TEXT PRIMARY KEY,
	payload   TEXT NOT NULL,
	stored_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS leaves (
	path_key  TEXT PRIMARY KEY,
	payload   TEXT NOT NULL,
	stored_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// NewSQLite opens (creating if needed) a cache database at path.
func NewSQLite(path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open cache database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot create cache schema: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// GetNode implements Store.
func (s *SQLite) GetNode(key string) (*model.TreeNode, bool) {
	var payload string
	err := s.db.QueryRow("SELECT payload FROM nodes WHERE path_key = ?", key).Scan(&payload)
	if err != nil {
		metrics.NodeCache.Miss()
		return nil, false
	}
	var node model.TreeNode
	if err := json.Unmarshal([]byte(payload), &node); err != nil {
		metrics.NodeCache.Miss()
		return nil, false
	}
	metrics.NodeCache.Hit()
	return &node, true
}

// SetNode implements Store. INSERT OR IGNORE gives write-once per key.
func (s *SQLite) SetNode(key string, node *model.TreeNode) error {
	payload, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("marshaling node %q: %w", key, err)
	}
	if _, err := s.db.Exec(
		"INSERT OR IGNORE INTO nodes (path_key, payload) VALUES (?, ?)",
		key, string(payload),
	); err != nil {
		return fmt.Errorf("caching node %q: %w", key, err)
	}
	return nil
}

// GetLeaves implements Store.
func (s *SQLite) GetLeaves(key string) ([]model.LeafRecord, bool) {
	var payload string
	err := s.db.QueryRow("SELECT payload FROM leaves WHERE path_key = ?", key).Scan(&payload)
	if err != nil {
		metrics.LeafCache.Miss()
		return nil, false
	}
	var records []model.LeafRecord
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		metrics.LeafCache.Miss()
		return nil, false
	}
	metrics.LeafCache.Hit()
	return records, true
}

// SetLeaves implements Store.
func (s *SQLite) SetLeaves(key string, records []model.LeafRecord) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshaling leaves %q: %w", key, err)
	}
	if _, err := s.db.Exec(
		"INSERT OR IGNORE INTO leaves (path_key, payload) VALUES (?, ?)",
		key, string(payload),
	); err != nil {
		return fmt.Errorf("caching leaves %q: %w", key, err)
	}
	return nil
}

// Clear implements Store.
func (s *SQLite) Clear() error {
	if _, err := s.db.Exec("DELETE FROM nodes"); err != nil {
		return fmt.Errorf("clearing node cache: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM leaves"); err != nil {
		return fmt.Errorf("clearing leaf cache: %w", err)
	}
	return nil
}

// Stats implements Store.
func (s *SQLite) Stats() (Stats, error) {
	var st Stats
	if err := s.db.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&st.NodeEntries); err != nil {
		return st, fmt.Errorf("counting node entries: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM leaves").Scan(&st.LeafEntries); err != nil {
		return st, fmt.Errorf("counting leaf entries: %w", err)
	}
	return st, nil
}

var _ Store = (*SQLite)(nil)
