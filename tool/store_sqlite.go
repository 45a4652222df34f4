package tool

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteStoreSchema = `
CREATE TABLE IF NOT EXISTS tool_customizations (
	server TEXT PRIMARY KEY,
	revision TEXT NOT NULL,
	payload BLOB NOT NULL,
	updated_at TEXT NOT NULL
);`

const defaultSQLiteStoreDB = "tooltailor.db"

// SQLiteStore persists customizations in SQLite, one JSON payload per server.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultSQLitePath returns ~/.tooltailor/tooltailor.db.
func DefaultSQLitePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("tool: resolve user home: %w", err)
	}
	return filepath.Join(home, defaultStoreDir, defaultSQLiteStoreDB), nil
}

// NewSQLiteStore opens (or creates) the database at dsn.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("tool: sqlite store dsn is required")
	}
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil {
			return nil, fmt.Errorf("tool: create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("tool: sqlite store open: %w", err)
	}
	// One connection keeps :memory: databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tool: sqlite store set WAL mode: %w", err)
	}
	if _, err := db.Exec(sqliteStoreSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tool: sqlite store create schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// List returns every record ordered by server name.
func (s *SQLiteStore) List(ctx context.Context) ([]Customization, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, errors.New("tool: sqlite store is nil")
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT payload
FROM tool_customizations
ORDER BY server ASC`)
	if err != nil {
		return nil, fmt.Errorf("tool: sqlite list customizations: %w", err)
	}
	defer rows.Close()

	items := make([]Customization, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("tool: sqlite scan customization: %w", err)
		}
		item, err := decodeCustomization(payload)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tool: sqlite customization rows: %w", err)
	}
	return items, nil
}

// Get returns the record for server.
func (s *SQLiteStore) Get(ctx context.Context, server string) (Customization, bool, error) {
	if err := ctx.Err(); err != nil {
		return Customization{}, false, err
	}
	if s == nil || s.db == nil {
		return Customization{}, false, errors.New("tool: sqlite store is nil")
	}

	var payload []byte
	err := s.db.QueryRowContext(ctx, `
SELECT payload
FROM tool_customizations
WHERE server = ?`, server).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Customization{}, false, nil
	}
	if err != nil {
		return Customization{}, false, fmt.Errorf("tool: sqlite get customization: %w", err)
	}
	item, err := decodeCustomization(payload)
	if err != nil {
		return Customization{}, false, err
	}
	return item, true, nil
}

// Put replaces the record for c.Server.
func (s *SQLiteStore) Put(ctx context.Context, c Customization) (Customization, error) {
	if err := ctx.Err(); err != nil {
		return Customization{}, err
	}
	if s == nil || s.db == nil {
		return Customization{}, errors.New("tool: sqlite store is nil")
	}
	stamped, err := stamp(c, s.now())
	if err != nil {
		return Customization{}, err
	}
	payload, err := json.Marshal(stamped)
	if err != nil {
		return Customization{}, fmt.Errorf("tool: sqlite encode customization: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO tool_customizations (server, revision, payload, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(server) DO UPDATE SET
	revision = excluded.revision,
	payload = excluded.payload,
	updated_at = excluded.updated_at`,
		stamped.Server,
		stamped.Revision,
		payload,
		stamped.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Customization{}, fmt.Errorf("tool: sqlite put customization: %w", err)
	}
	return stamped, nil
}

// Delete removes the record for server. Deleting a missing record is a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, server string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return errors.New("tool: sqlite store is nil")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tool_customizations WHERE server = ?`, server); err != nil {
		return fmt.Errorf("tool: sqlite delete customization: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func decodeCustomization(payload []byte) (Customization, error) {
	var item Customization
	if err := json.Unmarshal(payload, &item); err != nil {
		return Customization{}, fmt.Errorf("tool: sqlite decode customization: %w", err)
	}
	return item, nil
}

var _ Store = (*SQLiteStore)(nil)
