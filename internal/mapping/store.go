// Package mapping provides SQLite persistence for versioned mailbox mappings.
package mapping

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound       = errors.New("mapping not found")
	ErrInvalidMapping = errors.New("invalid mapping")
)

// ItemRef points a canonical taxonomy key at a concrete provider resource.
type ItemRef struct {
	ItemID string   `json:"item_id"`
	Path   []string `json:"path,omitempty"`
}

// Record is one persisted (user, provider) mapping. Version starts at 1 and
// increments on every successful save; records are never deleted here.
type Record struct {
	UserID    string             `json:"user_id"`
	Provider  string             `json:"provider"`
	ClientID  string             `json:"client_id,omitempty"`
	Mapping   map[string]ItemRef `json:"mapping"`
	Version   int                `json:"version"`
	CreatedAt string             `json:"created_at"`
	UpdatedAt string             `json:"updated_at"`
}

// Store wraps a SQLite connection for mapping operations.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) a canopy database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec(Schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Now returns the current time as an ISO 8601 string.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// DiscoverDB finds the canopy database by walking up from cwd.
// Returns the path to .canopy/canopy.db or empty string if not found.
func DiscoverDB() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".canopy", "canopy.db")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// FindProjectRoot walks up from cwd looking for a .git directory.
func FindProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// ValidateMapping rejects malformed mappings before persistence. The JSON
// blob is typed at this boundary so a broken mapping never reaches the row.
func ValidateMapping(m map[string]ItemRef) error {
	if len(m) == 0 {
		return fmt.Errorf("%w: empty mapping", ErrInvalidMapping)
	}
	for key, ref := range m {
		if key == "" {
			return fmt.Errorf("%w: empty canonical key", ErrInvalidMapping)
		}
		if ref.ItemID == "" {
			return fmt.Errorf("%w: key %q has no item id", ErrInvalidMapping, key)
		}
	}
	return nil
}

// Save upserts the mapping for (userID, provider). The version bump happens
// inside a single upsert statement, which SQLite executes atomically per
// row, so concurrent saves cannot both observe the same version.
func (s *Store) Save(ctx context.Context, userID, provider, clientID string, m map[string]ItemRef) (version int, updatedAt string, err error) {
	if err := ValidateMapping(m); err != nil {
		return 0, "", err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return 0, "", fmt.Errorf("encode mapping: %w", err)
	}

	now := Now()
	err = s.conn.QueryRowContext(ctx, `
		INSERT INTO mailbox_mappings
			(user_id, provider, client_id, mapping, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(user_id, provider) DO UPDATE SET
			client_id  = excluded.client_id,
			mapping    = excluded.mapping,
			version    = mailbox_mappings.version + 1,
			updated_at = excluded.updated_at
		RETURNING version, updated_at`,
		userID, provider, nullStr(clientID), string(data), now, now,
	).Scan(&version, &updatedAt)
	if err != nil {
		return 0, "", fmt.Errorf("save mapping for %s/%s: %w", userID, provider, err)
	}
	return version, updatedAt, nil
}

// Get returns the current mapping for (userID, provider) or ErrNotFound.
func (s *Store) Get(ctx context.Context, userID, provider string) (*Record, error) {
	rec := &Record{UserID: userID, Provider: provider}
	var clientID sql.NullString
	var raw string
	err := s.conn.QueryRowContext(ctx, `
		SELECT client_id, mapping, version, created_at, updated_at
		FROM mailbox_mappings
		WHERE user_id = ? AND provider = ?`, userID, provider).Scan(
		&clientID, &raw, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, userID, provider)
	}
	if err != nil {
		return nil, fmt.Errorf("get mapping for %s/%s: %w", userID, provider, err)
	}
	rec.ClientID = clientID.String
	if err := json.Unmarshal([]byte(raw), &rec.Mapping); err != nil {
		return nil, fmt.Errorf("decode mapping for %s/%s: %w", userID, provider, err)
	}
	return rec, nil
}

// Users returns distinct user IDs with a stored mapping.
func (s *Store) Users() []string {
	rows, err := s.conn.Query("SELECT DISTINCT user_id FROM mailbox_mappings ORDER BY user_id")
	if err != nil {
		return nil
	}
	defer rows.Close()
	var users []string
	for rows.Next() {
		var u string
		rows.Scan(&u)
		users = append(users, u)
	}
	return users
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
