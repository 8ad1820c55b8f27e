// Package store persists saved connections in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/acolita/mutagen-bridge/internal/ports"
)

// Connection is a saved connection descriptor.
type Connection struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Host       string     `json:"host"`
	Port       int        `json:"port"`
	User       string     `json:"username"`
	RemotePath string     `json:"remote_path"`
	LocalPath  string     `json:"local_path"`
	KeyPath    string     `json:"ssh_key_path"`
	SyncMode   string     `json:"sync_mode"`
	Tags       []string   `json:"tags"`
	Favorite   bool       `json:"is_favorite"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsed   *time.Time `json:"last_used"`
}

// NotFoundError reports a connection with no row.
type NotFoundError struct {
	ID   int64
	Name string
}

func (e *NotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("connection %q not found", e.Name)
	}
	return fmt.Sprintf("connection %d not found", e.ID)
}

// DuplicateNameError reports a name collision on the unique index.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("connection name %q already exists", e.Name)
}

// IsNotFound reports whether err marks a missing connection.
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// IsDuplicateName reports whether err marks a name collision.
func IsDuplicateName(err error) bool {
	var dup *DuplicateNameError
	return errors.As(err, &dup)
}

// Store wraps the connection database.
type Store struct {
	db    *sql.DB
	path  string
	clock ports.Clock
}

// Open opens (creating if needed) the database at path and applies
// pending migrations. SQLite works best through a single connection,
// so the pool is pinned to one.
func Open(path string, clock ports.Clock) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: path, clock: clock}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

const connectionColumns = `id, name, host, port, username, remote_path, local_path,
	ssh_key_path, sync_mode, tags, is_favorite, created_at, last_used`

// List returns all saved connections in insertion order.
func (s *Store) List(ctx context.Context) ([]Connection, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+connectionColumns+" FROM saved_connections ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	connections := []Connection{}
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		connections = append(connections, *conn)
	}
	return connections, rows.Err()
}

// Get returns the connection with the given id.
func (s *Store) Get(ctx context.Context, id int64) (*Connection, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+connectionColumns+" FROM saved_connections WHERE id = ?", id)
	conn, err := scanConnection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{ID: id}
	}
	return conn, err
}

// GetByName returns the connection with the given name.
func (s *Store) GetByName(ctx context.Context, name string) (*Connection, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+connectionColumns+" FROM saved_connections WHERE name = ?", name)
	conn, err := scanConnection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Name: name}
	}
	return conn, err
}

// Upsert saves the connection keyed by name: an existing row keeps its
// id and creation time and gets a fresh last_used stamp, a new row is
// inserted. The connection's ID and timestamps are filled in.
func (s *Store) Upsert(ctx context.Context, c *Connection) error {
	if c.Port == 0 {
		c.Port = 22
	}
	now := s.clock.Now().UTC()

	existing, err := s.GetByName(ctx, c.Name)
	if err != nil && !IsNotFound(err) {
		return err
	}
	if existing != nil {
		_, err := s.db.ExecContext(ctx, `
			UPDATE saved_connections
			SET host = ?, port = ?, username = ?, remote_path = ?, local_path = ?,
			    ssh_key_path = ?, sync_mode = ?, tags = ?, last_used = ?
			WHERE id = ?`,
			c.Host, c.Port, c.User, c.RemotePath, c.LocalPath,
			nullable(c.KeyPath), c.SyncMode, encodeTags(c.Tags), formatTime(now),
			existing.ID)
		if err != nil {
			return fmt.Errorf("update connection: %w", err)
		}
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
		c.LastUsed = &now
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO saved_connections
			(name, host, port, username, remote_path, local_path,
			 ssh_key_path, sync_mode, tags, is_favorite, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Host, c.Port, c.User, c.RemotePath, c.LocalPath,
		nullable(c.KeyPath), c.SyncMode, encodeTags(c.Tags), c.Favorite, formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return &DuplicateNameError{Name: c.Name}
		}
		return fmt.Errorf("insert connection: %w", err)
	}
	c.ID, _ = res.LastInsertId()
	c.CreatedAt = now
	c.LastUsed = nil
	return nil
}

// Update replaces the stored fields of the connection with the given id.
func (s *Store) Update(ctx context.Context, id int64, c *Connection) error {
	if c.Port == 0 {
		c.Port = 22
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE saved_connections
		SET name = ?, host = ?, port = ?, username = ?, remote_path = ?,
		    local_path = ?, ssh_key_path = ?, sync_mode = ?, tags = ?
		WHERE id = ?`,
		c.Name, c.Host, c.Port, c.User, c.RemotePath,
		c.LocalPath, nullable(c.KeyPath), c.SyncMode, encodeTags(c.Tags), id)
	if err != nil {
		if isUniqueViolation(err) {
			return &DuplicateNameError{Name: c.Name}
		}
		return fmt.Errorf("update connection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{ID: id}
	}
	return nil
}

// Delete removes the connection with the given id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM saved_connections WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{ID: id}
	}
	return nil
}

// Duplicate copies the connection under a " (Copy)" name, numbering
// further copies " (Copy) 2", " (Copy) 3" and so on. The copy is never
// a favorite and starts unused.
func (s *Store) Duplicate(ctx context.Context, id int64) (*Connection, error) {
	orig, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	base := orig.Name + " (Copy)"
	name := base
	for counter := 2; ; counter++ {
		_, err := s.GetByName(ctx, name)
		if IsNotFound(err) {
			break
		}
		if err != nil {
			return nil, err
		}
		name = fmt.Sprintf("%s %d", base, counter)
	}

	dup := *orig
	dup.Name = name
	dup.Favorite = false
	dup.LastUsed = nil
	if err := s.Upsert(ctx, &dup); err != nil {
		return nil, err
	}
	return &dup, nil
}

// TouchLastUsed stamps the connection as just used.
func (s *Store) TouchLastUsed(ctx context.Context, id int64) error {
	now := s.clock.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"UPDATE saved_connections SET last_used = ? WHERE id = ?", formatTime(now), id)
	if err != nil {
		return fmt.Errorf("update last_used: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{ID: id}
	}
	return nil
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*Connection, error) {
	var c Connection
	var keyPath, tags, lastUsed sql.NullString
	var createdAt string

	err := row.Scan(&c.ID, &c.Name, &c.Host, &c.Port, &c.User, &c.RemotePath,
		&c.LocalPath, &keyPath, &c.SyncMode, &tags, &c.Favorite, &createdAt, &lastUsed)
	if err != nil {
		return nil, err
	}

	c.KeyPath = keyPath.String
	c.Tags = decodeTags(tags)
	c.CreatedAt = parseTime(createdAt)
	if lastUsed.Valid {
		t := parseTime(lastUsed.String)
		c.LastUsed = &t
	}
	return &c, nil
}

func encodeTags(tags []string) any {
	if len(tags) == 0 {
		return nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return nil
	}
	return string(data)
}

func decodeTags(tags sql.NullString) []string {
	if !tags.Valid || tags.String == "" {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal([]byte(tags.String), &out); err != nil {
		return []string{}
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
