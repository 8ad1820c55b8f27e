package store

import (
	"context"
	"time"
)

// ExportVersion identifies the export file format.
const ExportVersion = "1.0.0"

// ExportedConnection is the portable form of a saved connection.
// Identifiers and usage timestamps stay behind.
type ExportedConnection struct {
	Name       string   `json:"name"`
	Host       string   `json:"host"`
	Port       int      `json:"port"`
	User       string   `json:"username"`
	RemotePath string   `json:"remote_path"`
	LocalPath  string   `json:"local_path"`
	KeyPath    string   `json:"ssh_key_path"`
	SyncMode   string   `json:"sync_mode"`
	Tags       []string `json:"tags"`
	Favorite   bool     `json:"is_favorite"`
}

// ExportData is the export file payload.
type ExportData struct {
	Version     string               `json:"version"`
	ExportedAt  time.Time            `json:"exported_at"`
	Connections []ExportedConnection `json:"connections"`
}

// ImportResult summarizes an import run.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Export returns all connections in the portable format.
func (s *Store) Export(ctx context.Context) (*ExportData, error) {
	connections, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	exported := make([]ExportedConnection, 0, len(connections))
	for _, c := range connections {
		exported = append(exported, ExportedConnection{
			Name:       c.Name,
			Host:       c.Host,
			Port:       c.Port,
			User:       c.User,
			RemotePath: c.RemotePath,
			LocalPath:  c.LocalPath,
			KeyPath:    c.KeyPath,
			SyncMode:   c.SyncMode,
			Tags:       c.Tags,
			Favorite:   c.Favorite,
		})
	}

	return &ExportData{
		Version:     ExportVersion,
		ExportedAt:  s.clock.Now().UTC(),
		Connections: exported,
	}, nil
}

// Import inserts connections from an export file. Names that already
// exist are skipped, not overwritten.
func (s *Store) Import(ctx context.Context, data *ExportData) (*ImportResult, error) {
	result := &ImportResult{}
	for _, in := range data.Connections {
		_, err := s.GetByName(ctx, in.Name)
		if err == nil {
			result.Skipped++
			continue
		}
		if !IsNotFound(err) {
			return nil, err
		}

		conn := Connection{
			Name:       in.Name,
			Host:       in.Host,
			Port:       in.Port,
			User:       in.User,
			RemotePath: in.RemotePath,
			LocalPath:  in.LocalPath,
			KeyPath:    in.KeyPath,
			SyncMode:   in.SyncMode,
			Tags:       in.Tags,
			Favorite:   in.Favorite,
		}
		if conn.SyncMode == "" {
			conn.SyncMode = "one-way-safe"
		}
		if err := s.Upsert(ctx, &conn); err != nil {
			return nil, err
		}
		result.Imported++
	}
	return result, nil
}
