// Package sshkeys discovers private keys in the user's SSH directory.
package sshkeys

import (
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/acolita/mutagen-bridge/internal/ports"
)

// Key is one discovered private key.
type Key struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Scanner lists candidate private keys under ~/.ssh.
type Scanner struct {
	fs ports.FileSystem
}

// NewScanner creates a Scanner.
func NewScanner(fs ports.FileSystem) *Scanner {
	return &Scanner{fs: fs}
}

// Scan returns likely private keys. A readable file qualifies when its
// name carries the id_ prefix or its first line mentions PRIVATE KEY.
// Public halves (.pub) are never listed themselves; when one parses,
// its fingerprint is attached to the matching private key. A missing
// SSH directory yields an empty list, not an error.
func (s *Scanner) Scan() ([]Key, error) {
	home, err := s.fs.UserHomeDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(home, ".ssh")

	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return []Key{}, nil
	}

	keys := []Key{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasSuffix(name, ".pub") {
			continue
		}
		path := filepath.Join(dir, name)
		if !s.looksPrivate(name, path) {
			continue
		}
		keys = append(keys, Key{
			Name:        name,
			Path:        path,
			Fingerprint: s.fingerprint(path),
		})
	}
	return keys, nil
}

// looksPrivate requires the file to be readable; unreadable candidates
// are skipped silently like any other non-key file.
func (s *Scanner) looksPrivate(name, path string) bool {
	data, err := s.fs.ReadFile(path)
	if err != nil {
		return false
	}
	if strings.HasPrefix(name, "id_") {
		return true
	}
	first, _, _ := strings.Cut(string(data), "\n")
	return strings.Contains(first, "PRIVATE KEY")
}

// fingerprint derives the SHA256 fingerprint from the sibling .pub
// file. Best-effort: any parse problem leaves it empty.
func (s *Scanner) fingerprint(path string) string {
	data, err := s.fs.ReadFile(path + ".pub")
	if err != nil {
		return ""
	}
	pub, _, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		return ""
	}
	return ssh.FingerprintSHA256(pub)
}
