// Package sessions orchestrates sync session lifecycle: creation with
// optional seeding, lifecycle actions, conflict listing and the
// destructive conflict-resolution protocol.
package sessions

import (
	"strings"
	"unicode"
)

// Mode is a sync session mode accepted by the engine.
type Mode string

const (
	TwoWaySafe     Mode = "two-way-safe"
	TwoWayResolved Mode = "two-way-resolved"
	OneWaySafe     Mode = "one-way-safe"
	OneWayReplica  Mode = "one-way-replica"
)

// Valid reports whether the mode is one the engine accepts.
func (m Mode) Valid() bool {
	switch m {
	case TwoWaySafe, TwoWayResolved, OneWaySafe, OneWayReplica:
		return true
	}
	return false
}

// Action is a lifecycle operation applied to an existing session.
type Action string

const (
	ActionResume    Action = "resume"
	ActionPause     Action = "pause"
	ActionFlush     Action = "flush"
	ActionTerminate Action = "terminate"
	ActionReset     Action = "reset"
)

// Valid reports whether the action is a known lifecycle verb.
func (a Action) Valid() bool {
	switch a {
	case ActionResume, ActionPause, ActionFlush, ActionTerminate, ActionReset:
		return true
	}
	return false
}

// Winner selects which endpoint survives conflict resolution.
type Winner string

const (
	// WinnerAlpha forces the alpha endpoint over beta.
	WinnerAlpha Winner = "alpha"
	// WinnerBeta forces the beta endpoint over alpha.
	WinnerBeta Winner = "beta"
)

// Valid reports whether the winner names an endpoint.
func (w Winner) Valid() bool {
	return w == WinnerAlpha || w == WinnerBeta
}

// Seed directions for the optional pre-session transfer.
const (
	SeedDownload = "download"
	SeedUpload   = "upload"
	SeedSkip     = "skip"
)

// Spec describes a session to create.
type Spec struct {
	Name          string
	Host          string
	Port          int
	User          string
	RemotePath    string
	LocalPath     string
	KeyPath       string // optional private key
	Mode          Mode   // empty uses the configured default
	SeedDirection string // "download", "upload", "skip" or empty
}

// SanitizeName maps whitespace and underscores to hyphens. The engine
// forbids whitespace in session identifiers, and the result doubles as
// the SSH host alias suffix.
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '_' {
			return '-'
		}
		return r
	}, name)
}
