package engine

import "strings"

// Endpoint is one side of a sync session.
type Endpoint struct {
	URL       string `json:"url"`
	Connected bool   `json:"connected"`
}

// Session is one sync session as reported by "mutagen sync list".
type Session struct {
	Name       string   `json:"name"`
	Identifier string   `json:"identifier"`
	Status     string   `json:"status"`
	Alpha      Endpoint `json:"alpha"`
	Beta       Endpoint `json:"beta"`
}

type endpointCursor int

const (
	cursorNone endpointCursor = iota
	cursorAlpha
	cursorBeta
)

// ParseSessions turns "mutagen sync list" output into session records.
//
// The output is a sequence of stanzas, one per session. "Name:" opens a
// stanza; "Alpha:" and "Beta:" headers select which endpoint the
// following indented "URL:" and "Connected:" lines belong to. Lines
// before the first stanza and unrecognized lines are skipped.
func ParseSessions(output string) []Session {
	var sessions []Session
	var current *Session
	cursor := cursorNone

	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimSpace(raw)

		if strings.HasPrefix(line, "Name:") {
			if current != nil {
				sessions = append(sessions, *current)
			}
			current = &Session{Name: valueAfterColon(line)}
			cursor = cursorNone
			continue
		}
		if current == nil {
			continue
		}

		switch {
		case strings.HasPrefix(line, "Identifier:"):
			current.Identifier = valueAfterColon(line)
		case strings.HasPrefix(line, "Status:"):
			current.Status = valueAfterColon(line)
		case strings.HasPrefix(line, "Alpha:"):
			cursor = cursorAlpha
		case strings.HasPrefix(line, "Beta:"):
			cursor = cursorBeta
		case strings.Contains(line, "URL:"):
			if ep := current.endpoint(cursor); ep != nil {
				ep.URL = valueAfterColon(line)
			}
		case strings.Contains(line, "Connected:"):
			if ep := current.endpoint(cursor); ep != nil {
				ep.Connected = strings.Contains(line, "Yes")
			}
		}
	}

	if current != nil {
		sessions = append(sessions, *current)
	}
	return sessions
}

// endpoint returns the endpoint the cursor points at, or nil when no
// endpoint header has been seen in the current stanza.
func (s *Session) endpoint(cursor endpointCursor) *Endpoint {
	switch cursor {
	case cursorAlpha:
		return &s.Alpha
	case cursorBeta:
		return &s.Beta
	default:
		return nil
	}
}

// valueAfterColon returns the trimmed text after the first colon.
func valueAfterColon(line string) string {
	_, after, found := strings.Cut(line, ":")
	if !found {
		return ""
	}
	return strings.TrimSpace(after)
}
