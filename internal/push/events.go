package push

// Event payloads mirror the wire format the frontend expects: a flat
// object with a type discriminator.

type sessionCreatedEvent struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type sessionActionEvent struct {
	Type    string `json:"type"`
	Session string `json:"session"`
	Action  string `json:"action"`
}

type syncProgressEvent struct {
	Type    string `json:"type"`
	Session string `json:"session"`
	Percent int    `json:"percent"`
	Detail  string `json:"detail"`
}

type echoMessage struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// SessionCreated announces a newly created sync session.
func (h *Hub) SessionCreated(name string) {
	h.Broadcast(sessionCreatedEvent{Type: "session_created", Name: name})
}

// SessionAction announces a lifecycle action applied to a session.
func (h *Hub) SessionAction(session, action string) {
	h.Broadcast(sessionActionEvent{Type: "session_action", Session: session, Action: action})
}

// SyncProgress streams initial-transfer progress for a session.
func (h *Hub) SyncProgress(session string, percent int, detail string) {
	h.Broadcast(syncProgressEvent{Type: "sync_progress", Session: session, Percent: percent, Detail: detail})
}
