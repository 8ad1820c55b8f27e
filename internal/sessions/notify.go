package sessions

// Notifier receives session lifecycle announcements as they happen.
// The orchestrator calls it inline after each successful operation, so
// implementations must not block.
type Notifier interface {
	SessionCreated(name string)
	SessionAction(session, action string)
	SyncProgress(session string, percent int, detail string)
}
