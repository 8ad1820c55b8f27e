package ports

// ConnectionFormData holds the result of a connection setup form.
type ConnectionFormData struct {
	Name       string
	Host       string
	Port       int
	User       string
	RemotePath string
	LocalPath  string
	KeyPath    string
	SyncMode   string
	Confirmed  bool
}

// SetupFormData holds the result of the first-run configuration form.
type SetupFormData struct {
	Listen       string
	EngineBinary string
	StorePath    string
	UseKeyring   bool
	Confirmed    bool
}

// DialogProvider abstracts interactive user dialogs.
// Implementations may use TUI forms, native OS dialogs, or test fakes.
type DialogProvider interface {
	// ConnectionForm shows a form to confirm/edit a sync connection.
	// Pre-filled values come from the input data; the user can modify them.
	// Returns the final form data with Confirmed=true if the user accepted.
	ConnectionForm(prefill ConnectionFormData) (ConnectionFormData, error)

	// SetupForm shows the first-run server configuration form.
	SetupForm(prefill SetupFormData) (SetupFormData, error)
}
