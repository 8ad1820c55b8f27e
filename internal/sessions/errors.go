package sessions

import (
	"errors"
	"fmt"
)

// InvalidActionError reports a lifecycle verb outside the known set.
// It is returned before any process is spawned.
type InvalidActionError struct {
	Action string
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid action %q (valid: resume, pause, flush, terminate, reset)", e.Action)
}

// InvalidModeError reports a sync mode the engine does not accept.
type InvalidModeError struct {
	Mode string
}

func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("invalid sync mode %q", e.Mode)
}

// InvalidWinnerError reports a conflict winner outside alpha/beta.
type InvalidWinnerError struct {
	Winner string
}

func (e *InvalidWinnerError) Error() string {
	return fmt.Sprintf("invalid winner %q (valid: alpha, beta)", e.Winner)
}

// InvalidSeedDirectionError reports an unknown initial transfer direction.
type InvalidSeedDirectionError struct {
	Direction string
}

func (e *InvalidSeedDirectionError) Error() string {
	return fmt.Sprintf("invalid initial sync direction %q (valid: download, upload, skip)", e.Direction)
}

// SessionNotFoundError reports a session name unknown to the engine.
type SessionNotFoundError struct {
	Name string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session %q not found", e.Name)
}

// IsValidation reports whether err is one of the fail-fast argument
// validation errors.
func IsValidation(err error) bool {
	var actionErr *InvalidActionError
	var modeErr *InvalidModeError
	var winnerErr *InvalidWinnerError
	var seedErr *InvalidSeedDirectionError
	return errors.As(err, &actionErr) ||
		errors.As(err, &modeErr) ||
		errors.As(err, &winnerErr) ||
		errors.As(err, &seedErr)
}

// IsNotFound reports whether err marks a missing session.
func IsNotFound(err error) bool {
	var notFound *SessionNotFoundError
	return errors.As(err, &notFound)
}
