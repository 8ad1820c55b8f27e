package engine

import (
	"errors"
	"fmt"
	"strings"
)

// InstallURL points at the upstream install instructions, surfaced when
// the binary is missing.
const InstallURL = "https://mutagen.io/documentation/introduction/installation"

// BinaryNotFoundError indicates the mutagen CLI could not be located.
type BinaryNotFoundError struct {
	Searched []string // locations checked before giving up
}

func (e *BinaryNotFoundError) Error() string {
	return fmt.Sprintf("mutagen is not installed (searched %s); install it from %s",
		strings.Join(e.Searched, ", "), InstallURL)
}

// CommandFailedError indicates the CLI ran and exited non-zero.
type CommandFailedError struct {
	Args     []string
	ExitCode int
	Output   string // stderr when non-empty, stdout otherwise
}

func (e *CommandFailedError) Error() string {
	return fmt.Sprintf("command failed: %s", e.Output)
}

// TimeoutError indicates the CLI was killed after exceeding its bound.
type TimeoutError struct {
	Args    []string
	Seconds int // the configured bound, not the elapsed time
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command timed out after %d seconds", e.Seconds)
}

// IsBinaryNotFound reports whether err is a BinaryNotFoundError.
func IsBinaryNotFound(err error) bool {
	var target *BinaryNotFoundError
	return errors.As(err, &target)
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}
