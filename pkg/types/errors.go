package types

import (
	"errors"
	"fmt"
)

// Error kinds. Collaborators wrap failures with one of these so callers can
// classify them with errors.Is.
var (
	// ErrConfiguration aborts the whole run before any persona is processed.
	ErrConfiguration = errors.New("configuration error")
	// ErrAuthentication skips one persona for the run.
	ErrAuthentication = errors.New("authentication error")
	// ErrGeneration skips one post or reply attempt.
	ErrGeneration = errors.New("generation error")
	// ErrSubmission skips one post or reply attempt.
	ErrSubmission = errors.New("submission error")
	// ErrSourceFetch drops one feed from the candidate pool.
	ErrSourceFetch = errors.New("source fetch error")
	// ErrStateIO degrades to fresh state or loses this run's durability.
	ErrStateIO = errors.New("state io error")
)

// Wrap attaches an error kind to err. A nil err stays nil.
func Wrap(kind error, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// Wrapf attaches an error kind to a formatted message.
func Wrapf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
