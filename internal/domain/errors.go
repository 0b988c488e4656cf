package domain

import "errors"

// Order-level rejects are RejectReason values carried on events, never
// Go errors. The errors below cover API misuse and construction-time
// failures only.

// ConfigError represents a configuration error. A malformed
// configuration fails fast at construction; it is never recoverable
// mid-simulation.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrConfigNotFound is returned when the configuration file is missing.
	ErrConfigNotFound = errors.New("configuration not found")

	// ErrUnknownParticipant is returned by the registration API when an
	// agent is attached to an id that was never registered.
	ErrUnknownParticipant = errors.New("unknown participant")

	// ErrDuplicateInstrument is returned when a symbol is registered twice.
	ErrDuplicateInstrument = errors.New("duplicate instrument")

	// ErrSessionEnded is returned when the caller steps past PostClose.
	ErrSessionEnded = errors.New("session ended")
)
