package engine

import (
	"errors"
	"fmt"
)

// ConfigError marks a malformed trigger or action config. The offending
// workflow or action is skipped and logged; processing of everything else
// continues.
type ConfigError struct {
	WorkflowID int64
	Detail     string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for workflow %d: %s", e.WorkflowID, e.Detail)
}

// TransientError wraps a handler failure worth retrying with backoff, such
// as a network timeout on an outbound call.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps a handler failure no retry can fix, such as an
// invalid recipient. The action fails terminally on the first occurrence.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Permanent marks err as terminal.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err (or anything it wraps) is a permanent
// execution error. Unclassified errors are treated as transient so a flaky
// dependency never fails an action outright.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
