// Package fault distinguishes fatal configuration errors from recoverable
// remote-call errors. A configuration fault means the invocation can never
// succeed as requested (missing required field, conflicting flags, bad
// file); callers terminate with a diagnostic instead of degrading.
package fault

import (
	"errors"
	"fmt"
)

// ConfigError marks an error as a fatal configuration problem.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

// Configf builds a fatal configuration error.
func Configf(format string, args ...any) error {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// IsConfig reports whether err is (or wraps) a configuration fault.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
