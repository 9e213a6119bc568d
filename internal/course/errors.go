package course

import "fmt"

// ConfigError reports malformed or contradictory authored data. Reason is
// meant for the author; Detail carries the technical specifics.
type ConfigError struct {
	Reason string
	Detail string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "course configuration error: " + e.Reason
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }
