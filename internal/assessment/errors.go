package assessment

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every NotFoundError.
var ErrNotFound = errors.New("performance node not found")

// ErrReadOnlyNode is returned when a caller tries to set the level of a node
// whose level is derived from its children.
var ErrReadOnlyNode = errors.New("node level is derived from its children")

// NotFoundError reports an unknown node id. Direct registry access treats it
// as a programming error.
type NotFoundError struct {
	ID NodeID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("performance node %d not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }
