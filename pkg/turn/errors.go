package turn

import (
	"errors"
	"fmt"
)

// ErrTurnInFlight rejects a submission while another turn is active on the
// same thread. Submissions are never queued.
var ErrTurnInFlight = errors.New("a turn is already in flight for this thread")

// PersistenceError wraps a store failure during a turn. The turn aborts;
// there is no retry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
