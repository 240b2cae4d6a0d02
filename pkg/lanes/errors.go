package lanes

import "fmt"

// StageError reports a model stage whose output did not conform to the
// stage contract. It is fatal for the turn: stage output is never silently
// defaulted or repaired.
type StageError struct {
	Stage  string // "triage" or "synthesis"
	Reason string
	Err    error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s stage failed: %s: %v", e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s stage failed: %s", e.Stage, e.Reason)
}

func (e *StageError) Unwrap() error { return e.Err }
