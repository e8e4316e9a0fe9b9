package job

import "errors"

var (
	// ErrNotFound: no persisted job with the given id.
	ErrNotFound = errors.New("job not found")
	// ErrInvalid: submission payload rejected before anything was persisted.
	ErrInvalid = errors.New("invalid job payload")
	// ErrIllegalTransition: a control operation asked for a transition the
	// state machine does not allow. The job is left untouched.
	ErrIllegalTransition = errors.New("illegal state transition")
)
