package scheduler

import "errors"

// ErrCanceled is reported by Result for a job that was canceled before it ran.
var ErrCanceled = errors.New("job canceled")
