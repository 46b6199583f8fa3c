package uploaders

import "errors"

// Terminal upload error kinds. Callers branch on these with errors.Is
// instead of inspecting messages.
var (
	// ErrNotFound means the local video file is missing. Detected before
	// any network call and never retried.
	ErrNotFound = errors.New("video file not found")

	// ErrQuotaExceeded means the API reported quota exhaustion. Retrying
	// only wastes more of the daily budget, so it propagates immediately.
	ErrQuotaExceeded = errors.New("youtube quota exceeded")

	// ErrUploadFailed covers non-retriable remote errors and retriable
	// ones that exhausted the retry budget.
	ErrUploadFailed = errors.New("upload failed")
)

// transientError marks a failure worth reissuing the same chunk for:
// HTTP 500/502/503/504 or a transport-level I/O error.
type transientError struct {
	msg string
}

func (e *transientError) Error() string { return e.msg }

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
