package agent

import (
	"context"
	"errors"
	"fmt"
)

// FailureTag classifies engine failures for the caller layer.
type FailureTag string

const (
	TagBackendUnavailable FailureTag = "backend-unavailable"
	TagTimeout            FailureTag = "timeout"
	TagMalformedResponse  FailureTag = "malformed-response"
	TagAlertNotFound      FailureTag = "alert-not-found"
	TagInvalidInput       FailureTag = "invalid-input"
)

// Failure is a tagged error surfaced to the caller layer.
type Failure struct {
	Tag FailureTag
	Op  string
	Err error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Op, f.Tag, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Op, f.Tag)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// failf builds a tagged failure with a formatted cause.
func failf(op string, tag FailureTag, format string, args ...interface{}) *Failure {
	return &Failure{Tag: tag, Op: op, Err: fmt.Errorf(format, args...)}
}

// TagOf extracts the failure tag from an error chain.
func TagOf(err error) (FailureTag, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Tag, true
	}
	return "", false
}

// classify wraps a collaborator error with the appropriate tag. A failure
// already carrying a tag is re-scoped to op but keeps its tag; a deadline
// error becomes a timeout; everything else is backend-unavailable.
func classify(op string, err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return &Failure{Tag: f.Tag, Op: op, Err: f.Err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Tag: TagTimeout, Op: op, Err: err}
	}
	return &Failure{Tag: TagBackendUnavailable, Op: op, Err: err}
}
