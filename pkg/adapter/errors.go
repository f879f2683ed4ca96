package adapter

import (
	"fmt"
	"time"
)

// ExtractionError reports that a single node's identifying attribute,
// or a single leaf element's fields, could not be read. It is always
// recovered locally: the element is skipped and traversal continues.
type ExtractionError struct {
	Field   string // which attribute was unreadable
	Subject string // best-effort description of the element
	Cause   error
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("cannot extract %s", e.Field)
	if e.Subject != "" {
		msg += fmt.Sprintf(" from %q", e.Subject)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// RenderTimeoutError reports that an expand/scroll/select action did
// not visibly settle within its bounded wait. The engine degrades
// gracefully: it proceeds with whatever is rendered and treats the
// resulting counts as a lower bound.
type RenderTimeoutError struct {
	Action  string
	Timeout time.Duration
}

func (e *RenderTimeoutError) Error() string {
	return fmt.Sprintf("%s did not settle within %v", e.Action, e.Timeout)
}
