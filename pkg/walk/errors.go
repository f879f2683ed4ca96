package walk

import "fmt"

// StructuralError reports that an expected root container is absent,
// e.g. the tree view was never opened. It is fatal: the whole traversal
// aborts immediately. Hint carries a remediation suggestion for the
// caller.
type StructuralError struct {
	Missing string
	Hint    string
}

func (e *StructuralError) Error() string {
	msg := fmt.Sprintf("structural error: %s is missing", e.Missing)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

// ReportingChannelError reports that the progress consumer is gone.
// The traversal aborts — nobody can observe its results — but a resume
// snapshot is persisted first.
type ReportingChannelError struct {
	Cause error
}

func (e *ReportingChannelError) Error() string {
	return fmt.Sprintf("progress reporting channel unavailable: %v", e.Cause)
}

func (e *ReportingChannelError) Unwrap() error { return e.Cause }
