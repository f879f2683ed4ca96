// Package progress defines the event stream the engine emits while a
// traversal runs. Reporters are fire-and-forget: the core never blocks
// waiting for a consumer, and a slow consumer loses events rather than
// stalling the traversal. An unavailable consumer, by contrast, is
// fatal to the run — a traversal nobody can observe is pointless — and
// surfaces as a ReportingChannelError in the walker.
package progress

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vanderheijden86/canopy/pkg/debug"
	"github.com/vanderheijden86/canopy/pkg/model"
)

// Progress describes how far the traversal has advanced.
type Progress struct {
	Visited            int      `json:"visited"`
	Total              int      `json:"total"`
	AggregateLeafCount int      `json:"aggregate_leaf_count"`
	CurrentPath        []string `json:"current_path,omitempty"`
}

// Completion carries the final result summary.
type Completion struct {
	Roots              []*model.TreeNode `json:"roots"`
	NodesVisited       int               `json:"nodes_visited"`
	AggregateLeafCount int               `json:"aggregate_leaf_count"`
	Warnings           []model.Warning   `json:"warnings"`
}

// Reporter receives traversal events. Implementations must not block;
// an error return means the downstream consumer is gone and the
// traversal should abort.
type Reporter interface {
	EmitProgress(p Progress) error
	EmitComplete(c Completion) error
	EmitError(message string) error
}

// ErrConsumerGone is returned by reporters whose downstream consumer is
// no longer reachable.
var ErrConsumerGone = errors.New("progress consumer is gone")

// Event is the tagged union delivered over a ChannelReporter.
type Event struct {
	Progress   *Progress   `json:"progress,omitempty"`
	Completion *Completion `json:"completion,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// ChannelReporter delivers events over a buffered channel without ever
// blocking: when the buffer is full the event is dropped (progress is
// advisory), and once Close is called every emit reports
// ErrConsumerGone. Close may be called from the consumer side while
// the traversal is still emitting; that is how quitting the progress
// view aborts the walk.
type ChannelReporter struct {
	mu     sync.Mutex
	events chan Event
	closed bool
}

// NewChannelReporter creates a reporter with the given buffer size.
func NewChannelReporter(buffer int) *ChannelReporter {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelReporter{
		events: make(chan Event, buffer),
	}
}

// Events returns the consumer side of the channel.
func (r *ChannelReporter) Events() <-chan Event {
	return r.events
}

// Close marks the consumer gone and closes the event channel so
// draining consumers terminate. Subsequent emits fail, which aborts
// the traversal. Idempotent and safe to race against emits.
func (r *ChannelReporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
}

func (r *ChannelReporter) send(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrConsumerGone
	}
	select {
	case r.events <- ev:
	default:
		// Buffer full: drop rather than block the traversal.
		debug.Log("progress: buffer full, dropping event")
	}
	return nil
}

// EmitProgress implements Reporter.
func (r *ChannelReporter) EmitProgress(p Progress) error {
	return r.send(Event{Progress: &p})
}

// EmitComplete implements Reporter.
func (r *ChannelReporter) EmitComplete(c Completion) error {
	return r.send(Event{Completion: &c})
}

// EmitError implements Reporter.
func (r *ChannelReporter) EmitError(message string) error {
	return r.send(Event{Error: message})
}

var _ Reporter = (*ChannelReporter)(nil)

// Nop is a Reporter that discards everything. Useful in tests and
// batch runs with no observer.
type Nop struct{}

func (Nop) EmitProgress(Progress) error   { return nil }
func (Nop) EmitComplete(Completion) error { return nil }
func (Nop) EmitError(string) error        { return nil }

var _ Reporter = Nop{}

// Log is a Reporter that writes events through the debug logger.
type Log struct{}

func (Log) EmitProgress(p Progress) error {
	debug.Log("progress: %d/%d nodes, %d leaf records", p.Visited, p.Total, p.AggregateLeafCount)
	return nil
}

func (Log) EmitComplete(c Completion) error {
	debug.Log("complete: %d nodes, %d leaf records, %d warnings",
		c.NodesVisited, c.AggregateLeafCount, len(c.Warnings))
	return nil
}

func (Log) EmitError(message string) error {
	debug.Log("error: %s", message)
	return nil
}

var _ Reporter = Log{}

// Multi fans events out to several reporters. The first error wins.
type Multi []Reporter

func (m Multi) EmitProgress(p Progress) error {
	for _, r := range m {
		if err := r.EmitProgress(p); err != nil {
			return fmt.Errorf("reporter %T: %w", r, err)
		}
	}
	return nil
}

func (m Multi) EmitComplete(c Completion) error {
	for _, r := range m {
		if err := r.EmitComplete(c); err != nil {
			return fmt.Errorf("reporter %T: %w", r, err)
		}
	}
	return nil
}

func (m Multi) EmitError(message string) error {
	for _, r := range m {
		if err := r.EmitError(message); err != nil {
			return fmt.Errorf("reporter %T: %w", r, err)
		}
	}
	return nil
}

var _ Reporter = Multi{}
