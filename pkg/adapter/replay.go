package adapter

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// FixtureNode describes one node of a replayed collection. A node with
// children is a container; a node with records is a leaf.
type FixtureNode struct {
	Name     string         `yaml:"name"`
	Children []*FixtureNode `yaml:"children,omitempty"`
	Records  []RawRecord    `yaml:"records,omitempty"`
}

// Fixture is a complete synthetic collection plus the virtualization
// parameters the Replay adapter simulates.
type Fixture struct {
	Roots []*FixtureNode `yaml:"roots"`

	// RecordHeight is the rendered height of one leaf element, in the
	// same units as scroll metrics. Defaults to 100.
	RecordHeight float64 `yaml:"record_height,omitempty"`

	// VisibleSize is the viewport height. Defaults to 600.
	VisibleSize float64 `yaml:"visible_size,omitempty"`

	// RenderLag is how many extraction calls it takes for newly
	// scrolled-into-view content to appear. Simulates the renderer
	// pausing mid-list. Defaults to 0 (instant).
	RenderLag int `yaml:"render_lag,omitempty"`
}

// LoadFixture reads a fixture from a YAML file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	return &f, nil
}

// Replay is a deterministic in-memory Adapter driven by a Fixture. It
// simulates a virtualized leaf view: only records inside the rendered
// window are returned by ExtractVisibleLeafRecords, scrolled-in content
// appears after RenderLag extraction calls, and scroll metrics behave
// like a real scroll container.
//
// Replay backs both the engine tests and the canopy CLI demo harness.
type Replay struct {
	mu sync.Mutex

	fixture      *Fixture
	recordHeight float64
	visibleSize  float64
	renderLag    int

	// Endless, when true, ignores the fixture's leaf records and
	// fabricates a unique record per extraction forever, never
	// reporting bottom. Exercises the pagination hard cap.
	Endless bool

	// BottomTrickle reveals this many extra records one per second
	// extraction call once the view is pinned at the bottom, keeping
	// the no-new counter from firing while position and extent stay
	// frozen. Exercises the stalled-but-at-bottom stop condition.
	BottomTrickle int

	// StickyCollapsed marks node names whose IsExpanded never reports
	// true, so expand settle waits time out. ListChildren still works.
	StickyCollapsed map[string]bool

	expanded map[*FixtureNode]bool

	current        *FixtureNode
	pos            float64 // requested scroll position
	renderedPos    float64 // position the renderer has caught up to
	lagCountdown   int
	endlessCounter int
	trickleShown   int
	trickleTick    int

	calls     int
	callsByOp map[string]int
}

// NewReplay builds a Replay adapter over the given fixture.
func NewReplay(f *Fixture) *Replay {
	r := &Replay{
		fixture:      f,
		recordHeight: f.RecordHeight,
		visibleSize:  f.VisibleSize,
		renderLag:    f.RenderLag,
		expanded:     make(map[*FixtureNode]bool),
		callsByOp:    make(map[string]int),
	}
	if r.recordHeight <= 0 {
		r.recordHeight = 100
	}
	if r.visibleSize <= 0 {
		r.visibleSize = 600
	}
	return r
}

// Roots returns handles for the fixture's top-level nodes.
func (r *Replay) Roots() []NodeHandle {
	handles := make([]NodeHandle, len(r.fixture.Roots))
	for i, n := range r.fixture.Roots {
		handles[i] = n
	}
	return handles
}

// Calls returns the total number of adapter calls made so far. Warm
// cache runs must keep this at zero for fully cached subtrees.
func (r *Replay) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// CallsFor returns the call count of a single adapter operation.
func (r *Replay) CallsFor(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.callsByOp[op]
}

func (r *Replay) record(op string) {
	r.calls++
	r.callsByOp[op]++
}

func (r *Replay) node(h NodeHandle) (*FixtureNode, error) {
	n, ok := h.(*FixtureNode)
	if !ok || n == nil {
		return nil, fmt.Errorf("replay: foreign node handle %T", h)
	}
	return n, nil
}

// Name implements Adapter. A fixture node with an empty name simulates
// an element whose identifying attribute is unreadable.
func (r *Replay) Name(_ context.Context, h NodeHandle) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("name")
	n, err := r.node(h)
	if err != nil {
		return "", err
	}
	if n.Name == "" {
		return "", &ExtractionError{Field: "name", Subject: "fixture node"}
	}
	return n.Name, nil
}

func (r *Replay) HasChildren(_ context.Context, h NodeHandle) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("has_children")
	n, err := r.node(h)
	if err != nil {
		return false, err
	}
	return len(n.Children) > 0, nil
}

func (r *Replay) IsExpanded(_ context.Context, h NodeHandle) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("is_expanded")
	n, err := r.node(h)
	if err != nil {
		return false, err
	}
	if r.StickyCollapsed[n.Name] {
		return false, nil
	}
	return r.expanded[n], nil
}

func (r *Replay) Expand(_ context.Context, h NodeHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("expand")
	n, err := r.node(h)
	if err != nil {
		return err
	}
	r.expanded[n] = true
	return nil
}

func (r *Replay) Collapse(_ context.Context, h NodeHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("collapse")
	n, err := r.node(h)
	if err != nil {
		return err
	}
	delete(r.expanded, n)
	return nil
}

func (r *Replay) ListChildren(_ context.Context, h NodeHandle) ([]NodeHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("list_children")
	n, err := r.node(h)
	if err != nil {
		return nil, err
	}
	handles := make([]NodeHandle, len(n.Children))
	for i, c := range n.Children {
		handles[i] = c
	}
	return handles, nil
}

// SelectLeafNode navigates to the node's leaf view and resets scroll
// state, like a real UI switching the item list.
func (r *Replay) SelectLeafNode(_ context.Context, h NodeHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("select_leaf")
	n, err := r.node(h)
	if err != nil {
		return err
	}
	r.current = n
	r.pos = 0
	r.renderedPos = 0
	r.lagCountdown = 0
	r.endlessCounter = 0
	r.trickleShown = 0
	r.trickleTick = 0
	return nil
}

// ExtractVisibleLeafRecords returns the records inside the rendered
// window. While the renderer is catching up to a scroll request, the
// previous window is returned, so callers see duplicate and missing
// records exactly as a virtualized list produces them.
func (r *Replay) ExtractVisibleLeafRecords(_ context.Context) ([]RawRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("extract")
	if r.current == nil {
		return nil, fmt.Errorf("replay: no leaf selected")
	}

	if r.Endless {
		r.endlessCounter++
		return []RawRecord{{
			Identity: fmt.Sprintf("endless-%d", r.endlessCounter),
			Title:    fmt.Sprintf("Endless %d", r.endlessCounter),
		}}, nil
	}

	// Renderer catches up one step per extraction call.
	if r.renderedPos != r.pos {
		if r.lagCountdown > 0 {
			r.lagCountdown--
		}
		if r.lagCountdown == 0 {
			r.renderedPos = r.pos
		}
	}

	records := r.current.Records
	visible := r.visibleRange(len(records))

	if r.BottomTrickle > 0 && r.atBottom(len(records)) {
		r.trickleTick++
		if r.trickleTick%2 == 0 && r.trickleShown < r.BottomTrickle {
			r.trickleShown++
		}
		extra := make([]RawRecord, 0, r.trickleShown)
		for i := 0; i < r.trickleShown; i++ {
			extra = append(extra, RawRecord{
				Identity: fmt.Sprintf("trickle-%d", i+1),
				Title:    fmt.Sprintf("Trickle %d", i+1),
			})
		}
		return append(append([]RawRecord(nil), visible...), extra...), nil
	}

	return visible, nil
}

// visibleRange returns the slice of records inside [renderedPos,
// renderedPos+visibleSize).
func (r *Replay) visibleRange(total int) []RawRecord {
	if total == 0 {
		return nil
	}
	first := int(r.renderedPos / r.recordHeight)
	last := int((r.renderedPos + r.visibleSize) / r.recordHeight)
	if first < 0 {
		first = 0
	}
	if last >= total {
		last = total - 1
	}
	if first > last {
		return nil
	}
	out := make([]RawRecord, last-first+1)
	copy(out, r.current.Records[first:last+1])
	return out
}

func (r *Replay) extent(total int) float64 {
	return float64(total) * r.recordHeight
}

func (r *Replay) atBottom(total int) bool {
	return r.extent(total)-(r.renderedPos+r.visibleSize) <= 0
}

func (r *Replay) GetScrollMetrics(_ context.Context) (ScrollMetrics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("scroll_metrics")
	if r.current == nil {
		return ScrollMetrics{}, fmt.Errorf("replay: no leaf selected")
	}
	if r.Endless {
		// The extent keeps receding; bottom is never reached.
		return ScrollMetrics{
			Position:    r.pos,
			Extent:      r.pos + r.visibleSize + 10*r.recordHeight,
			VisibleSize: r.visibleSize,
		}, nil
	}
	return ScrollMetrics{
		Position:    r.renderedPos,
		Extent:      r.extent(len(r.current.Records)),
		VisibleSize: r.visibleSize,
	}, nil
}

func (r *Replay) AdvanceScroll(_ context.Context, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("advance_scroll")
	if r.current == nil {
		return fmt.Errorf("replay: no leaf selected")
	}
	if r.Endless {
		r.pos += amount
		return nil
	}
	if r.renderedPos != r.pos {
		// Renderer still catching up; the UI drops scroll input.
		return nil
	}
	maxPos := r.extent(len(r.current.Records)) - r.visibleSize
	if maxPos < 0 {
		maxPos = 0
	}
	r.pos += amount
	if r.pos > maxPos {
		r.pos = maxPos
	}
	if r.pos != r.renderedPos {
		if r.renderLag > 0 {
			r.lagCountdown = r.renderLag
		} else {
			r.renderedPos = r.pos
		}
	}
	return nil
}

var _ Adapter = (*Replay)(nil)
