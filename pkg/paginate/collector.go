// Package paginate implements the leaf collector: the scroll-paginate
// loop that drains a virtualized item list. There is no total count and
// no end-of-list signal, so completion is inferred from a layered
// exhaustion heuristic — bottom-of-scroll detection combined with
// consecutive no-new-content and stuck-view counters, bounded by a hard
// attempt cap. A single heuristic is not enough: a virtualized renderer
// can legitimately pause for several iterations mid-list, which looks
// identical to exhaustion unless the scroll metrics say otherwise.
package paginate

import (
	"context"
	"time"

	"github.com/vanderheijden86/canopy/pkg/adapter"
	"github.com/vanderheijden86/canopy/pkg/cache"
	"github.com/vanderheijden86/canopy/pkg/debug"
	"github.com/vanderheijden86/canopy/pkg/metrics"
	"github.com/vanderheijden86/canopy/pkg/model"
	"github.com/vanderheijden86/canopy/pkg/wait"
)

// Defaults for the exhaustion heuristic.
const (
	// DefaultBottomThreshold is the remaining scrollable distance, in
	// adapter units, below which the view counts as at-bottom.
	DefaultBottomThreshold = 50.0

	// DefaultNoNewLimit stops the loop once this many consecutive
	// iterations surfaced nothing new while at the bottom.
	DefaultNoNewLimit = 5

	// DefaultStuckLimit stops the loop once the scroll position and
	// content extent have been frozen this many iterations at the
	// bottom, even if stray records keep trickling in.
	DefaultStuckLimit = 5

	// DefaultHardNoNewLimit stops the loop after this many consecutive
	// no-new iterations regardless of bottom state, accepting partial
	// results.
	DefaultHardNoNewLimit = 10

	// DefaultMaxAttempts is the hard cap on scroll iterations.
	DefaultMaxAttempts = 200

	// DefaultLargeCollectionSize is the known-record count past which
	// the loop switches to larger advances and longer settle waits to
	// amortize per-iteration latency.
	DefaultLargeCollectionSize = 100

	// Scroll advance as a fraction of the viewport. The small fraction
	// overlaps windows so slow renders cannot drop records between
	// them; the large fraction moves a full viewport per iteration.
	DefaultScrollFraction      = 0.8
	DefaultLargeScrollFraction = 1.0

	DefaultSettleWait      = 200 * time.Millisecond
	DefaultLargeSettleWait = 500 * time.Millisecond
)

// Options tunes the collector. The zero value means defaults.
type Options struct {
	BottomThreshold     float64
	NoNewLimit          int
	StuckLimit          int
	HardNoNewLimit      int
	MaxAttempts         int
	LargeCollectionSize int
	ScrollFraction      float64
	LargeScrollFraction float64
	SettleWait          time.Duration
	LargeSettleWait     time.Duration

	// Waiter drives settle pauses; tests inject a no-op Sleep.
	Waiter wait.Waiter
}

func (o Options) withDefaults() Options {
	if o.BottomThreshold <= 0 {
		o.BottomThreshold = DefaultBottomThreshold
	}
	if o.NoNewLimit <= 0 {
		o.NoNewLimit = DefaultNoNewLimit
	}
	if o.StuckLimit <= 0 {
		o.StuckLimit = DefaultStuckLimit
	}
	if o.HardNoNewLimit <= 0 {
		o.HardNoNewLimit = DefaultHardNoNewLimit
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.LargeCollectionSize <= 0 {
		o.LargeCollectionSize = DefaultLargeCollectionSize
	}
	if o.ScrollFraction <= 0 {
		o.ScrollFraction = DefaultScrollFraction
	}
	if o.LargeScrollFraction <= 0 {
		o.LargeScrollFraction = DefaultLargeScrollFraction
	}
	if o.SettleWait <= 0 {
		o.SettleWait = DefaultSettleWait
	}
	if o.LargeSettleWait <= 0 {
		o.LargeSettleWait = DefaultLargeSettleWait
	}
	return o
}

// Collector drains one leaf node's virtualized list per Collect call.
type Collector struct {
	adapter adapter.Adapter
	cache   cache.Store
	opts    Options
}

// New creates a collector over the given adapter and cache.
func New(a adapter.Adapter, c cache.Store, opts Options) *Collector {
	return &Collector{
		adapter: a,
		cache:   c,
		opts:    opts.withDefaults(),
	}
}

// cursor is the per-call pagination bookkeeping. It is discarded when
// Collect returns.
type cursor struct {
	known       map[string]bool
	records     []model.LeafRecord
	noNew       int
	stuck       int
	attempts    int
	lastMetrics *adapter.ScrollMetrics
	warned      map[string]bool
	warnings    []model.Warning
}

func (c *cursor) warnOnce(key, pathKey, format string, args ...any) {
	if c.warned[key] {
		return
	}
	c.warned[key] = true
	w := model.NewWarning(pathKey, format, args...)
	c.warnings = append(c.warnings, w)
	debug.Log("collect %s: %s", pathKey, w.Message)
}

// Collect returns every leaf record of the node at pathKey, cached or
// freshly paginated. Per-record extraction failures are logged and
// skipped, never fatal; the only error returns are cancellation and a
// failed leaf selection.
func (c *Collector) Collect(ctx context.Context, pathKey string, h adapter.NodeHandle) ([]model.LeafRecord, []model.Warning, error) {
	defer metrics.Timer(metrics.LeafCollection)()

	if records, ok := c.cache.GetLeaves(pathKey); ok {
		debug.Log("collect %s: cache hit, %d records", pathKey, len(records))
		return records, nil, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := c.adapter.SelectLeafNode(ctx, h); err != nil {
		return nil, nil, err
	}
	if err := c.opts.Waiter.Settle(ctx, c.opts.SettleWait); err != nil {
		return nil, nil, err
	}

	cur := &cursor{
		known:  make(map[string]bool),
		warned: make(map[string]bool),
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		iterStart := time.Now()

		c.extractVisible(ctx, pathKey, cur)

		atBottom := c.updateScrollState(ctx, pathKey, cur)

		// Stop conditions, first match wins.
		switch {
		case atBottom && cur.noNew >= c.opts.NoNewLimit:
			debug.Log("collect %s: at bottom with %d quiet iterations, done", pathKey, cur.noNew)
		case cur.stuck >= c.opts.StuckLimit && atBottom:
			debug.Log("collect %s: view frozen at bottom for %d iterations, done", pathKey, cur.stuck)
		case cur.noNew >= c.opts.HardNoNewLimit:
			cur.warnOnce("no-new-timeout", pathKey,
				"no new records for %d iterations without reaching bottom; accepting %d records as partial",
				cur.noNew, len(cur.records))
		case cur.attempts >= c.opts.MaxAttempts:
			cur.warnOnce("max-attempts", pathKey,
				"hit scroll attempt cap (%d); accepting %d records as partial",
				c.opts.MaxAttempts, len(cur.records))
		default:
			if err := c.advance(ctx, cur); err != nil {
				return nil, nil, err
			}
			metrics.ScrollIterate.Record(time.Since(iterStart))
			metrics.ScrollLatency.Observe(time.Since(iterStart))
			continue
		}

		break
	}

	if err := c.cache.SetLeaves(pathKey, cur.records); err != nil {
		cur.warnOnce("cache-write", pathKey, "cannot cache leaf collection: %v", err)
	}
	debug.Log("collect %s: %d records in %d attempts", pathKey, len(cur.records), cur.attempts)
	return cur.records, cur.warnings, nil
}

// extractVisible pulls the currently rendered records into the cursor,
// deduplicating by identity. Failures affect only the failing element.
func (c *Collector) extractVisible(ctx context.Context, pathKey string, cur *cursor) {
	raws, err := c.adapter.ExtractVisibleLeafRecords(ctx)
	if err != nil {
		cur.warnOnce("extract-call", pathKey, "extraction failed, proceeding with current results: %v", err)
		cur.noNew++
		return
	}

	newCount := 0
	for _, raw := range raws {
		record, err := adapter.ParseLeafRecord(raw)
		if err != nil {
			cur.warnOnce("record:"+raw.Identity+raw.Title, pathKey, "skipping unreadable record: %v", err)
			continue
		}
		if cur.known[record.Identity] {
			continue
		}
		cur.known[record.Identity] = true
		cur.records = append(cur.records, record)
		newCount++
	}

	if newCount > 0 {
		cur.noNew = 0
	} else {
		cur.noNew++
	}
}

// updateScrollState refreshes the stuck counter and reports whether the
// view is at the bottom. At-bottom is judged by remaining scrollable
// distance, not by content silence: virtualized rendering can pause
// without having reached the true end.
func (c *Collector) updateScrollState(ctx context.Context, pathKey string, cur *cursor) bool {
	m, err := c.adapter.GetScrollMetrics(ctx)
	if err != nil {
		cur.warnOnce("scroll-metrics", pathKey, "cannot read scroll metrics: %v", err)
		return false
	}

	if cur.lastMetrics != nil &&
		cur.lastMetrics.Position == m.Position &&
		cur.lastMetrics.Extent == m.Extent {
		cur.stuck++
	} else {
		cur.stuck = 0
	}
	cur.lastMetrics = &m

	return m.Remaining() < c.opts.BottomThreshold
}

// advance requests more content and waits for rendering to settle,
// scaling both once the collection is known to be large.
func (c *Collector) advance(ctx context.Context, cur *cursor) error {
	m := cur.lastMetrics
	visible := 600.0
	if m != nil && m.VisibleSize > 0 {
		visible = m.VisibleSize
	}

	fraction := c.opts.ScrollFraction
	settle := c.opts.SettleWait
	if len(cur.known) > c.opts.LargeCollectionSize {
		fraction = c.opts.LargeScrollFraction
		settle = c.opts.LargeSettleWait
	}

	if err := c.adapter.AdvanceScroll(ctx, visible*fraction); err != nil {
		// A failed scroll is absorbed like a stalled render: the stuck
		// and no-new counters will end the loop.
		debug.Log("collect: advance failed: %v", err)
	}
	cur.attempts++
	return c.opts.Waiter.Settle(ctx, settle)
}
