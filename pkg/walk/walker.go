// Package walk implements the tree walker: the recursive traversal
// that expands container nodes, hands leaf nodes to the pagination
// engine, aggregates counts upward, and persists resume state after
// every completed node.
//
// Traversal is strictly single-threaded. The adapter exposes one
// mutable "current view" that expand, select and scroll all act upon;
// parallel traversal would corrupt that shared view. Cancellation is
// checked at every suspension point, and a cancelled walk saves a
// snapshot with InProgress true so the run can resume later.
package walk

import (
	"context"
	"errors"
	"time"

	"github.com/vanderheijden86/canopy/pkg/adapter"
	"github.com/vanderheijden86/canopy/pkg/cache"
	"github.com/vanderheijden86/canopy/pkg/debug"
	"github.com/vanderheijden86/canopy/pkg/metrics"
	"github.com/vanderheijden86/canopy/pkg/model"
	"github.com/vanderheijden86/canopy/pkg/paginate"
	"github.com/vanderheijden86/canopy/pkg/progress"
	"github.com/vanderheijden86/canopy/pkg/state"
	"github.com/vanderheijden86/canopy/pkg/wait"
)

// DefaultExpandSettle bounds the wait for a node's children to render
// after an expand action.
const DefaultExpandSettle = 3 * time.Second

// Options tunes the walker. The zero value means defaults.
type Options struct {
	// ExpandSettle is the timeout for the post-expand settle wait.
	ExpandSettle time.Duration

	// Waiter drives settle waits; tests inject a no-op Sleep.
	Waiter wait.Waiter
}

func (o Options) withDefaults() Options {
	if o.ExpandSettle <= 0 {
		o.ExpandSettle = DefaultExpandSettle
	}
	return o
}

// Result is the outcome of a whole traversal. Warnings distinguish a
// degraded run from a clean one even though both return without error.
type Result struct {
	Roots              []*model.TreeNode `json:"roots"`
	NodesVisited       int               `json:"nodes_visited"`
	AggregateLeafCount int               `json:"aggregate_leaf_count"`
	Warnings           []model.Warning   `json:"warnings"`
}

// Walker owns one traversal at a time. It exclusively owns its
// TraversalState; create separate Walker instances for independent
// traversals.
type Walker struct {
	adapter   adapter.Adapter
	cache     cache.Store
	states    state.Store
	reporter  progress.Reporter
	collector *paginate.Collector
	opts      Options

	state    model.TraversalState
	warnings []model.Warning
}

// New creates a walker. All collaborators are required; pass
// progress.Nop{} and a state.Memory store when persistence or
// observation is not wanted.
func New(a adapter.Adapter, c cache.Store, s state.Store, r progress.Reporter, col *paginate.Collector, opts Options) *Walker {
	return &Walker{
		adapter:   a,
		cache:     c,
		states:    s,
		reporter:  r,
		collector: col,
		opts:      opts.withDefaults(),
	}
}

// Walk traverses every root handle in order and returns the resolved
// forest. Recoverable degradations (unreadable elements, render
// timeouts, pagination caps) are absorbed into Result.Warnings; only
// structural failures, a dead reporting channel, and cancellation
// return an error.
func (w *Walker) Walk(ctx context.Context, roots []adapter.NodeHandle) (*Result, error) {
	if len(roots) == 0 {
		return nil, w.abort(&StructuralError{
			Missing: "root node list",
			Hint:    "open the collection's tree view before starting a traversal",
		})
	}

	if snap, err := w.states.Load(); err == nil && snap != nil && snap.InProgress {
		debug.Log("walk: resuming after %v (cached subtrees will be reused)",
			model.PathKey(snap.LastCompletedPath))
	}

	w.state = model.TraversalState{
		InProgress:         true,
		TotalTopLevelNodes: len(roots),
	}
	w.warnings = nil

	var resolved []*model.TreeNode
	for _, h := range roots {
		node, err := w.walkNode(ctx, h, nil)
		if err != nil {
			return nil, w.abort(err)
		}
		if node == nil {
			continue
		}
		resolved = append(resolved, node)
	}

	result := &Result{
		Roots:              resolved,
		NodesVisited:       w.state.VisitedNodeCount,
		AggregateLeafCount: w.state.AggregateLeafCount,
		Warnings:           w.warnings,
	}

	if err := w.reporter.EmitComplete(progress.Completion{
		Roots:              result.Roots,
		NodesVisited:       result.NodesVisited,
		AggregateLeafCount: result.AggregateLeafCount,
		Warnings:           result.Warnings,
	}); err != nil {
		return nil, w.abort(&ReportingChannelError{Cause: err})
	}

	// A finished traversal has nothing to resume.
	w.state.InProgress = false
	if err := w.states.Clear(); err != nil {
		debug.Log("walk: cannot clear snapshot: %v", err)
	}
	return result, nil
}

// abort handles the fatal exits. Structural failures clear the
// snapshot (nothing sensible to resume); cancellation and reporting
// failures save one with InProgress true so the run can continue later.
func (w *Walker) abort(cause error) error {
	var structural *StructuralError
	if errors.As(cause, &structural) {
		if err := w.states.Clear(); err != nil {
			debug.Log("walk: cannot clear snapshot: %v", err)
		}
	} else {
		w.state.InProgress = true
		if err := w.states.Save(model.SnapshotOf(w.state)); err != nil {
			debug.Log("walk: cannot save resume snapshot: %v", err)
		}
	}
	// Best effort: the reporter may be the thing that failed.
	_ = w.reporter.EmitError(cause.Error())
	return cause
}

// walkNode resolves one node and its subtree. A nil, nil return means
// the node was skipped (unreadable, recoverable).
func (w *Walker) walkNode(ctx context.Context, h adapter.NodeHandle, parentPath []string) (*model.TreeNode, error) {
	defer metrics.Timer(metrics.NodeWalk)()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name, err := w.adapter.Name(ctx, h)
	if err != nil {
		w.warn(model.PathKey(parentPath), "skipping node with unreadable name: %v", err)
		return nil, nil
	}

	path := make([]string, 0, len(parentPath)+1)
	path = append(path, parentPath...)
	path = append(path, name)
	key := model.PathKey(path)

	if node, ok := w.cache.GetNode(key); ok {
		debug.Log("walk %s: cache hit", key)
		return node, w.completeNode(ctx, node, node.ItemCount)
	}

	hasChildren, err := w.adapter.HasChildren(ctx, h)
	if err != nil {
		w.warn(key, "skipping node, cannot determine expandability: %v", err)
		return nil, nil
	}

	node := &model.TreeNode{
		Name:        name,
		Path:        path,
		HasChildren: hasChildren,
	}

	if hasChildren {
		if err := w.resolveContainer(ctx, h, node); err != nil {
			return nil, err
		}
	} else {
		if err := w.resolveLeaf(ctx, h, node); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	if err := w.cache.SetNode(key, node); err != nil {
		w.warn(key, "cannot cache node: %v", err)
	}
	metrics.CacheWrite.Record(time.Since(start))

	// Fresh containers contribute nothing here: their descendants
	// already counted themselves during the recursion.
	fresh := 0
	if !hasChildren {
		fresh = len(node.LeafItems)
	}
	return node, w.completeNode(ctx, node, fresh)
}

// resolveContainer expands the node, resolves each child in rendered
// order, aggregates counts, and restores the node's prior expansion
// state so the traversal leaves no persistent UI side effect.
func (w *Walker) resolveContainer(ctx context.Context, h adapter.NodeHandle, node *model.TreeNode) error {
	key := node.PathKey()

	wasExpanded, err := w.adapter.IsExpanded(ctx, h)
	if err != nil {
		w.warn(key, "cannot read expansion state, assuming collapsed: %v", err)
		wasExpanded = false
	}

	if !wasExpanded {
		if err := w.adapter.Expand(ctx, h); err != nil {
			w.warn(key, "expand failed, proceeding without children: %v", err)
			return nil
		}
		settleStart := time.Now()
		waiter := w.opts.Waiter
		waiter.Timeout = w.opts.ExpandSettle
		err := waiter.Until(ctx, func() bool {
			expanded, err := w.adapter.IsExpanded(ctx, h)
			return err == nil && expanded
		})
		metrics.ExpandSettle.Record(time.Since(settleStart))
		if err != nil {
			if errors.Is(err, wait.ErrTimeout) {
				// Degrade: enumerate whatever is rendered now. The
				// resulting count is a lower bound.
				rt := &adapter.RenderTimeoutError{Action: "expand " + key, Timeout: w.opts.ExpandSettle}
				w.warn(key, "%v; child counts are a lower bound", rt)
			} else {
				return err // cancellation
			}
		}
	}

	children, err := w.adapter.ListChildren(ctx, h)
	if err != nil {
		w.warn(key, "cannot list children: %v", err)
		children = nil
	}

	total := 0
	for _, child := range children {
		childNode, err := w.walkNode(ctx, child, node.Path)
		if err != nil {
			return err
		}
		if childNode == nil {
			continue
		}
		node.Children = append(node.Children, childNode)
		total += childNode.ItemCount
	}
	node.ItemCount = total

	if !wasExpanded {
		if err := w.adapter.Collapse(ctx, h); err != nil {
			w.warn(key, "collapse failed, leaving node expanded: %v", err)
		}
	}
	return nil
}

// resolveLeaf hands the node to the pagination engine.
func (w *Walker) resolveLeaf(ctx context.Context, h adapter.NodeHandle, node *model.TreeNode) error {
	key := node.PathKey()
	records, warnings, err := w.collector.Collect(ctx, key, h)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		// A failed selection is recoverable: skip the leaf's contents.
		w.warn(key, "cannot collect leaf records: %v", err)
		records = nil
	}
	w.warnings = append(w.warnings, warnings...)
	node.LeafItems = records
	node.ItemCount = len(records)
	return nil
}

// completeNode runs the post-resolution bookkeeping: traversal state,
// resume snapshot, progress event. freshLeaves is the number of leaf
// records this completion newly contributes to the aggregate.
func (w *Walker) completeNode(ctx context.Context, node *model.TreeNode, freshLeaves int) error {
	w.state.VisitedNodeCount++
	w.state.AggregateLeafCount += freshLeaves
	w.state.LastCompletedPath = node.Path

	saveStart := time.Now()
	if err := w.states.Save(model.SnapshotOf(w.state)); err != nil {
		w.warn(node.PathKey(), "cannot persist resume snapshot: %v", err)
	}
	metrics.SnapshotSave.Record(time.Since(saveStart))

	if err := w.reporter.EmitProgress(progress.Progress{
		Visited:            w.state.VisitedNodeCount,
		Total:              w.state.TotalTopLevelNodes,
		AggregateLeafCount: w.state.AggregateLeafCount,
		CurrentPath:        node.Path,
	}); err != nil {
		return &ReportingChannelError{Cause: err}
	}
	return ctx.Err()
}

// State returns a copy of the current traversal state.
func (w *Walker) State() model.TraversalState {
	st := w.state
	st.LastCompletedPath = append([]string(nil), w.state.LastCompletedPath...)
	return st
}

func (w *Walker) warn(pathKey, format string, args ...any) {
	warning := model.NewWarning(pathKey, format, args...)
	w.warnings = append(w.warnings, warning)
	debug.Log("walk %s: %s", pathKey, warning.Message)
}
