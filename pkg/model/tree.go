// Package model defines the core data types for canopy: the resolved
// tree of a remote hierarchical collection, the leaf records collected
// from virtualized lists, and the traversal bookkeeping that lets an
// interrupted run resume.
package model

import (
	"fmt"
	"strings"
	"time"
)

// PathSeparator joins path segments into a path signature (cache key).
const PathSeparator = "/"

// TreeNode is one resolved node of the remote collection. A node is
// either a container (HasChildren, Children populated) or a leaf
// (LeafItems populated). Once resolved and cached a node is never
// mutated.
type TreeNode struct {
	Name        string       `json:"name"`
	Path        []string     `json:"path"`
	HasChildren bool         `json:"has_children"`
	Children    []*TreeNode  `json:"children,omitempty"`
	LeafItems   []LeafRecord `json:"leaf_items,omitempty"`
	ItemCount   int          `json:"item_count"`
}

// PathKey returns the node's path signature, used as its cache key.
func (n *TreeNode) PathKey() string {
	return PathKey(n.Path)
}

// PathKey joins a path into its string signature.
func PathKey(path []string) string {
	return strings.Join(path, PathSeparator)
}

// Depth returns the node's depth, which by invariant equals len(Path).
func (n *TreeNode) Depth() int {
	return len(n.Path)
}

// Validate checks the structural invariants of the subtree rooted at n:
// path length equals depth, each child's path extends the parent's, and
// ItemCount aggregates correctly.
func (n *TreeNode) Validate() error {
	if n.Name == "" {
		return fmt.Errorf("node has empty name")
	}
	if len(n.Path) == 0 || n.Path[len(n.Path)-1] != n.Name {
		return fmt.Errorf("node %q: path %v does not end in node name", n.Name, n.Path)
	}
	if n.HasChildren {
		sum := 0
		for _, child := range n.Children {
			if len(child.Path) != len(n.Path)+1 {
				return fmt.Errorf("node %q: child %q has depth %d, want %d",
					n.Name, child.Name, len(child.Path), len(n.Path)+1)
			}
			for i := range n.Path {
				if child.Path[i] != n.Path[i] {
					return fmt.Errorf("node %q: child %q path %v does not extend parent path %v",
						n.Name, child.Name, child.Path, n.Path)
				}
			}
			if err := child.Validate(); err != nil {
				return err
			}
			sum += child.ItemCount
		}
		sum += len(n.LeafItems)
		if n.ItemCount != sum {
			return fmt.Errorf("node %q: item count %d, want %d", n.Name, n.ItemCount, sum)
		}
		return nil
	}
	if n.ItemCount != len(n.LeafItems) {
		return fmt.Errorf("leaf %q: item count %d, want %d", n.Name, n.ItemCount, len(n.LeafItems))
	}
	return nil
}

// TotalLeafCount walks the subtree and returns the number of leaf
// records it holds. For a valid node this equals ItemCount.
func (n *TreeNode) TotalLeafCount() int {
	total := len(n.LeafItems)
	for _, child := range n.Children {
		total += child.TotalLeafCount()
	}
	return total
}

// LeafRecord is one concrete item inside a leaf node, the smallest
// indivisible unit of content. Identity is unique within a single leaf
// collection and is the deduplication key.
type LeafRecord struct {
	Identity string   `json:"identity"`
	Title    string   `json:"title"`
	Duration string   `json:"duration,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Liked    bool     `json:"liked,omitempty"`
	Disliked bool     `json:"disliked,omitempty"`
	Plays    int      `json:"plays,omitempty"`
	Likes    int      `json:"likes,omitempty"`
}

// Validate checks that the record carries the fields the engine relies on.
func (r LeafRecord) Validate() error {
	if r.Identity == "" {
		return fmt.Errorf("leaf record %q has no identity", r.Title)
	}
	return nil
}

// TraversalState is the in-flight bookkeeping of a single traversal.
// It is owned exclusively by one Walker instance and mutated after
// every node completes.
type TraversalState struct {
	InProgress         bool     `json:"in_progress"`
	VisitedNodeCount   int      `json:"visited_node_count"`
	TotalTopLevelNodes int      `json:"total_top_level_nodes"`
	AggregateLeafCount int      `json:"aggregate_leaf_count"`
	LastCompletedPath  []string `json:"last_completed_path,omitempty"`
}

// Snapshot is the persisted resume point written after every completed
// node. A consumer that finds InProgress true on startup should resume
// rather than start fresh.
type Snapshot struct {
	InProgress         bool      `json:"in_progress"`
	LastCompletedPath  []string  `json:"last_completed_path,omitempty"`
	AggregateLeafCount int       `json:"aggregate_leaf_count"`
	Timestamp          time.Time `json:"timestamp"`
}

// SnapshotOf captures the resumable portion of a traversal state.
func SnapshotOf(state TraversalState) Snapshot {
	return Snapshot{
		InProgress:         state.InProgress,
		LastCompletedPath:  append([]string(nil), state.LastCompletedPath...),
		AggregateLeafCount: state.AggregateLeafCount,
		Timestamp:          time.Now(),
	}
}

// Warning records a recovered, non-fatal degradation (skipped element,
// render timeout, pagination hard cap). A run that finishes with
// warnings returns a non-error result that is still distinguishable
// from a clean one.
type Warning struct {
	Path    string    `json:"path"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// NewWarning builds a warning for the given path signature.
func NewWarning(pathKey, format string, args ...any) Warning {
	return Warning{
		Path:    pathKey,
		Message: fmt.Sprintf(format, args...),
		Time:    time.Now(),
	}
}

func (w Warning) String() string {
	if w.Path == "" {
		return w.Message
	}
	return w.Path + ": " + w.Message
}
