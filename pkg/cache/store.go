// Package cache implements the traversal cache: an ordered key-value
// store mapping a path signature to a previously resolved subtree or
// leaf collection. A warm cache is what makes repeat runs cheap — a
// fully cached subtree costs zero adapter calls.
//
// Entries are write-once per key within a traversal session. Clear is
// the only invalidation mechanism; there is no TTL or change detection,
// but the Policy hook lets a future strategy slot in without touching
// the walker or collector.
package cache

import (
	"time"

	"github.com/vanderheijden86/canopy/pkg/model"
)

// Stats reports how many entries of each kind a store holds.
type Stats struct {
	NodeEntries int `json:"node_entries"`
	LeafEntries int `json:"leaf_entries"`
}

// Store is the cache contract shared by the walker (node subtrees) and
// the collector (leaf collections). Implementations are single-writer
// under the one-traversal-at-a-time invariant; locking inside the
// implementations is belt only.
type Store interface {
	// GetNode returns the resolved subtree cached at key, or false.
	GetNode(key string) (*model.TreeNode, bool)

	// SetNode caches a resolved subtree. Writing to an existing key is
	// a no-op: entries are write-once until Clear.
	SetNode(key string, node *model.TreeNode) error

	// GetLeaves returns the leaf collection cached at key, or false.
	GetLeaves(key string) ([]model.LeafRecord, bool)

	// SetLeaves caches a leaf collection, write-once like SetNode.
	SetLeaves(key string, records []model.LeafRecord) error

	// Clear drops every entry. The explicit, and only, invalidation.
	Clear() error

	// Stats reports entry counts.
	Stats() (Stats, error)
}

// Policy decides whether a cached entry should be served. The default
// KeepAll policy never expires anything, matching the write-once /
// explicit-clear design. A TTL or change-detection policy can be
// plugged in later without changing Store consumers.
type Policy interface {
	// Stale reports whether an entry stored at storedAt should be
	// treated as a miss.
	Stale(key string, storedAt time.Time) bool
}

type keepAll struct{}

func (keepAll) Stale(string, time.Time) bool { return false }

// KeepAll returns the default never-expire policy.
func KeepAll() Policy { return keepAll{} }

// TTL returns a policy that treats entries older than d as stale.
// Provided for consumers that re-run against collections known to
// change; the core never uses it by default.
func TTL(d time.Duration) Policy {
	return ttlPolicy{maxAge: d}
}

type ttlPolicy struct {
	maxAge time.Duration
}

func (p ttlPolicy) Stale(_ string, storedAt time.Time) bool {
	return time.Since(storedAt) > p.maxAge
}
