// Package adapter defines the contract between the canopy engine and
// the remote, lazily-rendered UI it discovers. The engine is
// adapter-agnostic: everything it knows about the remote tree goes
// through the Adapter interface, so the same walker and collector run
// against a live browser session or the deterministic Replay adapter
// used in tests and demos.
package adapter

import (
	"context"

	"github.com/vanderheijden86/canopy/pkg/model"
)

// NodeHandle is an opaque reference to a rendered tree node. Handles
// are produced by an adapter and are only meaningful to the adapter
// that produced them.
type NodeHandle any

// ScrollMetrics describes the current scroll state of the active leaf
// view. Units are adapter-defined but must be consistent across the
// three fields.
type ScrollMetrics struct {
	Position    float64 `json:"position"`
	Extent      float64 `json:"extent"`
	VisibleSize float64 `json:"visible_size"`
}

// Remaining returns the scrollable distance left below the viewport.
func (m ScrollMetrics) Remaining() float64 {
	return m.Extent - (m.Position + m.VisibleSize)
}

// RawRecord is the unvalidated data an adapter reads off one rendered
// leaf element. Later extraction calls may return records already seen;
// the pagination loop deduplicates by identity.
type RawRecord struct {
	Identity string   `yaml:"identity" json:"identity"`
	Title    string   `yaml:"title" json:"title"`
	Duration string   `yaml:"duration,omitempty" json:"duration,omitempty"`
	Tags     []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Liked    bool     `yaml:"liked,omitempty" json:"liked,omitempty"`
	Disliked bool     `yaml:"disliked,omitempty" json:"disliked,omitempty"`
	Plays    int      `yaml:"plays,omitempty" json:"plays,omitempty"`
	Likes    int      `yaml:"likes,omitempty" json:"likes,omitempty"`
}

// ParseLeafRecord validates a raw record and converts it to the model
// form. A record without an identity cannot be deduplicated and is
// rejected with an ExtractionError.
func ParseLeafRecord(raw RawRecord) (model.LeafRecord, error) {
	if raw.Identity == "" {
		return model.LeafRecord{}, &ExtractionError{Field: "identity", Subject: raw.Title}
	}
	return model.LeafRecord{
		Identity: raw.Identity,
		Title:    raw.Title,
		Duration: raw.Duration,
		Tags:     append([]string(nil), raw.Tags...),
		Liked:    raw.Liked,
		Disliked: raw.Disliked,
		Plays:    raw.Plays,
		Likes:    raw.Likes,
	}, nil
}

// Adapter exposes the primitives the engine needs: listing a node's
// children, detecting expandability, triggering expand/collapse/select,
// and reading identifying attributes from rendered elements.
//
// Expand, Collapse and SelectLeafNode are fire-and-wait: they return
// once the action is dispatched and the caller adds its own settle
// wait. Whether children are nested inside the parent's rendered
// subtree or appear as deeper-indented siblings is an adapter concern;
// ListChildren must return the direct children in rendered order under
// either representation.
type Adapter interface {
	// Name reads the node's identifying attribute. A node whose name
	// cannot be read is skipped by the walker, not fatal.
	Name(ctx context.Context, h NodeHandle) (string, error)

	HasChildren(ctx context.Context, h NodeHandle) (bool, error)
	IsExpanded(ctx context.Context, h NodeHandle) (bool, error)
	Expand(ctx context.Context, h NodeHandle) error
	Collapse(ctx context.Context, h NodeHandle) error

	// ListChildren returns the direct children of h in rendered order.
	ListChildren(ctx context.Context, h NodeHandle) ([]NodeHandle, error)

	// SelectLeafNode navigates the remote view to show the node's items.
	SelectLeafNode(ctx context.Context, h NodeHandle) error

	// ExtractVisibleLeafRecords reads every currently-rendered leaf
	// element. It may return fewer or more records than expected on
	// later calls; callers must tolerate duplicates.
	ExtractVisibleLeafRecords(ctx context.Context) ([]RawRecord, error)

	GetScrollMetrics(ctx context.Context) (ScrollMetrics, error)
	AdvanceScroll(ctx context.Context, amount float64) error
}
