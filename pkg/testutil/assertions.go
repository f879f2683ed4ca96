package testutil

import (
	"testing"

	"github.com/vanderheijden86/canopy/pkg/model"
)

// AssertValidTree verifies the structural invariants of every root.
func AssertValidTree(t *testing.T, roots []*model.TreeNode) {
	t.Helper()
	for _, root := range roots {
		if err := root.Validate(); err != nil {
			t.Errorf("invalid tree rooted at %q: %v", root.Name, err)
		}
	}
}

// AssertDistinctIdentities verifies the dedup invariant: all identities
// in a leaf collection are unique.
func AssertDistinctIdentities(t *testing.T, records []model.LeafRecord) {
	t.Helper()
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if seen[r.Identity] {
			t.Errorf("duplicate identity: %s", r.Identity)
		}
		seen[r.Identity] = true
	}
}

// AssertRecordCount verifies the expected number of leaf records.
func AssertRecordCount(t *testing.T, records []model.LeafRecord, expected int) {
	t.Helper()
	if len(records) != expected {
		t.Errorf("expected %d records, got %d", expected, len(records))
	}
}

// AssertWarningCount verifies the expected number of warnings.
func AssertWarningCount(t *testing.T, warnings []model.Warning, expected int) {
	t.Helper()
	if len(warnings) != expected {
		t.Errorf("expected %d warnings, got %d", expected, len(warnings))
		for i, w := range warnings {
			t.Logf("warning %d: %s", i, w)
		}
	}
}

// FindNode returns the node at the given path key, or nil.
func FindNode(roots []*model.TreeNode, pathKey string) *model.TreeNode {
	var find func(node *model.TreeNode) *model.TreeNode
	find = func(node *model.TreeNode) *model.TreeNode {
		if node.PathKey() == pathKey {
			return node
		}
		for _, child := range node.Children {
			if found := find(child); found != nil {
				return found
			}
		}
		return nil
	}
	for _, root := range roots {
		if found := find(root); found != nil {
			return found
		}
	}
	return nil
}
