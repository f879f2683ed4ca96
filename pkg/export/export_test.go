package export_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/canopy/pkg/export"
	"github.com/vanderheijden86/canopy/pkg/model"
	"github.com/vanderheijden86/canopy/pkg/walk"
)

func sampleResult() *walk.Result {
	rock := &model.TreeNode{
		Name: "Rock",
		Path: []string{"Library", "Rock"},
		LeafItems: []model.LeafRecord{
			{Identity: "s1", Title: "First"},
			{Identity: "s2", Title: "Second"},
			{Identity: "s3", Title: "Third"},
		},
		ItemCount: 3,
	}
	jazz := &model.TreeNode{
		Name:      "Jazz",
		Path:      []string{"Library", "Jazz"},
		LeafItems: []model.LeafRecord{{Identity: "j1", Title: "Solo"}},
		ItemCount: 1,
	}
	library := &model.TreeNode{
		Name:        "Library",
		Path:        []string{"Library"},
		HasChildren: true,
		Children:    []*model.TreeNode{rock, jazz},
		ItemCount:   4,
	}
	return &walk.Result{
		Roots:              []*model.TreeNode{library},
		NodesVisited:       3,
		AggregateLeafCount: 4,
		Warnings: []model.Warning{
			model.NewWarning("Library/Jazz", "hit scroll attempt cap"),
		},
	}
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "tree.json")
	if err := export.WriteJSON(sampleResult(), path); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	var decoded walk.Result
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if decoded.AggregateLeafCount != 4 || len(decoded.Roots) != 1 {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Roots[0].Children[0].LeafItems[0].Identity != "s1" {
		t.Error("leaf records lost in export")
	}
}

func TestGenerateMarkdown(t *testing.T) {
	md := export.GenerateMarkdown(sampleResult(), "My library")

	for _, want := range []string{
		"# My library",
		"- Nodes visited: 3",
		"- Total items: 4",
		"**Library** (4 items)",
		"- Rock (3 items)",
		"## Largest collections",
		"| Library/Rock | 3 |",
		"## Warnings",
		"`Library/Jazz`: hit scroll attempt cap",
		"lower bounds",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q", want)
		}
	}

	// The largest collection is listed before the smaller one.
	if strings.Index(md, "Library/Rock") > strings.Index(md, "Library/Jazz | 1") {
		t.Error("collections not ordered by size")
	}
}

func TestGenerateMarkdown_CleanRunHasNoWarningSection(t *testing.T) {
	result := sampleResult()
	result.Warnings = nil
	md := export.GenerateMarkdown(result, "Clean")
	if strings.Contains(md, "## Warnings") {
		t.Error("warning section rendered for a clean run")
	}
}

func TestWriteMarkdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	if err := export.WriteMarkdown(sampleResult(), "My library", path); err != nil {
		t.Fatalf("WriteMarkdown: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	if !strings.HasPrefix(string(data), "# My library") {
		t.Errorf("report starts with %q", string(data[:20]))
	}
}
