package adapter_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vanderheijden86/canopy/pkg/adapter"
)

func TestParseLeafRecord(t *testing.T) {
	raw := adapter.RawRecord{
		Identity: "song-1",
		Title:    "First",
		Duration: "3:14",
		Tags:     []string{"rock", "live"},
		Liked:    true,
		Plays:    42,
	}
	record, err := adapter.ParseLeafRecord(raw)
	if err != nil {
		t.Fatalf("ParseLeafRecord: %v", err)
	}
	if record.Identity != "song-1" || record.Plays != 42 || !record.Liked {
		t.Errorf("record = %+v", record)
	}

	// The tags slice must not alias the raw input.
	raw.Tags[0] = "mutated"
	if record.Tags[0] != "rock" {
		t.Error("parsed record aliases raw tags")
	}
}

func TestParseLeafRecord_MissingIdentity(t *testing.T) {
	_, err := adapter.ParseLeafRecord(adapter.RawRecord{Title: "No ID"})
	var extraction *adapter.ExtractionError
	if !errors.As(err, &extraction) {
		t.Fatalf("err = %v, want ExtractionError", err)
	}
	if extraction.Field != "identity" {
		t.Errorf("Field = %q, want identity", extraction.Field)
	}
}

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	data := `
roots:
  - name: Library
    children:
      - name: Rock
        records:
          - identity: s1
            title: First
          - identity: s2
            title: Second
record_height: 50
visible_size: 300
render_lag: 2
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := adapter.LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	if len(f.Roots) != 1 || f.Roots[0].Name != "Library" {
		t.Fatalf("roots = %+v", f.Roots)
	}
	if len(f.Roots[0].Children) != 1 || len(f.Roots[0].Children[0].Records) != 2 {
		t.Errorf("tree shape not preserved: %+v", f.Roots[0])
	}
	if f.RecordHeight != 50 || f.VisibleSize != 300 || f.RenderLag != 2 {
		t.Errorf("parameters = %v/%v/%v", f.RecordHeight, f.VisibleSize, f.RenderLag)
	}
}

func TestLoadFixture_Missing(t *testing.T) {
	if _, err := adapter.LoadFixture(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFixture accepted a missing file")
	}
}

func records(n int) []adapter.RawRecord {
	out := make([]adapter.RawRecord, n)
	for i := range out {
		out[i] = adapter.RawRecord{Identity: string(rune('a' + i))}
	}
	return out
}

func TestReplay_ExpandCollapse(t *testing.T) {
	ctx := context.Background()
	folder := &adapter.FixtureNode{
		Name:     "Library",
		Children: []*adapter.FixtureNode{{Name: "Rock"}},
	}
	r := adapter.NewReplay(&adapter.Fixture{Roots: []*adapter.FixtureNode{folder}})

	h := r.Roots()[0]
	if has, _ := r.HasChildren(ctx, h); !has {
		t.Error("HasChildren = false for a folder")
	}
	if expanded, _ := r.IsExpanded(ctx, h); expanded {
		t.Error("node expanded before Expand")
	}
	if err := r.Expand(ctx, h); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if expanded, _ := r.IsExpanded(ctx, h); !expanded {
		t.Error("node not expanded after Expand")
	}
	children, err := r.ListChildren(ctx, h)
	if err != nil || len(children) != 1 {
		t.Fatalf("ListChildren = %v, %v", children, err)
	}
	if err := r.Collapse(ctx, h); err != nil {
		t.Fatalf("Collapse: %v", err)
	}
	if expanded, _ := r.IsExpanded(ctx, h); expanded {
		t.Error("node still expanded after Collapse")
	}
}

func TestReplay_VirtualizedWindow(t *testing.T) {
	ctx := context.Background()
	leaf := &adapter.FixtureNode{Name: "Rock", Records: records(20)}
	r := adapter.NewReplay(&adapter.Fixture{
		Roots:        []*adapter.FixtureNode{leaf},
		RecordHeight: 100,
		VisibleSize:  600,
	})

	if err := r.SelectLeafNode(ctx, r.Roots()[0]); err != nil {
		t.Fatalf("SelectLeafNode: %v", err)
	}

	visible, err := r.ExtractVisibleLeafRecords(ctx)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(visible) != 7 {
		t.Fatalf("visible window = %d records, want 7", len(visible))
	}
	if visible[0].Identity != "a" {
		t.Errorf("window starts at %q, want a", visible[0].Identity)
	}

	m, _ := r.GetScrollMetrics(ctx)
	if m.Position != 0 || m.Extent != 2000 || m.VisibleSize != 600 {
		t.Errorf("metrics = %+v", m)
	}

	if err := r.AdvanceScroll(ctx, 480); err != nil {
		t.Fatalf("AdvanceScroll: %v", err)
	}
	visible, _ = r.ExtractVisibleLeafRecords(ctx)
	if visible[0].Identity != "e" {
		t.Errorf("after scroll window starts at %q, want e", visible[0].Identity)
	}
}

func TestReplay_RenderLagDelaysWindow(t *testing.T) {
	ctx := context.Background()
	leaf := &adapter.FixtureNode{Name: "Rock", Records: records(20)}
	r := adapter.NewReplay(&adapter.Fixture{
		Roots:     []*adapter.FixtureNode{leaf},
		RenderLag: 2,
	})
	r.SelectLeafNode(ctx, r.Roots()[0])
	r.ExtractVisibleLeafRecords(ctx)

	r.AdvanceScroll(ctx, 480)

	// The old window persists while the renderer catches up, and scroll
	// input is dropped meanwhile.
	visible, _ := r.ExtractVisibleLeafRecords(ctx)
	if visible[0].Identity != "a" {
		t.Errorf("window moved before render settled: starts at %q", visible[0].Identity)
	}
	r.AdvanceScroll(ctx, 480) // dropped
	visible, _ = r.ExtractVisibleLeafRecords(ctx)
	if visible[0].Identity != "e" {
		t.Errorf("window = %q after lag elapsed, want e", visible[0].Identity)
	}
	m, _ := r.GetScrollMetrics(ctx)
	if m.Position != 480 {
		t.Errorf("position = %v, want 480 (second scroll dropped)", m.Position)
	}
}

func TestReplay_CallCounting(t *testing.T) {
	ctx := context.Background()
	leaf := &adapter.FixtureNode{Name: "Rock", Records: records(3)}
	r := adapter.NewReplay(&adapter.Fixture{Roots: []*adapter.FixtureNode{leaf}})

	h := r.Roots()[0]
	r.Name(ctx, h)
	r.Name(ctx, h)
	r.HasChildren(ctx, h)

	if got := r.Calls(); got != 3 {
		t.Errorf("Calls = %d, want 3", got)
	}
	if got := r.CallsFor("name"); got != 2 {
		t.Errorf(`CallsFor("name") = %d, want 2`, got)
	}
	if got := r.CallsFor("extract"); got != 0 {
		t.Errorf(`CallsFor("extract") = %d, want 0`, got)
	}
}

func TestReplay_UnnamedNode(t *testing.T) {
	r := adapter.NewReplay(&adapter.Fixture{Roots: []*adapter.FixtureNode{{Name: ""}}})
	_, err := r.Name(context.Background(), r.Roots()[0])
	var extraction *adapter.ExtractionError
	if !errors.As(err, &extraction) {
		t.Fatalf("Name = %v, want ExtractionError", err)
	}
}

func TestReplay_ForeignHandle(t *testing.T) {
	r := adapter.NewReplay(&adapter.Fixture{Roots: []*adapter.FixtureNode{{Name: "x"}}})
	if _, err := r.Name(context.Background(), "not a node"); err == nil {
		t.Error("Name accepted a foreign handle")
	}
}
