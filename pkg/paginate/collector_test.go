package paginate_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/canopy/pkg/adapter"
	"github.com/vanderheijden86/canopy/pkg/cache"
	"github.com/vanderheijden86/canopy/pkg/model"
	"github.com/vanderheijden86/canopy/pkg/paginate"
	"github.com/vanderheijden86/canopy/pkg/testutil"
)

func collectLeaf(t *testing.T, replay *adapter.Replay, store cache.Store) ([]model.LeafRecord, []model.Warning) {
	t.Helper()
	collector := paginate.New(replay, store, testutil.FastOptions())
	records, warnings, err := collector.Collect(context.Background(), "Library/Rock", replay.Roots()[0])
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return records, warnings
}

func TestCollect_SmallCollection(t *testing.T) {
	replay := adapter.NewReplay(testutil.Fixture(testutil.Leaf("Rock", 3)))
	records, warnings := collectLeaf(t, replay, cache.NewMemory())

	testutil.AssertRecordCount(t, records, 3)
	testutil.AssertDistinctIdentities(t, records)
	testutil.AssertWarningCount(t, warnings, 0)

	// Everything fits in one viewport: the loop stops on the quiet
	// at-bottom condition, nowhere near the hard caps.
	if attempts := replay.CallsFor("advance_scroll"); attempts >= paginate.DefaultHardNoNewLimit {
		t.Errorf("took %d scroll attempts for a tiny collection", attempts)
	}
}

func TestCollect_EmptyCollection(t *testing.T) {
	replay := adapter.NewReplay(testutil.Fixture(testutil.Leaf("Rock", 0)))
	records, warnings := collectLeaf(t, replay, cache.NewMemory())

	testutil.AssertRecordCount(t, records, 0)
	testutil.AssertWarningCount(t, warnings, 0)
}

func TestCollect_LargeCollectionWithRenderLag(t *testing.T) {
	fixture := testutil.Fixture(testutil.Leaf("Rock", 250))
	fixture.RenderLag = 3
	replay := adapter.NewReplay(fixture)

	records, warnings := collectLeaf(t, replay, cache.NewMemory())

	// A renderer that pauses for several iterations mid-list must not
	// be mistaken for exhaustion: every record is still collected.
	testutil.AssertRecordCount(t, records, 250)
	testutil.AssertDistinctIdentities(t, records)
	testutil.AssertWarningCount(t, warnings, 0)
}

func TestCollect_SkipsUnreadableRecord(t *testing.T) {
	leaf := testutil.Leaf("Rock", 2)
	leaf.Records = append(leaf.Records, adapter.RawRecord{Title: "No identity"})
	replay := adapter.NewReplay(testutil.Fixture(leaf))

	records, warnings := collectLeaf(t, replay, cache.NewMemory())

	testutil.AssertRecordCount(t, records, 2)
	// One warning total, not one per extraction pass over the same
	// broken element.
	testutil.AssertWarningCount(t, warnings, 1)
	if len(warnings) == 1 && !strings.Contains(warnings[0].Message, "unreadable record") {
		t.Errorf("warning = %q", warnings[0].Message)
	}
}

func TestCollect_EndlessListHitsAttemptCap(t *testing.T) {
	replay := adapter.NewReplay(testutil.Fixture(testutil.Leaf("Rock", 1)))
	replay.Endless = true

	records, warnings := collectLeaf(t, replay, cache.NewMemory())

	if len(records) == 0 {
		t.Fatal("no records collected before the cap")
	}
	testutil.AssertWarningCount(t, warnings, 1)
	if len(warnings) == 1 && !strings.Contains(warnings[0].Message, "attempt cap") {
		t.Errorf("warning = %q", warnings[0].Message)
	}
	if attempts := replay.CallsFor("advance_scroll"); attempts != paginate.DefaultMaxAttempts {
		t.Errorf("advanced %d times, want exactly the cap %d", attempts, paginate.DefaultMaxAttempts)
	}
}

func TestCollect_StuckAtBottomStops(t *testing.T) {
	replay := adapter.NewReplay(testutil.Fixture(testutil.Leaf("Rock", 3)))
	replay.BottomTrickle = 20

	records, warnings := collectLeaf(t, replay, cache.NewMemory())

	// Records trickle in at the bottom without the scroll metrics ever
	// changing: the frozen-view condition ends the loop long before the
	// trickle is drained, and a clean stop carries no warning.
	if len(records) >= 3+20 {
		t.Errorf("collected %d records, loop did not stop on the frozen view", len(records))
	}
	testutil.AssertRecordCount(t, records, 6)
	testutil.AssertWarningCount(t, warnings, 0)
}

func TestCollect_ServesFromCache(t *testing.T) {
	store := cache.NewMemory()
	cached := []model.LeafRecord{{Identity: "cached-1"}, {Identity: "cached-2"}}
	if err := store.SetLeaves("Library/Rock", cached); err != nil {
		t.Fatal(err)
	}

	replay := adapter.NewReplay(testutil.Fixture(testutil.Leaf("Rock", 3)))
	records, warnings := collectLeaf(t, replay, store)

	testutil.AssertRecordCount(t, records, 2)
	testutil.AssertWarningCount(t, warnings, 0)
	if replay.Calls() != 0 {
		t.Errorf("cache hit still made %d adapter calls", replay.Calls())
	}
}

func TestCollect_WritesResultToCache(t *testing.T) {
	store := cache.NewMemory()
	replay := adapter.NewReplay(testutil.Fixture(testutil.Leaf("Rock", 3)))
	collectLeaf(t, replay, store)

	records, ok := store.GetLeaves("Library/Rock")
	if !ok {
		t.Fatal("collection not cached")
	}
	testutil.AssertRecordCount(t, records, 3)
}

func TestCollect_Cancellation(t *testing.T) {
	replay := adapter.NewReplay(testutil.Fixture(testutil.Leaf("Rock", 3)))
	collector := paginate.New(replay, cache.NewMemory(), testutil.FastOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := collector.Collect(ctx, "Library/Rock", replay.Roots()[0])
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Collect = %v, want context.Canceled", err)
	}
}

// failingSelect wraps Replay and refuses leaf selection.
type failingSelect struct {
	*adapter.Replay
}

func (f *failingSelect) SelectLeafNode(context.Context, adapter.NodeHandle) error {
	return fmt.Errorf("element detached")
}

func TestCollect_SelectFailureIsError(t *testing.T) {
	replay := adapter.NewReplay(testutil.Fixture(testutil.Leaf("Rock", 3)))
	collector := paginate.New(&failingSelect{replay}, cache.NewMemory(), testutil.FastOptions())

	_, _, err := collector.Collect(context.Background(), "Library/Rock", replay.Roots()[0])
	if err == nil || !strings.Contains(err.Error(), "detached") {
		t.Fatalf("Collect = %v, want selection error", err)
	}
}

func TestCollect_CompleteForAnySizeAndLag(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 80).Draw(t, "records")
		fixture := testutil.Fixture(testutil.Leaf("Rock", n))
		fixture.RenderLag = rapid.IntRange(0, 4).Draw(t, "lag")
		replay := adapter.NewReplay(fixture)

		collector := paginate.New(replay, cache.NewMemory(), testutil.FastOptions())
		records, warnings, err := collector.Collect(context.Background(), "Library/Rock", replay.Roots()[0])
		if err != nil {
			t.Fatalf("Collect: %v", err)
		}
		if len(records) != n {
			t.Fatalf("collected %d of %d records (lag %d)", len(records), n, fixture.RenderLag)
		}
		if len(warnings) != 0 {
			t.Fatalf("warnings on a well-behaved list: %v", warnings)
		}
		seen := make(map[string]bool, len(records))
		for _, r := range records {
			if seen[r.Identity] {
				t.Fatalf("duplicate identity %s", r.Identity)
			}
			seen[r.Identity] = true
		}
	})
}

func TestCollect_DedupAcrossOverlappingWindows(t *testing.T) {
	// 0.8-viewport advances deliberately overlap windows; the identity
	// dedup must keep each record exactly once.
	replay := adapter.NewReplay(testutil.Fixture(testutil.Leaf("Rock", 40)))
	records, _ := collectLeaf(t, replay, cache.NewMemory())

	testutil.AssertRecordCount(t, records, 40)
	testutil.AssertDistinctIdentities(t, records)
}
