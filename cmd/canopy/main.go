// Command canopy discovers the complete contents of a hierarchical
// collection exposed through a lazily-rendered UI tree. The engine is
// adapter-driven; this binary runs it against a replay fixture, which
// is how adapter implementations and heuristic tunings are validated
// before pointing the engine at a live session.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/canopy/pkg/adapter"
	"github.com/vanderheijden86/canopy/pkg/cache"
	"github.com/vanderheijden86/canopy/pkg/config"
	"github.com/vanderheijden86/canopy/pkg/export"
	"github.com/vanderheijden86/canopy/pkg/metrics"
	"github.com/vanderheijden86/canopy/pkg/model"
	"github.com/vanderheijden86/canopy/pkg/paginate"
	"github.com/vanderheijden86/canopy/pkg/progress"
	"github.com/vanderheijden86/canopy/pkg/state"
	"github.com/vanderheijden86/canopy/pkg/ui"
	"github.com/vanderheijden86/canopy/pkg/version"
	"github.com/vanderheijden86/canopy/pkg/walk"
)

func main() {
	fixturePath := flag.String("fixture", "", "Replay fixture YAML describing the collection to traverse")
	configPath := flag.String("config", "", "Config file path (default: XDG config dir)")
	plain := flag.Bool("plain", false, "Print progress as plain text instead of the TUI")
	clearCache := flag.Bool("clear-cache", false, "Clear the traversal cache and exit")
	fresh := flag.Bool("fresh", false, "Discard the cache and resume snapshot before walking")
	exportJSON := flag.String("export-json", "", "Write the resolved tree as JSON to this path")
	exportMD := flag.String("export-md", "", "Write a markdown report to this path")
	exportSnapshot := flag.String("export-snapshot", "", "Render the resolved tree to this path (.svg or .png)")
	title := flag.String("title", "Collection map", "Title used in reports and the TUI")
	versionFlag := flag.Bool("version", false, "Show version")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help {
		fmt.Println("Usage: canopy [options]")
		fmt.Println("\nMaps a hierarchical collection behind a virtualized UI tree.")
		flag.PrintDefaults()
		os.Exit(0)
	}
	if *versionFlag {
		fmt.Printf("canopy %s\n", version.Version)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal("loading config: %v", err)
	}

	store, closeStore, err := openCache(cfg)
	if err != nil {
		fatal("opening cache: %v", err)
	}
	defer closeStore()

	if *clearCache {
		if err := store.Clear(); err != nil {
			fatal("clearing cache: %v", err)
		}
		fmt.Println("cache cleared")
		return
	}

	if *fixturePath == "" {
		fatal("--fixture is required (no live adapter is configured)")
	}
	fixture, err := adapter.LoadFixture(*fixturePath)
	if err != nil {
		fatal("%v", err)
	}
	replay := adapter.NewReplay(fixture)

	states := state.NewFile(cfg.StatePath)
	if *fresh {
		if err := store.Clear(); err != nil {
			fatal("clearing cache: %v", err)
		}
		if err := states.Clear(); err != nil {
			fatal("clearing snapshot: %v", err)
		}
	} else if snap, err := states.Load(); err == nil && snap != nil && snap.InProgress {
		fmt.Fprintf(os.Stderr, "resuming interrupted traversal (last completed: %s)\n",
			model.PathKey(snap.LastCompletedPath))
	}

	reporter := progress.NewChannelReporter(256)
	collector := paginate.New(replay, store, collectorOptions(cfg))
	walker := walk.New(replay, store, states, reporter, collector, walkOptions(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	var result *walk.Result
	g.Go(func() error {
		defer reporter.Close()
		r, err := walker.Walk(ctx, replay.Roots())
		if err != nil {
			return err
		}
		result = r
		return nil
	})

	if *plain {
		g.Go(func() error {
			printEvents(reporter.Events())
			return nil
		})
	} else {
		g.Go(func() error {
			program := tea.NewProgram(ui.NewModel(*title, reporter.Events()))
			_, err := program.Run()
			// Quitting the view makes the reporter fail, which aborts
			// a still-running walk with a resume snapshot in place.
			reporter.Close()
			return err
		})
	}

	if err := g.Wait(); err != nil {
		var structural *walk.StructuralError
		if errors.As(err, &structural) {
			// Nothing was resumable; a retry needs the UI fixed first.
			fmt.Fprintln(os.Stderr, structural.Error())
			os.Exit(2)
		}
		fatal("traversal aborted: %v", err)
	}

	printSummary(result)

	if *exportJSON != "" {
		if err := export.WriteJSON(result, *exportJSON); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("wrote %s\n", *exportJSON)
	}
	if *exportMD != "" {
		if err := export.WriteMarkdown(result, *title, *exportMD); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("wrote %s\n", *exportMD)
	}
	if *exportSnapshot != "" {
		err := export.SaveTreeSnapshot(export.SnapshotOptions{
			Path:   *exportSnapshot,
			Title:  *title,
			Result: result,
		})
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("wrote %s\n", *exportSnapshot)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func openCache(cfg config.Config) (cache.Store, func(), error) {
	if cfg.Cache.Backend == "memory" {
		return cache.NewMemory(), func() {}, nil
	}
	sqlStore, err := cache.NewSQLite(cfg.Cache.Path)
	if err != nil {
		return nil, nil, err
	}
	return sqlStore, func() { sqlStore.Close() }, nil
}

func collectorOptions(cfg config.Config) paginate.Options {
	return paginate.Options{
		BottomThreshold:     cfg.Pagination.BottomThreshold,
		NoNewLimit:          cfg.Pagination.NoNewLimit,
		StuckLimit:          cfg.Pagination.StuckLimit,
		HardNoNewLimit:      cfg.Pagination.HardNoNewLimit,
		MaxAttempts:         cfg.Pagination.MaxAttempts,
		LargeCollectionSize: cfg.Pagination.LargeCollectionSize,
		SettleWait:          cfg.Pagination.SettleWait.Std(),
		LargeSettleWait:     cfg.Pagination.LargeSettleWait.Std(),
	}
}

func walkOptions(cfg config.Config) walk.Options {
	return walk.Options{ExpandSettle: cfg.Walk.ExpandSettle.Std()}
}

func printEvents(events <-chan progress.Event) {
	for ev := range events {
		switch {
		case ev.Progress != nil:
			fmt.Fprintf(os.Stderr, "\rvisited %d nodes across %d roots, %d items",
				ev.Progress.Visited, ev.Progress.Total, ev.Progress.AggregateLeafCount)
		case ev.Completion != nil:
			fmt.Fprintln(os.Stderr)
		case ev.Error != "":
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", ev.Error)
		}
	}
}

func printSummary(result *walk.Result) {
	if result == nil {
		return
	}
	fmt.Printf("resolved %d nodes, %d items\n", result.NodesVisited, result.AggregateLeafCount)
	if len(result.Warnings) > 0 {
		fmt.Printf("%d warnings (counts are lower bounds):\n", len(result.Warnings))
		for _, w := range result.Warnings {
			fmt.Printf("  - %s\n", w)
		}
	}
	if summary := metrics.ScrollLatency.Summary(); summary.Count > 0 {
		fmt.Printf("scroll latency: n=%d mean=%.1fms p95=%.1fms\n",
			summary.Count, summary.MeanMs, summary.P95Ms)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
