// Package export writes a resolved traversal out for downstream use:
// machine-readable JSON for tooling and a markdown report for humans.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/canopy/pkg/model"
	"github.com/vanderheijden86/canopy/pkg/walk"
)

// WriteJSON writes the traversal result as indented JSON.
func WriteJSON(result *walk.Result, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	return nil
}

// GenerateMarkdown renders the resolved forest as a markdown report:
// the tree with per-node item counts, the largest leaf collections, and
// any warnings that make the run's counts a lower bound.
func GenerateMarkdown(result *walk.Result, title string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString(fmt.Sprintf("*Generated: %s*\n\n", time.Now().Format(time.RFC1123)))

	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- Nodes visited: %d\n", result.NodesVisited))
	sb.WriteString(fmt.Sprintf("- Total items: %d\n", result.AggregateLeafCount))
	sb.WriteString(fmt.Sprintf("- Warnings: %d\n\n", len(result.Warnings)))

	sb.WriteString("## Structure\n\n")
	for _, root := range result.Roots {
		writeTree(&sb, root, 0)
	}
	sb.WriteString("\n")

	if leaves := largestLeaves(result.Roots, 10); len(leaves) > 0 {
		sb.WriteString("## Largest collections\n\n")
		sb.WriteString("| Path | Items |\n")
		sb.WriteString("| --- | ---: |\n")
		for _, leaf := range leaves {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", leaf.PathKey(), leaf.ItemCount))
		}
		sb.WriteString("\n")
	}

	if len(result.Warnings) > 0 {
		sb.WriteString("## Warnings\n\n")
		sb.WriteString("Counts below warned paths are lower bounds.\n\n")
		for _, w := range result.Warnings {
			sb.WriteString(fmt.Sprintf("- `%s`: %s\n", w.Path, w.Message))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// WriteMarkdown renders and writes the markdown report.
func WriteMarkdown(result *walk.Result, title, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateMarkdown(result, title)), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

func writeTree(sb *strings.Builder, node *model.TreeNode, depth int) {
	indent := strings.Repeat("  ", depth)
	if node.HasChildren {
		sb.WriteString(fmt.Sprintf("%s- **%s** (%d items)\n", indent, node.Name, node.ItemCount))
		for _, child := range node.Children {
			writeTree(sb, child, depth+1)
		}
		return
	}
	sb.WriteString(fmt.Sprintf("%s- %s (%d items)\n", indent, node.Name, node.ItemCount))
}

// largestLeaves returns up to n leaf nodes ordered by item count
// descending, ties broken by path for stable output.
func largestLeaves(roots []*model.TreeNode, n int) []*model.TreeNode {
	var leaves []*model.TreeNode
	var gather func(node *model.TreeNode)
	gather = func(node *model.TreeNode) {
		if !node.HasChildren {
			if node.ItemCount > 0 {
				leaves = append(leaves, node)
			}
			return
		}
		for _, child := range node.Children {
			gather(child)
		}
	}
	for _, root := range roots {
		gather(root)
	}

	sort.Slice(leaves, func(i, j int) bool {
		if leaves[i].ItemCount != leaves[j].ItemCount {
			return leaves[i].ItemCount > leaves[j].ItemCount
		}
		return leaves[i].PathKey() < leaves[j].PathKey()
	})
	if len(leaves) > n {
		leaves = leaves[:n]
	}
	return leaves
}
