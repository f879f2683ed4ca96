package export

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/canopy/pkg/model"
	"github.com/vanderheijden86/canopy/pkg/walk"
)

// SnapshotOptions controls tree snapshot export behaviour.
type SnapshotOptions struct {
	Path   string       // Output path; format inferred from extension when Format empty
	Format string       // "svg" or "png" (case-insensitive). If empty, inferred from Path.
	Title  string       // Optional title rendered in the summary block
	Result *walk.Result // Resolved forest to render
}

// SaveTreeSnapshot renders the resolved forest as a static image (SVG or
// PNG): one column per tree depth, parent-to-child connectors, and node
// boxes colored by kind. Paths that produced warnings are highlighted so
// a degraded run is visible at a glance.
func SaveTreeSnapshot(opts SnapshotOptions) error {
	if opts.Result == nil || len(opts.Result.Roots) == 0 {
		return fmt.Errorf("no resolved tree to export")
	}

	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(opts.Path)) {
		case ".svg":
			format = "svg"
		case ".png":
			format = "png"
		default:
			format = "svg" // safe default
			if opts.Path != "" && filepath.Ext(opts.Path) == "" {
				opts.Path = opts.Path + ".svg"
			}
		}
	}
	if format != "svg" && format != "png" {
		return fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	layout := buildTreeLayout(opts)

	switch format {
	case "svg":
		return renderTreeSVG(opts.Path, layout)
	case "png":
		return renderTreePNG(opts.Path, layout)
	default:
		return fmt.Errorf("unhandled format %q", format)
	}
}

// --- layout computation ----------------------------------------------------

type treeLayoutNode struct {
	Key       string // path key, used as edge endpoint identity
	Label     string
	ItemCount int
	Container bool
	Warned    bool
	X, Y      float64
	NodeW     float64
	NodeH     float64
}

type treeLayoutEdge struct {
	From string
	To   string
}

type treeLayout struct {
	Nodes   []treeLayoutNode
	Edges   []treeLayoutEdge
	Width   int
	Height  int
	Header  float64
	Summary treeSummary
}

type treeSummary struct {
	Title        string
	NodeCount    int
	ItemCount    int
	WarningCount int
}

func buildTreeLayout(opts SnapshotOptions) treeLayout {
	const (
		nodeW        = 180.0
		nodeH        = 56.0
		colGap       = 70.0
		rowGap       = 24.0
		padding      = 36.0
		headerHeight = 120.0
	)

	warned := make(map[string]bool, len(opts.Result.Warnings))
	for _, w := range opts.Result.Warnings {
		warned[w.Path] = true
	}

	// Depth-first flatten, bucketed by depth so each depth becomes one
	// column and rendered order within a column follows traversal order.
	buckets := make(map[int][]treeLayoutNode)
	var edges []treeLayoutEdge
	maxDepth := 0

	var place func(node *model.TreeNode, depth int)
	place = func(node *model.TreeNode, depth int) {
		if depth > maxDepth {
			maxDepth = depth
		}
		key := node.PathKey()
		buckets[depth] = append(buckets[depth], treeLayoutNode{
			Key:       key,
			Label:     truncateLabel(node.Name, 22),
			ItemCount: node.ItemCount,
			Container: node.HasChildren,
			Warned:    warned[key],
			NodeW:     nodeW,
			NodeH:     nodeH,
		})
		for _, child := range node.Children {
			edges = append(edges, treeLayoutEdge{From: key, To: child.PathKey()})
			place(child, depth+1)
		}
	}
	for _, root := range opts.Result.Roots {
		place(root, 0)
	}

	var nodes []treeLayoutNode
	maxRows := 0
	for depth := 0; depth <= maxDepth; depth++ {
		bucket := buckets[depth]
		if len(bucket) > maxRows {
			maxRows = len(bucket)
		}
		for idx := range bucket {
			bucket[idx].X = padding + float64(depth)*(nodeW+colGap)
			bucket[idx].Y = padding + headerHeight + float64(idx)*(nodeH+rowGap)
			nodes = append(nodes, bucket[idx])
		}
	}

	width := int(padding*2 + float64(maxDepth+1)*(nodeW+colGap) + nodeW)
	if width < 640 {
		width = 640
	}
	height := int(padding*2 + headerHeight + float64(maxRows)*(nodeH+rowGap) + nodeH)
	if height < 480 {
		height = 480
	}

	title := opts.Title
	if strings.TrimSpace(title) == "" {
		title = "Collection map"
	}

	return treeLayout{
		Nodes:  nodes,
		Edges:  edges,
		Width:  width,
		Height: height,
		Header: headerHeight,
		Summary: treeSummary{
			Title:        title,
			NodeCount:    opts.Result.NodesVisited,
			ItemCount:    opts.Result.AggregateLeafCount,
			WarningCount: len(opts.Result.Warnings),
		},
	}
}

// --- rendering -------------------------------------------------------------

var (
	treeColorContainer = color.RGBA{0xbb, 0xde, 0xfb, 0xff}
	treeColorLeaf      = color.RGBA{0xc8, 0xe6, 0xc9, 0xff}
	treeColorEmpty     = color.RGBA{0xcf, 0xd8, 0xdc, 0xff}
	treeColorWarned    = color.RGBA{0xff, 0xcd, 0xd2, 0xff}
	treeColorStroke    = color.RGBA{0x22, 0x22, 0x22, 0xff}
	treeColorEdge      = color.RGBA{0x6b, 0x80, 0xbf, 0xff}
	treeColorText      = color.RGBA{0x11, 0x11, 0x11, 0xff}
	treeColorSubtle    = color.RGBA{0x66, 0x66, 0x66, 0xff}
	treeColorBackdrop  = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	treeColorHeaderBG  = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
	treeColorLegendBG  = color.RGBA{0xee, 0xee, 0xee, 0xff}
)

func treeNodeColor(n treeLayoutNode) color.RGBA {
	switch {
	case n.Warned:
		return treeColorWarned
	case n.Container:
		return treeColorContainer
	case n.ItemCount == 0:
		return treeColorEmpty
	default:
		return treeColorLeaf
	}
}

func renderTreePNG(path string, layout treeLayout) error {
	dc := gg.NewContext(layout.Width, layout.Height)
	dc.SetColor(treeColorBackdrop)
	dc.Clear()

	dc.SetColor(treeColorHeaderBG)
	dc.DrawRoundedRectangle(16, 16, float64(layout.Width)-32, layout.Header-24, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)

	drawTreeSummary(dc, layout)
	drawTreeLegend(dc, layout)

	nodePos := make(map[string]treeLayoutNode, len(layout.Nodes))
	for _, n := range layout.Nodes {
		nodePos[n.Key] = n
	}
	dc.SetColor(treeColorEdge)
	dc.SetLineWidth(2)
	for _, e := range layout.Edges {
		from := nodePos[e.From]
		to := nodePos[e.To]
		dc.DrawLine(from.X+from.NodeW, from.Y+from.NodeH/2, to.X, to.Y+to.NodeH/2)
		dc.Stroke()
	}

	for _, n := range layout.Nodes {
		drawTreeNode(dc, n)
	}

	return dc.SavePNG(path)
}

func renderTreeSVG(path string, layout treeLayout) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return renderTreeSVGToWriter(file, layout)
}

func renderTreeSVGToWriter(w io.Writer, layout treeLayout) error {
	canvas := svg.New(w)
	canvas.Start(layout.Width, layout.Height)
	canvas.Rect(0, 0, layout.Width, layout.Height, fmt.Sprintf("fill:%s", cssColor(treeColorBackdrop)))
	canvas.Roundrect(16, 16, layout.Width-32, int(layout.Header-24), 10, 10, fmt.Sprintf("fill:%s", cssColor(treeColorHeaderBG)))

	drawTreeSummarySVG(canvas, layout)
	drawTreeLegendSVG(canvas, layout)

	nodePos := make(map[string]treeLayoutNode, len(layout.Nodes))
	for _, n := range layout.Nodes {
		nodePos[n.Key] = n
	}
	for _, e := range layout.Edges {
		from := nodePos[e.From]
		to := nodePos[e.To]
		canvas.Line(int(from.X+from.NodeW), int(from.Y+from.NodeH/2), int(to.X), int(to.Y+to.NodeH/2),
			fmt.Sprintf("stroke:%s;stroke-width:2", cssColor(treeColorEdge)))
	}

	for _, n := range layout.Nodes {
		x := int(n.X)
		y := int(n.Y)
		canvas.Roundrect(x, y, int(n.NodeW), int(n.NodeH), 8, 8,
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1.2", cssColor(treeNodeColor(n)), cssColor(treeColorStroke)))
		canvas.Text(x+10, y+22, n.Label, fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold", cssColor(treeColorText)))
		canvas.Text(x+10, y+42, fmt.Sprintf("%d items", n.ItemCount),
			fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", cssColor(treeColorSubtle)))
	}

	canvas.End()
	return nil
}

func drawTreeNode(dc *gg.Context, n treeLayoutNode) {
	dc.SetColor(treeNodeColor(n))
	dc.DrawRoundedRectangle(n.X, n.Y, n.NodeW, n.NodeH, 8)
	dc.Fill()
	dc.SetColor(treeColorStroke)
	dc.SetLineWidth(1.2)
	dc.DrawRoundedRectangle(n.X, n.Y, n.NodeW, n.NodeH, 8)
	dc.Stroke()

	dc.SetColor(treeColorText)
	dc.DrawStringAnchored(n.Label, n.X+10, n.Y+18, 0, 0.5)
	dc.SetColor(treeColorSubtle)
	dc.DrawStringAnchored(fmt.Sprintf("%d items", n.ItemCount), n.X+10, n.Y+38, 0, 0.5)
}

func drawTreeSummary(dc *gg.Context, layout treeLayout) {
	dc.SetColor(treeColorText)
	dc.DrawStringAnchored(layout.Summary.Title, 32, 44, 0, 0.5)
	dc.SetColor(treeColorSubtle)
	dc.DrawStringAnchored(fmt.Sprintf("nodes: %d  items: %d", layout.Summary.NodeCount, layout.Summary.ItemCount), 32, 64, 0, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("warnings: %d", layout.Summary.WarningCount), 32, 84, 0, 0.5)
	if layout.Summary.WarningCount > 0 {
		dc.DrawStringAnchored("counts are lower bounds", 32, 104, 0, 0.5)
	}
}

func drawTreeLegend(dc *gg.Context, layout treeLayout) {
	boxW := 190.0
	boxH := 96.0
	x := float64(layout.Width) - boxW - 20
	y := 24.0
	dc.SetColor(treeColorLegendBG)
	dc.DrawRoundedRectangle(x, y, boxW, boxH, 10)
	dc.Fill()
	dc.SetColor(treeColorStroke)
	dc.DrawRoundedRectangle(x, y, boxW, boxH, 10)
	dc.Stroke()

	dc.SetColor(treeColorText)
	dc.DrawStringAnchored("Legend", x+12, y+18, 0, 0.5)
	drawTreeLegendRow(dc, x+12, y+36, treeColorContainer, "Folder")
	drawTreeLegendRow(dc, x+12, y+52, treeColorLeaf, "Collection")
	drawTreeLegendRow(dc, x+12, y+68, treeColorEmpty, "Empty")
	drawTreeLegendRow(dc, x+12, y+84, treeColorWarned, "Degraded (lower bound)")
}

func drawTreeLegendRow(dc *gg.Context, x, y float64, c color.RGBA, label string) {
	dc.SetColor(c)
	dc.DrawRoundedRectangle(x, y-8, 14, 14, 3)
	dc.Fill()
	dc.SetColor(treeColorStroke)
	dc.DrawRoundedRectangle(x, y-8, 14, 14, 3)
	dc.Stroke()
	dc.SetColor(treeColorSubtle)
	dc.DrawStringAnchored(label, x+20, y, 0, 0.5)
}

func drawTreeSummarySVG(canvas *svg.SVG, layout treeLayout) {
	canvas.Text(32, 44, layout.Summary.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", cssColor(treeColorText)))
	canvas.Text(32, 64, fmt.Sprintf("nodes: %d  items: %d", layout.Summary.NodeCount, layout.Summary.ItemCount),
		fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", cssColor(treeColorSubtle)))
	canvas.Text(32, 84, fmt.Sprintf("warnings: %d", layout.Summary.WarningCount),
		fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", cssColor(treeColorSubtle)))
	if layout.Summary.WarningCount > 0 {
		canvas.Text(32, 104, "counts are lower bounds",
			fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", cssColor(treeColorSubtle)))
	}
}

func drawTreeLegendSVG(canvas *svg.SVG, layout treeLayout) {
	boxW := 190
	boxH := 96
	x := layout.Width - boxW - 20
	y := 24
	canvas.Roundrect(x, y, boxW, boxH, 10, 10, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", cssColor(treeColorLegendBG), cssColor(treeColorStroke)))
	canvas.Text(x+12, y+18, "Legend", fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold", cssColor(treeColorText)))
	drawTreeLegendRowSVG(canvas, x+12, y+36, treeColorContainer, "Folder")
	drawTreeLegendRowSVG(canvas, x+12, y+52, treeColorLeaf, "Collection")
	drawTreeLegendRowSVG(canvas, x+12, y+68, treeColorEmpty, "Empty")
	drawTreeLegendRowSVG(canvas, x+12, y+84, treeColorWarned, "Degraded")
}

func drawTreeLegendRowSVG(canvas *svg.SVG, x, y int, c color.RGBA, label string) {
	canvas.Roundrect(x, y-8, 14, 14, 3, 3, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", cssColor(c), cssColor(treeColorStroke)))
	canvas.Text(x+20, y, label, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", cssColor(treeColorSubtle)))
}

// --- helpers ---------------------------------------------------------------

func truncateLabel(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func cssColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
