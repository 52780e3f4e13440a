package textdetect

import (
	"math"
	"sort"
	"strings"

	"lensd/pkg/types"
)

// mergeFactor scales the taller line height into the vertical merge
// threshold.
const mergeFactor = 0.8

// GroupLines merges line observations into blocks. Lines are visited by
// vertical center, top first; a line joins the current block when its center
// is within mergeFactor times the taller height of the block's last line and
// the two horizontal spans overlap. Otherwise it starts a new block.
func GroupLines(lines []Line) []types.TextBlock {
	if len(lines) == 0 {
		return []types.TextBlock{}
	}
	sorted := make([]Line, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Box.MidY() > sorted[j].Box.MidY()
	})

	var blocks []types.TextBlock
	var texts []string
	var last Line
	flush := func() {
		if len(texts) == 0 {
			return
		}
		blocks[len(blocks)-1].Text = strings.Join(texts, "\n")
		texts = texts[:0]
	}
	for i, ln := range sorted {
		if i > 0 && sameBlock(last, ln) {
			b := &blocks[len(blocks)-1]
			b.Box = b.Box.Union(ln.Box)
			b.Confidence = math.Min(b.Confidence, ln.Confidence)
		} else {
			flush()
			blocks = append(blocks, types.TextBlock{Box: ln.Box, Confidence: ln.Confidence})
		}
		texts = append(texts, ln.Text)
		last = ln
	}
	flush()
	return blocks
}

func sameBlock(prev, next Line) bool {
	threshold := mergeFactor * math.Max(prev.Box.Height, next.Box.Height)
	if math.Abs(prev.Box.MidY()-next.Box.MidY()) >= threshold {
		return false
	}
	return prev.Box.MinX() < next.Box.MaxX() && next.Box.MinX() < prev.Box.MaxX()
}
