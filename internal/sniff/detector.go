package sniff

import (
	"log/slog"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// Threshold is the minimum confidence a layout must reach to win detection.
const Threshold = 0.6

// Detect sniffs the layout of a full row matrix. It never fails: when no
// layout clears the threshold it falls back to the default layout's own best
// probe, and downstream stages must tolerate the thin column map that
// implies.
func Detect(rows [][]string) model.LayoutDetection {
	empty := model.LayoutDetection{
		Layout:  defaultLayout,
		Columns: map[string]int{},
	}
	best := empty
	fallback := empty

	// Offsets are probed nominal-first and only a strictly higher confidence
	// replaces the incumbent, so ties prefer the nominal offset.
	for _, spec := range layouts {
		for _, offset := range candidateOffsets(spec, len(rows)) {
			det := scoreOffset(spec, rows[offset], offset)
			if det.Confidence > best.Confidence {
				best = det
			}
			if spec.id == defaultLayout && det.Confidence > fallback.Confidence {
				fallback = det
			}
		}
	}

	if best.Confidence < Threshold {
		slog.Debug("no layout cleared detection threshold, using fallback",
			"best_layout", best.Layout,
			"best_confidence", best.Confidence)
		best = fallback
	}
	return best
}

// candidateOffsets returns the header-row offsets to probe for a layout, the
// nominal offset first so ties resolve in its favor.
func candidateOffsets(spec layoutSpec, rowCount int) []int {
	offsets := make([]int, 0, 2*spec.window+1)
	appendIfValid := func(off int) {
		if off >= 0 && off < rowCount {
			offsets = append(offsets, off)
		}
	}
	appendIfValid(spec.nominal)
	for d := 1; d <= spec.window; d++ {
		appendIfValid(spec.nominal - d)
		appendIfValid(spec.nominal + d)
	}
	return offsets
}

// scoreOffset rates one candidate header row for one layout. Confidence is
// the fraction of required labels found; recognized optional labels still
// land in the column map so the parser can use them.
func scoreOffset(spec layoutSpec, header []string, offset int) model.LayoutDetection {
	columns := make(map[string]int)

	found := 0
	for _, label := range spec.required {
		if idx := findColumn(header, label); idx >= 0 {
			columns[label.field] = idx
			found++
		}
	}
	for _, label := range spec.optional {
		if idx := findColumn(header, label); idx >= 0 {
			columns[label.field] = idx
		}
	}

	return model.LayoutDetection{
		Layout:     spec.id,
		HeaderRow:  offset,
		Columns:    columns,
		Confidence: float64(found) / float64(len(spec.required)),
	}
}

func findColumn(header []string, label headerLabel) int {
	for idx, cell := range header {
		cell = normalizeHeader(cell)
		if cell == "" {
			continue
		}
		for _, alias := range label.aliases {
			if strings.Contains(cell, alias) {
				return idx
			}
		}
	}
	return -1
}

func normalizeHeader(cell string) string {
	cell = strings.TrimSpace(cell)
	cell = strings.TrimPrefix(cell, "\ufeff")
	return cell
}
