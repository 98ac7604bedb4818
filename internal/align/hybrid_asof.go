package align

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"FinForge/internal/frame"
	applogger "FinForge/pkg/logger"
)

// HybridAsof aligns follower series onto an anchor's timestamp grid with a
// nearest-match join bounded by a tolerance window.
//
// Every input series is standardized first: sorted ascending and
// deduplicated by timestamp keeping the last write. Followers that fail
// standardization are skipped with a warning; a broken anchor aborts the
// whole alignment.
type HybridAsof struct {
	tolerance   string
	toleranceMS int64
	direction   Direction
	log         *applogger.Logger
}

// NewHybridAsof validates the configuration up front. Fail fast on a bad
// tolerance or direction.
func NewHybridAsof(tolerance string, direction Direction, log *applogger.Logger) (*HybridAsof, error) {
	if direction == "" {
		direction = Backward
	}
	if direction != Backward && direction != Forward {
		return nil, fmt.Errorf("invalid asof direction %q: must be %q or %q", direction, Backward, Forward)
	}
	if tolerance == "" {
		tolerance = "1m"
	}
	ms, err := parseTolerance(tolerance)
	if err != nil {
		return nil, err
	}
	return &HybridAsof{
		tolerance:   tolerance,
		toleranceMS: ms,
		direction:   direction,
		log:         log,
	}, nil
}

// Method describes the configured join.
func (a *HybridAsof) Method() string {
	return fmt.Sprintf("join_asof(tol=%s, direction=%s)", a.tolerance, a.direction)
}

// Align merges all series onto the anchor's timestamp axis.
func (a *HybridAsof) Align(series map[string]*frame.Frame, opts Options) (*frame.Frame, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("alignment: no series provided")
	}

	symbols := sortedSymbols(series)
	anchor := opts.Anchor
	if anchor == "" {
		anchor = symbols[0]
	}
	if _, ok := series[anchor]; !ok {
		return nil, fmt.Errorf("alignment: anchor symbol %q not present in input", anchor)
	}

	anchorFrame, err := standardize(series[anchor], anchor)
	if err != nil {
		return nil, fmt.Errorf("alignment: prepare anchor: %w", err)
	}

	out := frame.New(append([]int64(nil), anchorFrame.Timestamps()...))
	if err := copySuffixed(out, anchorFrame, opts.SuffixFor(anchor)); err != nil {
		return nil, fmt.Errorf("alignment: prepare anchor: %w", err)
	}

	aligned := []string{anchor}
	for _, symbol := range symbols {
		if symbol == anchor {
			continue
		}
		follower, err := standardize(series[symbol], symbol)
		if err != nil {
			// Non-critical follower: skip with a warning, keep going.
			if a.log != nil {
				a.log.Warn("alignment: skipping follower",
					applogger.String("symbol", symbol),
					applogger.Error(err),
				)
			}
			continue
		}
		if err := a.joinFollower(out, follower, opts.SuffixFor(symbol)); err != nil {
			return nil, fmt.Errorf("alignment: join %s: %w", symbol, err)
		}
		aligned = append(aligned, symbol)
	}

	if opts.Strict {
		dropped := dropNullRows(out)
		if dropped > 0 && a.log != nil {
			a.log.Warn("alignment: dropped incomplete rows",
				applogger.Int("rows", dropped),
			)
		}
	}

	out.SetAttr("aligned_symbols", strings.Join(aligned, ","))
	out.SetAttr("anchor_symbol", anchor)
	out.SetAttr("alignment_method", a.Method())
	out.SetAttr("symbol_count", strconv.Itoa(len(aligned)))

	if a.log != nil {
		a.log.Info("alignment complete",
			applogger.Int("symbols", len(aligned)),
			applogger.Int("rows", out.NumRows()),
			applogger.String("anchor", anchor),
		)
	}
	return out, nil
}

// joinFollower asof-joins every column of the follower onto the output grid.
func (a *HybridAsof) joinFollower(out *frame.Frame, follower *frame.Frame, suffix string) error {
	grid := out.Timestamps()
	fts := follower.Timestamps()

	// Resolve the matched follower row per grid timestamp once, then gather
	// all columns through it.
	match := make([]int, len(grid))
	for i, t := range grid {
		match[i] = a.lookup(fts, t)
	}

	for _, name := range follower.Columns() {
		src, _ := follower.Column(name)
		vals := make([]float64, len(grid))
		valid := make([]bool, len(grid))
		for i, m := range match {
			if m >= 0 && src.Valid[m] {
				vals[i] = src.Vals[m]
				valid[i] = true
			}
		}
		if err := out.AddColumn(name+suffix, vals, valid); err != nil {
			return err
		}
	}
	return nil
}

// lookup returns the follower row index matching timestamp t under the
// configured direction and tolerance, or -1 when no row is close enough.
func (a *HybridAsof) lookup(fts []int64, t int64) int {
	switch a.direction {
	case Forward:
		// earliest row at or after t
		i := sort.Search(len(fts), func(i int) bool { return fts[i] >= t })
		if i < len(fts) && fts[i]-t <= a.toleranceMS {
			return i
		}
	default:
		// latest row at or before t
		i := sort.Search(len(fts), func(i int) bool { return fts[i] > t })
		if i > 0 && t-fts[i-1] <= a.toleranceMS {
			return i - 1
		}
	}
	return -1
}

// copySuffixed copies every data column of src into dst under the suffixed
// name. The timestamp column is never suffixed.
func copySuffixed(dst *frame.Frame, src *frame.Frame, suffix string) error {
	for _, name := range src.Columns() {
		col, _ := src.Column(name)
		vals := append([]float64(nil), col.Vals...)
		valid := append([]bool(nil), col.Valid...)
		if err := dst.AddColumn(name+suffix, vals, valid); err != nil {
			return err
		}
	}
	return nil
}

// dropNullRows removes rows containing any null cell and returns how many
// were dropped.
func dropNullRows(f *frame.Frame) int {
	keep := make([]bool, f.NumRows())
	dropped := 0
	for i := range keep {
		keep[i] = true
		for _, name := range f.Columns() {
			if _, ok := f.Value(name, i); !ok {
				keep[i] = false
				dropped++
				break
			}
		}
	}
	if dropped > 0 {
		f.FilterRows(keep)
	}
	return dropped
}
