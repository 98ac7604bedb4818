package align

import (
	"fmt"
	"strconv"
	"strings"

	"FinForge/internal/frame"
	applogger "FinForge/pkg/logger"
)

// Exact aligns series with a strict inner join on identical timestamps.
// Appropriate for daily or lower-frequency bars; on high-frequency data it
// is expected to drop most rows.
type Exact struct {
	log *applogger.Logger
}

// NewExact creates an exact-match aligner.
func NewExact(log *applogger.Logger) *Exact {
	return &Exact{log: log}
}

// Method describes the join.
func (a *Exact) Method() string {
	return "exact_inner_join"
}

// Align keeps only timestamps present in every input series.
func (a *Exact) Align(series map[string]*frame.Frame, opts Options) (*frame.Frame, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("alignment: no series provided")
	}

	symbols := sortedSymbols(series)
	frames := make(map[string]*frame.Frame, len(symbols))
	for _, symbol := range symbols {
		std, err := standardize(series[symbol], symbol)
		if err != nil {
			return nil, fmt.Errorf("alignment: %w", err)
		}
		frames[symbol] = std
	}

	// Intersect all timestamp axes; each axis is sorted and unique after
	// standardization.
	common := append([]int64(nil), frames[symbols[0]].Timestamps()...)
	for _, symbol := range symbols[1:] {
		common = intersectSorted(common, frames[symbol].Timestamps())
	}

	out := frame.New(common)
	for _, symbol := range symbols {
		src := frames[symbol]
		rows := indexOfAll(src.Timestamps(), common)
		suffix := opts.SuffixFor(symbol)
		for _, name := range src.Columns() {
			col, _ := src.Column(name)
			vals := make([]float64, len(common))
			valid := make([]bool, len(common))
			for i, r := range rows {
				vals[i] = col.Vals[r]
				valid[i] = col.Valid[r]
			}
			if err := out.AddColumn(name+suffix, vals, valid); err != nil {
				return nil, fmt.Errorf("alignment: %w", err)
			}
		}
	}

	out.SetAttr("aligned_symbols", strings.Join(symbols, ","))
	out.SetAttr("anchor_symbol", symbols[0])
	out.SetAttr("alignment_method", a.Method())
	out.SetAttr("symbol_count", strconv.Itoa(len(symbols)))

	if a.log != nil {
		a.log.Info("exact alignment complete",
			applogger.Int("symbols", len(symbols)),
			applogger.Int("rows", out.NumRows()),
		)
	}
	return out, nil
}

// intersectSorted returns elements present in both sorted unique slices.
func intersectSorted(a, b []int64) []int64 {
	out := a[:0]
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

// indexOfAll maps each wanted timestamp to its row in the sorted axis.
// Every wanted timestamp is guaranteed present by construction.
func indexOfAll(axis []int64, wanted []int64) []int {
	rows := make([]int, len(wanted))
	j := 0
	for i, t := range wanted {
		for axis[j] != t {
			j++
		}
		rows[i] = j
	}
	return rows
}
