package align

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"FinForge/internal/frame"
	applogger "FinForge/pkg/logger"
)

// Direction selects which side of an anchor timestamp an asof join matches.
type Direction string

const (
	// Backward matches the latest follower row at or before the anchor
	// timestamp. This is the canonical default.
	Backward Direction = "backward"
	// Forward matches the earliest follower row at or after the anchor
	// timestamp.
	Forward Direction = "forward"
)

// DefaultSuffix is the per-symbol column rename pattern.
const DefaultSuffix = "_{symbol}"

// Aligner merges independent per-symbol series onto one common timestamp axis.
type Aligner interface {
	Align(series map[string]*frame.Frame, opts Options) (*frame.Frame, error)
	Method() string
}

// Options configure a single alignment call.
type Options struct {
	// Anchor names the series whose timestamps define the output grid.
	// Empty means the first symbol in lexicographic order.
	Anchor string
	// Suffix is the column rename pattern; "{symbol}" is substituted.
	// Empty means DefaultSuffix.
	Suffix string
	// Strict drops rows containing any null joined cell.
	Strict bool
}

// SuffixFor resolves the rename suffix for one symbol's columns.
func (o Options) SuffixFor(symbol string) string {
	pattern := o.Suffix
	if pattern == "" {
		pattern = DefaultSuffix
	}
	return strings.ReplaceAll(pattern, "{symbol}", symbol)
}

// New creates an aligner by strategy name: "asof" or "exact".
func New(method, tolerance string, direction Direction, log *applogger.Logger) (Aligner, error) {
	switch method {
	case "asof":
		return NewHybridAsof(tolerance, direction, log)
	case "exact":
		return NewExact(log), nil
	default:
		return nil, fmt.Errorf("invalid alignment method %q: must be one of [asof exact]", method)
	}
}

// Default returns the canonical configuration: asof join, 1m tolerance,
// backward direction.
func Default(log *applogger.Logger) (Aligner, error) {
	return New("asof", "1m", Backward, log)
}

// Loose returns an asof aligner with a wider tolerance, useful for illiquid
// assets.
func Loose(tolerance string, log *applogger.Logger) (Aligner, error) {
	if tolerance == "" {
		tolerance = "5m"
	}
	return New("asof", tolerance, Backward, log)
}

// sortedSymbols returns map keys in lexicographic order so anchor selection
// and join order are deterministic.
func sortedSymbols(series map[string]*frame.Frame) []string {
	symbols := make([]string, 0, len(series))
	for s := range series {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// standardize sorts a series ascending by timestamp and drops duplicate
// timestamps keeping the last occurrence.
func standardize(f *frame.Frame, symbol string) (*frame.Frame, error) {
	if f == nil {
		return nil, fmt.Errorf("series %s: nil frame", symbol)
	}
	if f.NumRows() == 0 {
		return nil, fmt.Errorf("series %s: no rows", symbol)
	}
	f.SortByTimestamp()
	f.DedupKeepLast()
	return f, nil
}

// parseTolerance converts a duration string ("500ms", "30s", "1m", "1h",
// "1d") to milliseconds. Unsupported formats are configuration errors.
func parseTolerance(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	unit := ""
	digits := trimmed
	for _, u := range []string{"ms", "s", "m", "h", "d"} {
		if strings.HasSuffix(trimmed, u) {
			unit = u
			digits = strings.TrimSuffix(trimmed, u)
		}
	}
	// "ms" wins over trailing "s"
	if strings.HasSuffix(trimmed, "ms") {
		unit = "ms"
		digits = strings.TrimSuffix(trimmed, "ms")
	}
	val, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || val <= 0 {
		return 0, fmt.Errorf("unsupported tolerance format %q", s)
	}
	switch unit {
	case "ms":
		return val, nil
	case "s":
		return val * 1000, nil
	case "m":
		return val * 60_000, nil
	case "h":
		return val * 3_600_000, nil
	case "d":
		return val * 86_400_000, nil
	default:
		return 0, fmt.Errorf("unsupported tolerance format %q", s)
	}
}
