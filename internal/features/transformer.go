package features

import (
	"sort"
	"strings"

	"FinForge/internal/frame"
)

// Transformer enriches an aligned frame with derived feature columns.
// Implementations mutate the frame in place and return it for chaining.
type Transformer interface {
	Apply(f *frame.Frame) (*frame.Frame, error)
	Name() string
}

// closeSymbols lists the symbols present as close_<symbol> columns, sorted.
func closeSymbols(f *frame.Frame) []string {
	var symbols []string
	for _, name := range f.Columns() {
		if strings.HasPrefix(name, "close_") {
			symbols = append(symbols, strings.TrimPrefix(name, "close_"))
		}
	}
	sort.Strings(symbols)
	return symbols
}

// logSymbols lists the symbols present as log_<symbol> columns, sorted.
func logSymbols(f *frame.Frame) []string {
	var symbols []string
	for _, name := range f.Columns() {
		if strings.HasPrefix(name, "log_") {
			symbols = append(symbols, strings.TrimPrefix(name, "log_"))
		}
	}
	sort.Strings(symbols)
	return symbols
}

// retSymbols lists the symbols present as ret_<symbol> columns, sorted.
func retSymbols(f *frame.Frame) []string {
	var symbols []string
	for _, name := range f.Columns() {
		if strings.HasPrefix(name, "ret_") {
			symbols = append(symbols, strings.TrimPrefix(name, "ret_"))
		}
	}
	sort.Strings(symbols)
	return symbols
}
