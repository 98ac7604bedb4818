package features

import (
	"fmt"
	"math"

	"FinForge/internal/frame"
	applogger "FinForge/pkg/logger"
)

// priceEpsilon clamps prices before taking the log so zero or negative
// inputs cannot produce Inf or NaN.
const priceEpsilon = 1e-9

// Returns is the first feature tier. For every aligned close_<symbol>
// column it adds log_<symbol> (log price) and ret_<symbol> (log return,
// the first difference of the log price with the first row filled to 0.0).
type Returns struct {
	log *applogger.Logger
}

func NewReturns(log *applogger.Logger) *Returns {
	return &Returns{log: log}
}

func (t *Returns) Name() string { return "returns" }

func (t *Returns) Apply(f *frame.Frame) (*frame.Frame, error) {
	if f == nil {
		return nil, fmt.Errorf("returns: nil frame")
	}
	symbols := closeSymbols(f)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("returns: no close columns present, align candles first")
	}

	for _, symbol := range symbols {
		closeCol, _ := f.Column("close_" + symbol)
		n := len(closeCol.Vals)
		logPrice := make([]float64, n)
		ret := make([]float64, n)
		for i := 0; i < n; i++ {
			if !closeCol.Valid[i] {
				continue
			}
			logPrice[i] = math.Log(math.Max(closeCol.Vals[i], priceEpsilon))
			if i > 0 && closeCol.Valid[i-1] {
				ret[i] = logPrice[i] - logPrice[i-1]
			}
		}
		if err := f.AddColumn("log_"+symbol, logPrice, append([]bool(nil), closeCol.Valid...)); err != nil {
			return nil, fmt.Errorf("returns: %w", err)
		}
		if err := f.AddColumn("ret_"+symbol, ret, append([]bool(nil), closeCol.Valid...)); err != nil {
			return nil, fmt.Errorf("returns: %w", err)
		}
	}

	if t.log != nil {
		t.log.Debug("return features added", applogger.Int("symbols", len(symbols)))
	}
	return f, nil
}
