package features

import (
	"fmt"

	"FinForge/internal/frame"
	applogger "FinForge/pkg/logger"
)

// zscoreStdFloor keeps the z-score denominator away from zero.
const zscoreStdFloor = 1e-12

// statArbMinPeriods lets beta and the z-score moments carry real estimates
// once two valid samples exist; only the sub-floor rows are filled with 0.0.
const statArbMinPeriods = 2

// StatArb is the third feature tier. For every symbol other than the
// anchor it derives, strictly in order, a rolling hedge ratio
// (beta_<symbol>_<anchor> = Cov(symbol, anchor) / Var(anchor) on log
// prices), the hedged spread (spread_<symbol> = log_symbol -
// beta * log_anchor) and the spread's rolling z-score
// (z_score_<symbol>). Each column feeds the next, so a zero beta from a
// degenerate anchor window propagates into the spread and z-score rather
// than being patched over.
type StatArb struct {
	betaWindow string
	betaRows   int
	zWindow    string
	zRows      int
	anchor     string
	log        *applogger.Logger
}

// NewStatArb configures the tier. The z-score window is typically longer
// than the beta window. An empty anchor defers to the anchor symbol
// recorded on the frame.
func NewStatArb(betaWindow, zscoreWindow, anchor string, log *applogger.Logger) *StatArb {
	return &StatArb{
		betaWindow: betaWindow,
		betaRows:   parseWindowRows(betaWindow, log),
		zWindow:    zscoreWindow,
		zRows:      parseWindowRows(zscoreWindow, log),
		anchor:     anchor,
		log:        log,
	}
}

func (t *StatArb) Name() string { return "statarb" }

func (t *StatArb) Apply(f *frame.Frame) (*frame.Frame, error) {
	if f == nil {
		return nil, fmt.Errorf("statarb: nil frame")
	}
	symbols := logSymbols(f)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("statarb: no log price columns present, run the returns tier first")
	}
	if len(symbols) < 2 {
		return nil, fmt.Errorf("statarb: need at least two log price columns, got %d", len(symbols))
	}

	anchor := t.anchor
	if anchor == "" {
		if v, ok := f.Attr("anchor_symbol"); ok && contains(symbols, v) {
			anchor = v
		} else {
			anchor = symbols[0]
		}
	}
	ref, ok := f.Column("log_" + anchor)
	if !ok {
		return nil, fmt.Errorf("statarb: anchor %s has no log price column", anchor)
	}

	for _, symbol := range symbols {
		if symbol == anchor {
			continue
		}
		target, _ := f.Column("log_" + symbol)

		beta := rollingBeta(target.Vals, target.Valid, ref.Vals, ref.Valid, t.betaRows, statArbMinPeriods)
		if err := f.AddColumn(fmt.Sprintf("beta_%s_%s", symbol, anchor), beta, nil); err != nil {
			return nil, fmt.Errorf("statarb: %w", err)
		}

		spread := make([]float64, len(beta))
		spreadValid := make([]bool, len(beta))
		for i := range spread {
			if pairValid(target.Valid, ref.Valid, i) {
				spread[i] = target.Vals[i] - beta[i]*ref.Vals[i]
				spreadValid[i] = true
			}
		}
		if err := f.AddColumn("spread_"+symbol, spread, spreadValid); err != nil {
			return nil, fmt.Errorf("statarb: %w", err)
		}

		mean := rollingMean(spread, spreadValid, t.zRows, statArbMinPeriods)
		std := rollingStd(spread, spreadValid, t.zRows, statArbMinPeriods)
		counts := rollingCount(spreadValid, t.zRows)
		zscore := make([]float64, len(spread))
		for i := range zscore {
			// Rows with fewer than two spread samples stay 0.0; the floor
			// only guards windows with a genuinely flat spread.
			if !spreadValid[i] || counts[i] < statArbMinPeriods {
				continue
			}
			denom := std[i]
			if denom < zscoreStdFloor {
				denom = zscoreStdFloor
			}
			zscore[i] = (spread[i] - mean[i]) / denom
		}
		if err := f.AddColumn("z_score_"+symbol, zscore, nil); err != nil {
			return nil, fmt.Errorf("statarb: %w", err)
		}
	}

	f.SetAttr("beta_window", t.betaWindow)
	f.SetAttr("zscore_window", t.zWindow)
	f.SetAttr("statarb_anchor", anchor)

	if t.log != nil {
		t.log.Debug("statarb features added",
			applogger.String("anchor", anchor),
			applogger.Int("targets", len(symbols)-1),
			applogger.Int("beta_rows", t.betaRows),
			applogger.Int("zscore_rows", t.zRows),
		)
	}
	return f, nil
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
