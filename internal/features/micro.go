package features

import (
	"fmt"
	"strings"

	"FinForge/internal/frame"
	applogger "FinForge/pkg/logger"
)

// Microstructure is the second feature tier. For every configured window it
// adds rolling return volatility per symbol (vol_<symbol>_<window>) and,
// when the anchor's return column is present, the rolling correlation of
// every other symbol's returns against the anchor's
// (corr_<symbol>_<anchor>_<window>). Depends on the return tier.
type Microstructure struct {
	windows []windowSpec
	log     *applogger.Logger
}

type windowSpec struct {
	label string
	rows  int
}

// microMinPeriods lets vol and corr carry real estimates from the second
// valid sample onward; only the sub-floor rows are filled with 0.0.
const microMinPeriods = 1

// NewMicrostructure configures the tier with duration-style windows
// ("30m", "1h", "1d") interpreted against one-minute bars.
func NewMicrostructure(windows []string, log *applogger.Logger) *Microstructure {
	if len(windows) == 0 {
		windows = []string{"1h"}
	}
	specs := make([]windowSpec, 0, len(windows))
	for _, w := range windows {
		specs = append(specs, windowSpec{label: w, rows: parseWindowRows(w, log)})
	}
	return &Microstructure{windows: specs, log: log}
}

func (t *Microstructure) Name() string { return "microstructure" }

func (t *Microstructure) Apply(f *frame.Frame) (*frame.Frame, error) {
	if f == nil {
		return nil, fmt.Errorf("microstructure: nil frame")
	}
	symbols := retSymbols(f)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("microstructure: no return columns present, run the returns tier first")
	}

	anchor, _ := f.Attr("anchor_symbol")
	hasAnchor := anchor != "" && f.HasColumn("ret_"+anchor)
	if !hasAnchor && t.log != nil {
		t.log.Warn("anchor return column absent, skipping correlation features",
			applogger.String("anchor", anchor),
		)
	}

	labels := make([]string, 0, len(t.windows))
	for _, w := range t.windows {
		labels = append(labels, w.label)
		for _, symbol := range symbols {
			col, _ := f.Column("ret_" + symbol)
			vol := rollingStd(col.Vals, col.Valid, w.rows, microMinPeriods)
			name := fmt.Sprintf("vol_%s_%s", symbol, w.label)
			if err := f.AddColumn(name, vol, nil); err != nil {
				return nil, fmt.Errorf("microstructure: %w", err)
			}
		}
		if !hasAnchor {
			continue
		}
		ref, _ := f.Column("ret_" + anchor)
		for _, symbol := range symbols {
			if symbol == anchor {
				continue
			}
			col, _ := f.Column("ret_" + symbol)
			corr := rollingCorr(col.Vals, col.Valid, ref.Vals, ref.Valid, w.rows, microMinPeriods)
			name := fmt.Sprintf("corr_%s_%s_%s", symbol, anchor, w.label)
			if err := f.AddColumn(name, corr, nil); err != nil {
				return nil, fmt.Errorf("microstructure: %w", err)
			}
		}
	}

	f.SetAttr("vol_windows", strings.Join(labels, ","))

	if t.log != nil {
		t.log.Debug("microstructure features added",
			applogger.Int("symbols", len(symbols)),
			applogger.Int("windows", len(t.windows)),
			applogger.Bool("correlations", hasAnchor),
		)
	}
	return f, nil
}
