package validate

import (
	"fmt"
	"strings"
	"time"

	"FinForge/internal/frame"
	applogger "FinForge/pkg/logger"
)

// Status values reported by Summary.
const (
	StatusPassed = "passed"
	StatusFailed = "failed"
)

// Summary describes the most recent validation run.
type Summary struct {
	Status     string
	Elapsed    time.Duration
	RowCount   int
	NullCounts map[string]int
	Rules      Rules
	Reason     string
}

// Validator is a pass-through quality gate. On success the input frame is
// returned unchanged; on failure the error names the first broken rule.
//
// Checks run in three phases ordered cheapest first: schema, then one
// statistics pass over the data, then row-level integrity. The first failed
// phase short-circuits the rest.
type Validator struct {
	defaults Rules
	log      *applogger.Logger
	last     Summary
}

// NewValidator builds a validator around a default rule set. Each Validate
// call may override individual rules without touching the defaults.
func NewValidator(defaults Rules, log *applogger.Logger) (*Validator, error) {
	defaults = defaults.normalize()
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	return &Validator{defaults: defaults, log: log}, nil
}

// Summary returns the outcome of the last Validate call.
func (v *Validator) Summary() Summary {
	return v.last
}

// Validate runs the full gate and returns the frame untouched on success.
func (v *Validator) Validate(f *frame.Frame, overrides map[string]any) (*frame.Frame, error) {
	start := time.Now()
	rules, err := v.defaults.WithOverrides(overrides, v.log)
	if err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}

	summary := Summary{Status: StatusFailed, Rules: rules}
	defer func() {
		summary.Elapsed = time.Since(start)
		v.last = summary
	}()

	if f == nil {
		return nil, fmt.Errorf("validation: nil frame")
	}
	summary.RowCount = f.NumRows()

	if err := checkSchema(f, rules); err != nil {
		summary.Reason = err.Error()
		v.logFailure("schema", err)
		return nil, fmt.Errorf("validation: %w", err)
	}

	nulls, err := checkStats(f, rules)
	summary.NullCounts = nulls
	if err != nil {
		summary.Reason = err.Error()
		v.logFailure("stats", err)
		return nil, fmt.Errorf("validation: %w", err)
	}

	if err := checkIntegrity(f, rules); err != nil {
		summary.Reason = err.Error()
		v.logFailure("integrity", err)
		return nil, fmt.Errorf("validation: %w", err)
	}

	summary.Status = StatusPassed
	if v.log != nil {
		v.log.Info("validation passed",
			applogger.Int("rows", f.NumRows()),
			applogger.Int("columns", f.NumColumns()),
		)
	}
	return f, nil
}

func (v *Validator) logFailure(phase string, err error) {
	if v.log != nil {
		v.log.Warn("validation failed",
			applogger.String("phase", phase),
			applogger.Error(err),
		)
	}
}

// checkSchema verifies the required columns exist. A required base name like
// "close" is also satisfied by any suffixed variant ("close_BTC") so the same
// rule set works before and after alignment.
func checkSchema(f *frame.Frame, rules Rules) error {
	var missing []string
	for _, name := range rules.RequiredColumns {
		if name == frame.TimestampColumn {
			continue // always present by construction
		}
		if !hasColumnOrVariant(f, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

func hasColumnOrVariant(f *frame.Frame, name string) bool {
	if f.HasColumn(name) {
		return true
	}
	prefix := name + "_"
	for _, col := range f.Columns() {
		if strings.HasPrefix(col, prefix) {
			return true
		}
	}
	return false
}

// checkStats enforces the row count floor and the per-column null budget in
// a single pass. Null counts are returned even on failure so the summary can
// report them.
func checkStats(f *frame.Frame, rules Rules) (map[string]int, error) {
	rows := f.NumRows()
	nulls := make(map[string]int, f.NumColumns())
	for _, name := range f.Columns() {
		col, _ := f.Column(name)
		nulls[name] = col.NullCount()
	}
	if rows < rules.MinRows {
		return nulls, fmt.Errorf("insufficient rows: got %d, need at least %d", rows, rules.MinRows)
	}
	for _, name := range f.Columns() {
		pct := float64(nulls[name]) / float64(rows)
		if pct > rules.MaxNullPct {
			return nulls, fmt.Errorf("column %s null ratio %.4f exceeds limit %.4f", name, pct, rules.MaxNullPct)
		}
	}
	return nulls, nil
}

// checkIntegrity runs the row-level checks: sortedness, OHLC consistency,
// price floor and spread bounds, zero volume, and timestamp range. Null
// cells are skipped; the null budget already covers them.
func checkIntegrity(f *frame.Frame, rules Rules) error {
	if rules.CheckSorted && !f.IsSortedByTimestamp() {
		return fmt.Errorf("timestamp axis is not sorted ascending")
	}

	if rules.ValidateTimestampRange {
		for _, t := range f.Timestamps() {
			if t < rules.MinTimestamp || t > rules.MaxTimestamp {
				return fmt.Errorf("timestamp %d outside allowed range [%d, %d]", t, rules.MinTimestamp, rules.MaxTimestamp)
			}
		}
	}

	for _, suffix := range priceSuffixes(f) {
		if err := checkPriceGroup(f, suffix, rules); err != nil {
			return err
		}
	}

	if !rules.AllowZeroVolume {
		for _, name := range f.Columns() {
			if name != "volume" && !strings.HasPrefix(name, "volume_") {
				continue
			}
			col, _ := f.Column(name)
			for i, val := range col.Vals {
				if col.Valid[i] && val == 0 {
					return fmt.Errorf("column %s has zero volume at row %d", name, i)
				}
			}
		}
	}
	return nil
}

// priceSuffixes discovers OHLC column groups: "" for bare candle columns and
// "_BTC" style suffixes for aligned ones.
func priceSuffixes(f *frame.Frame) []string {
	var suffixes []string
	for _, name := range f.Columns() {
		if name == "close" {
			suffixes = append(suffixes, "")
		} else if strings.HasPrefix(name, "close_") {
			suffixes = append(suffixes, strings.TrimPrefix(name, "close"))
		}
	}
	return suffixes
}

// checkPriceGroup enforces the financial constraints for one OHLC group.
// The whole group is gated by check_ohlc_consistency and only runs when
// high, low and close are all present, so derived feature frames pass
// untouched.
func checkPriceGroup(f *frame.Frame, suffix string, rules Rules) error {
	if !rules.CheckOHLCConsistency {
		return nil
	}
	closeCol, _ := f.Column("close" + suffix)
	highCol, okHigh := f.Column("high" + suffix)
	lowCol, okLow := f.Column("low" + suffix)
	if !okHigh || !okLow {
		return nil
	}

	for i, val := range closeCol.Vals {
		if !closeCol.Valid[i] {
			continue
		}
		if val <= 0 {
			return fmt.Errorf("column close%s has non-positive price at row %d", suffix, i)
		}
		if rules.MinPrice > 0 && val < rules.MinPrice {
			return fmt.Errorf("column close%s price %v below floor %v at row %d", suffix, val, rules.MinPrice, i)
		}
	}
	for i := range highCol.Vals {
		if !highCol.Valid[i] || !lowCol.Valid[i] {
			continue
		}
		high, low := highCol.Vals[i], lowCol.Vals[i]
		if high < low {
			return fmt.Errorf("high%s < low%s at row %d", suffix, suffix, i)
		}
		if rules.MaxPriceSpreadPct > 0 && low > 0 {
			if (high-low)/low > rules.MaxPriceSpreadPct {
				return fmt.Errorf("price spread %.4f exceeds limit %.4f at row %d", (high-low)/low, rules.MaxPriceSpreadPct, i)
			}
		}
	}
	return nil
}
