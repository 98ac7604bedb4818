package validate

import (
	"strings"
	"testing"

	"FinForge/internal/frame"
)

func candleFrame(t *testing.T, n int) *frame.Frame {
	t.Helper()
	ts := make([]int64, n)
	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	closeP := make([]float64, n)
	vol := make([]float64, n)
	for i := 0; i < n; i++ {
		ts[i] = int64(i) * 60_000
		open[i] = 100
		high[i] = 101
		low[i] = 99
		closeP[i] = 100.5
		vol[i] = 10
	}
	f := frame.New(ts)
	for name, vals := range map[string][]float64{
		"open": open, "high": high, "low": low, "close": closeP, "volume": vol,
	} {
		if err := f.AddColumn(name, vals, nil); err != nil {
			t.Fatalf("build candle frame: %v", err)
		}
	}
	return f
}

func newTestValidator(t *testing.T, rules Rules) *Validator {
	t.Helper()
	v, err := NewValidator(rules, nil)
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	return v
}

func TestDefaultRules(t *testing.T) {
	r := DefaultRules()
	if r.MinRows != 100 || r.MaxNullPct != 0.05 {
		t.Fatalf("unexpected defaults: %+v", r)
	}
	if len(r.RequiredColumns) != 2 {
		t.Fatalf("default required columns: %v", r.RequiredColumns)
	}
}

func TestRulesFromMapInjectsTimestamp(t *testing.T) {
	r, err := RulesFromMap(map[string]any{
		"required_columns": []string{"close", "volume"},
		"min_rows":         5,
	}, nil)
	if err != nil {
		t.Fatalf("from map: %v", err)
	}
	if r.RequiredColumns[0] != "timestamp" {
		t.Fatalf("timestamp should be auto-injected, got %v", r.RequiredColumns)
	}
	if r.MinRows != 5 {
		t.Fatalf("min_rows override not applied: %d", r.MinRows)
	}
}

func TestRulesUnknownKeyIgnored(t *testing.T) {
	r, err := RulesFromMap(map[string]any{"max_rows": 10}, nil)
	if err != nil {
		t.Fatalf("unknown keys must be ignored, got %v", err)
	}
	if r.MinRows != 100 {
		t.Fatalf("unknown key must not change defaults")
	}
}

func TestRulesRejectInvalidValues(t *testing.T) {
	if _, err := RulesFromMap(map[string]any{"min_rows": 0}, nil); err == nil {
		t.Fatalf("min_rows 0 must be rejected")
	}
	if _, err := RulesFromMap(map[string]any{"max_null_pct": 1.5}, nil); err == nil {
		t.Fatalf("max_null_pct > 1 must be rejected")
	}
}

func TestRulesOverridesDoNotMutateBase(t *testing.T) {
	base := DefaultRules()
	if _, err := base.WithOverrides(map[string]any{"min_rows": 7}, nil); err != nil {
		t.Fatalf("overrides: %v", err)
	}
	if base.MinRows != 100 {
		t.Fatalf("base rules mutated: %d", base.MinRows)
	}
}

func TestPresets(t *testing.T) {
	if s := StrictRules(); s.MinRows != 1000 || s.AllowZeroVolume {
		t.Fatalf("strict preset wrong: %+v", s)
	}
	if l := LooseRules(); l.MinRows != 10 || l.CheckSorted {
		t.Fatalf("loose preset wrong: %+v", l)
	}
}

func TestValidatePassThrough(t *testing.T) {
	v := newTestValidator(t, LooseRules())
	f := candleFrame(t, 20)
	out, err := v.Validate(f, nil)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if out != f {
		t.Fatalf("validator must return the same frame instance")
	}
	if got := v.Summary(); got.Status != StatusPassed || got.RowCount != 20 {
		t.Fatalf("summary: %+v", got)
	}
}

func TestValidateMinRows(t *testing.T) {
	v := newTestValidator(t, DefaultRules())
	_, err := v.Validate(candleFrame(t, 20), nil)
	if err == nil || !strings.Contains(err.Error(), "insufficient rows") {
		t.Fatalf("expected row floor failure, got %v", err)
	}
	if v.Summary().Status != StatusFailed {
		t.Fatalf("summary should record failure")
	}
}

func TestValidateNullBudget(t *testing.T) {
	f := candleFrame(t, 10)
	valid := make([]bool, 10)
	for i := range valid {
		valid[i] = i >= 6 // 60% null
	}
	if err := f.AddColumn("spread", make([]float64, 10), valid); err != nil {
		t.Fatalf("add column: %v", err)
	}
	v := newTestValidator(t, LooseRules())
	_, err := v.Validate(f, nil)
	if err == nil || !strings.Contains(err.Error(), "null ratio") {
		t.Fatalf("expected null budget failure, got %v", err)
	}
	if v.Summary().NullCounts["spread"] != 6 {
		t.Fatalf("summary null counts: %+v", v.Summary().NullCounts)
	}
}

func TestValidateMissingRequiredColumn(t *testing.T) {
	f := frame.New([]int64{0, 60_000})
	_ = f.AddColumn("open", []float64{1, 2}, nil)
	v := newTestValidator(t, LooseRules())
	_, err := v.Validate(f, map[string]any{"min_rows": 1})
	if err == nil || !strings.Contains(err.Error(), "missing required columns") {
		t.Fatalf("expected schema failure, got %v", err)
	}
}

func TestValidateSuffixedColumnSatisfiesRequirement(t *testing.T) {
	f := frame.New([]int64{0, 60_000})
	_ = f.AddColumn("close_BTC", []float64{100, 101}, nil)
	v := newTestValidator(t, LooseRules())
	if _, err := v.Validate(f, map[string]any{"min_rows": 1}); err != nil {
		t.Fatalf("close_BTC should satisfy required column close: %v", err)
	}
}

func TestValidateUnsortedTimestamps(t *testing.T) {
	f := frame.New([]int64{60_000, 0})
	_ = f.AddColumn("close", []float64{1, 2}, nil)
	v := newTestValidator(t, LooseRules())
	_, err := v.Validate(f, map[string]any{"min_rows": 1, "check_sorted": true})
	if err == nil || !strings.Contains(err.Error(), "not sorted") {
		t.Fatalf("expected sortedness failure, got %v", err)
	}
}

func TestValidateOHLCConsistency(t *testing.T) {
	f := candleFrame(t, 12)
	col, _ := f.Column("high")
	col.Vals[3] = 50 // below low
	v := newTestValidator(t, LooseRules())
	_, err := v.Validate(f, map[string]any{"check_ohlc_consistency": true})
	if err == nil || !strings.Contains(err.Error(), "high < low") {
		t.Fatalf("expected OHLC failure, got %v", err)
	}
}

func TestValidateNonPositivePrice(t *testing.T) {
	f := candleFrame(t, 12)
	col, _ := f.Column("close")
	col.Vals[4] = 0
	v := newTestValidator(t, LooseRules())
	if _, err := v.Validate(f, nil); err != nil {
		t.Fatalf("price checks must stay off while ohlc consistency is disabled: %v", err)
	}
	_, err := v.Validate(f, map[string]any{"check_ohlc_consistency": true})
	if err == nil || !strings.Contains(err.Error(), "non-positive price") {
		t.Fatalf("expected price failure, got %v", err)
	}
}

func TestValidatePriceChecksNeedFullOHLC(t *testing.T) {
	// A close-only frame is not candle data; the price group checks must
	// not fire even when ohlc consistency is on.
	f := frame.New([]int64{0, 60_000, 120_000})
	_ = f.AddColumn("close", []float64{100, 0, 102}, nil)
	v := newTestValidator(t, DefaultRules())
	if _, err := v.Validate(f, map[string]any{"min_rows": 1}); err != nil {
		t.Fatalf("close-only frame must pass: %v", err)
	}
}

func TestValidateZeroVolumeUnderStrict(t *testing.T) {
	f := candleFrame(t, 12)
	col, _ := f.Column("volume")
	col.Vals[5] = 0
	v := newTestValidator(t, LooseRules())
	_, err := v.Validate(f, map[string]any{"allow_zero_volume": false})
	if err == nil || !strings.Contains(err.Error(), "zero volume") {
		t.Fatalf("expected zero volume failure, got %v", err)
	}
}

func TestValidateTimestampRange(t *testing.T) {
	f := candleFrame(t, 12)
	v := newTestValidator(t, LooseRules())
	_, err := v.Validate(f, map[string]any{
		"validate_timestamp_range": true,
		"min_timestamp":            int64(60_000),
		"max_timestamp":            int64(600_000),
	})
	if err == nil || !strings.Contains(err.Error(), "outside allowed range") {
		t.Fatalf("expected range failure, got %v", err)
	}
}
