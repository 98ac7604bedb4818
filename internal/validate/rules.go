package validate

import (
	"fmt"

	applogger "FinForge/pkg/logger"
)

// Rules is the immutable configuration for a validation run. Treat values
// as read-only after construction; WithOverrides returns a new instance.
type Rules struct {
	// Core thresholds
	MinRows         int
	MaxNullPct      float64
	RequiredColumns []string

	// Structural checks
	CheckSorted bool
	StrictTypes bool

	// Financial checks
	CheckOHLCConsistency bool
	MinPrice             float64
	MaxPriceSpreadPct    float64
	AllowZeroVolume      bool

	// Timestamp range checks (unix ms)
	ValidateTimestampRange bool
	MinTimestamp           int64
	MaxTimestamp           int64
}

// DefaultRules returns the baseline rule set.
func DefaultRules() Rules {
	return Rules{
		MinRows:              100,
		MaxNullPct:           0.05,
		RequiredColumns:      []string{"timestamp", "close"},
		CheckSorted:          true,
		StrictTypes:          true,
		CheckOHLCConsistency: true,
		MinPrice:             0.0,
		MaxPriceSpreadPct:    0.5,
		AllowZeroVolume:      true,
		MinTimestamp:         0,
		MaxTimestamp:         10_000_000_000_000,
	}
}

// StrictRules is the production-grade preset.
func StrictRules() Rules {
	r := DefaultRules()
	r.MinRows = 1000
	r.MaxNullPct = 0.01
	r.RequiredColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}
	r.MinPrice = 0.00000001
	r.MaxPriceSpreadPct = 0.2
	r.AllowZeroVolume = false
	r.ValidateTimestampRange = true
	return r
}

// LooseRules is the debugging/research preset.
func LooseRules() Rules {
	r := DefaultRules()
	r.MinRows = 10
	r.MaxNullPct = 0.50
	r.CheckSorted = false
	r.StrictTypes = false
	r.CheckOHLCConsistency = false
	r.MaxPriceSpreadPct = 10.0
	return r
}

// Validate checks the rule values themselves. Invalid rules are
// configuration errors and are never retried.
func (r Rules) Validate() error {
	if r.MinRows < 1 {
		return fmt.Errorf("rules: min_rows must be >= 1, got %d", r.MinRows)
	}
	if r.MaxNullPct < 0.0 || r.MaxNullPct > 1.0 {
		return fmt.Errorf("rules: max_null_pct must be within [0, 1], got %v", r.MaxNullPct)
	}
	if r.MinPrice < 0 {
		return fmt.Errorf("rules: min_price cannot be negative")
	}
	if len(r.RequiredColumns) == 0 {
		return fmt.Errorf("rules: required_columns cannot be empty")
	}
	if r.ValidateTimestampRange && r.MinTimestamp >= r.MaxTimestamp {
		return fmt.Errorf("rules: min_timestamp must be < max_timestamp")
	}
	return nil
}

// normalize auto-injects the timestamp column into the required list.
func (r Rules) normalize() Rules {
	for _, c := range r.RequiredColumns {
		if c == "timestamp" {
			return r
		}
	}
	cols := make([]string, 0, len(r.RequiredColumns)+1)
	cols = append(cols, "timestamp")
	cols = append(cols, r.RequiredColumns...)
	r.RequiredColumns = cols
	return r
}

// WithOverrides merges a per-call override map into the rule set and
// returns a new instance. Unknown keys are warned about and ignored, never
// silently applied.
func (r Rules) WithOverrides(overrides map[string]any, log *applogger.Logger) (Rules, error) {
	out := r
	for key, raw := range overrides {
		switch key {
		case "min_rows":
			if v, ok := asInt(raw); ok {
				out.MinRows = v
			}
		case "max_null_pct":
			if v, ok := asFloat(raw); ok {
				out.MaxNullPct = v
			}
		case "required_columns":
			if v, ok := asStrings(raw); ok {
				out.RequiredColumns = v
			}
		case "check_sorted":
			if v, ok := raw.(bool); ok {
				out.CheckSorted = v
			}
		case "strict_types":
			if v, ok := raw.(bool); ok {
				out.StrictTypes = v
			}
		case "check_ohlc_consistency":
			if v, ok := raw.(bool); ok {
				out.CheckOHLCConsistency = v
			}
		case "min_price":
			if v, ok := asFloat(raw); ok {
				out.MinPrice = v
			}
		case "max_price_spread_pct":
			if v, ok := asFloat(raw); ok {
				out.MaxPriceSpreadPct = v
			}
		case "allow_zero_volume":
			if v, ok := raw.(bool); ok {
				out.AllowZeroVolume = v
			}
		case "validate_timestamp_range":
			if v, ok := raw.(bool); ok {
				out.ValidateTimestampRange = v
			}
		case "min_timestamp":
			if v, ok := asInt64(raw); ok {
				out.MinTimestamp = v
			}
		case "max_timestamp":
			if v, ok := asInt64(raw); ok {
				out.MaxTimestamp = v
			}
		default:
			if log != nil {
				log.Warn("ignoring unknown rule override", applogger.String("key", key))
			}
		}
	}
	out = out.normalize()
	if err := out.Validate(); err != nil {
		return r, err
	}
	return out, nil
}

// RulesFromMap builds a rule set from a configuration map on top of the
// defaults.
func RulesFromMap(config map[string]any, log *applogger.Logger) (Rules, error) {
	return DefaultRules().WithOverrides(config, log)
}

func asInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func asInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}

func asFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func asStrings(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
