package features

import (
	"strconv"
	"strings"

	applogger "FinForge/pkg/logger"
)

// defaultWindowRows is used when a window string cannot be parsed.
const defaultWindowRows = 60

// parseWindowRows converts a duration string to a row count assuming a
// one-minute bar interval: "30m" -> 30, "1h" -> 60, "1d" -> 1440,
// "1w" -> 10080. Unparseable input falls back to 60 rows with a warning
// rather than failing the run.
func parseWindowRows(window string, log *applogger.Logger) int {
	trimmed := strings.TrimSpace(strings.ToLower(window))
	if trimmed == "" {
		return defaultWindowRows
	}

	multiplier := 0
	digits := trimmed
	switch {
	case strings.HasSuffix(trimmed, "m"):
		multiplier = 1
		digits = strings.TrimSuffix(trimmed, "m")
	case strings.HasSuffix(trimmed, "h"):
		multiplier = 60
		digits = strings.TrimSuffix(trimmed, "h")
	case strings.HasSuffix(trimmed, "d"):
		multiplier = 1440
		digits = strings.TrimSuffix(trimmed, "d")
	case strings.HasSuffix(trimmed, "w"):
		multiplier = 10080
		digits = strings.TrimSuffix(trimmed, "w")
	default:
		multiplier = 1
	}

	val, err := strconv.Atoi(digits)
	if err != nil || val <= 0 {
		if log != nil {
			log.Warn("unparseable feature window, falling back",
				applogger.String("window", window),
				applogger.Int("fallback_rows", defaultWindowRows),
			)
		}
		return defaultWindowRows
	}
	return val * multiplier
}
