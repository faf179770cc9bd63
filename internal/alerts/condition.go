package alerts

import (
	"strconv"
	"strings"

	"github.com/vsbuildlogger/vsbuildlogger/internal/status"
)

// evalCondition evaluates a rule condition string against a pipeline
// summary.
//
// Supported expressions (field operator value):
//
//	consecutive_failures >= 3
//	cache_lines > 500
//	records_queued > 1000
//	passes_cancelled > 10
//	delivery == failing
//	delivery != ok
//
// Returns (fires bool, triggering value float64).
// Returns (false, 0) if the expression cannot be parsed or the field is
// unknown.
func evalCondition(cond string, s status.Summary) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	if field == "delivery" {
		switch op {
		case "==":
			return s.Delivery == rhs, 0
		case "!=":
			return s.Delivery != rhs, 0
		default:
			return false, 0
		}
	}

	v, ok := numericField(field, s)
	if !ok {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

// numericField maps a field name to its value in the summary.
func numericField(field string, s status.Summary) (float64, bool) {
	switch field {
	case "consecutive_failures":
		return float64(s.ConsecutiveFailures), true
	case "cache_lines":
		return float64(s.CacheLines), true
	case "records_queued":
		return float64(s.RecordsQueued), true
	case "records_delivered":
		return float64(s.RecordsDelivered), true
	case "passes_seen":
		return float64(s.PassesSeen), true
	case "passes_cancelled":
		return float64(s.PassesCancelled), true
	case "dispatch_attempts":
		return float64(s.DispatchAttempts), true
	default:
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	default:
		return false
	}
}
