package contract

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/huangsam/activity/schema"
)

// minutes in one work day, used for technical debt values
const workDayMinutes = 8 * 60

// DefaultTranslator names metrics from the built-in catalog, falling back to the key.
func DefaultTranslator(key schema.MetricKey) string {
	if d, ok := schema.LookupMetric(key); ok {
		return d.Name
	}
	return string(key)
}

// NewValueFormatter returns a formatter that renders numbers with the given precision
// according to the metric type. String values are returned unchanged.
func NewValueFormatter(precision int) ValueFormatter {
	return func(key schema.MetricKey, v schema.MeasureValue) string {
		f, ok := v.Float()
		if !ok {
			return v.Text()
		}
		d, known := schema.LookupMetric(key)
		if !known {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		switch d.Type {
		case schema.IntMetric:
			return strconv.FormatInt(int64(math.Round(f)), 10)
		case schema.PercentMetric:
			return strconv.FormatFloat(f, 'f', precision, 64) + "%"
		case schema.RatingMetric:
			return formatRating(f)
		case schema.WorkDurMetric:
			return FormatWorkDuration(int64(math.Round(f)))
		default:
			return strconv.FormatFloat(f, 'f', precision, 64)
		}
	}
}

// formatRating maps 1..5 to A..E.
func formatRating(f float64) string {
	r := int(math.Round(f))
	if r < 1 || r > 5 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return string(rune('A' + r - 1))
}

// FormatWorkDuration renders minutes of effort as "2d 3h 5min" using 8 hour days.
func FormatWorkDuration(minutes int64) string {
	if minutes == 0 {
		return "0min"
	}
	sign := ""
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	days := minutes / workDayMinutes
	hours := (minutes % workDayMinutes) / 60
	mins := minutes % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if mins > 0 {
		parts = append(parts, fmt.Sprintf("%dmin", mins))
	}
	return sign + strings.Join(parts, " ")
}
