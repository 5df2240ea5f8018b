// Package timerange converts structured time intents into absolute date
// ranges. All arithmetic is pure calendar math relative to a supplied
// reference date; there are no clock or service dependencies.
package timerange

import (
	"fmt"
	"time"

	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

const dateLayout = "2006-01-02"

// ToAbsoluteRange converts a time intent plus a reference date into an
// absolute "YYYY-MM-DD to YYYY-MM-DD" range string. The boolean result is
// false when the intent cannot be normalized: nil intent, missing or
// unrecognized preset, last_n_days with n < 1, or malformed absolute dates.
// Callers must treat false as "normalization failed", not as an error to
// propagate.
func ToAbsoluteRange(intent *models.TimeIntent, todayISO string, loc *time.Location) (string, bool) {
	if intent == nil || intent.Preset == "" {
		return "", false
	}
	if loc == nil {
		loc = time.UTC
	}

	today, err := time.ParseInLocation(dateLayout, todayISO, loc)
	if err != nil {
		return "", false
	}

	var start, end time.Time

	switch intent.Preset {
	case models.PresetToday:
		start, end = today, today

	case models.PresetYesterday:
		start = today.AddDate(0, 0, -1)
		end = start

	case models.PresetLastNDays:
		if intent.N < 1 {
			return "", false
		}
		start = today.AddDate(0, 0, -(intent.N - 1))
		end = today

	case models.PresetMTD:
		start = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
		end = today

	case models.PresetQTD:
		start = time.Date(today.Year(), quarterStartMonth(today.Month()), 1, 0, 0, 0, 0, loc)
		end = today

	case models.PresetYTD:
		start = time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, loc)
		end = today

	case models.PresetPrevMonth:
		firstOfThisMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
		end = firstOfThisMonth.AddDate(0, 0, -1)
		start = time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, loc)

	case models.PresetPrevQuarter:
		firstOfThisQuarter := time.Date(today.Year(), quarterStartMonth(today.Month()), 1, 0, 0, 0, 0, loc)
		end = firstOfThisQuarter.AddDate(0, 0, -1)
		start = time.Date(end.Year(), quarterStartMonth(end.Month()), 1, 0, 0, 0, 0, loc)

	case models.PresetPrevYear:
		start = time.Date(today.Year()-1, time.January, 1, 0, 0, 0, 0, loc)
		end = time.Date(today.Year()-1, time.December, 31, 0, 0, 0, 0, loc)

	case models.PresetAbsolute:
		if intent.Start == "" || intent.End == "" {
			return "", false
		}
		start, err = time.ParseInLocation(dateLayout, intent.Start, loc)
		if err != nil {
			return "", false
		}
		end, err = time.ParseInLocation(dateLayout, intent.End, loc)
		if err != nil {
			return "", false
		}

	default:
		return "", false
	}

	// Never reject a reversed range; swap so the range is non-decreasing.
	if start.After(end) {
		start, end = end, start
	}

	return fmt.Sprintf("%s to %s", start.Format(dateLayout), end.Format(dateLayout)), true
}

// quarterStartMonth returns the first month of the quarter containing m.
func quarterStartMonth(m time.Month) time.Month {
	return time.Month((int(m)-1)/3*3 + 1)
}
