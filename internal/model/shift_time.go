package model

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04:05"
)

var (
	isoDatePrefix = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})`)
	// e.g. "Tue May 14 2024 00:00:00 GMT+0700 (Indochina Time)"
	verboseDate = regexp.MustCompile(`^[A-Za-z]{3},? ([A-Za-z]{3}) (\d{1,2}),? (\d{4})`)

	clockLayouts = []string{
		ClockLayout,
		"15:04",
		"15:04:05.999999999",
		"3:04 PM",
		"3:04PM",
		"3:04:05 PM",
	}
	timestampLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05.999999999-07:00",
	}
)

// NormalizeDate reduces every date representation a shift row can carry
// (date-only value, full timestamp, or a string holding a date) to a
// canonical YYYY-MM-DD string. Timestamps keep their own zone; nothing is
// converted.
func NormalizeDate(v any) (string, error) {
	switch d := v.(type) {
	case time.Time:
		if d.IsZero() {
			return "", fmt.Errorf("zero date")
		}
		return d.Format(DateLayout), nil
	case *time.Time:
		if d == nil {
			return "", fmt.Errorf("nil date")
		}
		return NormalizeDate(*d)
	case []byte:
		return NormalizeDate(string(d))
	case ShiftDate:
		return NormalizeDate(string(d))
	case string:
		return normalizeDateString(d)
	case nil:
		return "", fmt.Errorf("nil date")
	default:
		return "", fmt.Errorf("unsupported date type %T", v)
	}
}

func normalizeDateString(s string) (string, error) {
	s = strings.TrimSpace(s)
	if m := isoDatePrefix.FindStringSubmatch(s); m != nil {
		t, err := time.Parse("2006-1-2", m[1]+"-"+m[2]+"-"+m[3])
		if err != nil {
			return "", fmt.Errorf("invalid date %q: %w", s, err)
		}
		return t.Format(DateLayout), nil
	}
	if m := verboseDate.FindStringSubmatch(s); m != nil {
		t, err := time.Parse("Jan 2 2006", m[1]+" "+m[2]+" "+m[3])
		if err != nil {
			return "", fmt.Errorf("invalid date %q: %w", s, err)
		}
		return t.Format(DateLayout), nil
	}
	return "", fmt.Errorf("unrecognised date %q", s)
}

// NormalizeClock reduces a time-of-day value to canonical HH:MM:SS, which
// compares correctly as a string.
func NormalizeClock(v any) (string, error) {
	switch c := v.(type) {
	case time.Time:
		return c.Format(ClockLayout), nil
	case *time.Time:
		if c == nil {
			return "", fmt.Errorf("nil time")
		}
		return c.Format(ClockLayout), nil
	case []byte:
		return NormalizeClock(string(c))
	case TimeOfDay:
		return NormalizeClock(string(c))
	case string:
		s := strings.TrimSpace(c)
		for _, layout := range clockLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Format(ClockLayout), nil
			}
		}
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Format(ClockLayout), nil
			}
		}
		// time with zone, as postgres renders TIMETZ
		if idx := strings.IndexAny(s, "+-Z"); idx > 0 {
			return NormalizeClock(s[:idx])
		}
		return "", fmt.Errorf("unrecognised time %q", c)
	case nil:
		return "", fmt.Errorf("nil time")
	default:
		return "", fmt.Errorf("unsupported time type %T", v)
	}
}

// ShiftDate is a work date held in canonical YYYY-MM-DD form.
type ShiftDate string

func (d *ShiftDate) Scan(src any) error {
	if src == nil {
		*d = ""
		return nil
	}
	s, err := NormalizeDate(src)
	if err != nil {
		return err
	}
	*d = ShiftDate(s)
	return nil
}

func (d ShiftDate) Value() (driver.Value, error) {
	if d == "" {
		return nil, nil
	}
	return string(d), nil
}

// TimeOfDay is a wall-clock time held in canonical HH:MM:SS form.
type TimeOfDay string

func (t *TimeOfDay) Scan(src any) error {
	if src == nil {
		*t = ""
		return nil
	}
	s, err := NormalizeClock(src)
	if err != nil {
		return err
	}
	*t = TimeOfDay(s)
	return nil
}

func (t TimeOfDay) Value() (driver.Value, error) {
	if t == "" {
		return nil, nil
	}
	return string(t), nil
}
