// Package calendar computes remaining subscription days and urgency tiers
// against a fixed civil calendar.
package calendar

import (
	"fmt"
	"strings"
	"time"
)

const (
	isoLayout     = "2006-01-02"
	displayLayout = "02-01-2006"
	hoursPerDay   = 24
)

// Date returns the civil date y-m-d as UTC midnight.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CivilDate drops the clock and zone of t, keeping the Y-M-D it shows in its own location.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// ReferenceDate resolves "today" for now in loc. A nil loc means UTC.
func ReferenceDate(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return CivilDate(now.In(loc))
}

// DaysRemaining returns end - reference in whole civil days; negative once expired.
func DaysRemaining(end, reference time.Time) int {
	diff := CivilDate(end).Sub(CivilDate(reference))
	return int(diff.Hours()) / hoursPerDay
}

// ExpiryPhrase renders the human wording used by the urgent template.
func ExpiryPhrase(daysRemaining int) string {
	switch {
	case daysRemaining < 0:
		return "has expired"
	case daysRemaining == 0:
		return "expires today"
	case daysRemaining == 1:
		return "expires tomorrow"
	default:
		return fmt.Sprintf("expires in %d days", daysRemaining)
	}
}

// FormatDisplayDate renders DD-MM-YYYY.
func FormatDisplayDate(t time.Time) string {
	return CivilDate(t).Format(displayLayout)
}

// FormatISODate renders YYYY-MM-DD.
func FormatISODate(t time.Time) string {
	return CivilDate(t).Format(isoLayout)
}

// ParseDate parses a YYYY-MM-DD civil date.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(isoLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return t, nil
}

// LoadLocation resolves a named zone, rejecting "Local" so results do not drift with the host.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return nil, fmt.Errorf("timezone %q: a named zone is required", name)
	}
	return time.LoadLocation(name)
}
