package query

import (
	"regexp"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/bookmarkx"
)

var (
	absoluteDatePattern = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`)
	relativeDatePattern = regexp.MustCompile(`^-(\d+)([dwmy])$`)
)

// AbsoluteDate parses a dd-mm-yyyy literal as the start of that day in loc.
func AbsoluteDate(literal string, loc *time.Location) (time.Time, error) {
	m := absoluteDatePattern.FindStringSubmatch(literal)
	if m == nil {
		return time.Time{}, errors.Wrapf(bookmarkx.ErrInvalidExpression, "date %q is not dd-mm-yyyy", literal)
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	// time.Date normalizes 31-02 into March; reject instead.
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return time.Time{}, errors.Wrapf(bookmarkx.ErrInvalidExpression, "date %q does not exist", literal)
	}
	return t, nil
}

// RelativeDate computes the start of the day that lies n units before now.
// Units are d, w, m and y. Month and year steps clamp to the end of a shorter
// month, so 31 March minus one month is 28 or 29 February.
func RelativeDate(n int, unit string, now time.Time) (time.Time, error) {
	if n < 0 {
		return time.Time{}, errors.Wrapf(bookmarkx.ErrInvalidExpression, "negative relative date %d", n)
	}
	var t time.Time
	switch unit {
	case "d":
		t = now.AddDate(0, 0, -n)
	case "w":
		t = now.AddDate(0, 0, -7*n)
	case "m":
		t = subMonths(now, n)
	case "y":
		t = subMonths(now, 12*n)
	default:
		return time.Time{}, errors.Wrapf(bookmarkx.ErrInvalidExpression, "unknown date unit %q", unit)
	}
	return startOfDay(t), nil
}

// parseRelativeDate accepts the "-<N><unit>" literal form.
func parseRelativeDate(literal string, now time.Time) (time.Time, bool, error) {
	m := relativeDatePattern.FindStringSubmatch(literal)
	if m == nil {
		return time.Time{}, false, nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, true, errors.Wrapf(bookmarkx.ErrInvalidExpression, "relative date %q is out of range", literal)
	}
	t, err := RelativeDate(n, m[2], now)
	return t, true, err
}

func subMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month-time.Month(n), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	return time.Date(first.Year(), first.Month(), min(day, last), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
