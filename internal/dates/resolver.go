// Package dates normalizes free-form date expressions to the canonical DD-MM-YYYY form.
package dates

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gitlab.com/yelinaung/ledger-chat/internal/models"
)

// ErrUnresolvable indicates the input matched none of the accepted date forms.
var ErrUnresolvable = errors.New("date could not be resolved")

var (
	numericRegex       = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{4}|\d{2})$`)
	textualYearRegex   = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)?\s+([a-z]+)\.?,?\s+(\d{4}|\d{2})$`)
	textualNoYearRegex = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)?\s+([a-z]+)\.?$`)
)

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// Resolve converts input to a calendar date relative to now.
// The first matching form wins: keywords, numeric day-month-year,
// textual month with year, textual month without year.
// Two-digit years always mean 20XX.
func Resolve(input string, now time.Time) (time.Time, error) {
	text := strings.ToLower(strings.Join(strings.Fields(input), " "))
	if text == "" {
		return time.Time{}, ErrUnresolvable
	}

	switch text {
	case "today":
		return truncate(now), nil
	case "yesterday":
		return truncate(now).AddDate(0, 0, -1), nil
	}

	if m := numericRegex.FindStringSubmatch(text); m != nil {
		month, err := strconv.Atoi(m[2])
		if err != nil {
			return time.Time{}, ErrUnresolvable
		}
		return build(m[1], time.Month(month), m[3], now)
	}

	if m := textualYearRegex.FindStringSubmatch(text); m != nil {
		month, ok := monthNames[m[2]]
		if !ok {
			return time.Time{}, ErrUnresolvable
		}
		return build(m[1], month, m[3], now)
	}

	if m := textualNoYearRegex.FindStringSubmatch(text); m != nil {
		month, ok := monthNames[m[2]]
		if !ok {
			return time.Time{}, ErrUnresolvable
		}
		return build(m[1], month, strconv.Itoa(now.Year()), now)
	}

	return time.Time{}, ErrUnresolvable
}

// Format renders t in canonical DD-MM-YYYY form.
func Format(t time.Time) string {
	return t.Format(models.DateLayout)
}

// rowLayouts are the forms accepted when reading dates back from the ledger.
var rowLayouts = []string{
	models.DateLayout,
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
}

// ParseRow parses a date as stored in a ledger row, in loc.
func ParseRow(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range rowLayouts {
		t, err := time.ParseInLocation(layout, value, loc)
		if err == nil {
			return truncate(t.In(loc)), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized ledger date %q", value)
}

// DayDiff returns the number of whole calendar days from a to b.
func DayDiff(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

func build(dayStr string, month time.Month, yearStr string, now time.Time) (time.Time, error) {
	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return time.Time{}, ErrUnresolvable
	}
	if len(yearStr) == 2 {
		yearStr = "20" + yearStr
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, ErrUnresolvable
	}
	if month < time.January || month > time.December || day < 1 {
		return time.Time{}, ErrUnresolvable
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	// time.Date normalizes 31-02 into March; reject instead.
	if t.Day() != day || t.Month() != month {
		return time.Time{}, ErrUnresolvable
	}
	return t, nil
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
