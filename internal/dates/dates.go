// Package dates converts calendar dates into the two canonical forms used
// throughout the bot:
//
//   - Display: "D MONTHNAME" with an unpadded day and uppercase English month,
//     e.g. "14 OCTOBER". This is the storage key for cached reflections.
//   - MonthDay: zero-padded "MM-DD", e.g. "10-14". This drives the external
//     API lookup ("/1014.json") and the secondary index.
//
// Every conversion in the codebase goes through this package so that the
// display and storage key can never drift apart.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/daily-reflections-bot/internal/apperr"
)

// months is the fixed month table; index 0 is January.
var months = [12]string{
	"JANUARY", "FEBRUARY", "MARCH", "APRIL", "MAY", "JUNE",
	"JULY", "AUGUST", "SEPTEMBER", "OCTOBER", "NOVEMBER", "DECEMBER",
}

var (
	displayRE  = regexp.MustCompile(`^(\d{1,2})\s+([A-Za-z]+)$`)
	monthDayRE = regexp.MustCompile(`^(\d{2})-(\d{2})$`)

	titleCaser = cases.Title(language.English)
)

// Canonical is a calendar day in both canonical forms.
type Canonical struct {
	Display  string `json:"display"`
	MonthDay string `json:"month_day"`

	month int
	day   int
}

// Month returns the month number (1..12).
func (c Canonical) Month() int { return c.month }

// Day returns the day of month (1..31).
func (c Canonical) Day() int { return c.day }

// URLKey returns "MMDD", the path segment used by the external API.
func (c Canonical) URLKey() string { return fmt.Sprintf("%02d%02d", c.month, c.day) }

// Pretty renders "14 October" for human-facing titles.
func (c Canonical) Pretty() string {
	return fmt.Sprintf("%d %s", c.day, titleCaser.String(strings.ToLower(months[c.month-1])))
}

// IsZero reports whether c was never set.
func (c Canonical) IsZero() bool { return c.month == 0 }

// String returns the display form.
func (c Canonical) String() string { return c.Display }

// Slot builds a canonical value for any (month, day) pair in the 12x31 grid
// without checking that the day exists in that month. Backfill relies on this
// to probe slots like 02-30.
func Slot(month, day int) (Canonical, error) {
	if month < 1 || month > 12 {
		return Canonical{}, apperr.Newf(apperr.KindValidation, "dates.Slot", "month %d out of range", month)
	}
	if day < 1 || day > 31 {
		return Canonical{}, apperr.Newf(apperr.KindValidation, "dates.Slot", "day %d out of range", day)
	}
	return Canonical{
		Display:  fmt.Sprintf("%d %s", day, months[month-1]),
		MonthDay: fmt.Sprintf("%02d-%02d", month, day),
		month:    month,
		day:      day,
	}, nil
}

// FromTime canonicalizes t using its own calendar fields; no timezone
// conversion is applied.
func FromTime(t time.Time) Canonical {
	c, _ := Slot(int(t.Month()), t.Day())
	return c
}

// Parse accepts a display string ("14 October", case-insensitive), an ISO
// date ("2024-10-14", read as midnight UTC), an RFC 3339 timestamp (its own
// calendar date), or an "MM-DD" pair.
func Parse(s string) (Canonical, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Canonical{}, apperr.New(apperr.KindValidation, "dates.Parse", "empty date")
	}

	if m := displayRE.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, err := MonthNumber(m[2])
		if err != nil {
			return Canonical{}, err
		}
		return Slot(month, day)
	}
	if m := monthDayRE.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		return Slot(month, day)
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return FromTime(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return FromTime(t), nil
	}
	return Canonical{}, apperr.Newf(apperr.KindValidation, "dates.Parse", "unrecognized date %q", s)
}

// MonthName returns the uppercase month name for n in 1..12.
func MonthName(n int) (string, error) {
	if n < 1 || n > 12 {
		return "", apperr.Newf(apperr.KindValidation, "dates.MonthName", "month %d out of range", n)
	}
	return months[n-1], nil
}

// MonthNumber is the inverse of MonthName; matching is case-insensitive.
func MonthNumber(name string) (int, error) {
	up := strings.ToUpper(strings.TrimSpace(name))
	for i, m := range months {
		if m == up {
			return i + 1, nil
		}
	}
	return 0, apperr.Newf(apperr.KindValidation, "dates.MonthNumber", "unknown month %q", name)
}

// All returns every slot of the 12x31 grid in month/day order.
func All() []Canonical {
	out := make([]Canonical, 0, 12*31)
	for m := 1; m <= 12; m++ {
		for d := 1; d <= 31; d++ {
			c, _ := Slot(m, d)
			out = append(out, c)
		}
	}
	return out
}
