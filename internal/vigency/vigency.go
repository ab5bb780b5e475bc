// Package vigency evaluates credential validity dates as calendar dates.
//
// Inputs may carry a time component or offset ("2025-12-31T00:00:00.000Z"); only the
// YYYY-MM-DD prefix is read so a date never shifts across a timezone boundary.
package vigency

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmpty     = errors.New("date is empty")
	ErrMalformed = errors.New("malformed date")
)

type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate extracts the calendar date from raw. Days that do not exist in the given
// month are rejected rather than rolled over.
func ParseDate(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Date{}, ErrEmpty
	}
	datePart := raw
	if i := strings.IndexAny(raw, "T "); i >= 0 {
		datePart = raw[:i]
	}
	parts := strings.Split(datePart, "-")
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("%w: %q", ErrMalformed, raw)
	}
	year, err := parseComponent(parts[0], 4)
	if err != nil || year < 1 {
		return Date{}, fmt.Errorf("%w: year in %q", ErrMalformed, raw)
	}
	month, err := parseComponent(parts[1], 2)
	if err != nil || month < 1 || month > 12 {
		return Date{}, fmt.Errorf("%w: month in %q", ErrMalformed, raw)
	}
	day, err := parseComponent(parts[2], 2)
	if err != nil || day < 1 || day > 31 {
		return Date{}, fmt.Errorf("%w: day in %q", ErrMalformed, raw)
	}
	if day > daysIn(time.Month(month), year) {
		return Date{}, fmt.Errorf("%w: day out of range for month in %q", ErrMalformed, raw)
	}
	return Date{Year: year, Month: time.Month(month), Day: day}, nil
}

func parseComponent(s string, maxLen int) (int, error) {
	if s == "" || len(s) > maxLen {
		return 0, ErrMalformed
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrMalformed
		}
	}
	return strconv.Atoi(s)
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Today returns the wall-clock date of now in now's own location.
func Today(now time.Time) Date {
	y, m, d := now.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// FormatDMY renders the date the way it is printed on the card.
func (d Date) FormatDMY() string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, int(d.Month), d.Year)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Check reports whether vigencia has not yet passed. Expiration is inclusive of its own day.
func Check(vigencia string, now time.Time) (bool, error) {
	d, err := ParseDate(vigencia)
	if err != nil {
		return false, err
	}
	return !d.Before(Today(now)), nil
}

// IsValid is Check with failures folded into false. Malformed input is logged.
func IsValid(vigencia string, now time.Time) bool {
	ok, err := Check(vigencia, now)
	if err != nil {
		if !errors.Is(err, ErrEmpty) {
			slog.Warn("malformed vigencia date", "value", vigencia, "error", err.Error())
		}
		return false
	}
	return ok
}

// Age returns completed years between dob and now's calendar date.
func Age(dob string, now time.Time) (int, error) {
	birth, err := ParseDate(dob)
	if err != nil {
		return 0, err
	}
	today := Today(now)
	age := today.Year - birth.Year
	if today.Month < birth.Month || (today.Month == birth.Month && today.Day < birth.Day) {
		age--
	}
	return age, nil
}

// Normalize parses raw and returns its canonical YYYY-MM-DD form.
func Normalize(raw string) (string, error) {
	d, err := ParseDate(raw)
	if err != nil {
		return "", err
	}
	return d.String(), nil
}
