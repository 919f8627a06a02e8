// Package duration parses the retention windows used in the config:
// "30d", "2 weeks", "1w3d", "12h". Months are 30 days and years 365.
package duration

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
	Year  = 365 * Day
)

type unit struct {
	short string
	size  time.Duration
}

// largest first; Format walks them in this order
var units = []unit{
	{"y", Year},
	{"m", Month},
	{"w", Week},
	{"d", Day},
	{"h", time.Hour},
}

var aliases = map[string]string{
	"h": "h", "hour": "h", "hours": "h",
	"d": "d", "day": "d", "days": "d",
	"w": "w", "week": "w", "weeks": "w",
	"m": "m", "month": "m", "months": "m",
	"y": "y", "year": "y", "years": "y",
}

var (
	// ErrInvalidFormat indicates the input contains invalid characters
	ErrInvalidFormat = errors.New("invalid duration format")

	// ErrInvalidNumber indicates a term has no usable number
	ErrInvalidNumber = errors.New("invalid duration number")

	// ErrInvalidUnit indicates the unit part is not recognized
	ErrInvalidUnit = errors.New("invalid duration unit")
)

type term struct {
	num  string
	unit string
}

// Parse sums every number-unit term of input. Whitespace between terms
// and between a number and its unit is ignored.
func Parse(input string) (time.Duration, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return 0, fmt.Errorf("%w: empty input", ErrInvalidFormat)
	}

	terms, err := split(input)
	if err != nil {
		return 0, err
	}

	var total time.Duration
	for _, t := range terms {
		if t.num == "" {
			return 0, fmt.Errorf("%w: %q has no number", ErrInvalidNumber, t.unit)
		}
		n, err := strconv.Atoi(t.num)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidNumber, t.num)
		}
		if t.unit == "" {
			return 0, fmt.Errorf("%w: missing unit after %s", ErrInvalidFormat, t.num)
		}
		short, ok := aliases[t.unit]
		if !ok {
			return 0, fmt.Errorf("%w: '%s' (supported: h, d, w, m, y)", ErrInvalidUnit, t.unit)
		}
		total += time.Duration(n) * sizeOf(short)
	}
	return total, nil
}

func sizeOf(short string) time.Duration {
	for _, u := range units {
		if u.short == short {
			return u.size
		}
	}
	return 0
}

// split cuts input into terms. A digit after a unit starts a new term.
func split(input string) ([]term, error) {
	var (
		terms []term
		cur   term
	)
	flush := func() {
		if cur.num != "" || cur.unit != "" {
			terms = append(terms, cur)
		}
		cur = term{}
	}
	for _, r := range input {
		switch {
		case unicode.IsDigit(r):
			if cur.unit != "" {
				flush()
			}
			cur.num += string(r)
		case unicode.IsLetter(r):
			cur.unit += string(r)
		case unicode.IsSpace(r):
			if cur.unit != "" {
				flush()
			}
		default:
			return nil, fmt.Errorf("%w: unexpected %q", ErrInvalidFormat, r)
		}
	}
	flush()
	return terms, nil
}

// Format renders d with the largest units first, e.g. "1w2d". The
// remainder below an hour is dropped. Zero is "0h".
func Format(d time.Duration) string {
	if d < time.Hour {
		return "0h"
	}
	var b strings.Builder
	for _, u := range units {
		if n := d / u.size; n > 0 {
			fmt.Fprintf(&b, "%d%s", n, u.short)
			d -= n * u.size
		}
	}
	return b.String()
}
