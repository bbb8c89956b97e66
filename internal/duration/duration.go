// Package duration parses and formats the short duration strings used by
// timed moderation commands ("30m", "2h", "1d", "1w", "3mo", "1y").
package duration

import (
	"fmt"
	"math"
	"strings"
)

// Unit is one of the accepted duration suffixes.
type Unit string

const (
	Minute Unit = "m"
	Hour   Unit = "h"
	Day    Unit = "d"
	Week   Unit = "w"
	Month  Unit = "mo"
	Year   Unit = "y"
)

// Millisecond factors per unit. Month and year are fixed at 30 and 365 days;
// the parser is not calendar-aware on purpose.
const (
	minuteMs = int64(60 * 1000)
	hourMs   = 60 * minuteMs
	dayMs    = 24 * hourMs
	weekMs   = 7 * dayMs
	monthMs  = 30 * dayMs
	yearMs   = 365 * dayMs
)

// Per-command unit sets.
var (
	BanUnits     = []Unit{Day, Week, Month, Year}
	MuteUnits    = []Unit{Hour, Day, Week, Month, Year}
	TimeoutUnits = []Unit{Minute, Hour, Day}
)

// ParseError reports an input string that is not a valid duration for the
// caller's accepted unit set.
type ParseError struct {
	Input  string
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid duration %q: %s", e.Input, e.Detail)
}

func factor(u Unit) int64 {
	switch u {
	case Minute:
		return minuteMs
	case Hour:
		return hourMs
	case Day:
		return dayMs
	case Week:
		return weekMs
	case Month:
		return monthMs
	case Year:
		return yearMs
	}
	return 0
}

// Parse converts a duration string into milliseconds. The whole input must be
// one or more digits followed by exactly one unit from the allowed set, case
// insensitive. Zero amounts and values that overflow int64 are rejected.
func Parse(input string, allowed ...Unit) (int64, error) {
	s := strings.ToLower(input)

	split := len(s)
	for i, r := range s {
		if r < '0' || r > '9' {
			split = i
			break
		}
	}
	if split == 0 || split == len(s) {
		return 0, &ParseError{Input: input, Detail: "expected a number followed by a unit"}
	}

	unit := Unit(s[split:])
	if factor(unit) == 0 {
		return 0, &ParseError{Input: input, Detail: fmt.Sprintf("unknown unit %q", s[split:])}
	}

	permitted := false
	for _, u := range allowed {
		if u == unit {
			permitted = true
			break
		}
	}
	if !permitted {
		return 0, &ParseError{Input: input, Detail: fmt.Sprintf("unit %q not accepted here", unit)}
	}

	var amount int64
	for _, r := range s[:split] {
		digit := int64(r - '0')
		if amount > (math.MaxInt64-digit)/10 {
			return 0, &ParseError{Input: input, Detail: "amount too large"}
		}
		amount = amount*10 + digit
	}
	if amount == 0 {
		return 0, &ParseError{Input: input, Detail: "amount must be positive"}
	}

	f := factor(unit)
	if amount > math.MaxInt64/f {
		return 0, &ParseError{Input: input, Detail: "amount too large"}
	}
	return amount * f, nil
}

// Format renders milliseconds as a human label using the coarsest unit whose
// magnitude is at least one. Lossy by design; display only.
func Format(ms int64) string {
	switch {
	case ms >= yearMs:
		return plural(ms/yearMs, "year")
	case ms >= monthMs:
		return plural(ms/monthMs, "month")
	case ms >= weekMs:
		return plural(ms/weekMs, "week")
	case ms >= dayMs:
		return plural(ms/dayMs, "day")
	case ms >= hourMs:
		return plural(ms/hourMs, "hour")
	case ms >= minuteMs:
		return plural(ms/minuteMs, "minute")
	default:
		return "less than a minute"
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
