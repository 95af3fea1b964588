// Package risk holds the circuit-breaker predicates for the trading loop.
// Both are pure functions of their inputs; the loop decides what to do when
// they fire.
package risk

import (
	"strconv"
	"strings"
	"time"
)

// ShouldForceClose reports whether now's time-of-day has reached the
// "HH:MM" cutoff. now must already be in the trading time zone.
//
// A malformed cutoff disables the check (returns false). That preserves the
// long-observed behavior of the system; config validation is expected to
// catch bad values before they reach here.
func ShouldForceClose(now time.Time, cutoff string) bool {
	hh, mm, ok := splitHHMM(cutoff)
	if !ok {
		return false
	}
	c := time.Date(now.Year(), now.Month(), now.Day(), hh, mm, 0, 0, now.Location())
	return !now.Before(c)
}

// MaxLossBreached reports whether equity has fallen to or below the daily
// loss threshold derived from the session's opening balance. A non-positive
// maxLossPct disables the check.
func MaxLossBreached(equity, openingBalance, maxLossPct float64) bool {
	if maxLossPct <= 0 {
		return false
	}
	threshold := openingBalance * (1.0 - maxLossPct/100.0)
	return equity <= threshold
}

func splitHHMM(s string) (hh, mm int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	hh, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	mm, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, 0, false
	}
	return hh, mm, true
}
