// Package jst pins the trading time zone. Every wall-clock decision in the
// system (cutoffs, schedule targets, ledger dates) is made in Tokyo time.
package jst

import "time"

var Location = load()

func load() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

func Now() time.Time {
	return time.Now().In(Location)
}

// Date formats t's calendar date in the trading time zone.
func Date(t time.Time) string {
	return t.In(Location).Format("2006-01-02")
}
