// Package format holds the small display helpers used by the board:
// issue age in days and abbreviated star counts.
package format

import (
	"math"
	"strconv"
	"time"
)

const day = 24 * time.Hour

// now is replaced in tests.
var now = time.Now

// DaysAgo returns the number of whole days elapsed since createdAt.
// Timestamps in the future yield negative values.
func DaysAgo(createdAt time.Time) int {
	return DaysAgoAt(createdAt, now())
}

// DaysAgoAt is DaysAgo against an explicit reference time.
func DaysAgoAt(createdAt, ref time.Time) int {
	d := ref.Sub(createdAt)
	days := d / day
	// Floor, not truncation, for timestamps ahead of ref.
	if d%day < 0 {
		days--
	}
	return int(days)
}

// FormatCount abbreviates n with a " K" or " M" suffix, rounding half away
// from zero. The branch is picked from n itself, so 999,500 through 999,999
// render as "1000 K" rather than "1 M".
func FormatCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return strconv.FormatFloat(math.Round(float64(n)/1e6), 'f', 0, 64) + " M"
	case n >= 1000:
		return strconv.FormatFloat(math.Round(float64(n)/1e3), 'f', 0, 64) + " K"
	}
	return strconv.FormatInt(n, 10)
}
