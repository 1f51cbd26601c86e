package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatCount(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{7, "7"},
		{999, "999"},
		{1000, "1 K"},
		{1499, "1 K"},
		{1500, "2 K"},
		{2500, "3 K"},
		{45_210, "45 K"},
		{999_499, "999 K"},
		{999_500, "1000 K"},
		{999_999, "1000 K"},
		{1_000_000, "1 M"},
		{1_499_999, "1 M"},
		{1_500_000, "2 M"},
		{230_000_000, "230 M"},
		{-5, "-5"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatCount(tc.n), "FormatCount(%d)", tc.n)
	}
}

func TestDaysAgoAt(t *testing.T) {
	ref := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, DaysAgoAt(ref, ref), "now")
	assert.Equal(t, 0, DaysAgoAt(ref.Add(-23*time.Hour), ref), "same day")
	assert.Equal(t, 1, DaysAgoAt(ref.Add(-24*time.Hour), ref), "exactly 24h")
	assert.Equal(t, 1, DaysAgoAt(ref.Add(-47*time.Hour), ref))
	assert.Equal(t, 30, DaysAgoAt(ref.AddDate(0, 0, -30), ref))
	assert.Equal(t, -1, DaysAgoAt(ref.Add(time.Hour), ref), "future floors down")
	assert.Equal(t, -2, DaysAgoAt(ref.Add(25*time.Hour), ref))
}

func TestDaysAgoUsesClock(t *testing.T) {
	ref := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	orig := now
	now = func() time.Time { return ref }
	t.Cleanup(func() { now = orig })

	assert.Equal(t, 0, DaysAgo(ref))
	assert.Equal(t, 1, DaysAgo(ref.Add(-24*time.Hour)))
	assert.Equal(t, 3, DaysAgo(time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC)))
}
