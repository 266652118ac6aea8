package calendar

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

var jst = time.FixedZone("JST", 9*60*60)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, jst)
}

func TestTradingDayBetween(t *testing.T) {
	c := New(jst, []time.Time{
		date(2021, time.January, 1),  // New Year's Day
		date(2021, time.January, 11), // Coming of Age Day
	})

	tests := []struct {
		name  string
		last  time.Time
		today time.Time
		want  bool
	}{
		{"friday to saturday", date(2021, time.January, 15), date(2021, time.January, 16), false},
		{"friday to sunday", date(2021, time.January, 15), date(2021, time.January, 17), false},
		{"friday to monday", date(2021, time.January, 15), date(2021, time.January, 18), true},
		{"same day", date(2021, time.January, 15), date(2021, time.January, 15), false},
		{"weekday to next weekday", date(2021, time.January, 13), date(2021, time.January, 14), true},
		{"across a holiday only", date(2021, time.January, 8), date(2021, time.January, 11), false},
		{"across a holiday onto a trading day", date(2021, time.January, 8), date(2021, time.January, 12), true},
		{"year end into holiday", date(2020, time.December, 31), date(2021, time.January, 1), false},
		{"never ingested", time.Time{}, date(2021, time.January, 16), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, c.TradingDayBetween(tt.last, tt.today), tt.want)
		})
	}
}

func TestTradingDayBetweenIgnoresTimeOfDay(t *testing.T) {
	c := New(jst, nil)

	last := time.Date(2021, time.January, 15, 23, 59, 0, 0, jst)
	today := time.Date(2021, time.January, 18, 0, 1, 0, 0, jst)
	assert.Equal(t, c.TradingDayBetween(last, today), true)
}

func TestIsTradingDay(t *testing.T) {
	c := New(jst, []time.Time{date(2021, time.May, 3)})

	assert.Equal(t, c.IsTradingDay(date(2021, time.May, 3)), false)  // holiday
	assert.Equal(t, c.IsTradingDay(date(2021, time.May, 1)), false)  // saturday
	assert.Equal(t, c.IsTradingDay(date(2021, time.May, 6)), true)   // thursday
}

func TestIsTradingDayConvertsTimezone(t *testing.T) {
	c := New(jst, nil)

	// Friday 20:00 UTC is Saturday 05:00 JST.
	fridayUTC := time.Date(2021, time.January, 15, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, c.IsTradingDay(fridayUTC), false)
}
