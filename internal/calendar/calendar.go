/*
Copyright © 2021 A. Jensen <jensen.aaro@gmail.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package calendar decides whether a trading day has occurred between a
// symbol's watermark and the current date. A trading day is any day that is
// neither a weekend nor a configured exchange holiday.
package calendar

import (
	"time"
)

const dateFormat = "2006-01-02"

type Calendar struct {
	tz       *time.Location
	holidays map[string]struct{}
}

// New returns a Calendar for the given timezone. Holidays are interpreted as
// dates in that timezone.
func New(tz *time.Location, holidays []time.Time) *Calendar {
	hs := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		hs[h.In(tz).Format(dateFormat)] = struct{}{}
	}
	return &Calendar{tz: tz, holidays: hs}
}

// IsTradingDay reports whether t falls on a trading day.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	t = t.In(c.tz)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := c.holidays[t.Format(dateFormat)]
	return !holiday
}

// TradingDayBetween reports whether at least one trading day exists in the
// half-open interval (last, today]. A zero last means the symbol has never
// been ingested, which always warrants a fetch.
func (c *Calendar) TradingDayBetween(last, today time.Time) bool {
	if last.IsZero() {
		return true
	}

	d := truncate(last.In(c.tz))
	end := truncate(today.In(c.tz))
	for d.Before(end) {
		d = d.AddDate(0, 0, 1)
		if c.IsTradingDay(d) {
			return true
		}
	}
	return false
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
