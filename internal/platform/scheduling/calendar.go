// Package scheduling holds the pure slot and conflict arithmetic shared by
// the appointment service and the availability endpoints. Nothing in here
// touches storage or the wall clock; callers pass the busy set in.
package scheduling

import (
	"errors"
	"fmt"
	"time"
)

// Reasons a candidate slot is rejected, in the order they are checked.
var (
	ErrInvalidDuration = errors.New("duration must be positive")
	ErrOutOfHours      = errors.New("slot is outside working hours")
	ErrSlotTaken       = errors.New("slot conflicts with an existing appointment")
)

// Interval is a half-open time range [Start, Start+Duration).
type Interval struct {
	Start    time.Time
	Duration time.Duration
}

// End returns the exclusive end of the interval.
func (iv Interval) End() time.Time {
	return iv.Start.Add(iv.Duration)
}

// Overlaps reports whether two half-open intervals intersect. Intervals that
// merely touch (one ends exactly when the other starts) do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End()) && other.Start.Before(iv.End())
}

// DayHours is the open window for a single weekday, in minutes from midnight.
type DayHours struct {
	Open   int  `json:"open"`
	Close  int  `json:"close"`
	Closed bool `json:"closed"`
}

// String renders the window for display, e.g. "9:00 AM - 5:00 PM".
func (d DayHours) String() string {
	if d.Closed {
		return "Closed"
	}
	return fmt.Sprintf("%s - %s", clockString(d.Open), clockString(d.Close))
}

func clockString(minutes int) string {
	h, m := minutes/60, minutes%60
	suffix := "AM"
	display := h
	switch {
	case h == 0:
		display = 12
	case h == 12:
		suffix = "PM"
	case h > 12:
		display = h - 12
		suffix = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", display, m, suffix)
}

// WeekHours maps weekdays to their open windows. A missing weekday counts
// as closed.
type WeekHours map[time.Weekday]DayHours

// For returns the hours for the given weekday.
func (w WeekHours) For(day time.Weekday) DayHours {
	d, ok := w[day]
	if !ok {
		return DayHours{Closed: true}
	}
	return d
}

// DefaultPracticeHours returns the practice-wide open windows: weekdays from
// 9, closing at 5 Monday to Thursday, 4 on Friday, 3 on Saturday, closed
// Sunday.
func DefaultPracticeHours() WeekHours {
	return WeekHours{
		time.Monday:    {Open: 9 * 60, Close: 17 * 60},
		time.Tuesday:   {Open: 9 * 60, Close: 17 * 60},
		time.Wednesday: {Open: 9 * 60, Close: 17 * 60},
		time.Thursday:  {Open: 9 * 60, Close: 17 * 60},
		time.Friday:    {Open: 9 * 60, Close: 16 * 60},
		time.Saturday:  {Open: 9 * 60, Close: 15 * 60},
		time.Sunday:    {Closed: true},
	}
}

// Calendar computes available slots against a weekly schedule.
type Calendar struct {
	Hours       WeekHours
	Granularity time.Duration // grid step between candidate starts
}

// NewCalendar builds a Calendar with the given hours and grid step.
func NewCalendar(hours WeekHours, granularity time.Duration) Calendar {
	return Calendar{Hours: hours, Granularity: granularity}
}

// windowFor resolves the open window for a calendar date, anchored to that
// date's midnight in its own location.
func (c Calendar) windowFor(date time.Time) (open, close time.Time, ok bool) {
	d := c.Hours.For(date.Weekday())
	if d.Closed || d.Close <= d.Open {
		return time.Time{}, time.Time{}, false
	}
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return midnight.Add(time.Duration(d.Open) * time.Minute),
		midnight.Add(time.Duration(d.Close) * time.Minute), true
}

// WithinHours reports whether the interval fits entirely inside the open
// window of the day it starts on.
func (c Calendar) WithinHours(iv Interval) bool {
	open, close, ok := c.windowFor(iv.Start)
	if !ok {
		return false
	}
	return !iv.Start.Before(open) && !iv.End().After(close)
}

// AvailableSlots returns every slot start on the day of date where an
// appointment of the given duration fits inside the open window and does not
// overlap any busy interval. Starts step from opening time by the calendar
// granularity. The result is ascending and deterministic; a closed day or a
// non-positive duration yields an empty slice.
func (c Calendar) AvailableSlots(date time.Time, duration time.Duration, busy []Interval) []time.Time {
	if duration <= 0 || c.Granularity <= 0 {
		return nil
	}
	open, close, ok := c.windowFor(date)
	if !ok {
		return nil
	}

	var slots []time.Time
	for t := open; !t.Add(duration).After(close); t = t.Add(c.Granularity) {
		candidate := Interval{Start: t, Duration: duration}
		free := true
		for _, b := range busy {
			if candidate.Overlaps(b) {
				free = false
				break
			}
		}
		if free {
			slots = append(slots, t)
		}
	}
	return slots
}

// CheckSlot validates a candidate interval against the calendar and the busy
// set. Checks run in a fixed order: duration, working hours, then conflicts.
func (c Calendar) CheckSlot(candidate Interval, busy []Interval) error {
	if candidate.Duration <= 0 {
		return ErrInvalidDuration
	}
	if !c.WithinHours(candidate) {
		return ErrOutOfHours
	}
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return ErrSlotTaken
		}
	}
	return nil
}
