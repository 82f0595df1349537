package dentist

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brightsmile/clinic/internal/platform/scheduling"
)

// WeekSchedule is a dentist's weekly working hours keyed by lowercase
// weekday name. Stored as JSONB.
type WeekSchedule map[string]scheduling.DayHours

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Hours converts the schedule to the weekday-keyed form the slot calendar
// consumes. Unknown day names are ignored; missing days count as closed.
func (w WeekSchedule) Hours() scheduling.WeekHours {
	hours := make(scheduling.WeekHours, len(w))
	for name, d := range w {
		if day, ok := weekdayNames[strings.ToLower(name)]; ok {
			hours[day] = d
		}
	}
	return hours
}

// DefaultWorkingHours mirrors the practice-wide schedule: full weekdays,
// short Friday and Saturday, closed Sunday.
func DefaultWorkingHours() WeekSchedule {
	return WeekSchedule{
		"monday":    {Open: 9 * 60, Close: 17 * 60},
		"tuesday":   {Open: 9 * 60, Close: 17 * 60},
		"wednesday": {Open: 9 * 60, Close: 17 * 60},
		"thursday":  {Open: 9 * 60, Close: 17 * 60},
		"friday":    {Open: 9 * 60, Close: 16 * 60},
		"saturday":  {Open: 9 * 60, Close: 15 * 60},
		"sunday":    {Closed: true},
	}
}

type Dentist struct {
	ID             uuid.UUID    `db:"id" json:"id"`
	FirstName      string       `db:"first_name" json:"first_name"`
	LastName       string       `db:"last_name" json:"last_name"`
	Email          string       `db:"email" json:"email"`
	Phone          string       `db:"phone" json:"phone"`
	Specialization string       `db:"specialization" json:"specialization"`
	LicenseNumber  string       `db:"license_number" json:"license_number"`
	WorkingHours   WeekSchedule `db:"working_hours" json:"working_hours"`
	VacationDates  []time.Time  `db:"vacation_dates" json:"vacation_dates"`
	Active         bool         `db:"active" json:"active"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

func (d *Dentist) FullName() string {
	return strings.TrimSpace("Dr. " + d.FirstName + " " + d.LastName)
}

// OnVacation reports whether the calendar date falls on one of the dentist's
// vacation days.
func (d *Dentist) OnVacation(date time.Time) bool {
	y, m, day := date.Date()
	for _, v := range d.VacationDates {
		vy, vm, vd := v.Date()
		if vy == y && vm == m && vd == day {
			return true
		}
	}
	return false
}

// IsAvailableOn reports whether the dentist works the given date at all:
// active, not on vacation, and the weekday is not closed.
func (d *Dentist) IsAvailableOn(date time.Time) bool {
	if !d.Active || d.OnVacation(date) {
		return false
	}
	return !d.WorkingHours.Hours().For(date.Weekday()).Closed
}
