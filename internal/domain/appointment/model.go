package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/brightsmile/clinic/internal/platform/scheduling"
)

// Appointment statuses. Cancelled and no-show visits stop blocking their
// time slot but stay on record for statistics.
const (
	StatusScheduled  = "scheduled"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusNoShow     = "no_show"
)

var validStatuses = map[string]bool{
	StatusScheduled: true, StatusConfirmed: true, StatusInProgress: true,
	StatusCompleted: true, StatusCancelled: true, StatusNoShow: true,
}

// Visit types offered by the practice.
const (
	TypeConsultation = "consultation"
	TypeCleaning     = "cleaning"
	TypeFilling      = "filling"
	TypeRootCanal    = "root_canal"
	TypeExtraction   = "extraction"
	TypeWhitening    = "whitening"
	TypeCheckup      = "checkup"
	TypeEmergency    = "emergency"
	TypeFollowUp     = "follow_up"
)

var validTypes = map[string]bool{
	TypeConsultation: true, TypeCleaning: true, TypeFilling: true,
	TypeRootCanal: true, TypeExtraction: true, TypeWhitening: true,
	TypeCheckup: true, TypeEmergency: true, TypeFollowUp: true,
}

// Statuses returns the valid appointment statuses.
func Statuses() []string {
	return []string{StatusScheduled, StatusConfirmed, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusNoShow}
}

// Types returns the valid visit types.
func Types() []string {
	return []string{TypeConsultation, TypeCleaning, TypeFilling, TypeRootCanal,
		TypeExtraction, TypeWhitening, TypeCheckup, TypeEmergency, TypeFollowUp}
}

// Appointment is a booked visit. DentistID is optional; a visit with no
// dentist assigned blocks the slot for every dentist.
type Appointment struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	DentistID       *uuid.UUID `db:"dentist_id" json:"dentist_id,omitempty"`
	Type            string     `db:"appointment_type" json:"type"`
	ScheduledAt     time.Time  `db:"scheduled_at" json:"scheduled_at"`
	DurationMinutes int        `db:"duration_minutes" json:"duration_minutes"`
	Status          string     `db:"status" json:"status"`
	Notes           string     `db:"notes" json:"notes"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Blocking reports whether this appointment occupies its time slot.
func (a *Appointment) Blocking() bool {
	return a.Status != StatusCancelled && a.Status != StatusNoShow
}

// Interval returns the half-open time range the appointment occupies.
func (a *Appointment) Interval() scheduling.Interval {
	return scheduling.Interval{
		Start:    a.ScheduledAt,
		Duration: time.Duration(a.DurationMinutes) * time.Minute,
	}
}

// EndTime returns the exclusive end of the appointment.
func (a *Appointment) EndTime() time.Time {
	return a.Interval().End()
}

// concerns reports whether the appointment occupies the given dentist's
// chair. Appointments with no dentist assigned concern everyone; a nil
// filter matches every appointment.
func (a *Appointment) concerns(dentistID *uuid.UUID) bool {
	if dentistID == nil || a.DentistID == nil {
		return true
	}
	return *a.DentistID == *dentistID
}

// TreatmentNote is a clinical note attached to an appointment.
type TreatmentNote struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	Author        string    `db:"author" json:"author"`
	Note          string    `db:"note" json:"note"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
