package appointment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brightsmile/clinic/internal/domain/dentist"
	"github.com/brightsmile/clinic/internal/platform/scheduling"
)

// DentistDirectory is the slice of the dentist repository the booking flow
// needs: working hours and vacations for conflict checks.
type DentistDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*dentist.Dentist, error)
}

// resourceLocks serializes validate-then-write per dentist so two requests
// for the same chair cannot both pass the conflict check. Unassigned
// bookings share the uuid.Nil key.
type resourceLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newResourceLocks() *resourceLocks {
	return &resourceLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *resourceLocks) For(id *uuid.UUID) *sync.Mutex {
	key := uuid.Nil
	if id != nil {
		key = *id
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}

type Service struct {
	appts         Repository
	dentists      DentistDirectory
	practiceHours scheduling.WeekHours
	granularity   time.Duration
	locks         *resourceLocks
	now           func() time.Time
}

func NewService(appts Repository, dentists DentistDirectory, practiceHours scheduling.WeekHours, granularity time.Duration) *Service {
	return &Service{
		appts:         appts,
		dentists:      dentists,
		practiceHours: practiceHours,
		granularity:   granularity,
		locks:         newResourceLocks(),
		now:           time.Now,
	}
}

// Book validates the requested slot and creates the appointment. The
// validate-then-write sequence runs under the dentist's lock.
func (s *Service) Book(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if a.ScheduledAt.IsZero() {
		return fmt.Errorf("scheduled_at is required")
	}
	if a.Type == "" {
		a.Type = TypeConsultation
	}
	if !validTypes[a.Type] {
		return fmt.Errorf("invalid appointment type: %s", a.Type)
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if !validStatuses[a.Status] {
		return fmt.Errorf("invalid appointment status: %s", a.Status)
	}

	mu := s.locks.For(a.DentistID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.checkSlot(ctx, a, uuid.Nil); err != nil {
		return err
	}
	return s.appts.Create(ctx, a)
}

// Reschedule moves an appointment to a new slot, re-validating with the
// appointment's own interval excluded from the busy set.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newStart time.Time, durationMinutes int) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Blocking() {
		return nil, fmt.Errorf("cannot reschedule a %s appointment", a.Status)
	}

	candidate := *a
	candidate.ScheduledAt = newStart
	if durationMinutes > 0 {
		candidate.DurationMinutes = durationMinutes
	}

	mu := s.locks.For(a.DentistID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.checkSlot(ctx, &candidate, a.ID); err != nil {
		return nil, err
	}
	candidate.Status = StatusScheduled
	if err := s.appts.Update(ctx, &candidate); err != nil {
		return nil, err
	}
	return &candidate, nil
}

// Cancel marks the appointment cancelled and records the reason. The slot
// becomes bookable again; the record stays for statistics.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusCancelled {
		return a, nil
	}
	a.Status = StatusCancelled
	if reason = strings.TrimSpace(reason); reason != "" {
		if a.Notes != "" {
			a.Notes += "\n"
		}
		a.Notes += "Cancelled: " + reason
	}
	if err := s.appts.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateStatus transitions an appointment to the given status.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Appointment, error) {
	if !validStatuses[status] {
		return nil, fmt.Errorf("invalid appointment status: %s", status)
	}
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Status = status
	if err := s.appts.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateRequest carries the mutable appointment fields. Nil pointers leave
// the current value untouched.
type UpdateRequest struct {
	Type            *string    `json:"type"`
	Notes           *string    `json:"notes"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
	DurationMinutes *int       `json:"duration_minutes"`
}

// Update edits an appointment in place. Changing the time or duration
// re-validates the slot the same way a reschedule does.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	candidate := *a
	if req.Type != nil {
		if !validTypes[*req.Type] {
			return nil, fmt.Errorf("invalid appointment type: %s", *req.Type)
		}
		candidate.Type = *req.Type
	}
	if req.Notes != nil {
		candidate.Notes = *req.Notes
	}

	moved := false
	if req.ScheduledAt != nil {
		candidate.ScheduledAt = *req.ScheduledAt
		moved = true
	}
	if req.DurationMinutes != nil {
		candidate.DurationMinutes = *req.DurationMinutes
		moved = true
	}

	if moved {
		if !a.Blocking() {
			return nil, fmt.Errorf("cannot move a %s appointment", a.Status)
		}
		mu := s.locks.For(a.DentistID)
		mu.Lock()
		defer mu.Unlock()
		if err := s.checkSlot(ctx, &candidate, a.ID); err != nil {
			return nil, err
		}
	}

	if err := s.appts.Update(ctx, &candidate); err != nil {
		return nil, err
	}
	return &candidate, nil
}

// AvailableSlots computes bookable start times on a date. A nil dentistID
// checks against every appointment using the practice-wide hours; a closed
// day, a vacation day, or an inactive dentist yields an empty list.
func (s *Service) AvailableSlots(ctx context.Context, date time.Time, dentistID *uuid.UUID, duration, granularity time.Duration) ([]time.Time, error) {
	if granularity <= 0 {
		granularity = s.granularity
	}

	hours := s.practiceHours
	if dentistID != nil {
		d, err := s.dentists.GetByID(ctx, *dentistID)
		if err != nil {
			return nil, err
		}
		if !d.Active || d.OnVacation(date) {
			return []time.Time{}, nil
		}
		hours = d.WorkingHours.Hours()
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	existing, err := s.appts.ListOverlapping(ctx, dayStart, dayStart.Add(24*time.Hour), dentistID)
	if err != nil {
		return nil, err
	}

	var busy []scheduling.Interval
	for _, e := range existing {
		if e.Blocking() && e.concerns(dentistID) {
			busy = append(busy, e.Interval())
		}
	}

	cal := scheduling.NewCalendar(hours, granularity)
	slots := cal.AvailableSlots(date, duration, busy)
	if slots == nil {
		slots = []time.Time{}
	}
	return slots, nil
}

// checkSlot validates the candidate appointment against working hours and
// existing bookings. excludeID removes the appointment's own row from the
// busy set when rescheduling.
func (s *Service) checkSlot(ctx context.Context, a *Appointment, excludeID uuid.UUID) error {
	if a.DurationMinutes <= 0 {
		return scheduling.ErrInvalidDuration
	}

	hours := s.practiceHours
	if a.DentistID != nil {
		d, err := s.dentists.GetByID(ctx, *a.DentistID)
		if err != nil {
			return err
		}
		if !d.Active || d.OnVacation(a.ScheduledAt) {
			return scheduling.ErrOutOfHours
		}
		hours = d.WorkingHours.Hours()
	}

	candidate := a.Interval()
	existing, err := s.appts.ListOverlapping(ctx, candidate.Start, candidate.End(), a.DentistID)
	if err != nil {
		return err
	}

	var busy []scheduling.Interval
	for _, e := range existing {
		if e.ID == excludeID {
			continue
		}
		if e.Blocking() && e.concerns(a.DentistID) {
			busy = append(busy, e.Interval())
		}
	}

	cal := scheduling.NewCalendar(hours, s.granularity)
	return cal.CheckSlot(candidate, busy)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appts.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.appts.Delete(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appts.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByDentist(ctx context.Context, dentistID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appts.ListByDentist(ctx, dentistID, limit, offset)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	return s.appts.Search(ctx, params, limit, offset)
}

// Upcoming returns scheduled or confirmed visits starting within the next
// given number of days, ascending.
func (s *Service) Upcoming(ctx context.Context, days int) ([]*Appointment, error) {
	if days <= 0 {
		days = 7
	}
	now := s.now()
	window, err := s.appts.ListOverlapping(ctx, now, now.AddDate(0, 0, days), nil)
	if err != nil {
		return nil, err
	}
	upcoming := []*Appointment{}
	for _, a := range window {
		if !a.ScheduledAt.Before(now) && (a.Status == StatusScheduled || a.Status == StatusConfirmed) {
			upcoming = append(upcoming, a)
		}
	}
	return upcoming, nil
}

// Overdue returns visits still marked scheduled or confirmed whose slot has
// already ended.
func (s *Service) Overdue(ctx context.Context) ([]*Appointment, error) {
	now := s.now()
	past, err := s.appts.ListOverlapping(ctx, time.Time{}, now, nil)
	if err != nil {
		return nil, err
	}
	overdue := []*Appointment{}
	for _, a := range past {
		if a.EndTime().Before(now) && (a.Status == StatusScheduled || a.Status == StatusConfirmed) {
			overdue = append(overdue, a)
		}
	}
	return overdue, nil
}

// AddTreatmentNote attaches a clinical note to an existing appointment.
func (s *Service) AddTreatmentNote(ctx context.Context, n *TreatmentNote) error {
	if strings.TrimSpace(n.Note) == "" {
		return fmt.Errorf("note is required")
	}
	if _, err := s.appts.GetByID(ctx, n.AppointmentID); err != nil {
		return err
	}
	return s.appts.AddNote(ctx, n)
}

func (s *Service) TreatmentNotes(ctx context.Context, appointmentID uuid.UUID) ([]*TreatmentNote, error) {
	return s.appts.ListNotes(ctx, appointmentID)
}
