package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/brightsmile/clinic/internal/domain/dentist"
	"github.com/brightsmile/clinic/internal/platform/scheduling"
)

// -- Mock Repository --

type mockRepo struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*Appointment
	notes map[uuid.UUID][]*TreatmentNote
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		appts: make(map[uuid.UUID]*Appointment),
		notes: make(map[uuid.UUID][]*TreatmentNote),
	}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = time.Now()
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appts[a.ID]; !ok {
		return ErrNotFound
	}
	a.UpdatedAt = time.Now()
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appts[id]; !ok {
		return ErrNotFound
	}
	delete(m.appts, id)
	return nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			result = append(result, a)
		}
	}
	return result, len(result), nil
}

func (m *mockRepo) ListByDentist(_ context.Context, dentistID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Appointment
	for _, a := range m.appts {
		if a.DentistID != nil && *a.DentistID == dentistID {
			result = append(result, a)
		}
	}
	return result, len(result), nil
}

func (m *mockRepo) ListOverlapping(_ context.Context, from, to time.Time, dentistID *uuid.UUID) ([]*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	window := scheduling.Interval{Start: from, Duration: to.Sub(from)}
	var result []*Appointment
	for _, a := range m.appts {
		if !a.Interval().Overlaps(window) {
			continue
		}
		if dentistID != nil && a.DentistID != nil && *a.DentistID != *dentistID {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

func (m *mockRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Appointment
	for _, a := range m.appts {
		if st, ok := params["status"]; ok && a.Status != st {
			continue
		}
		result = append(result, a)
	}
	return result, len(result), nil
}

func (m *mockRepo) All(_ context.Context) ([]*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Appointment
	for _, a := range m.appts {
		result = append(result, a)
	}
	return result, nil
}

func (m *mockRepo) AddNote(_ context.Context, n *TreatmentNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	m.notes[n.AppointmentID] = append(m.notes[n.AppointmentID], n)
	return nil
}

func (m *mockRepo) ListNotes(_ context.Context, appointmentID uuid.UUID) ([]*TreatmentNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notes[appointmentID], nil
}

type mockDentists struct {
	dentists map[uuid.UUID]*dentist.Dentist
}

func (m *mockDentists) GetByID(_ context.Context, id uuid.UUID) (*dentist.Dentist, error) {
	d, ok := m.dentists[id]
	if !ok {
		return nil, dentist.ErrNotFound
	}
	return d, nil
}

// -- Fixtures --

// 2026-01-05 is a Monday; practice hours run 9 to 5.
var monday = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func at(day time.Time, hour, min int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, day.Location())
}

func newTestService() (*Service, *mockRepo, *mockDentists) {
	repo := newMockRepo()
	dents := &mockDentists{dentists: make(map[uuid.UUID]*dentist.Dentist)}
	svc := NewService(repo, dents, scheduling.DefaultPracticeHours(), 30*time.Minute)
	svc.now = func() time.Time { return at(monday, 8, 0) }
	return svc, repo, dents
}

func addDentist(dents *mockDentists) uuid.UUID {
	id := uuid.New()
	dents.dentists[id] = &dentist.Dentist{
		ID: id, FirstName: "Sarah", LastName: "Chen",
		Active: true, WorkingHours: dentist.DefaultWorkingHours(),
	}
	return id
}

func booking(patientID uuid.UUID, dentistID *uuid.UUID, start time.Time, minutes int) *Appointment {
	return &Appointment{
		PatientID:       patientID,
		DentistID:       dentistID,
		Type:            TypeCheckup,
		ScheduledAt:     start,
		DurationMinutes: minutes,
	}
}

// -- Tests --

func TestService_Book(t *testing.T) {
	svc, _, dents := newTestService()
	did := addDentist(dents)

	a := booking(uuid.New(), &did, at(monday, 10, 0), 30)
	if err := svc.Book(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == uuid.Nil {
		t.Error("expected ID to be assigned")
	}
	if a.Status != StatusScheduled {
		t.Errorf("expected status scheduled, got %s", a.Status)
	}
}

func TestService_Book_RejectReasons(t *testing.T) {
	svc, _, dents := newTestService()
	did := addDentist(dents)

	taken := booking(uuid.New(), &did, at(monday, 10, 0), 60)
	if err := svc.Book(context.Background(), taken); err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}

	sunday := time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		appt    *Appointment
		wantErr error
	}{
		{"zero duration", booking(uuid.New(), &did, at(monday, 14, 0), 0), scheduling.ErrInvalidDuration},
		{"negative duration", booking(uuid.New(), &did, at(monday, 14, 0), -15), scheduling.ErrInvalidDuration},
		{"before opening", booking(uuid.New(), &did, at(monday, 7, 0), 30), scheduling.ErrOutOfHours},
		{"past close", booking(uuid.New(), &did, at(monday, 16, 45), 30), scheduling.ErrOutOfHours},
		{"closed sunday", booking(uuid.New(), &did, at(sunday, 10, 0), 30), scheduling.ErrOutOfHours},
		{"exact overlap", booking(uuid.New(), &did, at(monday, 10, 0), 60), scheduling.ErrSlotTaken},
		{"partial overlap", booking(uuid.New(), &did, at(monday, 10, 30), 60), scheduling.ErrSlotTaken},
		{"straddles booking", booking(uuid.New(), &did, at(monday, 9, 30), 120), scheduling.ErrSlotTaken},
		{"touching end is free", booking(uuid.New(), &did, at(monday, 11, 0), 30), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Book(context.Background(), tt.appt)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Book() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_Book_DifferentDentistsDoNotConflict(t *testing.T) {
	svc, _, dents := newTestService()
	d1 := addDentist(dents)
	d2 := addDentist(dents)

	if err := svc.Book(context.Background(), booking(uuid.New(), &d1, at(monday, 10, 0), 60)); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	if err := svc.Book(context.Background(), booking(uuid.New(), &d2, at(monday, 10, 0), 60)); err != nil {
		t.Errorf("expected different dentist to be free, got %v", err)
	}
}

func TestService_Book_UnassignedBlocksEveryDentist(t *testing.T) {
	svc, _, dents := newTestService()
	did := addDentist(dents)

	if err := svc.Book(context.Background(), booking(uuid.New(), nil, at(monday, 10, 0), 60)); err != nil {
		t.Fatalf("unassigned booking failed: %v", err)
	}
	err := svc.Book(context.Background(), booking(uuid.New(), &did, at(monday, 10, 0), 60))
	if !errors.Is(err, scheduling.ErrSlotTaken) {
		t.Errorf("expected ErrSlotTaken against unassigned booking, got %v", err)
	}
}

func TestService_Book_VacationAndInactive(t *testing.T) {
	svc, _, dents := newTestService()
	did := addDentist(dents)

	dents.dentists[did].VacationDates = []time.Time{monday}
	err := svc.Book(context.Background(), booking(uuid.New(), &did, at(monday, 10, 0), 30))
	if !errors.Is(err, scheduling.ErrOutOfHours) {
		t.Errorf("expected ErrOutOfHours on vacation day, got %v", err)
	}

	dents.dentists[did].VacationDates = nil
	dents.dentists[did].Active = false
	err = svc.Book(context.Background(), booking(uuid.New(), &did, at(monday, 10, 0), 30))
	if !errors.Is(err, scheduling.ErrOutOfHours) {
		t.Errorf("expected ErrOutOfHours for inactive dentist, got %v", err)
	}
}

func TestService_Book_UnknownDentist(t *testing.T) {
	svc, _, _ := newTestService()
	did := uuid.New()
	err := svc.Book(context.Background(), booking(uuid.New(), &did, at(monday, 10, 0), 30))
	if !errors.Is(err, dentist.ErrNotFound) {
		t.Errorf("expected dentist.ErrNotFound, got %v", err)
	}
}

func TestService_CancelFreesSlot(t *testing.T) {
	svc, _, dents := newTestService()
	did := addDentist(dents)

	a := booking(uuid.New(), &did, at(monday, 10, 0), 60)
	if err := svc.Book(context.Background(), a); err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	// The slot is taken, then cancellation frees it.
	retry := booking(uuid.New(), &did, at(monday, 10, 0), 60)
	if err := svc.Book(context.Background(), retry); !errors.Is(err, scheduling.ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken before cancel, got %v", err)
	}

	cancelled, err := svc.Cancel(context.Background(), a.ID, "patient request")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("expected cancelled status, got %s", cancelled.Status)
	}
	if cancelled.Notes == "" {
		t.Error("expected cancel reason in notes")
	}

	if err := svc.Book(context.Background(), retry); err != nil {
		t.Errorf("expected slot to be free after cancel, got %v", err)
	}
}

func TestService_CancelledSlotReappearsInAvailability(t *testing.T) {
	svc, _, dents := newTestService()
	did := addDentist(dents)

	a := booking(uuid.New(), &did, at(monday, 9, 0), 30)
	if err := svc.Book(context.Background(), a); err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	slots, err := svc.AvailableSlots(context.Background(), monday, &did, 30*time.Minute, 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range slots {
		if s.Equal(at(monday, 9, 0)) {
			t.Fatal("booked slot should not be available")
		}
	}

	if _, err := svc.Cancel(context.Background(), a.ID, ""); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	slots, err = svc.AvailableSlots(context.Background(), monday, &did, 30*time.Minute, 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, s := range slots {
		if s.Equal(at(monday, 9, 0)) {
			found = true
		}
	}
	if !found {
		t.Error("cancelled slot should be available again")
	}
}

func TestService_Reschedule(t *testing.T) {
	svc, _, dents := newTestService()
	did := addDentist(dents)

	a := booking(uuid.New(), &did, at(monday, 10, 0), 60)
	if err := svc.Book(context.Background(), a); err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	other := booking(uuid.New(), &did, at(monday, 14, 0), 60)
	if err := svc.Book(context.Background(), other); err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	// Moving into another booking's slot conflicts.
	if _, err := svc.Reschedule(context.Background(), a.ID, at(monday, 14, 30), 60); !errors.Is(err, scheduling.ErrSlotTaken) {
		t.Errorf("expected ErrSlotTaken, got %v", err)
	}

	// Shifting within its own old interval succeeds; the appointment's own
	// row is excluded from the busy set.
	moved, err := svc.Reschedule(context.Background(), a.ID, at(monday, 10, 30), 60)
	if err != nil {
		t.Fatalf("reschedule failed: %v", err)
	}
	if !moved.ScheduledAt.Equal(at(monday, 10, 30)) {
		t.Errorf("unexpected start %v", moved.ScheduledAt)
	}
}

func TestService_Reschedule_CancelledRejected(t *testing.T) {
	svc, _, dents := newTestService()
	did := addDentist(dents)

	a := booking(uuid.New(), &did, at(monday, 10, 0), 30)
	if err := svc.Book(context.Background(), a); err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), a.ID, ""); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := svc.Reschedule(context.Background(), a.ID, at(monday, 11, 0), 30); err == nil {
		t.Error("expected error rescheduling a cancelled appointment")
	}
}

func TestService_Update(t *testing.T) {
	svc, _, dents := newTestService()
	did := addDentist(dents)

	a := booking(uuid.New(), &did, at(monday, 10, 0), 60)
	if err := svc.Book(context.Background(), a); err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	other := booking(uuid.New(), &did, at(monday, 14, 0), 60)
	if err := svc.Book(context.Background(), other); err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	// Editing type and notes does not touch the slot.
	newType := TypeCleaning
	notes := "bring prior x-rays"
	updated, err := svc.Update(context.Background(), a.ID, UpdateRequest{Type: &newType, Notes: &notes})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Type != TypeCleaning || updated.Notes != notes {
		t.Errorf("unexpected result: %+v", updated)
	}
	if !updated.ScheduledAt.Equal(at(monday, 10, 0)) {
		t.Errorf("time should be unchanged, got %v", updated.ScheduledAt)
	}

	// Moving the time re-validates against other bookings.
	conflict := at(monday, 14, 30)
	if _, err := svc.Update(context.Background(), a.ID, UpdateRequest{ScheduledAt: &conflict}); !errors.Is(err, scheduling.ErrSlotTaken) {
		t.Errorf("expected ErrSlotTaken, got %v", err)
	}

	free := at(monday, 11, 0)
	moved, err := svc.Update(context.Background(), a.ID, UpdateRequest{ScheduledAt: &free})
	if err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if !moved.ScheduledAt.Equal(free) {
		t.Errorf("unexpected start %v", moved.ScheduledAt)
	}

	bad := "drive_through"
	if _, err := svc.Update(context.Background(), a.ID, UpdateRequest{Type: &bad}); err == nil {
		t.Error("expected error for invalid type")
	}
}

func TestService_UpdateStatus(t *testing.T) {
	svc, _, dents := newTestService()
	did := addDentist(dents)

	a := booking(uuid.New(), &did, at(monday, 10, 0), 30)
	if err := svc.Book(context.Background(), a); err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	updated, err := svc.UpdateStatus(context.Background(), a.ID, StatusConfirmed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != StatusConfirmed {
		t.Errorf("expected confirmed, got %s", updated.Status)
	}

	if _, err := svc.UpdateStatus(context.Background(), a.ID, "teleported"); err == nil {
		t.Error("expected error for invalid status")
	}
}

func TestService_ConcurrentBooking_OneWins(t *testing.T) {
	svc, _, dents := newTestService()
	did := addDentist(dents)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.Book(context.Background(), booking(uuid.New(), &did, at(monday, 10, 0), 30))
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		} else if !errors.Is(err, scheduling.ErrSlotTaken) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("expected exactly one booking to win, got %d", won)
	}
}

func TestService_AvailableSlots_VacationDay(t *testing.T) {
	svc, _, dents := newTestService()
	did := addDentist(dents)
	dents.dentists[did].VacationDates = []time.Time{monday}

	slots, err := svc.AvailableSlots(context.Background(), monday, &did, 30*time.Minute, 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("expected no slots on a vacation day, got %d", len(slots))
	}
}

func TestService_AvailableSlots_UnknownDentist(t *testing.T) {
	svc, _, _ := newTestService()
	did := uuid.New()
	_, err := svc.AvailableSlots(context.Background(), monday, &did, 30*time.Minute, 0)
	if !errors.Is(err, dentist.ErrNotFound) {
		t.Errorf("expected dentist.ErrNotFound, got %v", err)
	}
}

func TestService_UpcomingAndOverdue(t *testing.T) {
	svc, repo, dents := newTestService()
	did := addDentist(dents)

	friday := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	// Seed directly so past bookings bypass slot validation.
	past := booking(uuid.New(), &did, at(friday, 10, 0), 30)
	past.Status = StatusScheduled
	repo.Create(context.Background(), past)

	done := booking(uuid.New(), &did, at(friday, 11, 0), 30)
	done.Status = StatusCompleted
	repo.Create(context.Background(), done)

	future := booking(uuid.New(), &did, at(monday, 10, 0), 30)
	if err := svc.Book(context.Background(), future); err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	upcoming, err := svc.Upcoming(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(upcoming) != 1 || upcoming[0].ID != future.ID {
		t.Errorf("unexpected upcoming set: %v", upcoming)
	}

	overdue, err := svc.Overdue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != past.ID {
		t.Errorf("unexpected overdue set: %v", overdue)
	}
}

func TestService_TreatmentNotes(t *testing.T) {
	svc, _, dents := newTestService()
	did := addDentist(dents)

	a := booking(uuid.New(), &did, at(monday, 10, 0), 30)
	if err := svc.Book(context.Background(), a); err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	n := &TreatmentNote{AppointmentID: a.ID, Author: "Dr. Chen", Note: "two fillings, upper left"}
	if err := svc.AddTreatmentNote(context.Background(), n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	notes, err := svc.TreatmentNotes(context.Background(), a.ID)
	if err != nil || len(notes) != 1 {
		t.Fatalf("expected one note, got %v (%v)", notes, err)
	}

	blank := &TreatmentNote{AppointmentID: a.ID, Note: "  "}
	if err := svc.AddTreatmentNote(context.Background(), blank); err == nil {
		t.Error("expected error for blank note")
	}
	orphan := &TreatmentNote{AppointmentID: uuid.New(), Note: "x"}
	if !errors.Is(svc.AddTreatmentNote(context.Background(), orphan), ErrNotFound) {
		t.Error("expected ErrNotFound for unknown appointment")
	}
}
