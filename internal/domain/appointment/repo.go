package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("appointment not found")

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByDentist(ctx context.Context, dentistID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	// ListOverlapping returns appointments whose interval intersects
	// [from, to). A nil dentistID returns every appointment in the window;
	// otherwise rows for that dentist plus unassigned rows are returned.
	ListOverlapping(ctx context.Context, from, to time.Time, dentistID *uuid.UUID) ([]*Appointment, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error)
	All(ctx context.Context) ([]*Appointment, error)
	AddNote(ctx context.Context, n *TreatmentNote) error
	ListNotes(ctx context.Context, appointmentID uuid.UUID) ([]*TreatmentNote, error)
}
