package dentist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	dentists Repository
}

func NewService(dentists Repository) *Service {
	return &Service{dentists: dentists}
}

func (s *Service) Create(ctx context.Context, d *Dentist) error {
	if strings.TrimSpace(d.FirstName) == "" {
		return fmt.Errorf("first_name is required")
	}
	if strings.TrimSpace(d.LastName) == "" {
		return fmt.Errorf("last_name is required")
	}
	if d.Email == "" || !strings.Contains(d.Email, "@") {
		return fmt.Errorf("a valid email is required")
	}
	if d.WorkingHours == nil {
		d.WorkingHours = DefaultWorkingHours()
	}
	d.Active = true
	return s.dentists.Create(ctx, d)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Dentist, error) {
	return s.dentists.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, d *Dentist) error {
	return s.dentists.Update(ctx, d)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.dentists.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Dentist, int, error) {
	return s.dentists.List(ctx, limit, offset)
}

func (s *Service) ListActive(ctx context.Context) ([]*Dentist, error) {
	return s.dentists.ListActive(ctx)
}

// AddVacation records a vacation day for the dentist.
func (s *Service) AddVacation(ctx context.Context, id uuid.UUID, date time.Time) (*Dentist, error) {
	d, err := s.dentists.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.OnVacation(date) {
		return d, nil
	}
	d.VacationDates = append(d.VacationDates, date)
	if err := s.dentists.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Availability describes whether a dentist can see patients on a date.
type Availability struct {
	Date      string `json:"date"`
	Available bool   `json:"available"`
	Hours     string `json:"hours"`
}

func (s *Service) AvailabilityOn(ctx context.Context, id uuid.UUID, date time.Time) (*Availability, error) {
	d, err := s.dentists.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	day := d.WorkingHours.Hours().For(date.Weekday())
	return &Availability{
		Date:      date.Format("2006-01-02"),
		Available: d.IsAvailableOn(date),
		Hours:     day.String(),
	}, nil
}
