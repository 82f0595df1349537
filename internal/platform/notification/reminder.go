package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/brightsmile/clinic/internal/domain/appointment"
	"github.com/brightsmile/clinic/internal/domain/billing"
	"github.com/brightsmile/clinic/internal/domain/dentist"
	"github.com/brightsmile/clinic/internal/domain/patient"
)

// AppointmentSource lists the visits that need reminding.
type AppointmentSource interface {
	Upcoming(ctx context.Context, days int) ([]*appointment.Appointment, error)
}

// InvoiceSource lists the invoices past their due date.
type InvoiceSource interface {
	ListOverdue(ctx context.Context) ([]*billing.Invoice, error)
}

type PatientDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type DentistDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*dentist.Dentist, error)
}

// ReminderService renders and dispatches appointment and payment reminders.
// A patient with an email address gets email; otherwise SMS to their phone.
type ReminderService struct {
	manager      *Manager
	appts        AppointmentSource
	invoices     InvoiceSource
	patients     PatientDirectory
	dentists     DentistDirectory
	practiceName string
	log          zerolog.Logger
}

func NewReminderService(manager *Manager, appts AppointmentSource, invoices InvoiceSource,
	patients PatientDirectory, dentists DentistDirectory, practiceName string, log zerolog.Logger) *ReminderService {
	return &ReminderService{
		manager:      manager,
		appts:        appts,
		invoices:     invoices,
		patients:     patients,
		dentists:     dentists,
		practiceName: practiceName,
		log:          log,
	}
}

// SendAppointmentReminders reminds every patient with a visit in the next
// given number of days. Failures are logged and skipped so one bad record
// does not block the batch. Returns the number of reminders sent.
func (s *ReminderService) SendAppointmentReminders(ctx context.Context, days int) (int, error) {
	upcoming, err := s.appts.Upcoming(ctx, days)
	if err != nil {
		return 0, fmt.Errorf("listing upcoming appointments: %w", err)
	}

	sent := 0
	for _, a := range upcoming {
		p, err := s.patients.GetByID(ctx, a.PatientID)
		if err != nil {
			s.log.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("reminder skipped, patient lookup failed")
			continue
		}

		provider := s.practiceName
		if a.DentistID != nil {
			if d, err := s.dentists.GetByID(ctx, *a.DentistID); err == nil {
				provider = d.FullName()
			}
		}

		data := map[string]string{
			"patient_name":     p.FullName(),
			"appointment_type": a.Type,
			"date":             a.ScheduledAt.Format("Monday, January 2"),
			"time":             a.ScheduledAt.Format("3:04 PM"),
			"provider":         provider,
		}

		templateID, recipient := "appointment-reminder", p.Email
		if recipient == "" {
			templateID, recipient = "appointment-reminder-sms", p.Phone
		}
		if recipient == "" {
			s.log.Warn().Str("patient_id", p.ID.String()).Msg("reminder skipped, no contact details")
			continue
		}

		if _, err := s.manager.SendFromTemplate(ctx, templateID, data, recipient); err != nil {
			s.log.Warn().Err(err).Str("patient_id", p.ID.String()).Msg("reminder delivery failed")
			continue
		}
		sent++
	}

	s.log.Info().Int("sent", sent).Int("upcoming", len(upcoming)).Msg("appointment reminders dispatched")
	return sent, nil
}

// SendPaymentReminders notifies patients holding overdue invoices. Returns
// the number of reminders sent.
func (s *ReminderService) SendPaymentReminders(ctx context.Context) (int, error) {
	overdue, err := s.invoices.ListOverdue(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing overdue invoices: %w", err)
	}

	sent := 0
	for _, inv := range overdue {
		p, err := s.patients.GetByID(ctx, inv.PatientID)
		if err != nil {
			s.log.Warn().Err(err).Str("invoice_id", inv.ID.String()).Msg("payment reminder skipped, patient lookup failed")
			continue
		}
		if p.Email == "" {
			s.log.Warn().Str("patient_id", p.ID.String()).Msg("payment reminder skipped, no email")
			continue
		}

		dueDate := ""
		if inv.DueDate != nil {
			dueDate = inv.DueDate.Format("January 2, 2006")
		}
		data := map[string]string{
			"patient_name":  p.FullName(),
			"practice_name": s.practiceName,
			"invoice_id":    inv.ID.String(),
			"balance":       fmt.Sprintf("%.2f", inv.BalanceDue()),
			"due_date":      dueDate,
		}

		if _, err := s.manager.SendFromTemplate(ctx, "payment-due", data, p.Email); err != nil {
			s.log.Warn().Err(err).Str("invoice_id", inv.ID.String()).Msg("payment reminder delivery failed")
			continue
		}
		sent++
	}

	s.log.Info().Int("sent", sent).Int("overdue", len(overdue)).Msg("payment reminders dispatched")
	return sent, nil
}
