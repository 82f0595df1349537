// Package stats aggregates practice metrics from patients, appointments
// and invoices. The aggregators are pure functions over loaded records so
// they stay independent of the storage layer and easy to test.
package stats

import (
	"math"
	"time"

	"github.com/brightsmile/clinic/internal/domain/appointment"
	"github.com/brightsmile/clinic/internal/domain/billing"
	"github.com/brightsmile/clinic/internal/domain/patient"
)

// ageBuckets defines the reporting cohorts. Patients without a recorded
// date of birth are excluded from the distribution.
var ageBuckets = []struct {
	label string
	min   int
	max   int
}{
	{"0-17", 0, 17},
	{"18-30", 18, 30},
	{"31-50", 31, 50},
	{"51-70", 51, 70},
	{"70+", 71, math.MaxInt32},
}

// upcomingWindowDays is the horizon for the upcoming-visit count, matching
// the default the appointment listings use.
const upcomingWindowDays = 7

type AppointmentReport struct {
	Total            int            `json:"total"`
	ByStatus         map[string]int `json:"by_status"`
	ByType           map[string]int `json:"by_type"`
	Upcoming         int            `json:"upcoming"`
	Overdue          int            `json:"overdue"`
	CompletionRate   float64        `json:"completion_rate"`
	CancellationRate float64        `json:"cancellation_rate"`
	NoShowRate       float64        `json:"no_show_rate"`
}

type BillingReport struct {
	TotalBilled      float64            `json:"total_billed"`
	TotalCollected   float64            `json:"total_collected"`
	Outstanding      float64            `json:"outstanding"`
	CollectionRate   float64            `json:"collection_rate"`
	InvoicesByStatus map[string]int     `json:"invoices_by_status"`
	RevenueByService map[string]float64 `json:"revenue_by_service"`
}

type PatientReport struct {
	Total           int            `json:"total"`
	WithInsurance   int            `json:"with_insurance"`
	InsuredPercent  float64        `json:"insured_percent"`
	ByProvider      map[string]int `json:"by_provider"`
	AgeDistribution map[string]int `json:"age_distribution"`
}

type Overview struct {
	GeneratedAt  time.Time         `json:"generated_at"`
	Appointments AppointmentReport `json:"appointments"`
	Billing      BillingReport     `json:"billing"`
	Patients     PatientReport     `json:"patients"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// rate is a percentage, 0 when the denominator is empty.
func rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

// Appointments summarizes visits scheduled within [from, to). Zero bounds
// disable the corresponding cut. Cancelled and no-show visits count toward
// their rates; the denominators are all visits in the window. Upcoming and
// overdue counts are taken relative to asOf: both look only at visits still
// marked scheduled or confirmed.
func Appointments(appts []*appointment.Appointment, from, to, asOf time.Time) AppointmentReport {
	report := AppointmentReport{
		ByStatus: map[string]int{},
		ByType:   map[string]int{},
	}
	horizon := asOf.AddDate(0, 0, upcomingWindowDays)
	for _, a := range appts {
		if !from.IsZero() && a.ScheduledAt.Before(from) {
			continue
		}
		if !to.IsZero() && !a.ScheduledAt.Before(to) {
			continue
		}
		report.Total++
		report.ByStatus[a.Status]++
		report.ByType[a.Type]++

		if a.Status == appointment.StatusScheduled || a.Status == appointment.StatusConfirmed {
			switch {
			case a.EndTime().Before(asOf):
				report.Overdue++
			case !a.ScheduledAt.Before(asOf) && a.ScheduledAt.Before(horizon):
				report.Upcoming++
			}
		}
	}
	report.CompletionRate = rate(report.ByStatus[appointment.StatusCompleted], report.Total)
	report.CancellationRate = rate(report.ByStatus[appointment.StatusCancelled], report.Total)
	report.NoShowRate = rate(report.ByStatus[appointment.StatusNoShow], report.Total)
	return report
}

// Billing totals the invoice ledger. Cancelled invoices are excluded from
// the money figures but still counted by status. A practice with nothing
// billed reports a collection rate of zero, not a division error.
func Billing(invoices []*billing.Invoice) BillingReport {
	report := BillingReport{
		InvoicesByStatus: map[string]int{},
		RevenueByService: map[string]float64{},
	}
	for _, inv := range invoices {
		report.InvoicesByStatus[inv.Status]++
		if inv.Status == billing.StatusCancelled {
			continue
		}
		report.TotalBilled += inv.TotalAmount
		report.TotalCollected += inv.PaidAmount
		for _, item := range inv.Items {
			report.RevenueByService[item.Description] += item.Amount
		}
	}
	report.TotalBilled = round2(report.TotalBilled)
	report.TotalCollected = round2(report.TotalCollected)
	report.Outstanding = round2(report.TotalBilled - report.TotalCollected)
	if report.TotalBilled > 0 {
		report.CollectionRate = round2(report.TotalCollected / report.TotalBilled * 100)
	}
	for k, v := range report.RevenueByService {
		report.RevenueByService[k] = round2(v)
	}
	return report
}

// Patients profiles the roster as of the given reference time.
func Patients(patients []*patient.Patient, asOf time.Time) PatientReport {
	report := PatientReport{
		ByProvider:      map[string]int{},
		AgeDistribution: map[string]int{},
	}
	for _, b := range ageBuckets {
		report.AgeDistribution[b.label] = 0
	}
	for _, p := range patients {
		report.Total++
		if p.HasInsurance() {
			report.WithInsurance++
			report.ByProvider[p.InsuranceProvider]++
		}
		age, ok := p.Age(asOf)
		if !ok {
			continue
		}
		for _, b := range ageBuckets {
			if age >= b.min && age <= b.max {
				report.AgeDistribution[b.label]++
				break
			}
		}
	}
	report.InsuredPercent = rate(report.WithInsurance, report.Total)
	return report
}
