package assistant

import (
	"sort"
	"time"

	"github.com/brightsmile/clinic/internal/platform/scheduling"
)

// Service describes one treatment the practice offers, with the front-desk
// quote price and booking duration.
type Service struct {
	Name            string  `json:"name"`
	Code            string  `json:"code"`
	DurationMinutes int     `json:"duration_minutes"`
	BasePrice       float64 `json:"base_price"`
	Description     string  `json:"description"`
}

// Info is the practice identity the assistant and /practice endpoints
// surface to callers.
type Info struct {
	Name            string               `json:"name"`
	Address         string               `json:"address"`
	Phone           string               `json:"phone"`
	AfterHoursPhone string               `json:"after_hours_phone"`
	Hours           scheduling.WeekHours `json:"-"`
	Services        []Service            `json:"services"`
	Insurance       []string             `json:"accepted_insurance"`
}

// DefaultServices is the practice's treatment menu.
func DefaultServices() []Service {
	return []Service{
		{"General Checkup", "CHECKUP", 60, 150, "Comprehensive dental examination and cleaning"},
		{"Teeth Cleaning", "CLEANING", 45, 120, "Professional teeth cleaning and scaling"},
		{"Cavity Filling", "FILLING", 60, 200, "Tooth cavity filling with composite material"},
		{"Root Canal", "ROOT_CANAL", 120, 800, "Root canal treatment"},
		{"Teeth Whitening", "WHITENING", 90, 300, "Professional teeth whitening treatment"},
		{"Dental Implants", "IMPLANT", 180, 2500, "Dental implant placement"},
		{"Emergency Care", "EMERGENCY", 30, 250, "Emergency dental care and consultation"},
	}
}

// AcceptedInsurance lists the carriers the practice bills directly.
func AcceptedInsurance() []string {
	return []string{
		"Delta Dental",
		"Aetna",
		"Cigna",
		"Blue Cross Blue Shield",
		"MetLife",
		"UnitedHealthcare",
		"Humana",
		"Anthem",
		"Kaiser Permanente",
	}
}

// HoursByDay renders the weekly hours as display strings keyed by weekday
// name, Monday first.
func (i Info) HoursByDay() []map[string]string {
	days := []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
		time.Friday, time.Saturday, time.Sunday,
	}
	out := make([]map[string]string, 0, len(days))
	for _, d := range days {
		out = append(out, map[string]string{
			"day":   d.String(),
			"hours": i.Hours.For(d).String(),
		})
	}
	return out
}

// ServiceNames returns the menu names sorted for stable display.
func (i Info) ServiceNames() []string {
	names := make([]string, 0, len(i.Services))
	for _, s := range i.Services {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}
