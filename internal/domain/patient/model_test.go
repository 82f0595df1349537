package patient

import (
	"testing"
	"time"
)

func TestPatient_Age(t *testing.T) {
	ref := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		dob  *time.Time
		want int
		ok   bool
	}{
		{"nil dob", nil, 0, false},
		{"birthday passed", datePtr(1990, 3, 1), 36, true},
		{"birthday today", datePtr(1990, 6, 15), 36, true},
		{"birthday upcoming", datePtr(1990, 12, 31), 35, true},
		{"infant", datePtr(2026, 1, 10), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Patient{DateOfBirth: tt.dob}
			got, ok := p.Age(ref)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Age() = %d, %v; want %d, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestPatient_FullName(t *testing.T) {
	p := &Patient{FirstName: "Jane", LastName: "Doe"}
	if got := p.FullName(); got != "Jane Doe" {
		t.Errorf("FullName() = %q", got)
	}
}

func TestPatient_HasInsurance(t *testing.T) {
	p := &Patient{}
	if p.HasInsurance() {
		t.Error("expected no insurance")
	}
	p.InsuranceProvider = "Delta Dental"
	if !p.HasInsurance() {
		t.Error("expected insurance")
	}
}

func datePtr(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}
