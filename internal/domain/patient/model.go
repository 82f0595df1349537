package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient is a person in the practice's records. DateOfBirth is optional;
// a nil value means unknown and keeps the patient out of age-based stats.
type Patient struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	FirstName             string     `db:"first_name" json:"first_name"`
	LastName              string     `db:"last_name" json:"last_name"`
	Email                 string     `db:"email" json:"email"`
	Phone                 string     `db:"phone" json:"phone"`
	DateOfBirth           *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Address               string     `db:"address" json:"address"`
	InsuranceProvider     string     `db:"insurance_provider" json:"insurance_provider"`
	InsuranceID           string     `db:"insurance_id" json:"insurance_id"`
	MedicalHistory        []string   `db:"medical_history" json:"medical_history"`
	Allergies             []string   `db:"allergies" json:"allergies"`
	EmergencyContactName  string     `db:"emergency_contact_name" json:"emergency_contact_name"`
	EmergencyContactPhone string     `db:"emergency_contact_phone" json:"emergency_contact_phone"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p *Patient) HasInsurance() bool {
	return p.InsuranceProvider != ""
}

// Age returns the patient's age in whole years as of the given date. The
// second return is false when the date of birth is unknown.
func (p *Patient) Age(at time.Time) (int, bool) {
	if p.DateOfBirth == nil {
		return 0, false
	}
	dob := *p.DateOfBirth
	years := at.Year() - dob.Year()
	anniversary := time.Date(at.Year(), dob.Month(), dob.Day(), 0, 0, 0, 0, at.Location())
	if at.Before(anniversary) {
		years--
	}
	if years < 0 {
		years = 0
	}
	return years, true
}
