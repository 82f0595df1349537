package billing

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Invoice statuses. Partial payments get their own status instead of
// overloading "sent".
const (
	StatusDraft         = "draft"
	StatusSent          = "sent"
	StatusPartiallyPaid = "partially_paid"
	StatusPaid          = "paid"
	StatusOverdue       = "overdue"
	StatusCancelled     = "cancelled"
)

var validInvoiceStatuses = map[string]bool{
	StatusDraft: true, StatusSent: true, StatusPartiallyPaid: true,
	StatusPaid: true, StatusOverdue: true, StatusCancelled: true,
}

// DefaultTaxRate is applied to invoices created without an explicit rate.
const DefaultTaxRate = 0.08

// Payment methods accepted at the front desk.
const (
	MethodCash      = "cash"
	MethodCard      = "card"
	MethodCheck     = "check"
	MethodInsurance = "insurance"
)

var validPaymentMethods = map[string]bool{
	MethodCash: true, MethodCard: true, MethodCheck: true, MethodInsurance: true,
}

// Claim statuses follow the carrier lifecycle.
const (
	ClaimSubmitted = "submitted"
	ClaimApproved  = "approved"
	ClaimDenied    = "denied"
	ClaimPaid      = "paid"
)

var validClaimStatuses = map[string]bool{
	ClaimSubmitted: true, ClaimApproved: true, ClaimDenied: true, ClaimPaid: true,
}

// LineItem is one billable service on an invoice. Amount is always
// Quantity * UnitPrice.
type LineItem struct {
	ID          uuid.UUID `db:"id" json:"id"`
	InvoiceID   uuid.UUID `db:"invoice_id" json:"invoice_id"`
	Description string    `db:"description" json:"description"`
	Quantity    int       `db:"quantity" json:"quantity"`
	UnitPrice   float64   `db:"unit_price" json:"unit_price"`
	Amount      float64   `db:"amount" json:"amount"`
	Position    int       `db:"position" json:"position"`
}

type Invoice struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	Items         []LineItem `json:"items"`
	TaxRate       float64    `db:"tax_rate" json:"tax_rate"`
	Subtotal      float64    `db:"subtotal" json:"subtotal"`
	TaxAmount     float64    `db:"tax_amount" json:"tax_amount"`
	TotalAmount   float64    `db:"total_amount" json:"total_amount"`
	PaidAmount    float64    `db:"paid_amount" json:"paid_amount"`
	Status        string     `db:"status" json:"status"`
	DueDate       *time.Time `db:"due_date" json:"due_date,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Recalculate rebuilds the money fields from the line items. Call after
// every item mutation.
func (inv *Invoice) Recalculate() {
	subtotal := 0.0
	for i := range inv.Items {
		inv.Items[i].Amount = round2(float64(inv.Items[i].Quantity) * inv.Items[i].UnitPrice)
		subtotal += inv.Items[i].Amount
	}
	inv.Subtotal = round2(subtotal)
	inv.TaxAmount = round2(inv.Subtotal * inv.TaxRate)
	inv.TotalAmount = round2(inv.Subtotal + inv.TaxAmount)
}

// ApplyPayment adds the amount to the paid total and moves the status to
// paid or partially_paid. Half a cent of slack absorbs float rounding.
func (inv *Invoice) ApplyPayment(amount float64) {
	inv.PaidAmount = round2(inv.PaidAmount + amount)
	if inv.PaidAmount >= inv.TotalAmount-0.005 {
		inv.Status = StatusPaid
	} else {
		inv.Status = StatusPartiallyPaid
	}
}

// BalanceDue is the outstanding amount, never negative.
func (inv *Invoice) BalanceDue() float64 {
	b := round2(inv.TotalAmount - inv.PaidAmount)
	if b < 0 {
		return 0
	}
	return b
}

// IsOverdue reports whether the invoice is unpaid past its due date.
func (inv *Invoice) IsOverdue(asOf time.Time) bool {
	if inv.DueDate == nil || inv.Status == StatusPaid || inv.Status == StatusCancelled {
		return false
	}
	return inv.DueDate.Before(asOf)
}

type Payment struct {
	ID         uuid.UUID `db:"id" json:"id"`
	InvoiceID  uuid.UUID `db:"invoice_id" json:"invoice_id"`
	Amount     float64   `db:"amount" json:"amount"`
	Method     string    `db:"method" json:"method"`
	Reference  string    `db:"reference" json:"reference"`
	ReceivedAt time.Time `db:"received_at" json:"received_at"`
}

type InsuranceClaim struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	InvoiceID      uuid.UUID  `db:"invoice_id" json:"invoice_id"`
	Provider       string     `db:"provider" json:"provider"`
	PolicyNumber   string     `db:"policy_number" json:"policy_number"`
	ClaimedAmount  float64    `db:"claimed_amount" json:"claimed_amount"`
	ApprovedAmount *float64   `db:"approved_amount" json:"approved_amount,omitempty"`
	Status         string     `db:"status" json:"status"`
	SubmittedAt    time.Time  `db:"submitted_at" json:"submitted_at"`
	ResolvedAt     *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}
