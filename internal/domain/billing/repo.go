package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("invoice not found")
	ErrClaimNotFound = errors.New("insurance claim not found")
)

type Repository interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	DeleteInvoice(ctx context.Context, id uuid.UUID) error
	ListInvoices(ctx context.Context, limit, offset int) ([]*Invoice, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error)
	ListOverdue(ctx context.Context, asOf time.Time) ([]*Invoice, error)
	AllInvoices(ctx context.Context) ([]*Invoice, error)

	AddItem(ctx context.Context, item *LineItem) error
	AddPayment(ctx context.Context, p *Payment) error
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error)

	CreateClaim(ctx context.Context, cl *InsuranceClaim) error
	GetClaim(ctx context.Context, id uuid.UUID) (*InsuranceClaim, error)
	UpdateClaim(ctx context.Context, cl *InsuranceClaim) error
	ListClaims(ctx context.Context, invoiceID uuid.UUID) ([]*InsuranceClaim, error)
}
