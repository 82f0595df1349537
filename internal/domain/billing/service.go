package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TxRunner executes fn atomically. Production wiring passes db.WithTx bound
// to the pool; tests pass a plain call-through.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type Service struct {
	repo Repository
	tx   TxRunner
	now  func() time.Time
}

func NewService(repo Repository, tx TxRunner) *Service {
	if tx == nil {
		tx = passthroughTx
	}
	return &Service{repo: repo, tx: tx, now: time.Now}
}

func validateItem(item *LineItem) error {
	if strings.TrimSpace(item.Description) == "" {
		return fmt.Errorf("item description is required")
	}
	if item.Quantity <= 0 {
		return fmt.Errorf("item quantity must be positive")
	}
	if item.UnitPrice < 0 {
		return fmt.Errorf("item unit price cannot be negative")
	}
	return nil
}

// CreateInvoice validates and persists a new invoice with its line items.
// Totals are always recomputed server side.
func (s *Service) CreateInvoice(ctx context.Context, inv *Invoice) error {
	if inv.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	for i := range inv.Items {
		if err := validateItem(&inv.Items[i]); err != nil {
			return err
		}
	}
	if inv.TaxRate == 0 {
		inv.TaxRate = DefaultTaxRate
	}
	if inv.TaxRate < 0 || inv.TaxRate >= 1 {
		return fmt.Errorf("tax rate must be between 0 and 1")
	}
	if inv.Status == "" {
		inv.Status = StatusDraft
	}
	if !validInvoiceStatuses[inv.Status] {
		return fmt.Errorf("invalid invoice status: %s", inv.Status)
	}
	inv.PaidAmount = 0
	inv.Recalculate()
	return s.repo.CreateInvoice(ctx, inv)
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// UpdateInvoice adjusts the tax rate and due date on a draft invoice and
// recomputes the totals. Anything past draft is immutable except through
// the payment and claim flows.
func (s *Service) UpdateInvoice(ctx context.Context, id uuid.UUID, taxRate *float64, dueDate *time.Time) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusDraft {
		return nil, fmt.Errorf("only draft invoices can be edited, invoice is %s", inv.Status)
	}
	if taxRate != nil {
		if *taxRate < 0 || *taxRate >= 1 {
			return nil, fmt.Errorf("tax rate must be between 0 and 1")
		}
		inv.TaxRate = *taxRate
	}
	if dueDate != nil {
		inv.DueDate = dueDate
	}
	inv.Recalculate()
	if err := s.repo.UpdateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) DeleteInvoice(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteInvoice(ctx, id)
}

func (s *Service) ListInvoices(ctx context.Context, limit, offset int) ([]*Invoice, int, error) {
	return s.repo.ListInvoices(ctx, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListOverdue(ctx context.Context) ([]*Invoice, error) {
	return s.repo.ListOverdue(ctx, s.now())
}

// AddItem appends a line item and rewrites the invoice totals in one
// transaction.
func (s *Service) AddItem(ctx context.Context, invoiceID uuid.UUID, item *LineItem) (*Invoice, error) {
	if err := validateItem(item); err != nil {
		return nil, err
	}
	var inv *Invoice
	err := s.tx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.repo.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status == StatusPaid || inv.Status == StatusCancelled {
			return fmt.Errorf("cannot add items to a %s invoice", inv.Status)
		}
		item.InvoiceID = inv.ID
		item.Position = len(inv.Items)
		inv.Items = append(inv.Items, *item)
		inv.Recalculate()
		if err := s.repo.AddItem(ctx, item); err != nil {
			return err
		}
		return s.repo.UpdateInvoice(ctx, inv)
	})
	return inv, err
}

// MarkSent moves a draft invoice to sent and stamps the due date if the
// caller did not set one. Net 30 by default.
func (s *Service) MarkSent(ctx context.Context, invoiceID uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusDraft {
		return nil, fmt.Errorf("only draft invoices can be sent, invoice is %s", inv.Status)
	}
	inv.Status = StatusSent
	if inv.DueDate == nil {
		due := s.now().AddDate(0, 0, 30)
		inv.DueDate = &due
	}
	if err := s.repo.UpdateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// RecordPayment stores the payment and rolls the paid total forward,
// atomically with the invoice status change.
func (s *Service) RecordPayment(ctx context.Context, invoiceID uuid.UUID, p *Payment) (*Invoice, error) {
	if p.Amount <= 0 {
		return nil, fmt.Errorf("payment amount must be positive")
	}
	if p.Method == "" {
		p.Method = MethodCash
	}
	if !validPaymentMethods[p.Method] {
		return nil, fmt.Errorf("invalid payment method: %s", p.Method)
	}
	var inv *Invoice
	err := s.tx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.repo.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status == StatusCancelled {
			return fmt.Errorf("cannot pay a cancelled invoice")
		}
		if p.Amount > inv.BalanceDue()+0.005 {
			return fmt.Errorf("payment of %.2f exceeds balance due of %.2f", p.Amount, inv.BalanceDue())
		}
		p.InvoiceID = inv.ID
		if err := s.repo.AddPayment(ctx, p); err != nil {
			return err
		}
		inv.ApplyPayment(p.Amount)
		return s.repo.UpdateInvoice(ctx, inv)
	})
	return inv, err
}

func (s *Service) Payments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	return s.repo.ListPayments(ctx, invoiceID)
}

// CancelInvoice voids an unpaid invoice. Invoices with recorded payments
// must be settled instead.
func (s *Service) CancelInvoice(ctx context.Context, invoiceID uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.PaidAmount > 0 {
		return nil, fmt.Errorf("cannot cancel an invoice with recorded payments")
	}
	inv.Status = StatusCancelled
	if err := s.repo.UpdateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// SubmitClaim files an insurance claim against an invoice.
func (s *Service) SubmitClaim(ctx context.Context, cl *InsuranceClaim) error {
	if strings.TrimSpace(cl.Provider) == "" {
		return fmt.Errorf("provider is required")
	}
	if cl.ClaimedAmount <= 0 {
		return fmt.Errorf("claimed amount must be positive")
	}
	inv, err := s.repo.GetInvoice(ctx, cl.InvoiceID)
	if err != nil {
		return err
	}
	if cl.ClaimedAmount > inv.TotalAmount+0.005 {
		return fmt.Errorf("claimed amount of %.2f exceeds invoice total of %.2f", cl.ClaimedAmount, inv.TotalAmount)
	}
	cl.Status = ClaimSubmitted
	return s.repo.CreateClaim(ctx, cl)
}

// ResolveClaim records the carrier's decision. A paid resolution also
// records an insurance payment against the invoice.
func (s *Service) ResolveClaim(ctx context.Context, claimID uuid.UUID, status string, approvedAmount float64) (*InsuranceClaim, error) {
	if status != ClaimApproved && status != ClaimDenied && status != ClaimPaid {
		return nil, fmt.Errorf("invalid claim resolution: %s", status)
	}
	var cl *InsuranceClaim
	err := s.tx(ctx, func(ctx context.Context) error {
		var err error
		cl, err = s.repo.GetClaim(ctx, claimID)
		if err != nil {
			return err
		}
		if cl.Status != ClaimSubmitted && cl.Status != ClaimApproved {
			return fmt.Errorf("claim already resolved as %s", cl.Status)
		}
		cl.Status = status
		now := s.now()
		cl.ResolvedAt = &now
		if status == ClaimApproved || status == ClaimPaid {
			if approvedAmount <= 0 {
				return fmt.Errorf("approved amount must be positive")
			}
			cl.ApprovedAmount = &approvedAmount
		}
		if err := s.repo.UpdateClaim(ctx, cl); err != nil {
			return err
		}
		if status != ClaimPaid {
			return nil
		}
		inv, err := s.repo.GetInvoice(ctx, cl.InvoiceID)
		if err != nil {
			return err
		}
		p := &Payment{
			InvoiceID: inv.ID,
			Amount:    approvedAmount,
			Method:    MethodInsurance,
			Reference: "claim " + cl.ID.String(),
		}
		if err := s.repo.AddPayment(ctx, p); err != nil {
			return err
		}
		inv.ApplyPayment(p.Amount)
		return s.repo.UpdateInvoice(ctx, inv)
	})
	return cl, err
}

func (s *Service) Claims(ctx context.Context, invoiceID uuid.UUID) ([]*InsuranceClaim, error) {
	return s.repo.ListClaims(ctx, invoiceID)
}
