package billing

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockRepo struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]*Invoice
	payments map[uuid.UUID][]*Payment
	claims   map[uuid.UUID]*InsuranceClaim
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		invoices: make(map[uuid.UUID]*Invoice),
		payments: make(map[uuid.UUID][]*Payment),
		claims:   make(map[uuid.UUID]*InsuranceClaim),
	}
}

func copyInvoice(inv *Invoice) *Invoice {
	out := *inv
	out.Items = append([]LineItem(nil), inv.Items...)
	return &out
}

func (m *mockRepo) CreateInvoice(_ context.Context, inv *Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv.ID = uuid.New()
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	for i := range inv.Items {
		inv.Items[i].ID = uuid.New()
		inv.Items[i].InvoiceID = inv.ID
		inv.Items[i].Position = i
	}
	m.invoices[inv.ID] = copyInvoice(inv)
	return nil
}

func (m *mockRepo) GetInvoice(_ context.Context, id uuid.UUID) (*Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyInvoice(inv), nil
}

func (m *mockRepo) UpdateInvoice(_ context.Context, inv *Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invoices[inv.ID]; !ok {
		return ErrNotFound
	}
	m.invoices[inv.ID] = copyInvoice(inv)
	return nil
}

func (m *mockRepo) DeleteInvoice(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invoices[id]; !ok {
		return ErrNotFound
	}
	delete(m.invoices, id)
	return nil
}

func (m *mockRepo) ListInvoices(_ context.Context, limit, offset int) ([]*Invoice, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*Invoice
	for _, inv := range m.invoices {
		all = append(all, copyInvoice(inv))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, len(all), nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Invoice
	for _, inv := range m.invoices {
		if inv.PatientID == patientID {
			out = append(out, copyInvoice(inv))
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) ListOverdue(_ context.Context, asOf time.Time) ([]*Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Invoice
	for _, inv := range m.invoices {
		if inv.IsOverdue(asOf) {
			out = append(out, copyInvoice(inv))
		}
	}
	return out, nil
}

func (m *mockRepo) AllInvoices(_ context.Context) ([]*Invoice, error) {
	items, _, err := m.ListInvoices(context.Background(), 0, 0)
	return items, err
}

func (m *mockRepo) AddItem(_ context.Context, item *LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return nil
}

func (m *mockRepo) AddPayment(_ context.Context, p *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	p.ReceivedAt = time.Now()
	m.payments[p.InvoiceID] = append(m.payments[p.InvoiceID], p)
	return nil
}

func (m *mockRepo) ListPayments(_ context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Payment(nil), m.payments[invoiceID]...), nil
}

func (m *mockRepo) CreateClaim(_ context.Context, cl *InsuranceClaim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cl.ID = uuid.New()
	cl.SubmittedAt = time.Now()
	cp := *cl
	m.claims[cl.ID] = &cp
	return nil
}

func (m *mockRepo) GetClaim(_ context.Context, id uuid.UUID) (*InsuranceClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cl, ok := m.claims[id]
	if !ok {
		return nil, ErrClaimNotFound
	}
	cp := *cl
	return &cp, nil
}

func (m *mockRepo) UpdateClaim(_ context.Context, cl *InsuranceClaim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.claims[cl.ID]; !ok {
		return ErrClaimNotFound
	}
	cp := *cl
	m.claims[cl.ID] = &cp
	return nil
}

func (m *mockRepo) ListClaims(_ context.Context, invoiceID uuid.UUID) ([]*InsuranceClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*InsuranceClaim
	for _, cl := range m.claims {
		if cl.InvoiceID == invoiceID {
			cp := *cl
			out = append(out, &cp)
		}
	}
	return out, nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, nil), repo
}

func newInvoice(t *testing.T, svc *Service) *Invoice {
	t.Helper()
	inv := &Invoice{
		PatientID: uuid.New(),
		Items: []LineItem{
			{Description: "Teeth Cleaning", Quantity: 1, UnitPrice: 120},
		},
	}
	if err := svc.CreateInvoice(context.Background(), inv); err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	return inv
}

func TestService_CreateInvoice_Defaults(t *testing.T) {
	svc, _ := newTestService()
	inv := newInvoice(t, svc)

	if inv.Status != StatusDraft {
		t.Errorf("status = %s, want %s", inv.Status, StatusDraft)
	}
	if inv.TaxRate != DefaultTaxRate {
		t.Errorf("tax rate = %v, want %v", inv.TaxRate, DefaultTaxRate)
	}
	if inv.TotalAmount != 129.6 {
		t.Errorf("total = %v, want 129.6", inv.TotalAmount)
	}
}

func TestService_UpdateInvoice(t *testing.T) {
	svc, _ := newTestService()
	inv := newInvoice(t, svc)

	rate := 0.0
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	updated, err := svc.UpdateInvoice(context.Background(), inv.ID, &rate, &due)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.TaxRate != 0 || updated.TotalAmount != 120 {
		t.Errorf("expected tax removed and total 120, got rate=%v total=%v", updated.TaxRate, updated.TotalAmount)
	}
	if updated.DueDate == nil || !updated.DueDate.Equal(due) {
		t.Errorf("due date = %v, want %v", updated.DueDate, due)
	}

	bad := 1.5
	if _, err := svc.UpdateInvoice(context.Background(), inv.ID, &bad, nil); err == nil {
		t.Error("expected error for tax rate over 1")
	}

	if _, err := svc.MarkSent(context.Background(), inv.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if _, err := svc.UpdateInvoice(context.Background(), inv.ID, &rate, nil); err == nil {
		t.Error("expected error editing a sent invoice")
	}
}

func TestService_CreateInvoice_Invalid(t *testing.T) {
	svc, _ := newTestService()
	tests := []struct {
		name string
		inv  Invoice
	}{
		{"missing patient", Invoice{Items: []LineItem{{Description: "x", Quantity: 1, UnitPrice: 1}}}},
		{"blank item description", Invoice{PatientID: uuid.New(), Items: []LineItem{{Quantity: 1, UnitPrice: 1}}}},
		{"zero quantity", Invoice{PatientID: uuid.New(), Items: []LineItem{{Description: "x", UnitPrice: 1}}}},
		{"negative price", Invoice{PatientID: uuid.New(), Items: []LineItem{{Description: "x", Quantity: 1, UnitPrice: -5}}}},
		{"bad status", Invoice{PatientID: uuid.New(), Status: "archived"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.CreateInvoice(context.Background(), &tt.inv); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestService_AddItem_RecalculatesTotals(t *testing.T) {
	svc, _ := newTestService()
	inv := newInvoice(t, svc)

	updated, err := svc.AddItem(context.Background(), inv.ID, &LineItem{
		Description: "Dental Filling", Quantity: 2, UnitPrice: 150,
	})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if len(updated.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(updated.Items))
	}
	// 120 + 300 = 420 subtotal, 33.60 tax.
	if updated.TotalAmount != 453.6 {
		t.Errorf("total = %v, want 453.6", updated.TotalAmount)
	}
}

func TestService_RecordPayment_PartialThenFull(t *testing.T) {
	svc, repo := newTestService()
	inv := newInvoice(t, svc)

	updated, err := svc.RecordPayment(context.Background(), inv.ID, &Payment{Amount: 50, Method: MethodCard})
	if err != nil {
		t.Fatalf("partial payment: %v", err)
	}
	if updated.Status != StatusPartiallyPaid {
		t.Errorf("status = %s, want %s", updated.Status, StatusPartiallyPaid)
	}

	updated, err = svc.RecordPayment(context.Background(), inv.ID, &Payment{Amount: 79.6, Method: MethodCash})
	if err != nil {
		t.Fatalf("final payment: %v", err)
	}
	if updated.Status != StatusPaid {
		t.Errorf("status = %s, want %s", updated.Status, StatusPaid)
	}

	payments, _ := repo.ListPayments(context.Background(), inv.ID)
	if len(payments) != 2 {
		t.Errorf("expected 2 payment records, got %d", len(payments))
	}
}

func TestService_RecordPayment_Rejections(t *testing.T) {
	svc, _ := newTestService()
	inv := newInvoice(t, svc)

	if _, err := svc.RecordPayment(context.Background(), inv.ID, &Payment{Amount: -5}); err == nil {
		t.Error("expected error for negative amount")
	}
	if _, err := svc.RecordPayment(context.Background(), inv.ID, &Payment{Amount: 10, Method: "barter"}); err == nil {
		t.Error("expected error for unknown method")
	}
	if _, err := svc.RecordPayment(context.Background(), inv.ID, &Payment{Amount: 9999}); err == nil {
		t.Error("expected error for overpayment")
	}
}

func TestService_MarkSent_SetsDueDate(t *testing.T) {
	svc, _ := newTestService()
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	inv := newInvoice(t, svc)

	sent, err := svc.MarkSent(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if sent.Status != StatusSent {
		t.Errorf("status = %s, want %s", sent.Status, StatusSent)
	}
	if sent.DueDate == nil || !sent.DueDate.Equal(fixed.AddDate(0, 0, 30)) {
		t.Errorf("due date = %v, want %v", sent.DueDate, fixed.AddDate(0, 0, 30))
	}

	if _, err := svc.MarkSent(context.Background(), inv.ID); err == nil {
		t.Error("expected error sending an already sent invoice")
	}
}

func TestService_CancelInvoice(t *testing.T) {
	svc, _ := newTestService()
	inv := newInvoice(t, svc)

	cancelled, err := svc.CancelInvoice(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("status = %s, want %s", cancelled.Status, StatusCancelled)
	}

	paid := newInvoice(t, svc)
	if _, err := svc.RecordPayment(context.Background(), paid.ID, &Payment{Amount: 20}); err != nil {
		t.Fatalf("payment: %v", err)
	}
	if _, err := svc.CancelInvoice(context.Background(), paid.ID); err == nil {
		t.Error("expected error cancelling an invoice with payments")
	}
}

func TestService_ClaimLifecycle(t *testing.T) {
	svc, _ := newTestService()
	inv := newInvoice(t, svc)

	cl := &InsuranceClaim{
		InvoiceID:     inv.ID,
		Provider:      "Delta Dental",
		PolicyNumber:  "DD-1234",
		ClaimedAmount: 100,
	}
	if err := svc.SubmitClaim(context.Background(), cl); err != nil {
		t.Fatalf("submit claim: %v", err)
	}
	if cl.Status != ClaimSubmitted {
		t.Errorf("status = %s, want %s", cl.Status, ClaimSubmitted)
	}

	resolved, err := svc.ResolveClaim(context.Background(), cl.ID, ClaimPaid, 100)
	if err != nil {
		t.Fatalf("resolve claim: %v", err)
	}
	if resolved.Status != ClaimPaid || resolved.ResolvedAt == nil {
		t.Errorf("claim not resolved: %+v", resolved)
	}

	// The carrier payment lands on the invoice.
	got, err := svc.GetInvoice(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if got.PaidAmount != 100 {
		t.Errorf("paid amount = %v, want 100", got.PaidAmount)
	}
	if got.Status != StatusPartiallyPaid {
		t.Errorf("status = %s, want %s", got.Status, StatusPartiallyPaid)
	}

	if _, err := svc.ResolveClaim(context.Background(), cl.ID, ClaimDenied, 0); err == nil {
		t.Error("expected error resolving an already resolved claim")
	}
}

func TestService_SubmitClaim_Rejections(t *testing.T) {
	svc, _ := newTestService()
	inv := newInvoice(t, svc)

	tests := []struct {
		name string
		cl   InsuranceClaim
	}{
		{"missing provider", InsuranceClaim{InvoiceID: inv.ID, ClaimedAmount: 50}},
		{"zero amount", InsuranceClaim{InvoiceID: inv.ID, Provider: "Aetna"}},
		{"exceeds total", InsuranceClaim{InvoiceID: inv.ID, Provider: "Aetna", ClaimedAmount: 9999}},
		{"unknown invoice", InsuranceClaim{InvoiceID: uuid.New(), Provider: "Aetna", ClaimedAmount: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.SubmitClaim(context.Background(), &tt.cl); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestService_ListOverdue(t *testing.T) {
	svc, _ := newTestService()
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	inv := newInvoice(t, svc)
	if _, err := svc.MarkSent(context.Background(), inv.ID); err != nil {
		t.Fatalf("send: %v", err)
	}

	// Not overdue yet.
	overdue, err := svc.ListOverdue(context.Background())
	if err != nil {
		t.Fatalf("list overdue: %v", err)
	}
	if len(overdue) != 0 {
		t.Errorf("expected no overdue invoices, got %d", len(overdue))
	}

	// Jump past the due date.
	svc.now = func() time.Time { return fixed.AddDate(0, 0, 31) }
	overdue, err = svc.ListOverdue(context.Background())
	if err != nil {
		t.Fatalf("list overdue: %v", err)
	}
	if len(overdue) != 1 {
		t.Errorf("expected 1 overdue invoice, got %d", len(overdue))
	}
}
