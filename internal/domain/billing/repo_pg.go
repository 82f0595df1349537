package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightsmile/clinic/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const invoiceCols = `id, patient_id, appointment_id, tax_rate, subtotal, tax_amount,
	total_amount, paid_amount, status, due_date, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.PatientID, &inv.AppointmentID, &inv.TaxRate,
		&inv.Subtotal, &inv.TaxAmount, &inv.TotalAmount, &inv.PaidAmount,
		&inv.Status, &inv.DueDate, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &inv, err
}

func (r *repoPG) CreateInvoice(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	if err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO invoices (id, patient_id, appointment_id, tax_rate, subtotal,
			tax_amount, total_amount, paid_amount, status, due_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		inv.ID, inv.PatientID, inv.AppointmentID, inv.TaxRate, inv.Subtotal,
		inv.TaxAmount, inv.TotalAmount, inv.PaidAmount, inv.Status, inv.DueDate).
		Scan(&inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return err
	}
	for i := range inv.Items {
		inv.Items[i].InvoiceID = inv.ID
		inv.Items[i].Position = i
		if err := r.AddItem(ctx, &inv.Items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invoiceCols+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *repoPG) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoices SET tax_rate=$2, subtotal=$3, tax_amount=$4, total_amount=$5,
			paid_amount=$6, status=$7, due_date=$8, updated_at=NOW()
		WHERE id = $1`,
		inv.ID, inv.TaxRate, inv.Subtotal, inv.TaxAmount, inv.TotalAmount,
		inv.PaidAmount, inv.Status, inv.DueDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) DeleteInvoice(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListInvoices(ctx context.Context, limit, offset int) ([]*Invoice, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM invoices`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+invoiceCols+` FROM invoices ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collectInvoices(ctx, rows)
	return items, total, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+invoiceCols+` FROM invoices WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collectInvoices(ctx, rows)
	return items, total, err
}

func (r *repoPG) ListOverdue(ctx context.Context, asOf time.Time) ([]*Invoice, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+invoiceCols+` FROM invoices
		WHERE due_date IS NOT NULL AND due_date < $1
		  AND status NOT IN ('paid', 'cancelled')
		ORDER BY due_date`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectInvoices(ctx, rows)
}

func (r *repoPG) AllInvoices(ctx context.Context) ([]*Invoice, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+invoiceCols+` FROM invoices`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectInvoices(ctx, rows)
}

func (r *repoPG) loadItems(ctx context.Context, inv *Invoice) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, invoice_id, description, quantity, unit_price, amount, position
		FROM invoice_items WHERE invoice_id = $1 ORDER BY position`, inv.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	inv.Items = []LineItem{}
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Description, &it.Quantity,
			&it.UnitPrice, &it.Amount, &it.Position); err != nil {
			return err
		}
		inv.Items = append(inv.Items, it)
	}
	return rows.Err()
}

func (r *repoPG) AddItem(ctx context.Context, item *LineItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO invoice_items (id, invoice_id, description, quantity, unit_price, amount, position)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		item.ID, item.InvoiceID, item.Description, item.Quantity, item.UnitPrice, item.Amount, item.Position)
	return err
}

func (r *repoPG) AddPayment(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO payments (id, invoice_id, amount, method, reference)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING received_at`,
		p.ID, p.InvoiceID, p.Amount, p.Method, p.Reference).Scan(&p.ReceivedAt)
}

func (r *repoPG) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, invoice_id, amount, method, reference, received_at
		FROM payments WHERE invoice_id = $1 ORDER BY received_at`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []*Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.Reference, &p.ReceivedAt); err != nil {
			return nil, err
		}
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}

const claimCols = `id, invoice_id, provider, policy_number, claimed_amount,
	approved_amount, status, submitted_at, resolved_at`

func scanClaim(row pgx.Row) (*InsuranceClaim, error) {
	var cl InsuranceClaim
	err := row.Scan(&cl.ID, &cl.InvoiceID, &cl.Provider, &cl.PolicyNumber,
		&cl.ClaimedAmount, &cl.ApprovedAmount, &cl.Status, &cl.SubmittedAt, &cl.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrClaimNotFound
	}
	return &cl, err
}

func (r *repoPG) CreateClaim(ctx context.Context, cl *InsuranceClaim) error {
	cl.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO insurance_claims (id, invoice_id, provider, policy_number, claimed_amount, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING submitted_at`,
		cl.ID, cl.InvoiceID, cl.Provider, cl.PolicyNumber, cl.ClaimedAmount, cl.Status).Scan(&cl.SubmittedAt)
}

func (r *repoPG) GetClaim(ctx context.Context, id uuid.UUID) (*InsuranceClaim, error) {
	return scanClaim(r.conn(ctx).QueryRow(ctx, `SELECT `+claimCols+` FROM insurance_claims WHERE id = $1`, id))
}

func (r *repoPG) UpdateClaim(ctx context.Context, cl *InsuranceClaim) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE insurance_claims SET provider=$2, policy_number=$3, claimed_amount=$4,
			approved_amount=$5, status=$6, resolved_at=$7
		WHERE id = $1`,
		cl.ID, cl.Provider, cl.PolicyNumber, cl.ClaimedAmount,
		cl.ApprovedAmount, cl.Status, cl.ResolvedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrClaimNotFound
	}
	return nil
}

func (r *repoPG) ListClaims(ctx context.Context, invoiceID uuid.UUID) ([]*InsuranceClaim, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+claimCols+` FROM insurance_claims WHERE invoice_id = $1 ORDER BY submitted_at`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var claims []*InsuranceClaim
	for rows.Next() {
		cl, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, cl)
	}
	return claims, rows.Err()
}

func (r *repoPG) collectInvoices(ctx context.Context, rows pgx.Rows) ([]*Invoice, error) {
	var items []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Item loading happens after the row iteration because pgx allows only
	// one open result set per connection.
	for _, inv := range items {
		if err := r.loadItems(ctx, inv); err != nil {
			return nil, err
		}
	}
	return items, nil
}
