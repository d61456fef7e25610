package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, order_id, amount, method, status, transaction_id, processed_by, notes, created_at, updated_at`

func scanPayment(row interface{ Scan(...interface{}) error }) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &p.Status,
		&p.TransactionID, &p.ProcessedBy, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (q *Queries) GetPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	row := q.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return scanPayment(row)
}

// GetPaymentForUpdate locks the payment row so a lifecycle transition and the
// order completion it may trigger happen under one lock.
func (q *Queries) GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (Payment, error) {
	row := q.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR NO KEY UPDATE`, id)
	return scanPayment(row)
}

type ListPaymentsParams struct {
	Status string
	Method string
	Limit  int32
	Offset int32
}

func (q *Queries) ListPayments(ctx context.Context, arg ListPaymentsParams) ([]Payment, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE ($1::text = '' OR status = $1)
		  AND ($2::text = '' OR method = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		arg.Status, arg.Method, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (q *Queries) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

type CreatePaymentParams struct {
	OrderID       uuid.UUID
	Amount        pgtype.Numeric
	Method        PaymentMethod
	Status        PaymentStatus
	TransactionID string
	ProcessedBy   pgtype.UUID
	Notes         pgtype.Text
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO payments (order_id, amount, method, status, transaction_id, processed_by, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+paymentColumns,
		arg.OrderID, arg.Amount, arg.Method, arg.Status, arg.TransactionID, arg.ProcessedBy, arg.Notes)
	return scanPayment(row)
}

type UpdatePaymentStatusParams struct {
	ID        uuid.UUID
	Status    PaymentStatus
	OldStatus PaymentStatus
	Notes     pgtype.Text
}

// UpdatePaymentStatus is a compare-and-swap transition; pgx.ErrNoRows means
// the payment moved underneath us.
func (q *Queries) UpdatePaymentStatus(ctx context.Context, arg UpdatePaymentStatusParams) (Payment, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE payments SET status = $2, notes = COALESCE($4, notes), updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING `+paymentColumns,
		arg.ID, arg.Status, arg.OldStatus, arg.Notes)
	return scanPayment(row)
}
