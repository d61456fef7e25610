package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_seq, order_number, table_number, status, payment_method, total_amount, notes, created_by, created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderSeq, &o.OrderNumber, &o.TableNumber, &o.Status,
		&o.PaymentMethod, &o.TotalAmount, &o.Notes, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// GetNextOrderSeq returns MAX(order_seq)+1. Concurrent callers can receive
// the same value; the unique constraint on order_seq catches the collision
// and the caller retries.
func (q *Queries) GetNextOrderSeq(ctx context.Context) (int32, error) {
	var next int32
	err := q.db.QueryRow(ctx, `SELECT COALESCE(MAX(order_seq), 0) + 1 FROM orders`).Scan(&next)
	return next, err
}

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// GetOrderForUpdate locks the order row (FOR NO KEY UPDATE) to serialize
// concurrent payment and status writes against the same order.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR NO KEY UPDATE`, id)
	return scanOrder(row)
}

type ListOrdersParams struct {
	Status    string
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1::text = '' OR status = $1)
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`,
		arg.Status, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type CreateOrderParams struct {
	OrderSeq    int32
	OrderNumber string
	TableNumber pgtype.Text
	TotalAmount pgtype.Numeric
	Notes       pgtype.Text
	CreatedBy   pgtype.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO orders (order_seq, order_number, table_number, total_amount, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+orderColumns,
		arg.OrderSeq, arg.OrderNumber, arg.TableNumber, arg.TotalAmount, arg.Notes, arg.CreatedBy)
	return scanOrder(row)
}

type CreateOrderItemParams struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Quantity   int32
	UnitPrice  pgtype.Numeric
	Subtotal   pgtype.Numeric
	Notes      pgtype.Text
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	var i OrderItem
	err := q.db.QueryRow(ctx, `
		INSERT INTO order_items (order_id, menu_item_id, quantity, unit_price, subtotal, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, order_id, menu_item_id, quantity, unit_price, subtotal, notes, status`,
		arg.OrderID, arg.MenuItemID, arg.Quantity, arg.UnitPrice, arg.Subtotal, arg.Notes).
		Scan(&i.ID, &i.OrderID, &i.MenuItemID, &i.Quantity, &i.UnitPrice, &i.Subtotal, &i.Notes, &i.Status)
	return i, err
}

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, order_id, menu_item_id, quantity, unit_price, subtotal, notes, status
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(&i.ID, &i.OrderID, &i.MenuItemID, &i.Quantity, &i.UnitPrice, &i.Subtotal, &i.Notes, &i.Status); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type UpdateOrderStatusParams struct {
	ID        uuid.UUID
	Status    OrderStatus
	OldStatus OrderStatus
}

// UpdateOrderStatus performs a compare-and-swap write: it only succeeds when
// the row still carries OldStatus, so two racing transitions cannot both
// apply. A pgx.ErrNoRows result means the status moved underneath us.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING `+orderColumns,
		arg.ID, arg.Status, arg.OldStatus)
	return scanOrder(row)
}

type CompleteOrderPaymentParams struct {
	ID            uuid.UUID
	PaymentMethod PaymentMethod
}

// CompleteOrderPayment marks the order completed and stamps the method the
// customer paid with. A no-op (pgx.ErrNoRows) if the order is already
// completed.
func (q *Queries) CompleteOrderPayment(ctx context.Context, arg CompleteOrderPaymentParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET status = 'COMPLETED', payment_method = $2, updated_at = now()
		WHERE id = $1 AND status <> 'COMPLETED'
		RETURNING `+orderColumns,
		arg.ID, string(arg.PaymentMethod))
	return scanOrder(row)
}

// CancelOrder enforces its precondition atomically: only orders that have not
// reached payment can be cancelled.
func (q *Queries) CancelOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET status = 'CANCELLED', updated_at = now()
		WHERE id = $1 AND status IN ('PENDING', 'PREPARING', 'READY', 'SERVED')
		RETURNING `+orderColumns, id)
	return scanOrder(row)
}
