package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const purchaseOrderColumns = `id, supplier_id, status, total_amount, requester_id, approver_id, auto_approved, expected_delivery_date, actual_delivery_date, notes, reject_reason, admin_notes, created_at, updated_at`

func scanPurchaseOrder(row interface{ Scan(...interface{}) error }) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.SupplierID, &po.Status, &po.TotalAmount, &po.RequesterID,
		&po.ApproverID, &po.AutoApproved, &po.ExpectedDeliveryDate, &po.ActualDeliveryDate,
		&po.Notes, &po.RejectReason, &po.AdminNotes, &po.CreatedAt, &po.UpdatedAt)
	return po, err
}

func (q *Queries) GetPurchaseOrder(ctx context.Context, id uuid.UUID) (PurchaseOrder, error) {
	row := q.db.QueryRow(ctx, `SELECT `+purchaseOrderColumns+` FROM purchase_orders WHERE id = $1`, id)
	return scanPurchaseOrder(row)
}

// GetPurchaseOrderForUpdate locks the row so a status transition and its side
// effects (stock posting on delivery) run without interleaving writers.
func (q *Queries) GetPurchaseOrderForUpdate(ctx context.Context, id uuid.UUID) (PurchaseOrder, error) {
	row := q.db.QueryRow(ctx, `SELECT `+purchaseOrderColumns+` FROM purchase_orders WHERE id = $1 FOR NO KEY UPDATE`, id)
	return scanPurchaseOrder(row)
}

type ListPurchaseOrdersParams struct {
	Status     string
	SupplierID pgtype.UUID
	Limit      int32
	Offset     int32
}

func (q *Queries) ListPurchaseOrders(ctx context.Context, arg ListPurchaseOrdersParams) ([]PurchaseOrder, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+purchaseOrderColumns+`
		FROM purchase_orders
		WHERE ($1::text = '' OR status = $1)
		  AND ($2::uuid IS NULL OR supplier_id = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		arg.Status, arg.SupplierID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pos []PurchaseOrder
	for rows.Next() {
		po, err := scanPurchaseOrder(rows)
		if err != nil {
			return nil, err
		}
		pos = append(pos, po)
	}
	return pos, rows.Err()
}

type CreatePurchaseOrderParams struct {
	SupplierID           uuid.UUID
	Status               PurchaseOrderStatus
	TotalAmount          pgtype.Numeric
	RequesterID          uuid.UUID
	ApproverID           pgtype.UUID
	AutoApproved         bool
	ExpectedDeliveryDate pgtype.Timestamptz
	Notes                pgtype.Text
}

func (q *Queries) CreatePurchaseOrder(ctx context.Context, arg CreatePurchaseOrderParams) (PurchaseOrder, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO purchase_orders
			(supplier_id, status, total_amount, requester_id, approver_id, auto_approved, expected_delivery_date, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+purchaseOrderColumns,
		arg.SupplierID, arg.Status, arg.TotalAmount, arg.RequesterID,
		arg.ApproverID, arg.AutoApproved, arg.ExpectedDeliveryDate, arg.Notes)
	return scanPurchaseOrder(row)
}

type CreatePurchaseOrderItemParams struct {
	PurchaseOrderID uuid.UUID
	IngredientID    uuid.UUID
	Quantity        pgtype.Numeric
	UnitPrice       pgtype.Numeric
	Subtotal        pgtype.Numeric
}

func (q *Queries) CreatePurchaseOrderItem(ctx context.Context, arg CreatePurchaseOrderItemParams) (PurchaseOrderItem, error) {
	var i PurchaseOrderItem
	err := q.db.QueryRow(ctx, `
		INSERT INTO purchase_order_items (purchase_order_id, ingredient_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, purchase_order_id, ingredient_id, quantity, unit_price, subtotal`,
		arg.PurchaseOrderID, arg.IngredientID, arg.Quantity, arg.UnitPrice, arg.Subtotal).
		Scan(&i.ID, &i.PurchaseOrderID, &i.IngredientID, &i.Quantity, &i.UnitPrice, &i.Subtotal)
	return i, err
}

func (q *Queries) ListPurchaseOrderItems(ctx context.Context, purchaseOrderID uuid.UUID) ([]PurchaseOrderItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, purchase_order_id, ingredient_id, quantity, unit_price, subtotal
		FROM purchase_order_items WHERE purchase_order_id = $1 ORDER BY id`, purchaseOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []PurchaseOrderItem
	for rows.Next() {
		var i PurchaseOrderItem
		if err := rows.Scan(&i.ID, &i.PurchaseOrderID, &i.IngredientID, &i.Quantity, &i.UnitPrice, &i.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type UpdatePurchaseOrderStatusParams struct {
	ID                 uuid.UUID
	Status             PurchaseOrderStatus
	OldStatus          PurchaseOrderStatus
	ApproverID         pgtype.UUID
	ActualDeliveryDate pgtype.Timestamptz
	RejectReason       pgtype.Text
	AdminNotes         pgtype.Text
}

// UpdatePurchaseOrderStatus is a compare-and-swap transition. Optional fields
// only overwrite when the transition supplies them.
func (q *Queries) UpdatePurchaseOrderStatus(ctx context.Context, arg UpdatePurchaseOrderStatusParams) (PurchaseOrder, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE purchase_orders SET
			status = $2,
			approver_id = COALESCE($4, approver_id),
			actual_delivery_date = COALESCE($5, actual_delivery_date),
			reject_reason = COALESCE($6, reject_reason),
			admin_notes = COALESCE($7, admin_notes),
			updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING `+purchaseOrderColumns,
		arg.ID, arg.Status, arg.OldStatus, arg.ApproverID,
		arg.ActualDeliveryDate, arg.RejectReason, arg.AdminNotes)
	return scanPurchaseOrder(row)
}

type UpdatePurchaseOrderDetailsParams struct {
	ID                   uuid.UUID
	SupplierID           uuid.UUID
	ExpectedDeliveryDate pgtype.Timestamptz
	Notes                pgtype.Text
}

// UpdatePurchaseOrderDetails edits header fields while the order is still
// PENDING or APPROVED; anything past delivery is immutable except through
// transitions.
func (q *Queries) UpdatePurchaseOrderDetails(ctx context.Context, arg UpdatePurchaseOrderDetailsParams) (PurchaseOrder, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE purchase_orders
		SET supplier_id = $2, expected_delivery_date = $3, notes = $4, updated_at = now()
		WHERE id = $1 AND status IN ('PENDING', 'APPROVED')
		RETURNING `+purchaseOrderColumns,
		arg.ID, arg.SupplierID, arg.ExpectedDeliveryDate, arg.Notes)
	return scanPurchaseOrder(row)
}

type SetPurchaseOrderTotalParams struct {
	ID          uuid.UUID
	TotalAmount pgtype.Numeric
}

func (q *Queries) SetPurchaseOrderTotal(ctx context.Context, arg SetPurchaseOrderTotalParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE purchase_orders SET total_amount = $2, updated_at = now()
		WHERE id = $1`, arg.ID, arg.TotalAmount)
	return err
}

func (q *Queries) DeletePurchaseOrderItems(ctx context.Context, purchaseOrderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM purchase_order_items WHERE purchase_order_id = $1`, purchaseOrderID)
	return err
}

// DeletePurchaseOrder removes a PENDING draft. Orders past approval are part
// of the audit trail and cannot be deleted.
func (q *Queries) DeletePurchaseOrder(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, `
		DELETE FROM purchase_orders WHERE id = $1 AND status = 'PENDING'
		RETURNING id`, id).Scan(&deleted)
	return deleted, err
}
