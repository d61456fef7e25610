package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/warungkita/api/internal/database"
)

// Errors returned by the purchase order service.
var (
	ErrPOEmptyItems        = errors.New("items are required")
	ErrPOInvalidQuantity   = errors.New("quantity must be > 0")
	ErrPOInvalidUnitPrice  = errors.New("invalid unit_price")
	ErrInvalidSupplierID   = errors.New("invalid supplier_id")
	ErrInvalidIngredientID = errors.New("invalid ingredient_id")
	ErrSupplierNotFound    = errors.New("supplier not found")
	ErrIngredientNotFound  = errors.New("ingredient not found")
	ErrPONotFound          = errors.New("purchase order not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrStatusConflict      = errors.New("purchase order status changed, please retry")
	ErrPONotEditable       = errors.New("only pending purchase orders can be edited")
)

// allowedPOTransitions is the purchase order lifecycle. Terminal states
// (COMPLETED, CANCELLED) have no outgoing edges.
var allowedPOTransitions = map[database.PurchaseOrderStatus][]database.PurchaseOrderStatus{
	database.PurchaseOrderStatusPENDING:   {database.PurchaseOrderStatusAPPROVED, database.PurchaseOrderStatusCANCELLED},
	database.PurchaseOrderStatusAPPROVED:  {database.PurchaseOrderStatusDELIVERED, database.PurchaseOrderStatusCANCELLED},
	database.PurchaseOrderStatusDELIVERED: {database.PurchaseOrderStatusCOMPLETED},
	database.PurchaseOrderStatusCOMPLETED: {},
	database.PurchaseOrderStatusCANCELLED: {},
}

func poTransitionAllowed(from, to database.PurchaseOrderStatus) bool {
	for _, s := range allowedPOTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PurchaseOrderStore defines the DB methods needed by the purchase order
// service. Satisfied by *database.Queries (and its WithTx variant).
type PurchaseOrderStore interface {
	GetSupplier(ctx context.Context, id uuid.UUID) (database.Supplier, error)
	GetIngredient(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	GetKitchenPermission(ctx context.Context, userID uuid.UUID) (database.KitchenPermission, error)
	CreatePurchaseOrder(ctx context.Context, arg database.CreatePurchaseOrderParams) (database.PurchaseOrder, error)
	CreatePurchaseOrderItem(ctx context.Context, arg database.CreatePurchaseOrderItemParams) (database.PurchaseOrderItem, error)
	GetPurchaseOrderForUpdate(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error)
	UpdatePurchaseOrderStatus(ctx context.Context, arg database.UpdatePurchaseOrderStatusParams) (database.PurchaseOrder, error)
	UpdatePurchaseOrderDetails(ctx context.Context, arg database.UpdatePurchaseOrderDetailsParams) (database.PurchaseOrder, error)
	SetPurchaseOrderTotal(ctx context.Context, arg database.SetPurchaseOrderTotalParams) error
	ListPurchaseOrderItems(ctx context.Context, purchaseOrderID uuid.UUID) ([]database.PurchaseOrderItem, error)
	DeletePurchaseOrderItems(ctx context.Context, purchaseOrderID uuid.UUID) error
	DeletePurchaseOrder(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	GetIngredientForUpdate(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	CreateInventoryTransaction(ctx context.Context, arg database.CreateInventoryTransactionParams) (database.InventoryTransaction, error)
	AddIngredientStock(ctx context.Context, arg database.AddIngredientStockParams) (database.Ingredient, error)
}

// NewPurchaseOrderStore creates a PurchaseOrderStore from a DBTX (pool or tx).
type NewPurchaseOrderStore func(db database.DBTX) PurchaseOrderStore

// CreatePurchaseOrderRequest is the validated input for creating a purchase order.
type CreatePurchaseOrderRequest struct {
	RequesterID          uuid.UUID
	RequesterRole        string
	SupplierID           string
	ExpectedDeliveryDate string // RFC3339, optional
	Notes                string
	Items                []CreatePurchaseOrderItemRequest
}

// CreatePurchaseOrderItemRequest is a single line on the purchase order.
type CreatePurchaseOrderItemRequest struct {
	IngredientID string
	Quantity     string
	UnitPrice    string
}

// CreatePurchaseOrderResult is the created purchase order with its items.
type CreatePurchaseOrderResult struct {
	PurchaseOrder database.PurchaseOrder
	Items         []database.PurchaseOrderItem
}

// TransitionPurchaseOrderRequest moves a purchase order through its lifecycle.
type TransitionPurchaseOrderRequest struct {
	ID           uuid.UUID
	NewStatus    database.PurchaseOrderStatus
	ActorID      uuid.UUID
	RejectReason string
	AdminNotes   string
}

// UpdatePurchaseOrderRequest edits a PENDING purchase order's header and
// replaces its items.
type UpdatePurchaseOrderRequest struct {
	ID                   uuid.UUID
	SupplierID           string
	ExpectedDeliveryDate string
	Notes                string
	Items                []CreatePurchaseOrderItemRequest
}

// PurchaseOrderService handles purchase order business logic.
type PurchaseOrderService struct {
	pool     TxBeginner
	newStore NewPurchaseOrderStore
}

// NewPurchaseOrderService creates a new PurchaseOrderService.
func NewPurchaseOrderService(pool TxBeginner, newStore NewPurchaseOrderStore) *PurchaseOrderService {
	return &PurchaseOrderService{pool: pool, newStore: newStore}
}

// poItem holds a validated line ready for insert.
type poItem struct {
	ingredientID uuid.UUID
	quantity     decimal.Decimal
	unitPrice    decimal.Decimal
	subtotal     decimal.Decimal
}

// Create validates the request, applies the approval policy, and inserts the
// purchase order with its items in one transaction.
//
// Approval policy: ADMIN requesters are approved immediately. KITCHEN
// requesters are auto-approved when their kitchen permission allows it and
// the order total is within their ceiling (a NULL or zero ceiling means no
// limit). Everything else starts PENDING and waits for an admin.
func (s *PurchaseOrderService) Create(ctx context.Context, req CreatePurchaseOrderRequest) (*CreatePurchaseOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrPOEmptyItems
	}

	supplierID, err := uuid.Parse(req.SupplierID)
	if err != nil {
		return nil, ErrInvalidSupplierID
	}

	items, total, err := parsePOItems(req.Items)
	if err != nil {
		return nil, err
	}

	expectedDelivery := pgtype.Timestamptz{}
	if req.ExpectedDeliveryDate != "" {
		t, err := time.Parse(time.RFC3339, req.ExpectedDeliveryDate)
		if err != nil {
			return nil, fmt.Errorf("invalid expected_delivery_date: %w", err)
		}
		expectedDelivery = pgtype.Timestamptz{Time: t, Valid: true}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := store.GetSupplier(ctx, supplierID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSupplierNotFound
		}
		return nil, fmt.Errorf("get supplier: %w", err)
	}

	for i, item := range items {
		if _, err := store.GetIngredient(ctx, item.ingredientID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrIngredientNotFound)
			}
			return nil, fmt.Errorf("item[%d]: get ingredient: %w", i, err)
		}
	}

	status, approverID, autoApproved, err := s.resolveApproval(ctx, store, req.RequesterID, req.RequesterRole, total)
	if err != nil {
		return nil, err
	}

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	po, err := store.CreatePurchaseOrder(ctx, database.CreatePurchaseOrderParams{
		SupplierID:           supplierID,
		Status:               status,
		TotalAmount:          decimalToNumeric(total),
		RequesterID:          req.RequesterID,
		ApproverID:           approverID,
		AutoApproved:         autoApproved,
		ExpectedDeliveryDate: expectedDelivery,
		Notes:                notes,
	})
	if err != nil {
		return nil, fmt.Errorf("create purchase order: %w", err)
	}

	var itemResults []database.PurchaseOrderItem
	for _, item := range items {
		row, err := store.CreatePurchaseOrderItem(ctx, database.CreatePurchaseOrderItemParams{
			PurchaseOrderID: po.ID,
			IngredientID:    item.ingredientID,
			Quantity:        decimalToNumeric(item.quantity),
			UnitPrice:       decimalToNumeric(item.unitPrice),
			Subtotal:        decimalToNumeric(item.subtotal),
		})
		if err != nil {
			return nil, fmt.Errorf("create purchase order item: %w", err)
		}
		itemResults = append(itemResults, row)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreatePurchaseOrderResult{PurchaseOrder: po, Items: itemResults}, nil
}

// resolveApproval decides the initial status of a new purchase order.
func (s *PurchaseOrderService) resolveApproval(ctx context.Context, store PurchaseOrderStore, requesterID uuid.UUID, role string, total decimal.Decimal) (database.PurchaseOrderStatus, pgtype.UUID, bool, error) {
	if role == "ADMIN" {
		return database.PurchaseOrderStatusAPPROVED,
			pgtype.UUID{Bytes: requesterID, Valid: true}, true, nil
	}

	if role == "KITCHEN" {
		perm, err := store.GetKitchenPermission(ctx, requesterID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.PurchaseOrderStatusPENDING, pgtype.UUID{}, false, nil
			}
			return "", pgtype.UUID{}, false, fmt.Errorf("get kitchen permission: %w", err)
		}
		if perm.CanAutoApprove {
			ceiling := numericToDecimal(perm.MaxOrderValue)
			if ceiling.IsZero() || total.LessThanOrEqual(ceiling) {
				return database.PurchaseOrderStatusAPPROVED,
					pgtype.UUID{Bytes: requesterID, Valid: true}, true, nil
			}
		}
	}

	return database.PurchaseOrderStatusPENDING, pgtype.UUID{}, false, nil
}

// Transition moves a purchase order to a new lifecycle state. On DELIVERED it
// also posts one PURCHASE ledger row per line item and bumps each
// ingredient's stock counter, all inside the same transaction as the status
// write so the ledger and the counter can never diverge.
func (s *PurchaseOrderService) Transition(ctx context.Context, req TransitionPurchaseOrderRequest) (*database.PurchaseOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	po, err := store.GetPurchaseOrderForUpdate(ctx, req.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPONotFound
		}
		return nil, fmt.Errorf("get purchase order: %w", err)
	}

	if !poTransitionAllowed(po.Status, req.NewStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, po.Status, req.NewStatus)
	}

	arg := database.UpdatePurchaseOrderStatusParams{
		ID:        req.ID,
		Status:    req.NewStatus,
		OldStatus: po.Status,
	}

	switch req.NewStatus {
	case database.PurchaseOrderStatusAPPROVED:
		arg.ApproverID = pgtype.UUID{Bytes: req.ActorID, Valid: true}
		if req.AdminNotes != "" {
			arg.AdminNotes = pgtype.Text{String: req.AdminNotes, Valid: true}
		}
	case database.PurchaseOrderStatusCANCELLED:
		if req.RejectReason != "" {
			arg.RejectReason = pgtype.Text{String: req.RejectReason, Valid: true}
		}
	case database.PurchaseOrderStatusDELIVERED:
		arg.ActualDeliveryDate = pgtype.Timestamptz{Time: time.Now(), Valid: true}
		if err := s.postDeliveryStock(ctx, store, po.ID, req.ActorID); err != nil {
			return nil, err
		}
	}

	updated, err := store.UpdatePurchaseOrderStatus(ctx, arg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("update purchase order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &updated, nil
}

// postDeliveryStock writes one PURCHASE ledger row per line item and applies
// the matching stock delta. Ingredient rows are locked first so concurrent
// adjustments serialize against the delivery.
func (s *PurchaseOrderService) postDeliveryStock(ctx context.Context, store PurchaseOrderStore, poID, actorID uuid.UUID) error {
	items, err := store.ListPurchaseOrderItems(ctx, poID)
	if err != nil {
		return fmt.Errorf("list purchase order items: %w", err)
	}

	for i, item := range items {
		if _, err := store.GetIngredientForUpdate(ctx, item.IngredientID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("item[%d]: %w", i, ErrIngredientNotFound)
			}
			return fmt.Errorf("item[%d]: lock ingredient: %w", i, err)
		}

		if _, err := store.CreateInventoryTransaction(ctx, database.CreateInventoryTransactionParams{
			IngredientID:  pgtype.UUID{Bytes: item.IngredientID, Valid: true},
			Quantity:      item.Quantity,
			Type:          database.InventoryTransactionTypePURCHASE,
			UnitPrice:     item.UnitPrice,
			ReferenceID:   pgtype.UUID{Bytes: poID, Valid: true},
			ReferenceType: pgtype.Text{String: "PURCHASE_ORDER", Valid: true},
			CreatedBy:     pgtype.UUID{Bytes: actorID, Valid: true},
		}); err != nil {
			return fmt.Errorf("item[%d]: create ledger row: %w", i, err)
		}

		if _, err := store.AddIngredientStock(ctx, database.AddIngredientStockParams{
			ID:    item.IngredientID,
			Delta: item.Quantity,
		}); err != nil {
			return fmt.Errorf("item[%d]: add stock: %w", i, err)
		}
	}
	return nil
}

// Update edits a PENDING purchase order's header and replaces its items.
func (s *PurchaseOrderService) Update(ctx context.Context, req UpdatePurchaseOrderRequest) (*CreatePurchaseOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrPOEmptyItems
	}

	supplierID, err := uuid.Parse(req.SupplierID)
	if err != nil {
		return nil, ErrInvalidSupplierID
	}

	items, total, err := parsePOItems(req.Items)
	if err != nil {
		return nil, err
	}

	expectedDelivery := pgtype.Timestamptz{}
	if req.ExpectedDeliveryDate != "" {
		t, err := time.Parse(time.RFC3339, req.ExpectedDeliveryDate)
		if err != nil {
			return nil, fmt.Errorf("invalid expected_delivery_date: %w", err)
		}
		expectedDelivery = pgtype.Timestamptz{Time: t, Valid: true}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	po, err := store.GetPurchaseOrderForUpdate(ctx, req.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPONotFound
		}
		return nil, fmt.Errorf("get purchase order: %w", err)
	}
	// Editable until the goods arrive; a DELIVERED order has already been
	// posted to the ledger.
	if po.Status != database.PurchaseOrderStatusPENDING && po.Status != database.PurchaseOrderStatusAPPROVED {
		return nil, ErrPONotEditable
	}

	if _, err := store.GetSupplier(ctx, supplierID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSupplierNotFound
		}
		return nil, fmt.Errorf("get supplier: %w", err)
	}

	for i, item := range items {
		if _, err := store.GetIngredient(ctx, item.ingredientID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrIngredientNotFound)
			}
			return nil, fmt.Errorf("item[%d]: get ingredient: %w", i, err)
		}
	}

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	updated, err := store.UpdatePurchaseOrderDetails(ctx, database.UpdatePurchaseOrderDetailsParams{
		ID:                   req.ID,
		SupplierID:           supplierID,
		ExpectedDeliveryDate: expectedDelivery,
		Notes:                notes,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPONotEditable
		}
		return nil, fmt.Errorf("update purchase order: %w", err)
	}

	if err := store.DeletePurchaseOrderItems(ctx, req.ID); err != nil {
		return nil, fmt.Errorf("delete purchase order items: %w", err)
	}

	var itemResults []database.PurchaseOrderItem
	for _, item := range items {
		row, err := store.CreatePurchaseOrderItem(ctx, database.CreatePurchaseOrderItemParams{
			PurchaseOrderID: req.ID,
			IngredientID:    item.ingredientID,
			Quantity:        decimalToNumeric(item.quantity),
			UnitPrice:       decimalToNumeric(item.unitPrice),
			Subtotal:        decimalToNumeric(item.subtotal),
		})
		if err != nil {
			return nil, fmt.Errorf("create purchase order item: %w", err)
		}
		itemResults = append(itemResults, row)
	}

	if err := store.SetPurchaseOrderTotal(ctx, database.SetPurchaseOrderTotalParams{
		ID:          req.ID,
		TotalAmount: decimalToNumeric(total),
	}); err != nil {
		return nil, fmt.Errorf("set purchase order total: %w", err)
	}
	updated.TotalAmount = decimalToNumeric(total)

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreatePurchaseOrderResult{PurchaseOrder: updated, Items: itemResults}, nil
}

// Delete removes a PENDING purchase order and its items.
func (s *PurchaseOrderService) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	po, err := store.GetPurchaseOrderForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPONotFound
		}
		return fmt.Errorf("get purchase order: %w", err)
	}
	if po.Status != database.PurchaseOrderStatusPENDING {
		return ErrPONotEditable
	}

	if err := store.DeletePurchaseOrderItems(ctx, id); err != nil {
		return fmt.Errorf("delete purchase order items: %w", err)
	}
	if _, err := store.DeletePurchaseOrder(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPONotEditable
		}
		return fmt.Errorf("delete purchase order: %w", err)
	}

	return tx.Commit(ctx)
}

// parsePOItems validates raw line items and totals them.
func parsePOItems(raw []CreatePurchaseOrderItemRequest) ([]poItem, decimal.Decimal, error) {
	total := decimal.Zero
	var items []poItem
	for i, item := range raw {
		ingredientID, err := uuid.Parse(item.IngredientID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidIngredientID)
		}
		qty, err := decimal.NewFromString(item.Quantity)
		if err != nil || !qty.IsPositive() {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrPOInvalidQuantity)
		}
		unitPrice, err := decimal.NewFromString(item.UnitPrice)
		if err != nil || unitPrice.IsNegative() {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrPOInvalidUnitPrice)
		}
		subtotal := qty.Mul(unitPrice)
		total = total.Add(subtotal)
		items = append(items, poItem{
			ingredientID: ingredientID,
			quantity:     qty,
			unitPrice:    unitPrice,
			subtotal:     subtotal,
		})
	}
	return items, total, nil
}
