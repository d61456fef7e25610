package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/warungkita/api/internal/database"
)

const maxOrderSeqRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyItems        = errors.New("items are required")
	ErrInvalidQuantity   = errors.New("quantity must be > 0")
	ErrMenuItemNotFound  = errors.New("menu item not found or unavailable")
	ErrInvalidMenuItemID = errors.New("invalid menu_item_id")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetNextOrderSeq(ctx context.Context) (int32, error)
	GetMenuItemForOrder(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	CreatedBy   uuid.UUID
	TableNumber string
	Notes       string
	Items       []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single item in the order.
type CreateOrderItemRequest struct {
	MenuItemID string
	Quantity   int32
	Notes      string
}

// CreateOrderResult is the full created order with items.
type CreateOrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// OrderService handles order business logic.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// processedItem holds a prepared order item insert.
type processedItem struct {
	params database.CreateOrderItemParams
}

// CreateOrder validates, snapshots menu prices, and creates an order
// atomically. Retries up to maxOrderSeqRetries times on order_seq unique
// constraint violations (race condition where concurrent transactions get the
// same MAX).
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	// Retry loop: handles the order_seq unique constraint race condition.
	var lastErr error
	for attempt := 0; attempt < maxOrderSeqRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isOrderSeqConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isOrderSeqConflict checks if the error is a unique constraint violation on
// the order sequence (pgconn error code 23505).
func isOrderSeqConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_order_seq_key"
	}
	return false
}

// createOrderTx executes the full order creation in a single transaction.
func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Generate order number ---
	nextSeq, err := store.GetNextOrderSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("get next order seq: %w", err)
	}
	orderNumber := fmt.Sprintf("ORD-%03d", nextSeq)

	// --- Process items: validate + snapshot prices ---
	totalAmount := decimal.Zero
	var items []processedItem

	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}

		menuItemID, err := uuid.Parse(item.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidMenuItemID)
		}

		// Validate the menu item exists and is available; snapshot its price
		// so later menu edits never change past orders.
		menuItem, err := store.GetMenuItemForOrder(ctx, menuItemID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrMenuItemNotFound)
			}
			return nil, fmt.Errorf("item[%d]: get menu item: %w", i, err)
		}

		unitPrice := numericToDecimal(menuItem.Price)
		subtotal := unitPrice.Mul(decimal.NewFromInt32(item.Quantity))
		totalAmount = totalAmount.Add(subtotal)

		itemNotes := pgtype.Text{}
		if item.Notes != "" {
			itemNotes = pgtype.Text{String: item.Notes, Valid: true}
		}

		items = append(items, processedItem{
			params: database.CreateOrderItemParams{
				MenuItemID: menuItemID,
				Quantity:   item.Quantity,
				UnitPrice:  decimalToNumeric(unitPrice),
				Subtotal:   decimalToNumeric(subtotal),
				Notes:      itemNotes,
			},
		})
	}

	// --- Build order params ---
	tableNumber := pgtype.Text{}
	if req.TableNumber != "" {
		tableNumber = pgtype.Text{String: req.TableNumber, Valid: true}
	}

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	// --- Insert order ---
	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderSeq:    nextSeq,
		OrderNumber: orderNumber,
		TableNumber: tableNumber,
		TotalAmount: decimalToNumeric(totalAmount),
		Notes:       notes,
		CreatedBy:   pgtype.UUID{Bytes: req.CreatedBy, Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// --- Insert items ---
	var itemResults []database.OrderItem
	for _, pi := range items {
		pi.params.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, pi.params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		itemResults = append(itemResults, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{
		Order: order,
		Items: itemResults,
	}, nil
}

// --- Helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
