package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Status and enum values are stored as TEXT with CHECK constraints in the
// schema; the typed aliases below keep call sites honest.

type UserRole string

const (
	UserRoleADMIN   UserRole = "ADMIN"
	UserRoleKITCHEN UserRole = "KITCHEN"
	UserRoleWAITER  UserRole = "WAITER"
)

type OrderStatus string

const (
	OrderStatusPENDING          OrderStatus = "PENDING"
	OrderStatusPREPARING        OrderStatus = "PREPARING"
	OrderStatusREADY            OrderStatus = "READY"
	OrderStatusSERVED           OrderStatus = "SERVED"
	OrderStatusPAYMENTREQUESTED OrderStatus = "PAYMENT_REQUESTED"
	OrderStatusCOMPLETED        OrderStatus = "COMPLETED"
	OrderStatusCANCELLED        OrderStatus = "CANCELLED"
)

type OrderItemStatus string

const (
	OrderItemStatusPENDING   OrderItemStatus = "PENDING"
	OrderItemStatusPREPARING OrderItemStatus = "PREPARING"
	OrderItemStatusREADY     OrderItemStatus = "READY"
)

type PaymentMethod string

const (
	PaymentMethodCASH PaymentMethod = "CASH"
	PaymentMethodBANK PaymentMethod = "BANK"
)

type PaymentStatus string

const (
	PaymentStatusPENDING   PaymentStatus = "PENDING"
	PaymentStatusCOMPLETED PaymentStatus = "COMPLETED"
	PaymentStatusFAILED    PaymentStatus = "FAILED"
	PaymentStatusREFUNDED  PaymentStatus = "REFUNDED"
)

type PurchaseOrderStatus string

const (
	PurchaseOrderStatusPENDING   PurchaseOrderStatus = "PENDING"
	PurchaseOrderStatusAPPROVED  PurchaseOrderStatus = "APPROVED"
	PurchaseOrderStatusDELIVERED PurchaseOrderStatus = "DELIVERED"
	PurchaseOrderStatusCOMPLETED PurchaseOrderStatus = "COMPLETED"
	PurchaseOrderStatusCANCELLED PurchaseOrderStatus = "CANCELLED"
)

type InventoryTransactionType string

const (
	InventoryTransactionTypePURCHASE      InventoryTransactionType = "PURCHASE"
	InventoryTransactionTypeUSAGE         InventoryTransactionType = "USAGE"
	InventoryTransactionTypeADJUSTMENTIN  InventoryTransactionType = "ADJUSTMENT_IN"
	InventoryTransactionTypeADJUSTMENTOUT InventoryTransactionType = "ADJUSTMENT_OUT"
	InventoryTransactionTypeWASTE         InventoryTransactionType = "WASTE"
)

type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	FullName     string
	Role         UserRole
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// KitchenPermission controls whether a kitchen user's purchase orders skip
// manual approval. A NULL or zero MaxOrderValue means no ceiling.
type KitchenPermission struct {
	UserID         uuid.UUID
	CanAutoApprove bool
	MaxOrderValue  pgtype.Numeric
	UpdatedAt      time.Time
}

type Supplier struct {
	ID            uuid.UUID
	Name          string
	ContactPerson pgtype.Text
	Phone         pgtype.Text
	Address       pgtype.Text
	Rating        pgtype.Numeric
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Ingredient carries a denormalized current_stock counter. It is only ever
// written together with an inventory_transactions row in the same
// transaction, so the counter always equals the signed sum of the ledger.
type Ingredient struct {
	ID            uuid.UUID
	Name          string
	Unit          string
	CurrentStock  pgtype.Numeric
	MinStockLevel pgtype.Numeric
	CostPerUnit   pgtype.Numeric
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// InventoryTransaction is an append-only ledger row. Rows are never updated
// or deleted.
type InventoryTransaction struct {
	ID              uuid.UUID
	IngredientID    uuid.UUID
	Quantity        pgtype.Numeric
	Type            InventoryTransactionType
	UnitPrice       pgtype.Numeric
	ReferenceID     pgtype.UUID
	ReferenceType   pgtype.Text
	Notes           pgtype.Text
	CreatedBy       pgtype.UUID
	TransactionDate time.Time
}

type PurchaseOrder struct {
	ID                   uuid.UUID
	SupplierID           uuid.UUID
	RequesterID          uuid.UUID
	ApproverID           pgtype.UUID
	Status               PurchaseOrderStatus
	TotalAmount          pgtype.Numeric
	ExpectedDeliveryDate pgtype.Timestamptz
	ActualDeliveryDate   pgtype.Timestamptz
	AutoApproved         bool
	Notes                pgtype.Text
	RejectReason         pgtype.Text
	AdminNotes           pgtype.Text
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type PurchaseOrderItem struct {
	ID              uuid.UUID
	PurchaseOrderID uuid.UUID
	IngredientID    uuid.UUID
	Quantity        pgtype.Numeric
	UnitPrice       pgtype.Numeric
	Subtotal        pgtype.Numeric
}

type MenuItem struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Category    pgtype.Text
	Price       pgtype.Numeric
	IsAvailable bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Order struct {
	ID            uuid.UUID
	OrderSeq      int32
	OrderNumber   string
	TableNumber   pgtype.Text
	Status        OrderStatus
	PaymentMethod pgtype.Text
	TotalAmount   pgtype.Numeric
	Notes         pgtype.Text
	CreatedBy     pgtype.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type OrderItem struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Quantity   int32
	UnitPrice  pgtype.Numeric
	Subtotal   pgtype.Numeric
	Notes      pgtype.Text
	Status     OrderItemStatus
}

type Payment struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	Amount        pgtype.Numeric
	Method        PaymentMethod
	Status        PaymentStatus
	TransactionID string
	ProcessedBy   pgtype.UUID
	Notes         pgtype.Text
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
