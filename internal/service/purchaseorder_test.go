package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/warungkita/api/internal/database"
)

// mockPOStore implements PurchaseOrderStore with configurable behavior.
type mockPOStore struct {
	getSupplierFn          func(ctx context.Context, id uuid.UUID) (database.Supplier, error)
	getIngredientFn        func(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	getKitchenPermissionFn func(ctx context.Context, userID uuid.UUID) (database.KitchenPermission, error)
	createPOFn             func(ctx context.Context, arg database.CreatePurchaseOrderParams) (database.PurchaseOrder, error)
	createPOItemFn         func(ctx context.Context, arg database.CreatePurchaseOrderItemParams) (database.PurchaseOrderItem, error)
	getPOForUpdateFn       func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error)
	updatePOStatusFn       func(ctx context.Context, arg database.UpdatePurchaseOrderStatusParams) (database.PurchaseOrder, error)
	updatePODetailsFn      func(ctx context.Context, arg database.UpdatePurchaseOrderDetailsParams) (database.PurchaseOrder, error)
	setPOTotalFn           func(ctx context.Context, arg database.SetPurchaseOrderTotalParams) error
	listPOItemsFn          func(ctx context.Context, purchaseOrderID uuid.UUID) ([]database.PurchaseOrderItem, error)
	deletePOItemsFn        func(ctx context.Context, purchaseOrderID uuid.UUID) error
	deletePOFn             func(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	getIngredientForUpdFn  func(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	createInvTxFn          func(ctx context.Context, arg database.CreateInventoryTransactionParams) (database.InventoryTransaction, error)
	addStockFn             func(ctx context.Context, arg database.AddIngredientStockParams) (database.Ingredient, error)
}

func (m *mockPOStore) GetSupplier(ctx context.Context, id uuid.UUID) (database.Supplier, error) {
	return m.getSupplierFn(ctx, id)
}
func (m *mockPOStore) GetIngredient(ctx context.Context, id uuid.UUID) (database.Ingredient, error) {
	return m.getIngredientFn(ctx, id)
}
func (m *mockPOStore) GetKitchenPermission(ctx context.Context, userID uuid.UUID) (database.KitchenPermission, error) {
	return m.getKitchenPermissionFn(ctx, userID)
}
func (m *mockPOStore) CreatePurchaseOrder(ctx context.Context, arg database.CreatePurchaseOrderParams) (database.PurchaseOrder, error) {
	return m.createPOFn(ctx, arg)
}
func (m *mockPOStore) CreatePurchaseOrderItem(ctx context.Context, arg database.CreatePurchaseOrderItemParams) (database.PurchaseOrderItem, error) {
	return m.createPOItemFn(ctx, arg)
}
func (m *mockPOStore) GetPurchaseOrderForUpdate(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
	return m.getPOForUpdateFn(ctx, id)
}
func (m *mockPOStore) UpdatePurchaseOrderStatus(ctx context.Context, arg database.UpdatePurchaseOrderStatusParams) (database.PurchaseOrder, error) {
	return m.updatePOStatusFn(ctx, arg)
}
func (m *mockPOStore) UpdatePurchaseOrderDetails(ctx context.Context, arg database.UpdatePurchaseOrderDetailsParams) (database.PurchaseOrder, error) {
	return m.updatePODetailsFn(ctx, arg)
}
func (m *mockPOStore) SetPurchaseOrderTotal(ctx context.Context, arg database.SetPurchaseOrderTotalParams) error {
	return m.setPOTotalFn(ctx, arg)
}
func (m *mockPOStore) ListPurchaseOrderItems(ctx context.Context, purchaseOrderID uuid.UUID) ([]database.PurchaseOrderItem, error) {
	return m.listPOItemsFn(ctx, purchaseOrderID)
}
func (m *mockPOStore) DeletePurchaseOrderItems(ctx context.Context, purchaseOrderID uuid.UUID) error {
	return m.deletePOItemsFn(ctx, purchaseOrderID)
}
func (m *mockPOStore) DeletePurchaseOrder(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	return m.deletePOFn(ctx, id)
}
func (m *mockPOStore) GetIngredientForUpdate(ctx context.Context, id uuid.UUID) (database.Ingredient, error) {
	return m.getIngredientForUpdFn(ctx, id)
}
func (m *mockPOStore) CreateInventoryTransaction(ctx context.Context, arg database.CreateInventoryTransactionParams) (database.InventoryTransaction, error) {
	return m.createInvTxFn(ctx, arg)
}
func (m *mockPOStore) AddIngredientStock(ctx context.Context, arg database.AddIngredientStockParams) (database.Ingredient, error) {
	return m.addStockFn(ctx, arg)
}

// newTestPOService creates a PurchaseOrderService with mocked dependencies.
func newTestPOService(store *mockPOStore) *PurchaseOrderService {
	pool := &mockTxBeginner{tx: &mockTx{}}
	newStore := func(db database.DBTX) PurchaseOrderStore { return store }
	return NewPurchaseOrderService(pool, newStore)
}

// defaultPOStore returns a mockPOStore with sensible defaults. Individual
// tests override the functions they care about.
func defaultPOStore(supplierID, ingredientID uuid.UUID) *mockPOStore {
	return &mockPOStore{
		getSupplierFn: func(ctx context.Context, id uuid.UUID) (database.Supplier, error) {
			if id == supplierID {
				return database.Supplier{ID: supplierID, Name: "Pasar Induk", IsActive: true}, nil
			}
			return database.Supplier{}, pgx.ErrNoRows
		},
		getIngredientFn: func(ctx context.Context, id uuid.UUID) (database.Ingredient, error) {
			if id == ingredientID {
				return database.Ingredient{ID: ingredientID, Name: "Beras", Unit: "kg", IsActive: true}, nil
			}
			return database.Ingredient{}, pgx.ErrNoRows
		},
		getKitchenPermissionFn: func(ctx context.Context, userID uuid.UUID) (database.KitchenPermission, error) {
			return database.KitchenPermission{}, pgx.ErrNoRows
		},
		createPOFn: func(ctx context.Context, arg database.CreatePurchaseOrderParams) (database.PurchaseOrder, error) {
			return database.PurchaseOrder{
				ID:           uuid.New(),
				SupplierID:   arg.SupplierID,
				RequesterID:  arg.RequesterID,
				ApproverID:   arg.ApproverID,
				Status:       arg.Status,
				TotalAmount:  arg.TotalAmount,
				AutoApproved: arg.AutoApproved,
				Notes:        arg.Notes,
			}, nil
		},
		createPOItemFn: func(ctx context.Context, arg database.CreatePurchaseOrderItemParams) (database.PurchaseOrderItem, error) {
			return database.PurchaseOrderItem{
				ID:              uuid.New(),
				PurchaseOrderID: arg.PurchaseOrderID,
				IngredientID:    arg.IngredientID,
				Quantity:        arg.Quantity,
				UnitPrice:       arg.UnitPrice,
				Subtotal:        arg.Subtotal,
			}, nil
		},
	}
}

func basicPOReq(requesterID uuid.UUID, role string, supplierID, ingredientID uuid.UUID) CreatePurchaseOrderRequest {
	return CreatePurchaseOrderRequest{
		RequesterID:   requesterID,
		RequesterRole: role,
		SupplierID:    supplierID.String(),
		Items: []CreatePurchaseOrderItemRequest{
			{IngredientID: ingredientID.String(), Quantity: "10", UnitPrice: "12000.00"},
		},
	}
}

// =====================
// Validation tests
// =====================

func TestCreatePO_EmptyItems(t *testing.T) {
	store := defaultPOStore(uuid.New(), uuid.New())
	svc := newTestPOService(store)

	_, err := svc.Create(context.Background(), CreatePurchaseOrderRequest{
		RequesterID:   uuid.New(),
		RequesterRole: "ADMIN",
		SupplierID:    uuid.New().String(),
		Items:         nil,
	})
	if !errors.Is(err, ErrPOEmptyItems) {
		t.Fatalf("expected ErrPOEmptyItems, got: %v", err)
	}
}

func TestCreatePO_InvalidSupplierID(t *testing.T) {
	store := defaultPOStore(uuid.New(), uuid.New())
	svc := newTestPOService(store)

	req := basicPOReq(uuid.New(), "ADMIN", uuid.New(), uuid.New())
	req.SupplierID = "not-a-uuid"
	_, err := svc.Create(context.Background(), req)
	if !errors.Is(err, ErrInvalidSupplierID) {
		t.Fatalf("expected ErrInvalidSupplierID, got: %v", err)
	}
}

func TestCreatePO_SupplierNotFound(t *testing.T) {
	ingredientID := uuid.New()
	store := defaultPOStore(uuid.New(), ingredientID) // store knows a different supplier
	svc := newTestPOService(store)

	_, err := svc.Create(context.Background(), basicPOReq(uuid.New(), "ADMIN", uuid.New(), ingredientID))
	if !errors.Is(err, ErrSupplierNotFound) {
		t.Fatalf("expected ErrSupplierNotFound, got: %v", err)
	}
}

func TestCreatePO_IngredientNotFound(t *testing.T) {
	supplierID := uuid.New()
	store := defaultPOStore(supplierID, uuid.New()) // store knows a different ingredient
	svc := newTestPOService(store)

	_, err := svc.Create(context.Background(), basicPOReq(uuid.New(), "ADMIN", supplierID, uuid.New()))
	if !errors.Is(err, ErrIngredientNotFound) {
		t.Fatalf("expected ErrIngredientNotFound, got: %v", err)
	}
}

func TestCreatePO_ZeroQuantity(t *testing.T) {
	supplierID := uuid.New()
	ingredientID := uuid.New()
	store := defaultPOStore(supplierID, ingredientID)
	svc := newTestPOService(store)

	req := basicPOReq(uuid.New(), "ADMIN", supplierID, ingredientID)
	req.Items[0].Quantity = "0"
	_, err := svc.Create(context.Background(), req)
	if !errors.Is(err, ErrPOInvalidQuantity) {
		t.Fatalf("expected ErrPOInvalidQuantity, got: %v", err)
	}
}

func TestCreatePO_NegativeUnitPrice(t *testing.T) {
	supplierID := uuid.New()
	ingredientID := uuid.New()
	store := defaultPOStore(supplierID, ingredientID)
	svc := newTestPOService(store)

	req := basicPOReq(uuid.New(), "ADMIN", supplierID, ingredientID)
	req.Items[0].UnitPrice = "-5"
	_, err := svc.Create(context.Background(), req)
	if !errors.Is(err, ErrPOInvalidUnitPrice) {
		t.Fatalf("expected ErrPOInvalidUnitPrice, got: %v", err)
	}
}

// =====================
// Approval policy tests
// =====================

func TestCreatePO_AdminAutoApproved(t *testing.T) {
	supplierID := uuid.New()
	ingredientID := uuid.New()
	requesterID := uuid.New()
	store := defaultPOStore(supplierID, ingredientID)

	var captured database.CreatePurchaseOrderParams
	store.createPOFn = func(ctx context.Context, arg database.CreatePurchaseOrderParams) (database.PurchaseOrder, error) {
		captured = arg
		return database.PurchaseOrder{
			ID: uuid.New(), SupplierID: arg.SupplierID, RequesterID: arg.RequesterID,
			ApproverID: arg.ApproverID, Status: arg.Status,
			TotalAmount: arg.TotalAmount, AutoApproved: arg.AutoApproved,
		}, nil
	}

	svc := newTestPOService(store)
	result, err := svc.Create(context.Background(), basicPOReq(requesterID, "ADMIN", supplierID, ingredientID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.Status != database.PurchaseOrderStatusAPPROVED {
		t.Errorf("status: got %v, want APPROVED", captured.Status)
	}
	if !captured.AutoApproved {
		t.Error("auto_approved should be true for admin requesters")
	}
	if !captured.ApproverID.Valid || captured.ApproverID.Bytes != requesterID {
		t.Error("approver should be the admin requester")
	}
	// total = 10 * 12000 = 120000
	if !numericEquals(result.PurchaseOrder.TotalAmount, "120000.00") {
		t.Errorf("total: got %v, want 120000.00", numericToDecimal(result.PurchaseOrder.TotalAmount))
	}
}

func TestCreatePO_KitchenWithPermissionNoCeiling(t *testing.T) {
	supplierID := uuid.New()
	ingredientID := uuid.New()
	requesterID := uuid.New()
	store := defaultPOStore(supplierID, ingredientID)
	store.getKitchenPermissionFn = func(ctx context.Context, userID uuid.UUID) (database.KitchenPermission, error) {
		return database.KitchenPermission{
			UserID:         requesterID,
			CanAutoApprove: true,
			// MaxOrderValue left invalid: no ceiling
		}, nil
	}

	var captured database.CreatePurchaseOrderParams
	store.createPOFn = func(ctx context.Context, arg database.CreatePurchaseOrderParams) (database.PurchaseOrder, error) {
		captured = arg
		return database.PurchaseOrder{ID: uuid.New(), Status: arg.Status, AutoApproved: arg.AutoApproved}, nil
	}

	svc := newTestPOService(store)
	if _, err := svc.Create(context.Background(), basicPOReq(requesterID, "KITCHEN", supplierID, ingredientID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.Status != database.PurchaseOrderStatusAPPROVED {
		t.Errorf("status: got %v, want APPROVED", captured.Status)
	}
	if !captured.AutoApproved {
		t.Error("auto_approved should be true")
	}
}

func TestCreatePO_KitchenWithinCeiling(t *testing.T) {
	supplierID := uuid.New()
	ingredientID := uuid.New()
	requesterID := uuid.New()
	store := defaultPOStore(supplierID, ingredientID)
	store.getKitchenPermissionFn = func(ctx context.Context, userID uuid.UUID) (database.KitchenPermission, error) {
		return database.KitchenPermission{
			UserID:         requesterID,
			CanAutoApprove: true,
			MaxOrderValue:  makeNumeric("150000.00"),
		}, nil
	}

	var captured database.CreatePurchaseOrderParams
	store.createPOFn = func(ctx context.Context, arg database.CreatePurchaseOrderParams) (database.PurchaseOrder, error) {
		captured = arg
		return database.PurchaseOrder{ID: uuid.New(), Status: arg.Status, AutoApproved: arg.AutoApproved}, nil
	}

	svc := newTestPOService(store)
	// total = 120000, ceiling = 150000
	if _, err := svc.Create(context.Background(), basicPOReq(requesterID, "KITCHEN", supplierID, ingredientID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.Status != database.PurchaseOrderStatusAPPROVED {
		t.Errorf("status: got %v, want APPROVED", captured.Status)
	}
}

func TestCreatePO_KitchenOverCeiling(t *testing.T) {
	supplierID := uuid.New()
	ingredientID := uuid.New()
	requesterID := uuid.New()
	store := defaultPOStore(supplierID, ingredientID)
	store.getKitchenPermissionFn = func(ctx context.Context, userID uuid.UUID) (database.KitchenPermission, error) {
		return database.KitchenPermission{
			UserID:         requesterID,
			CanAutoApprove: true,
			MaxOrderValue:  makeNumeric("100000.00"),
		}, nil
	}

	var captured database.CreatePurchaseOrderParams
	store.createPOFn = func(ctx context.Context, arg database.CreatePurchaseOrderParams) (database.PurchaseOrder, error) {
		captured = arg
		return database.PurchaseOrder{ID: uuid.New(), Status: arg.Status, AutoApproved: arg.AutoApproved}, nil
	}

	svc := newTestPOService(store)
	// total = 120000, ceiling = 100000: needs manual approval
	if _, err := svc.Create(context.Background(), basicPOReq(requesterID, "KITCHEN", supplierID, ingredientID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.Status != database.PurchaseOrderStatusPENDING {
		t.Errorf("status: got %v, want PENDING", captured.Status)
	}
	if captured.AutoApproved {
		t.Error("auto_approved should be false over the ceiling")
	}
	if captured.ApproverID.Valid {
		t.Error("approver should be unset for pending orders")
	}
}

func TestCreatePO_KitchenWithoutPermissionRow(t *testing.T) {
	supplierID := uuid.New()
	ingredientID := uuid.New()
	store := defaultPOStore(supplierID, ingredientID)

	var captured database.CreatePurchaseOrderParams
	store.createPOFn = func(ctx context.Context, arg database.CreatePurchaseOrderParams) (database.PurchaseOrder, error) {
		captured = arg
		return database.PurchaseOrder{ID: uuid.New(), Status: arg.Status}, nil
	}

	svc := newTestPOService(store)
	if _, err := svc.Create(context.Background(), basicPOReq(uuid.New(), "KITCHEN", supplierID, ingredientID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.Status != database.PurchaseOrderStatusPENDING {
		t.Errorf("status: got %v, want PENDING", captured.Status)
	}
}

// =====================
// Transition tests
// =====================

func pendingPO(id uuid.UUID) database.PurchaseOrder {
	return database.PurchaseOrder{
		ID:          id,
		SupplierID:  uuid.New(),
		RequesterID: uuid.New(),
		Status:      database.PurchaseOrderStatusPENDING,
		TotalAmount: makeNumeric("120000.00"),
	}
}

func TestTransitionPO_NotFound(t *testing.T) {
	store := defaultPOStore(uuid.New(), uuid.New())
	store.getPOForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		return database.PurchaseOrder{}, pgx.ErrNoRows
	}

	svc := newTestPOService(store)
	_, err := svc.Transition(context.Background(), TransitionPurchaseOrderRequest{
		ID:        uuid.New(),
		NewStatus: database.PurchaseOrderStatusAPPROVED,
		ActorID:   uuid.New(),
	})
	if !errors.Is(err, ErrPONotFound) {
		t.Fatalf("expected ErrPONotFound, got: %v", err)
	}
}

func TestTransitionPO_InvalidTransition(t *testing.T) {
	poID := uuid.New()
	store := defaultPOStore(uuid.New(), uuid.New())
	store.getPOForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		return pendingPO(poID), nil
	}

	svc := newTestPOService(store)
	// PENDING -> COMPLETED skips the whole lifecycle
	_, err := svc.Transition(context.Background(), TransitionPurchaseOrderRequest{
		ID:        poID,
		NewStatus: database.PurchaseOrderStatusCOMPLETED,
		ActorID:   uuid.New(),
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got: %v", err)
	}
}

func TestTransitionPO_TerminalStateFrozen(t *testing.T) {
	poID := uuid.New()
	store := defaultPOStore(uuid.New(), uuid.New())
	store.getPOForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		po := pendingPO(poID)
		po.Status = database.PurchaseOrderStatusCANCELLED
		return po, nil
	}

	svc := newTestPOService(store)
	_, err := svc.Transition(context.Background(), TransitionPurchaseOrderRequest{
		ID:        poID,
		NewStatus: database.PurchaseOrderStatusAPPROVED,
		ActorID:   uuid.New(),
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got: %v", err)
	}
}

func TestTransitionPO_ApproveSetsApprover(t *testing.T) {
	poID := uuid.New()
	actorID := uuid.New()
	store := defaultPOStore(uuid.New(), uuid.New())
	store.getPOForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		return pendingPO(poID), nil
	}

	var captured database.UpdatePurchaseOrderStatusParams
	store.updatePOStatusFn = func(ctx context.Context, arg database.UpdatePurchaseOrderStatusParams) (database.PurchaseOrder, error) {
		captured = arg
		po := pendingPO(poID)
		po.Status = arg.Status
		po.ApproverID = arg.ApproverID
		return po, nil
	}

	svc := newTestPOService(store)
	updated, err := svc.Transition(context.Background(), TransitionPurchaseOrderRequest{
		ID:        poID,
		NewStatus: database.PurchaseOrderStatusAPPROVED,
		ActorID:   actorID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.OldStatus != database.PurchaseOrderStatusPENDING {
		t.Errorf("old status: got %v, want PENDING", captured.OldStatus)
	}
	if !captured.ApproverID.Valid || captured.ApproverID.Bytes != actorID {
		t.Error("approver should be the acting admin")
	}
	if updated.Status != database.PurchaseOrderStatusAPPROVED {
		t.Errorf("status: got %v, want APPROVED", updated.Status)
	}
}

func TestTransitionPO_CancelRecordsReason(t *testing.T) {
	poID := uuid.New()
	store := defaultPOStore(uuid.New(), uuid.New())
	store.getPOForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		return pendingPO(poID), nil
	}

	var captured database.UpdatePurchaseOrderStatusParams
	store.updatePOStatusFn = func(ctx context.Context, arg database.UpdatePurchaseOrderStatusParams) (database.PurchaseOrder, error) {
		captured = arg
		po := pendingPO(poID)
		po.Status = arg.Status
		return po, nil
	}

	svc := newTestPOService(store)
	_, err := svc.Transition(context.Background(), TransitionPurchaseOrderRequest{
		ID:           poID,
		NewStatus:    database.PurchaseOrderStatusCANCELLED,
		ActorID:      uuid.New(),
		RejectReason: "supplier out of stock",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !captured.RejectReason.Valid || captured.RejectReason.String != "supplier out of stock" {
		t.Errorf("reject_reason: got %v", captured.RejectReason)
	}
}

func TestTransitionPO_DeliveryPostsStockAndLedger(t *testing.T) {
	poID := uuid.New()
	actorID := uuid.New()
	ingredientID := uuid.New()
	store := defaultPOStore(uuid.New(), ingredientID)

	store.getPOForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		po := pendingPO(poID)
		po.Status = database.PurchaseOrderStatusAPPROVED
		return po, nil
	}
	store.listPOItemsFn = func(ctx context.Context, id uuid.UUID) ([]database.PurchaseOrderItem, error) {
		return []database.PurchaseOrderItem{
			{
				ID:              uuid.New(),
				PurchaseOrderID: poID,
				IngredientID:    ingredientID,
				Quantity:        makeNumeric("10"),
				UnitPrice:       makeNumeric("12000.00"),
				Subtotal:        makeNumeric("120000.00"),
			},
		}, nil
	}
	store.getIngredientForUpdFn = func(ctx context.Context, id uuid.UUID) (database.Ingredient, error) {
		return database.Ingredient{ID: ingredientID, Name: "Beras", Unit: "kg", IsActive: true}, nil
	}

	var ledgerRows []database.CreateInventoryTransactionParams
	store.createInvTxFn = func(ctx context.Context, arg database.CreateInventoryTransactionParams) (database.InventoryTransaction, error) {
		ledgerRows = append(ledgerRows, arg)
		return database.InventoryTransaction{ID: uuid.New()}, nil
	}

	var stockDeltas []database.AddIngredientStockParams
	store.addStockFn = func(ctx context.Context, arg database.AddIngredientStockParams) (database.Ingredient, error) {
		stockDeltas = append(stockDeltas, arg)
		return database.Ingredient{ID: arg.ID}, nil
	}

	var captured database.UpdatePurchaseOrderStatusParams
	store.updatePOStatusFn = func(ctx context.Context, arg database.UpdatePurchaseOrderStatusParams) (database.PurchaseOrder, error) {
		captured = arg
		po := pendingPO(poID)
		po.Status = arg.Status
		po.ActualDeliveryDate = arg.ActualDeliveryDate
		return po, nil
	}

	svc := newTestPOService(store)
	updated, err := svc.Transition(context.Background(), TransitionPurchaseOrderRequest{
		ID:        poID,
		NewStatus: database.PurchaseOrderStatusDELIVERED,
		ActorID:   actorID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Exactly one PURCHASE ledger row for the single line item.
	if len(ledgerRows) != 1 {
		t.Fatalf("expected 1 ledger row, got %d", len(ledgerRows))
	}
	row := ledgerRows[0]
	if row.Type != database.InventoryTransactionTypePURCHASE {
		t.Errorf("ledger type: got %v, want PURCHASE", row.Type)
	}
	if !numericEquals(row.Quantity, "10") {
		t.Errorf("ledger quantity: got %v, want 10", numericToDecimal(row.Quantity))
	}
	if !row.ReferenceID.Valid || row.ReferenceID.Bytes != poID {
		t.Error("ledger reference should be the purchase order")
	}
	if !row.CreatedBy.Valid || row.CreatedBy.Bytes != actorID {
		t.Error("ledger created_by should be the acting user")
	}

	// Stock counter bumped by the delivered quantity.
	if len(stockDeltas) != 1 {
		t.Fatalf("expected 1 stock delta, got %d", len(stockDeltas))
	}
	if stockDeltas[0].ID != ingredientID {
		t.Error("stock delta targets the wrong ingredient")
	}
	if !numericEquals(stockDeltas[0].Delta, "10") {
		t.Errorf("stock delta: got %v, want 10", numericToDecimal(stockDeltas[0].Delta))
	}

	if !captured.ActualDeliveryDate.Valid {
		t.Error("actual_delivery_date should be stamped on delivery")
	}
	if updated.Status != database.PurchaseOrderStatusDELIVERED {
		t.Errorf("status: got %v, want DELIVERED", updated.Status)
	}
}

func TestTransitionPO_StatusConflict(t *testing.T) {
	poID := uuid.New()
	store := defaultPOStore(uuid.New(), uuid.New())
	store.getPOForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		return pendingPO(poID), nil
	}
	store.updatePOStatusFn = func(ctx context.Context, arg database.UpdatePurchaseOrderStatusParams) (database.PurchaseOrder, error) {
		return database.PurchaseOrder{}, pgx.ErrNoRows
	}

	svc := newTestPOService(store)
	_, err := svc.Transition(context.Background(), TransitionPurchaseOrderRequest{
		ID:        poID,
		NewStatus: database.PurchaseOrderStatusAPPROVED,
		ActorID:   uuid.New(),
	})
	if !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got: %v", err)
	}
}

// =====================
// Update / Delete tests
// =====================

func TestUpdatePO_EditableWhileApproved(t *testing.T) {
	poID := uuid.New()
	supplierID := uuid.New()
	ingredientID := uuid.New()
	store := defaultPOStore(supplierID, ingredientID)
	store.getPOForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		po := pendingPO(poID)
		po.Status = database.PurchaseOrderStatusAPPROVED
		return po, nil
	}
	store.updatePODetailsFn = func(ctx context.Context, arg database.UpdatePurchaseOrderDetailsParams) (database.PurchaseOrder, error) {
		po := pendingPO(poID)
		po.Status = database.PurchaseOrderStatusAPPROVED
		po.SupplierID = arg.SupplierID
		return po, nil
	}
	store.deletePOItemsFn = func(ctx context.Context, id uuid.UUID) error { return nil }
	store.setPOTotalFn = func(ctx context.Context, arg database.SetPurchaseOrderTotalParams) error { return nil }

	svc := newTestPOService(store)
	result, err := svc.Update(context.Background(), UpdatePurchaseOrderRequest{
		ID:         poID,
		SupplierID: supplierID.String(),
		Items: []CreatePurchaseOrderItemRequest{
			{IngredientID: ingredientID.String(), Quantity: "5", UnitPrice: "1000"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PurchaseOrder.Status != database.PurchaseOrderStatusAPPROVED {
		t.Errorf("status: got %v, want APPROVED", result.PurchaseOrder.Status)
	}
}

func TestUpdatePO_NotEditableAfterDelivery(t *testing.T) {
	poID := uuid.New()
	supplierID := uuid.New()
	ingredientID := uuid.New()
	store := defaultPOStore(supplierID, ingredientID)
	store.getPOForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		po := pendingPO(poID)
		po.Status = database.PurchaseOrderStatusDELIVERED
		return po, nil
	}

	svc := newTestPOService(store)
	_, err := svc.Update(context.Background(), UpdatePurchaseOrderRequest{
		ID:         poID,
		SupplierID: supplierID.String(),
		Items: []CreatePurchaseOrderItemRequest{
			{IngredientID: ingredientID.String(), Quantity: "5", UnitPrice: "1000"},
		},
	})
	if !errors.Is(err, ErrPONotEditable) {
		t.Fatalf("expected ErrPONotEditable, got: %v", err)
	}
}

func TestUpdatePO_ReplacesItemsAndTotal(t *testing.T) {
	poID := uuid.New()
	supplierID := uuid.New()
	ingredientID := uuid.New()
	store := defaultPOStore(supplierID, ingredientID)
	store.getPOForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		return pendingPO(poID), nil
	}
	store.updatePODetailsFn = func(ctx context.Context, arg database.UpdatePurchaseOrderDetailsParams) (database.PurchaseOrder, error) {
		po := pendingPO(poID)
		po.SupplierID = arg.SupplierID
		po.Notes = arg.Notes
		return po, nil
	}

	deleted := false
	store.deletePOItemsFn = func(ctx context.Context, id uuid.UUID) error {
		deleted = true
		return nil
	}

	var capturedTotal database.SetPurchaseOrderTotalParams
	store.setPOTotalFn = func(ctx context.Context, arg database.SetPurchaseOrderTotalParams) error {
		capturedTotal = arg
		return nil
	}

	svc := newTestPOService(store)
	result, err := svc.Update(context.Background(), UpdatePurchaseOrderRequest{
		ID:         poID,
		SupplierID: supplierID.String(),
		Items: []CreatePurchaseOrderItemRequest{
			{IngredientID: ingredientID.String(), Quantity: "5", UnitPrice: "2000"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !deleted {
		t.Error("old items should be deleted before re-insert")
	}
	// total = 5 * 2000 = 10000
	if !numericEquals(capturedTotal.TotalAmount, "10000.00") {
		t.Errorf("total: got %v, want 10000.00", numericToDecimal(capturedTotal.TotalAmount))
	}
	if len(result.Items) != 1 {
		t.Errorf("expected 1 item, got %d", len(result.Items))
	}
}

func TestDeletePO_PendingOnly(t *testing.T) {
	poID := uuid.New()
	store := defaultPOStore(uuid.New(), uuid.New())
	store.getPOForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		po := pendingPO(poID)
		po.Status = database.PurchaseOrderStatusDELIVERED
		return po, nil
	}

	svc := newTestPOService(store)
	err := svc.Delete(context.Background(), poID)
	if !errors.Is(err, ErrPONotEditable) {
		t.Fatalf("expected ErrPONotEditable, got: %v", err)
	}
}

func TestDeletePO_Pending(t *testing.T) {
	poID := uuid.New()
	store := defaultPOStore(uuid.New(), uuid.New())
	store.getPOForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		return pendingPO(poID), nil
	}
	store.deletePOItemsFn = func(ctx context.Context, id uuid.UUID) error { return nil }
	store.deletePOFn = func(ctx context.Context, id uuid.UUID) (uuid.UUID, error) { return id, nil }

	svc := newTestPOService(store)
	if err := svc.Delete(context.Background(), poID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
