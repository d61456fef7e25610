package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/warungkita/api/internal/database"
	"github.com/warungkita/api/internal/handler"
	"github.com/warungkita/api/internal/middleware"
)

// --- Mock store ---

type mockInventoryStore struct {
	ingredients  map[uuid.UUID]database.Ingredient
	transactions []database.InventoryTransaction
}

func newMockInventoryStore() *mockInventoryStore {
	return &mockInventoryStore{ingredients: make(map[uuid.UUID]database.Ingredient)}
}

func (m *mockInventoryStore) addIngredient(stock int64) database.Ingredient {
	now := time.Now()
	i := database.Ingredient{
		ID:            uuid.New(),
		Name:          "Minyak Goreng",
		Unit:          "liter",
		CurrentStock:  decimalToNumeric(decimal.NewFromInt(stock)),
		MinStockLevel: decimalToNumeric(decimal.NewFromInt(5)),
		CostPerUnit:   decimalToNumeric(decimal.NewFromInt(18000)),
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.ingredients[i.ID] = i
	return i
}

func (m *mockInventoryStore) GetIngredientForUpdate(_ context.Context, id uuid.UUID) (database.Ingredient, error) {
	i, ok := m.ingredients[id]
	if !ok {
		return database.Ingredient{}, pgx.ErrNoRows
	}
	return i, nil
}

func (m *mockInventoryStore) CreateInventoryTransaction(_ context.Context, arg database.CreateInventoryTransactionParams) (database.InventoryTransaction, error) {
	t := database.InventoryTransaction{
		ID:              uuid.New(),
		IngredientID:    uuid.UUID(arg.IngredientID.Bytes),
		Quantity:        arg.Quantity,
		Type:            arg.Type,
		UnitPrice:       arg.UnitPrice,
		ReferenceID:     arg.ReferenceID,
		ReferenceType:   arg.ReferenceType,
		Notes:           arg.Notes,
		CreatedBy:       arg.CreatedBy,
		TransactionDate: time.Now(),
	}
	m.transactions = append(m.transactions, t)
	return t, nil
}

func (m *mockInventoryStore) AddIngredientStock(_ context.Context, arg database.AddIngredientStockParams) (database.Ingredient, error) {
	i, ok := m.ingredients[arg.ID]
	if !ok {
		return database.Ingredient{}, pgx.ErrNoRows
	}
	current, _ := numericToDecimal(i.CurrentStock)
	delta, _ := numericToDecimal(arg.Delta)
	i.CurrentStock = decimalToNumeric(current.Add(delta))
	i.UpdatedAt = time.Now()
	m.ingredients[arg.ID] = i
	return i, nil
}

func (m *mockInventoryStore) ListInventoryTransactions(_ context.Context, arg database.ListInventoryTransactionsParams) ([]database.InventoryTransaction, error) {
	var result []database.InventoryTransaction
	for _, t := range m.transactions {
		if arg.IngredientID.Valid && t.IngredientID != uuid.UUID(arg.IngredientID.Bytes) {
			continue
		}
		if arg.Type != "" && string(t.Type) != arg.Type {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

// --- Helpers ---

func setupInventoryRouter(store *mockInventoryStore) *chi.Mux {
	newStore := func(_ database.DBTX) handler.InventoryStore { return store }
	h := handler.NewInventoryHandler(store, &mockPool{}, newStore)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/inventory", h.RegisterRoutes)
	return r
}

func adjustBody(ingredientID uuid.UUID, txType, qty string) map[string]string {
	return map[string]string{
		"ingredient_id": ingredientID.String(),
		"type":          txType,
		"quantity":      qty,
	}
}

// --- Adjustment tests ---

func TestAdjust_AdjustmentInIncrementsStock(t *testing.T) {
	store := newMockInventoryStore()
	ing := store.addIngredient(10)

	router := setupInventoryRouter(store)

	rr := doAuthRequest(t, router, "POST", "/inventory/adjustments",
		adjustBody(ing.ID, "ADJUSTMENT_IN", "4"), kitchenClaims())

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeOrderResponse(t, rr)
	tx := resp["transaction"].(map[string]interface{})
	if tx["type"] != "ADJUSTMENT_IN" {
		t.Errorf("type: got %v, want ADJUSTMENT_IN", tx["type"])
	}
	if tx["quantity"] != "4.00" {
		t.Errorf("quantity: got %v, want 4.00", tx["quantity"])
	}
	ingResp := resp["ingredient"].(map[string]interface{})
	if ingResp["current_stock"] != "14.00" {
		t.Errorf("current_stock: got %v, want 14.00", ingResp["current_stock"])
	}
	if len(store.transactions) != 1 {
		t.Errorf("ledger rows: got %d, want 1", len(store.transactions))
	}
}

func TestAdjust_UsageDecrementsStock(t *testing.T) {
	store := newMockInventoryStore()
	ing := store.addIngredient(10)

	router := setupInventoryRouter(store)

	rr := doAuthRequest(t, router, "POST", "/inventory/adjustments",
		adjustBody(ing.ID, "USAGE", "3"), kitchenClaims())

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeOrderResponse(t, rr)
	tx := resp["transaction"].(map[string]interface{})
	// Outbound rows are stored with a negative signed quantity.
	if tx["quantity"] != "-3.00" {
		t.Errorf("quantity: got %v, want -3.00", tx["quantity"])
	}
	ingResp := resp["ingredient"].(map[string]interface{})
	if ingResp["current_stock"] != "7.00" {
		t.Errorf("current_stock: got %v, want 7.00", ingResp["current_stock"])
	}
}

func TestAdjust_InsufficientStock(t *testing.T) {
	store := newMockInventoryStore()
	ing := store.addIngredient(2)

	router := setupInventoryRouter(store)

	rr := doAuthRequest(t, router, "POST", "/inventory/adjustments",
		adjustBody(ing.ID, "WASTE", "5"), kitchenClaims())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
	resp := decodeOrderResponse(t, rr)
	if resp["error"] != "insufficient stock" {
		t.Errorf("error: got %v, want insufficient stock", resp["error"])
	}
	// No ledger row and no counter movement on rejection.
	if len(store.transactions) != 0 {
		t.Errorf("ledger rows: got %d, want 0", len(store.transactions))
	}
	got, _ := numericToDecimal(store.ingredients[ing.ID].CurrentStock)
	if got.String() != "2" {
		t.Errorf("current_stock: got %v, want 2", got)
	}
}

func TestAdjust_PurchaseTypeRejected(t *testing.T) {
	store := newMockInventoryStore()
	ing := store.addIngredient(10)

	router := setupInventoryRouter(store)

	// PURCHASE rows only come from purchase order deliveries.
	rr := doAuthRequest(t, router, "POST", "/inventory/adjustments",
		adjustBody(ing.ID, "PURCHASE", "5"), kitchenClaims())

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestAdjust_ZeroQuantity(t *testing.T) {
	store := newMockInventoryStore()
	ing := store.addIngredient(10)

	router := setupInventoryRouter(store)

	rr := doAuthRequest(t, router, "POST", "/inventory/adjustments",
		adjustBody(ing.ID, "USAGE", "0"), kitchenClaims())

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestAdjust_IngredientNotFound(t *testing.T) {
	router := setupInventoryRouter(newMockInventoryStore())

	rr := doAuthRequest(t, router, "POST", "/inventory/adjustments",
		adjustBody(uuid.New(), "USAGE", "3"), kitchenClaims())

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

// --- Transaction list tests ---

func TestListInventoryTransactions_IngredientFilter(t *testing.T) {
	store := newMockInventoryStore()
	a := store.addIngredient(10)
	b := store.addIngredient(10)

	router := setupInventoryRouter(store)

	doAuthRequest(t, router, "POST", "/inventory/adjustments", adjustBody(a.ID, "USAGE", "1"), kitchenClaims())
	doAuthRequest(t, router, "POST", "/inventory/adjustments", adjustBody(b.ID, "USAGE", "2"), kitchenClaims())

	rr := doAuthRequest(t, router, "GET", "/inventory/transactions?ingredient_id="+a.ID.String(), nil, kitchenClaims())
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeOrderResponse(t, rr)
	transactions := resp["transactions"].([]interface{})
	if len(transactions) != 1 {
		t.Errorf("transactions: got %d, want 1", len(transactions))
	}
}

func TestListInventoryTransactions_InvalidTypeFilter(t *testing.T) {
	router := setupInventoryRouter(newMockInventoryStore())

	rr := doAuthRequest(t, router, "GET", "/inventory/transactions?type=THEFT", nil, kitchenClaims())

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestListInventoryTransactions_InvalidDateFilter(t *testing.T) {
	router := setupInventoryRouter(newMockInventoryStore())

	rr := doAuthRequest(t, router, "GET", "/inventory/transactions?start_date=yesterday", nil, kitchenClaims())

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
