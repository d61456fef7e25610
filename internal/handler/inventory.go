package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/warungkita/api/internal/database"
	"github.com/warungkita/api/internal/middleware"
	"github.com/warungkita/api/internal/service"
)

// InventoryStore defines the database methods needed by inventory handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type InventoryStore interface {
	GetIngredientForUpdate(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	CreateInventoryTransaction(ctx context.Context, arg database.CreateInventoryTransactionParams) (database.InventoryTransaction, error)
	AddIngredientStock(ctx context.Context, arg database.AddIngredientStockParams) (database.Ingredient, error)
	ListInventoryTransactions(ctx context.Context, arg database.ListInventoryTransactionsParams) ([]database.InventoryTransaction, error)
}

// NewInventoryStore creates an InventoryStore from a DBTX (pool or tx).
type NewInventoryStore func(db database.DBTX) InventoryStore

// InventoryHandler handles the stock ledger endpoints.
type InventoryHandler struct {
	store    InventoryStore
	pool     service.TxBeginner
	newStore NewInventoryStore
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(store InventoryStore, pool service.TxBeginner, newStore NewInventoryStore) *InventoryHandler {
	return &InventoryHandler{store: store, pool: pool, newStore: newStore}
}

// RegisterRoutes registers inventory endpoints on the given Chi router.
// Expected to be mounted at /inventory.
func (h *InventoryHandler) RegisterRoutes(r chi.Router) {
	r.Post("/adjustments", h.Adjust)
	r.Get("/transactions", h.ListTransactions)
}

// --- Request / Response types ---

type adjustmentRequest struct {
	IngredientID string `json:"ingredient_id"`
	Type         string `json:"type"`
	Quantity     string `json:"quantity"`
	UnitPrice    string `json:"unit_price"`
	Notes        string `json:"notes"`
}

type inventoryTransactionResponse struct {
	ID              uuid.UUID `json:"id"`
	IngredientID    uuid.UUID `json:"ingredient_id"`
	Quantity        string    `json:"quantity"`
	Type            string    `json:"type"`
	UnitPrice       *string   `json:"unit_price"`
	ReferenceID     *string   `json:"reference_id"`
	ReferenceType   *string   `json:"reference_type"`
	Notes           *string   `json:"notes"`
	CreatedBy       *string   `json:"created_by"`
	TransactionDate time.Time `json:"transaction_date"`
}

// adjustmentResponse pairs the new ledger row with the updated counter so
// clients see both sides of the write.
type adjustmentResponse struct {
	Transaction inventoryTransactionResponse `json:"transaction"`
	Ingredient  ingredientResponse           `json:"ingredient"`
}

type transactionListResponse struct {
	Transactions []inventoryTransactionResponse `json:"transactions"`
	Limit        int                            `json:"limit"`
	Offset       int                            `json:"offset"`
}

func dbInventoryTransactionToResponse(t database.InventoryTransaction) inventoryTransactionResponse {
	resp := inventoryTransactionResponse{
		ID:              t.ID,
		IngredientID:    t.IngredientID,
		Quantity:        numericToString(t.Quantity),
		Type:            string(t.Type),
		TransactionDate: t.TransactionDate,
	}
	if t.UnitPrice.Valid {
		s := numericToString(t.UnitPrice)
		resp.UnitPrice = &s
	}
	if t.ReferenceID.Valid {
		s := uuid.UUID(t.ReferenceID.Bytes).String()
		resp.ReferenceID = &s
	}
	if t.ReferenceType.Valid {
		resp.ReferenceType = &t.ReferenceType.String
	}
	if t.Notes.Valid {
		resp.Notes = &t.Notes.String
	}
	if t.CreatedBy.Valid {
		s := uuid.UUID(t.CreatedBy.Bytes).String()
		resp.CreatedBy = &s
	}
	return resp
}

// isManualAdjustmentType reports whether the type can be posted through the
// adjustment endpoint. PURCHASE rows only come from purchase order deliveries.
func isManualAdjustmentType(t database.InventoryTransactionType) bool {
	switch t {
	case database.InventoryTransactionTypeUSAGE,
		database.InventoryTransactionTypeADJUSTMENTIN,
		database.InventoryTransactionTypeADJUSTMENTOUT,
		database.InventoryTransactionTypeWASTE:
		return true
	}
	return false
}

func isValidTransactionType(t database.InventoryTransactionType) bool {
	return t == database.InventoryTransactionTypePURCHASE || isManualAdjustmentType(t)
}

// --- Handlers ---

// Adjust handles POST /inventory/adjustments. It appends a ledger row and
// applies the matching delta to the stock counter in one transaction, so the
// two can never diverge.
func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req adjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	ingredientID, err := uuid.Parse(req.IngredientID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ingredient_id"})
		return
	}

	txType := database.InventoryTransactionType(req.Type)
	if !isManualAdjustmentType(txType) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type must be one of USAGE, WASTE, ADJUSTMENT_IN, ADJUSTMENT_OUT"})
		return
	}

	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil || !qty.IsPositive() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must be > 0"})
		return
	}

	unitPrice := pgtype.Numeric{}
	if req.UnitPrice != "" {
		d, err := decimal.NewFromString(req.UnitPrice)
		if err != nil || d.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid unit_price"})
			return
		}
		_ = unitPrice.Scan(d.StringFixed(2))
	}

	// Quantities are stored signed: inbound positive, outbound negative.
	delta := qty
	if txType != database.InventoryTransactionTypeADJUSTMENTIN {
		delta = qty.Neg()
	}

	// Begin transaction BEFORE reading stock to prevent TOCTOU races.
	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context()) //nolint:errcheck

	store := h.newStore(tx)

	ingredient, err := store.GetIngredientForUpdate(r.Context(), ingredientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "ingredient not found"})
			return
		}
		log.Printf("ERROR: lock ingredient: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// Outbound adjustments may never drive the counter below zero.
	newStock := numericToDecimalValue(ingredient.CurrentStock).Add(delta)
	if newStock.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "insufficient stock"})
		return
	}

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	deltaNumeric := pgtype.Numeric{}
	_ = deltaNumeric.Scan(delta.String())

	transaction, err := store.CreateInventoryTransaction(r.Context(), database.CreateInventoryTransactionParams{
		IngredientID: pgtype.UUID{Bytes: ingredientID, Valid: true},
		Quantity:     deltaNumeric,
		Type:         txType,
		UnitPrice:    unitPrice,
		Notes:        notes,
		CreatedBy:    pgtype.UUID{Bytes: claims.UserID, Valid: true},
	})
	if err != nil {
		log.Printf("ERROR: create inventory transaction: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	updated, err := store.AddIngredientStock(r.Context(), database.AddIngredientStockParams{
		ID:    ingredientID,
		Delta: deltaNumeric,
	})
	if err != nil {
		log.Printf("ERROR: add ingredient stock: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit adjustment tx: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, adjustmentResponse{
		Transaction: dbInventoryTransactionToResponse(transaction),
		Ingredient:  dbIngredientToResponse(updated),
	})
}

// ListTransactions handles GET /inventory/transactions.
func (h *InventoryHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 200 {
		limit = 200
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListInventoryTransactionsParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	}

	if s := r.URL.Query().Get("ingredient_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ingredient_id filter"})
			return
		}
		params.IngredientID = pgtype.UUID{Bytes: id, Valid: true}
	}
	if s := r.URL.Query().Get("type"); s != "" {
		if !isValidTransactionType(database.InventoryTransactionType(s)) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid type filter"})
			return
		}
		params.Type = s
	}
	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date format, use YYYY-MM-DD"})
			return
		}
		params.StartDate = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date format, use YYYY-MM-DD"})
			return
		}
		params.EndDate = pgtype.Timestamptz{Time: t, Valid: true}
	}

	transactions, err := h.store.ListInventoryTransactions(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list inventory transactions: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]inventoryTransactionResponse, len(transactions))
	for i, t := range transactions {
		resp[i] = dbInventoryTransactionToResponse(t)
	}

	writeJSON(w, http.StatusOK, transactionListResponse{
		Transactions: resp,
		Limit:        limit,
		Offset:       offset,
	})
}
