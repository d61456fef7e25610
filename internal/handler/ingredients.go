package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/warungkita/api/internal/database"
)

// IngredientStore defines the database methods needed by ingredient handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type IngredientStore interface {
	GetIngredient(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	ListIngredients(ctx context.Context) ([]database.Ingredient, error)
	CreateIngredient(ctx context.Context, arg database.CreateIngredientParams) (database.Ingredient, error)
	UpdateIngredient(ctx context.Context, arg database.UpdateIngredientParams) (database.Ingredient, error)
	SoftDeleteIngredient(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// IngredientHandler handles ingredient catalog endpoints. Stock movements go
// through the inventory endpoints, never through these.
type IngredientHandler struct {
	store IngredientStore
}

// NewIngredientHandler creates a new IngredientHandler.
func NewIngredientHandler(store IngredientStore) *IngredientHandler {
	return &IngredientHandler{store: store}
}

// RegisterRoutes registers ingredient endpoints on the given Chi router.
// Expected to be mounted at /ingredients.
func (h *IngredientHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type createIngredientRequest struct {
	Name          string `json:"name"`
	Unit          string `json:"unit"`
	MinStockLevel string `json:"min_stock_level"`
	CostPerUnit   string `json:"cost_per_unit"`
}

type updateIngredientRequest struct {
	Name          string `json:"name"`
	Unit          string `json:"unit"`
	MinStockLevel string `json:"min_stock_level"`
	CostPerUnit   string `json:"cost_per_unit"`
}

type ingredientResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Unit          string    `json:"unit"`
	CurrentStock  string    `json:"current_stock"`
	MinStockLevel string    `json:"min_stock_level"`
	CostPerUnit   string    `json:"cost_per_unit"`
	LowStock      bool      `json:"low_stock"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func dbIngredientToResponse(i database.Ingredient) ingredientResponse {
	current := numericToDecimalValue(i.CurrentStock)
	min := numericToDecimalValue(i.MinStockLevel)
	return ingredientResponse{
		ID:            i.ID,
		Name:          i.Name,
		Unit:          i.Unit,
		CurrentStock:  numericToString(i.CurrentStock),
		MinStockLevel: numericToString(i.MinStockLevel),
		CostPerUnit:   numericToString(i.CostPerUnit),
		LowStock:      current.LessThan(min),
		IsActive:      i.IsActive,
		CreatedAt:     i.CreatedAt,
		UpdatedAt:     i.UpdatedAt,
	}
}

// numericToDecimalValue converts a pgtype.Numeric for comparisons, treating
// NULL as zero.
func numericToDecimalValue(n pgtype.Numeric) decimal.Decimal {
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

// parseNonNegativeAmount parses a decimal field that must be >= 0. Empty means
// zero.
func parseNonNegativeAmount(s, field string) (pgtype.Numeric, error) {
	n := pgtype.Numeric{}
	if s == "" {
		_ = n.Scan("0")
		return n, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return n, errors.New("invalid " + field)
	}
	_ = n.Scan(d.String())
	return n, nil
}

// --- Handlers ---

// List returns all active ingredients.
func (h *IngredientHandler) List(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.store.ListIngredients(r.Context())
	if err != nil {
		log.Printf("ERROR: list ingredients: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]ingredientResponse, len(ingredients))
	for i, ing := range ingredients {
		resp[i] = dbIngredientToResponse(ing)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single ingredient.
func (h *IngredientHandler) Get(w http.ResponseWriter, r *http.Request) {
	ingredientID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ingredient ID"})
		return
	}

	ingredient, err := h.store.GetIngredient(r.Context(), ingredientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "ingredient not found"})
			return
		}
		log.Printf("ERROR: get ingredient: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbIngredientToResponse(ingredient))
}

// Create adds a new ingredient. New ingredients start at zero stock; the
// opening stock arrives through an inventory adjustment so the ledger stays
// complete.
func (h *IngredientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createIngredientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" || req.Unit == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and unit are required"})
		return
	}

	currentStock := pgtype.Numeric{}
	_ = currentStock.Scan("0")
	minStock, err := parseNonNegativeAmount(req.MinStockLevel, "min_stock_level")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	costPerUnit, err := parseNonNegativeAmount(req.CostPerUnit, "cost_per_unit")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ingredient, err := h.store.CreateIngredient(r.Context(), database.CreateIngredientParams{
		Name:          req.Name,
		Unit:          req.Unit,
		CurrentStock:  currentStock,
		MinStockLevel: minStock,
		CostPerUnit:   costPerUnit,
	})
	if err != nil {
		log.Printf("ERROR: create ingredient: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbIngredientToResponse(ingredient))
}

// Update modifies ingredient metadata. current_stock is not editable here.
func (h *IngredientHandler) Update(w http.ResponseWriter, r *http.Request) {
	ingredientID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ingredient ID"})
		return
	}

	var req updateIngredientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" || req.Unit == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and unit are required"})
		return
	}

	minStock, err := parseNonNegativeAmount(req.MinStockLevel, "min_stock_level")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	costPerUnit, err := parseNonNegativeAmount(req.CostPerUnit, "cost_per_unit")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ingredient, err := h.store.UpdateIngredient(r.Context(), database.UpdateIngredientParams{
		ID:            ingredientID,
		Name:          req.Name,
		Unit:          req.Unit,
		MinStockLevel: minStock,
		CostPerUnit:   costPerUnit,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "ingredient not found"})
			return
		}
		log.Printf("ERROR: update ingredient: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbIngredientToResponse(ingredient))
}

// Delete soft-deletes an ingredient. The ledger keeps its history.
func (h *IngredientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ingredientID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ingredient ID"})
		return
	}

	_, err = h.store.SoftDeleteIngredient(r.Context(), ingredientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "ingredient not found"})
			return
		}
		log.Printf("ERROR: delete ingredient: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
