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

// SupplierStore defines the database methods needed by supplier handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type SupplierStore interface {
	GetSupplier(ctx context.Context, id uuid.UUID) (database.Supplier, error)
	ListSuppliers(ctx context.Context) ([]database.Supplier, error)
	CreateSupplier(ctx context.Context, arg database.CreateSupplierParams) (database.Supplier, error)
	UpdateSupplier(ctx context.Context, arg database.UpdateSupplierParams) (database.Supplier, error)
	SoftDeleteSupplier(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// SupplierHandler handles supplier catalog endpoints.
type SupplierHandler struct {
	store SupplierStore
}

// NewSupplierHandler creates a new SupplierHandler.
func NewSupplierHandler(store SupplierStore) *SupplierHandler {
	return &SupplierHandler{store: store}
}

// RegisterRoutes registers supplier endpoints on the given Chi router.
// Expected to be mounted at /suppliers.
func (h *SupplierHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type supplierRequest struct {
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	Rating        string `json:"rating"`
}

type supplierResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	ContactPerson *string   `json:"contact_person"`
	Phone         *string   `json:"phone"`
	Address       *string   `json:"address"`
	Rating        *string   `json:"rating"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func dbSupplierToResponse(s database.Supplier) supplierResponse {
	resp := supplierResponse{
		ID:        s.ID,
		Name:      s.Name,
		IsActive:  s.IsActive,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if s.ContactPerson.Valid {
		resp.ContactPerson = &s.ContactPerson.String
	}
	if s.Phone.Valid {
		resp.Phone = &s.Phone.String
	}
	if s.Address.Valid {
		resp.Address = &s.Address.String
	}
	if s.Rating.Valid {
		r := numericToString(s.Rating)
		resp.Rating = &r
	}
	return resp
}

// parseSupplierRequest validates the shared create/update payload.
func parseSupplierRequest(req supplierRequest) (database.CreateSupplierParams, error) {
	if req.Name == "" {
		return database.CreateSupplierParams{}, errors.New("name is required")
	}

	params := database.CreateSupplierParams{Name: req.Name}
	if req.ContactPerson != "" {
		params.ContactPerson = pgtype.Text{String: req.ContactPerson, Valid: true}
	}
	if req.Phone != "" {
		params.Phone = pgtype.Text{String: req.Phone, Valid: true}
	}
	if req.Address != "" {
		params.Address = pgtype.Text{String: req.Address, Valid: true}
	}
	if req.Rating != "" {
		d, err := decimal.NewFromString(req.Rating)
		if err != nil || d.IsNegative() || d.GreaterThan(decimal.NewFromInt(5)) {
			return database.CreateSupplierParams{}, errors.New("rating must be between 0 and 5")
		}
		_ = params.Rating.Scan(d.StringFixed(2))
	}
	return params, nil
}

// --- Handlers ---

// List returns all active suppliers.
func (h *SupplierHandler) List(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.store.ListSuppliers(r.Context())
	if err != nil {
		log.Printf("ERROR: list suppliers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]supplierResponse, len(suppliers))
	for i, s := range suppliers {
		resp[i] = dbSupplierToResponse(s)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single supplier.
func (h *SupplierHandler) Get(w http.ResponseWriter, r *http.Request) {
	supplierID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid supplier ID"})
		return
	}

	supplier, err := h.store.GetSupplier(r.Context(), supplierID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "supplier not found"})
			return
		}
		log.Printf("ERROR: get supplier: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbSupplierToResponse(supplier))
}

// Create adds a new supplier.
func (h *SupplierHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params, err := parseSupplierRequest(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	supplier, err := h.store.CreateSupplier(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: create supplier: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbSupplierToResponse(supplier))
}

// Update modifies an existing supplier.
func (h *SupplierHandler) Update(w http.ResponseWriter, r *http.Request) {
	supplierID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid supplier ID"})
		return
	}

	var req supplierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params, err := parseSupplierRequest(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	supplier, err := h.store.UpdateSupplier(r.Context(), database.UpdateSupplierParams{
		ID:            supplierID,
		Name:          params.Name,
		ContactPerson: params.ContactPerson,
		Phone:         params.Phone,
		Address:       params.Address,
		Rating:        params.Rating,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "supplier not found"})
			return
		}
		log.Printf("ERROR: update supplier: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbSupplierToResponse(supplier))
}

// Delete soft-deletes a supplier. Historical purchase orders keep their
// reference.
func (h *SupplierHandler) Delete(w http.ResponseWriter, r *http.Request) {
	supplierID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid supplier ID"})
		return
	}

	_, err = h.store.SoftDeleteSupplier(r.Context(), supplierID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "supplier not found"})
			return
		}
		log.Printf("ERROR: delete supplier: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
