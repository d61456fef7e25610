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
	"github.com/warungkita/api/internal/database"
	"github.com/warungkita/api/internal/middleware"
	"github.com/warungkita/api/internal/service"
)

// PurchaseOrderServicer defines the service methods needed by purchase order
// handlers. Satisfied by *service.PurchaseOrderService.
type PurchaseOrderServicer interface {
	Create(ctx context.Context, req service.CreatePurchaseOrderRequest) (*service.CreatePurchaseOrderResult, error)
	Transition(ctx context.Context, req service.TransitionPurchaseOrderRequest) (*database.PurchaseOrder, error)
	Update(ctx context.Context, req service.UpdatePurchaseOrderRequest) (*service.CreatePurchaseOrderResult, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PurchaseOrderStore defines the database methods needed by purchase order
// read handlers. Satisfied by *database.Queries.
type PurchaseOrderStore interface {
	GetPurchaseOrder(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, arg database.ListPurchaseOrdersParams) ([]database.PurchaseOrder, error)
	ListPurchaseOrderItems(ctx context.Context, purchaseOrderID uuid.UUID) ([]database.PurchaseOrderItem, error)
}

// PurchaseOrderHandler handles purchase order endpoints.
type PurchaseOrderHandler struct {
	svc   PurchaseOrderServicer
	store PurchaseOrderStore
}

// NewPurchaseOrderHandler creates a new PurchaseOrderHandler.
func NewPurchaseOrderHandler(svc PurchaseOrderServicer, store PurchaseOrderStore) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{svc: svc, store: store}
}

// RegisterRoutes registers purchase order endpoints on the given Chi router.
// Expected to be mounted at /purchase-orders behind an ADMIN/KITCHEN role check.
func (h *PurchaseOrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type purchaseOrderItemRequest struct {
	IngredientID string `json:"ingredient_id"`
	Quantity     string `json:"quantity"`
	UnitPrice    string `json:"unit_price"`
}

type createPurchaseOrderRequest struct {
	SupplierID           string                     `json:"supplier_id"`
	ExpectedDeliveryDate string                     `json:"expected_delivery_date"`
	Notes                string                     `json:"notes"`
	Items                []purchaseOrderItemRequest `json:"items"`
}

type updatePurchaseOrderStatusRequest struct {
	Status       string `json:"status"`
	RejectReason string `json:"reject_reason"`
	AdminNotes   string `json:"admin_notes"`
}

type purchaseOrderResponse struct {
	ID                   uuid.UUID                   `json:"id"`
	SupplierID           uuid.UUID                   `json:"supplier_id"`
	Status               string                      `json:"status"`
	TotalAmount          string                      `json:"total_amount"`
	RequesterID          uuid.UUID                   `json:"requester_id"`
	ApproverID           *string                     `json:"approver_id"`
	AutoApproved         bool                        `json:"auto_approved"`
	ExpectedDeliveryDate *time.Time                  `json:"expected_delivery_date"`
	ActualDeliveryDate   *time.Time                  `json:"actual_delivery_date"`
	Notes                *string                     `json:"notes"`
	RejectReason         *string                     `json:"reject_reason"`
	AdminNotes           *string                     `json:"admin_notes"`
	CreatedAt            time.Time                   `json:"created_at"`
	UpdatedAt            time.Time                   `json:"updated_at"`
	Items                []purchaseOrderItemResponse `json:"items,omitempty"`
}

type purchaseOrderItemResponse struct {
	ID           uuid.UUID `json:"id"`
	IngredientID uuid.UUID `json:"ingredient_id"`
	Quantity     string    `json:"quantity"`
	UnitPrice    string    `json:"unit_price"`
	Subtotal     string    `json:"subtotal"`
}

type purchaseOrderListResponse struct {
	PurchaseOrders []purchaseOrderResponse `json:"purchase_orders"`
	Limit          int                     `json:"limit"`
	Offset         int                     `json:"offset"`
}

func dbPurchaseOrderToResponse(po database.PurchaseOrder) purchaseOrderResponse {
	resp := purchaseOrderResponse{
		ID:           po.ID,
		SupplierID:   po.SupplierID,
		Status:       string(po.Status),
		TotalAmount:  numericToString(po.TotalAmount),
		RequesterID:  po.RequesterID,
		AutoApproved: po.AutoApproved,
		CreatedAt:    po.CreatedAt,
		UpdatedAt:    po.UpdatedAt,
	}
	if po.ApproverID.Valid {
		s := uuid.UUID(po.ApproverID.Bytes).String()
		resp.ApproverID = &s
	}
	if po.ExpectedDeliveryDate.Valid {
		resp.ExpectedDeliveryDate = &po.ExpectedDeliveryDate.Time
	}
	if po.ActualDeliveryDate.Valid {
		resp.ActualDeliveryDate = &po.ActualDeliveryDate.Time
	}
	if po.Notes.Valid {
		resp.Notes = &po.Notes.String
	}
	if po.RejectReason.Valid {
		resp.RejectReason = &po.RejectReason.String
	}
	if po.AdminNotes.Valid {
		resp.AdminNotes = &po.AdminNotes.String
	}
	return resp
}

func dbPurchaseOrderItemToResponse(item database.PurchaseOrderItem) purchaseOrderItemResponse {
	return purchaseOrderItemResponse{
		ID:           item.ID,
		IngredientID: item.IngredientID,
		Quantity:     numericToString(item.Quantity),
		UnitPrice:    numericToString(item.UnitPrice),
		Subtotal:     numericToString(item.Subtotal),
	}
}

// --- Handlers ---

// Create handles POST /purchase-orders. The approval policy runs in the
// service: admins and permitted kitchen users get their orders auto-approved.
func (h *PurchaseOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createPurchaseOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.SupplierID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "supplier_id is required"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}
	if req.ExpectedDeliveryDate != "" {
		if _, err := time.Parse(time.RFC3339, req.ExpectedDeliveryDate); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid expected_delivery_date, use RFC3339"})
			return
		}
	}

	result, err := h.svc.Create(r.Context(), service.CreatePurchaseOrderRequest{
		RequesterID:          claims.UserID,
		RequesterRole:        claims.Role,
		SupplierID:           req.SupplierID,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
		Notes:                req.Notes,
		Items:                toServicePOItems(req.Items),
	})
	if err != nil {
		if isPOValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: create purchase order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toPOResultResponse(result))
}

// List handles GET /purchase-orders.
func (h *PurchaseOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListPurchaseOrdersParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	}

	if s := r.URL.Query().Get("status"); s != "" {
		if !isValidPurchaseOrderStatus(database.PurchaseOrderStatus(s)) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
		params.Status = s
	}
	if s := r.URL.Query().Get("supplier_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid supplier_id filter"})
			return
		}
		params.SupplierID = pgtype.UUID{Bytes: id, Valid: true}
	}

	pos, err := h.store.ListPurchaseOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list purchase orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]purchaseOrderResponse, len(pos))
	for i, po := range pos {
		resp[i] = dbPurchaseOrderToResponse(po)
	}

	writeJSON(w, http.StatusOK, purchaseOrderListResponse{
		PurchaseOrders: resp,
		Limit:          limit,
		Offset:         offset,
	})
}

// Get handles GET /purchase-orders/{id}.
func (h *PurchaseOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	poID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid purchase order ID"})
		return
	}

	po, err := h.store.GetPurchaseOrder(r.Context(), poID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "purchase order not found"})
			return
		}
		log.Printf("ERROR: get purchase order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListPurchaseOrderItems(r.Context(), poID)
	if err != nil {
		log.Printf("ERROR: list purchase order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dbPurchaseOrderToResponse(po)
	resp.Items = make([]purchaseOrderItemResponse, len(items))
	for i, item := range items {
		resp.Items[i] = dbPurchaseOrderItemToResponse(item)
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus handles PATCH /purchase-orders/{id}/status. Approval is
// reserved for admins; delivery posts stock inside the service transaction.
func (h *PurchaseOrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	poID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid purchase order ID"})
		return
	}

	var req updatePurchaseOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	newStatus := database.PurchaseOrderStatus(req.Status)
	if !isValidPurchaseOrderStatus(newStatus) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	if newStatus == database.PurchaseOrderStatusAPPROVED && claims.Role != string(database.UserRoleADMIN) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only admins can approve purchase orders"})
		return
	}

	po, err := h.svc.Transition(r.Context(), service.TransitionPurchaseOrderRequest{
		ID:           poID,
		NewStatus:    newStatus,
		ActorID:      claims.UserID,
		RejectReason: req.RejectReason,
		AdminNotes:   req.AdminNotes,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPONotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidTransition):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrStatusConflict):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrIngredientNotFound):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: transition purchase order: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, dbPurchaseOrderToResponse(*po))
}

// Update handles PUT /purchase-orders/{id}. Orders are editable while
// PENDING or APPROVED.
func (h *PurchaseOrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	poID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid purchase order ID"})
		return
	}

	var req createPurchaseOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.SupplierID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "supplier_id is required"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}
	if req.ExpectedDeliveryDate != "" {
		if _, err := time.Parse(time.RFC3339, req.ExpectedDeliveryDate); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid expected_delivery_date, use RFC3339"})
			return
		}
	}

	result, err := h.svc.Update(r.Context(), service.UpdatePurchaseOrderRequest{
		ID:                   poID,
		SupplierID:           req.SupplierID,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
		Notes:                req.Notes,
		Items:                toServicePOItems(req.Items),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPONotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrPONotEditable):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case isPOValidationError(err):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: update purchase order: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, toPOResultResponse(result))
}

// Delete handles DELETE /purchase-orders/{id}. Only PENDING drafts can be
// removed; approved orders belong to the audit trail.
func (h *PurchaseOrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	poID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid purchase order ID"})
		return
	}

	if err := h.svc.Delete(r.Context(), poID); err != nil {
		switch {
		case errors.Is(err, service.ErrPONotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrPONotEditable):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: delete purchase order: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func toServicePOItems(items []purchaseOrderItemRequest) []service.CreatePurchaseOrderItemRequest {
	out := make([]service.CreatePurchaseOrderItemRequest, len(items))
	for i, item := range items {
		out[i] = service.CreatePurchaseOrderItemRequest{
			IngredientID: item.IngredientID,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
		}
	}
	return out
}

func toPOResultResponse(result *service.CreatePurchaseOrderResult) purchaseOrderResponse {
	resp := dbPurchaseOrderToResponse(result.PurchaseOrder)
	resp.Items = make([]purchaseOrderItemResponse, len(result.Items))
	for i, item := range result.Items {
		resp.Items[i] = dbPurchaseOrderItemToResponse(item)
	}
	return resp
}

// isPOValidationError checks if the error is a known validation error from
// the service layer that should result in 400 Bad Request.
func isPOValidationError(err error) bool {
	return errors.Is(err, service.ErrPOEmptyItems) ||
		errors.Is(err, service.ErrPOInvalidQuantity) ||
		errors.Is(err, service.ErrPOInvalidUnitPrice) ||
		errors.Is(err, service.ErrInvalidSupplierID) ||
		errors.Is(err, service.ErrInvalidIngredientID) ||
		errors.Is(err, service.ErrSupplierNotFound) ||
		errors.Is(err, service.ErrIngredientNotFound)
}

func isValidPurchaseOrderStatus(s database.PurchaseOrderStatus) bool {
	switch s {
	case database.PurchaseOrderStatusPENDING,
		database.PurchaseOrderStatusAPPROVED,
		database.PurchaseOrderStatusDELIVERED,
		database.PurchaseOrderStatusCOMPLETED,
		database.PurchaseOrderStatusCANCELLED:
		return true
	}
	return false
}
