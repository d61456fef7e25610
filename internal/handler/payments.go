package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/warungkita/api/internal/database"
	"github.com/warungkita/api/internal/middleware"
	"github.com/warungkita/api/internal/service"
	"github.com/warungkita/api/internal/ws"
)

// PaymentStore defines the database methods needed by payment handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type PaymentStore interface {
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	CompleteOrderPayment(ctx context.Context, arg database.CompleteOrderPaymentParams) (database.Order, error)
	GetPayment(ctx context.Context, id uuid.UUID) (database.Payment, error)
	GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (database.Payment, error)
	ListPayments(ctx context.Context, arg database.ListPaymentsParams) ([]database.Payment, error)
	UpdatePaymentStatus(ctx context.Context, arg database.UpdatePaymentStatusParams) (database.Payment, error)
}

// NewPaymentStore creates a PaymentStore from a DBTX (pool or tx).
type NewPaymentStore func(db database.DBTX) PaymentStore

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	store    PaymentStore
	pool     service.TxBeginner
	newStore NewPaymentStore
	hub      Notifier
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(store PaymentStore, pool service.TxBeginner, newStore NewPaymentStore, hub Notifier) *PaymentHandler {
	return &PaymentHandler{store: store, pool: pool, newStore: newStore, hub: hub}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
// Expected to be mounted at /payments.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
}

// --- Request / Response types ---

type createPaymentRequest struct {
	OrderID string `json:"order_id"`
	Amount  string `json:"amount"`
	Method  string `json:"method"`
	Status  string `json:"status"`
	Notes   string `json:"notes"`
}

type updatePaymentStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type paymentResponse struct {
	ID            uuid.UUID `json:"id"`
	OrderID       uuid.UUID `json:"order_id"`
	Amount        string    `json:"amount"`
	Method        string    `json:"method"`
	Status        string    `json:"status"`
	TransactionID string    `json:"transaction_id"`
	ProcessedBy   *string   `json:"processed_by"`
	Notes         *string   `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// paymentDetailResponse pairs a payment with the order it settled, so clients
// see the order completion that the payment triggered.
type paymentDetailResponse struct {
	Payment paymentResponse `json:"payment"`
	Order   *orderResponse  `json:"order,omitempty"`
}

type paymentListResponse struct {
	Payments []paymentResponse `json:"payments"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// --- Handlers ---

// Create handles POST /payments. The amount must match the order total;
// partial payments are not supported.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order_id"})
		return
	}

	method := database.PaymentMethod(req.Method)
	if !isValidPaymentMethod(method) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment method"})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount"})
		return
	}
	if !amount.IsPositive() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be > 0"})
		return
	}

	// New payments start PENDING unless the caller settles them immediately,
	// e.g. cash handed over at the counter.
	status := database.PaymentStatusPENDING
	if req.Status != "" {
		status = database.PaymentStatus(req.Status)
		if status != database.PaymentStatusPENDING && status != database.PaymentStatusCOMPLETED {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be PENDING or COMPLETED"})
			return
		}
	}

	// Begin transaction BEFORE reading order state to prevent TOCTOU races.
	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context()) //nolint:errcheck

	store := h.newStore(tx)

	order, err := store.GetOrderForUpdate(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order for payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	switch order.Status {
	case database.OrderStatusPAYMENTREQUESTED:
		// ok
	case database.OrderStatusCOMPLETED:
		writeJSON(w, http.StatusConflict, map[string]string{"error": "order is already paid"})
		return
	case database.OrderStatusCANCELLED:
		writeJSON(w, http.StatusConflict, map[string]string{"error": "cannot pay a cancelled order"})
		return
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order is not awaiting payment"})
		return
	}

	// Partial payments are not supported; the bill is settled in full.
	if !amount.Equal(numericToDecimalValue(order.TotalAmount)) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must equal the order total"})
		return
	}

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	payment, err := store.CreatePayment(r.Context(), database.CreatePaymentParams{
		OrderID:       orderID,
		Amount:        order.TotalAmount,
		Method:        method,
		Status:        status,
		TransactionID: newTransactionID(),
		ProcessedBy:   pgtype.UUID{Bytes: claims.UserID, Valid: true},
		Notes:         notes,
	})
	if err != nil {
		log.Printf("ERROR: create payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	var completedOrder *database.Order
	if status == database.PaymentStatusCOMPLETED {
		o, err := store.CompleteOrderPayment(r.Context(), database.CompleteOrderPaymentParams{
			ID:            orderID,
			PaymentMethod: method,
		})
		if err != nil {
			log.Printf("ERROR: complete order payment: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		completedOrder = &o
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit payment tx: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := paymentDetailResponse{Payment: dbPaymentToResponse(payment)}
	if completedOrder != nil {
		h.notifyPaid(*completedOrder, payment)
		o := dbOrderToResponse(*completedOrder)
		resp.Order = &o
	}

	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /payments.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
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

	params := database.ListPaymentsParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	}

	if s := r.URL.Query().Get("status"); s != "" {
		if !isValidPaymentStatus(database.PaymentStatus(s)) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
		params.Status = s
	}
	if s := r.URL.Query().Get("method"); s != "" {
		if !isValidPaymentMethod(database.PaymentMethod(s)) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid method filter"})
			return
		}
		params.Method = s
	}

	payments, err := h.store.ListPayments(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = dbPaymentToResponse(p)
	}

	writeJSON(w, http.StatusOK, paymentListResponse{
		Payments: resp,
		Limit:    limit,
		Offset:   offset,
	})
}

// Get handles GET /payments/{id}.
func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment ID"})
		return
	}

	payment, err := h.store.GetPayment(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment not found"})
			return
		}
		log.Printf("ERROR: get payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbPaymentToResponse(payment))
}

// UpdateStatus handles PATCH /payments/{id}/status. Completing a PENDING
// payment also completes its order, inside the same transaction.
func (h *PaymentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment ID"})
		return
	}

	var req updatePaymentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	newStatus := database.PaymentStatus(req.Status)
	if !isValidPaymentStatus(newStatus) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context()) //nolint:errcheck

	store := h.newStore(tx)

	payment, err := store.GetPaymentForUpdate(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment not found"})
			return
		}
		log.Printf("ERROR: get payment for status update: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := validatePaymentTransition(payment.Status, newStatus); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var completedOrder *database.Order
	if newStatus == database.PaymentStatusCOMPLETED {
		if _, err := store.GetOrderForUpdate(r.Context(), payment.OrderID); err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				log.Printf("ERROR: lock order for payment completion: %v", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}
		}
		o, err := store.CompleteOrderPayment(r.Context(), database.CompleteOrderPaymentParams{
			ID:            payment.OrderID,
			PaymentMethod: payment.Method,
		})
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			log.Printf("ERROR: complete order payment: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		if err == nil {
			completedOrder = &o
		}
	}

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	updated, err := store.UpdatePaymentStatus(r.Context(), database.UpdatePaymentStatusParams{
		ID:        paymentID,
		Status:    newStatus,
		OldStatus: payment.Status,
		Notes:     notes,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "payment status changed, please retry"})
			return
		}
		log.Printf("ERROR: update payment status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit payment tx: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := paymentDetailResponse{Payment: dbPaymentToResponse(updated)}
	if completedOrder != nil {
		h.notifyPaid(*completedOrder, updated)
		o := dbOrderToResponse(*completedOrder)
		resp.Order = &o
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// newTransactionID generates a human-readable payment reference.
func newTransactionID() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("PAY-%s-%s", time.Now().Format("20060102"), suffix)
}

// notifyPaid broadcasts the order completion to the floor.
func (h *PaymentHandler) notifyPaid(o database.Order, p database.Payment) {
	if h.hub == nil {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"order_id":     o.ID.String(),
		"order_number": o.OrderNumber,
		"amount":       numericToString(p.Amount),
		"method":       string(p.Method),
	})
	if err != nil {
		log.Printf("ERROR: marshal payment event: %v", err)
		return
	}
	h.hub.Broadcast(ws.TopicOrders, ws.Event{Type: "order.paid", Payload: payload})
}

func dbPaymentToResponse(p database.Payment) paymentResponse {
	resp := paymentResponse{
		ID:            p.ID,
		OrderID:       p.OrderID,
		Amount:        numericToString(p.Amount),
		Method:        string(p.Method),
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.ProcessedBy.Valid {
		s := uuid.UUID(p.ProcessedBy.Bytes).String()
		resp.ProcessedBy = &s
	}
	if p.Notes.Valid {
		resp.Notes = &p.Notes.String
	}
	return resp
}

func isValidPaymentMethod(m database.PaymentMethod) bool {
	switch m {
	case database.PaymentMethodCASH, database.PaymentMethodBANK:
		return true
	}
	return false
}

func isValidPaymentStatus(s database.PaymentStatus) bool {
	switch s {
	case database.PaymentStatusPENDING,
		database.PaymentStatusCOMPLETED,
		database.PaymentStatusFAILED,
		database.PaymentStatusREFUNDED:
		return true
	}
	return false
}

// allowedPaymentTransitions defines valid payment status transitions.
// FAILED and REFUNDED are terminal.
var allowedPaymentTransitions = map[database.PaymentStatus][]database.PaymentStatus{
	database.PaymentStatusPENDING:   {database.PaymentStatusCOMPLETED, database.PaymentStatusFAILED},
	database.PaymentStatusCOMPLETED: {database.PaymentStatusREFUNDED},
}

// validatePaymentTransition checks if the transition from current to next is allowed.
func validatePaymentTransition(current, next database.PaymentStatus) error {
	allowed, ok := allowedPaymentTransitions[current]
	if !ok {
		return fmt.Errorf("cannot transition from %s", current)
	}
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("cannot transition from %s to %s", current, next)
}
