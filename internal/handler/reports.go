package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/warungkita/api/internal/database"
)

// reportLocation pins report date boundaries to the restaurant's timezone, not
// the server's.
var reportLocation = mustLoadLocation("Asia/Jakarta")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// forecastHorizonDays is how far ahead reorder recommendations look.
const forecastHorizonDays = 30

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries.
type ReportsStore interface {
	GetInventorySummary(ctx context.Context) (database.InventorySummaryRow, error)
	ListLowStockIngredients(ctx context.Context) ([]database.Ingredient, error)
	GetUsageStats(ctx context.Context, arg database.DateRangeParams) ([]database.UsageStatsRow, error)
	GetPurchaseStats(ctx context.Context, arg database.DateRangeParams) (database.PurchaseStatsRow, error)
	GetSupplierPerformance(ctx context.Context, arg database.DateRangeParams) ([]database.SupplierPerformanceRow, error)
	GetIngredientUsageTotals(ctx context.Context, arg database.DateRangeParams) ([]database.IngredientUsageTotalRow, error)
	GetDailyRevenue(ctx context.Context, arg database.DateRangeParams) ([]database.DailyRevenueRow, error)
	GetPaymentMethodSummary(ctx context.Context, arg database.DateRangeParams) ([]database.PaymentMethodSummaryRow, error)
}

// ReportsHandler handles reporting and forecasting endpoints.
type ReportsHandler struct {
	store ReportsStore
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(store ReportsStore) *ReportsHandler {
	return &ReportsHandler{store: store}
}

// RegisterRoutes registers all report endpoints on the given Chi router.
// Expected to be mounted at /reports.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	h.RegisterInventoryRoutes(r)
	h.RegisterSalesRoutes(r)
}

// RegisterInventoryRoutes registers the stock-side reports. The kitchen needs
// these for day-to-day purchasing.
func (h *ReportsHandler) RegisterInventoryRoutes(r chi.Router) {
	r.Get("/inventory-summary", h.InventorySummary)
	r.Get("/low-stock", h.LowStock)
	r.Get("/usage", h.Usage)
	r.Get("/forecast", h.Forecast)
}

// RegisterSalesRoutes registers the money-side reports, admin only.
func (h *ReportsHandler) RegisterSalesRoutes(r chi.Router) {
	r.Get("/purchases", h.Purchases)
	r.Get("/supplier-performance", h.SupplierPerformance)
	r.Get("/daily-revenue", h.DailyRevenue)
	r.Get("/payment-methods", h.PaymentMethods)
}

// --- Date range parsing ---

// parseDateRange reads optional start_date/end_date query params (YYYY-MM-DD).
// The range defaults to the last 30 days, start inclusive and end exclusive.
// End dates are bumped by a day so "end_date=2026-01-31" covers the 31st.
func parseDateRange(r *http.Request) (database.DateRangeParams, int, error) {
	now := time.Now().In(reportLocation)
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, reportLocation).AddDate(0, 0, 1)
	start := end.AddDate(0, 0, -30)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.ParseInLocation("2006-01-02", s, reportLocation)
		if err != nil {
			return database.DateRangeParams{}, 0, errInvalidStartDate
		}
		start = t
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.ParseInLocation("2006-01-02", s, reportLocation)
		if err != nil {
			return database.DateRangeParams{}, 0, errInvalidEndDate
		}
		end = t.AddDate(0, 0, 1)
	}
	if !end.After(start) {
		return database.DateRangeParams{}, 0, errInvalidRange
	}

	days := int(end.Sub(start).Hours() / 24)
	if days < 1 {
		days = 1
	}

	return database.DateRangeParams{
		StartDate: pgtype.Timestamptz{Time: start, Valid: true},
		EndDate:   pgtype.Timestamptz{Time: end, Valid: true},
	}, days, nil
}

type dateRangeError string

func (e dateRangeError) Error() string { return string(e) }

const (
	errInvalidStartDate = dateRangeError("invalid start_date format, use YYYY-MM-DD")
	errInvalidEndDate   = dateRangeError("invalid end_date format, use YYYY-MM-DD")
	errInvalidRange     = dateRangeError("end_date must be after start_date")
)

// --- Response types ---

type inventorySummaryResponse struct {
	TotalIngredients int64  `json:"total_ingredients"`
	TotalStockValue  string `json:"total_stock_value"`
	LowStockCount    int64  `json:"low_stock_count"`
}

type usageStatResponse struct {
	IngredientID   uuid.UUID `json:"ingredient_id"`
	IngredientName string    `json:"ingredient_name"`
	Unit           string    `json:"unit"`
	TotalUsed      string    `json:"total_used"`
	UsageCount     int64     `json:"usage_count"`
}

type purchaseStatsResponse struct {
	TotalOrders     int64  `json:"total_orders"`
	CompletedOrders int64  `json:"completed_orders"`
	CancelledOrders int64  `json:"cancelled_orders"`
	TotalSpend      string `json:"total_spend"`
	AutoApproved    int64  `json:"auto_approved"`
}

type supplierPerformanceResponse struct {
	SupplierID      uuid.UUID `json:"supplier_id"`
	SupplierName    string    `json:"supplier_name"`
	Rating          *string   `json:"rating"`
	TotalOrders     int64     `json:"total_orders"`
	DeliveredOrders int64     `json:"delivered_orders"`
	CancelledOrders int64     `json:"cancelled_orders"`
	TotalSpend      string    `json:"total_spend"`
	OnTimeOrders    int64     `json:"on_time_orders"`
}

type dailyRevenueResponse struct {
	Date       string `json:"date"`
	OrderCount int64  `json:"order_count"`
	Revenue    string `json:"revenue"`
}

type paymentMethodResponse struct {
	Method       string `json:"method"`
	PaymentCount int64  `json:"payment_count"`
	TotalAmount  string `json:"total_amount"`
}

type forecastItemResponse struct {
	IngredientID     uuid.UUID `json:"ingredient_id"`
	IngredientName   string    `json:"ingredient_name"`
	Unit             string    `json:"unit"`
	CurrentStock     string    `json:"current_stock"`
	MinStockLevel    string    `json:"min_stock_level"`
	AvgDailyUsage    string    `json:"avg_daily_usage"`
	ProjectedNeed    string    `json:"projected_need"`
	RecommendedOrder string    `json:"recommended_order"`
	DaysUntilStockout *int     `json:"days_until_stockout"`
}

type forecastResponse struct {
	HorizonDays int                    `json:"horizon_days"`
	WindowDays  int                    `json:"window_days"`
	Items       []forecastItemResponse `json:"items"`
}

type dateRangeMeta struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func rangeMeta(arg database.DateRangeParams) dateRangeMeta {
	// End is stored exclusive; report it back inclusive.
	return dateRangeMeta{
		StartDate: arg.StartDate.Time.Format("2006-01-02"),
		EndDate:   arg.EndDate.Time.AddDate(0, 0, -1).Format("2006-01-02"),
	}
}

// --- Handlers ---

// InventorySummary handles GET /reports/inventory-summary.
func (h *ReportsHandler) InventorySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.GetInventorySummary(r.Context())
	if err != nil {
		log.Printf("ERROR: inventory summary: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, inventorySummaryResponse{
		TotalIngredients: summary.TotalIngredients,
		TotalStockValue:  numericToString(summary.TotalStockValue),
		LowStockCount:    summary.LowStockCount,
	})
}

// LowStock handles GET /reports/low-stock.
func (h *ReportsHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.store.ListLowStockIngredients(r.Context())
	if err != nil {
		log.Printf("ERROR: low stock report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]ingredientResponse, len(ingredients))
	for i, ing := range ingredients {
		resp[i] = dbIngredientToResponse(ing)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Usage handles GET /reports/usage.
func (h *ReportsHandler) Usage(w http.ResponseWriter, r *http.Request) {
	arg, _, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	stats, err := h.store.GetUsageStats(r.Context(), arg)
	if err != nil {
		log.Printf("ERROR: usage report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items := make([]usageStatResponse, len(stats))
	for i, s := range stats {
		items[i] = usageStatResponse{
			IngredientID:   s.IngredientID,
			IngredientName: s.IngredientName,
			Unit:           s.Unit,
			TotalUsed:      numericToString(s.TotalUsed),
			UsageCount:     s.UsageCount,
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"range": rangeMeta(arg),
		"usage": items,
	})
}

// Purchases handles GET /reports/purchases.
func (h *ReportsHandler) Purchases(w http.ResponseWriter, r *http.Request) {
	arg, _, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	stats, err := h.store.GetPurchaseStats(r.Context(), arg)
	if err != nil {
		log.Printf("ERROR: purchase report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"range": rangeMeta(arg),
		"purchases": purchaseStatsResponse{
			TotalOrders:     stats.TotalOrders,
			CompletedOrders: stats.CompletedOrders,
			CancelledOrders: stats.CancelledOrders,
			TotalSpend:      numericToString(stats.TotalSpend),
			AutoApproved:    stats.AutoApproved,
		},
	})
}

// SupplierPerformance handles GET /reports/supplier-performance.
func (h *ReportsHandler) SupplierPerformance(w http.ResponseWriter, r *http.Request) {
	arg, _, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	stats, err := h.store.GetSupplierPerformance(r.Context(), arg)
	if err != nil {
		log.Printf("ERROR: supplier performance report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items := make([]supplierPerformanceResponse, len(stats))
	for i, s := range stats {
		item := supplierPerformanceResponse{
			SupplierID:      s.SupplierID,
			SupplierName:    s.SupplierName,
			TotalOrders:     s.TotalOrders,
			DeliveredOrders: s.DeliveredOrders,
			CancelledOrders: s.CancelledOrders,
			TotalSpend:      numericToString(s.TotalSpend),
			OnTimeOrders:    s.OnTimeOrders,
		}
		if s.Rating.Valid {
			rating := numericToString(s.Rating)
			item.Rating = &rating
		}
		items[i] = item
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"range":     rangeMeta(arg),
		"suppliers": items,
	})
}

// DailyRevenue handles GET /reports/daily-revenue.
func (h *ReportsHandler) DailyRevenue(w http.ResponseWriter, r *http.Request) {
	arg, _, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	days, err := h.store.GetDailyRevenue(r.Context(), arg)
	if err != nil {
		log.Printf("ERROR: daily revenue report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items := make([]dailyRevenueResponse, len(days))
	for i, d := range days {
		items[i] = dailyRevenueResponse{
			Date:       d.Day.Time.Format("2006-01-02"),
			OrderCount: d.OrderCount,
			Revenue:    numericToString(d.Revenue),
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"range":   rangeMeta(arg),
		"revenue": items,
	})
}

// PaymentMethods handles GET /reports/payment-methods.
func (h *ReportsHandler) PaymentMethods(w http.ResponseWriter, r *http.Request) {
	arg, _, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	methods, err := h.store.GetPaymentMethodSummary(r.Context(), arg)
	if err != nil {
		log.Printf("ERROR: payment method report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items := make([]paymentMethodResponse, len(methods))
	for i, m := range methods {
		items[i] = paymentMethodResponse{
			Method:       m.Method,
			PaymentCount: m.PaymentCount,
			TotalAmount:  numericToString(m.TotalAmount),
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"range":   rangeMeta(arg),
		"methods": items,
	})
}

// Forecast handles GET /reports/forecast. For each active ingredient it
// projects usage over the next 30 days from the average daily usage in the
// window and recommends how much to reorder. Ingredients with no usage
// history fall back to the min stock level as the reorder target.
func (h *ReportsHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	arg, windowDays, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	totals, err := h.store.GetIngredientUsageTotals(r.Context(), arg)
	if err != nil {
		log.Printf("ERROR: forecast report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items := make([]forecastItemResponse, 0, len(totals))
	for _, t := range totals {
		items = append(items, buildForecastItem(t, windowDays))
	}

	writeJSON(w, http.StatusOK, forecastResponse{
		HorizonDays: forecastHorizonDays,
		WindowDays:  windowDays,
		Items:       items,
	})
}

func buildForecastItem(t database.IngredientUsageTotalRow, windowDays int) forecastItemResponse {
	current := numericToDecimalValue(t.Ingredient.CurrentStock)
	minLevel := numericToDecimalValue(t.Ingredient.MinStockLevel)
	totalUsed := numericToDecimalValue(t.TotalUsed)

	item := forecastItemResponse{
		IngredientID:   t.Ingredient.ID,
		IngredientName: t.Ingredient.Name,
		Unit:           t.Ingredient.Unit,
		CurrentStock:   current.StringFixed(2),
		MinStockLevel:  minLevel.StringFixed(2),
	}

	if totalUsed.IsPositive() {
		avgDaily := totalUsed.DivRound(decimal.NewFromInt(int64(windowDays)), 4)
		projected := avgDaily.Mul(decimal.NewFromInt(forecastHorizonDays))
		recommended := projected.Sub(current)
		if recommended.IsNegative() {
			recommended = decimal.Zero
		}

		item.AvgDailyUsage = avgDaily.StringFixed(4)
		item.ProjectedNeed = projected.StringFixed(2)
		item.RecommendedOrder = recommended.StringFixed(2)

		if avgDaily.IsPositive() {
			days := int(current.DivRound(avgDaily, 4).IntPart())
			item.DaysUntilStockout = &days
		}
		return item
	}

	// No usage in the window. Only flag ingredients already under their min
	// stock level.
	item.AvgDailyUsage = "0.0000"
	item.ProjectedNeed = "0.00"
	if current.LessThan(minLevel) {
		item.RecommendedOrder = minLevel.Sub(current).StringFixed(2)
	} else {
		item.RecommendedOrder = "0.00"
	}
	return item
}
