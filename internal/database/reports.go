package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type InventorySummaryRow struct {
	TotalIngredients int64
	TotalStockValue  pgtype.Numeric
	LowStockCount    int64
}

func (q *Queries) GetInventorySummary(ctx context.Context) (InventorySummaryRow, error) {
	var r InventorySummaryRow
	err := q.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(current_stock * cost_per_unit), 0),
			COUNT(*) FILTER (WHERE current_stock < min_stock_level)
		FROM ingredients
		WHERE is_active = TRUE`).
		Scan(&r.TotalIngredients, &r.TotalStockValue, &r.LowStockCount)
	return r, err
}

func (q *Queries) ListLowStockIngredients(ctx context.Context) ([]Ingredient, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+ingredientColumns+`
		FROM ingredients
		WHERE is_active = TRUE AND current_stock < min_stock_level
		ORDER BY current_stock / NULLIF(min_stock_level, 0) NULLS FIRST, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ingredients []Ingredient
	for rows.Next() {
		i, err := scanIngredient(rows)
		if err != nil {
			return nil, err
		}
		ingredients = append(ingredients, i)
	}
	return ingredients, rows.Err()
}

type DateRangeParams struct {
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
}

type UsageStatsRow struct {
	IngredientID   uuid.UUID
	IngredientName string
	Unit           string
	TotalUsed      pgtype.Numeric
	UsageCount     int64
}

// GetUsageStats aggregates outbound ledger rows (USAGE, WASTE,
// ADJUSTMENT_OUT) per ingredient over the window. Quantities are stored
// signed, so the sum is negated for presentation.
func (q *Queries) GetUsageStats(ctx context.Context, arg DateRangeParams) ([]UsageStatsRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT i.id, i.name, i.unit, COALESCE(-SUM(t.quantity), 0), COUNT(t.id)
		FROM ingredients i
		JOIN inventory_transactions t ON t.ingredient_id = i.id
		WHERE t.type IN ('USAGE', 'WASTE', 'ADJUSTMENT_OUT')
		  AND ($1::timestamptz IS NULL OR t.transaction_date >= $1)
		  AND ($2::timestamptz IS NULL OR t.transaction_date < $2)
		GROUP BY i.id, i.name, i.unit
		ORDER BY 4 DESC`,
		arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []UsageStatsRow
	for rows.Next() {
		var r UsageStatsRow
		if err := rows.Scan(&r.IngredientID, &r.IngredientName, &r.Unit, &r.TotalUsed, &r.UsageCount); err != nil {
			return nil, err
		}
		stats = append(stats, r)
	}
	return stats, rows.Err()
}

type PurchaseStatsRow struct {
	TotalOrders     int64
	CompletedOrders int64
	CancelledOrders int64
	TotalSpend      pgtype.Numeric
	AutoApproved    int64
}

func (q *Queries) GetPurchaseStats(ctx context.Context, arg DateRangeParams) (PurchaseStatsRow, error) {
	var r PurchaseStatsRow
	err := q.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'COMPLETED'),
			COUNT(*) FILTER (WHERE status = 'CANCELLED'),
			COALESCE(SUM(total_amount) FILTER (WHERE status IN ('DELIVERED', 'COMPLETED')), 0),
			COUNT(*) FILTER (WHERE auto_approved)
		FROM purchase_orders
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at < $2)`,
		arg.StartDate, arg.EndDate).
		Scan(&r.TotalOrders, &r.CompletedOrders, &r.CancelledOrders, &r.TotalSpend, &r.AutoApproved)
	return r, err
}

type SupplierPerformanceRow struct {
	SupplierID      uuid.UUID
	SupplierName    string
	Rating          pgtype.Numeric
	TotalOrders     int64
	DeliveredOrders int64
	CancelledOrders int64
	TotalSpend      pgtype.Numeric
	OnTimeOrders    int64
}

// GetSupplierPerformance reports per-supplier order outcomes. An order counts
// as on time when it arrived no later than its expected delivery date.
func (q *Queries) GetSupplierPerformance(ctx context.Context, arg DateRangeParams) ([]SupplierPerformanceRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT
			s.id, s.name, s.rating,
			COUNT(po.id),
			COUNT(po.id) FILTER (WHERE po.status IN ('DELIVERED', 'COMPLETED')),
			COUNT(po.id) FILTER (WHERE po.status = 'CANCELLED'),
			COALESCE(SUM(po.total_amount) FILTER (WHERE po.status IN ('DELIVERED', 'COMPLETED')), 0),
			COUNT(po.id) FILTER (WHERE po.actual_delivery_date IS NOT NULL
				AND po.expected_delivery_date IS NOT NULL
				AND po.actual_delivery_date <= po.expected_delivery_date)
		FROM suppliers s
		JOIN purchase_orders po ON po.supplier_id = s.id
		WHERE ($1::timestamptz IS NULL OR po.created_at >= $1)
		  AND ($2::timestamptz IS NULL OR po.created_at < $2)
		GROUP BY s.id, s.name, s.rating
		ORDER BY s.name`,
		arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []SupplierPerformanceRow
	for rows.Next() {
		var r SupplierPerformanceRow
		if err := rows.Scan(&r.SupplierID, &r.SupplierName, &r.Rating, &r.TotalOrders,
			&r.DeliveredOrders, &r.CancelledOrders, &r.TotalSpend, &r.OnTimeOrders); err != nil {
			return nil, err
		}
		stats = append(stats, r)
	}
	return stats, rows.Err()
}

type IngredientUsageTotalRow struct {
	Ingredient Ingredient
	TotalUsed  pgtype.Numeric
}

// GetIngredientUsageTotals returns every active ingredient with its total
// outbound quantity over the window, including ingredients with no usage at
// all. Forecasting needs the zero-history rows too.
func (q *Queries) GetIngredientUsageTotals(ctx context.Context, arg DateRangeParams) ([]IngredientUsageTotalRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT i.id, i.name, i.unit, i.current_stock, i.min_stock_level, i.cost_per_unit,
		       i.is_active, i.created_at, i.updated_at,
		       COALESCE(-SUM(t.quantity) FILTER (WHERE t.type IN ('USAGE', 'WASTE', 'ADJUSTMENT_OUT')
		           AND ($1::timestamptz IS NULL OR t.transaction_date >= $1)
		           AND ($2::timestamptz IS NULL OR t.transaction_date < $2)), 0)
		FROM ingredients i
		LEFT JOIN inventory_transactions t ON t.ingredient_id = i.id
		WHERE i.is_active = TRUE
		GROUP BY i.id
		ORDER BY i.name`,
		arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []IngredientUsageTotalRow
	for rows.Next() {
		var r IngredientUsageTotalRow
		if err := rows.Scan(&r.Ingredient.ID, &r.Ingredient.Name, &r.Ingredient.Unit,
			&r.Ingredient.CurrentStock, &r.Ingredient.MinStockLevel, &r.Ingredient.CostPerUnit,
			&r.Ingredient.IsActive, &r.Ingredient.CreatedAt, &r.Ingredient.UpdatedAt,
			&r.TotalUsed); err != nil {
			return nil, err
		}
		totals = append(totals, r)
	}
	return totals, rows.Err()
}

type DailyRevenueRow struct {
	Day        pgtype.Date
	OrderCount int64
	Revenue    pgtype.Numeric
}

// GetDailyRevenue sums completed orders per day over the window.
func (q *Queries) GetDailyRevenue(ctx context.Context, arg DateRangeParams) ([]DailyRevenueRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT created_at::date AS day, COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM orders
		WHERE status = 'COMPLETED'
		  AND ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at < $2)
		GROUP BY day
		ORDER BY day`,
		arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []DailyRevenueRow
	for rows.Next() {
		var r DailyRevenueRow
		if err := rows.Scan(&r.Day, &r.OrderCount, &r.Revenue); err != nil {
			return nil, err
		}
		days = append(days, r)
	}
	return days, rows.Err()
}

type PaymentMethodSummaryRow struct {
	Method       string
	PaymentCount int64
	TotalAmount  pgtype.Numeric
}

func (q *Queries) GetPaymentMethodSummary(ctx context.Context, arg DateRangeParams) ([]PaymentMethodSummaryRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT method, COUNT(*), COALESCE(SUM(amount), 0)
		FROM payments
		WHERE status = 'COMPLETED'
		  AND ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at < $2)
		GROUP BY method
		ORDER BY method`,
		arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var methods []PaymentMethodSummaryRow
	for rows.Next() {
		var r PaymentMethodSummaryRow
		if err := rows.Scan(&r.Method, &r.PaymentCount, &r.TotalAmount); err != nil {
			return nil, err
		}
		methods = append(methods, r)
	}
	return methods, rows.Err()
}
