package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const ingredientColumns = `id, name, unit, current_stock, min_stock_level, cost_per_unit, is_active, created_at, updated_at`

func scanIngredient(row interface{ Scan(...interface{}) error }) (Ingredient, error) {
	var i Ingredient
	err := row.Scan(&i.ID, &i.Name, &i.Unit, &i.CurrentStock, &i.MinStockLevel, &i.CostPerUnit, &i.IsActive, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

func (q *Queries) GetIngredient(ctx context.Context, id uuid.UUID) (Ingredient, error) {
	row := q.db.QueryRow(ctx, `SELECT `+ingredientColumns+` FROM ingredients WHERE id = $1 AND is_active = TRUE`, id)
	return scanIngredient(row)
}

// GetIngredientForUpdate locks the ingredient row for the duration of the
// transaction so ledger posting and the stock counter update are serialized.
func (q *Queries) GetIngredientForUpdate(ctx context.Context, id uuid.UUID) (Ingredient, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+ingredientColumns+` FROM ingredients
		WHERE id = $1 AND is_active = TRUE
		FOR NO KEY UPDATE`, id)
	return scanIngredient(row)
}

func (q *Queries) ListIngredients(ctx context.Context) ([]Ingredient, error) {
	rows, err := q.db.Query(ctx, `SELECT `+ingredientColumns+` FROM ingredients WHERE is_active = TRUE ORDER BY name`)
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

type CreateIngredientParams struct {
	Name          string
	Unit          string
	CurrentStock  pgtype.Numeric
	MinStockLevel pgtype.Numeric
	CostPerUnit   pgtype.Numeric
}

func (q *Queries) CreateIngredient(ctx context.Context, arg CreateIngredientParams) (Ingredient, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO ingredients (name, unit, current_stock, min_stock_level, cost_per_unit)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+ingredientColumns,
		arg.Name, arg.Unit, arg.CurrentStock, arg.MinStockLevel, arg.CostPerUnit)
	return scanIngredient(row)
}

type UpdateIngredientParams struct {
	ID            uuid.UUID
	Name          string
	Unit          string
	MinStockLevel pgtype.Numeric
	CostPerUnit   pgtype.Numeric
}

// UpdateIngredient edits catalog metadata only. current_stock is never
// written here; it moves exclusively through AddIngredientStock alongside a
// ledger row.
func (q *Queries) UpdateIngredient(ctx context.Context, arg UpdateIngredientParams) (Ingredient, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE ingredients
		SET name = $2, unit = $3, min_stock_level = $4, cost_per_unit = $5, updated_at = now()
		WHERE id = $1 AND is_active = TRUE
		RETURNING `+ingredientColumns,
		arg.ID, arg.Name, arg.Unit, arg.MinStockLevel, arg.CostPerUnit)
	return scanIngredient(row)
}

func (q *Queries) SoftDeleteIngredient(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, `
		UPDATE ingredients SET is_active = FALSE, updated_at = now()
		WHERE id = $1 AND is_active = TRUE
		RETURNING id`, id).Scan(&deleted)
	return deleted, err
}

type AddIngredientStockParams struct {
	ID    uuid.UUID
	Delta pgtype.Numeric
}

// AddIngredientStock applies a signed delta to the denormalized stock
// counter. Callers must write the matching ledger row in the same
// transaction.
func (q *Queries) AddIngredientStock(ctx context.Context, arg AddIngredientStockParams) (Ingredient, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE ingredients
		SET current_stock = current_stock + $2, updated_at = now()
		WHERE id = $1 AND is_active = TRUE
		RETURNING `+ingredientColumns,
		arg.ID, arg.Delta)
	return scanIngredient(row)
}
