package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuItemColumns = `id, name, description, category, price, is_available, created_at, updated_at`

func scanMenuItem(row interface{ Scan(...interface{}) error }) (MenuItem, error) {
	var m MenuItem
	err := row.Scan(&m.ID, &m.Name, &m.Description, &m.Category, &m.Price, &m.IsAvailable, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	row := q.db.QueryRow(ctx, `SELECT `+menuItemColumns+` FROM menu_items WHERE id = $1`, id)
	return scanMenuItem(row)
}

// GetMenuItemForOrder resolves a menu item for price snapshotting; only
// available items can be ordered.
func (q *Queries) GetMenuItemForOrder(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	row := q.db.QueryRow(ctx, `SELECT `+menuItemColumns+` FROM menu_items WHERE id = $1 AND is_available = TRUE`, id)
	return scanMenuItem(row)
}

func (q *Queries) ListMenuItems(ctx context.Context) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, `SELECT `+menuItemColumns+` FROM menu_items ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

type CreateMenuItemParams struct {
	Name        string
	Description pgtype.Text
	Category    pgtype.Text
	Price       pgtype.Numeric
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO menu_items (name, description, category, price)
		VALUES ($1, $2, $3, $4)
		RETURNING `+menuItemColumns,
		arg.Name, arg.Description, arg.Category, arg.Price)
	return scanMenuItem(row)
}

type UpdateMenuItemParams struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Category    pgtype.Text
	Price       pgtype.Numeric
	IsAvailable bool
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE menu_items
		SET name = $2, description = $3, category = $4, price = $5, is_available = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+menuItemColumns,
		arg.ID, arg.Name, arg.Description, arg.Category, arg.Price, arg.IsAvailable)
	return scanMenuItem(row)
}

// DisableMenuItem hides a menu item from ordering; historical order items
// keep their reference.
func (q *Queries) DisableMenuItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var disabled uuid.UUID
	err := q.db.QueryRow(ctx, `
		UPDATE menu_items SET is_available = FALSE, updated_at = now()
		WHERE id = $1 AND is_available = TRUE
		RETURNING id`, id).Scan(&disabled)
	return disabled, err
}
