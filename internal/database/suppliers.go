package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const supplierColumns = `id, name, contact_person, phone, address, rating, is_active, created_at, updated_at`

func scanSupplier(row interface{ Scan(...interface{}) error }) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Name, &s.ContactPerson, &s.Phone, &s.Address, &s.Rating, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (q *Queries) GetSupplier(ctx context.Context, id uuid.UUID) (Supplier, error) {
	row := q.db.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1 AND is_active = TRUE`, id)
	return scanSupplier(row)
}

func (q *Queries) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := q.db.Query(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE is_active = TRUE ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, rows.Err()
}

type CreateSupplierParams struct {
	Name          string
	ContactPerson pgtype.Text
	Phone         pgtype.Text
	Address       pgtype.Text
	Rating        pgtype.Numeric
}

func (q *Queries) CreateSupplier(ctx context.Context, arg CreateSupplierParams) (Supplier, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO suppliers (name, contact_person, phone, address, rating)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+supplierColumns,
		arg.Name, arg.ContactPerson, arg.Phone, arg.Address, arg.Rating)
	return scanSupplier(row)
}

type UpdateSupplierParams struct {
	ID            uuid.UUID
	Name          string
	ContactPerson pgtype.Text
	Phone         pgtype.Text
	Address       pgtype.Text
	Rating        pgtype.Numeric
}

func (q *Queries) UpdateSupplier(ctx context.Context, arg UpdateSupplierParams) (Supplier, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE suppliers
		SET name = $2, contact_person = $3, phone = $4, address = $5, rating = $6, updated_at = now()
		WHERE id = $1 AND is_active = TRUE
		RETURNING `+supplierColumns,
		arg.ID, arg.Name, arg.ContactPerson, arg.Phone, arg.Address, arg.Rating)
	return scanSupplier(row)
}

func (q *Queries) SoftDeleteSupplier(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, `
		UPDATE suppliers SET is_active = FALSE, updated_at = now()
		WHERE id = $1 AND is_active = TRUE
		RETURNING id`, id).Scan(&deleted)
	return deleted, err
}
