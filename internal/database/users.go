package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, email, password_hash, full_name, role, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 AND is_active = TRUE`, id)
	return scanUser(row)
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 AND is_active = TRUE`, email)
	return scanUser(row)
}

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE is_active = TRUE ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type CreateUserParams struct {
	Email        string
	PasswordHash string
	FullName     string
	Role         UserRole
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, full_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		arg.Email, arg.PasswordHash, arg.FullName, arg.Role)
	return scanUser(row)
}

type UpdateUserParams struct {
	ID       uuid.UUID
	FullName string
	Role     UserRole
}

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE users
		SET full_name = $2, role = $3, updated_at = now()
		WHERE id = $1 AND is_active = TRUE
		RETURNING `+userColumns,
		arg.ID, arg.FullName, arg.Role)
	return scanUser(row)
}

func (q *Queries) SoftDeleteUser(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, `
		UPDATE users SET is_active = FALSE, updated_at = now()
		WHERE id = $1 AND is_active = TRUE
		RETURNING id`, id).Scan(&deleted)
	return deleted, err
}

func (q *Queries) GetKitchenPermission(ctx context.Context, userID uuid.UUID) (KitchenPermission, error) {
	var p KitchenPermission
	err := q.db.QueryRow(ctx, `
		SELECT user_id, can_auto_approve, max_order_value, updated_at
		FROM kitchen_permissions WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.CanAutoApprove, &p.MaxOrderValue, &p.UpdatedAt)
	return p, err
}

type UpsertKitchenPermissionParams struct {
	UserID         uuid.UUID
	CanAutoApprove bool
	MaxOrderValue  pgtype.Numeric
}

func (q *Queries) UpsertKitchenPermission(ctx context.Context, arg UpsertKitchenPermissionParams) (KitchenPermission, error) {
	var p KitchenPermission
	err := q.db.QueryRow(ctx, `
		INSERT INTO kitchen_permissions (user_id, can_auto_approve, max_order_value)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET can_auto_approve = EXCLUDED.can_auto_approve,
		    max_order_value = EXCLUDED.max_order_value,
		    updated_at = now()
		RETURNING user_id, can_auto_approve, max_order_value, updated_at`,
		arg.UserID, arg.CanAutoApprove, arg.MaxOrderValue).
		Scan(&p.UserID, &p.CanAutoApprove, &p.MaxOrderValue, &p.UpdatedAt)
	return p, err
}
