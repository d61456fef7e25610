package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const inventoryTxColumns = `id, ingredient_id, quantity, type, unit_price, reference_id, reference_type, notes, created_by, transaction_date`

func scanInventoryTransaction(row interface{ Scan(...interface{}) error }) (InventoryTransaction, error) {
	var t InventoryTransaction
	err := row.Scan(&t.ID, &t.IngredientID, &t.Quantity, &t.Type, &t.UnitPrice,
		&t.ReferenceID, &t.ReferenceType, &t.Notes, &t.CreatedBy, &t.TransactionDate)
	return t, err
}

type CreateInventoryTransactionParams struct {
	IngredientID  pgtype.UUID
	Quantity      pgtype.Numeric
	Type          InventoryTransactionType
	UnitPrice     pgtype.Numeric
	ReferenceID   pgtype.UUID
	ReferenceType pgtype.Text
	Notes         pgtype.Text
	CreatedBy     pgtype.UUID
}

// CreateInventoryTransaction appends a ledger row. The ledger is append-only;
// there are no update or delete queries for this table.
func (q *Queries) CreateInventoryTransaction(ctx context.Context, arg CreateInventoryTransactionParams) (InventoryTransaction, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO inventory_transactions
			(ingredient_id, quantity, type, unit_price, reference_id, reference_type, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+inventoryTxColumns,
		arg.IngredientID, arg.Quantity, arg.Type, arg.UnitPrice,
		arg.ReferenceID, arg.ReferenceType, arg.Notes, arg.CreatedBy)
	return scanInventoryTransaction(row)
}

type ListInventoryTransactionsParams struct {
	IngredientID pgtype.UUID
	Type         string
	StartDate    pgtype.Timestamptz
	EndDate      pgtype.Timestamptz
	Limit        int32
	Offset       int32
}

func (q *Queries) ListInventoryTransactions(ctx context.Context, arg ListInventoryTransactionsParams) ([]InventoryTransaction, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+inventoryTxColumns+`
		FROM inventory_transactions
		WHERE ($1::uuid IS NULL OR ingredient_id = $1)
		  AND ($2::text = '' OR type = $2)
		  AND ($3::timestamptz IS NULL OR transaction_date >= $3)
		  AND ($4::timestamptz IS NULL OR transaction_date < $4)
		ORDER BY transaction_date DESC
		LIMIT $5 OFFSET $6`,
		arg.IngredientID, arg.Type, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []InventoryTransaction
	for rows.Next() {
		t, err := scanInventoryTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (q *Queries) ListInventoryTransactionsByReference(ctx context.Context, referenceID pgtype.UUID) ([]InventoryTransaction, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+inventoryTxColumns+`
		FROM inventory_transactions
		WHERE reference_id = $1
		ORDER BY transaction_date`,
		referenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []InventoryTransaction
	for rows.Next() {
		t, err := scanInventoryTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
