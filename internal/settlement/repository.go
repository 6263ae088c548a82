// Package settlement derives ledger transactions from a lead's financial
// fields: the prepayment collected up front, the postpayment settled on
// completion, and the payroll cost (FOT) of the booked staff.
package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrTransactionNotFound = errors.New("ledger transaction not found")

// Transaction types.
const (
	TypeIncome  = "income"
	TypeExpense = "expense"
)

// Transaction categories. A lead has at most one prepayment transaction;
// postpayment and fot rows exist only while the lead sits in a
// completed-type stage.
const (
	CategoryPrepayment  = "prepayment"
	CategoryPostpayment = "postpayment"
	CategoryPayroll     = "fot"
)

// Transaction is one ledger row derived from a lead.
type Transaction struct {
	ID          uuid.UUID
	LeadID      uuid.UUID
	FranchiseID uuid.UUID
	Type        string
	Category    string
	Amount      float64
	OccurredOn  time.Time
	CreatedAt   time.Time
}

type CreateTransactionParams struct {
	LeadID      uuid.UUID
	FranchiseID uuid.UUID
	Type        string
	Category    string
	Amount      float64
	OccurredOn  time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const txColumns = `id, lead_id, franchise_id, type, category, amount, occurred_on, created_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.LeadID, &t.FranchiseID, &t.Type, &t.Category, &t.Amount, &t.OccurredOn, &t.CreatedAt)
	return t, err
}

// GetByLeadAndCategory returns the lead's transaction of the given category.
// Used for the prepayment upsert, where at most one row may exist.
func (r *Repository) GetByLeadAndCategory(ctx context.Context, leadID uuid.UUID, category string) (Transaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx, `
		SELECT `+txColumns+`
		FROM ledger_transactions
		WHERE lead_id = $1 AND category = $2
	`, leadID, category))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	return t, nil
}

// Insert creates a ledger transaction.
func (r *Repository) Insert(ctx context.Context, params CreateTransactionParams) (Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx, `
		INSERT INTO ledger_transactions (lead_id, franchise_id, type, category, amount, occurred_on)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+txColumns+`
	`, params.LeadID, params.FranchiseID, params.Type, params.Category, params.Amount, params.OccurredOn))
}

// UpdateAmount changes the amount of an existing transaction.
func (r *Repository) UpdateAmount(ctx context.Context, id uuid.UUID, amount float64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE ledger_transactions SET amount = $2 WHERE id = $1`, id, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// Delete removes a single transaction.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM ledger_transactions WHERE id = $1`, id)
	return err
}

// DeleteNonPrepayment removes every transaction of a lead except the
// prepayment row, which survives stage reversals.
func (r *Repository) DeleteNonPrepayment(ctx context.Context, leadID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM ledger_transactions
		WHERE lead_id = $1 AND category <> $2
	`, leadID, CategoryPrepayment)
	return err
}

// DeleteAllForLead removes every transaction of a lead (deletion cascade).
func (r *Repository) DeleteAllForLead(ctx context.Context, leadID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM ledger_transactions WHERE lead_id = $1`, leadID)
	return err
}
