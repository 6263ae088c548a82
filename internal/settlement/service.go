package settlement

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// amountTolerance absorbs float noise when deciding whether a money value
// actually changed.
const amountTolerance = 0.01

// LeadFinancials is the slice of a lead the settlement module works from.
type LeadFinancials struct {
	LeadID         uuid.UUID
	FranchiseID    uuid.UUID
	GameDate       *time.Time
	TotalAmount    float64
	Prepayment     float64
	AnimatorsCount int
	AnimatorRate   float64
	HostsCount     int
	HostRate       float64
	DJsCount       int
	DJRate         float64
}

// PayrollCost is the staffing cost of the game: headcount times rate per role.
func (f LeadFinancials) PayrollCost() float64 {
	return float64(f.AnimatorsCount)*f.AnimatorRate +
		float64(f.HostsCount)*f.HostRate +
		float64(f.DJsCount)*f.DJRate
}

// PrepaymentChange describes the outcome of a prepayment upsert.
type PrepaymentChange struct {
	Previous float64
	Current  float64
}

// Changed reports whether the prepayment moved beyond float noise.
func (c PrepaymentChange) Changed() bool {
	return math.Abs(c.Current-c.Previous) > amountTolerance
}

// CompletionSummary describes the transactions generated on completion.
type CompletionSummary struct {
	Revenue     float64
	Postpayment float64
	Payroll     float64
}

// TransactionStore is the data access the settlement service needs.
type TransactionStore interface {
	GetByLeadAndCategory(ctx context.Context, leadID uuid.UUID, category string) (Transaction, error)
	Insert(ctx context.Context, params CreateTransactionParams) (Transaction, error)
	UpdateAmount(ctx context.Context, id uuid.UUID, amount float64) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteNonPrepayment(ctx context.Context, leadID uuid.UUID) error
	DeleteAllForLead(ctx context.Context, leadID uuid.UUID) error
}

// Service keeps the ledger consistent with a lead's financial fields.
type Service struct {
	store TransactionStore
}

func NewService(store TransactionStore) *Service {
	return &Service{store: store}
}

// UpsertPrepayment reconciles the lead's single prepayment transaction with
// the submitted value: positive values insert or update the row, zero or
// negative values delete it. The previous value is only used for reporting.
func (s *Service) UpsertPrepayment(ctx context.Context, fin LeadFinancials, previous float64) (PrepaymentChange, error) {
	change := PrepaymentChange{Previous: previous, Current: fin.Prepayment}

	existing, err := s.store.GetByLeadAndCategory(ctx, fin.LeadID, CategoryPrepayment)
	switch {
	case err == nil:
		if fin.Prepayment > 0 {
			if err := s.store.UpdateAmount(ctx, existing.ID, fin.Prepayment); err != nil {
				return PrepaymentChange{}, err
			}
		} else if err := s.store.Delete(ctx, existing.ID); err != nil {
			return PrepaymentChange{}, err
		}
	case errors.Is(err, ErrTransactionNotFound):
		if fin.Prepayment > 0 {
			if _, err := s.store.Insert(ctx, CreateTransactionParams{
				LeadID:      fin.LeadID,
				FranchiseID: fin.FranchiseID,
				Type:        TypeIncome,
				Category:    CategoryPrepayment,
				Amount:      fin.Prepayment,
				OccurredOn:  occurredOn(fin),
			}); err != nil {
				return PrepaymentChange{}, err
			}
		}
	default:
		return PrepaymentChange{}, err
	}

	return change, nil
}

// Complete regenerates the completion transactions of a lead: every
// non-prepayment row is deleted, then a postpayment income row and a payroll
// expense row are inserted when their amounts are positive. Regeneration
// rather than merge keeps repeated entries into a completed-type stage
// idempotent.
func (s *Service) Complete(ctx context.Context, fin LeadFinancials) (CompletionSummary, error) {
	if err := s.store.DeleteNonPrepayment(ctx, fin.LeadID); err != nil {
		return CompletionSummary{}, err
	}

	summary := CompletionSummary{
		Revenue:     fin.TotalAmount,
		Postpayment: fin.TotalAmount - fin.Prepayment,
		Payroll:     fin.PayrollCost(),
	}

	if summary.Postpayment > 0 {
		if _, err := s.store.Insert(ctx, CreateTransactionParams{
			LeadID:      fin.LeadID,
			FranchiseID: fin.FranchiseID,
			Type:        TypeIncome,
			Category:    CategoryPostpayment,
			Amount:      summary.Postpayment,
			OccurredOn:  occurredOn(fin),
		}); err != nil {
			return CompletionSummary{}, err
		}
	}

	if summary.Payroll > 0 {
		if _, err := s.store.Insert(ctx, CreateTransactionParams{
			LeadID:      fin.LeadID,
			FranchiseID: fin.FranchiseID,
			Type:        TypeExpense,
			Category:    CategoryPayroll,
			Amount:      summary.Payroll,
			OccurredOn:  occurredOn(fin),
		}); err != nil {
			return CompletionSummary{}, err
		}
	}

	return summary, nil
}

// Revert removes every transaction the completion routine generated. The
// prepayment row survives: it records money actually received.
func (s *Service) Revert(ctx context.Context, leadID uuid.UUID) error {
	return s.store.DeleteNonPrepayment(ctx, leadID)
}

// DeleteAll removes every transaction of a lead, for the deletion cascade.
func (s *Service) DeleteAll(ctx context.Context, leadID uuid.UUID) error {
	return s.store.DeleteAllForLead(ctx, leadID)
}

func occurredOn(fin LeadFinancials) time.Time {
	if fin.GameDate != nil {
		return *fin.GameDate
	}
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
