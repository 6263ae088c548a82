// Package schedule owns the schedule board: one entry per lead occupying a
// scheduled-type stage, plus the staff assignments hanging off each entry.
// Entries are derived records; the synchronizer is their only writer.
package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrEntryNotFound = errors.New("schedule entry not found")

// Staff roles on a schedule entry.
const (
	RoleAnimator = "animator"
	RoleHost     = "host"
	RoleDJ       = "dj"
)

// Entry is the calendar-board row mirroring a lead.
type Entry struct {
	ID           uuid.UUID
	LeadID       uuid.UUID
	FranchiseID  uuid.UUID
	Title        string
	GameDate     time.Time
	GameTime     string
	PlayersCount int
	TotalAmount  float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StaffAssignment is a staff member booked onto a schedule entry.
type StaffAssignment struct {
	ID              uuid.UUID
	ScheduleEntryID uuid.UUID
	UserID          uuid.UUID
	Role            string
	CreatedAt       time.Time
}

type CreateEntryParams struct {
	LeadID       uuid.UUID
	FranchiseID  uuid.UUID
	Title        string
	GameDate     time.Time
	GameTime     string
	PlayersCount int
	TotalAmount  float64
}

type UpdateEntryParams struct {
	Title        string
	GameDate     time.Time
	GameTime     string
	PlayersCount int
	TotalAmount  float64
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `id, lead_id, franchise_id, title, game_date, game_time, players_count, total_amount, created_at, updated_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.LeadID, &e.FranchiseID, &e.Title, &e.GameDate, &e.GameTime,
		&e.PlayersCount, &e.TotalAmount, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// GetByLeadID returns the lead's schedule entry, if any.
func (r *Repository) GetByLeadID(ctx context.Context, leadID uuid.UUID) (Entry, error) {
	entry, err := scanEntry(r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM schedule_entries
		WHERE lead_id = $1
	`, leadID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	return entry, nil
}

// Insert creates a schedule entry for a lead. The unique index on lead_id
// backs the 1:1 invariant between a lead and its entry.
func (r *Repository) Insert(ctx context.Context, params CreateEntryParams) (Entry, error) {
	return scanEntry(r.pool.QueryRow(ctx, `
		INSERT INTO schedule_entries (lead_id, franchise_id, title, game_date, game_time, players_count, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+entryColumns+`
	`, params.LeadID, params.FranchiseID, params.Title, params.GameDate, params.GameTime,
		params.PlayersCount, params.TotalAmount))
}

// Update refreshes the denormalized display fields of an entry.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateEntryParams) (Entry, error) {
	entry, err := scanEntry(r.pool.QueryRow(ctx, `
		UPDATE schedule_entries
		SET title = $2, game_date = $3, game_time = $4, players_count = $5, total_amount = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+entryColumns+`
	`, id, params.Title, params.GameDate, params.GameTime, params.PlayersCount, params.TotalAmount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	return entry, nil
}

// Delete removes a schedule entry.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM schedule_entries WHERE id = $1`, id)
	return err
}

// DeleteAssignments removes every staff assignment on an entry.
func (r *Repository) DeleteAssignments(ctx context.Context, entryID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM staff_assignments WHERE schedule_entry_id = $1`, entryID)
	return err
}

// CountAssignmentsByRole returns how many staff of each role are booked on an entry.
func (r *Repository) CountAssignmentsByRole(ctx context.Context, entryID uuid.UUID) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT role, count(*)
		FROM staff_assignments
		WHERE schedule_entry_id = $1
		GROUP BY role
	`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			role string
			n    int
		)
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		counts[role] = n
	}

	return counts, rows.Err()
}
