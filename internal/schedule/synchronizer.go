package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Default slot for entries created from a lead that carries no game time.
const defaultGameTime = "14:00"

// LeadSnapshot is the slice of a lead the synchronizer mirrors onto the board.
type LeadSnapshot struct {
	LeadID         uuid.UUID
	FranchiseID    uuid.UUID
	Title          string
	GameDate       *time.Time
	GameTime       string
	PlayersCount   int
	TotalAmount    float64
	AnimatorsCount int
	HostsCount     int
	DJsCount       int
}

// StaffGap reports a role on an entry that has fewer staff assigned than the
// lead requires.
type StaffGap struct {
	Role     string
	Required int
	Assigned int
}

// EntryStore is the data access the synchronizer needs.
type EntryStore interface {
	GetByLeadID(ctx context.Context, leadID uuid.UUID) (Entry, error)
	Insert(ctx context.Context, params CreateEntryParams) (Entry, error)
	Update(ctx context.Context, id uuid.UUID, params UpdateEntryParams) (Entry, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAssignments(ctx context.Context, entryID uuid.UUID) error
	CountAssignmentsByRole(ctx context.Context, entryID uuid.UUID) (map[string]int, error)
}

// Synchronizer keeps the 1:1 relationship between a lead in a scheduled-type
// stage and its schedule entry.
type Synchronizer struct {
	store EntryStore
}

func NewSynchronizer(store EntryStore) *Synchronizer {
	return &Synchronizer{store: store}
}

// Ensure makes the lead's schedule entry exist and reflect the lead. It is
// idempotent: an existing entry gets its mirrored fields refreshed, a missing
// one is inserted with default time 14:00 and today's date when the lead has
// none. It also reports which staff roles are still under-booked.
func (s *Synchronizer) Ensure(ctx context.Context, snap LeadSnapshot) (Entry, []StaffGap, error) {
	entry, err := s.store.GetByLeadID(ctx, snap.LeadID)
	switch {
	case errors.Is(err, ErrEntryNotFound):
		entry, err = s.store.Insert(ctx, CreateEntryParams{
			LeadID:       snap.LeadID,
			FranchiseID:  snap.FranchiseID,
			Title:        snap.Title,
			GameDate:     dateOrToday(snap.GameDate),
			GameTime:     timeOrDefault(snap.GameTime),
			PlayersCount: snap.PlayersCount,
			TotalAmount:  snap.TotalAmount,
		})
		if err != nil {
			return Entry{}, nil, err
		}
	case err != nil:
		return Entry{}, nil, err
	default:
		// Mirror the lead's current values; keep the entry's own date and
		// time when the lead carries none.
		gameDate := entry.GameDate
		if snap.GameDate != nil {
			gameDate = *snap.GameDate
		}
		gameTime := entry.GameTime
		if snap.GameTime != "" {
			gameTime = snap.GameTime
		}

		entry, err = s.store.Update(ctx, entry.ID, UpdateEntryParams{
			Title:        snap.Title,
			GameDate:     gameDate,
			GameTime:     gameTime,
			PlayersCount: snap.PlayersCount,
			TotalAmount:  snap.TotalAmount,
		})
		if err != nil {
			return Entry{}, nil, err
		}
	}

	gaps, err := s.staffGaps(ctx, entry.ID, snap)
	if err != nil {
		return Entry{}, nil, err
	}

	return entry, gaps, nil
}

// Teardown removes the lead's schedule entry and its staff assignments.
// Calling it for a lead without an entry is a no-op.
func (s *Synchronizer) Teardown(ctx context.Context, leadID uuid.UUID) error {
	entry, err := s.store.GetByLeadID(ctx, leadID)
	if errors.Is(err, ErrEntryNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	// Assignments first: they reference the entry.
	if err := s.store.DeleteAssignments(ctx, entry.ID); err != nil {
		return err
	}
	return s.store.Delete(ctx, entry.ID)
}

func (s *Synchronizer) staffGaps(ctx context.Context, entryID uuid.UUID, snap LeadSnapshot) ([]StaffGap, error) {
	assigned, err := s.store.CountAssignmentsByRole(ctx, entryID)
	if err != nil {
		return nil, err
	}

	required := []struct {
		role  string
		count int
	}{
		{RoleAnimator, snap.AnimatorsCount},
		{RoleHost, snap.HostsCount},
		{RoleDJ, snap.DJsCount},
	}

	var gaps []StaffGap
	for _, req := range required {
		if req.count > assigned[req.role] {
			gaps = append(gaps, StaffGap{Role: req.role, Required: req.count, Assigned: assigned[req.role]})
		}
	}

	return gaps, nil
}

func dateOrToday(d *time.Time) time.Time {
	if d != nil {
		return *d
	}
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func timeOrDefault(t string) string {
	if t != "" {
		return t
	}
	return defaultGameTime
}
