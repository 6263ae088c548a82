package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded by the transition engine and field updater.
const (
	ActionCreated      = "created"
	ActionFieldChanged = "field_changed"
	ActionStageChanged = "stage_changed"
	ActionScheduled    = "scheduled"
	ActionUnscheduled  = "unscheduled"
	ActionCompleted    = "completed"
	ActionDeleted      = "deleted"
)

// TimelineSummaryMaxLen is the maximum character length for timeline summaries.
const TimelineSummaryMaxLen = 400

// TruncateSummary trims text to maxLen runes, appending "..." on overflow.
// Cutting on a rune boundary keeps Cyrillic summaries valid UTF-8.
func TruncateSummary(text string, maxLen int) string {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) > maxLen {
		trimmed = string(runes[:maxLen]) + "..."
	}
	return trimmed
}

// AuditLogEntry is an append-only record of a change to a lead. Entries are
// deliberately not FK-bound to the lead row: the audit trail survives lead
// deletion.
type AuditLogEntry struct {
	ID          uuid.UUID
	LeadID      uuid.UUID
	FranchiseID uuid.UUID
	ActorID     uuid.UUID
	ActorName   string
	Action      string
	Details     string
	CreatedAt   time.Time
}

type AuditEntryParams struct {
	LeadID      uuid.UUID
	FranchiseID uuid.UUID
	ActorID     uuid.UUID
	ActorName   string
	Action      string
	Details     string
}

// LogAction appends one audit log entry.
func (r *Repository) LogAction(ctx context.Context, params AuditEntryParams) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_log_entries (lead_id, franchise_id, actor_id, actor_name, action, details)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, params.LeadID, params.FranchiseID, params.ActorID, params.ActorName, params.Action, params.Details)
	return err
}

// TimelineEvent is the UI-facing feed entry mirrored from audit actions.
// Same lifecycle as the audit log, richer wording, but deleted with the lead.
type TimelineEvent struct {
	ID          uuid.UUID
	LeadID      uuid.UUID
	FranchiseID uuid.UUID
	ActorName   string
	EventType   string
	Title       string
	Summary     string
	CreatedAt   time.Time
}

type TimelineEventParams struct {
	LeadID      uuid.UUID
	FranchiseID uuid.UUID
	ActorName   string
	EventType   string
	Title       string
	Summary     string
}

// AddTimelineEvent appends one timeline event.
func (r *Repository) AddTimelineEvent(ctx context.Context, params TimelineEventParams) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_timeline_events (lead_id, franchise_id, actor_name, event_type, title, summary)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, params.LeadID, params.FranchiseID, params.ActorName, params.EventType, params.Title,
		TruncateSummary(params.Summary, TimelineSummaryMaxLen))
	return err
}

// ListTimelineEvents returns the lead's feed, newest first.
func (r *Repository) ListTimelineEvents(ctx context.Context, leadID uuid.UUID) ([]TimelineEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, franchise_id, actor_name, event_type, title, summary, created_at
		FROM lead_timeline_events
		WHERE lead_id = $1
		ORDER BY created_at DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]TimelineEvent, 0)
	for rows.Next() {
		var e TimelineEvent
		if err := rows.Scan(&e.ID, &e.LeadID, &e.FranchiseID, &e.ActorName, &e.EventType, &e.Title, &e.Summary, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// DeleteTimelineEvents removes the lead's feed (deletion cascade).
func (r *Repository) DeleteTimelineEvents(ctx context.Context, leadID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM lead_timeline_events WHERE lead_id = $1`, leadID)
	return err
}
