// Package repository provides data access for the leads bounded context.
package repository

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

// Lead is the mutable entity moving through the pipeline.
type Lead struct {
	ID             uuid.UUID
	FranchiseID    uuid.UUID
	PipelineID     uuid.UUID
	StageID        uuid.UUID
	ClientName     string
	ClientPhone    string
	Comment        string
	GameDate       *time.Time
	GameTime       string
	PlayersCount   int
	PricePerPerson float64
	TotalAmount    float64
	Prepayment     float64
	AnimatorsCount int
	AnimatorRate   float64
	HostsCount     int
	HostRate       float64
	DJsCount       int
	DJRate         float64
	ResponsibleID  *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type CreateLeadParams struct {
	FranchiseID    uuid.UUID
	PipelineID     uuid.UUID
	StageID        uuid.UUID
	ClientName     string
	ClientPhone    string
	Comment        string
	GameDate       *time.Time
	GameTime       string
	PlayersCount   int
	PricePerPerson float64
	TotalAmount    float64
	Prepayment     float64
	ResponsibleID  *uuid.UUID
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `id, franchise_id, pipeline_id, stage_id, client_name, client_phone, comment,
	game_date, game_time, players_count, price_per_person, total_amount, prepayment,
	animators_count, animator_rate, hosts_count, host_rate, djs_count, dj_rate,
	responsible_id, created_at, updated_at`

// leadRowScanner is satisfied by pgx.Rows and pgx.Row so scanLead can be
// shared between single-row and multi-row queries.
type leadRowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row leadRowScanner, extra ...any) (Lead, error) {
	var lead Lead
	dest := []any{
		&lead.ID, &lead.FranchiseID, &lead.PipelineID, &lead.StageID, &lead.ClientName, &lead.ClientPhone, &lead.Comment,
		&lead.GameDate, &lead.GameTime, &lead.PlayersCount, &lead.PricePerPerson, &lead.TotalAmount, &lead.Prepayment,
		&lead.AnimatorsCount, &lead.AnimatorRate, &lead.HostsCount, &lead.HostRate, &lead.DJsCount, &lead.DJRate,
		&lead.ResponsibleID, &lead.CreatedAt, &lead.UpdatedAt,
	}
	dest = append(dest, extra...)
	err := row.Scan(dest...)
	return lead, err
}

// Create inserts a new lead.
func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			franchise_id, pipeline_id, stage_id, client_name, client_phone, comment,
			game_date, game_time, players_count, price_per_person, total_amount, prepayment,
			responsible_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+leadColumns,
		params.FranchiseID, params.PipelineID, params.StageID, params.ClientName, params.ClientPhone, params.Comment,
		params.GameDate, params.GameTime, params.PlayersCount, params.PricePerPerson, params.TotalAmount, params.Prepayment,
		params.ResponsibleID))
}

// GetByID returns a lead by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, err
	}
	return lead, nil
}

// GetWithResponsible returns a lead joined with its responsible party's
// display name (empty when unassigned).
func (r *Repository) GetWithResponsible(ctx context.Context, id uuid.UUID) (Lead, string, error) {
	var responsibleName *string
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`, u.display_name
		FROM leads l
		LEFT JOIN users u ON u.id = l.responsible_id
		WHERE l.id = $1
	`, id), &responsibleName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, "", ErrNotFound
		}
		return Lead{}, "", err
	}

	name := ""
	if responsibleName != nil {
		name = *responsibleName
	}
	return lead, name, nil
}

// Update persists every mutable column of the lead.
func (r *Repository) Update(ctx context.Context, lead Lead) (Lead, error) {
	updated, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads SET
			pipeline_id = $2, stage_id = $3, client_name = $4, client_phone = $5, comment = $6,
			game_date = $7, game_time = $8, players_count = $9, price_per_person = $10,
			total_amount = $11, prepayment = $12,
			animators_count = $13, animator_rate = $14, hosts_count = $15, host_rate = $16,
			djs_count = $17, dj_rate = $18, responsible_id = $19, updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns,
		lead.ID, lead.PipelineID, lead.StageID, lead.ClientName, lead.ClientPhone, lead.Comment,
		lead.GameDate, lead.GameTime, lead.PlayersCount, lead.PricePerPerson,
		lead.TotalAmount, lead.Prepayment,
		lead.AnimatorsCount, lead.AnimatorRate, lead.HostsCount, lead.HostRate,
		lead.DJsCount, lead.DJRate, lead.ResponsibleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, err
	}
	return updated, nil
}

// Delete removes the lead row itself. Dependent rows are removed beforehand
// by the service-level cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTasks removes the lead's tasks (deletion cascade).
func (r *Repository) DeleteTasks(ctx context.Context, leadID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM lead_tasks WHERE lead_id = $1`, leadID)
	return err
}

// WithLeadLock runs fn while holding a Postgres session advisory lock keyed
// by the lead id. Two concurrent update requests for the same lead serialize
// on the lock, which removes the read-modify-write race across the multi-step
// update sequence. The lock is held on a dedicated pooled connection; other
// repositories keep using the pool as usual underneath it.
func (r *Repository) WithLeadLock(ctx context.Context, leadID uuid.UUID, fn func(ctx context.Context) error) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	key := advisoryLockKey(leadID)
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, key); err != nil {
		return err
	}
	defer func() {
		// Unlock on the same connection; without it the pool would hand the
		// held lock to an unrelated request.
		_, _ = conn.Exec(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, key)
	}()

	return fn(ctx)
}

// advisoryLockKey folds a UUID into the int64 keyspace of pg_advisory_lock.
func advisoryLockKey(id uuid.UUID) int64 {
	return int64(binary.BigEndian.Uint64(id[:8]) ^ binary.BigEndian.Uint64(id[8:]))
}
