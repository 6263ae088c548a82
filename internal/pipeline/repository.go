package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrStageNotFound    = errors.New("pipeline stage not found")
	ErrPipelineNotFound = errors.New("pipeline not found")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetStage returns a stage definition by id.
func (r *Repository) GetStage(ctx context.Context, id uuid.UUID) (Stage, error) {
	var (
		stage   Stage
		rawType string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, pipeline_id, name, stage_type, position, created_at
		FROM pipeline_stages
		WHERE id = $1
	`, id).Scan(&stage.ID, &stage.PipelineID, &stage.Name, &rawType, &stage.Position, &stage.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stage{}, ErrStageNotFound
		}
		return Stage{}, err
	}

	stage.Type = ParseStageType(rawType)
	return stage, nil
}

// GetPipeline returns a pipeline by id.
func (r *Repository) GetPipeline(ctx context.Context, id uuid.UUID) (Pipeline, error) {
	var p Pipeline
	err := r.pool.QueryRow(ctx, `
		SELECT id, franchise_id, name, created_at
		FROM pipelines
		WHERE id = $1
	`, id).Scan(&p.ID, &p.FranchiseID, &p.Name, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Pipeline{}, ErrPipelineNotFound
		}
		return Pipeline{}, err
	}
	return p, nil
}

// ListStages returns the stages of a pipeline in board order.
func (r *Repository) ListStages(ctx context.Context, pipelineID uuid.UUID) ([]Stage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, pipeline_id, name, stage_type, position, created_at
		FROM pipeline_stages
		WHERE pipeline_id = $1
		ORDER BY position ASC
	`, pipelineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := make([]Stage, 0)
	for rows.Next() {
		var (
			stage   Stage
			rawType string
		)
		if err := rows.Scan(&stage.ID, &stage.PipelineID, &stage.Name, &rawType, &stage.Position, &stage.CreatedAt); err != nil {
			return nil, err
		}
		stage.Type = ParseStageType(rawType)
		stages = append(stages, stage)
	}

	return stages, rows.Err()
}
