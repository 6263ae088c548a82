// Package pipeline provides the stage registry: pipelines and their stages.
// Stage definitions are read-only lookups during a lead transition; the
// semantic type of a stage is what drives the transition engine.
package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// StageType is the semantic type of a pipeline stage. It is a closed enum:
// the transition engine switches on the type of the stage left and entered,
// never on stage identities.
type StageType int

const (
	// StageTypeNormal is a stage with no side effects on entry or exit.
	StageTypeNormal StageType = iota
	// StageTypeScheduled mirrors the lead onto the schedule board while occupied.
	StageTypeScheduled
	// StageTypeCompleted triggers settlement on entry and reversal on exit.
	StageTypeCompleted
)

const (
	stageTypeNormalName    = "normal"
	stageTypeScheduledName = "scheduled"
	stageTypeCompletedName = "completed"
)

// ParseStageType maps a stored stage type to the enum. Unknown or empty values
// degrade to StageTypeNormal, matching the engine's treatment of unresolved
// stages.
func ParseStageType(s string) StageType {
	switch s {
	case stageTypeScheduledName:
		return StageTypeScheduled
	case stageTypeCompletedName:
		return StageTypeCompleted
	default:
		return StageTypeNormal
	}
}

// String returns the persisted representation of the stage type.
func (t StageType) String() string {
	switch t {
	case StageTypeScheduled:
		return stageTypeScheduledName
	case StageTypeCompleted:
		return stageTypeCompletedName
	default:
		return stageTypeNormalName
	}
}

// Stage is a position within a pipeline.
type Stage struct {
	ID         uuid.UUID
	PipelineID uuid.UUID
	Name       string
	Type       StageType
	Position   int
	CreatedAt  time.Time
}

// Pipeline groups stages for one franchise.
type Pipeline struct {
	ID          uuid.UUID
	FranchiseID uuid.UUID
	Name        string
	CreatedAt   time.Time
}
