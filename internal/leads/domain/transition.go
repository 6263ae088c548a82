// Package domain holds the pure decision logic of the lead pipeline:
// which side effects a stage change requires, and the numeric semantics
// of the lead's money fields. Nothing in this package touches storage.
package domain

import "franchise_ops_backend/internal/pipeline"

// Plan lists the side effects a stage-type transition requires. Transitions
// are keyed by the semantic type of the stage left and entered, never by
// specific stage identities. The engine applies effects in declaration order:
// schedule teardown and settlement reversal undo the old stage before
// scheduling and settlement establish the new one.
type Plan struct {
	// TeardownSchedule removes the lead's schedule entry and its staff
	// assignments (leaving a scheduled-type stage).
	TeardownSchedule bool
	// RevertSettlement deletes all non-prepayment ledger transactions
	// (leaving a completed-type stage).
	RevertSettlement bool
	// EnsureSchedule creates or refreshes the lead's schedule entry
	// (entering a scheduled-type stage).
	EnsureSchedule bool
	// RunSettlement regenerates postpayment and payroll transactions
	// (entering a completed-type stage).
	RunSettlement bool
}

// IsZero reports whether the plan carries no effects.
func (p Plan) IsZero() bool {
	return !p.TeardownSchedule && !p.RevertSettlement && !p.EnsureSchedule && !p.RunSettlement
}

// PlanTransition decides the side effects of moving a lead from a stage of
// type from to a stage of type to. Callers must not invoke it when the stage
// id is unchanged; a move between two distinct stages of the same type is a
// real transition (e.g. scheduled -> scheduled refreshes the schedule entry).
func PlanTransition(from, to pipeline.StageType) Plan {
	var p Plan

	if from == pipeline.StageTypeScheduled && to != pipeline.StageTypeScheduled {
		p.TeardownSchedule = true
	}
	if from == pipeline.StageTypeCompleted && to != pipeline.StageTypeCompleted {
		p.RevertSettlement = true
	}
	if to == pipeline.StageTypeScheduled {
		p.EnsureSchedule = true
	}
	if to == pipeline.StageTypeCompleted {
		p.RunSettlement = true
	}

	return p
}
