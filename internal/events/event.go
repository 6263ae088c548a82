// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"franchise_ops_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadReassigned is published when responsibility for a lead changes hands.
// The notification module creates an in-app notification for the new
// responsible user; dispatch failure never aborts the originating update.
type LeadReassigned struct {
	BaseEvent
	LeadID       uuid.UUID  `json:"leadId"`
	FranchiseID  uuid.UUID  `json:"franchiseId"`
	LeadName     string     `json:"leadName"`
	PreviousID   *uuid.UUID `json:"previousId,omitempty"`
	NewID        uuid.UUID  `json:"newId"`
	ReassignedBy uuid.UUID  `json:"reassignedBy"`
}

func (e LeadReassigned) EventName() string { return "leads.reassigned" }

// GameScheduled is published when a lead enters a scheduled-type stage and its
// schedule entry has been created or refreshed.
type GameScheduled struct {
	BaseEvent
	LeadID        uuid.UUID  `json:"leadId"`
	FranchiseID   uuid.UUID  `json:"franchiseId"`
	LeadName      string     `json:"leadName"`
	GameDate      time.Time  `json:"gameDate"`
	GameTime      string     `json:"gameTime"`
	ResponsibleID *uuid.UUID `json:"responsibleId,omitempty"`
}

func (e GameScheduled) EventName() string { return "leads.game.scheduled" }

// GameUnscheduled is published when a lead leaves a scheduled-type stage and
// its schedule entry has been torn down.
type GameUnscheduled struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	FranchiseID uuid.UUID `json:"franchiseId"`
	LeadName    string    `json:"leadName"`
}

func (e GameUnscheduled) EventName() string { return "leads.game.unscheduled" }

// LeadDeleted is published after a lead and all its dependents are removed.
type LeadDeleted struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	FranchiseID uuid.UUID `json:"franchiseId"`
	DeletedBy   uuid.UUID `json:"deletedBy"`
}

func (e LeadDeleted) EventName() string { return "leads.deleted" }
