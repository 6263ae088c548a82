// Package service implements the lead lifecycle: partial updates with a field
// diff, the stage transition engine with its schedule and settlement effects,
// and the deletion cascade.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"franchise_ops_backend/internal/events"
	"franchise_ops_backend/internal/leads/domain"
	"franchise_ops_backend/internal/leads/repository"
	"franchise_ops_backend/internal/leads/transport"
	"franchise_ops_backend/internal/pipeline"
	"franchise_ops_backend/internal/schedule"
	"franchise_ops_backend/internal/settlement"
	"franchise_ops_backend/platform/apperr"
	"franchise_ops_backend/platform/logger"
	"franchise_ops_backend/platform/phone"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Actor identifies the authenticated user performing an operation.
type Actor struct {
	ID   uuid.UUID
	Name string
}

// LeadStore is the lead data access the service needs.
type LeadStore interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	GetWithResponsible(ctx context.Context, id uuid.UUID) (repository.Lead, string, error)
	Update(ctx context.Context, lead repository.Lead) (repository.Lead, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteTasks(ctx context.Context, leadID uuid.UUID) error
	WithLeadLock(ctx context.Context, leadID uuid.UUID, fn func(ctx context.Context) error) error
}

// Recorder writes the audit log and the lead timeline.
type Recorder interface {
	LogAction(ctx context.Context, params repository.AuditEntryParams) error
	AddTimelineEvent(ctx context.Context, params repository.TimelineEventParams) error
	DeleteTimelineEvents(ctx context.Context, leadID uuid.UUID) error
}

// StageRegistry resolves stage and pipeline definitions.
type StageRegistry interface {
	GetStage(ctx context.Context, id uuid.UUID) (pipeline.Stage, error)
	GetPipeline(ctx context.Context, id uuid.UUID) (pipeline.Pipeline, error)
}

// Synchronizer keeps the schedule board in sync with scheduled-type leads.
type Synchronizer interface {
	Ensure(ctx context.Context, snap schedule.LeadSnapshot) (schedule.Entry, []schedule.StaffGap, error)
	Teardown(ctx context.Context, leadID uuid.UUID) error
}

// Settler keeps the ledger in sync with a lead's financial fields.
type Settler interface {
	UpsertPrepayment(ctx context.Context, fin settlement.LeadFinancials, previous float64) (settlement.PrepaymentChange, error)
	Complete(ctx context.Context, fin settlement.LeadFinancials) (settlement.CompletionSummary, error)
	Revert(ctx context.Context, leadID uuid.UUID) error
	DeleteAll(ctx context.Context, leadID uuid.UUID) error
}

// Service orchestrates lead mutations.
type Service struct {
	leads    LeadStore
	recorder Recorder
	stages   StageRegistry
	board    Synchronizer
	settler  Settler
	bus      events.Bus
	log      *logger.Logger
}

func New(leads LeadStore, recorder Recorder, stages StageRegistry, board Synchronizer, settler Settler, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		leads:    leads,
		recorder: recorder,
		stages:   stages,
		board:    board,
		settler:  settler,
		bus:      bus,
		log:      log,
	}
}

// Create inserts a lead directly into a pipeline stage. Creation records an
// audit entry and reconciles the prepayment row, but never fires transition
// effects; those belong to updates.
func (s *Service) Create(ctx context.Context, req transport.CreateLeadRequest, actor Actor, franchiseID uuid.UUID) (transport.LeadResponse, error) {
	if _, err := s.stages.GetStage(ctx, req.StageID); err != nil {
		if errors.Is(err, pipeline.ErrStageNotFound) {
			return transport.LeadResponse{}, apperr.Validation("stage not found")
		}
		return transport.LeadResponse{}, err
	}

	lead, err := s.leads.Create(ctx, repository.CreateLeadParams{
		FranchiseID:    franchiseID,
		PipelineID:     req.PipelineID,
		StageID:        req.StageID,
		ClientName:     req.ClientName,
		ClientPhone:    phone.NormalizeE164(req.ClientPhone),
		Comment:        req.Comment,
		GameDate:       req.GameDate,
		GameTime:       req.GameTime,
		PlayersCount:   req.PlayersCount,
		PricePerPerson: req.PricePerPerson,
		TotalAmount:    float64(req.PlayersCount) * req.PricePerPerson,
		Prepayment:     req.Prepayment,
		ResponsibleID:  req.ResponsibleID,
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}

	if err := s.recorder.LogAction(ctx, repository.AuditEntryParams{
		LeadID:      lead.ID,
		FranchiseID: lead.FranchiseID,
		ActorID:     actor.ID,
		ActorName:   actor.Name,
		Action:      repository.ActionCreated,
		Details:     fmt.Sprintf("lead %q created", lead.ClientName),
	}); err != nil {
		return transport.LeadResponse{}, err
	}
	s.timeline(ctx, lead, actor, repository.ActionCreated, "Lead created",
		fmt.Sprintf("%s created lead %q", actor.Name, lead.ClientName))

	if lead.Prepayment > 0 {
		if _, err := s.settler.UpsertPrepayment(ctx, financials(lead), 0); err != nil {
			return transport.LeadResponse{}, err
		}
	}

	return s.respond(ctx, lead.ID)
}

// Get returns a single lead with its responsible party's name resolved.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	return s.respond(ctx, id)
}

// Update applies a partial update to a lead. The whole sequence runs under a
// per-lead advisory lock so two concurrent updates of the same lead serialize
// instead of interleaving their stage effects.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateLeadRequest, actor Actor) (transport.LeadResponse, error) {
	var resp transport.LeadResponse
	err := s.leads.WithLeadLock(ctx, id, func(ctx context.Context) error {
		var err error
		resp, err = s.update(ctx, id, req, actor)
		return err
	})
	return resp, err
}

func (s *Service) update(ctx context.Context, id uuid.UUID, req transport.UpdateLeadRequest, actor Actor) (transport.LeadResponse, error) {
	lead, err := s.leads.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadResponse{}, err
	}
	previous := lead

	changes := ApplyFields(&lead, req)

	// A stage transition happens only when a different stage id was actually
	// submitted. Moving a lead between pipelines without changing its stage
	// never fires effects.
	stageChanged := req.StageID.Set && req.StageID.Value != nil && *req.StageID.Value != lead.StageID
	var fromStage, toStage pipeline.Stage
	if stageChanged {
		fromStage, err = s.resolveStage(ctx, lead.StageID)
		if err != nil {
			return transport.LeadResponse{}, err
		}
		toStage, err = s.resolveStage(ctx, *req.StageID.Value)
		if err != nil {
			return transport.LeadResponse{}, err
		}
		lead.StageID = *req.StageID.Value
	}

	updated, err := s.leads.Update(ctx, lead)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadResponse{}, err
	}

	for _, change := range changes {
		if err := s.recorder.LogAction(ctx, repository.AuditEntryParams{
			LeadID:      updated.ID,
			FranchiseID: updated.FranchiseID,
			ActorID:     actor.ID,
			ActorName:   actor.Name,
			Action:      repository.ActionFieldChanged,
			Details:     fmt.Sprintf("%s: %q -> %q", change.Field, change.Old, change.New),
		}); err != nil {
			return transport.LeadResponse{}, err
		}
		s.timeline(ctx, updated, actor, repository.ActionFieldChanged, "Field updated",
			fmt.Sprintf("%s changed from %q to %q", change.Field, change.Old, change.New))
	}

	if req.Prepayment.Set {
		change, err := s.settler.UpsertPrepayment(ctx, financials(updated), previous.Prepayment)
		if err != nil {
			return transport.LeadResponse{}, err
		}
		if change.Changed() {
			s.timeline(ctx, updated, actor, repository.ActionFieldChanged, "Prepayment updated",
				fmt.Sprintf("Prepayment changed from %s to %s", formatMoney(change.Previous), formatMoney(change.Current)))
		}
	}

	s.notifyReassignment(ctx, previous, updated, actor, req)

	if stageChanged {
		if err := s.runTransition(ctx, updated, fromStage, toStage, actor); err != nil {
			return transport.LeadResponse{}, err
		}
	}

	return s.respond(ctx, id)
}

// runTransition records the stage change and applies its effects in a fixed
// order: teardown of the old stage type first, then setup of the new one.
func (s *Service) runTransition(ctx context.Context, lead repository.Lead, fromStage, toStage pipeline.Stage, actor Actor) error {
	plan := domain.PlanTransition(fromStage.Type, toStage.Type)
	pipelineSuffix := s.pipelineSuffix(ctx, toStage)

	if err := s.recorder.LogAction(ctx, repository.AuditEntryParams{
		LeadID:      lead.ID,
		FranchiseID: lead.FranchiseID,
		ActorID:     actor.ID,
		ActorName:   actor.Name,
		Action:      repository.ActionStageChanged,
		Details:     fmt.Sprintf("stage: %q -> %q%s", stageName(fromStage), stageName(toStage), pipelineSuffix),
	}); err != nil {
		return err
	}
	s.timeline(ctx, lead, actor, repository.ActionStageChanged, "Stage changed",
		fmt.Sprintf("%s moved the lead from %q to %q%s", actor.Name, stageName(fromStage), stageName(toStage), pipelineSuffix))

	if plan.TeardownSchedule {
		if err := s.board.Teardown(ctx, lead.ID); err != nil {
			return err
		}
		if err := s.recorder.LogAction(ctx, repository.AuditEntryParams{
			LeadID:      lead.ID,
			FranchiseID: lead.FranchiseID,
			ActorID:     actor.ID,
			ActorName:   actor.Name,
			Action:      repository.ActionUnscheduled,
			Details:     "schedule entry removed",
		}); err != nil {
			return err
		}
		s.bus.Publish(ctx, events.GameUnscheduled{
			BaseEvent:   events.NewBaseEvent(),
			LeadID:      lead.ID,
			FranchiseID: lead.FranchiseID,
			LeadName:    lead.ClientName,
		})
	}

	if plan.RevertSettlement {
		if err := s.settler.Revert(ctx, lead.ID); err != nil {
			return err
		}
		s.timeline(ctx, lead, actor, repository.ActionStageChanged, "Settlement reverted",
			"Completion transactions removed; the prepayment is kept")
	}

	if plan.EnsureSchedule {
		entry, gaps, err := s.board.Ensure(ctx, snapshot(lead))
		if err != nil {
			return err
		}
		if err := s.recorder.LogAction(ctx, repository.AuditEntryParams{
			LeadID:      lead.ID,
			FranchiseID: lead.FranchiseID,
			ActorID:     actor.ID,
			ActorName:   actor.Name,
			Action:      repository.ActionScheduled,
			Details:     scheduledDetails(entry, gaps),
		}); err != nil {
			return err
		}
		for _, gap := range gaps {
			s.timeline(ctx, lead, actor, repository.ActionScheduled, "Staffing gap",
				fmt.Sprintf("Role %s needs %d, %d assigned", gap.Role, gap.Required, gap.Assigned))
		}
		s.bus.Publish(ctx, events.GameScheduled{
			BaseEvent:     events.NewBaseEvent(),
			LeadID:        lead.ID,
			FranchiseID:   lead.FranchiseID,
			LeadName:      lead.ClientName,
			GameDate:      entry.GameDate,
			GameTime:      entry.GameTime,
			ResponsibleID: lead.ResponsibleID,
		})
	}

	if plan.RunSettlement {
		// Re-read: earlier effects of this request may have touched the row.
		fresh, err := s.leads.GetByID(ctx, lead.ID)
		if err != nil {
			return err
		}
		summary, err := s.settler.Complete(ctx, financials(fresh))
		if err != nil {
			return err
		}
		if err := s.recorder.LogAction(ctx, repository.AuditEntryParams{
			LeadID:      lead.ID,
			FranchiseID: lead.FranchiseID,
			ActorID:     actor.ID,
			ActorName:   actor.Name,
			Action:      repository.ActionCompleted,
			Details: fmt.Sprintf("settled: revenue %s, postpayment %s, fot %s",
				formatMoney(summary.Revenue), formatMoney(summary.Postpayment), formatMoney(summary.Payroll)),
		}); err != nil {
			return err
		}
		s.timeline(ctx, lead, actor, repository.ActionCompleted, "Game completed",
			fmt.Sprintf("Revenue %s settled (postpayment %s, fot %s)",
				formatMoney(summary.Revenue), formatMoney(summary.Postpayment), formatMoney(summary.Payroll)))
	}

	return nil
}

// Delete removes a lead and all its dependents. The audit log entry is written
// first and survives: audit entries are not FK-bound to the lead.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor Actor) error {
	return s.leads.WithLeadLock(ctx, id, func(ctx context.Context) error {
		lead, err := s.leads.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.NotFound("lead not found")
			}
			return err
		}

		if err := s.recorder.LogAction(ctx, repository.AuditEntryParams{
			LeadID:      lead.ID,
			FranchiseID: lead.FranchiseID,
			ActorID:     actor.ID,
			ActorName:   actor.Name,
			Action:      repository.ActionDeleted,
			Details:     fmt.Sprintf("lead %q deleted", lead.ClientName),
		}); err != nil {
			return err
		}

		// Dependents are independent of each other; only the lead row itself
		// must wait for all of them.
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return s.settler.DeleteAll(gctx, lead.ID) })
		g.Go(func() error { return s.board.Teardown(gctx, lead.ID) })
		g.Go(func() error { return s.leads.DeleteTasks(gctx, lead.ID) })
		g.Go(func() error { return s.recorder.DeleteTimelineEvents(gctx, lead.ID) })
		if err := g.Wait(); err != nil {
			return err
		}

		if err := s.leads.Delete(ctx, lead.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.NotFound("lead not found")
			}
			return err
		}

		s.bus.Publish(ctx, events.LeadDeleted{
			BaseEvent:   events.NewBaseEvent(),
			LeadID:      lead.ID,
			FranchiseID: lead.FranchiseID,
			DeletedBy:   actor.ID,
		})
		return nil
	})
}

// notifyReassignment publishes LeadReassigned when responsibility moved to a
// different user. Self-assignment and clearing the responsible are silent.
func (s *Service) notifyReassignment(ctx context.Context, previous, updated repository.Lead, actor Actor, req transport.UpdateLeadRequest) {
	if !req.ResponsibleID.Set || updated.ResponsibleID == nil {
		return
	}
	if previous.ResponsibleID != nil && *previous.ResponsibleID == *updated.ResponsibleID {
		return
	}
	if *updated.ResponsibleID == actor.ID {
		return
	}

	s.bus.Publish(ctx, events.LeadReassigned{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       updated.ID,
		FranchiseID:  updated.FranchiseID,
		LeadName:     updated.ClientName,
		PreviousID:   previous.ResponsibleID,
		NewID:        *updated.ResponsibleID,
		ReassignedBy: actor.ID,
	})
}

// resolveStage looks up a stage; a dangling reference degrades to an unknown
// normal-type stage instead of failing the update.
func (s *Service) resolveStage(ctx context.Context, id uuid.UUID) (pipeline.Stage, error) {
	stage, err := s.stages.GetStage(ctx, id)
	if errors.Is(err, pipeline.ErrStageNotFound) {
		return pipeline.Stage{ID: id, Type: pipeline.StageTypeNormal}, nil
	}
	if err != nil {
		return pipeline.Stage{}, err
	}
	return stage, nil
}

func (s *Service) pipelineSuffix(ctx context.Context, stage pipeline.Stage) string {
	if stage.PipelineID == uuid.Nil {
		return ""
	}
	p, err := s.stages.GetPipeline(ctx, stage.PipelineID)
	if err != nil {
		return ""
	}
	return fmt.Sprintf(" in pipeline %q", p.Name)
}

// timeline appends a feed event; failures are logged and never abort the
// request, the audit log remains the authoritative trail.
func (s *Service) timeline(ctx context.Context, lead repository.Lead, actor Actor, eventType, title, summary string) {
	err := s.recorder.AddTimelineEvent(ctx, repository.TimelineEventParams{
		LeadID:      lead.ID,
		FranchiseID: lead.FranchiseID,
		ActorName:   actor.Name,
		EventType:   eventType,
		Title:       title,
		Summary:     summary,
	})
	if err != nil {
		s.log.SideEffectError("timeline", err, lead.ID.String())
	}
}

func (s *Service) respond(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	lead, responsibleName, err := s.leads.GetWithResponsible(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadResponse{}, err
	}
	return toResponse(lead, responsibleName), nil
}

// scheduledDetails builds the "scheduled" audit line, appending unmet staffing
// per role as assigned/required.
func scheduledDetails(entry schedule.Entry, gaps []schedule.StaffGap) string {
	details := fmt.Sprintf("game scheduled for %s %s", entry.GameDate.Format("2006-01-02"), entry.GameTime)
	if len(gaps) == 0 {
		return details
	}

	parts := make([]string, 0, len(gaps))
	for _, gap := range gaps {
		parts = append(parts, fmt.Sprintf("%s %d/%d", gap.Role, gap.Assigned, gap.Required))
	}
	return details + "; unmet staffing: " + strings.Join(parts, ", ")
}

func stageName(stage pipeline.Stage) string {
	if stage.Name == "" {
		return "unknown"
	}
	return stage.Name
}

func snapshot(lead repository.Lead) schedule.LeadSnapshot {
	return schedule.LeadSnapshot{
		LeadID:         lead.ID,
		FranchiseID:    lead.FranchiseID,
		Title:          lead.ClientName,
		GameDate:       lead.GameDate,
		GameTime:       lead.GameTime,
		PlayersCount:   lead.PlayersCount,
		TotalAmount:    lead.TotalAmount,
		AnimatorsCount: lead.AnimatorsCount,
		HostsCount:     lead.HostsCount,
		DJsCount:       lead.DJsCount,
	}
}

func financials(lead repository.Lead) settlement.LeadFinancials {
	return settlement.LeadFinancials{
		LeadID:         lead.ID,
		FranchiseID:    lead.FranchiseID,
		GameDate:       lead.GameDate,
		TotalAmount:    lead.TotalAmount,
		Prepayment:     lead.Prepayment,
		AnimatorsCount: lead.AnimatorsCount,
		AnimatorRate:   lead.AnimatorRate,
		HostsCount:     lead.HostsCount,
		HostRate:       lead.HostRate,
		DJsCount:       lead.DJsCount,
		DJRate:         lead.DJRate,
	}
}

func toResponse(lead repository.Lead, responsibleName string) transport.LeadResponse {
	var gameDate *string
	if lead.GameDate != nil {
		formatted := lead.GameDate.Format("2006-01-02")
		gameDate = &formatted
	}

	return transport.LeadResponse{
		ID:              lead.ID,
		FranchiseID:     lead.FranchiseID,
		PipelineID:      lead.PipelineID,
		StageID:         lead.StageID,
		ClientName:      lead.ClientName,
		ClientPhone:     lead.ClientPhone,
		Comment:         lead.Comment,
		GameDate:        gameDate,
		GameTime:        lead.GameTime,
		PlayersCount:    lead.PlayersCount,
		PricePerPerson:  lead.PricePerPerson,
		TotalAmount:     lead.TotalAmount,
		Prepayment:      lead.Prepayment,
		AnimatorsCount:  lead.AnimatorsCount,
		AnimatorRate:    lead.AnimatorRate,
		HostsCount:      lead.HostsCount,
		HostRate:        lead.HostRate,
		DJsCount:        lead.DJsCount,
		DJRate:          lead.DJRate,
		ResponsibleID:   lead.ResponsibleID,
		ResponsibleName: responsibleName,
		CreatedAt:       lead.CreatedAt,
		UpdatedAt:       lead.UpdatedAt,
	}
}
