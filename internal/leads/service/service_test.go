package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"franchise_ops_backend/internal/events"
	"franchise_ops_backend/internal/leads/repository"
	"franchise_ops_backend/internal/leads/transport"
	"franchise_ops_backend/internal/pipeline"
	"franchise_ops_backend/internal/schedule"
	"franchise_ops_backend/internal/settlement"
	"franchise_ops_backend/platform/apperr"
	"franchise_ops_backend/platform/logger"

	"github.com/google/uuid"
)

// ---- fakes ----

type fakeLeadStore struct {
	leads map[uuid.UUID]repository.Lead
	names map[uuid.UUID]string
	locks int
}

func newFakeLeadStore() *fakeLeadStore {
	return &fakeLeadStore{
		leads: make(map[uuid.UUID]repository.Lead),
		names: make(map[uuid.UUID]string),
	}
}

func (f *fakeLeadStore) Create(_ context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	lead := repository.Lead{
		ID:             uuid.New(),
		FranchiseID:    params.FranchiseID,
		PipelineID:     params.PipelineID,
		StageID:        params.StageID,
		ClientName:     params.ClientName,
		ClientPhone:    params.ClientPhone,
		Comment:        params.Comment,
		GameDate:       params.GameDate,
		GameTime:       params.GameTime,
		PlayersCount:   params.PlayersCount,
		PricePerPerson: params.PricePerPerson,
		TotalAmount:    params.TotalAmount,
		Prepayment:     params.Prepayment,
		ResponsibleID:  params.ResponsibleID,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	f.leads[lead.ID] = lead
	return lead, nil
}

func (f *fakeLeadStore) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (f *fakeLeadStore) GetWithResponsible(ctx context.Context, id uuid.UUID) (repository.Lead, string, error) {
	lead, err := f.GetByID(ctx, id)
	if err != nil {
		return repository.Lead{}, "", err
	}
	name := ""
	if lead.ResponsibleID != nil {
		name = f.names[*lead.ResponsibleID]
	}
	return lead, name, nil
}

func (f *fakeLeadStore) Update(_ context.Context, lead repository.Lead) (repository.Lead, error) {
	if _, ok := f.leads[lead.ID]; !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	lead.UpdatedAt = time.Now()
	f.leads[lead.ID] = lead
	return lead, nil
}

func (f *fakeLeadStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.leads[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.leads, id)
	return nil
}

func (f *fakeLeadStore) DeleteTasks(_ context.Context, _ uuid.UUID) error { return nil }

func (f *fakeLeadStore) WithLeadLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	f.locks++
	return fn(ctx)
}

type fakeRecorder struct {
	audits    []repository.AuditEntryParams
	timelines []repository.TimelineEventParams
}

func (f *fakeRecorder) LogAction(_ context.Context, params repository.AuditEntryParams) error {
	f.audits = append(f.audits, params)
	return nil
}

func (f *fakeRecorder) AddTimelineEvent(_ context.Context, params repository.TimelineEventParams) error {
	f.timelines = append(f.timelines, params)
	return nil
}

func (f *fakeRecorder) DeleteTimelineEvents(_ context.Context, leadID uuid.UUID) error {
	kept := f.timelines[:0]
	for _, t := range f.timelines {
		if t.LeadID != leadID {
			kept = append(kept, t)
		}
	}
	f.timelines = kept
	return nil
}

func (f *fakeRecorder) actions(action string) []repository.AuditEntryParams {
	var out []repository.AuditEntryParams
	for _, a := range f.audits {
		if a.Action == action {
			out = append(out, a)
		}
	}
	return out
}

type fakeRegistry struct {
	stages    map[uuid.UUID]pipeline.Stage
	pipelines map[uuid.UUID]pipeline.Pipeline
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		stages:    make(map[uuid.UUID]pipeline.Stage),
		pipelines: make(map[uuid.UUID]pipeline.Pipeline),
	}
}

func (f *fakeRegistry) addStage(name string, t pipeline.StageType) uuid.UUID {
	id := uuid.New()
	f.stages[id] = pipeline.Stage{ID: id, Name: name, Type: t}
	return id
}

func (f *fakeRegistry) GetStage(_ context.Context, id uuid.UUID) (pipeline.Stage, error) {
	stage, ok := f.stages[id]
	if !ok {
		return pipeline.Stage{}, pipeline.ErrStageNotFound
	}
	return stage, nil
}

func (f *fakeRegistry) GetPipeline(_ context.Context, id uuid.UUID) (pipeline.Pipeline, error) {
	p, ok := f.pipelines[id]
	if !ok {
		return pipeline.Pipeline{}, pipeline.ErrPipelineNotFound
	}
	return p, nil
}

// fakeBus records events synchronously so tests can assert on them.
type fakeBus struct {
	published []events.Event
}

func (f *fakeBus) Publish(_ context.Context, event events.Event)          { f.published = append(f.published, event) }
func (f *fakeBus) PublishSync(_ context.Context, event events.Event) error {
	f.published = append(f.published, event)
	return nil
}
func (f *fakeBus) Subscribe(string, events.Handler) {}

func (f *fakeBus) byName(name string) []events.Event {
	var out []events.Event
	for _, e := range f.published {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

type fakeEntryStore struct {
	entries     map[uuid.UUID]schedule.Entry
	assignments map[uuid.UUID]map[string]int
}

func newFakeEntryStore() *fakeEntryStore {
	return &fakeEntryStore{
		entries:     make(map[uuid.UUID]schedule.Entry),
		assignments: make(map[uuid.UUID]map[string]int),
	}
}

func (f *fakeEntryStore) GetByLeadID(_ context.Context, leadID uuid.UUID) (schedule.Entry, error) {
	for _, e := range f.entries {
		if e.LeadID == leadID {
			return e, nil
		}
	}
	return schedule.Entry{}, schedule.ErrEntryNotFound
}

func (f *fakeEntryStore) Insert(_ context.Context, params schedule.CreateEntryParams) (schedule.Entry, error) {
	e := schedule.Entry{
		ID:           uuid.New(),
		LeadID:       params.LeadID,
		FranchiseID:  params.FranchiseID,
		Title:        params.Title,
		GameDate:     params.GameDate,
		GameTime:     params.GameTime,
		PlayersCount: params.PlayersCount,
		TotalAmount:  params.TotalAmount,
	}
	f.entries[e.ID] = e
	return e, nil
}

func (f *fakeEntryStore) Update(_ context.Context, id uuid.UUID, params schedule.UpdateEntryParams) (schedule.Entry, error) {
	e, ok := f.entries[id]
	if !ok {
		return schedule.Entry{}, schedule.ErrEntryNotFound
	}
	e.Title = params.Title
	e.GameDate = params.GameDate
	e.GameTime = params.GameTime
	e.PlayersCount = params.PlayersCount
	e.TotalAmount = params.TotalAmount
	f.entries[id] = e
	return e, nil
}

func (f *fakeEntryStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.entries, id)
	return nil
}

func (f *fakeEntryStore) DeleteAssignments(_ context.Context, entryID uuid.UUID) error {
	delete(f.assignments, entryID)
	return nil
}

func (f *fakeEntryStore) CountAssignmentsByRole(_ context.Context, entryID uuid.UUID) (map[string]int, error) {
	counts := f.assignments[entryID]
	if counts == nil {
		counts = map[string]int{}
	}
	return counts, nil
}

type fakeTransactionStore struct {
	transactions map[uuid.UUID]settlement.Transaction
}

func newFakeTransactionStore() *fakeTransactionStore {
	return &fakeTransactionStore{transactions: make(map[uuid.UUID]settlement.Transaction)}
}

func (f *fakeTransactionStore) GetByLeadAndCategory(_ context.Context, leadID uuid.UUID, category string) (settlement.Transaction, error) {
	for _, t := range f.transactions {
		if t.LeadID == leadID && t.Category == category {
			return t, nil
		}
	}
	return settlement.Transaction{}, settlement.ErrTransactionNotFound
}

func (f *fakeTransactionStore) Insert(_ context.Context, params settlement.CreateTransactionParams) (settlement.Transaction, error) {
	t := settlement.Transaction{
		ID:          uuid.New(),
		LeadID:      params.LeadID,
		FranchiseID: params.FranchiseID,
		Type:        params.Type,
		Category:    params.Category,
		Amount:      params.Amount,
		OccurredOn:  params.OccurredOn,
	}
	f.transactions[t.ID] = t
	return t, nil
}

func (f *fakeTransactionStore) UpdateAmount(_ context.Context, id uuid.UUID, amount float64) error {
	t, ok := f.transactions[id]
	if !ok {
		return settlement.ErrTransactionNotFound
	}
	t.Amount = amount
	f.transactions[id] = t
	return nil
}

func (f *fakeTransactionStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.transactions, id)
	return nil
}

func (f *fakeTransactionStore) DeleteNonPrepayment(_ context.Context, leadID uuid.UUID) error {
	for id, t := range f.transactions {
		if t.LeadID == leadID && t.Category != settlement.CategoryPrepayment {
			delete(f.transactions, id)
		}
	}
	return nil
}

func (f *fakeTransactionStore) DeleteAllForLead(_ context.Context, leadID uuid.UUID) error {
	for id, t := range f.transactions {
		if t.LeadID == leadID {
			delete(f.transactions, id)
		}
	}
	return nil
}

func (f *fakeTransactionStore) byCategory(leadID uuid.UUID, category string) []settlement.Transaction {
	var out []settlement.Transaction
	for _, t := range f.transactions {
		if t.LeadID == leadID && t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// ---- harness ----

type harness struct {
	svc      *Service
	leads    *fakeLeadStore
	recorder *fakeRecorder
	registry *fakeRegistry
	bus      *fakeBus
	entries  *fakeEntryStore
	ledger   *fakeTransactionStore

	normalStage    uuid.UUID
	scheduledStage uuid.UUID
	completedStage uuid.UUID
	actor          Actor
	franchiseID    uuid.UUID
}

func newHarness() *harness {
	h := &harness{
		leads:       newFakeLeadStore(),
		recorder:    &fakeRecorder{},
		registry:    newFakeRegistry(),
		bus:         &fakeBus{},
		entries:     newFakeEntryStore(),
		ledger:      newFakeTransactionStore(),
		actor:       Actor{ID: uuid.New(), Name: "Manager"},
		franchiseID: uuid.New(),
	}
	h.normalStage = h.registry.addStage("New", pipeline.StageTypeNormal)
	h.scheduledStage = h.registry.addStage("Game booked", pipeline.StageTypeScheduled)
	h.completedStage = h.registry.addStage("Played", pipeline.StageTypeCompleted)

	h.svc = New(
		h.leads,
		h.recorder,
		h.registry,
		schedule.NewSynchronizer(h.entries),
		settlement.NewService(h.ledger),
		h.bus,
		logger.New("development"),
	)
	return h
}

func (h *harness) seedLead(t *testing.T, mutate func(*repository.Lead)) repository.Lead {
	t.Helper()
	lead := repository.Lead{
		ID:             uuid.New(),
		FranchiseID:    h.franchiseID,
		PipelineID:     uuid.New(),
		StageID:        h.normalStage,
		ClientName:     "Ivanov birthday",
		PlayersCount:   10,
		PricePerPerson: 1500,
		TotalAmount:    15000,
	}
	if mutate != nil {
		mutate(&lead)
	}
	h.leads.leads[lead.ID] = lead
	return lead
}

func stageUpdate(stageID uuid.UUID) transport.UpdateLeadRequest {
	return transport.UpdateLeadRequest{
		StageID: transport.OptionalUUID{Value: &stageID, Set: true},
	}
}

// ---- tests ----

func TestUpdateRecomputesTotal(t *testing.T) {
	h := newHarness()
	lead := h.seedLead(t, nil)

	resp, err := h.svc.Update(context.Background(), lead.ID, transport.UpdateLeadRequest{
		PlayersCount: transport.OptionalInt{Value: 12, Set: true},
	}, h.actor)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if resp.TotalAmount != 18000 {
		t.Errorf("total = %v, want 18000 (12 x 1500)", resp.TotalAmount)
	}
	if h.leads.locks != 1 {
		t.Errorf("lock acquired %d times, want 1", h.leads.locks)
	}

	var fields []string
	for _, a := range h.recorder.actions(repository.ActionFieldChanged) {
		fields = append(fields, a.Details)
	}
	if len(fields) != 2 {
		t.Errorf("field audits = %v, want playersCount and totalAmount", fields)
	}
}

func TestUpdateExplicitTotalWins(t *testing.T) {
	h := newHarness()
	lead := h.seedLead(t, nil)

	resp, err := h.svc.Update(context.Background(), lead.ID, transport.UpdateLeadRequest{
		PlayersCount: transport.OptionalInt{Value: 12, Set: true},
		TotalAmount:  transport.OptionalFloat{Value: 20000, Set: true},
	}, h.actor)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if resp.TotalAmount != 20000 {
		t.Errorf("total = %v, want the submitted 20000", resp.TotalAmount)
	}
}

func TestUpdateNotFound(t *testing.T) {
	h := newHarness()

	_, err := h.svc.Update(context.Background(), uuid.New(), transport.UpdateLeadRequest{}, h.actor)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("err = %v, want KindNotFound", err)
	}
}

func TestGetNotFound(t *testing.T) {
	h := newHarness()

	_, err := h.svc.Get(context.Background(), uuid.New())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("err = %v, want KindNotFound", err)
	}
}

func TestReassignmentPublishesEvent(t *testing.T) {
	h := newHarness()
	lead := h.seedLead(t, nil)
	newResponsible := uuid.New()

	_, err := h.svc.Update(context.Background(), lead.ID, transport.UpdateLeadRequest{
		ResponsibleID: transport.OptionalUUID{Value: &newResponsible, Set: true},
	}, h.actor)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	published := h.bus.byName("leads.reassigned")
	if len(published) != 1 {
		t.Fatalf("reassigned events = %d, want 1", len(published))
	}
	event := published[0].(events.LeadReassigned)
	if event.NewID != newResponsible || event.ReassignedBy != h.actor.ID {
		t.Errorf("event = %+v", event)
	}
}

func TestReassignmentSuppressed(t *testing.T) {
	existing := uuid.New()

	cases := []struct {
		name  string
		value *uuid.UUID
	}{
		{"self assignment", nil}, // filled below with actor id
		{"clearing", nil},
		{"no-op", &existing},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			lead := h.seedLead(t, func(l *repository.Lead) {
				prev := existing
				l.ResponsibleID = &prev
			})

			value := tc.value
			if tc.name == "self assignment" {
				id := h.actor.ID
				value = &id
			}

			_, err := h.svc.Update(context.Background(), lead.ID, transport.UpdateLeadRequest{
				ResponsibleID: transport.OptionalUUID{Value: value, Set: true},
			}, h.actor)
			if err != nil {
				t.Fatalf("update: %v", err)
			}

			if n := len(h.bus.byName("leads.reassigned")); n != 0 {
				t.Errorf("reassigned events = %d, want 0", n)
			}
		})
	}
}

func TestTransitionIntoScheduledCreatesEntry(t *testing.T) {
	h := newHarness()
	date := time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC)
	lead := h.seedLead(t, func(l *repository.Lead) {
		l.GameDate = &date
		l.GameTime = "16:30"
	})

	_, err := h.svc.Update(context.Background(), lead.ID, stageUpdate(h.scheduledStage), h.actor)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	entry, err := h.entries.GetByLeadID(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if !entry.GameDate.Equal(date) || entry.GameTime != "16:30" || entry.TotalAmount != 15000 {
		t.Errorf("entry = %+v", entry)
	}

	if n := len(h.recorder.actions(repository.ActionScheduled)); n != 1 {
		t.Errorf("scheduled audits = %d, want 1", n)
	}
	if n := len(h.recorder.actions(repository.ActionStageChanged)); n != 1 {
		t.Errorf("stage audits = %d, want 1", n)
	}
	if n := len(h.bus.byName("leads.game.scheduled")); n != 1 {
		t.Errorf("scheduled events = %d, want 1", n)
	}
}

func TestScheduledToScheduledKeepsSingleEntry(t *testing.T) {
	h := newHarness()
	secondScheduled := h.registry.addStage("Confirmed", pipeline.StageTypeScheduled)
	lead := h.seedLead(t, nil)

	ctx := context.Background()
	if _, err := h.svc.Update(ctx, lead.ID, stageUpdate(h.scheduledStage), h.actor); err != nil {
		t.Fatalf("first move: %v", err)
	}
	if _, err := h.svc.Update(ctx, lead.ID, stageUpdate(secondScheduled), h.actor); err != nil {
		t.Fatalf("second move: %v", err)
	}

	if n := len(h.entries.entries); n != 1 {
		t.Fatalf("entries = %d, want the same entry refreshed", n)
	}
}

func TestTransitionOutOfScheduledTearsDown(t *testing.T) {
	h := newHarness()
	lead := h.seedLead(t, nil)

	ctx := context.Background()
	if _, err := h.svc.Update(ctx, lead.ID, stageUpdate(h.scheduledStage), h.actor); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if _, err := h.svc.Update(ctx, lead.ID, stageUpdate(h.normalStage), h.actor); err != nil {
		t.Fatalf("unschedule: %v", err)
	}

	if n := len(h.entries.entries); n != 0 {
		t.Errorf("entries = %d, want 0", n)
	}
	if n := len(h.bus.byName("leads.game.unscheduled")); n != 1 {
		t.Errorf("unscheduled events = %d, want 1", n)
	}
	if n := len(h.recorder.actions(repository.ActionUnscheduled)); n != 1 {
		t.Errorf("unscheduled audits = %d, want 1", n)
	}
}

func TestTransitionIntoCompletedSettles(t *testing.T) {
	h := newHarness()
	lead := h.seedLead(t, func(l *repository.Lead) {
		l.TotalAmount = 50000
		l.Prepayment = 10000
		l.AnimatorsCount = 2
		l.AnimatorRate = 1000
	})

	_, err := h.svc.Update(context.Background(), lead.ID, stageUpdate(h.completedStage), h.actor)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	post := h.ledger.byCategory(lead.ID, settlement.CategoryPostpayment)
	if len(post) != 1 || post[0].Amount != 40000 {
		t.Errorf("postpayment = %+v, want one row of 40000", post)
	}
	fot := h.ledger.byCategory(lead.ID, settlement.CategoryPayroll)
	if len(fot) != 1 || fot[0].Amount != 2000 {
		t.Errorf("fot = %+v, want one row of 2000", fot)
	}
	if n := len(h.recorder.actions(repository.ActionCompleted)); n != 1 {
		t.Errorf("completed audits = %d, want 1", n)
	}
}

func TestTransitionOutOfCompletedReverts(t *testing.T) {
	h := newHarness()
	lead := h.seedLead(t, func(l *repository.Lead) {
		l.TotalAmount = 30000
		l.Prepayment = 5000
	})

	ctx := context.Background()
	if _, err := h.svc.Update(ctx, lead.ID, transport.UpdateLeadRequest{
		Prepayment: transport.OptionalFloat{Value: 5000, Set: true},
	}, h.actor); err != nil {
		t.Fatalf("prepayment: %v", err)
	}
	if _, err := h.svc.Update(ctx, lead.ID, stageUpdate(h.completedStage), h.actor); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := h.svc.Update(ctx, lead.ID, stageUpdate(h.normalStage), h.actor); err != nil {
		t.Fatalf("revert: %v", err)
	}

	if rows := h.ledger.byCategory(lead.ID, settlement.CategoryPrepayment); len(rows) != 1 {
		t.Errorf("prepayment rows = %+v, want the row to survive", rows)
	}
	if rows := h.ledger.byCategory(lead.ID, settlement.CategoryPostpayment); len(rows) != 0 {
		t.Errorf("postpayment rows = %+v, want none", rows)
	}
}

func TestRoundTripConverges(t *testing.T) {
	h := newHarness()
	lead := h.seedLead(t, nil)

	ctx := context.Background()
	for _, stage := range []uuid.UUID{h.scheduledStage, h.completedStage, h.scheduledStage, h.normalStage} {
		if _, err := h.svc.Update(ctx, lead.ID, stageUpdate(stage), h.actor); err != nil {
			t.Fatalf("move: %v", err)
		}
	}

	if n := len(h.entries.entries); n != 0 {
		t.Errorf("entries = %d, want 0 back in a normal stage", n)
	}
	if n := len(h.ledger.transactions); n != 0 {
		t.Errorf("transactions = %d, want 0", n)
	}
}

func TestPipelineOnlyChangeFiresNoEffects(t *testing.T) {
	h := newHarness()
	lead := h.seedLead(t, nil)
	otherPipeline := uuid.New()

	_, err := h.svc.Update(context.Background(), lead.ID, transport.UpdateLeadRequest{
		PipelineID: transport.OptionalUUID{Value: &otherPipeline, Set: true},
	}, h.actor)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if n := len(h.recorder.actions(repository.ActionStageChanged)); n != 0 {
		t.Errorf("stage audits = %d, want 0", n)
	}
	if n := len(h.entries.entries)+len(h.ledger.transactions); n != 0 {
		t.Errorf("side effects = %d, want none", n)
	}
	if n := len(h.recorder.actions(repository.ActionFieldChanged)); n != 1 {
		t.Errorf("field audits = %d, want the pipelineId change", n)
	}
}

func TestUnknownStageTreatedAsNormal(t *testing.T) {
	h := newHarness()
	lead := h.seedLead(t, nil)
	danglingStage := uuid.New()

	_, err := h.svc.Update(context.Background(), lead.ID, stageUpdate(danglingStage), h.actor)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	audits := h.recorder.actions(repository.ActionStageChanged)
	if len(audits) != 1 {
		t.Fatalf("stage audits = %d, want 1", len(audits))
	}
	if n := len(h.entries.entries) + len(h.ledger.transactions); n != 0 {
		t.Errorf("side effects = %d, want none for a normal-type move", n)
	}

	got, err := h.leads.GetByID(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.StageID != danglingStage {
		t.Errorf("stage = %s, want the submitted id persisted", got.StageID)
	}
}

func TestFieldChangeWritesTimeline(t *testing.T) {
	h := newHarness()
	lead := h.seedLead(t, nil)

	_, err := h.svc.Update(context.Background(), lead.ID, transport.UpdateLeadRequest{
		ClientName: transport.OptionalString{Value: "Sidorov quest", Set: true},
	}, h.actor)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	var feed []repository.TimelineEventParams
	for _, tl := range h.recorder.timelines {
		if tl.EventType == repository.ActionFieldChanged {
			feed = append(feed, tl)
		}
	}
	if len(feed) != 1 {
		t.Fatalf("field timelines = %d, want one per changed field", len(feed))
	}
	if !strings.Contains(feed[0].Summary, "Ivanov birthday") || !strings.Contains(feed[0].Summary, "Sidorov quest") {
		t.Errorf("summary = %q, want the old and new values", feed[0].Summary)
	}
	if n := len(h.recorder.actions(repository.ActionFieldChanged)); n != 1 {
		t.Errorf("field audits = %d, want 1", n)
	}
}

func TestScheduledAuditReportsStaffingGaps(t *testing.T) {
	h := newHarness()
	lead := h.seedLead(t, func(l *repository.Lead) {
		l.AnimatorsCount = 2
		l.HostsCount = 1
	})

	_, err := h.svc.Update(context.Background(), lead.ID, stageUpdate(h.scheduledStage), h.actor)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	audits := h.recorder.actions(repository.ActionScheduled)
	if len(audits) != 1 {
		t.Fatalf("scheduled audits = %d, want 1", len(audits))
	}
	for _, want := range []string{"animator 0/2", "host 0/1"} {
		if !strings.Contains(audits[0].Details, want) {
			t.Errorf("details = %q, missing %q", audits[0].Details, want)
		}
	}
}

func TestTransitionAuditNamesPipeline(t *testing.T) {
	h := newHarness()
	pipelineID := uuid.New()
	h.registry.pipelines[pipelineID] = pipeline.Pipeline{ID: pipelineID, Name: "Birthdays"}
	stageID := uuid.New()
	h.registry.stages[stageID] = pipeline.Stage{
		ID:         stageID,
		PipelineID: pipelineID,
		Name:       "Booked",
		Type:       pipeline.StageTypeScheduled,
	}
	lead := h.seedLead(t, nil)

	_, err := h.svc.Update(context.Background(), lead.ID, stageUpdate(stageID), h.actor)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	audits := h.recorder.actions(repository.ActionStageChanged)
	if len(audits) != 1 {
		t.Fatalf("stage audits = %d, want 1", len(audits))
	}
	if !strings.Contains(audits[0].Details, "Birthdays") {
		t.Errorf("details = %q, want the pipeline name", audits[0].Details)
	}
}

func TestPrepaymentUpdateWritesLedgerAndTimeline(t *testing.T) {
	h := newHarness()
	lead := h.seedLead(t, nil)

	_, err := h.svc.Update(context.Background(), lead.ID, transport.UpdateLeadRequest{
		Prepayment: transport.OptionalFloat{Value: 5000, Set: true},
	}, h.actor)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	rows := h.ledger.byCategory(lead.ID, settlement.CategoryPrepayment)
	if len(rows) != 1 || rows[0].Amount != 5000 {
		t.Fatalf("rows = %+v, want one row of 5000", rows)
	}

	found := false
	for _, tl := range h.recorder.timelines {
		if tl.Title == "Prepayment updated" {
			found = true
		}
	}
	if !found {
		t.Error("no prepayment timeline event recorded")
	}
}

func TestPhoneNormalizedOnUpdate(t *testing.T) {
	h := newHarness()
	lead := h.seedLead(t, nil)

	resp, err := h.svc.Update(context.Background(), lead.ID, transport.UpdateLeadRequest{
		ClientPhone: transport.OptionalString{Value: "8 (912) 345-67-89", Set: true},
	}, h.actor)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if resp.ClientPhone != "+79123456789" {
		t.Errorf("phone = %q, want +79123456789", resp.ClientPhone)
	}
}

func TestCreateLead(t *testing.T) {
	h := newHarness()

	resp, err := h.svc.Create(context.Background(), transport.CreateLeadRequest{
		ClientName:     "Petrov quest",
		ClientPhone:    "89123456789",
		PipelineID:     uuid.New(),
		StageID:        h.scheduledStage,
		PlayersCount:   8,
		PricePerPerson: 2000,
		Prepayment:     4000,
	}, h.actor, h.franchiseID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if resp.TotalAmount != 16000 {
		t.Errorf("total = %v, want 16000", resp.TotalAmount)
	}
	if resp.ClientPhone != "+79123456789" {
		t.Errorf("phone = %q, want normalized", resp.ClientPhone)
	}
	if n := len(h.recorder.actions(repository.ActionCreated)); n != 1 {
		t.Errorf("created audits = %d, want 1", n)
	}
	if rows := h.ledger.byCategory(resp.ID, settlement.CategoryPrepayment); len(rows) != 1 {
		t.Errorf("prepayment rows = %+v, want one", rows)
	}
	// Creation never fires transition effects, even into special stages.
	if n := len(h.entries.entries); n != 0 {
		t.Errorf("entries = %d, want 0", n)
	}
}

func TestCreateRejectsUnknownStage(t *testing.T) {
	h := newHarness()

	_, err := h.svc.Create(context.Background(), transport.CreateLeadRequest{
		ClientName: "x",
		PipelineID: uuid.New(),
		StageID:    uuid.New(),
	}, h.actor, h.franchiseID)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("err = %v, want KindValidation", err)
	}
}

func TestDeleteCascade(t *testing.T) {
	h := newHarness()
	lead := h.seedLead(t, func(l *repository.Lead) {
		l.TotalAmount = 20000
		l.Prepayment = 5000
	})

	ctx := context.Background()
	if _, err := h.svc.Update(ctx, lead.ID, transport.UpdateLeadRequest{
		Prepayment: transport.OptionalFloat{Value: 5000, Set: true},
	}, h.actor); err != nil {
		t.Fatalf("prepayment: %v", err)
	}
	if _, err := h.svc.Update(ctx, lead.ID, stageUpdate(h.scheduledStage), h.actor); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if err := h.svc.Delete(ctx, lead.ID, h.actor); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := h.leads.GetByID(ctx, lead.ID); err == nil {
		t.Error("lead still present")
	}
	if n := len(h.entries.entries); n != 0 {
		t.Errorf("entries = %d, want 0", n)
	}
	if n := len(h.ledger.transactions); n != 0 {
		t.Errorf("transactions = %d, want 0 (prepayment goes too on delete)", n)
	}
	for _, tl := range h.recorder.timelines {
		if tl.LeadID == lead.ID {
			t.Errorf("timeline event survived deletion: %+v", tl)
		}
	}
	// The audit trail survives.
	if n := len(h.recorder.actions(repository.ActionDeleted)); n != 1 {
		t.Errorf("deleted audits = %d, want 1", n)
	}
	if n := len(h.bus.byName("leads.deleted")); n != 1 {
		t.Errorf("deleted events = %d, want 1", n)
	}
}

func TestDeleteNotFound(t *testing.T) {
	h := newHarness()

	err := h.svc.Delete(context.Background(), uuid.New(), h.actor)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("err = %v, want KindNotFound", err)
	}
}
