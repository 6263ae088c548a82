// Package leads provides the leads domain module: the lead entity, its
// partial-update API, and the stage transition engine driving the schedule
// board and the ledger.
package leads

import (
	"franchise_ops_backend/internal/events"
	"franchise_ops_backend/internal/http"
	"franchise_ops_backend/internal/leads/handler"
	"franchise_ops_backend/internal/leads/repository"
	"franchise_ops_backend/internal/leads/service"
	"franchise_ops_backend/internal/pipeline"
	"franchise_ops_backend/internal/schedule"
	"franchise_ops_backend/internal/settlement"
	"franchise_ops_backend/platform/logger"
	"franchise_ops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the leads domain module.
type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// NewModule creates a new leads module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, bus events.Bus, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(
		repo,
		repo,
		pipeline.New(pool),
		schedule.NewSynchronizer(schedule.New(pool)),
		settlement.NewService(settlement.New(pool)),
		bus,
		log,
	)
	h := handler.New(svc, val, log)

	return &Module{
		handler: h,
		Service: svc,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "leads"
}

// RegisterRoutes registers the module's routes under /api/v1/leads.
func (m *Module) RegisterRoutes(ctx *http.RouterContext) {
	leads := ctx.Protected.Group("/leads")
	m.handler.RegisterRoutes(leads)
}

// Compile-time check that Module implements http.Module.
var _ http.Module = (*Module)(nil)
