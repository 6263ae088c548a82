// Package notification provides the notification domain module. It listens
// for lead domain events and turns them into in-app notifications; it never
// sits on the request path of the modules that publish those events.
package notification

import (
	"context"
	"fmt"

	"franchise_ops_backend/internal/events"
	"franchise_ops_backend/internal/http"
	"franchise_ops_backend/internal/notification/inapp"
	"franchise_ops_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the notification domain module.
type Module struct {
	handler *Handler
	InApp   *inapp.Service
}

// NewModule creates the notification module and subscribes it to the lead
// events it cares about.
func NewModule(pool *pgxpool.Pool, bus events.Bus, log *logger.Logger) *Module {
	svc := inapp.NewService(inapp.NewRepository(pool), log)

	m := &Module{
		handler: NewHandler(svc, log),
		InApp:   svc,
	}
	m.subscribe(bus)
	return m
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "notification"
}

// RegisterRoutes registers the module's routes under /api/v1/notifications.
func (m *Module) RegisterRoutes(ctx *http.RouterContext) {
	notifications := ctx.Protected.Group("/notifications")
	m.handler.RegisterRoutes(notifications)
}

func (m *Module) subscribe(bus events.Bus) {
	bus.Subscribe(events.LeadReassigned{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		event, ok := e.(events.LeadReassigned)
		if !ok {
			return nil
		}
		leadID := event.LeadID
		return m.InApp.Send(ctx, inapp.SendParams{
			FranchiseID: event.FranchiseID,
			UserID:      event.NewID,
			Title:       "Lead assigned",
			Content:     fmt.Sprintf("You are now responsible for %q", event.LeadName),
			LeadID:      &leadID,
		})
	}))

	bus.Subscribe(events.GameScheduled{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		event, ok := e.(events.GameScheduled)
		if !ok || event.ResponsibleID == nil {
			return nil
		}
		leadID := event.LeadID
		return m.InApp.Send(ctx, inapp.SendParams{
			FranchiseID: event.FranchiseID,
			UserID:      *event.ResponsibleID,
			Title:       "Game scheduled",
			Content:     fmt.Sprintf("Game for %q is scheduled on %s at %s", event.LeadName, event.GameDate.Format("2006-01-02"), event.GameTime),
			LeadID:      &leadID,
			Category:    "success",
		})
	}))
}

// Compile-time check that Module implements http.Module.
var _ http.Module = (*Module)(nil)
