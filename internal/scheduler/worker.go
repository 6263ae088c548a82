package scheduler

import (
	"context"
	"errors"
	"fmt"

	"franchise_ops_backend/internal/notification/inapp"
	"franchise_ops_backend/internal/schedule"
	"franchise_ops_backend/platform/config"
	"franchise_ops_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	entries *schedule.Repository
	inapp   *inapp.Service
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		entries: schedule.New(pool),
		inapp:   inapp.NewService(inapp.NewRepository(pool), log),
		log:     log,
	}

	mux.HandleFunc(TaskGameReminder, w.handleGameReminder)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleGameReminder notifies the responsible manager on the morning of the
// game. The reminder is stale when the lead has since left the scheduled
// stage; the missing schedule entry tells us to drop it.
func (w *Worker) handleGameReminder(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseGameReminderPayload(task)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}
	franchiseID, err := uuid.Parse(payload.FranchiseID)
	if err != nil {
		return err
	}
	responsibleID, err := uuid.Parse(payload.ResponsibleID)
	if err != nil {
		return err
	}

	entry, err := w.entries.GetByLeadID(ctx, leadID)
	if errors.Is(err, schedule.ErrEntryNotFound) {
		w.log.Info("game reminder dropped, entry gone", "lead_id", payload.LeadID)
		return nil
	}
	if err != nil {
		return err
	}

	return w.inapp.Send(ctx, inapp.SendParams{
		FranchiseID: franchiseID,
		UserID:      responsibleID,
		Title:       "Game today",
		Content:     fmt.Sprintf("Game for %q today at %s", payload.LeadName, entry.GameTime),
		LeadID:      &leadID,
	})
}
