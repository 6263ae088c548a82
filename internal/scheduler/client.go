package scheduler

import (
	"context"
	"fmt"
	"time"

	"franchise_ops_backend/internal/events"
	"franchise_ops_backend/platform/config"
	"franchise_ops_backend/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	client *asynq.Client
	queue  string
}

// ReminderScheduler is the enqueue-side surface other code depends on.
type ReminderScheduler interface {
	ScheduleGameReminder(ctx context.Context, payload GameReminderPayload, runAt time.Time) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
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

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) ScheduleGameReminder(ctx context.Context, payload GameReminderPayload, runAt time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewGameReminderTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.ProcessAt(runAt), asynq.Queue(c.queue))
	return err
}

// SubscribeGameEvents hooks the reminder client to the event bus: every
// scheduled game gets a reminder task for the morning of its game day.
// Reminders whose game was unscheduled in the meantime are dropped by the
// worker, not revoked here.
func SubscribeGameEvents(bus events.Bus, client ReminderScheduler, log *logger.Logger) {
	bus.Subscribe(events.GameScheduled{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		event, ok := e.(events.GameScheduled)
		if !ok || event.ResponsibleID == nil {
			return nil
		}

		runAt := ReminderAt(event.GameDate)
		if runAt.Before(time.Now()) {
			return nil
		}

		err := client.ScheduleGameReminder(ctx, GameReminderPayload{
			LeadID:        event.LeadID.String(),
			FranchiseID:   event.FranchiseID.String(),
			ResponsibleID: event.ResponsibleID.String(),
			LeadName:      event.LeadName,
			GameDate:      event.GameDate.Format("2006-01-02"),
			GameTime:      event.GameTime,
		}, runAt)
		if err != nil && log != nil {
			log.SideEffectError("game_reminder_enqueue", err, event.LeadID.String())
		}
		return nil
	}))
}

func redisClientOpt(redisURL string) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}
