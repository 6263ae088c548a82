// Package scheduler enqueues and processes delayed background tasks through
// asynq. Its single concern here is the game-day reminder sent to the
// responsible manager on the morning of a scheduled game.
package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskGameReminder = "games.reminder"

// Reminders fire at this hour (UTC) on the game day.
const reminderHour = 9

type GameReminderPayload struct {
	LeadID        string `json:"leadId"`
	FranchiseID   string `json:"franchiseId"`
	ResponsibleID string `json:"responsibleId"`
	LeadName      string `json:"leadName"`
	GameDate      string `json:"gameDate"`
	GameTime      string `json:"gameTime"`
}

func NewGameReminderTask(payload GameReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGameReminder, data), nil
}

func ParseGameReminderPayload(task *asynq.Task) (GameReminderPayload, error) {
	var payload GameReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return GameReminderPayload{}, err
	}
	return payload, nil
}

// ReminderAt returns when the reminder for a game on the given date should
// fire: 09:00 UTC on the game day.
func ReminderAt(gameDate time.Time) time.Time {
	return time.Date(gameDate.Year(), gameDate.Month(), gameDate.Day(), reminderHour, 0, 0, 0, time.UTC)
}
