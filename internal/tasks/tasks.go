package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/ignatzorin/services-marketplace/internal/domain/event"
)

const (
	// TypeRequestEvent уведомление об изменении заявки.
	TypeRequestEvent = "service_request:event"

	QueueNotifications = "notifications"
	maxRetry           = 3
)

// NewRequestEventTask упаковывает событие заявки в задачу asynq.
func NewRequestEventTask(ev event.RequestEvent) (*asynq.Task, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("tasks: marshal event: %w", err)
	}
	return asynq.NewTask(TypeRequestEvent, payload, asynq.MaxRetry(maxRetry), asynq.Queue(QueueNotifications)), nil
}

func parseRequestEvent(t *asynq.Task) (event.RequestEvent, error) {
	var ev event.RequestEvent
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		return ev, fmt.Errorf("tasks: unmarshal event: %w: %w", err, asynq.SkipRetry)
	}
	return ev, nil
}
