package tasks

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/ignatzorin/services-marketplace/internal/domain/event"
	"github.com/ignatzorin/services-marketplace/internal/goroutine"
	"github.com/ignatzorin/services-marketplace/internal/logger"
)

// QueueDispatcher ставит события в очередь asynq.
type QueueDispatcher struct {
	client *asynq.Client
}

func NewQueueDispatcher(client *asynq.Client) *QueueDispatcher {
	return &QueueDispatcher{client: client}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, ev event.RequestEvent) error {
	task, err := NewRequestEventTask(ev)
	if err != nil {
		return err
	}
	info, err := d.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("tasks: enqueue %s: %w", ev.Kind, err)
	}
	if logger.Log != nil {
		logger.Log.WithFields(map[string]interface{}{
			"task_id":    info.ID,
			"kind":       ev.Kind,
			"request_id": ev.RequestID,
		}).Debug("tasks: событие поставлено в очередь")
	}
	return nil
}

// InlineDispatcher обрабатывает событие в отдельной горутине без очереди.
// Используется, когда Redis не настроен.
type InlineDispatcher struct {
	processor *Processor
}

func NewInlineDispatcher(p *Processor) *InlineDispatcher {
	return &InlineDispatcher{processor: p}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, ev event.RequestEvent) error {
	// обработка не зависит от отмены контекста запроса
	bg := context.WithoutCancel(ctx)
	goroutine.SafeGo(func() {
		if err := d.processor.Handle(bg, ev); err != nil && logger.Log != nil {
			logger.Log.WithError(err).WithField("kind", ev.Kind).Error("tasks: не удалось обработать событие")
		}
	})
	return nil
}
