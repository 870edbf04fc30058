package tasks

import (
	"github.com/hibiken/asynq"

	"github.com/ignatzorin/services-marketplace/internal/logger"
)

// NewServer создаёт asynq сервер и маршрутизатор задач.
func NewServer(redis asynq.RedisClientOpt, concurrency int, p *Processor) (*asynq.Server, *asynq.ServeMux) {
	if concurrency <= 0 {
		concurrency = 5
	}
	cfg := asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueNotifications: 6,
			"default":          1,
		},
	}
	if logger.Log != nil {
		cfg.Logger = logger.Log
	}
	srv := asynq.NewServer(redis, cfg)

	mux := asynq.NewServeMux()
	mux.Handle(TypeRequestEvent, p)
	return srv, mux
}
