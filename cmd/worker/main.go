package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/ignatzorin/services-marketplace/internal/config"
	"github.com/ignatzorin/services-marketplace/internal/db"
	"github.com/ignatzorin/services-marketplace/internal/infrastructure/persistence"
	"github.com/ignatzorin/services-marketplace/internal/logger"
	"github.com/ignatzorin/services-marketplace/internal/push"
	"github.com/ignatzorin/services-marketplace/internal/repository"
	"github.com/ignatzorin/services-marketplace/internal/service"
	"github.com/ignatzorin/services-marketplace/internal/tasks"
)

// Отдельный процесс обработки событий заявок. Websocket доставка недоступна,
// уведомления сохраняются в базе и уходят push сообщениями.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("worker: ошибка загрузки конфигурации: %v", err)
	}
	logger.Init(cfg.Env)

	if cfg.Redis.Addr == "" {
		logger.Log.Fatal("worker: REDIS_ADDR обязателен")
	}

	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatalf("worker: ошибка подключения к базе: %v", err)
	}
	defer dbConn.Close()

	var pushSender service.PushSender
	if cfg.FirebaseCredentialsFile != "" {
		fcm, err := push.NewFCMSender(ctx, cfg.FirebaseCredentialsFile)
		if err != nil {
			logger.Log.WithError(err).Error("worker: push уведомления отключены")
		} else {
			pushSender = fcm
		}
	}

	addressRepo := repository.NewAddressRepository(dbConn)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(dbConn), addressRepo, nil, pushSender)
	processor := tasks.NewProcessor(
		persistence.NewServiceRequestRepository(dbConn),
		persistence.NewPartyRepository(dbConn),
		notifications,
	)

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	srv, mux := tasks.NewServer(redisOpt, cfg.Worker.Concurrency, processor)
	if err := srv.Start(mux); err != nil {
		logger.Log.Fatalf("worker: ошибка запуска: %v", err)
	}
	logger.Log.WithField("concurrency", cfg.Worker.Concurrency).Info("worker: запущен")

	<-ctx.Done()
	srv.Shutdown()
	logger.Log.Info("worker: остановлен")
}
