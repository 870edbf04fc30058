package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/services-marketplace/internal/broker"
	"github.com/ignatzorin/services-marketplace/internal/config"
	"github.com/ignatzorin/services-marketplace/internal/db"
	"github.com/ignatzorin/services-marketplace/internal/domain/event"
	"github.com/ignatzorin/services-marketplace/internal/goroutine"
	httpHandlers "github.com/ignatzorin/services-marketplace/internal/http/handlers"
	httpRouter "github.com/ignatzorin/services-marketplace/internal/http/router"
	"github.com/ignatzorin/services-marketplace/internal/infrastructure/persistence"
	srHandler "github.com/ignatzorin/services-marketplace/internal/interface/http/handler"
	"github.com/ignatzorin/services-marketplace/internal/logger"
	"github.com/ignatzorin/services-marketplace/internal/payment"
	"github.com/ignatzorin/services-marketplace/internal/push"
	"github.com/ignatzorin/services-marketplace/internal/repository"
	"github.com/ignatzorin/services-marketplace/internal/schema"
	"github.com/ignatzorin/services-marketplace/internal/service"
	"github.com/ignatzorin/services-marketplace/internal/storage"
	"github.com/ignatzorin/services-marketplace/internal/tasks"
	"github.com/ignatzorin/services-marketplace/internal/usecase/servicerequest"
	"github.com/ignatzorin/services-marketplace/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}
	logger.Init(cfg.Env)

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		logger.Log.Fatalf("main: ошибка миграций: %v", err)
	}

	healthChecks := map[string]httpHandlers.HealthCheck{
		"database": dbConn.PingContext,
	}

	// Кэш: Redis если настроен, иначе память процесса.
	var (
		cache       service.Cache
		redisClient *redis.Client
	)
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		cache = service.NewRedisCache(redisClient, "marketplace")
		healthChecks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	} else {
		cache = service.NewCacheService(ctx)
		logger.Log.Warn("main: REDIS_ADDR не задан, кэш и очередь работают в памяти")
	}

	// Хранилище файлов.
	var files interface {
		servicerequest.FileStorage
		httpHandlers.ObjectStore
	}
	if cfg.MinIO.Endpoint != "" {
		files, err = storage.NewMinIOStorage(ctx, cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey,
			cfg.MinIO.Bucket, cfg.MinIO.UseSSL, cfg.MaxUploadSizeMB)
	} else {
		files, err = storage.NewLocalStorage(cfg.MediaStoragePath, cfg.MaxUploadSizeMB)
	}
	if err != nil {
		logger.Log.Fatalf("main: ошибка инициализации хранилища: %v", err)
	}

	// Платёжный шлюз.
	var (
		gateway  payment.Gateway
		webhooks srHandler.WebhookParser
	)
	if cfg.Payment.StripeSecretKey != "" {
		stripeGateway := payment.NewStripeGateway(cfg.Payment.StripeSecretKey, cfg.Payment.StripeWebhookSecret, cfg.PaymentCallbackURL())
		gateway = stripeGateway
		webhooks = stripeGateway
	} else {
		gateway = payment.NewSandboxGateway(cfg.PaymentCallbackURL())
		logger.Log.Warn("main: STRIPE_SECRET_KEY не задан, используется тестовый шлюз")
	}

	// Push уведомления.
	var pushSender service.PushSender
	if cfg.FirebaseCredentialsFile != "" {
		fcm, err := push.NewFCMSender(ctx, cfg.FirebaseCredentialsFile)
		if err != nil {
			logger.Log.WithError(err).Error("main: push уведомления отключены")
		} else {
			pushSender = fcm
		}
	}

	schemas, err := schema.NewRegistry()
	if err != nil {
		logger.Log.Fatalf("main: ошибка загрузки схем объявлений: %v", err)
	}

	hub := ws.NewHub(ctx)
	goroutine.SafeGo(hub.Run)

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	addressRepo := repository.NewAddressRepository(dbConn)
	serviceRepo := repository.NewServiceRepository(dbConn)
	featureRepo := repository.NewFeatureRepository(dbConn)
	providerRepo := repository.NewProviderRepository(dbConn)
	catalogRepo := repository.NewCatalogRepository(dbConn)
	adRepo := repository.NewAdvertisementRepository(dbConn)
	favouriteRepo := repository.NewFavoriteRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	paymentRepo := repository.NewPaymentRepository(dbConn)
	ratingRepo := repository.NewRatingRepository(dbConn)
	requestRepo := persistence.NewServiceRequestRepository(dbConn)
	partyRepo := persistence.NewPartyRepository(dbConn)

	// Сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authService := service.NewAuthService(userRepo, tokenManager)
	catalogService := service.NewCatalogService(serviceRepo, cache, cfg.CacheTTL)
	featureService := service.NewFeatureService(featureRepo, serviceRepo, cache, cfg.CacheTTL)
	providerService := service.NewProviderService(providerRepo, serviceRepo)
	addressService := service.NewAddressService(addressRepo)
	advertiseService := service.NewAdvertiseService(catalogRepo, adRepo, schemas)
	favouriteService := service.NewFavouriteService(favouriteRepo, adRepo)
	ratingService := service.NewRatingService(ratingRepo, requestRepo)
	notificationService := service.NewNotificationService(notificationRepo, addressRepo, hub, pushSender)
	discountService := service.NewDiscountService(paymentRepo, cfg.Loyalty.PointValue)
	paymentService := service.NewPaymentService(gateway, discountService, userRepo, paymentRepo, cfg.Payment.Currency)

	if err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Log.WithError(err).Error("main: не удалось создать администратора")
	}

	// События заявок: очередь asynq при наличии Redis, иначе обработка в процессе.
	processor := tasks.NewProcessor(requestRepo, partyRepo, notificationService)
	var dispatchers event.Fanout
	if redisClient != nil {
		redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
		queue := asynq.NewClient(redisOpt)
		defer queue.Close()
		dispatchers = append(dispatchers, tasks.NewQueueDispatcher(queue))

		if cfg.Worker.Enabled {
			srv, mux := tasks.NewServer(redisOpt, cfg.Worker.Concurrency, processor)
			if err := srv.Start(mux); err != nil {
				logger.Log.Fatalf("main: ошибка запуска воркера: %v", err)
			}
			defer srv.Shutdown()
		}
	} else {
		dispatchers = append(dispatchers, tasks.NewInlineDispatcher(processor))
	}
	if cfg.Broker.URL != "" {
		publisher, err := broker.Dial(cfg.Broker.URL, cfg.Broker.Exchange)
		if err != nil {
			logger.Log.WithError(err).Error("main: брокер событий недоступен")
		} else {
			defer publisher.Close()
			dispatchers = append(dispatchers, publisher)
		}
	}

	requestDeps := &servicerequest.Deps{
		Requests:   requestRepo,
		Features:   requestRepo,
		Parties:    partyRepo,
		Payments:   paymentService,
		Verifier:   paymentService,
		Storage:    files,
		Dispatcher: dispatchers,
		Settings: servicerequest.Settings{
			TaxPercentage:    cfg.Payment.TaxPercentage,
			RescheduleNotice: cfg.RescheduleMinNotice,
			LoyaltyEarnRate:  cfg.Loyalty.EarnRate,
		},
	}

	router := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Auth:           httpHandlers.NewAuthHandler(authService),
		Address:        httpHandlers.NewAddressHandler(addressService),
		Catalog:        httpHandlers.NewCatalogHandler(catalogService, featureService),
		Provider:       httpHandlers.NewProviderHandler(providerService),
		Advertise:      httpHandlers.NewAdvertiseHandler(advertiseService),
		Favourite:      httpHandlers.NewFavouriteHandler(favouriteService),
		Notification:   httpHandlers.NewNotificationHandler(notificationService),
		Rating:         httpHandlers.NewRatingHandler(ratingService),
		Payment:        httpHandlers.NewPaymentHandler(paymentService),
		Media:          httpHandlers.NewMediaHandler(files),
		WS:             httpHandlers.NewWSHandler(hub, cfg.AllowedOrigins),
		Health:         httpHandlers.NewHealthHandler(healthChecks),
		ServiceRequest: srHandler.NewServiceRequestHandler(requestDeps, webhooks),
	}, tokenManager)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Error("main: ошибка остановки сервера")
		}
	}()

	logger.Log.WithField("port", cfg.HTTPPort).Info("main: сервер запущен")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Log.Fatalf("main: ошибка сервера: %v", err)
	}
	logger.Log.Info("main: сервер остановлен")
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
