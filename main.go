package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"

	"thriftly_backend/config"
	"thriftly_backend/handlers"
	"thriftly_backend/internal/email"
	"thriftly_backend/internal/logger"
	"thriftly_backend/internal/metrics"
	"thriftly_backend/internal/pubsub"
	"thriftly_backend/internal/services"
	"thriftly_backend/internal/storage"
	"thriftly_backend/internal/tasks"
	"thriftly_backend/internal/ws"
	"thriftly_backend/middleware"
	"thriftly_backend/utils"
)

const storyCleanupInterval = 10 * time.Minute

func main() {
	mode := flag.String("mode", "api", "api or worker")
	reset := flag.Bool("reset", false, "drop all tables, migrate and seed demo users")
	flag.Parse()

	if err := run(*mode, *reset); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(mode string, reset bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger.SetupDefault(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		return err
	}
	defer config.CloseDatabase(db)

	if reset {
		hash, err := utils.HashPassword(getEnv("SEED_PASSWORD", "password123"))
		if err != nil {
			return err
		}
		if err := config.ResetAndMigrate(db, hash); err != nil {
			return err
		}
	} else if err := config.Migrate(db); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "api":
		return runAPI(ctx, cfg, db)
	case "worker":
		return runWorker(ctx, cfg, db)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func runAPI(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(reg)

	// Event bus: Redis lets several API instances share rooms and
	// notifications; without it everything stays in-process.
	var bus pubsub.Bus = pubsub.NewMemoryBus()
	if cfg.RedisEnabled() {
		client, err := pubsub.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		bus = pubsub.NewRedisBus(client)
	}
	defer bus.Close()

	hub := ws.NewHub(bus, rec)
	chat := services.NewChatService(db)
	notifications := services.NewNotificationService(db, hub, rec)
	hub.Messages = chat
	hub.Notifier = notifications
	if err := hub.Start(ctx); err != nil {
		return err
	}
	defer hub.Stop()

	stories := services.NewStoryService(db, notifications, hub, cfg.StoryTTL)
	processor := tasks.NewTaskProcessor(cfg.SMTPFrom, email.NewSender(cfg), stories)

	var mailer services.Mailer
	if cfg.RedisEnabled() {
		client := asynq.NewClient(tasks.RedisOpt(cfg))
		defer client.Close()
		mailer = tasks.NewAsynqDispatcher(client)
	} else {
		inline := tasks.NewInlineDispatcher(processor)
		defer inline.Wait()
		mailer = inline
		go tasks.RunCleanupLoop(ctx, processor, storyCleanupInterval)
	}

	var store storage.Storage
	if cfg.S3Enabled() {
		s3Store, err := storage.NewS3Storage(ctx, cfg)
		if err != nil {
			return err
		}
		store = s3Store
	} else {
		local, err := storage.NewLocalStorage(cfg.UploadDir, cfg.PublicBaseURL+"/uploads")
		if err != nil {
			return err
		}
		store = local
	}
	uploader := storage.NewUploader(store, uint(cfg.ImageMaxDimension), int64(cfg.UploadMaxMB)<<20)

	products := services.NewProductService(db)
	orders := services.NewOrderService(db, notifications, mailer, rec)
	deps := handlers.Deps{
		Users: services.NewUserService(db, mailer, services.AuthSettings{
			JWTSecret: cfg.JWTSecret,
			JWTTTL:    cfg.JWTExpiresIn,
			OTPTTL:    cfg.OTPTTL,
		}),
		Products:      products,
		Categories:    services.NewCategoryService(db),
		Orders:        orders,
		Offers:        services.NewOfferService(db, notifications),
		Wishlist:      services.NewWishlistService(db),
		Follows:       services.NewFollowService(db, notifications),
		Reviews:       services.NewReviewService(db),
		Stories:       stories,
		Reports:       services.NewReportService(db, notifications),
		Notifications: notifications,
		Chat:          chat,
		Payments: services.NewPaymentService(db, services.EsewaSettings{
			FormURL:     cfg.EsewaFormURL,
			ProductCode: cfg.EsewaProductCode,
			SecretKey:   cfg.EsewaSecretKey,
			SuccessURL:  cfg.PublicBaseURL + "/api/payments/esewa/success",
			FailureURL:  cfg.PublicBaseURL + "/api/payments/esewa/failure",
		}, orders, products, cfg.BoostPrice, cfg.BoostDays, rec),
		Contact:  services.NewContactService(mailer, cfg.AdminEmail),
		Hub:      hub,
		Uploader: uploader,
		Metrics:  metrics.Handler(reg),
	}

	app := fiber.New(fiber.Config{
		AppName:      "ThriftLy Backend",
		ServerHeader: "ThriftLy Backend Server/1.0",
		BodyLimit:    cfg.UploadMaxMB << 20,
		ErrorHandler: middleware.ErrorHandler,
	})
	middleware.SetupMiddleware(app, cfg)
	handlers.SetupRoutes(app, cfg, deps)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("🚀 Server starting", "host", cfg.HOST, "port", cfg.AppPort, "env", cfg.AppEnv)
		errCh <- app.Listen(cfg.HOST + ":" + cfg.AppPort)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	return app.ShutdownWithTimeout(10 * time.Second)
}

// runWorker delivers queued email and runs the periodic story cleanup.
func runWorker(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if !cfg.RedisEnabled() {
		return errors.New("worker mode requires REDIS_ADDR")
	}
	opt := tasks.RedisOpt(cfg)

	stories := services.NewStoryService(db, nil, nil, cfg.StoryTTL)
	processor := tasks.NewTaskProcessor(cfg.SMTPFrom, email.NewSender(cfg), stories)

	scheduler, err := tasks.NewScheduler(opt, storyCleanupInterval)
	if err != nil {
		return err
	}
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer scheduler.Shutdown()

	server := tasks.NewServer(opt, 10)
	if err := server.Start(tasks.NewServeMux(processor)); err != nil {
		return fmt.Errorf("failed to start task server: %w", err)
	}
	slog.Info("worker started", "redis", cfg.RedisAddr)

	<-ctx.Done()
	slog.Info("shutting down worker")
	server.Shutdown()
	return nil
}
