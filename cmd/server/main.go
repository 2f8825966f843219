package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ssanntii/Stock-Final-UTN/internal/config"
	"github.com/Ssanntii/Stock-Final-UTN/internal/identity"
	"github.com/Ssanntii/Stock-Final-UTN/internal/notification"
	"github.com/Ssanntii/Stock-Final-UTN/internal/repository"
	"github.com/Ssanntii/Stock-Final-UTN/internal/service"
	transport "github.com/Ssanntii/Stock-Final-UTN/internal/transport/http"
	"github.com/Ssanntii/Stock-Final-UTN/internal/transport/http/handler"
	"github.com/Ssanntii/Stock-Final-UTN/pkg/db"
	"github.com/Ssanntii/Stock-Final-UTN/pkg/kafka"
	"github.com/Ssanntii/Stock-Final-UTN/pkg/logging"
	"github.com/Ssanntii/Stock-Final-UTN/pkg/utils"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	tp, err := utils.InitTracer(ctx, "gestock-api")
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	logger, err := config.NewLogger(cfg.Logger, cfg.Env)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := db.NewPostgresPool(ctx, cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("failed to create pool: %v", err)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.Fatalf("error creating kafka producer: %v", err)
	}

	productRepo := repository.NewProductRepository(pool, logger)
	userRepo := repository.NewUserRepository(pool, logger)

	productService := service.NewProductService(productRepo, logger)
	cachedProducts := service.NewCachedProductService(productService, redisClient, cfg.Redis.CacheTTL)

	sender := notification.NewSMTPSender(cfg.SMTP, logger)
	dispatcher := notification.NewDispatcher(sender, producer, cfg.Kafka.Topic, logger)

	cacheInvalidator, _ := cachedProducts.(service.CacheInvalidator)
	checkoutService := service.NewCheckoutService(pool, logger, productRepo, dispatcher, cacheInvalidator)

	provider := identity.NewJWTProvider(cfg.Auth.AccessSecret, userRepo, logger)

	app := fiber.New(fiber.Config{
		ReadTimeout: cfg.HTTP.Timeout,
	})
	app.Use(otelfiber.Middleware())

	transport.RegisterRoutes(app, &transport.Handlers{
		Checkout: handler.NewCheckoutHandler(checkoutService, logger),
		Product:  handler.NewProductHandler(cachedProducts, logger),
	}, provider)

	go func() {
		logging.Info(ctx, logger, "HTTP server listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Fatalf("error serving http: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, exit := context.WithTimeout(context.Background(), 5*time.Second)
	defer exit()

	logging.Info(shutdownCtx, logger, "Shutting down server")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logging.Warn(shutdownCtx, logger, "Failed to shut down http server", zap.Error(err))
	}

	// Let in-flight purchase notifications drain before closing the producer.
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logging.Warn(shutdownCtx, logger, "Notification dispatcher did not drain", zap.Error(err))
	}

	if err := producer.Close(); err != nil {
		logging.Warn(shutdownCtx, logger, "Failed to close kafka producer", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		logging.Warn(shutdownCtx, logger, "Failed to close redis client", zap.Error(err))
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		logging.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
	}
}
