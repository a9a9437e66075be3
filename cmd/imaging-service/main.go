package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/quantum-imaging/internal/api/handler"
	"github.com/cuongbtq/quantum-imaging/internal/api/router"
	"github.com/cuongbtq/quantum-imaging/internal/archive"
	"github.com/cuongbtq/quantum-imaging/internal/config"
	"github.com/cuongbtq/quantum-imaging/internal/domain"
	"github.com/cuongbtq/quantum-imaging/internal/imaging"
	"github.com/cuongbtq/quantum-imaging/internal/notify"
	"github.com/cuongbtq/quantum-imaging/internal/worker"
	"github.com/cuongbtq/quantum-imaging/shared/logger"
	"github.com/cuongbtq/quantum-imaging/shared/postgresql"
	"github.com/cuongbtq/quantum-imaging/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("IMAGING_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/imaging-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting imaging service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx := context.Background()

	var (
		sinks        []worker.Sink
		dbClient     *postgresql.Client
		rabbitClient *rabbitmq.Client
	)

	// Cleanup function to close all resources
	cleanup := func() {
		if dbClient != nil {
			dbClient.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}
	defer cleanup()

	if cfg.Archive.Enabled {
		dbClient, err = initPostgreSQL(&cfg.Archive.DatabaseConfig, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize archive database: %w", err)
		}

		sink := archive.NewSink(dbClient, appLogger.Logger)
		if err := sink.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, sink)
		appLogger.Info("Job archive enabled")
	}

	if cfg.Events.Enabled {
		rabbitClient, err = initRabbitMQ(ctx, &cfg.Events.RabbitMQConfig, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}

		sinks = append(sinks, notify.NewPublisher(rabbitClient))
		appLogger.Info("Job event publishing enabled",
			slog.String("exchange", cfg.Events.Exchange.Name),
		)
	}

	w := initWorker(cfg, sinks, appLogger.Logger)
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	r := initRouter(cfg, w, appLogger.Logger)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	appLogger.Info("Imaging service is running",
		slog.String("address", addr),
		slog.Int("concurrency", cfg.Worker.Concurrency),
		slog.Int("queue_capacity", cfg.Worker.QueueCapacity),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		appLogger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErr:
		appLogger.Error("Server failed", slog.Any("error", err))
		runErr = err
	}

	appLogger.Info("Shutting down server...")

	httpCtx, cancelHTTP := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelHTTP()

	if err := srv.Shutdown(httpCtx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.Any("error", err))
	}

	// Stop intake, then give queued jobs a bounded time to finish
	workerCtx, cancelWorker := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer cancelWorker()

	if err := w.Stop(workerCtx); err != nil {
		appLogger.Warn("Worker pool stopped before the queue drained", slog.Any("error", err))
	}

	appLogger.Info("Imaging service shutdown complete")
	return runErr
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(context.Background(), dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ publisher
func initRabbitMQ(ctx context.Context, cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(ctx, rabbitConfig, logger)
}

// initWorker builds the worker pool and its transform executor
func initWorker(cfg *config.Config, sinks []worker.Sink, logger *slog.Logger) *worker.Worker {
	img := cfg.Imaging

	executor := worker.NewTransformExecutor(
		imaging.EdgeOptions{
			Enhancement: img.Edge.Enhancement,
			Threshold:   img.Edge.Threshold,
		},
		img.Compression.BlockSize,
	)

	return worker.NewWorker(&worker.Config{
		Logger:        logger,
		Executor:      executor,
		Sinks:         sinks,
		WorkerID:      cfg.Worker.ID,
		Concurrency:   cfg.Worker.Concurrency,
		QueueCapacity: cfg.Worker.QueueCapacity,
		JobTimeout:    cfg.Worker.JobTimeout,
		SinkTimeout:   cfg.Worker.SinkTimeout,
		Defaults: domain.Params{
			TargetRatio:  img.Compression.TargetRatio,
			FeatureCount: img.Features.Count,
			Seed:         img.Features.Seed,
		},
	})
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, scheduler handler.Scheduler, logger *slog.Logger) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	deps := &handler.Dependencies{
		Logger:    logger,
		Scheduler: scheduler,
		Decode: imaging.DecodeOptions{
			Grayscale: cfg.Imaging.Grayscale,
			Width:     cfg.Imaging.Width,
			Height:    cfg.Imaging.Height,
			MaxPixels: cfg.Imaging.MaxPixels,
		},
		MaxUploadBytes: cfg.Imaging.MaxUploadBytes,
		ServiceName:    cfg.App.Name,
		Version:        cfg.App.Version,
	}

	return router.SetupRouter(deps)
}
