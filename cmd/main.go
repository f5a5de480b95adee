package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"satellite-service/internal/cache"
	"satellite-service/internal/config"
	"satellite-service/internal/database/postgres"
	"satellite-service/internal/database/redis"
	"satellite-service/internal/event"
	"satellite-service/internal/handlers"
	"satellite-service/internal/provider"
	"satellite-service/internal/repository"
	"satellite-service/internal/services"
	"satellite-service/internal/worker"

	"github.com/gofiber/fiber/v3"
	"github.com/joho/godotenv"
)

func setupLogging() (*os.File, error) {
	logDir := filepath.Join("/agrisa", "log", "satellite_service")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	logFileName := fmt.Sprintf("log_%s.log", time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(logDir, logFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(file, nil)))
	log.SetOutput(file)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	return file, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	logFile, err := setupLogging()
	if err != nil {
		log.Printf("file logging unavailable, using stderr: %v", err)
	} else {
		defer logFile.Close()
	}

	cfg := config.New()

	db, err := postgres.Connect(cfg.PostgresCfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := postgres.ExecSchema(db, "schema.sql"); err != nil {
		log.Printf("schema bootstrap failed: %v", err)
	}

	// Redis is preferred for the cache so replicas share payloads; fall
	// back to the in-process backend when it is unreachable.
	var backend cache.Backend
	if redisClient, err := redis.NewRedisClient(cfg.RedisCfg); err != nil {
		log.Printf("redis unavailable, using in-memory cache: %v", err)
		backend = cache.NewMemoryBackend()
	} else {
		defer redisClient.Close()
		backend = cache.NewRedisBackend(redisClient.GetClient())
	}
	cacheManager := cache.NewManager(backend, cfg.PipelineCfg.CacheTTL)

	var publisher services.AlertPublisher
	if rabbitConn, err := event.NewRabbitMQConnection(cfg.RabbitMQCfg); err != nil {
		log.Printf("rabbitmq unavailable, anomaly events disabled: %v", err)
	} else {
		defer rabbitConn.Close()
		publisher = event.NewAnomalyPublisher(rabbitConn)
	}

	fieldRepo := repository.NewFieldRepository(db)
	sampleRepo := repository.NewIndexSampleRepository(db)
	imagery := provider.NewSentinelClient(cfg.ProviderCfg)

	healthService := services.NewFieldHealthService(
		fieldRepo, sampleRepo, imagery, cacheManager, publisher,
		cfg.PipelineCfg, cfg.ProviderCfg.Version,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := worker.NewJobScheduler("cache-sweep", cfg.PipelineCfg.CacheSweepInterval)
	sweeper.AddJob(worker.Job{
		Name: "sweep-expired-cache-entries",
		Run: func(ctx context.Context) {
			if removed := cacheManager.Sweep(ctx); removed > 0 {
				slog.Info("Cache sweep completed", "removed", removed)
			}
		},
	})
	go sweeper.Run(ctx)

	app := fiber.New()
	app.Get("/checkhealth", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).SendString("Satellite service is healthy")
	})

	handlers.NewFieldHealthHandler(healthService, cacheManager).Register(app)

	log.Printf("satellite service listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
