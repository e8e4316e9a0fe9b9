package main

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"automator/internal/config"
	"automator/internal/core/browser"
	"automator/internal/core/engine"
	"automator/internal/core/job"
	"automator/internal/core/remote"
	"automator/internal/health"
	"automator/internal/logger"
	rds "automator/internal/platform/redis"
	"automator/internal/platform/queue"
	"automator/internal/server"
	"automator/internal/storage"
)

func main() {
	cfg := config.Load()
	log.Printf("[automator] starting at %s (env=%s)\n", cfg.HTTPAddr, cfg.AppEnv)

	logr := logger.New("main")

	// Redis client
	redisSvc, err := rds.New(rds.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer redisSvc.Close()

	// One queue lane per execution backend
	browserLane := queue.NewAsynqLane(string(job.LaneBrowser), redisSvc, cfg.QueueMaxAttempts)
	remoteLane := queue.NewAsynqLane(string(job.LaneRemote), redisSvc, cfg.QueueMaxAttempts)

	store := job.NewRedisStore(redisSvc)
	jobSvc := job.NewService(store, map[job.Lane]queue.Lane{
		job.LaneBrowser: browserLane,
		job.LaneRemote:  remoteLane,
	})

	// Asset storage for screenshots and PDFs
	assets, err := storage.New(cfg)
	if err != nil {
		log.Fatal(err)
	}

	// Execution backends
	browserSvc, err := browser.New(cfg, assets)
	if err != nil {
		log.Fatalf("failed to initialize browser backend: %v", err)
	}
	remoteSvc, err := remote.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize remote backend: %v", err)
	}

	// One asynq server per lane so concurrency is tuned independently
	browserServer := asynq.NewServer(redisSvc.AsynqRedisOpt(), browserLane.ServerConfig(cfg.BrowserConcurrency, cfg.QueueRetryBase))
	remoteServer := asynq.NewServer(redisSvc.AsynqRedisOpt(), remoteLane.ServerConfig(cfg.RemoteConcurrency, cfg.QueueRetryBase))

	browserMux := asynq.NewServeMux()
	browserMux.HandleFunc(browserLane.TaskType(), engine.NewRunner(store, browserSvc).Handle)
	remoteMux := asynq.NewServeMux()
	remoteMux.HandleFunc(remoteLane.TaskType(), engine.NewRunner(store, remoteSvc).Handle)

	go func() {
		if err := browserServer.Start(browserMux); err != nil {
			log.Printf("[worker:browser] stopped: %v\n", err)
		}
	}()
	go func() {
		if err := remoteServer.Start(remoteMux); err != nil {
			log.Printf("[worker:remote] stopped: %v\n", err)
		}
	}()

	// HTTP server
	app := fiber.New(fiber.Config{
		AppName: "Automator Engine",
		JSONEncoder: func(v interface{}) ([]byte, error) {
			var buf bytes.Buffer
			encoder := json.NewEncoder(&buf)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	})
	// Serve saved artifacts (screenshots, PDFs) from DATA_DIR under /files
	app.Static("/files", cfg.DataDir)

	healthHandler := server.RegisterRoutes(app, server.Dependencies{
		Jobs: jobSvc,
		Checks: map[string]health.Check{
			"redis":   redisSvc.HealthCheck,
			"browser": browserSvc.Healthy,
		},
	})

	// Mark application as ready after all services are initialized
	go func() {
		time.Sleep(5 * time.Second)
		healthHandler.SetReady()
	}()

	// Graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.LogInfo("Shutting down...")
		browserServer.Shutdown()
		remoteServer.Shutdown()
		browserSvc.Close()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Fatalf("server listen: %v", err)
	}
}
