// Conductor orchestrator server - multi-tenant AI agent execution plane.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/conductorhq/conductor/pkg/a2a"
	"github.com/conductorhq/conductor/pkg/api"
	"github.com/conductorhq/conductor/pkg/chat"
	"github.com/conductorhq/conductor/pkg/config"
	"github.com/conductorhq/conductor/pkg/credentials"
	"github.com/conductorhq/conductor/pkg/database"
	"github.com/conductorhq/conductor/pkg/events"
	"github.com/conductorhq/conductor/pkg/llm"
	"github.com/conductorhq/conductor/pkg/queue"
	"github.com/conductorhq/conductor/pkg/ratelimit"
	"github.com/conductorhq/conductor/pkg/scheduler"
	"github.com/conductorhq/conductor/pkg/tools"
	"github.com/conductorhq/conductor/pkg/version"
	"github.com/conductorhq/conductor/pkg/workflow"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
		log.Printf("continuing with existing environment variables")
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	log := slog.Default()
	log.Info("starting conductor", "version", version.Full())

	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dbClient, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("error closing database client", "error", err)
		}
	}()
	log.Info("connected to postgres")

	redisOpts, err := redis.ParseURL(cfg.RateLimit.RedisURL)
	if err != nil {
		slog.Error("invalid redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	limiter := ratelimit.NewRedisLimiter(redisClient)

	credStore := credentials.New(dbClient.ApiKeys, log)

	adapter := llm.NewAdapter()
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		anthropicProvider, err := llm.NewAnthropicProvider(key, "")
		if err != nil {
			slog.Error("failed to initialize anthropic provider", "error", err)
			os.Exit(1)
		}
		adapter.Register("claude-", anthropicProvider)
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		openaiProvider, err := llm.NewOpenAIProvider(key, "")
		if err != nil {
			slog.Error("failed to initialize openai provider", "error", err)
			os.Exit(1)
		}
		adapter.Register("gpt-", openaiProvider)
	}

	eventPublisher := events.NewEventPublisher(dbClient.DB())
	connManager := events.NewConnectionManager(dbClient.Events, 10*time.Second)
	notifyListener := events.NewNotifyListener(cfg.Database.DSN(), connManager)
	if err := notifyListener.Start(ctx); err != nil {
		slog.Error("failed to start notify listener", "error", err)
		os.Exit(1)
	}
	connManager.SetListener(notifyListener)

	registry := tools.NewRegistry()
	chatSvc := chat.New(dbClient.Conversations, registry, adapter, eventPublisher, log)
	agentRunner := workflow.NewAgentRunner(chatSvc)
	a2aClient := a2a.NewClient(&http.Client{Timeout: time.Duration(cfg.A2A.ClientTimeout) * time.Second})

	engine := workflow.NewEngine(dbClient.Executions, dbClient.Agents, registry, agentRunner, a2aClient, eventPublisher, log)

	podID := getEnv("HOSTNAME", "conductor-local")
	workerPool := queue.NewWorkerPool(podID, dbClient, cfg.Queue, engine)
	if err := workerPool.Start(ctx); err != nil {
		slog.Error("failed to start worker pool", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(dbClient.ScheduleTrigs, dbClient.Executions, cfg.Scheduler, log)
	sched.Start(ctx)

	taskStores := a2a.NewTaskStoreManager(time.Hour)
	a2aServer := a2a.NewServer(chatSvc, taskStores, log)

	server := api.NewServer(cfg, dbClient, credStore, limiter, workerPool, a2aServer, connManager, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.Server.Addr)
		if err := server.Start(cfg.Server.Addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, initiating graceful shutdown")
	case err := <-errCh:
		slog.Error("http server failed", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.GracefulShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}
	sched.Stop()
	workerPool.Stop()
	notifyListener.Stop(shutdownCtx)

	log.Info("conductor stopped")
}
