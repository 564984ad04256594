package main

import (
	"bufio"
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"todoweb/internal/auth"
	"todoweb/internal/cache"
	"todoweb/internal/config"
	"todoweb/internal/database"
	"todoweb/internal/queue"
	"todoweb/internal/repository"
	"todoweb/internal/routes"
	"todoweb/internal/service"
	"todoweb/internal/worker"
	"todoweb/pkg/logger"
)

func main() {
	loadEnvFile(".env")

	ctx := context.Background()
	cfg := config.Get()

	db := database.InitDB(ctx)
	if db == nil {
		logger.Error(ctx, "Database not available; exiting")
		os.Exit(1)
	}
	if err := database.Migrate(ctx); err != nil {
		logger.Error(ctx, "Schema migration failed", "error", err)
		os.Exit(1)
	}

	// Redis backs sessions and flash messages, so unlike the cache it is required.
	rdb := cache.Client(ctx)
	if rdb == nil {
		logger.Error(ctx, "Redis not available; exiting")
		os.Exit(1)
	}

	// Pre-warm the Kafka producer and ensure the activity topic exists.
	queue.EnsureTopic(ctx)
	publisher := queue.NewPublisher(ctx)

	todoRepo := repository.NewPGTodoRepo(db)
	userRepo := repository.NewPGUserRepo(db)
	eventRepo := repository.NewPGEventRepo(db)

	deps := routes.Deps{
		Todos:    service.NewTodoService(todoRepo, cache.NewTodoCache(rdb, cfg.CacheTTL), publisher),
		Users:    service.NewUserService(userRepo),
		Events:   eventRepo,
		Sessions: auth.NewRedisSessionStore(rdb, cfg.SessionTTL),
		Flashes:  auth.NewRedisFlashStore(rdb, cfg.SessionTTL),
		Cfg:      cfg,
	}

	// Consume activity events into the todo_events audit table. The worker
	// stops when its context is canceled during shutdown.
	workerCtx, stopWorker := context.WithCancel(ctx)
	go worker.Run(workerCtx, eventRepo)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      routes.Router(deps),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	go func() {
		logger.Info(ctx, "HTTP server listening", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info(ctx, "Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Server shutdown error", "error", err)
	}
	stopWorker()
	logger.Info(ctx, "Server stopped")
}

// loadEnvFile reads a .env file and sets env vars (only if not already set).
func loadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if strings.HasPrefix(val, `"`) && strings.HasSuffix(val, `"`) {
			val = strings.Trim(val, `"`)
		} else if strings.HasPrefix(val, "'") && strings.HasSuffix(val, "'") {
			val = strings.Trim(val, "'")
		}
		if key != "" && os.Getenv(key) == "" {
			_ = os.Setenv(key, val)
		}
	}
}
