package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yungbote/studypath-backend/internal/db"
	"github.com/yungbote/studypath-backend/internal/fetch"
	apphttp "github.com/yungbote/studypath-backend/internal/http"
	httpH "github.com/yungbote/studypath-backend/internal/http/handlers"
	"github.com/yungbote/studypath-backend/internal/observability"
	"github.com/yungbote/studypath-backend/internal/platform/envutil"
	"github.com/yungbote/studypath-backend/internal/platform/logger"
	"github.com/yungbote/studypath-backend/internal/platform/openai"
	"github.com/yungbote/studypath-backend/internal/platform/rediscache"
	"github.com/yungbote/studypath-backend/internal/prompts"
	"github.com/yungbote/studypath-backend/internal/repos"
	"github.com/yungbote/studypath-backend/internal/services"
	"github.com/yungbote/studypath-backend/internal/workflow"
)

func main() {
	// Logger
	logMode := envutil.Str("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Tracing
	shutdownTracing := observability.Init(context.Background(), log, observability.Config{
		ServiceName: "studypath-backend",
		Environment: logMode,
		Version:     envutil.Str("SERVICE_VERSION", "dev"),
	})

	// Postgres. A missing database disables session persistence but does not
	// stop the engine from serving workflows.
	var sessionRepo repos.LearningSessionRepo
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Warn("Postgres init failed, session persistence disabled", "error", err)
	} else {
		if err := postgresService.AutoMigrateAll(); err != nil {
			log.Warn("Postgres auto migration failed", "error", err)
		}
		sessionRepo = repos.NewLearningSessionRepo(postgresService.DB(), log)
	}

	// Redis document cache, optional as well.
	var docCache fetch.Cache
	if cache, err := rediscache.New(log); err != nil {
		log.Warn("Redis init failed, document cache disabled", "error", err)
	} else {
		docCache = cache
		defer cache.Close()
	}

	// Clients
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Error("Could not init OpenAI client", "error", err)
		os.Exit(1)
	}
	fetcher := fetch.New(log, docCache)

	// Prompts
	registry := prompts.Default()
	if path := envutil.Str("PROMPTS_FILE", ""); path != "" {
		if err := prompts.LoadFile(registry, path); err != nil {
			log.Warn("Prompt overrides not loaded", "path", path, "error", err)
		}
	}

	// Engine + services
	engine := workflow.NewEngine(log, openaiClient, fetcher, registry)
	sessionService := services.NewSessionService(engine, sessionRepo, log)

	// HTTP
	srv := apphttp.NewServer(apphttp.RouterConfig{
		HealthHandler:   httpH.NewHealthHandler(engine),
		WorkflowHandler: httpH.NewWorkflowHandler(log, engine, sessionService),
		SessionHandler:  httpH.NewSessionHandler(log, sessionService),
	})

	addr := envutil.Str("HTTP_ADDR", ":8080")
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", addr)
		errCh <- srv.Run(addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		log.Info("Shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server failed", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		log.Warn("Tracing shutdown incomplete", "error", err)
	}
}
