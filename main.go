package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/crewquery/engine/pkg/config"
	"github.com/crewquery/engine/pkg/database"
	"github.com/crewquery/engine/pkg/executor"
	"github.com/crewquery/engine/pkg/handlers"
	"github.com/crewquery/engine/pkg/llm"
	"github.com/crewquery/engine/pkg/logging"
	"github.com/crewquery/engine/pkg/prompts"
	"github.com/crewquery/engine/pkg/repositories"
	"github.com/crewquery/engine/pkg/schema"
	"github.com/crewquery/engine/pkg/services"
	enginesql "github.com/crewquery/engine/pkg/sql"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
		zap.Int("attached_databases", len(cfg.Databases)))

	appDB, err := database.OpenAppDB(cfg.AppDB.Path)
	if err != nil {
		logger.Fatal("failed to open app db", zap.Error(err))
	}
	defer appDB.Close()

	if err := database.RunMigrations(appDB, cfg.AppDB.MigrationsPath, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	catalog := schema.NewCatalog(cfg.Schema.Path, logger)
	if err := catalog.Load(); err != nil {
		// The service still starts; /ready reports not_ready and a reload
		// can recover once the schema file appears.
		logger.Warn("catalog load failed at startup",
			zap.String("error", logging.SanitizeError(err)))
	}

	clients, err := llm.NewClients(&cfg.LLM, logger)
	if err != nil {
		logger.Fatal("failed to build model clients", zap.Error(err))
	}

	fewShot, err := prompts.LoadFewShot(cfg.Schema.FewShotPath)
	if err != nil {
		logger.Fatal("failed to load few-shot examples", zap.Error(err))
	}

	engine := executor.NewEngine(cfg.Databases, cfg.Pipeline.RowLimit, cfg.Pipeline.QueryTimeout(), logger)
	validator := enginesql.NewValidator(engine.Aliases())
	retriever := schema.NewRetriever(catalog, clients.Embedder, cfg.Pipeline.FullSchemaTokenThreshold, logger)

	generator := services.NewGeneratorService(clients.Chat, fewShot, cfg.Pipeline.RowLimit, logger)
	loop := services.NewCorrectionLoop(generator, validator, engine, cfg.Pipeline.MaxAttempts, logger)
	summarizer := services.NewSummarizerService(clients.Chat, cfg.Pipeline.SummaryRowLimit, logger)
	intents := services.NewIntentService(clients.Fast, cfg.Pipeline.ConfidenceThreshold, logger)
	rewriter := services.NewRewriterService(clients.Fast, logger)
	conversations := services.NewConversationService(repositories.NewConversationRepository(appDB))

	chat := services.NewChatService(conversations, catalog, retriever, intents, rewriter,
		loop, summarizer, clients.Fast, cfg.Pipeline, logger)

	mux := http.NewServeMux()
	handlers.NewChatHandler(chat, conversations, logger).RegisterRoutes(mux)
	handlers.NewSchemaHandler(catalog, logger).RegisterRoutes(mux)
	handlers.NewHealthHandler(cfg, catalog, engine, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:    cfg.BindAddr + ":" + cfg.Port,
		Handler: mux,
	}

	go func() {
		logger.Info("starting crewquery-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown did not complete cleanly", zap.Error(err))
	}
}
