package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seantiz/agentflow/internal/abstraction"
	"github.com/seantiz/agentflow/internal/api"
	"github.com/seantiz/agentflow/internal/config"
	"github.com/seantiz/agentflow/internal/engine"
	"github.com/seantiz/agentflow/internal/framework"
	"github.com/seantiz/agentflow/internal/framework/agno"
	"github.com/seantiz/agentflow/internal/framework/crewai"
	"github.com/seantiz/agentflow/internal/framework/langgraph"
	"github.com/seantiz/agentflow/internal/framework/n8n"
	"github.com/seantiz/agentflow/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("agentflow: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"frameworks_file", cfg.FrameworksFile,
	)

	archive, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer archive.Close()

	configs, err := config.LoadFrameworks(cfg.FrameworksFile)
	if err != nil {
		log.Fatalf("failed to load framework config: %v", err)
	}

	broker := engine.NewEventBroker()
	records := engine.NewMemoryStore(cfg.RecordTTL, engine.WithEvictHook(broker.Forget))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go engine.Janitor(ctx, records, cfg.SweepInterval, logger)

	opts := framework.Options{Store: records, Broker: broker, Logger: logger}
	reg := framework.NewRegistry(logger)
	for _, a := range []framework.Adapter{langgraph.New(opts), agno.New(opts), crewai.New(opts), n8n.New(opts)} {
		if err := reg.RegisterAdapter(a); err != nil {
			log.Fatalf("failed to register adapter: %v", err)
		}
	}

	config.FillTimeScale(configs, reg.GetSupportedFrameworks(), cfg.TimeScale)
	report, err := reg.InitializeAllFrameworks(ctx, configs)
	if err != nil {
		logger.Error("some frameworks failed to initialize", "error", err)
	}
	logger.Info("frameworks initialized", "ready", report.Ready, "degraded", report.Degraded)

	svc := abstraction.NewService(reg, logger, abstraction.WithArchive(archive))
	srv := api.NewServer(cfg.ListenAddr, svc, archive, broker, logger)

	runErr := srv.Run(ctx)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := reg.ShutdownAllFrameworks(shutdownCtx); err != nil {
		logger.Error("framework shutdown", "error", err)
	}
	svc.Wait()

	if runErr != nil {
		log.Fatalf("server error: %v", runErr)
	}
}
