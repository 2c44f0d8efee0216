package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/invoice-reconciler/internal/app"
	"github.com/joseph-ayodele/invoice-reconciler/internal/async"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ingest"
	"github.com/joseph-ayodele/invoice-reconciler/internal/metrics"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ocr"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pipeline"
	"github.com/joseph-ayodele/invoice-reconciler/internal/report"
	"github.com/joseph-ayodele/invoice-reconciler/internal/repository"
	"github.com/joseph-ayodele/invoice-reconciler/internal/server"
)

func main() {
	cfgPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := common.LoadConfig(*cfgPath)
	if err == nil {
		err = cfg.Validate()
	}
	logger := app.NewLogger(os.Stdout, "info", true)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	logger = app.NewLogger(os.Stdout, cfg.LogLevel, true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.Default()

	db, err := app.OpenDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	var (
		runs repository.RunRepository
		docs repository.DocumentRepository
		dbHC server.HealthChecker
	)
	if db != nil {
		defer db.Close()
		runs = repository.NewRunRepository(db, logger)
		docs = repository.NewDocumentRepository(db, logger)
		dbHC = db
	}

	ex, err := app.NewExtraction(cfg.OCR, m, logger)
	if err != nil {
		logger.Error("failed to start ocr pool", "error", err)
		os.Exit(1)
	}
	defer ocr.ShutdownGlobal()

	renderer, err := report.NewRenderer(cfg.Pipeline.ReportTemplatePath, logger)
	if err != nil {
		logger.Error("failed to load report template", "error", err)
		os.Exit(1)
	}

	// The run endpoint needs the LLM; the daemon still serves everything
	// else without an API key.
	var runner server.Runner
	if cfg.ValidateLLM() == nil {
		client, err := app.NewLLM(cfg.LLM, m, logger)
		if err != nil {
			logger.Error("failed to build llm client", "error", err)
			os.Exit(1)
		}
		proc, err := app.NewProcessor(cfg, ex.Parser, client, runs, m, logger)
		if err != nil {
			logger.Error("failed to build processor", "error", err)
			os.Exit(1)
		}
		runner = proc
	} else {
		logger.Warn("OPENROUTER_API_KEY not set, /v1/runs disabled")
	}

	var queue *async.ProcessorQueue
	if cfg.Server.InboxDir != "" {
		ing := pipeline.NewIngester(ex.Parser, docs, m, logger)
		queue = async.NewProcessorQueue(ing, logger,
			async.WithWorkers(cfg.Pipeline.Parallel),
			async.WithQueueSize(512),
			async.WithProcessTimeout(5*time.Minute),
		)
		go func() {
			err := ingest.Run(ctx, ingest.WatchConfig{
				Roots:       []string{cfg.Server.InboxDir},
				InitialScan: true,
				Debounce:    500 * time.Millisecond,
				Logger:      logger,
			}, queue)
			if err != nil {
				logger.Error("inbox watcher stopped", "error", err)
			}
		}()
	}

	grpcServer := grpc.NewServer()
	hs := server.Register(grpcServer, server.NewReconcilerService(renderer, ex.Pool, logger))
	reflection.Register(grpcServer)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("grpc listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc serve failed", "error", err)
		}
	}()

	httpServer := &http.Server{
		Addr: cfg.Server.HTTPAddr,
		Handler: server.NewRouter(server.Deps{
			Renderer: renderer,
			Pool:     ex.Pool,
			Runner:   runner,
			Runs:     runs,
			DB:       dbHC,
			Metrics:  m.Handler(),
			Logger:   logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	hs.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	if queue != nil {
		queue.Shutdown(shutdownCtx)
	}
	slog.Info("stopped")
}
