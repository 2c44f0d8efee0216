// Package app wires configuration into the components shared by the
// commands: logger, database, OCR pool, document parser, LLM client and
// pipeline processor.
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/llm"
	"github.com/joseph-ayodele/invoice-reconciler/internal/metrics"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ocr"
	"github.com/joseph-ayodele/invoice-reconciler/internal/parse"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pipeline"
	"github.com/joseph-ayodele/invoice-reconciler/internal/project"
	"github.com/joseph-ayodele/invoice-reconciler/internal/report"
	"github.com/joseph-ayodele/invoice-reconciler/internal/repository"
)

// NewLogger builds the root logger and installs it as the default.
func NewLogger(w io.Writer, level string, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if json {
		h = slog.NewJSONHandler(w, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps debug|info|warn|error to a slog level; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OpenDB opens and migrates the configured database. It returns nil and no
// error when DB_URL is empty.
func OpenDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repository.DB, error) {
	db, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
	if errors.Is(err, repository.ErrNoDatabase) {
		logger.Info("database disabled, runs will not be recorded")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Extraction bundles the OCR pool with the document parser built on it.
type Extraction struct {
	Pool   *ocr.Pool
	Parser *parse.DocumentParser
}

// NewExtraction starts the process-wide OCR pool and builds the parser.
// Stop it with ocr.ShutdownGlobal.
func NewExtraction(cfg common.OCRConfig, m *metrics.Metrics, logger *slog.Logger) (*Extraction, error) {
	ocfg := ocr.ConfigFrom(cfg)
	var opts []ocr.Option
	if m != nil {
		opts = append(opts, ocr.WithObserver(m))
	}
	pool, err := ocr.Global(ocfg, logger, opts...)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.WatchPool(pool.Stats)
	}
	pdf := ocr.NewPDFExtractor(ocfg, pool, logger)
	parser := parse.NewDocumentParser(pdf, logger, parse.WithImageRecognizer(pool))
	return &Extraction{Pool: pool, Parser: parser}, nil
}

// NewLLM builds the OpenRouter client.
func NewLLM(cfg common.LLMConfig, m *metrics.Metrics, logger *slog.Logger) (*llm.Client, error) {
	var opts []llm.Option
	if m != nil {
		opts = append(opts, llm.WithObserver(m))
	}
	return llm.NewClient(llm.ConfigFrom(cfg), logger, opts...)
}

// NewProcessor builds the pipeline processor. runs may be nil.
func NewProcessor(cfg *common.Config, tx parse.TextExtractor, q pipeline.Querier, runs repository.RunRepository, m *metrics.Metrics, logger *slog.Logger) (*pipeline.Processor, error) {
	renderer, err := report.NewRenderer(cfg.Pipeline.ReportTemplatePath, logger)
	if err != nil {
		return nil, err
	}
	repl, err := project.LoadReplacements(cfg.Pipeline.SupplierReplacementsPath, logger)
	if err != nil {
		return nil, err
	}
	opts := []pipeline.Option{
		pipeline.WithRenderer(renderer),
		pipeline.WithReplacements(repl),
		pipeline.WithParallel(cfg.Pipeline.Parallel),
		pipeline.WithModel(cfg.LLM.Model),
	}
	if runs != nil {
		opts = append(opts, pipeline.WithRunRepository(runs))
	}
	if m != nil {
		opts = append(opts, pipeline.WithObserver(m))
	}
	return pipeline.NewProcessor(tx, q, logger, opts...)
}
