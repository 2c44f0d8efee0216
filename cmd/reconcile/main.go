package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/app"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ingest"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ocr"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pipeline"
	"github.com/joseph-ayodele/invoice-reconciler/internal/report"
	"github.com/joseph-ayodele/invoice-reconciler/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		cfgPath = flag.String("config", "", "optional YAML config file")
		dir     = flag.String("dir", ".", "project folder; outputs are written here")
		appFile = flag.String("app", "", "application file (enables the comparison scenario)")
		model   = flag.String("model", "", "LLM model override")
		preview = flag.Bool("preview", false, "print the comparison report to the terminal")
		style   = flag.String("style", "notty", "glamour style for -preview (dark, light, notty)")
		width   = flag.Int("width", 100, "word wrap width for -preview")
	)
	flag.Usage = func() {
		printError("usage: reconcile [flags] [invoice files...]\n\nWithout files, the project folder is scanned: one file named like an application plus one other file is a comparison, anything else is a batch.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := common.LoadConfig(*cfgPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err == nil {
		err = cfg.ValidateLLM()
	}
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}
	logger := app.NewLogger(os.Stderr, cfg.LogLevel, false)

	application, invoices, err := selectFiles(*dir, *appFile, flag.Args())
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := app.OpenDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	var runs repository.RunRepository
	if db != nil {
		defer db.Close()
		runs = repository.NewRunRepository(db, logger)
	}

	ex, err := app.NewExtraction(cfg.OCR, nil, logger)
	if err != nil {
		logger.Error("failed to start ocr pool", "error", err)
		os.Exit(1)
	}
	defer ocr.ShutdownGlobal()

	client, err := app.NewLLM(cfg.LLM, nil, logger)
	if err != nil {
		logger.Error("failed to build llm client", "error", err)
		os.Exit(1)
	}
	proc, err := app.NewProcessor(cfg, ex.Parser, client, runs, nil, logger)
	if err != nil {
		logger.Error("failed to build processor", "error", err)
		os.Exit(1)
	}

	res, err := proc.Run(ctx, pipeline.Request{WorkDir: *dir, Application: application, Invoices: invoices, Model: *model})
	if err != nil && !errors.Is(err, pipeline.ErrNoResults) {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
	if errors.Is(err, pipeline.ErrNoResults) {
		fmt.Println("Нет данных: ни один документ не распознан.")
		os.Exit(3)
	}

	fmt.Printf("Сценарий: %s, счетов: %d\n", res.Scenario, len(res.Records))
	for _, p := range res.OutputFiles {
		fmt.Println("  " + p)
	}
	if *preview && res.Report != "" {
		out, err := report.Preview(res.Report, *style, *width)
		if err != nil {
			logger.Warn("preview failed", "error", err)
			return
		}
		fmt.Println(out)
	}
}

func selectFiles(dir, application string, invoices []string) (string, []string, error) {
	if application != "" || len(invoices) > 0 {
		return application, invoices, nil
	}
	files, _, err := ingest.ScanDirectory(dir, true)
	if err != nil {
		return "", nil, err
	}
	var apps, others []string
	for _, f := range files {
		if constants.LooksLikeApplication(filepath.Base(f)) {
			apps = append(apps, f)
		} else {
			others = append(others, f)
		}
	}
	if len(apps) == 1 && len(others) == 1 {
		slog.Info("comparison scenario selected", "application", apps[0], "invoice", others[0])
		return apps[0], others, nil
	}
	if len(files) == 0 {
		return "", nil, fmt.Errorf("no pdf or xlsx files in %s", dir)
	}
	return "", files, nil
}
