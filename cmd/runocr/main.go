package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joseph-ayodele/invoice-reconciler/internal/app"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ocr"
	"github.com/joseph-ayodele/invoice-reconciler/internal/repository"
)

func main() {
	cfgPath := flag.String("config", "", "optional YAML config file")
	record := flag.Bool("record", false, "store the text in the documents table (needs DB_URL)")
	flag.Parse()

	logger := app.NewLogger(os.Stderr, "info", true)
	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runocr [-record] <file.pdf|file.xlsx|image>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := common.LoadConfig(*cfgPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	logger = app.NewLogger(os.Stderr, cfg.LogLevel, true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	ex, err := app.NewExtraction(cfg.OCR, nil, logger)
	if err != nil {
		logger.Error("failed to start ocr pool", "error", err)
		os.Exit(1)
	}
	defer ocr.ShutdownGlobal()

	start := time.Now()
	res, err := ex.Parser.Extract(ctx, path)
	dur := time.Since(start)
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}
	logger.Info("text extraction OK",
		"path", path,
		"method", res.Method,
		"pages", res.Pages,
		"chars", len([]rune(res.Text)),
		"duration_ms", dur.Milliseconds(),
	)

	if *record {
		db, err := app.OpenDB(ctx, cfg.Database, logger)
		if err != nil || db == nil {
			logger.Error("database unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		doc, err := repository.NewDocumentRepository(db, logger).Record(ctx, path, res.Method, res.Text, dur)
		if err != nil {
			logger.Error("record document failed", "error", err)
			os.Exit(1)
		}
		logger.Info("document recorded", "id", doc.ID)
	}
	fmt.Println(res.Text)
}
