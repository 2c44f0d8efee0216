package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/invoice-reconciler/internal/app"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/llm"
)

func main() {
	var (
		models = flag.Bool("models", false, "list available models and exit")
		model  = flag.String("model", "", "model override")
		times  = flag.Int("times", 1, "repeat the extraction n times (latency probe)")
	)
	flag.Parse()

	logger := app.NewLogger(os.Stderr, "info", true)
	cfg, err := common.LoadConfig("")
	if err == nil {
		err = cfg.ValidateLLM()
	}
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	logger = app.NewLogger(os.Stderr, cfg.LogLevel, true)

	client, err := app.NewLLM(cfg.LLM, nil, logger)
	if err != nil {
		logger.Error("failed to build llm client", "error", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if *models {
		ids, err := client.ListModels(ctx)
		if err != nil {
			logger.Error("list models failed", "error", err)
			os.Exit(1)
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return
	}

	if flag.NArg() != 1 {
		logger.Error("usage: llm [-models] [-model m] [-times n] <text-file>")
		os.Exit(2)
	}
	path := flag.Arg(0)
	text, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read text", "path", path, "error", err)
		os.Exit(1)
	}
	prompt := llm.BuildSingleInvoicePrompt(filepath.Base(path), string(text))

	var last []llm.Invoice
	for i := 1; i <= max(*times, 1); i++ {
		start := time.Now()
		reply, err := client.Query(ctx, prompt, *model)
		if err != nil {
			logger.Error("query failed", "attempt", i, "error", err)
			os.Exit(1)
		}
		raw, err := llm.ExtractJSON(reply)
		if err != nil {
			logger.Warn("reply has no json", "attempt", i, "reply", reply)
			continue
		}
		last, err = llm.ValidateInvoices(raw, logger)
		if err != nil {
			logger.Warn("reply rejected", "attempt", i, "error", err)
			continue
		}
		logger.Info("extraction OK", "attempt", i, "invoices", len(last), "duration_ms", time.Since(start).Milliseconds())
	}
	out, _ := json.MarshalIndent(last, "", "  ")
	fmt.Println(string(out))
}
