package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-reconciler/internal/llm"
)

// Querier sends a prompt to a language model.
type Querier interface {
	Query(ctx context.Context, prompt, model string) (string, error)
}

// LLMStage sends all extracted texts in one multi-document request and
// validates the reply.
type LLMStage struct {
	Client Querier
	Logger *slog.Logger
}

func NewLLMStage(c Querier, logger *slog.Logger) *LLMStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMStage{Client: c, Logger: logger}
}

// Run returns one invoice per document the model understood. An empty or
// unparsable reply yields no invoices and no error; transport failures are
// returned.
func (s *LLMStage) Run(ctx context.Context, docs []Extracted, model string) ([]llm.Invoice, error) {
	if len(docs) == 0 {
		return []llm.Invoice{}, nil
	}
	texts := make([]llm.DocumentText, 0, len(docs))
	for _, d := range docs {
		texts = append(texts, llm.DocumentText{Filename: d.Name, Text: d.Result.Text})
	}
	prompt, err := llm.BuildMultiInvoicePrompt(texts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	reply, err := s.Client.Query(ctx, prompt, model)
	if err != nil {
		return nil, fmt.Errorf("llm extract: %w", err)
	}
	raw, err := llm.ExtractJSON(reply)
	if errors.Is(err, llm.ErrNoJSON) {
		s.Logger.Warn("llm reply has no json", "reply_chars", len([]rune(reply)))
		return []llm.Invoice{}, nil
	}
	invs, err := llm.ValidateInvoices(raw, s.Logger)
	if err != nil {
		s.Logger.Warn("llm reply rejected", "error", err)
		return []llm.Invoice{}, nil
	}
	s.Logger.Info("llm extraction finished",
		"documents", len(docs),
		"invoices", len(invs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return invs, nil
}
