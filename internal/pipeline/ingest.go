package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/invoice-reconciler/internal/parse"
	"github.com/joseph-ayodele/invoice-reconciler/internal/repository"
)

// Ingester extracts a single inbox file and stores its text.
type Ingester struct {
	Logger  *slog.Logger
	Extract *ExtractStage
	Docs    repository.DocumentRepository
}

func NewIngester(tx parse.TextExtractor, docs repository.DocumentRepository, obs Observer, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{Logger: logger, Extract: NewExtractStage(tx, 1, obs, logger), Docs: docs}
}

// IngestFile writes the text of path to <base>.txt in the same directory
// and records it when a document repository is configured. It returns the
// text file path.
func (i *Ingester) IngestFile(ctx context.Context, path string) (string, error) {
	start := time.Now()
	ex, err := i.Extract.ProcessFile(ctx, path)
	if err != nil {
		return "", fmt.Errorf("ingest %s: %w", filepath.Base(path), err)
	}
	txt := filepath.Join(filepath.Dir(path), baseName(path)+".txt")
	if err := os.WriteFile(txt, []byte(ex.Result.Text), 0o644); err != nil {
		return "", fmt.Errorf("write text: %w", err)
	}
	if i.Docs != nil {
		if _, err := i.Docs.Record(ctx, path, ex.Result.Method, ex.Result.Text, time.Since(start)); err != nil {
			return txt, fmt.Errorf("record document: %w", err)
		}
	}
	i.Logger.Info("file ingested", "path", path, "text_path", txt, "method", ex.Result.Method, "elapsed_ms", time.Since(start).Milliseconds())
	return txt, nil
}
