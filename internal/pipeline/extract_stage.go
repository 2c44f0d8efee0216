package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/invoice-reconciler/internal/parse"
)

// Extracted is the text of one input file.
type Extracted struct {
	Name   string
	Path   string
	Result parse.TextExtractionResult
}

// ExtractStage turns files into cleaned text.
type ExtractStage struct {
	TextExtractor parse.TextExtractor
	Parallel      int
	Observer      Observer
	Logger        *slog.Logger
}

func NewExtractStage(tx parse.TextExtractor, parallel int, obs Observer, logger *slog.Logger) *ExtractStage {
	if logger == nil {
		logger = slog.Default()
	}
	if parallel <= 0 {
		parallel = 4
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &ExtractStage{TextExtractor: tx, Parallel: parallel, Observer: obs, Logger: logger}
}

// ProcessFile extracts one file. Empty text counts as a failure.
func (s *ExtractStage) ProcessFile(ctx context.Context, path string) (Extracted, error) {
	start := time.Now()
	res, err := s.TextExtractor.Extract(ctx, path)
	s.Observer.FileExtracted(res.SourceType, res.Method, time.Since(start), err)
	if err != nil {
		s.Logger.Error("file extraction failed", "path", path, "error", err)
		return Extracted{}, err
	}
	if res.Text == "" {
		s.Logger.Warn("file produced no text", "path", path, "method", res.Method)
		return Extracted{}, errEmptyText
	}
	s.Logger.Debug("file extracted",
		"path", path,
		"method", res.Method,
		"chars", len([]rune(res.Text)),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Extracted{Name: filepath.Base(path), Path: path, Result: res}, nil
}

// ProcessFilesParallel extracts files with at most Parallel running at once.
// Failed files are logged and omitted; the rest keep their input order.
func (s *ExtractStage) ProcessFilesParallel(ctx context.Context, paths []string) []Extracted {
	if len(paths) == 0 {
		return []Extracted{}
	}
	start := time.Now()
	slots := make([]*Extracted, len(paths))

	var g errgroup.Group
	g.SetLimit(min(s.Parallel, len(paths)))
	for i, path := range paths {
		g.Go(func() error {
			ex, err := s.ProcessFile(ctx, path)
			if err == nil {
				slots[i] = &ex
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Extracted, 0, len(paths))
	for _, ex := range slots {
		if ex != nil {
			out = append(out, *ex)
		}
	}
	s.Logger.Info("parallel extraction finished",
		"files", len(paths),
		"extracted", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out
}
