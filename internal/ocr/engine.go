package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
)

// Supported engine names for Config.Engine.
const (
	EngineTesseract = "tesseract"
	EngineGosseract = "gosseract"
)

// Fragment is one recognized text block. Box and Confidence are set only
// when the detail level is above zero.
type Fragment struct {
	Text       string          `json:"text"`
	Box        image.Rectangle `json:"box"`
	Confidence float64         `json:"confidence"`
}

// RecognizeOptions mirror the detail and paragraph settings of Config.
type RecognizeOptions struct {
	Detail    int
	Paragraph bool
}

// Engine recognizes text in a single image. An Engine is owned by exactly one
// worker and is never called concurrently.
type Engine interface {
	Recognize(ctx context.Context, img *image.NRGBA, opts RecognizeOptions) ([]Fragment, error)
	Close() error
}

// EngineFactory builds an engine for a language set. It is called lazily,
// once per worker.
type EngineFactory func(langs []string) (Engine, error)

var errUnknownEngine = errors.New("unknown ocr engine")

// NewEngineFactory returns the factory selected by cfg.Engine.
func NewEngineFactory(cfg Config, logger *slog.Logger) (EngineFactory, error) {
	cfg = cfg.withDefaults()
	switch cfg.Engine {
	case EngineTesseract:
		r := NewExecRunner(logger)
		return func(langs []string) (Engine, error) {
			return NewTesseractEngine(cfg.Tesseract, cfg.TessdataDir, langs, r), nil
		}, nil
	case EngineGosseract:
		return func(langs []string) (Engine, error) {
			return NewGosseractEngine(cfg.TessdataDir, langs)
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownEngine, cfg.Engine)
	}
}

func texts(frags []Fragment) []string {
	out := make([]string, 0, len(frags))
	for _, f := range frags {
		out = append(out, f.Text)
	}
	return out
}
