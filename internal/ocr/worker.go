package ocr

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/retry"
)

// Worker owns one lazily built engine. A Worker is not safe for concurrent
// use; the pool feeds each worker from its own queue.
type Worker struct {
	id        int
	cfg       Config
	factory   EngineFactory
	policy    retry.Policy
	logger    *slog.Logger
	engine    Engine
	processed atomic.Int64
}

func NewWorker(id int, cfg Config, factory EngineFactory, policy retry.Policy, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	policy.Logger = logger
	return &Worker{
		id:      id,
		cfg:     cfg.withDefaults(),
		factory: factory,
		policy:  policy,
		logger:  logger.With("worker_id", id),
	}
}

// ID returns the worker's position in the pool.
func (w *Worker) ID() int { return w.id }

// Processed is the number of images recognized successfully.
func (w *Worker) Processed() int64 { return w.processed.Load() }

// ProcessImage recognizes img, retrying per the worker's policy. After the
// last attempt the error is returned as a recognition ParseError.
func (w *Worker) ProcessImage(ctx context.Context, img image.Image, preprocess bool) ([]Fragment, error) {
	start := time.Now()
	frags, err := retry.Do(ctx, w.policy, func(ctx context.Context) ([]Fragment, error) {
		return w.recognize(ctx, img, preprocess)
	})
	if err != nil {
		w.logger.Error("ocr failed after retries", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, common.NewParseError(common.KindRecognition, "", fmt.Sprintf("worker %d", w.id), err)
	}
	w.processed.Add(1)
	w.logger.Debug("worker processed image", "fragments", len(frags), "elapsed_ms", time.Since(start).Milliseconds())
	return frags, nil
}

// recognize turns an engine panic into a permanent error so one bad page
// cannot take the pool down.
func (w *Worker) recognize(ctx context.Context, img image.Image, preprocess bool) (frags []Fragment, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("ocr engine panicked", "panic", r)
			frags, err = nil, retry.Permanent(fmt.Errorf("engine panic: %v", r))
		}
	}()
	if img == nil {
		return nil, retry.Permanent(fmt.Errorf("nil image"))
	}
	var px *image.NRGBA
	if preprocess {
		px = Preprocess(img, w.cfg.Preprocess)
	} else {
		px = toNRGBA(img)
	}
	eng, err := w.getEngine()
	if err != nil {
		return nil, err
	}
	return eng.Recognize(ctx, px, RecognizeOptions{Detail: w.cfg.Detail, Paragraph: w.cfg.Paragraph})
}

func (w *Worker) getEngine() (Engine, error) {
	if w.engine != nil {
		return w.engine, nil
	}
	w.logger.Info("initializing ocr engine", "engine", w.cfg.Engine, "langs", w.cfg.Languages)
	eng, err := w.factory(w.cfg.Languages)
	if err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}
	w.engine = eng
	return eng, nil
}

// Close releases the engine if one was built.
func (w *Worker) Close() error {
	if w.engine == nil {
		return nil
	}
	err := w.engine.Close()
	w.engine = nil
	return err
}
