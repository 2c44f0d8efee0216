package ocr

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/invoice-reconciler/internal/retry"
)

// ErrPoolNotRunning is returned by batch calls made before Start or after
// Shutdown.
var ErrPoolNotRunning = errors.New("ocr pool is not running; call Start first")

const queueSize = 64

// Observer receives per-image and per-batch timings. Implementations must be
// safe for concurrent use.
type Observer interface {
	ImageProcessed(worker int, d time.Duration, err error)
	BatchProcessed(images, fragments int, d time.Duration)
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Active           bool  `json:"active"`
	MaxWorkers       int   `json:"max_workers"`
	WorkersCount     int   `json:"workers_count"`
	TotalProcessed   int64 `json:"total_processed"`
	UsePreprocessing bool  `json:"use_preprocessing"`
}

type task struct {
	ctx     context.Context
	index   int
	img     image.Image
	results chan<- taskResult
}

type taskResult struct {
	index  int
	worker int
	frags  []Fragment
	err    error
}

// Pool runs OCR over batches of page images on a fixed set of workers.
// Image i of a batch always goes to worker i mod Workers.
type Pool struct {
	cfg      Config
	factory  EngineFactory
	policy   retry.Policy
	observer Observer
	logger   *slog.Logger

	mu      sync.RWMutex
	running bool
	workers []*Worker
	queues  []chan task
	wg      sync.WaitGroup
}

type Option func(*Pool)

// WithEngineFactory replaces the engine selected by Config.Engine.
func WithEngineFactory(f EngineFactory) Option {
	return func(p *Pool) {
		if f != nil {
			p.factory = f
		}
	}
}

// WithRetryPolicy overrides the per-image retry policy.
func WithRetryPolicy(rp retry.Policy) Option {
	return func(p *Pool) {
		p.policy = rp
	}
}

func WithObserver(o Observer) Option {
	return func(p *Pool) {
		p.observer = o
	}
}

func NewPool(cfg Config, logger *slog.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		cfg:    cfg.withDefaults(),
		policy: retry.OCR(),
		logger: logger,
	}
	for _, o := range opts {
		o(p)
	}
	p.logger.Info("ocr pool configured", "max_workers", p.cfg.Workers, "use_preprocessing", p.cfg.UsePreprocessing)
	return p
}

// Start spawns the workers. Calling Start on a running pool is a no-op.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	if p.factory == nil {
		f, err := NewEngineFactory(p.cfg, p.logger)
		if err != nil {
			return err
		}
		p.factory = f
	}

	p.workers = make([]*Worker, p.cfg.Workers)
	p.queues = make([]chan task, p.cfg.Workers)
	for i := range p.workers {
		w := NewWorker(i, p.cfg, p.factory, p.policy, p.logger)
		q := make(chan task, queueSize)
		p.workers[i] = w
		p.queues[i] = q
		p.wg.Add(1)
		go p.loop(w, q)
	}
	p.running = true
	p.logger.Info("ocr pool started", "workers", p.cfg.Workers)
	return nil
}

func (p *Pool) loop(w *Worker, q <-chan task) {
	defer p.wg.Done()
	for t := range q {
		start := time.Now()
		frags, err := w.ProcessImage(t.ctx, t.img, p.cfg.UsePreprocessing)
		if p.observer != nil {
			p.observer.ImageProcessed(w.ID(), time.Since(start), err)
		}
		t.results <- taskResult{index: t.index, worker: w.ID(), frags: frags, err: err}
	}
}

// Shutdown drains in-flight batches, stops the workers and closes their
// engines. It is safe to call more than once.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	for _, q := range p.queues {
		close(q)
	}
	p.wg.Wait()

	var total int64
	for _, w := range p.workers {
		total += w.Processed()
		if err := w.Close(); err != nil {
			p.logger.Warn("failed to close ocr engine", "worker_id", w.ID(), "error", err)
		}
	}
	p.workers = nil
	p.queues = nil
	p.running = false
	p.logger.Info("ocr pool stopped", "total_processed", total)
}

// ProcessImages recognizes every image and returns the text of all
// fragments, concatenated in completion order.
func (p *Pool) ProcessImages(ctx context.Context, images []image.Image) ([]string, error) {
	frags, err := p.ProcessImagesDetailed(ctx, images)
	if err != nil {
		return nil, err
	}
	return texts(frags), nil
}

// ProcessImagesDetailed is ProcessImages keeping boxes and confidence.
// An image that fails after retries is logged and contributes nothing.
// An empty batch returns an empty result without checking pool state.
func (p *Pool) ProcessImagesDetailed(ctx context.Context, images []image.Image) ([]Fragment, error) {
	if len(images) == 0 {
		return []Fragment{}, nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.running {
		return nil, ErrPoolNotRunning
	}

	start := time.Now()
	results := make(chan taskResult, len(images))
	for i, img := range images {
		p.queues[i%len(p.queues)] <- task{ctx: ctx, index: i, img: img, results: results}
	}

	out := make([]Fragment, 0, len(images))
	var failed int
	for done := 1; done <= len(images); done++ {
		r := <-results
		if r.err != nil {
			failed++
			p.logger.Error("image processing failed", "image", r.index+1, "worker_id", r.worker, "error", r.err)
			continue
		}
		out = append(out, r.frags...)
		p.logger.Debug("image processed", "done", done, "total", len(images), "image", r.index+1)
	}

	elapsed := time.Since(start)
	if p.observer != nil {
		p.observer.BatchProcessed(len(images), len(out), elapsed)
	}
	p.logger.Info("ocr batch complete",
		"images", len(images),
		"failed", failed,
		"fragments", len(out),
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return out, nil
}

// Stats reports the pool state. A stopped pool reports only Active=false.
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.running {
		return Stats{Active: false}
	}
	var total int64
	for _, w := range p.workers {
		total += w.Processed()
	}
	return Stats{
		Active:           true,
		MaxWorkers:       p.cfg.Workers,
		WorkersCount:     len(p.workers),
		TotalProcessed:   total,
		UsePreprocessing: p.cfg.UsePreprocessing,
	}
}
