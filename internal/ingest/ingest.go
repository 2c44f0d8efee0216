package ingest

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/invoice-reconciler/internal/async"
)

// Run feeds watcher events into the queue until ctx ends or the watcher
// stops. Enqueue failures are logged and the loop continues.
func Run(ctx context.Context, cfg WatchConfig, q async.Queue) error {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	events, errs, err := StartWatcher(ctx, cfg)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-events:
			if !ok {
				return nil
			}
			if err := q.Enqueue(ctx, async.NewJob(p, false)); err != nil {
				log.Warn("enqueue failed", "path", p, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Warn("watcher reported error", "error", err)
		}
	}
}
