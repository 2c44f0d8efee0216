package ocr

import (
	"log/slog"
	"sync"
)

var (
	globalMu   sync.Mutex
	globalPool *Pool
)

// Global returns the process-wide pool, building and starting it on first
// use. Later calls ignore cfg. Nothing stops it automatically; call
// ShutdownGlobal before exit.
func Global(cfg Config, logger *slog.Logger, opts ...Option) (*Pool, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalPool != nil {
		return globalPool, nil
	}
	p := NewPool(cfg, logger, opts...)
	if err := p.Start(); err != nil {
		return nil, err
	}
	globalPool = p
	return p, nil
}

// ShutdownGlobal stops and forgets the process-wide pool.
func ShutdownGlobal() {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalPool != nil {
		globalPool.Shutdown()
		globalPool = nil
	}
}
