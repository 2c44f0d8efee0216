package async

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingIngester struct {
	mu    sync.Mutex
	paths []string
	fail  map[string]bool
	block chan struct{}
}

func (r *recordingIngester) IngestFile(_ context.Context, path string) (string, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	if r.fail[path] {
		return "", errors.New("extract failed")
	}
	return path + ".txt", nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestQueueProcessesAndDrains(t *testing.T) {
	ing := &recordingIngester{fail: map[string]bool{"/in/b.pdf": true}}
	q := NewProcessorQueue(ing, quiet(), WithWorkers(2), WithQueueSize(4))

	for _, p := range []string{"/in/a.pdf", "/in/b.pdf", "/in/c.xlsx"} {
		require.NoError(t, q.Enqueue(context.Background(), NewJob(p, true)))
	}
	q.Shutdown(context.Background())

	assert.ElementsMatch(t, []string{"/in/a.pdf", "/in/b.pdf", "/in/c.xlsx"}, ing.paths)
	st := q.Stats()
	assert.Equal(t, int64(3), st.Queued)
	assert.Equal(t, int64(2), st.Processed)
	assert.Equal(t, int64(1), st.Failed)
	assert.Equal(t, 0, st.Pending)
}

func TestQueueSkipsExtractedUnlessForced(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "счет.pdf")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "счет.txt"), []byte("done"), 0o644))

	ing := &recordingIngester{}
	q := NewProcessorQueue(ing, quiet(), WithWorkers(1))
	require.NoError(t, q.Enqueue(context.Background(), NewJob(src, false)))
	require.NoError(t, q.Enqueue(context.Background(), NewJob(src, true)))
	q.Shutdown(context.Background())

	assert.Equal(t, []string{src}, ing.paths)
	assert.Equal(t, int64(1), q.Stats().Skipped)
}

func TestEnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&recordingIngester{}, quiet())
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), NewJob("/in/a.pdf", false))
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestEnqueueBackpressureHonorsContext(t *testing.T) {
	ing := &recordingIngester{block: make(chan struct{})}
	q := NewProcessorQueue(ing, quiet(), WithWorkers(1), WithQueueSize(1))

	// one job held by the worker, one filling the buffer
	require.NoError(t, q.Enqueue(context.Background(), NewJob("/in/1.pdf", true)))
	require.Eventually(t, func() bool { return q.Stats().Pending == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), NewJob("/in/2.pdf", true)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, NewJob("/in/3.pdf", true))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(ing.block)
	q.Shutdown(context.Background())
	assert.Len(t, ing.paths, 2)
}
