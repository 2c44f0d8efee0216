package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/repository"
)

type fakeDocs struct {
	recorded []string
}

func (f *fakeDocs) Record(_ context.Context, path string, method constants.Method, text string, _ time.Duration) (*repository.Document, error) {
	f.recorded = append(f.recorded, path+"|"+string(method)+"|"+text)
	return &repository.Document{ID: uuid.New(), Path: path}, nil
}

func (f *fakeDocs) Latest(context.Context, string) (*repository.Document, error) { return nil, nil }
func (f *fakeDocs) List(context.Context, int) ([]repository.Document, error)     { return nil, nil }

func TestIngestFileWritesTextAndRecords(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "счет 12.pdf")
	tx := &fakeExtractor{texts: map[string]string{"счет 12.pdf": "Итого 100"}}
	docs := &fakeDocs{}
	ing := NewIngester(tx, docs, nil, quietLogger())

	txt, err := ing.IngestFile(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "счет 12.txt"), txt)
	data, err := os.ReadFile(txt)
	require.NoError(t, err)
	assert.Equal(t, "Итого 100", string(data))
	assert.Equal(t, []string{src + "|pdf-text|Итого 100"}, docs.recorded)
}

func TestIngestFileFailure(t *testing.T) {
	dir := t.TempDir()
	tx := &fakeExtractor{errs: map[string]error{"bad.pdf": errors.New("corrupt")}}
	docs := &fakeDocs{}
	ing := NewIngester(tx, docs, nil, quietLogger())

	_, err := ing.IngestFile(context.Background(), filepath.Join(dir, "bad.pdf"))
	require.Error(t, err)
	assert.Empty(t, docs.recorded)
	assert.NoFileExists(t, filepath.Join(dir, "bad.txt"))
}
