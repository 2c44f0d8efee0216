package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/llm"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ocr"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pipeline"
)

var (
	_ ocr.Observer      = (*Metrics)(nil)
	_ llm.Observer      = (*Metrics)(nil)
	_ pipeline.Observer = (*Metrics)(nil)
)

func TestDefault(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestCounters(t *testing.T) {
	m := New()
	m.ImageProcessed(1, 200*time.Millisecond, nil)
	m.ImageProcessed(2, 100*time.Millisecond, errors.New("boom"))
	m.BatchProcessed(2, 5, time.Second)
	m.QueryDone("qwen", time.Second, nil)
	m.FileExtracted(constants.PDF, constants.MethodPDFText, time.Second, nil)
	m.RunFinished(constants.ScenarioCompare, constants.RunStatusOK, 3*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ocrImages.WithLabelValues("1", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ocrImages.WithLabelValues("2", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ocrBatches))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ocrFrags))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmQueries.WithLabelValues("qwen", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.files.WithLabelValues("PDF", "pdf-text", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("compare", "OK")))
}

func TestHandlerExposesPoolGauges(t *testing.T) {
	m := New()
	m.WatchPool(func() ocr.Stats { return ocr.Stats{Active: true, WorkersCount: 3, TotalProcessed: 42} })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "reconciler_ocr_pool_workers 3")
	assert.Contains(t, string(body), "reconciler_ocr_pool_processed 42")
}
