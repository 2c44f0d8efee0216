package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ocr"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pipeline"
	"github.com/joseph-ayodele/invoice-reconciler/internal/report"
	"github.com/joseph-ayodele/invoice-reconciler/internal/repository"
)

func init() { gin.SetMode(gin.TestMode) }

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fixedStats struct{}

func (fixedStats) Stats() ocr.Stats {
	return ocr.Stats{Active: true, MaxWorkers: 2, WorkersCount: 2, TotalProcessed: 7, UsePreprocessing: true}
}

type stubRunner struct {
	res *pipeline.Result
	err error
	got pipeline.Request
}

func (s *stubRunner) Run(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	s.got = req
	return s.res, s.err
}

type stubRuns struct {
	runs []repository.Run
}

func (s *stubRuns) Start(context.Context, string, constants.Scenario, []string) (*repository.Run, error) {
	return nil, errors.New("not used")
}
func (s *stubRuns) Finish(context.Context, uuid.UUID, repository.RunStats) error { return nil }
func (s *stubRuns) Get(_ context.Context, id uuid.UUID) (*repository.Run, error) {
	for _, r := range s.runs {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, common.ErrNotFound
}
func (s *stubRuns) List(_ context.Context, limit int) ([]repository.Run, error) {
	return s.runs[:min(limit, len(s.runs))], nil
}

type downDB struct{}

func (downDB) HealthCheck(context.Context, time.Duration) error {
	return errors.New("connection refused")
}

func renderer(t *testing.T) *report.Renderer {
	t.Helper()
	r, err := report.NewRenderer("", quiet())
	require.NoError(t, err)
	return r
}

const compareBody = `{
  "app_name": "заявка.pdf",
  "inv_name": "счет.pdf",
  "application": {"items": [{"article": "A-1", "quantity": "2", "unit": "шт"}, {"article": "B-2", "quantity": 1, "unit": "м"}]},
  "invoice": {"items": [{"article": " a-1 ", "quantity": 2, "unit": "шт"}]}
}`

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndStats(t *testing.T) {
	r := NewRouter(Deps{Renderer: renderer(t), Pool: fixedStats{}, Logger: quiet()})
	rec := do(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(r, http.MethodGet, "/v1/ocr/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st ocr.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, int64(7), st.TotalProcessed)

	r = NewRouter(Deps{Renderer: renderer(t), DB: downDB{}, Logger: quiet()})
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/v1/ocr/stats", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/metrics", "").Code)
}

func TestCompareFormats(t *testing.T) {
	r := NewRouter(Deps{Renderer: renderer(t), Logger: quiet()})

	rec := do(r, http.MethodPost, "/v1/compare", compareBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp CompareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Result.Matches, 1)
	assert.Equal(t, "A-1", resp.Result.Matches[0].Article)
	assert.True(t, resp.Result.Matches[0].SameQty)
	require.Len(t, resp.Result.OnlyInApp, 1)
	assert.Empty(t, resp.Result.OnlyInInv)
	assert.Contains(t, resp.Report, "B-2")

	rec = do(r, http.MethodPost, "/v1/compare?format=markdown", compareBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rec.Body.String(), "A-1")

	rec = do(r, http.MethodPost, "/v1/compare?format=xlsx", compareBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "Совпадения")

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/v1/compare?format=pdf", compareBody).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/v1/compare", `{"application": {"items": []}}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/v1/compare", `{`).Code)
}

func TestRunsEndpoints(t *testing.T) {
	id := uuid.New()
	runner := &stubRunner{res: &pipeline.Result{RunID: id, Scenario: constants.ScenarioBatch, Status: constants.RunStatusOK}}
	runs := &stubRuns{runs: []repository.Run{{ID: id, WorkDir: "/w", Status: constants.RunStatusOK}}}
	r := NewRouter(Deps{Renderer: renderer(t), Runner: runner, Runs: runs, Logger: quiet()})

	rec := do(r, http.MethodPost, "/v1/runs", `{"work_dir": "/w", "invoices": ["/w/a.pdf"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"/w/a.pdf"}, runner.got.Invoices)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/v1/runs", `{"invoices": ["/w/a.pdf"]}`).Code)

	runner.err = pipeline.ErrInvalidSelection
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/v1/runs", `{"work_dir": "/w"}`).Code)
	runner.err = pipeline.ErrNoResults
	assert.Equal(t, http.StatusUnprocessableEntity, do(r, http.MethodPost, "/v1/runs", `{"work_dir": "/w", "invoices": ["/w/a.pdf"]}`).Code)

	rec = do(r, http.MethodGet, "/v1/runs?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id.String())
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/v1/runs?limit=x", "").Code)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/v1/runs/"+id.String(), "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/v1/runs/"+uuid.NewString(), "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/v1/runs/nope", "").Code)

	bare := NewRouter(Deps{Renderer: renderer(t), Logger: quiet()})
	assert.Equal(t, http.StatusServiceUnavailable, do(bare, http.MethodPost, "/v1/runs", `{"work_dir": "/w"}`).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(bare, http.MethodGet, "/v1/runs", "").Code)
}

func dialBuf(t *testing.T, svc ReconcilerServer) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	Register(s, svc)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })
	return cc
}

func TestGRPCCompareAndStats(t *testing.T) {
	cc := dialBuf(t, NewReconcilerService(renderer(t), fixedStats{}, quiet()))
	client := NewClient(cc)
	ctx := context.Background()

	var req CompareRequest
	require.NoError(t, json.Unmarshal([]byte(compareBody), &req))
	resp, err := client.Compare(ctx, req)
	require.NoError(t, err)
	require.Len(t, resp.Result.Matches, 1)
	assert.True(t, resp.Result.Matches[0].SameQty)
	assert.Equal(t, "заявка.pdf", resp.AppName)

	_, err = client.Compare(ctx, CompareRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	stats, err := client.OCRStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(7), stats["total_processed"])

	hc, err := healthpb.NewHealthClient(cc).Check(ctx, &healthpb.HealthCheckRequest{Service: serviceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, hc.Status)
}

func TestGRPCStatsWithoutPool(t *testing.T) {
	cc := dialBuf(t, NewReconcilerService(renderer(t), nil, quiet()))
	_, err := NewClient(cc).OCRStats(context.Background())
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestGRPCCompareQuantityText(t *testing.T) {
	cc := dialBuf(t, NewReconcilerService(renderer(t), fixedStats{}, quiet()))

	var req CompareRequest
	require.NoError(t, json.Unmarshal([]byte(`{
  "application": {"items": [{"article": "K-7", "quantity": "1.50", "unit": "кг"}]},
  "invoice": {"items": [{"article": "K-7", "quantity": 1.50, "unit": "кг"}]}
}`), &req))

	resp, err := NewClient(cc).Compare(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Result.Matches, 1)
	m := resp.Result.Matches[0]
	assert.Equal(t, "1.50", m.AppQty)
	assert.Equal(t, "1.5", m.InvQty)
	assert.True(t, m.SameQty)
}
