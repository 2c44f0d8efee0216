package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ocr"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pipeline"
	"github.com/joseph-ayodele/invoice-reconciler/internal/report"
	"github.com/joseph-ayodele/invoice-reconciler/internal/repository"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// StatsSource reports OCR pool state.
type StatsSource interface {
	Stats() ocr.Stats
}

// Runner executes a processing scenario.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// HealthChecker pings a backing store.
type HealthChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// Deps are the collaborators of the HTTP API. Only Renderer is required;
// routes whose collaborator is nil answer 503.
type Deps struct {
	Renderer *report.Renderer
	Pool     StatsSource
	Runner   Runner
	Runs     repository.RunRepository
	DB       HealthChecker
	Metrics  http.Handler
	Logger   *slog.Logger
}

// NewRouter builds the gin engine.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	h := &handlers{deps: d, cmp: comparer{renderer: d.Renderer, logger: d.Logger}}

	r := gin.New()
	r.Use(gin.Recovery(), h.requestLog)
	r.GET("/healthz", h.health)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}
	v1 := r.Group("/v1")
	v1.GET("/ocr/stats", h.ocrStats)
	v1.POST("/compare", h.compare)
	v1.POST("/runs", h.startRun)
	v1.GET("/runs", h.listRuns)
	v1.GET("/runs/:id", h.getRun)
	return r
}

type handlers struct {
	deps Deps
	cmp  comparer
}

func (h *handlers) requestLog(c *gin.Context) {
	start := time.Now()
	reqID := c.GetHeader("X-Request-ID")
	if reqID == "" {
		reqID = uuid.NewString()
	}
	c.Header("X-Request-ID", reqID)
	c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), reqID))
	c.Next()
	h.deps.Logger.Info("http.request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"request_id", reqID,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

func (h *handlers) health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if h.deps.DB != nil {
		if err := h.deps.DB.HealthCheck(c.Request.Context(), 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		body["database"] = "ok"
	}
	if h.deps.Pool != nil {
		body["ocr_pool"] = h.deps.Pool.Stats().Active
	}
	c.JSON(http.StatusOK, body)
}

func (h *handlers) ocrStats(c *gin.Context) {
	if h.deps.Pool == nil {
		abort(c, http.StatusServiceUnavailable, "ocr pool not configured")
		return
	}
	c.JSON(http.StatusOK, h.deps.Pool.Stats())
}

func (h *handlers) compare(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	res, err := h.cmp.compare(req)
	if errors.Is(err, errNoDocuments) {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.deps.Logger.Error("comparison failed", "error", err)
		abort(c, http.StatusInternalServerError, "comparison failed")
		return
	}

	switch c.DefaultQuery("format", "json") {
	case "json":
		c.JSON(http.StatusOK, res)
	case "markdown":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(res.Report))
	case "xlsx":
		book, err := report.ExportComparisonXLSX(res.AppName, res.InvName, res.Result, h.deps.Logger)
		if err != nil {
			h.deps.Logger.Error("xlsx export failed", "error", err)
			abort(c, http.StatusInternalServerError, "xlsx export failed")
			return
		}
		c.Header("Content-Disposition", `attachment; filename="comparison.xlsx"`)
		c.Data(http.StatusOK, xlsxContentType, book)
	default:
		abort(c, http.StatusBadRequest, "format must be json, markdown or xlsx")
	}
}

func (h *handlers) startRun(c *gin.Context) {
	if h.deps.Runner == nil {
		abort(c, http.StatusServiceUnavailable, "pipeline not configured")
		return
	}
	var req pipeline.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	v := common.NewValidator().
		Field("work_dir", req.WorkDir, common.Required).
		Field("model", req.Model, common.MaxLength(200))
	if v.HasErrors() {
		abort(c, http.StatusBadRequest, v.ErrorMessage())
		return
	}
	res, err := h.deps.Runner.Run(c.Request.Context(), req)
	switch {
	case errors.Is(err, pipeline.ErrInvalidSelection):
		abort(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, pipeline.ErrNoResults):
		c.JSON(http.StatusUnprocessableEntity, res)
	case err != nil:
		h.deps.Logger.Error("run failed", "error", err)
		if res != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "run_id": res.RunID})
			return
		}
		abort(c, http.StatusInternalServerError, err.Error())
	default:
		c.JSON(http.StatusOK, res)
	}
}

func (h *handlers) listRuns(c *gin.Context) {
	if h.deps.Runs == nil {
		abort(c, http.StatusServiceUnavailable, "database not configured")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		abort(c, http.StatusBadRequest, "limit must be an integer")
		return
	}
	if verr := common.Positive("limit", limit); verr != nil {
		abort(c, http.StatusBadRequest, verr.Error())
		return
	}
	runs, err := h.deps.Runs.List(c.Request.Context(), limit)
	if err != nil {
		h.deps.Logger.Error("list runs failed", "error", err)
		abort(c, http.StatusInternalServerError, "list runs failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (h *handlers) getRun(c *gin.Context) {
	if h.deps.Runs == nil {
		abort(c, http.StatusServiceUnavailable, "database not configured")
		return
	}
	if verr := common.UUID("id", c.Param("id")); verr != nil {
		abort(c, http.StatusBadRequest, verr.Error())
		return
	}
	id := uuid.MustParse(c.Param("id"))
	run, err := h.deps.Runs.Get(c.Request.Context(), id)
	if errors.Is(err, common.ErrNotFound) {
		abort(c, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.deps.Logger.Error("get run failed", "run_id", id, "error", err)
		abort(c, http.StatusInternalServerError, "get run failed")
		return
	}
	c.JSON(http.StatusOK, run)
}
