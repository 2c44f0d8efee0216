// Package pipeline runs a processing scenario over a project folder: text
// extraction, one multi-document LLM request, enrichment, comparison and
// saving of the produced files.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/artifacts"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/parse"
	"github.com/joseph-ayodele/invoice-reconciler/internal/project"
	"github.com/joseph-ayodele/invoice-reconciler/internal/reconcile"
	"github.com/joseph-ayodele/invoice-reconciler/internal/report"
	"github.com/joseph-ayodele/invoice-reconciler/internal/repository"
)

var (
	// ErrInvalidSelection means the selected files match no scenario.
	ErrInvalidSelection = errors.New("select an application with exactly one invoice, or invoices only")
	// ErrNoResults means nothing usable came out of extraction or the LLM.
	ErrNoResults = errors.New("no invoices extracted")

	errEmptyText = errors.New("empty text")
)

// Request selects the files of one run.
type Request struct {
	WorkDir     string   `json:"work_dir"`
	Application string   `json:"application,omitempty"`
	Invoices    []string `json:"invoices"`
	Model       string   `json:"model,omitempty"`
}

// Result is the outcome of a run.
type Result struct {
	RunID       uuid.UUID           `json:"run_id"`
	Scenario    constants.Scenario  `json:"scenario"`
	Status      constants.RunStatus `json:"status"`
	Files       []string            `json:"files"`
	Extracted   []string            `json:"extracted"`
	Records     []project.Record    `json:"records"`
	Comparison  *reconcile.Result   `json:"comparison,omitempty"`
	Report      string              `json:"report,omitempty"`
	OutputFiles []string            `json:"output_files"`
	Elapsed     time.Duration       `json:"elapsed"`
}

// Processor coordinates extraction, the LLM stage and result saving.
type Processor struct {
	Logger   *slog.Logger
	Extract  *ExtractStage
	LLM      *LLMStage
	Renderer *report.Renderer
	Repl     *project.Replacements
	Runs     repository.RunRepository

	model    string
	parallel int
	observer Observer
	now      func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

func WithRenderer(r *report.Renderer) Option          { return func(p *Processor) { p.Renderer = r } }
func WithReplacements(r *project.Replacements) Option { return func(p *Processor) { p.Repl = r } }
func WithRunRepository(r repository.RunRepository) Option {
	return func(p *Processor) { p.Runs = r }
}
func WithObserver(o Observer) Option        { return func(p *Processor) { p.observer = o } }
func WithParallel(n int) Option             { return func(p *Processor) { p.parallel = n } }
func WithModel(m string) Option             { return func(p *Processor) { p.model = m } }
func WithClock(now func() time.Time) Option { return func(p *Processor) { p.now = now } }

func NewProcessor(tx parse.TextExtractor, q Querier, logger *slog.Logger, opts ...Option) (*Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{Logger: logger, parallel: 4, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	if p.observer == nil {
		p.observer = nopObserver{}
	}
	if p.Renderer == nil {
		r, err := report.NewRenderer("", logger)
		if err != nil {
			return nil, err
		}
		p.Renderer = r
	}
	p.Extract = NewExtractStage(tx, p.parallel, p.observer, logger)
	p.LLM = NewLLMStage(q, logger)
	return p, nil
}

// SelectScenario picks the scenario for a file selection.
func SelectScenario(application string, invoices []string) (constants.Scenario, error) {
	switch {
	case application != "" && len(invoices) == 1:
		return constants.ScenarioCompare, nil
	case application == "" && len(invoices) > 0:
		return constants.ScenarioBatch, nil
	default:
		return "", ErrInvalidSelection
	}
}

// ProcessFilesParallel extracts the text of every file; see ExtractStage.
func (p *Processor) ProcessFilesParallel(ctx context.Context, paths []string) []Extracted {
	return p.Extract.ProcessFilesParallel(ctx, paths)
}

// Run executes one scenario and saves its outputs into req.WorkDir. A run
// with nothing extracted returns the partial result and ErrNoResults.
func (p *Processor) Run(ctx context.Context, req Request) (*Result, error) {
	scenario, err := SelectScenario(req.Application, req.Invoices)
	if err != nil {
		return nil, err
	}
	files := req.Invoices
	if scenario == constants.ScenarioCompare {
		files = []string{req.Application, req.Invoices[0]}
	}
	model := req.Model
	if model == "" {
		model = p.model
	}

	start := p.now()
	res := &Result{Scenario: scenario, Status: constants.RunStatusRunning, Files: files, Extracted: []string{}, OutputFiles: []string{}}
	if p.Runs != nil {
		run, err := p.Runs.Start(ctx, req.WorkDir, scenario, files)
		if err != nil {
			return nil, fmt.Errorf("start run: %w", err)
		}
		res.RunID = run.ID
	} else {
		res.RunID = uuid.New()
	}
	ctx = common.WithRunID(ctx, res.RunID.String())
	log := p.Logger.With("run_id", res.RunID, "scenario", scenario)
	log.Info("run started", "files", len(files), "work_dir", req.WorkDir)

	runErr := p.run(ctx, log, req.WorkDir, model, res)
	res.Elapsed = p.now().Sub(start)
	switch {
	case runErr == nil:
		res.Status = constants.RunStatusOK
	case errors.Is(runErr, ErrNoResults):
		res.Status = constants.RunStatusNoData
	default:
		res.Status = constants.RunStatusFailed
	}
	p.finish(ctx, log, res, runErr)
	return res, runErr
}

func (p *Processor) run(ctx context.Context, log *slog.Logger, workDir, model string, res *Result) error {
	extracted := p.Extract.ProcessFilesParallel(ctx, res.Files)
	for _, ex := range extracted {
		res.Extracted = append(res.Extracted, ex.Name)
	}
	if len(extracted) == 0 {
		log.Warn("no file produced text")
		return ErrNoResults
	}

	invs, err := p.LLM.Run(ctx, extracted, model)
	if err != nil {
		return err
	}
	if len(invs) == 0 {
		log.Warn("llm returned no invoices")
		return ErrNoResults
	}
	res.Records = project.Enrich(invs, workDir, p.Repl, log)

	var appName, invName string
	if res.Scenario == constants.ScenarioCompare {
		if len(invs) < 2 || len(extracted) < 2 {
			log.Warn("comparison skipped", "invoices", len(invs), "extracted", len(extracted))
		} else {
			cmp := reconcile.CompareDocuments(invs[0].Document(), invs[1].Document())
			res.Comparison = &cmp
			appName, invName = extracted[0].Name, extracted[1].Name
			md, err := p.Renderer.RenderComparison(appName, invName, cmp)
			if err != nil {
				return fmt.Errorf("render comparison: %w", err)
			}
			res.Report = md
			log.Info("comparison done",
				"matches", len(cmp.Matches),
				"only_in_app", len(cmp.OnlyInApp),
				"only_in_inv", len(cmp.OnlyInInv),
			)
		}
	}

	reg := artifacts.New(workDir)
	out, err := p.SaveResults(workDir, res.Extracted, res.Records, res.Comparison, res.Report, appName, invName, reg)
	res.OutputFiles = out
	if err != nil {
		return err
	}
	return nil
}

func (p *Processor) finish(ctx context.Context, log *slog.Logger, res *Result, runErr error) {
	p.observer.RunFinished(res.Scenario, res.Status, res.Elapsed)
	attrs := []any{"status", res.Status, "invoices", len(res.Records), "outputs", len(res.OutputFiles), "elapsed_ms", res.Elapsed.Milliseconds()}
	if runErr != nil && res.Status == constants.RunStatusFailed {
		log.Error("run failed", append(attrs, "error", runErr)...)
	} else {
		log.Info("run finished", attrs...)
	}
	if p.Runs == nil {
		return
	}
	stats := repository.RunStats{Status: res.Status, Invoices: len(res.Records), Elapsed: res.Elapsed}
	if res.Comparison != nil {
		stats.Matches = len(res.Comparison.Matches)
		stats.OnlyInApp = len(res.Comparison.OnlyInApp)
		stats.OnlyInInv = len(res.Comparison.OnlyInInv)
	}
	if runErr != nil {
		stats.Error = runErr.Error()
	}
	// The run row is finished even when the caller's context is gone.
	if err := p.Runs.Finish(context.WithoutCancel(ctx), res.RunID, stats); err != nil {
		log.Error("finish run record failed", "error", err)
	}
}

func baseName(path string) string {
	name := filepath.Base(path)
	return name[:len(name)-len(filepath.Ext(name))]
}
