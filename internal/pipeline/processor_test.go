package pipeline

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

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/parse"
	"github.com/joseph-ayodele/invoice-reconciler/internal/repository"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeExtractor struct {
	texts map[string]string
	errs  map[string]error
	delay map[string]time.Duration
}

func (f *fakeExtractor) Extract(ctx context.Context, path string) (parse.TextExtractionResult, error) {
	if d := f.delay[filepath.Base(path)]; d > 0 {
		time.Sleep(d)
	}
	res := parse.TextExtractionResult{Path: path, SourceType: constants.FormatOf(path), Method: constants.MethodPDFText}
	if err := f.errs[filepath.Base(path)]; err != nil {
		return res, err
	}
	res.Text = f.texts[filepath.Base(path)]
	return res, nil
}

type fakeQuerier struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
	models  []string
}

func (f *fakeQuerier) Query(_ context.Context, prompt, model string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.models = append(f.models, model)
	return f.reply, f.err
}

type fakeRuns struct {
	started  []constants.Scenario
	finished []repository.RunStats
	id       uuid.UUID
}

func (f *fakeRuns) Start(_ context.Context, workDir string, scenario constants.Scenario, files []string) (*repository.Run, error) {
	f.id = uuid.New()
	f.started = append(f.started, scenario)
	return &repository.Run{ID: f.id, WorkDir: workDir, Scenario: scenario, Files: files}, nil
}

func (f *fakeRuns) Finish(_ context.Context, id uuid.UUID, stats repository.RunStats) error {
	f.finished = append(f.finished, stats)
	return nil
}

func (f *fakeRuns) Get(context.Context, uuid.UUID) (*repository.Run, error) { return nil, nil }
func (f *fakeRuns) List(context.Context, int) ([]repository.Run, error)     { return nil, nil }

type countingObserver struct {
	mu    sync.Mutex
	files int
	runs  []constants.RunStatus
}

func (o *countingObserver) FileExtracted(constants.Format, constants.Method, time.Duration, error) {
	o.mu.Lock()
	o.files++
	o.mu.Unlock()
}

func (o *countingObserver) RunFinished(_ constants.Scenario, status constants.RunStatus, _ time.Duration) {
	o.mu.Lock()
	o.runs = append(o.runs, status)
	o.mu.Unlock()
}

const compareReply = "Вот результат:\n```json\n" + `[
  {"number": "З-1", "supplier": {"name": "ООО Ромашка"},
   "items": [
     {"article": "A-1", "quantity": "2", "unit": "шт"},
     {"article": "B-2", "quantity": 1, "unit": "м"}
   ],
   "total": {"amount": "100.50"}},
  {"number": "С-7", "supplier": {"name": "ООО Ромашка"},
   "items": [
     {"article": "a-1", "quantity": "2,0", "unit": "шт"},
     {"article": "C-3", "quantity": "5", "unit": "кг"}
   ],
   "total": {"amount": 200}}
]` + "\n```"

func TestSelectScenario(t *testing.T) {
	s, err := SelectScenario("app.pdf", []string{"inv.pdf"})
	require.NoError(t, err)
	assert.Equal(t, constants.ScenarioCompare, s)

	s, err = SelectScenario("", []string{"a.pdf", "b.pdf"})
	require.NoError(t, err)
	assert.Equal(t, constants.ScenarioBatch, s)

	_, err = SelectScenario("app.pdf", []string{"a.pdf", "b.pdf"})
	assert.ErrorIs(t, err, ErrInvalidSelection)
	_, err = SelectScenario("app.pdf", nil)
	assert.ErrorIs(t, err, ErrInvalidSelection)
	_, err = SelectScenario("", nil)
	assert.ErrorIs(t, err, ErrInvalidSelection)
}

func TestProcessFilesParallelKeepsOrderAndDropsFailures(t *testing.T) {
	tx := &fakeExtractor{
		texts: map[string]string{"a.pdf": "alpha", "c.pdf": "gamma", "d.pdf": ""},
		errs:  map[string]error{"b.pdf": errors.New("broken")},
		delay: map[string]time.Duration{"a.pdf": 30 * time.Millisecond},
	}
	obs := &countingObserver{}
	p, err := NewProcessor(tx, &fakeQuerier{}, quietLogger(), WithParallel(3), WithObserver(obs))
	require.NoError(t, err)

	out := p.ProcessFilesParallel(context.Background(), []string{"/x/a.pdf", "/x/b.pdf", "/x/c.pdf", "/x/d.pdf"})
	require.Len(t, out, 2)
	assert.Equal(t, "a.pdf", out[0].Name)
	assert.Equal(t, "alpha", out[0].Result.Text)
	assert.Equal(t, "c.pdf", out[1].Name)
	assert.Equal(t, 4, obs.files)

	assert.Empty(t, p.ProcessFilesParallel(context.Background(), nil))
}

func TestRunCompareScenario(t *testing.T) {
	dir := t.TempDir()
	tx := &fakeExtractor{texts: map[string]string{"заявка.pdf": "текст заявки", "счет.pdf": "текст счета"}}
	q := &fakeQuerier{reply: compareReply}
	runs := &fakeRuns{}
	obs := &countingObserver{}
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	p, err := NewProcessor(tx, q, quietLogger(),
		WithRunRepository(runs),
		WithObserver(obs),
		WithModel("default/model"),
		WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	res, err := p.Run(context.Background(), Request{
		WorkDir:     dir,
		Application: filepath.Join(dir, "заявка.pdf"),
		Invoices:    []string{filepath.Join(dir, "счет.pdf")},
	})
	require.NoError(t, err)
	assert.Equal(t, constants.ScenarioCompare, res.Scenario)
	assert.Equal(t, constants.RunStatusOK, res.Status)
	assert.Equal(t, runs.id, res.RunID)
	assert.Equal(t, []string{"заявка.pdf", "счет.pdf"}, res.Extracted)
	require.Len(t, res.Records, 2)

	require.Len(t, q.prompts, 1)
	assert.Contains(t, q.prompts[0], "текст заявки")
	assert.Contains(t, q.prompts[0], "текст счета")
	assert.Equal(t, []string{"default/model"}, q.models)

	require.NotNil(t, res.Comparison)
	require.Len(t, res.Comparison.Matches, 1)
	assert.Equal(t, "A-1", res.Comparison.Matches[0].Article)
	assert.True(t, res.Comparison.Matches[0].SameQty)
	require.Len(t, res.Comparison.OnlyInApp, 1)
	assert.Equal(t, "B-2", res.Comparison.OnlyInApp[0].Article)
	require.Len(t, res.Comparison.OnlyInInv, 1)
	assert.Equal(t, "C-3", res.Comparison.OnlyInInv[0].Article)
	assert.Contains(t, res.Report, "A-1")

	for _, name := range []string{
		"заявка_extracted.json", "счет_extracted.json",
		reportMDName, reportHTMLName, reportXLSXName, cardName,
	} {
		assert.FileExists(t, filepath.Join(dir, name))
		assert.Contains(t, res.OutputFiles, filepath.Join(dir, name))
	}
	card, err := os.ReadFile(filepath.Join(dir, cardName))
	require.NoError(t, err)
	assert.Contains(t, string(card), "КАРТОЧКА ИЗДЕЛИЯ")
	assert.Contains(t, string(card), "01.03.2025 10:00")

	require.Len(t, runs.finished, 1)
	assert.Equal(t, constants.RunStatusOK, runs.finished[0].Status)
	assert.Equal(t, 2, runs.finished[0].Invoices)
	assert.Equal(t, 1, runs.finished[0].Matches)
	assert.Equal(t, []constants.RunStatus{constants.RunStatusOK}, obs.runs)
}

func TestRunBatchWritesCombinedJSONWhenCountsDiffer(t *testing.T) {
	dir := t.TempDir()
	tx := &fakeExtractor{texts: map[string]string{"a.pdf": "first", "b.pdf": "second"}}
	q := &fakeQuerier{reply: `{"number": "1", "items": [], "total": {"amount": 10}}`}
	p, err := NewProcessor(tx, q, quietLogger())
	require.NoError(t, err)

	res, err := p.Run(context.Background(), Request{
		WorkDir:  dir,
		Invoices: []string{filepath.Join(dir, "a.pdf"), filepath.Join(dir, "b.pdf")},
		Model:    "explicit/model",
	})
	require.NoError(t, err)
	assert.Equal(t, constants.ScenarioBatch, res.Scenario)
	assert.Nil(t, res.Comparison)
	assert.Equal(t, []string{"explicit/model"}, q.models)
	assert.FileExists(t, filepath.Join(dir, batchJSONName))
	assert.FileExists(t, filepath.Join(dir, cardName))
	assert.NoFileExists(t, filepath.Join(dir, reportMDName))
	assert.NotEqual(t, uuid.Nil, res.RunID)
}

func TestRunWithoutUsableReplyIsNoData(t *testing.T) {
	dir := t.TempDir()
	tx := &fakeExtractor{texts: map[string]string{"a.pdf": "first"}}
	runs := &fakeRuns{}
	p, err := NewProcessor(tx, &fakeQuerier{reply: "не могу помочь"}, quietLogger(), WithRunRepository(runs))
	require.NoError(t, err)

	res, err := p.Run(context.Background(), Request{WorkDir: dir, Invoices: []string{filepath.Join(dir, "a.pdf")}})
	require.ErrorIs(t, err, ErrNoResults)
	require.NotNil(t, res)
	assert.Equal(t, constants.RunStatusNoData, res.Status)
	assert.Empty(t, res.OutputFiles)
	require.Len(t, runs.finished, 1)
	assert.Equal(t, constants.RunStatusNoData, runs.finished[0].Status)
}

func TestRunNothingExtracted(t *testing.T) {
	tx := &fakeExtractor{errs: map[string]error{"a.pdf": errors.New("boom")}}
	q := &fakeQuerier{}
	p, err := NewProcessor(tx, q, quietLogger())
	require.NoError(t, err)

	res, err := p.Run(context.Background(), Request{WorkDir: t.TempDir(), Invoices: []string{"/in/a.pdf"}})
	require.ErrorIs(t, err, ErrNoResults)
	assert.Equal(t, constants.RunStatusNoData, res.Status)
	assert.Empty(t, q.prompts)
}

func TestRunLLMFailure(t *testing.T) {
	tx := &fakeExtractor{texts: map[string]string{"a.pdf": "text"}}
	runs := &fakeRuns{}
	boom := errors.New("upstream down")
	p, err := NewProcessor(tx, &fakeQuerier{err: boom}, quietLogger(), WithRunRepository(runs))
	require.NoError(t, err)

	res, err := p.Run(context.Background(), Request{WorkDir: t.TempDir(), Invoices: []string{"/in/a.pdf"}})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, constants.RunStatusFailed, res.Status)
	require.Len(t, runs.finished, 1)
	assert.Contains(t, runs.finished[0].Error, "upstream down")
}

func TestRunInvalidSelection(t *testing.T) {
	runs := &fakeRuns{}
	p, err := NewProcessor(&fakeExtractor{}, &fakeQuerier{}, quietLogger(), WithRunRepository(runs))
	require.NoError(t, err)

	_, err = p.Run(context.Background(), Request{WorkDir: t.TempDir(), Application: "app.pdf"})
	require.ErrorIs(t, err, ErrInvalidSelection)
	assert.Empty(t, runs.started)
}
