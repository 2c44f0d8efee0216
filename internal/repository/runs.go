package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
)

// Run is one processing run of a project folder.
type Run struct {
	ID         uuid.UUID           `json:"id"`
	WorkDir    string              `json:"work_dir"`
	Scenario   constants.Scenario  `json:"scenario"`
	Status     constants.RunStatus `json:"status"`
	Files      []string            `json:"files"`
	Invoices   int                 `json:"invoices"`
	Matches    int                 `json:"matches"`
	OnlyInApp  int                 `json:"only_in_app"`
	OnlyInInv  int                 `json:"only_in_inv"`
	Elapsed    time.Duration       `json:"elapsed"`
	Error      string              `json:"error,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}

// RunStats are the counters written when a run ends.
type RunStats struct {
	Status    constants.RunStatus
	Invoices  int
	Matches   int
	OnlyInApp int
	OnlyInInv int
	Elapsed   time.Duration
	Error     string
}

type RunRepository interface {
	Start(ctx context.Context, workDir string, scenario constants.Scenario, files []string) (*Run, error)
	Finish(ctx context.Context, id uuid.UUID, stats RunStats) error
	Get(ctx context.Context, id uuid.UUID) (*Run, error)
	List(ctx context.Context, limit int) ([]Run, error)
}

type runRepo struct {
	db  *DB
	log *slog.Logger
}

func NewRunRepository(db *DB, log *slog.Logger) RunRepository {
	if log == nil {
		log = slog.Default()
	}
	return &runRepo{db: db, log: log}
}

var runColumns = []string{
	"id", "work_dir", "scenario", "status", "files", "invoices", "matches",
	"only_in_app", "only_in_inv", "elapsed_ms", "error", "created_at", "finished_at",
}

func (r *runRepo) Start(ctx context.Context, workDir string, scenario constants.Scenario, files []string) (*Run, error) {
	if files == nil {
		files = []string{}
	}
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return nil, err
	}
	run := &Run{
		ID:        uuid.New(),
		WorkDir:   workDir,
		Scenario:  scenario,
		Status:    constants.RunStatusRunning,
		Files:     files,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	q := r.db.builder().Insert("runs").
		Columns("id", "work_dir", "scenario", "status", "files", "created_at").
		Values(run.ID.String(), workDir, string(scenario), string(run.Status), string(filesJSON), toMillis(run.CreatedAt))
	if _, err := r.db.exec(ctx, q); err != nil {
		r.log.Error("run start failed", "work_dir", workDir, "error", err)
		return nil, err
	}
	r.log.Info("run started", "run_id", run.ID, "scenario", scenario, "files", len(files))
	return run, nil
}

func (r *runRepo) Finish(ctx context.Context, id uuid.UUID, stats RunStats) error {
	if stats.Status == "" {
		stats.Status = constants.RunStatusOK
	}
	q := r.db.builder().Update("runs").
		Set("status", string(stats.Status)).
		Set("invoices", stats.Invoices).
		Set("matches", stats.Matches).
		Set("only_in_app", stats.OnlyInApp).
		Set("only_in_inv", stats.OnlyInInv).
		Set("elapsed_ms", stats.Elapsed.Milliseconds()).
		Set("error", stats.Error).
		Set("finished_at", toMillis(time.Now())).
		Where(entsql.EQ("id", id.String()))
	n, err := r.db.exec(ctx, q)
	if err != nil {
		r.log.Error("run finish failed", "run_id", id, "error", err)
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, common.ErrNotFound)
	}
	r.log.Info("run finished", "run_id", id, "status", stats.Status, "elapsed_ms", stats.Elapsed.Milliseconds())
	return nil
}

func (r *runRepo) Get(ctx context.Context, id uuid.UUID) (*Run, error) {
	q := r.db.builder().Select(runColumns...).
		From(entsql.Table("runs")).
		Where(entsql.EQ("id", id.String()))
	runs, err := r.query(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("run %s: %w", id, common.ErrNotFound)
	}
	return &runs[0], nil
}

// List returns the newest runs first. A non-positive limit means 50.
func (r *runRepo) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.builder().Select(runColumns...).
		From(entsql.Table("runs")).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Limit(limit)
	return r.query(ctx, q)
}

func (r *runRepo) query(ctx context.Context, q *entsql.Selector) ([]Run, error) {
	query, args := q.Query()
	rows, err := r.db.drv.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]Run, 0)
	for rows.Next() {
		var (
			run                         Run
			id, scenario, status, files string
			elapsedMS, createdAt        int64
			finishedAt                  sql.NullInt64
		)
		if err := rows.Scan(&id, &run.WorkDir, &scenario, &status, &files,
			&run.Invoices, &run.Matches, &run.OnlyInApp, &run.OnlyInInv,
			&elapsedMS, &run.Error, &createdAt, &finishedAt); err != nil {
			return nil, err
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("run id %q: %w", id, err)
		}
		if err := json.Unmarshal([]byte(files), &run.Files); err != nil {
			return nil, fmt.Errorf("run %s files: %w", id, err)
		}
		run.Scenario = constants.Scenario(scenario)
		run.Status = constants.RunStatus(status)
		run.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		run.CreatedAt = fromMillis(createdAt)
		if finishedAt.Valid {
			t := fromMillis(finishedAt.Int64)
			run.FinishedAt = &t
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
