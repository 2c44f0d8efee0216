package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
)

// Document is the extracted text of one ingested file.
type Document struct {
	ID         uuid.UUID        `json:"id"`
	Path       string           `json:"path"`
	Method     constants.Method `json:"method"`
	TextLength int              `json:"text_length"`
	Text       string           `json:"text,omitempty"`
	Elapsed    time.Duration    `json:"elapsed"`
	CreatedAt  time.Time        `json:"created_at"`
}

type DocumentRepository interface {
	Record(ctx context.Context, path string, method constants.Method, text string, elapsed time.Duration) (*Document, error)
	// Latest returns the newest document stored for path.
	Latest(ctx context.Context, path string) (*Document, error)
	List(ctx context.Context, limit int) ([]Document, error)
}

type documentRepo struct {
	db  *DB
	log *slog.Logger
}

func NewDocumentRepository(db *DB, log *slog.Logger) DocumentRepository {
	if log == nil {
		log = slog.Default()
	}
	return &documentRepo{db: db, log: log}
}

func (r *documentRepo) Record(ctx context.Context, path string, method constants.Method, text string, elapsed time.Duration) (*Document, error) {
	doc := &Document{
		ID:         uuid.New(),
		Path:       path,
		Method:     method,
		TextLength: len([]rune(text)),
		Text:       text,
		Elapsed:    elapsed,
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
	q := r.db.builder().Insert("documents").
		Columns("id", "path", "method", "text_length", "text", "elapsed_ms", "created_at").
		Values(doc.ID.String(), path, string(method), doc.TextLength, text, elapsed.Milliseconds(), toMillis(doc.CreatedAt))
	if _, err := r.db.exec(ctx, q); err != nil {
		r.log.Error("document insert failed", "path", path, "error", err)
		return nil, err
	}
	r.log.Info("document recorded", "document_id", doc.ID, "path", path, "method", method, "text_length", doc.TextLength)
	return doc, nil
}

func (r *documentRepo) Latest(ctx context.Context, path string) (*Document, error) {
	q := r.db.builder().Select("id", "path", "method", "text_length", "text", "elapsed_ms", "created_at").
		From(entsql.Table("documents")).
		Where(entsql.EQ("path", path)).
		OrderBy(entsql.Desc("created_at")).
		Limit(1)
	docs, err := r.query(ctx, q, true)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("document %s: %w", path, common.ErrNotFound)
	}
	return &docs[0], nil
}

// List returns the newest documents first without their text.
func (r *documentRepo) List(ctx context.Context, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.builder().Select("id", "path", "method", "text_length", "elapsed_ms", "created_at").
		From(entsql.Table("documents")).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Limit(limit)
	return r.query(ctx, q, false)
}

func (r *documentRepo) query(ctx context.Context, q *entsql.Selector, withText bool) ([]Document, error) {
	query, args := q.Query()
	rows, err := r.db.drv.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]Document, 0)
	for rows.Next() {
		var (
			doc                  Document
			id, method           string
			elapsedMS, createdAt int64
		)
		dest := []any{&id, &doc.Path, &method, &doc.TextLength}
		if withText {
			dest = append(dest, &doc.Text)
		}
		dest = append(dest, &elapsedMS, &createdAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if doc.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("document id %q: %w", id, err)
		}
		doc.Method = constants.Method(method)
		doc.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		doc.CreatedAt = fromMillis(createdAt)
		out = append(out, doc)
	}
	return out, rows.Err()
}
