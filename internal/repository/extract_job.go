package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/mining-enricher/constants"
	entschema "github.com/joseph-ayodele/mining-enricher/db/ent/schema"
	"github.com/joseph-ayodele/mining-enricher/internal/common"
	"github.com/joseph-ayodele/mining-enricher/internal/entity"
)

const jobsTable = "extract_jobs"

var jobColumns = []string{
	"id", "project_id", "document_id", "source_ref", "format", "started_at", "finished_at",
	"status", "error_message", "text_length", "page_count", "excerpt_length",
	"fallback", "attempts", "cached", "extracted_json", "model_name",
}

type ExtractJobRepository interface {
	Start(ctx context.Context, projectID string, documentID int64, sourceRef string) (entity.ExtractJob, error)
	// Finish records the outcome carried by job (status, metrics, raw output).
	Finish(ctx context.Context, job entity.ExtractJob) error
	// ListByProject returns the most recent jobs first.
	ListByProject(ctx context.Context, projectID string, limit int) ([]entity.ExtractJob, error)
}

type extractJobRepo struct {
	db  *DB
	log *slog.Logger
}

func NewExtractJobRepository(db *DB, log *slog.Logger) ExtractJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &extractJobRepo{db: db, log: log}
}

func (r *extractJobRepo) Start(ctx context.Context, projectID string, documentID int64, sourceRef string) (entity.ExtractJob, error) {
	job := entity.ExtractJob{
		ID:         uuid.New(),
		ProjectID:  projectID,
		DocumentID: documentID,
		SourceRef:  sourceRef,
		StartedAt:  time.Now().UTC(),
		Status:     string(constants.JobStatusRunning),
	}
	var docID any
	if documentID > 0 {
		docID = documentID
	}
	q := r.db.builder().Insert(jobsTable).
		Columns("id", "project_id", "document_id", "source_ref", "started_at", "status", "fallback", "attempts", "cached").
		Values(job.ID.String(), projectID, docID, sourceRef, job.StartedAt, job.Status, false, 0, false)
	if _, err := r.db.exec(ctx, q); err != nil {
		r.log.Error("extract_job start failed", "project_id", projectID, "source_ref", sourceRef, "err", err)
		return entity.ExtractJob{}, common.PersistenceError("start extract job", err)
	}
	r.log.Debug("extract_job started", "job_id", job.ID, "project_id", projectID, "source_ref", sourceRef)
	return job, nil
}

func (r *extractJobRepo) Finish(ctx context.Context, job entity.ExtractJob) error {
	if err := entschema.ValidateString(entschema.ExtractJob{}, "status", job.Status); err != nil {
		return common.NewAppError("VALIDATION_ERROR", "finish extract job", errors.Join(common.ErrValidation, err))
	}
	if job.Format != nil {
		if err := entschema.ValidateString(entschema.ExtractJob{}, "format", *job.Format); err != nil {
			return common.NewAppError("VALIDATION_ERROR", "finish extract job", errors.Join(common.ErrValidation, err))
		}
	}
	finished := time.Now().UTC()
	if job.FinishedAt != nil {
		finished = *job.FinishedAt
	}
	var raw any
	if len(job.ExtractedJSON) > 0 {
		raw = string(job.ExtractedJSON)
	}
	q := r.db.builder().Update(jobsTable).
		Set("finished_at", finished).
		Set("status", job.Status).
		Set("error_message", nullable(job.ErrorMessage)).
		Set("format", nullable(job.Format)).
		Set("text_length", nullableInt(job.TextLength)).
		Set("page_count", nullableInt(job.PageCount)).
		Set("excerpt_length", nullableInt(job.ExcerptLength)).
		Set("fallback", job.Fallback).
		Set("attempts", job.Attempts).
		Set("cached", job.Cached).
		Set("extracted_json", raw).
		Set("model_name", nullable(job.ModelName)).
		Where(entsql.EQ("id", job.ID.String()))
	if _, err := r.db.exec(ctx, q); err != nil {
		r.log.Error("extract_job finish failed", "job_id", job.ID, "err", err)
		return common.PersistenceError("finish extract job", err)
	}
	if job.Status == string(constants.JobStatusFailed) {
		r.log.Warn("extract_job finished (FAILED)", "job_id", job.ID, "error", job.ErrorMessage)
	} else {
		r.log.Info("extract_job finished", "job_id", job.ID, "status", job.Status, "attempts", job.Attempts, "cached", job.Cached)
	}
	return nil
}

func (r *extractJobRepo) ListByProject(ctx context.Context, projectID string, limit int) ([]entity.ExtractJob, error) {
	b := r.db.builder()
	q := b.Select(jobColumns...).
		From(b.Table(jobsTable)).
		Where(entsql.EQ("project_id", projectID)).
		OrderBy(entsql.Desc("started_at"))
	if limit > 0 {
		q.Limit(limit)
	}
	rows, err := r.db.query(ctx, q)
	if err != nil {
		return nil, common.NewAppError("DATABASE_ERROR", "list extract jobs", errors.Join(common.ErrDatabase, err))
	}
	defer rows.Close()
	var out []entity.ExtractJob
	for rows.Next() {
		var (
			j                                 entity.ExtractJob
			id                                string
			docID, textLen, pages, excerptLen sql.NullInt64
			format, errMsg, raw, model        sql.NullString
			finished                          sql.NullTime
		)
		if err := rows.Scan(&id, &j.ProjectID, &docID, &j.SourceRef, &format, &j.StartedAt, &finished,
			&j.Status, &errMsg, &textLen, &pages, &excerptLen,
			&j.Fallback, &j.Attempts, &j.Cached, &raw, &model); err != nil {
			return nil, common.NewAppError("DATABASE_ERROR", "scan extract job", errors.Join(common.ErrDatabase, err))
		}
		if j.ID, err = uuid.Parse(id); err != nil {
			return nil, common.NewAppError("DATABASE_ERROR", "scan extract job", errors.Join(common.ErrDatabase, err))
		}
		j.DocumentID = docID.Int64
		j.Format = nullString(format)
		j.ErrorMessage = nullString(errMsg)
		j.ModelName = nullString(model)
		j.TextLength = nullInt(textLen)
		j.PageCount = nullInt(pages)
		j.ExcerptLength = nullInt(excerptLen)
		if raw.Valid {
			j.ExtractedJSON = []byte(raw.String)
		}
		if finished.Valid {
			t := finished.Time
			j.FinishedAt = &t
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DATABASE_ERROR", "list extract jobs", errors.Join(common.ErrDatabase, err))
	}
	return out, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
