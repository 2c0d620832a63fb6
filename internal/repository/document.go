package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/mining-enricher/internal/common"
	"github.com/joseph-ayodele/mining-enricher/internal/entity"
)

const documentsTable = "project_documents"

var documentColumns = []string{"id", "project_id", "source_ref", "title", "doc_type", "filed_at", "created_at"}

type DocumentRepository interface {
	// Add registers a document; re-adding the same (project, source) returns the existing row.
	Add(ctx context.Context, doc entity.ProjectDocument) (entity.ProjectDocument, error)
	// ListByProject returns documents in processing order: filed_at ascending
	// (undated last), then id.
	ListByProject(ctx context.Context, projectID string) ([]entity.ProjectDocument, error)
	// ListProjectIDs returns the distinct project IDs that have documents.
	ListProjectIDs(ctx context.Context) ([]string, error)
}

type documentRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewDocumentRepository(db *DB, logger *slog.Logger) DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentRepo{db: db, logger: logger}
}

func (r *documentRepo) Add(ctx context.Context, doc entity.ProjectDocument) (entity.ProjectDocument, error) {
	doc.ProjectID = strings.TrimSpace(doc.ProjectID)
	doc.SourceRef = strings.TrimSpace(doc.SourceRef)
	if doc.ProjectID == "" || doc.SourceRef == "" {
		return entity.ProjectDocument{}, common.NewAppError("VALIDATION_ERROR", "project id and source ref are required", common.ErrInvalidInput)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	var filedAt any
	if doc.FiledAt != nil {
		filedAt = doc.FiledAt.UTC()
	}
	q := r.db.builder().Insert(documentsTable).
		Columns("project_id", "source_ref", "title", "doc_type", "filed_at", "created_at").
		Values(doc.ProjectID, doc.SourceRef, optString(doc.Title), optString(doc.DocType), filedAt, doc.CreatedAt).
		OnConflict(entsql.ConflictColumns("project_id", "source_ref"), entsql.DoNothing())
	res, err := r.db.exec(ctx, q)
	if err != nil {
		r.logger.Error("repository.document.add_failed", "project_id", doc.ProjectID, "source_ref", doc.SourceRef, "error", err)
		return entity.ProjectDocument{}, common.PersistenceError("add document", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		r.logger.Debug("repository.document.exists", "project_id", doc.ProjectID, "source_ref", doc.SourceRef)
	} else {
		r.logger.Info("repository.document.add", "project_id", doc.ProjectID, "source_ref", doc.SourceRef)
	}
	return r.get(ctx, doc.ProjectID, doc.SourceRef)
}

func (r *documentRepo) get(ctx context.Context, projectID, sourceRef string) (entity.ProjectDocument, error) {
	b := r.db.builder()
	q := b.Select(documentColumns...).
		From(b.Table(documentsTable)).
		Where(entsql.And(entsql.EQ("project_id", projectID), entsql.EQ("source_ref", sourceRef)))
	docs, err := r.list(ctx, q)
	if err != nil {
		return entity.ProjectDocument{}, err
	}
	if len(docs) == 0 {
		return entity.ProjectDocument{}, common.NewAppError("NOT_FOUND", "document "+sourceRef, common.ErrNotFound)
	}
	return docs[0], nil
}

func (r *documentRepo) ListByProject(ctx context.Context, projectID string) ([]entity.ProjectDocument, error) {
	b := r.db.builder()
	q := b.Select(documentColumns...).
		From(b.Table(documentsTable)).
		Where(entsql.EQ("project_id", projectID)).
		OrderBy("id")
	docs, err := r.list(ctx, q)
	if err != nil {
		return nil, err
	}
	// NULL ordering differs between dialects, so filed_at is ordered here.
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i].FiledAt, docs[j].FiledAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return docs, nil
}

func (r *documentRepo) ListProjectIDs(ctx context.Context) ([]string, error) {
	b := r.db.builder()
	q := b.Select("project_id").Distinct().
		From(b.Table(documentsTable)).
		OrderBy("project_id")
	rows, err := r.db.query(ctx, q)
	if err != nil {
		return nil, common.NewAppError("DATABASE_ERROR", "list project ids", errors.Join(common.ErrDatabase, err))
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, common.NewAppError("DATABASE_ERROR", "scan project id", errors.Join(common.ErrDatabase, err))
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *documentRepo) list(ctx context.Context, q entsql.Querier) ([]entity.ProjectDocument, error) {
	rows, err := r.db.query(ctx, q)
	if err != nil {
		return nil, common.NewAppError("DATABASE_ERROR", "list documents", errors.Join(common.ErrDatabase, err))
	}
	defer rows.Close()
	var out []entity.ProjectDocument
	for rows.Next() {
		var (
			d              entity.ProjectDocument
			title, docType sql.NullString
			filedAt        sql.NullTime
		)
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.SourceRef, &title, &docType, &filedAt, &d.CreatedAt); err != nil {
			return nil, common.NewAppError("DATABASE_ERROR", "scan document", errors.Join(common.ErrDatabase, err))
		}
		d.Title = title.String
		d.DocType = docType.String
		if filedAt.Valid {
			t := filedAt.Time
			d.FiledAt = &t
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DATABASE_ERROR", "list documents", errors.Join(common.ErrDatabase, err))
	}
	return out, nil
}

func optString(s string) any {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return s
}
