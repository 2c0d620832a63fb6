// Package core runs the enrichment pipeline: per-document acquisition,
// section selection and extraction, then one aggregated write per project.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/mining-enricher/constants"
	"github.com/joseph-ayodele/mining-enricher/internal/aggregate"
	"github.com/joseph-ayodele/mining-enricher/internal/common"
	"github.com/joseph-ayodele/mining-enricher/internal/entity"
	"github.com/joseph-ayodele/mining-enricher/internal/llm"
	"github.com/joseph-ayodele/mining-enricher/internal/repository"
	"github.com/joseph-ayodele/mining-enricher/internal/scorer"
	"github.com/joseph-ayodele/mining-enricher/internal/utils"
)

// DocumentSource produces decoded text for a source reference.
type DocumentSource interface {
	Acquire(ctx context.Context, ref string) (entity.Document, error)
}

// FieldOracle turns an excerpt into fields. It reports failure through
// Outcome.Err and never blocks past its own timeouts.
type FieldOracle interface {
	Extract(ctx context.Context, req llm.ExtractRequest) llm.Outcome
	ModelName() string
}

// DocumentReport describes one document's pass through the pipeline.
type DocumentReport struct {
	SourceRef     string                  `json:"source_ref"`
	Status        constants.JobStatus     `json:"status"`
	Format        string                  `json:"format,omitempty"`
	TextLength    int                     `json:"text_length"`
	ExcerptLength int                     `json:"excerpt_length"`
	Fallback      bool                    `json:"fallback"`
	Attempts      int                     `json:"attempts"`
	Cached        bool                    `json:"cached"`
	Result        entity.ExtractionResult `json:"result"`
	Raw           []byte                  `json:"-"` // oracle JSON as received
	Err           error                   `json:"-"`
}

// Report summarizes one ProcessProject run.
type Report struct {
	ProjectID string                  `json:"project_id"`
	Documents []DocumentReport        `json:"documents"`
	Result    entity.AggregatedResult `json:"result"`
	Changed   bool                    `json:"changed"`
	Elapsed   time.Duration           `json:"elapsed"`
}

// Counts returns the number of OK, EMPTY and FAILED documents.
func (r Report) Counts() (ok, empty, failed int) {
	for _, d := range r.Documents {
		switch d.Status {
		case constants.JobStatusOK:
			ok++
		case constants.JobStatusEmpty:
			empty++
		default:
			failed++
		}
	}
	return ok, empty, failed
}

// Processor coordinates the pipeline stages for projects and documents.
type Processor struct {
	logger    *slog.Logger
	source    DocumentSource
	scorer    *scorer.Scorer
	oracle    FieldOracle
	projects  repository.ProjectStore
	documents repository.DocumentRepository
	jobs      repository.ExtractJobRepository // optional audit trail
	workers   int
}

func NewProcessor(
	logger *slog.Logger,
	source DocumentSource,
	sc *scorer.Scorer,
	oracle FieldOracle,
	projects repository.ProjectStore,
	documents repository.DocumentRepository,
	jobs repository.ExtractJobRepository,
	workers int,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	return &Processor{
		logger:    logger,
		source:    source,
		scorer:    sc,
		oracle:    oracle,
		projects:  projects,
		documents: documents,
		jobs:      jobs,
		workers:   workers,
	}
}

// ProcessProject enriches one project from all of its registered documents.
// Document failures only remove that document's contribution; the returned
// error is a persistence failure, a lookup failure or cancellation. Nothing
// is written unless every document has been processed.
func (p *Processor) ProcessProject(ctx context.Context, projectID string) (Report, error) {
	start := time.Now()
	log := p.logger.With("project_id", projectID)
	if rid := common.RequestIDFromContext(ctx); rid != "" {
		log = log.With("req_id", rid)
	}
	report := Report{ProjectID: projectID}

	project, err := p.projects.Get(ctx, projectID)
	if err != nil {
		return report, fmt.Errorf("load project %s: %w", projectID, err)
	}
	docs, err := p.documents.ListByProject(ctx, projectID)
	if err != nil {
		return report, fmt.Errorf("list documents for %s: %w", projectID, err)
	}
	log.Info("processor.project.start", "documents", len(docs), "workers", p.workers)

	report.Documents = make([]DocumentReport, len(docs))
	g := new(errgroup.Group)
	g.SetLimit(p.workers)
	for i, doc := range docs {
		g.Go(func() error {
			report.Documents[i] = p.processDocument(ctx, project, doc)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		log.Warn("processor.project.cancelled", "error", err)
		return report, err
	}

	// merge in document order so first-wins strings follow filing order
	results := make([]entity.ExtractionResult, len(report.Documents))
	for i, d := range report.Documents {
		results[i] = d.Result
	}
	report.Result = aggregate.Merge(results...)

	report.Changed, err = p.projects.UpsertFields(ctx, projectID, report.Result)
	report.Elapsed = time.Since(start)
	if err != nil {
		log.Error("processor.project.persist_failed", "error", err)
		return report, err
	}
	ok, empty, failed := report.Counts()
	log.Info("processor.project.done",
		"ok", ok, "empty", empty, "failed", failed,
		"fields", report.Result.KnownFields(),
		"changed", report.Changed,
		"elapsed_ms", report.Elapsed.Milliseconds(),
	)
	return report, nil
}

// Preview runs a source through the pipeline stages without touching the store.
func (p *Processor) Preview(ctx context.Context, ref, projectName, company string) DocumentReport {
	return p.extract(ctx, ref, llm.ExtractRequest{ProjectName: projectName, Company: company}, p.logger.With("source_ref", ref))
}

func (p *Processor) processDocument(ctx context.Context, project entity.ProjectRecord, doc entity.ProjectDocument) DocumentReport {
	log := p.logger.With("project_id", project.ID, "source_ref", doc.SourceRef)

	var job entity.ExtractJob
	audited := false
	if p.jobs != nil {
		j, err := p.jobs.Start(ctx, project.ID, doc.ID, doc.SourceRef)
		if err != nil {
			log.Warn("processor.audit.start_failed", "error", err)
		} else {
			job, audited = j, true
		}
	}

	req := llm.ExtractRequest{
		ProjectName:   project.Name,
		Company:       project.Company,
		DocumentTitle: doc.Title,
	}
	rep := p.extract(ctx, doc.SourceRef, req, log)

	if audited {
		p.finishJob(ctx, job, rep, log)
	}
	return rep
}

func (p *Processor) extract(ctx context.Context, ref string, req llm.ExtractRequest, log *slog.Logger) DocumentReport {
	rep := DocumentReport{SourceRef: ref, Status: constants.JobStatusFailed}

	doc, err := p.source.Acquire(ctx, ref)
	if err != nil {
		log.Warn("processor.document.failed", "stage", "acquire", "error", err)
		rep.Err = err
		return rep
	}
	rep.Format = string(doc.Format)
	rep.TextLength = doc.Length()

	sel := p.scorer.Select(doc.Text)
	rep.ExcerptLength = len([]rune(sel.Text))
	rep.Fallback = sel.Fallback

	req.Excerpt = sel.Text
	out := p.oracle.Extract(ctx, req)
	rep.Attempts = out.Attempts
	rep.Cached = out.Cached
	if out.Err != nil {
		log.Warn("processor.document.failed", "stage", "oracle", "attempts", out.Attempts, "error", out.Err)
		rep.Err = out.Err
		return rep
	}
	rep.Result = out.Result
	rep.Raw = out.Raw
	rep.Status = constants.JobStatusOK
	if out.Result.IsEmpty() {
		rep.Status = constants.JobStatusEmpty
	}
	log.Info("processor.document.done",
		"status", rep.Status,
		"fields", out.Result.KnownFields(),
		"excerpt_len", rep.ExcerptLength,
		"fallback", rep.Fallback,
		"cached", rep.Cached,
	)
	return rep
}

// finishJob records rep on the audit row. Failures are logged only.
func (p *Processor) finishJob(ctx context.Context, job entity.ExtractJob, rep DocumentReport, log *slog.Logger) {
	job.Status = string(rep.Status)
	if rep.Format != "" {
		job.Format = utils.Ptr(rep.Format)
		job.TextLength = utils.Ptr(rep.TextLength)
		job.ExcerptLength = utils.Ptr(rep.ExcerptLength)
	}
	job.Fallback = rep.Fallback
	job.Attempts = rep.Attempts
	job.Cached = rep.Cached
	if rep.Err != nil {
		job.ErrorMessage = utils.Ptr(utils.Truncate(rep.Err.Error(), 2000))
	}
	if rep.Status != constants.JobStatusFailed {
		job.ModelName = utils.Ptr(p.oracle.ModelName())
		job.ExtractedJSON = rep.Raw
	}
	// the audit row is written even when the run was cancelled
	wctx := context.WithoutCancel(ctx)
	if err := p.jobs.Finish(wctx, job); err != nil {
		log.Warn("processor.audit.finish_failed", "job_id", job.ID, "error", err)
	}
}

// ProcessAll runs ProcessProject for each id on a bounded pool. Reports are
// returned in id order; errors of individual projects are joined.
func (p *Processor) ProcessAll(ctx context.Context, ids []string, workers int, timeout time.Duration) ([]Report, error) {
	if workers <= 0 {
		workers = 1
	}
	reports := make([]Report, len(ids))
	var (
		mu   sync.Mutex
		errs []error
	)
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, id := range ids {
		g.Go(func() error {
			pctx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				pctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			rep, err := p.ProcessProject(pctx, id)
			reports[i] = rep
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("project %s: %w", id, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return reports, errors.Join(errs...)
}
