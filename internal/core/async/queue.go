package async

import (
	"context"
	"time"

	"github.com/joseph-ayodele/mining-enricher/internal/core"
)

// Job asks for one project to be (re)enriched.
type Job struct {
	ProjectID   string
	Force       bool // enqueue even if the project is already pending
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// ProjectProcessor is the work a queue worker performs per job.
type ProjectProcessor interface {
	ProcessProject(ctx context.Context, projectID string) (core.Report, error)
}
