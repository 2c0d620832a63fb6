// Package ingest registers document drops under a watched root as project
// documents. The first path element below the root is the project ID.
package ingest

import (
	"context"
	"time"

	"github.com/joseph-ayodele/mining-enricher/internal/entity"
)

// Result is the per-file registration outcome.
type Result struct {
	Path      string
	ProjectID string
	Document  entity.ProjectDocument
	Err       string
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Failed    uint32
}

// Registrar is the behavior the watcher and CLI depend on.
type Registrar interface {
	// Register records one file as a document of the project it lives under.
	Register(ctx context.Context, path string) (Result, error)
	// Scan registers every matching file below the root.
	Scan(ctx context.Context) ([]Result, DirStats, error)
}

// Registered is emitted once a watched file has been recorded.
type Registered struct {
	Result
	At time.Time
}
