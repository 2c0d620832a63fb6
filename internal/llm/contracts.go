package llm

import (
	"context"

	"github.com/joseph-ayodele/mining-enricher/internal/entity"
)

// ExtractRequest is one excerpt plus the hints that help the model anchor it.
type ExtractRequest struct {
	Excerpt       string
	ProjectName   string
	Company       string
	DocumentTitle string
}

// FieldExtractor is the interface our pipeline depends on. Implementations
// return the parsed fields and the raw JSON content they were parsed from.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (entity.ExtractionResult, []byte /*rawJSON*/, error)
	ModelName() string
}
