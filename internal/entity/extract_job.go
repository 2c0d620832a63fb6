package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExtractJob is the audit row for one (project, document) extraction run.
type ExtractJob struct {
	ID            uuid.UUID       `json:"id"`
	ProjectID     string          `json:"project_id"`
	DocumentID    int64           `json:"document_id"`
	SourceRef     string          `json:"source_ref"`
	Format        *string         `json:"format,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
	Status        string          `json:"status"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	TextLength    *int            `json:"text_length,omitempty"`
	PageCount     *int            `json:"page_count,omitempty"`
	ExcerptLength *int            `json:"excerpt_length,omitempty"`
	Fallback      bool            `json:"fallback"`
	Attempts      int             `json:"attempts"`
	Cached        bool            `json:"cached"`
	ExtractedJSON json.RawMessage `json:"extracted_json,omitempty"`
	ModelName     *string         `json:"model_name,omitempty"`
}
