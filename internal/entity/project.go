package entity

import "time"

// ProjectRecord is the durable enrichment target, keyed by project ID.
// Fields only ever move from absent to known.
type ProjectRecord struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Company     string     `json:"company,omitempty"`
	NPV         *float64   `json:"npv,omitempty"`
	IRR         *float64   `json:"irr,omitempty"`
	Capex       *float64   `json:"capex,omitempty"`
	Opex        *float64   `json:"opex,omitempty"`
	MineLife    *float64   `json:"mine_life,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Stage       *string    `json:"stage,omitempty"`
	Commodities []string   `json:"commodities,omitempty"`
	Resource    *string    `json:"resource,omitempty"`
	Reserve     *string    `json:"reserve,omitempty"`
	Description *string    `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"` // last pipeline write that changed a field
}

// Fields returns the enrichment fields of the record as an ExtractionResult.
func (p ProjectRecord) Fields() ExtractionResult {
	return ExtractionResult{
		NPV:         p.NPV,
		IRR:         p.IRR,
		Capex:       p.Capex,
		Opex:        p.Opex,
		MineLife:    p.MineLife,
		Location:    p.Location,
		Stage:       p.Stage,
		Commodities: p.Commodities,
		Resource:    p.Resource,
		Reserve:     p.Reserve,
		Description: p.Description,
	}
}

// ProjectDocument links a source reference to the project it describes.
type ProjectDocument struct {
	ID        int64      `json:"id"`
	ProjectID string     `json:"project_id"`
	SourceRef string     `json:"source_ref"`
	Title     string     `json:"title,omitempty"`
	DocType   string     `json:"doc_type,omitempty"`
	FiledAt   *time.Time `json:"filed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
