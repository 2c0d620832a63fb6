package entity

// ExtractionResult holds the fields evidenced by one document for one project.
// A nil pointer (or nil slice) means "absent": no evidence was found. Absent is
// never the same as zero or "".
type ExtractionResult struct {
	NPV         *float64 `json:"npv,omitempty"`       // USD millions
	IRR         *float64 `json:"irr,omitempty"`       // percent, 15.5 means 15.5%
	Capex       *float64 `json:"capex,omitempty"`     // USD millions
	Opex        *float64 `json:"opex,omitempty"`      // as reported, USD
	MineLife    *float64 `json:"mine_life,omitempty"` // years
	Location    *string  `json:"location,omitempty"`
	Stage       *string  `json:"stage,omitempty"`
	Commodities []string `json:"commodities,omitempty"`
	Resource    *string  `json:"resource,omitempty"`
	Reserve     *string  `json:"reserve,omitempty"`
	Description *string  `json:"description,omitempty"`
}

// AggregatedResult is the merge of every ExtractionResult for one project.
type AggregatedResult = ExtractionResult

// IsEmpty reports whether every field is absent.
func (r ExtractionResult) IsEmpty() bool {
	return r.KnownFields() == 0
}

// KnownFields counts the non-absent fields.
func (r ExtractionResult) KnownFields() int {
	n := 0
	for _, p := range []*float64{r.NPV, r.IRR, r.Capex, r.Opex, r.MineLife} {
		if p != nil {
			n++
		}
	}
	for _, p := range []*string{r.Location, r.Stage, r.Resource, r.Reserve, r.Description} {
		if p != nil {
			n++
		}
	}
	if len(r.Commodities) > 0 {
		n++
	}
	return n
}
