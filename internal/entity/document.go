package entity

import "github.com/joseph-ayodele/mining-enricher/constants"

// Document is one fetched and decoded source. RawBytes is released once
// Text has been produced; nothing here is persisted.
type Document struct {
	SourceRef   string                   `json:"source_ref"`
	ContentType string                   `json:"content_type,omitempty"`
	Format      constants.DocumentFormat `json:"format"`
	RawBytes    []byte                   `json:"-"`
	Text        string                   `json:"text"`
	PageCount   *int                     `json:"page_count,omitempty"`
}

// Length is the decoded text length in characters.
func (d Document) Length() int {
	return len([]rune(d.Text))
}

// Chunk is a fixed-size window of a document's text with its relevance score.
type Chunk struct {
	Text   string `json:"text"`
	Offset int    `json:"offset"` // character offset into the document text
	Score  int    `json:"score"`
}
