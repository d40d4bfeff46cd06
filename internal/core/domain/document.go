package domain

import (
	"strings"
	"time"
)

// Metadata keys written by ingestion
const (
	MetadataDepartment    = "department"
	MetadataSource        = "source"
	MetadataVersion       = "version"
	MetadataKeywords      = "keywords"
	MetadataEffectiveDate = "effective_date"
	MetadataPath          = "path"

	// SourcePredefined marks documents loaded from the embedded policy corpus
	SourcePredefined = "predefined"

	// SourceFile marks documents ingested from the filesystem
	SourceFile = "file"
)

// Document is a policy document. ID is assigned by the store on insert and
// never changes afterwards; re-adding the same content produces a new ID.
type Document struct {
	ID        int64          `json:"id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Category  string         `json:"category"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

// Department returns the department recorded in metadata, if any.
func (d *Document) Department() string {
	if d == nil || d.Metadata == nil {
		return ""
	}
	v, _ := d.Metadata[MetadataDepartment].(string)
	return v
}

// MergeMetadata copies the given keys into the document metadata,
// overwriting existing values.
func (d *Document) MergeMetadata(values map[string]any) {
	if len(values) == 0 {
		return
	}
	if d.Metadata == nil {
		d.Metadata = make(map[string]any, len(values))
	}
	for k, v := range values {
		d.Metadata[k] = v
	}
}

// Chunk is one windowed slice of a document's cleaned text together with
// its embedding. Similarity is only meaningful on search results, where a
// score of 0 is still reported.
type Chunk struct {
	ID         int64     `json:"id"`
	DocumentID int64     `json:"document_id"`
	Text       string    `json:"chunk_text"`
	Embedding  []float32 `json:"-"`
	Index      int       `json:"chunk_index"`
	Similarity float64   `json:"similarity_score"`
}

// AddDocumentRequest carries the fields needed to ingest a document
type AddDocumentRequest struct {
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Category string         `json:"category"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Validate checks the request has a title, content and category.
func (r *AddDocumentRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Title) == "":
		return ErrMissingTitle
	case strings.TrimSpace(r.Content) == "":
		return ErrMissingContent
	case strings.TrimSpace(r.Category) == "":
		return ErrMissingCategory
	}
	return nil
}
