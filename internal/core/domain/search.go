package domain

import "time"

// SearchOptions configures a similarity search
type SearchOptions struct {
	TopK     int    `json:"top_k"`
	Category string `json:"category,omitempty"`
}

// AskOptions configures a question answered by the retrieval service
type AskOptions struct {
	TopK         int    `json:"top_k"`
	Category     string `json:"category,omitempty"`
	Department   string `json:"department,omitempty"`
	UseGenerator bool   `json:"use_generator"`
}

// SearchResult pairs a document with one of its chunks and the chunk's
// similarity at query time. Never persisted.
type SearchResult struct {
	Document       *Document `json:"document"`
	Chunk          *Chunk    `json:"chunk"`
	RelevanceScore float64   `json:"relevance_score"`
}

// AnswerSource records how an answer was composed
type AnswerSource string

const (
	AnswerSourceGenerator AnswerSource = "generator"
	AnswerSourceTemplate  AnswerSource = "template"
	AnswerSourceNoResults AnswerSource = "no_results"
)

// RAGResponse is the answer envelope returned for a question
type RAGResponse struct {
	Answer       string         `json:"answer"`
	Sources      []SearchResult `json:"sources"`
	Confidence   float64        `json:"confidence"`
	Query        string         `json:"query"`
	Department   string         `json:"department,omitempty"`
	AnswerSource AnswerSource   `json:"answer_source"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Confidence returns the arithmetic mean of the relevance scores, or 0 for
// an empty set.
func Confidence(results []SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for i := range results {
		sum += results[i].RelevanceScore
	}
	return sum / float64(len(results))
}

// SystemStats summarises the corpus and service usage
type SystemStats struct {
	Documents           int           `json:"documents"`
	Chunks              int           `json:"chunks"`
	Categories          []string      `json:"categories"`
	QuestionsAsked      int64         `json:"questions_asked"`
	Searches            int64         `json:"searches"`
	DocumentsAdded      int64         `json:"documents_added"`
	Uptime              time.Duration `json:"uptime" swaggertype:"integer" example:"1500000"`
	EncoderModel        string        `json:"encoder_model"`
	EncoderDimension    int           `json:"encoder_dimension"`
	EncoderFallback     bool          `json:"encoder_fallback"`
	GeneratorAvailable  bool          `json:"generator_available"`
	GeneratorModel      string        `json:"generator_model,omitempty"`
	SimilarityThreshold float64       `json:"similarity_threshold"`
}
