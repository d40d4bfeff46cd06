package driven

// Normaliser converts raw file content into plain policy text before it is
// cleaned and chunked.
type Normaliser interface {
	// Normalise transforms raw content into plain text.
	// The mimeType helps determine the appropriate processing.
	Normalise(content string, mimeType string) (string, error)

	// SupportedTypes returns MIME types this normaliser handles.
	// Can include wildcards like "text/*" or specific types like "text/markdown".
	SupportedTypes() []string

	// Priority returns the normaliser priority (higher = more specific).
	// Priority ranges:
	//   50-89:  Format-specific (Markdown, HTML)
	//   1-9:    Fallback (raw text)
	Priority() int
}

// NormaliserRegistry picks a normaliser per MIME type.
// When several match, the highest priority one wins.
type NormaliserRegistry interface {
	// Normalise runs content through the best normaliser for mimeType.
	// Unsupported types return an error wrapping domain.ErrInvalidInput.
	Normalise(content string, mimeType string) (string, error)

	// Get returns the best normaliser for mimeType, or nil.
	Get(mimeType string) Normaliser

	// Register adds a normaliser.
	Register(normaliser Normaliser)

	// SupportedTypes lists every registered MIME type, sorted.
	SupportedTypes() []string
}

// PostProcessor transforms text segments on the way from document content
// to embeddable chunks.
type PostProcessor interface {
	// Process applies post-processing to segments.
	// The first processor receives a single segment with the full content.
	Process(segments []Segment) []Segment

	// Name returns the processor name for logging/debugging.
	Name() string

	// Order returns the processor order in the pipeline (lower = earlier).
	Order() int
}

// Segment is a span of document text measured in words.
type Segment struct {
	// Text is the segment content
	Text string

	// Position is the segment index within the document (0-based)
	Position int

	// StartWord is the index of the first word within the cleaned document
	StartWord int

	// EndWord is the index one past the last word
	EndWord int
}

// PostProcessorPipeline chains multiple post-processors in order.
type PostProcessorPipeline interface {
	// Process applies all processors in order to content.
	Process(content string) []Segment

	// Add adds a processor to the pipeline.
	Add(processor PostProcessor)

	// List returns processor names in order.
	List() []string
}
