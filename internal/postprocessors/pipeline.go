package postprocessors

import (
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/policy-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline implements PostProcessorPipeline.
// It chains multiple post-processors in order, starting with the Cleaner.
type Pipeline struct {
	mu         sync.RWMutex
	processors []driven.PostProcessor
	sorted     bool
}

// NewPipeline creates a new post-processor pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		processors: make([]driven.PostProcessor, 0),
	}
}

// Add adds a processor to the pipeline.
// Processors are sorted by Order() before processing.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processors = append(p.processors, processor)
	p.sorted = false
}

// Process applies all processors in order.
// Input is the raw document content; output is the chunk segments ready
// for embedding. Blank content yields no segments.
func (p *Pipeline) Process(content string) []driven.Segment {
	if strings.TrimSpace(content) == "" {
		return []driven.Segment{}
	}

	p.mu.Lock()
	if !p.sorted {
		sort.SliceStable(p.processors, func(i, j int) bool {
			return p.processors[i].Order() < p.processors[j].Order()
		})
		p.sorted = true
	}
	processors := make([]driven.PostProcessor, len(p.processors))
	copy(processors, p.processors)
	p.mu.Unlock()

	segments := []driven.Segment{{Text: content}}
	for _, proc := range processors {
		segments = proc.Process(segments)
	}
	return segments
}

// List returns processor names in order.
func (p *Pipeline) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}

// Split is a convenience returning just the text of each segment.
func (p *Pipeline) Split(content string) []string {
	segments := p.Process(content)
	out := make([]string, len(segments))
	for i, s := range segments {
		out[i] = s.Text
	}
	return out
}

// DefaultPipeline creates a pipeline that cleans then chunks with cfg.
func DefaultPipeline(cfg ChunkConfig) *Pipeline {
	p := NewPipeline()
	p.Add(NewCleaner())
	p.Add(NewChunker(cfg))
	return p
}
