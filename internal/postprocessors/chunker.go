package postprocessors

import (
	"strings"

	"github.com/custodia-labs/policy-rag/internal/core/ports/driven"
)

// Default window sizes, in words
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// ChunkConfig configures the chunker behavior.
type ChunkConfig struct {
	// Size is the maximum number of words per chunk
	Size int

	// Overlap is the number of words shared by consecutive chunks.
	// Must be smaller than Size.
	Overlap int
}

// DefaultChunkConfig returns a 500 word window with a 50 word overlap.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    DefaultChunkSize,
		Overlap: DefaultChunkOverlap,
	}
}

// normalised returns a config that always makes forward progress.
func (c ChunkConfig) normalised() ChunkConfig {
	if c.Size <= 0 {
		c.Size = DefaultChunkSize
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		c.Overlap = 0
	}
	return c
}

// Chunker splits cleaned text into overlapping word windows.
type Chunker struct {
	config ChunkConfig
}

// Verify interface compliance
var _ driven.PostProcessor = (*Chunker)(nil)

// NewChunker creates a new chunker with the given config.
func NewChunker(config ChunkConfig) *Chunker {
	return &Chunker{config: config.normalised()}
}

// Config returns the effective configuration.
func (c *Chunker) Config() ChunkConfig {
	return c.config
}

// Process splits every segment into windows, numbering them sequentially.
func (c *Chunker) Process(segments []driven.Segment) []driven.Segment {
	result := make([]driven.Segment, 0, len(segments))
	position := 0

	for _, seg := range segments {
		for _, w := range c.windows(strings.Fields(seg.Text)) {
			w.Position = position
			w.StartWord += seg.StartWord
			w.EndWord += seg.StartWord
			result = append(result, w)
			position++
		}
	}
	return result
}

// Name returns the processor name.
func (c *Chunker) Name() string {
	return "chunker"
}

// Order returns 10 - the chunker runs after the cleaner.
func (c *Chunker) Order() int {
	return 10
}

// Split cleans text and returns the chunk strings.
func (c *Chunker) Split(text string) []string {
	out := []string{}
	for _, w := range c.windows(strings.Fields(Clean(text))) {
		out = append(out, w.Text)
	}
	return out
}

// windows slides a Size word window over words, advancing Size-Overlap
// words each step. The last window may be shorter.
func (c *Chunker) windows(words []string) []driven.Segment {
	if len(words) == 0 {
		return nil
	}
	if len(words) <= c.config.Size {
		return []driven.Segment{{Text: strings.Join(words, " "), EndWord: len(words)}}
	}

	var out []driven.Segment
	start := 0
	for start < len(words) {
		end := start + c.config.Size
		if end > len(words) {
			end = len(words)
		}
		out = append(out, driven.Segment{
			Text:      strings.Join(words[start:end], " "),
			StartWord: start,
			EndWord:   end,
		})
		if end >= len(words) {
			break
		}

		next := end - c.config.Overlap
		if next < 0 {
			next = 0
		}
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// ExpectedChunks returns how many windows a text of n words produces.
func (c *Chunker) ExpectedChunks(n int) int {
	if n == 0 {
		return 0
	}
	if n <= c.config.Size {
		return 1
	}
	step := c.config.Size - c.config.Overlap
	return (n - c.config.Overlap + step - 1) / step
}

// Rejoin reverses chunking by dropping the first overlap words of every
// chunk after the first. Applied to the output of a Chunker with the same
// overlap it reproduces the cleaned text.
func Rejoin(chunks []string, overlap int) string {
	var words []string
	for i, ch := range chunks {
		fields := strings.Fields(ch)
		if i > 0 {
			if overlap > len(fields) {
				fields = nil
			} else {
				fields = fields[overlap:]
			}
		}
		words = append(words, fields...)
	}
	return strings.Join(words, " ")
}
