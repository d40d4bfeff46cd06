package postprocessors

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/policy-rag/internal/core/ports/driven"
)

var (
	wordPattern     = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	sentencePattern = regexp.MustCompile(`[.!?]+`)
)

// Clean lowercases text, collapses every whitespace run (newlines and
// blank lines included) into one space and trims the result. The original
// layout cannot be recovered from the output.
func Clean(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Cleaner is the pipeline stage that applies Clean.
type Cleaner struct{}

// Verify interface compliance
var _ driven.PostProcessor = (*Cleaner)(nil)

// NewCleaner creates a new cleaner.
func NewCleaner() *Cleaner {
	return &Cleaner{}
}

// Process cleans each segment and drops segments left empty.
func (c *Cleaner) Process(segments []driven.Segment) []driven.Segment {
	result := make([]driven.Segment, 0, len(segments))
	for _, seg := range segments {
		cleaned := Clean(seg.Text)
		if cleaned == "" {
			continue
		}
		seg.Text = cleaned
		result = append(result, seg)
	}
	return result
}

// Name returns the processor name.
func (c *Cleaner) Name() string {
	return "cleaner"
}

// Order returns 0 - cleaning runs first.
func (c *Cleaner) Order() int {
	return 0
}

var stopWords = toSet(
	"el", "la", "de", "que", "y", "a", "en", "un", "es", "se", "no", "te", "lo", "le",
	"da", "su", "por", "son", "con", "para", "al", "del", "los", "las", "una", "como",
	"pero", "sus", "ya", "o", "fue", "este", "ha", "si", "porque", "esta",
	"entre", "cuando", "muy", "sin", "sobre", "ser", "tiene", "también", "me", "hasta",
	"hay", "donde", "han", "quien", "están", "estado", "desde", "todo", "nos", "durante",
	"todos", "uno", "les", "ni", "contra", "otros", "fueron", "ese", "eso", "había",
	"ante", "ellos", "e", "esto", "mí", "antes", "algunos", "qué", "unos", "yo", "otro",
	"otras", "otra", "él", "tanto", "esa", "estos", "mucho", "quienes", "nada", "muchos",
	"cual", "sea", "poco", "ella", "estar", "haber", "estas", "estaba", "estamos", "pueden",
	"hacen", "entonces", "fui", "foto", "fotos", "cada", "veía", "algo", "somos", "así",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// IsStopWord reports whether word is in the Spanish stop-word set.
func IsStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}

// ExtractKeywords returns up to max of the most frequent words in text,
// ignoring stop words and words of two characters or fewer. Ties keep the
// order in which words first appear.
func ExtractKeywords(text string, max int) []string {
	if max <= 0 {
		return []string{}
	}

	counts := make(map[string]int)
	var order []string
	for _, w := range wordPattern.FindAllString(Clean(text), -1) {
		if utf8.RuneCountInString(w) <= 2 || IsStopWord(w) {
			continue
		}
		if _, seen := counts[w]; !seen {
			order = append(order, w)
		}
		counts[w]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > max {
		order = order[:max]
	}
	if order == nil {
		return []string{}
	}
	return order
}

// TruncateText shortens text to at most max characters plus an ellipsis.
// When the last space before the cut lies beyond 80% of max the text is
// cut there instead, to avoid splitting a word.
func TruncateText(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	truncated := string(runes[:max])
	if idx := strings.LastIndex(truncated, " "); idx >= 0 && utf8.RuneCountInString(truncated[:idx]) > max*8/10 {
		truncated = truncated[:idx]
	}
	return truncated + "..."
}

// Excerpt returns the first max characters of text, appending an ellipsis
// when anything was cut.
func Excerpt(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}

// TextStats summarises a document body
type TextStats struct {
	Characters int `json:"characters"`
	Words      int `json:"words"`
	Sentences  int `json:"sentences"`
	Paragraphs int `json:"paragraphs"`
}

// Stats counts characters, words, sentences and paragraphs in text.
func Stats(text string) TextStats {
	if text == "" {
		return TextStats{}
	}

	stats := TextStats{
		Characters: utf8.RuneCountInString(text),
		Words:      len(wordPattern.FindAllString(text, -1)),
	}
	for _, s := range sentencePattern.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			stats.Sentences++
		}
	}
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) != "" {
			stats.Paragraphs++
		}
	}
	return stats
}
