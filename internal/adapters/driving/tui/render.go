package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/postprocessors"
)

const sourceExcerptLength = 160

// answerMarkdown formats a response as markdown for glamour.
func answerMarkdown(resp *domain.RAGResponse) string {
	var b strings.Builder
	b.WriteString("## Respuesta\n\n")
	b.WriteString(resp.Answer)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "_Confianza %.2f · %s_\n", resp.Confidence, resp.AnswerSource)

	if len(resp.Sources) == 0 {
		return b.String()
	}
	b.WriteString("\n### Fuentes\n\n")
	for i, src := range resp.Sources {
		if src.Document == nil {
			continue
		}
		fmt.Fprintf(&b, "%d. **%s** (%s) · %.3f\n", i+1, src.Document.Title, src.Document.Category, src.RelevanceScore)
		if src.Chunk != nil {
			fmt.Fprintf(&b, "   > %s\n", postprocessors.Excerpt(src.Chunk.Text, sourceExcerptLength))
		}
	}
	return b.String()
}

// markdownRenderer renders markdown at a fixed wrap width, falling back to
// the raw text when glamour cannot be initialised.
type markdownRenderer struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
}

func newMarkdownRenderer(style string) *markdownRenderer {
	if style == "" {
		style = "dark"
	}
	return &markdownRenderer{style: style}
}

// Render formats md for the given width.
func (r *markdownRenderer) Render(md string, width int) string {
	if width < 20 {
		width = 20
	}
	if r.renderer == nil || r.width != width {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStylePath(r.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return md
		}
		r.renderer, r.width = renderer, width
	}

	out, err := r.renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
