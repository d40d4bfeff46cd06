package normalisers

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// normaliseLineEndings converts CRLF and CR to LF.
func normaliseLineEndings(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.ReplaceAll(content, "\r", "\n")
}

var (
	blankLines       = regexp.MustCompile(`\n{3,}`)
	markdownHeading  = regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}[ \t]+`)
	markdownBullet   = regexp.MustCompile(`(?m)^[ \t]*(?:[-*+•]|\d+\.)[ \t]+`)
	markdownQuote    = regexp.MustCompile(`(?m)^[ \t]*>[ \t]?`)
	markdownEmphasis = regexp.MustCompile(`(\*{1,3}|_{2,3})([^*_\n]+)(\*{1,3}|_{2,3})`)
	markdownLink     = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
)

// PlaintextNormaliser handles plain text content.
type PlaintextNormaliser struct{}

func (n *PlaintextNormaliser) Normalise(content string, mimeType string) (string, error) {
	return strings.TrimSpace(normaliseLineEndings(content)), nil
}

func (n *PlaintextNormaliser) SupportedTypes() []string {
	return []string{"text/plain", "*/*"}
}

func (n *PlaintextNormaliser) Priority() int {
	return 1
}

// MarkdownNormaliser strips Markdown syntax, keeping the text of headings,
// list items, quotes, emphasis and links.
type MarkdownNormaliser struct{}

func (n *MarkdownNormaliser) Normalise(content string, mimeType string) (string, error) {
	content = normaliseLineEndings(content)
	content = markdownHeading.ReplaceAllString(content, "")
	content = markdownBullet.ReplaceAllString(content, "")
	content = markdownQuote.ReplaceAllString(content, "")
	content = markdownLink.ReplaceAllString(content, "$1")
	content = markdownEmphasis.ReplaceAllString(content, "$2")
	content = blankLines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content), nil
}

func (n *MarkdownNormaliser) SupportedTypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

func (n *MarkdownNormaliser) Priority() int {
	return 50
}

// HTMLNormaliser converts an HTML policy page to Markdown, limited to the
// body with scripts and styles removed, then strips the Markdown syntax.
type HTMLNormaliser struct{}

func (n *HTMLNormaliser) Normalise(content string, mimeType string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}
	doc.Find("script, style, noscript, nav, footer").Remove()

	body, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("reading html body: %w", err)
	}
	if strings.TrimSpace(body) == "" {
		return strings.Join(strings.Fields(doc.Text()), " "), nil
	}

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(body)
	if err != nil {
		return "", fmt.Errorf("converting html: %w", err)
	}
	return (&MarkdownNormaliser{}).Normalise(markdown, "text/markdown")
}

func (n *HTMLNormaliser) SupportedTypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

func (n *HTMLNormaliser) Priority() int {
	return 50
}

// HTMLTitle returns the <title> or first <h1> text of an HTML document.
func HTMLTitle(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// MarkdownTitle returns the text of the first Markdown heading.
func MarkdownTitle(content string) string {
	for _, line := range strings.Split(normaliseLineEndings(content), "\n") {
		if loc := markdownHeading.FindStringIndex(line); loc != nil && loc[0] == 0 {
			return strings.TrimSpace(line[loc[1]:])
		}
	}
	return ""
}
