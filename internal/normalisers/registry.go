package normalisers

import (
	"fmt"
	"mime"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driven"
)

var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry holds the normalisers used for policy files, ordered by
// descending priority. Equal priorities keep registration order.
type Registry struct {
	mu      sync.RWMutex
	entries []driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry knows plain text, Markdown and HTML.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&PlaintextNormaliser{})
	r.Register(&MarkdownNormaliser{})
	r.Register(&HTMLNormaliser{})
	return r
}

// Register inserts n after every entry of equal or higher priority.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.IndexFunc(r.entries, func(e driven.Normaliser) bool {
		return e.Priority() < n.Priority()
	})
	if i < 0 {
		r.entries = append(r.entries, n)
		return
	}
	r.entries = slices.Insert(r.entries, i, n)
}

// Get returns the first entry that accepts mimeType, or nil.
func (r *Registry) Get(mimeType string) driven.Normaliser {
	mediaType := baseMediaType(mimeType)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range r.entries {
		if accepts(n.SupportedTypes(), mediaType) {
			return n
		}
	}
	return nil
}

// Normalise converts content with the best normaliser for mimeType.
func (r *Registry) Normalise(content, mimeType string) (string, error) {
	n := r.Get(mimeType)
	if n == nil {
		return "", fmt.Errorf("%w: unsupported file type %s", domain.ErrInvalidInput, mimeType)
	}
	out, err := n.Normalise(content, mimeType)
	if err != nil {
		return "", fmt.Errorf("%w: normalise %s: %v", domain.ErrInvalidInput, mimeType, err)
	}
	return out, nil
}

// SupportedTypes lists the registered MIME types, wildcards included.
func (r *Registry) SupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var types []string
	for _, n := range r.entries {
		types = append(types, n.SupportedTypes()...)
	}
	slices.Sort(types)
	return slices.Compact(types)
}

// baseMediaType lowercases mimeType and drops parameters such as charset.
func baseMediaType(mimeType string) string {
	if mediaType, _, err := mime.ParseMediaType(mimeType); err == nil {
		return mediaType
	}
	mediaType, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// accepts matches exact types, "text/*" style wildcards and "*/*".
func accepts(supported []string, mediaType string) bool {
	for _, s := range supported {
		s = strings.ToLower(s)
		if s == "*/*" || s == mediaType {
			return true
		}
		if prefix, ok := strings.CutSuffix(s, "*"); ok && strings.HasSuffix(prefix, "/") && strings.HasPrefix(mediaType, prefix) {
			return true
		}
	}
	return false
}

var extensionTypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
	".html":     "text/html",
	".htm":      "text/html",
}

// DetectMIMEType guesses the MIME type of a policy file from its extension.
// Unknown extensions are treated as plain text.
func DetectMIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return baseMediaType(t)
	}
	return "text/plain"
}
