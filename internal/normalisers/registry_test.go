package normalisers

import (
	"errors"
	"strings"
	"testing"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driven"
)

type mockNormaliser struct {
	name     string
	types    []string
	priority int
}

func (m *mockNormaliser) Normalise(content string, mimeType string) (string, error) {
	return content + "-" + m.name, nil
}

func (m *mockNormaliser) SupportedTypes() []string {
	return m.types
}

func (m *mockNormaliser) Priority() int {
	return m.priority
}

func TestRegistry_Get_PrioritySelection(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNormaliser{name: "low", types: []string{"text/plain"}, priority: 10})
	r.Register(&mockNormaliser{name: "high", types: []string{"text/plain"}, priority: 90})
	r.Register(&mockNormaliser{name: "medium", types: []string{"text/plain"}, priority: 50})
	r.Register(&mockNormaliser{name: "high-late", types: []string{"text/plain"}, priority: 90})

	out, err := r.Normalise("x", "text/plain; charset=utf-8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "x-high" {
		t.Errorf("expected first registered high priority normaliser, got %q", out)
	}

	if r.Get("application/json") != nil {
		t.Error("expected nil for unregistered type")
	}
}

func TestRegistry_NormaliseUnsupported(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNormaliser{name: "md", types: []string{"text/markdown"}, priority: 50})

	_, err := r.Normalise("x", "application/pdf")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRegistry_SupportedTypes(t *testing.T) {
	got := DefaultRegistry().SupportedTypes()
	want := []string{"*/*", "application/xhtml+xml", "text/html", "text/markdown", "text/plain", "text/x-markdown"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("SupportedTypes() = %v, want %v", got, want)
	}
}

func TestAccepts(t *testing.T) {
	tests := []struct {
		supported []string
		mimeType  string
		want      bool
	}{
		{[]string{"text/plain"}, "text/plain", true},
		{[]string{"text/plain"}, "TEXT/PLAIN; charset=utf-8", true},
		{[]string{"text/*"}, "text/markdown", true},
		{[]string{"text/*"}, "application/json", false},
		{[]string{"*/*"}, "application/pdf", true},
		{[]string{"text/html"}, "text/plain", false},
	}

	for _, tt := range tests {
		if got := accepts(tt.supported, baseMediaType(tt.mimeType)); got != tt.want {
			t.Errorf("accepts(%v, %q) = %v, want %v", tt.supported, tt.mimeType, got, tt.want)
		}
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := map[string]string{
		"policies/vacaciones.md":  "text/markdown",
		"policies/Remoto.HTML":    "text/html",
		"policies/etica.txt":      "text/plain",
		"policies/no-extension":   "text/plain",
		"policies/guide.markdown": "text/markdown",
	}
	for path, want := range tests {
		if got := DetectMIMEType(path); got != want {
			t.Errorf("DetectMIMEType(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	tests := map[string]string{
		"text/plain":    "*normalisers.PlaintextNormaliser",
		"text/markdown": "*normalisers.MarkdownNormaliser",
		"text/html":     "*normalisers.HTMLNormaliser",
		"application/x": "*normalisers.PlaintextNormaliser",
	}
	for mimeType, want := range tests {
		n := r.Get(mimeType)
		if n == nil {
			t.Fatalf("expected normaliser for %s", mimeType)
		}
		if got := typeName(n); got != want {
			t.Errorf("for %s expected %s, got %s", mimeType, want, got)
		}
	}
}

func typeName(n driven.Normaliser) string {
	switch n.(type) {
	case *PlaintextNormaliser:
		return "*normalisers.PlaintextNormaliser"
	case *MarkdownNormaliser:
		return "*normalisers.MarkdownNormaliser"
	case *HTMLNormaliser:
		return "*normalisers.HTMLNormaliser"
	}
	return "unknown"
}

func TestPlaintextNormaliser(t *testing.T) {
	out, err := (&PlaintextNormaliser{}).Normalise("  línea\r\nsegunda\rtercera  ", "text/plain")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "línea\nsegunda\ntercera" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestMarkdownNormaliser(t *testing.T) {
	in := "# Política de Vacaciones\n\n\n\n" +
		"- **22 días** laborables\n" +
		"1. Solicitar en el [portal](https://example.com)\n" +
		"> Nota: aplica a todo el personal\n"

	out, err := (&MarkdownNormaliser{}).Normalise(in, "text/markdown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"Política de Vacaciones", "22 días laborables", "Solicitar en el portal", "Nota: aplica"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}
	for _, unwanted := range []string{"#", "**", "](", "\n\n\n"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("expected %q to be stripped, got %q", unwanted, out)
		}
	}
}

func TestHTMLNormaliser(t *testing.T) {
	in := `<html><head><title>Código de Ética</title><style>p{}</style></head>
<body><h1>Código de Ética</h1><script>alert(1)</script>
<p>Actuamos con <strong>integridad</strong> en todo momento.</p>
<ul><li>Sin conflictos de interés</li></ul></body></html>`

	out, err := (&HTMLNormaliser{}).Normalise(in, "text/html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"Código de Ética", "integridad", "Sin conflictos de interés"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}
	for _, unwanted := range []string{"alert", "<p>", "p{}"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("expected %q to be removed, got %q", unwanted, out)
		}
	}
}

func TestTitles(t *testing.T) {
	if got := HTMLTitle("<html><head><title> Ética </title></head></html>"); got != "Ética" {
		t.Errorf("expected Ética, got %q", got)
	}
	if got := HTMLTitle("<body><h1>Beneficios</h1></body>"); got != "Beneficios" {
		t.Errorf("expected Beneficios, got %q", got)
	}
	if got := MarkdownTitle("intro\n## Trabajo Remoto\ntexto"); got != "Trabajo Remoto" {
		t.Errorf("expected Trabajo Remoto, got %q", got)
	}
	if got := MarkdownTitle("sin encabezados"); got != "" {
		t.Errorf("expected empty title, got %q", got)
	}
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*PlaintextNormaliser)(nil)
	var _ driven.Normaliser = (*MarkdownNormaliser)(nil)
	var _ driven.Normaliser = (*HTMLNormaliser)(nil)
	var _ driven.NormaliserRegistry = (*Registry)(nil)
}
