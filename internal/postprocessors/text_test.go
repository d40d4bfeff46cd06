package postprocessors

import (
	"strings"
	"testing"
)

func TestClean(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"   ", ""},
		{"Hola   MUNDO", "hola mundo"},
		{"línea uno\n\n\nlínea dos\t\tfin ", "línea uno línea dos fin"},
	}

	for _, tt := range tests {
		if got := Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractKeywords(t *testing.T) {
	text := "El empleado solicita vacaciones. Las vacaciones del empleado se aprueban; " +
		"el salario no cambia durante las vacaciones."

	got := ExtractKeywords(text, 3)
	want := []string{"vacaciones", "empleado", "solicita"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestExtractKeywords_FiltersShortAndStopWords(t *testing.T) {
	got := ExtractKeywords("de la el ok sí y también también política", 10)
	if len(got) != 1 || got[0] != "política" {
		t.Errorf("expected [política], got %v", got)
	}
}

func TestExtractKeywords_Empty(t *testing.T) {
	if got := ExtractKeywords("", 10); len(got) != 0 {
		t.Errorf("expected no keywords, got %v", got)
	}
	if got := ExtractKeywords("bastante texto aquí", 0); len(got) != 0 {
		t.Errorf("expected no keywords for max 0, got %v", got)
	}
}

func TestTruncateText(t *testing.T) {
	if got := TruncateText("short", 10); got != "short" {
		t.Errorf("expected unchanged text, got %q", got)
	}

	// last space at index 9 is beyond 80% of 10
	if got := TruncateText("abcdefghi jklmnop", 10); got != "abcdefghi..." {
		t.Errorf("expected cut at word boundary, got %q", got)
	}

	// last space at index 2 is too early, keep the hard cut
	if got := TruncateText("ab cdefghijklmnop", 10); got != "ab cdefghi..." {
		t.Errorf("expected hard cut, got %q", got)
	}
}

func TestExcerpt(t *testing.T) {
	if got := Excerpt("ñandú", 5); got != "ñandú" {
		t.Errorf("expected unchanged text, got %q", got)
	}
	if got := Excerpt("ñandúes", 5); got != "ñandú..." {
		t.Errorf("expected rune-safe cut, got %q", got)
	}
}

func TestStats(t *testing.T) {
	stats := Stats("Primera frase. Segunda frase!\n\nOtro párrafo?")
	if stats.Words != 6 {
		t.Errorf("expected 6 words, got %d", stats.Words)
	}
	if stats.Sentences != 3 {
		t.Errorf("expected 3 sentences, got %d", stats.Sentences)
	}
	if stats.Paragraphs != 2 {
		t.Errorf("expected 2 paragraphs, got %d", stats.Paragraphs)
	}
	if Stats("") != (TextStats{}) {
		t.Error("expected zero stats for empty text")
	}
}
