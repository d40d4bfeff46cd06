package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
)

func TestBuildContext_TopThree(t *testing.T) {
	results := []domain.SearchResult{
		result("Uno", "x", "texto uno", 0.9),
		result("Dos", "x", "texto dos", 0.8),
		result("Tres", "x", "texto tres", 0.7),
		result("Cuatro", "x", "texto cuatro", 0.6),
	}

	ctx := BuildContext(results)
	assert.Equal(t, 3, strings.Count(ctx, "---"))
	assert.Contains(t, ctx, "Document: Uno\nContent: texto uno\n---\n")
	assert.Contains(t, ctx, "Document: Tres")
	assert.NotContains(t, ctx, "Cuatro")
}

func TestBuildContext_Empty(t *testing.T) {
	assert.Equal(t, "", BuildContext(nil))
}

func TestTemplateAnswer(t *testing.T) {
	long := strings.Repeat("a", 450)
	results := []domain.SearchResult{result("Vacaciones", "vacaciones", long, 0.9)}

	answer := TemplateAnswer(results, "")
	assert.Contains(t, answer, `"Vacaciones"`)
	assert.Contains(t, answer, strings.Repeat("a", 400)+"...")
	assert.NotContains(t, answer, strings.Repeat("a", 401))
	assert.NotContains(t, answer, "Otros documentos")
}

func TestTemplateAnswer_ShortChunkNoEllipsis(t *testing.T) {
	results := []domain.SearchResult{
		result("Vacaciones", "vacaciones", "25 días al año", 0.9),
		result("Permisos", "vacaciones", "permisos", 0.5),
	}

	answer := TemplateAnswer(results, "rrhh")
	assert.Contains(t, answer, "25 días al año")
	assert.NotContains(t, answer, "...")
	assert.Contains(t, answer, "departamento de rrhh")
	assert.Contains(t, answer, "Otros documentos relacionados: 1.")
}

func TestNoResultsAnswer(t *testing.T) {
	assert.NotContains(t, NoResultsAnswer(""), "departamento")
	assert.Contains(t, NoResultsAnswer("legal"), "departamento de legal")
	assert.Equal(t, NoResultsAnswer("it"), TemplateAnswer(nil, "it"))
}
