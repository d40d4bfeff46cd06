package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/postprocessors"
)

const (
	// contextResults is how many results are passed to the generator
	contextResults = 3

	// excerptLength is the longest chunk excerpt quoted by template answers
	excerptLength = 400
)

// SystemPrompt instructs the answer generator
const SystemPrompt = `Eres un asistente de políticas de recursos humanos.
Responde únicamente con la información del contexto proporcionado.
Si el contexto no basta para responder, dilo claramente y sugiere consultar con Recursos Humanos.
Responde en el idioma de la pregunta, de forma breve y citando el documento de origen.`

// BuildContext concatenates the top results into the generator context.
func BuildContext(results []domain.SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		if i == contextResults {
			break
		}
		title := ""
		if r.Document != nil {
			title = r.Document.Title
		}
		text := ""
		if r.Chunk != nil {
			text = r.Chunk.Text
		}
		fmt.Fprintf(&b, "Document: %s\nContent: %s\n---\n", title, text)
	}
	return b.String()
}

// NoResultsAnswer is returned when nothing relevant was found.
func NoResultsAnswer(department string) string {
	if department != "" {
		return fmt.Sprintf("Lo siento, no encontré políticas relevantes para el departamento de %s. "+
			"Prueba a reformular la pregunta o consulta directamente con Recursos Humanos.", department)
	}
	return "Lo siento, no encontré información relevante en las políticas disponibles. " +
		"Prueba a reformular la pregunta o consulta directamente con Recursos Humanos."
}

// TemplateAnswer composes an answer from the best result without a generator.
func TemplateAnswer(results []domain.SearchResult, department string) string {
	if len(results) == 0 {
		return NoResultsAnswer(department)
	}
	top := results[0]

	var b strings.Builder
	if top.Document != nil {
		fmt.Fprintf(&b, "Según la política \"%s\"", top.Document.Title)
	} else {
		b.WriteString("Según las políticas disponibles")
	}
	if department != "" {
		fmt.Fprintf(&b, " (departamento de %s)", department)
	}
	b.WriteString(":\n\n")
	if top.Chunk != nil {
		b.WriteString(postprocessors.Excerpt(top.Chunk.Text, excerptLength))
	}
	if len(results) > 1 {
		fmt.Fprintf(&b, "\n\nOtros documentos relacionados: %d.", len(results)-1)
	}
	return b.String()
}
