// Package policies holds the predefined HR policy corpus.
package policies

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
)

//go:embed policies.yaml
var corpus []byte

// Policy is one predefined policy document
type Policy struct {
	Title         string `yaml:"title"`
	Category      string `yaml:"category"`
	Department    string `yaml:"department"`
	Version       string `yaml:"version"`
	EffectiveDate string `yaml:"effective_date"`
	Content       string `yaml:"content"`
}

// Request converts the policy into an ingestion request
func (p Policy) Request() domain.AddDocumentRequest {
	return domain.AddDocumentRequest{
		Title:    p.Title,
		Content:  p.Content,
		Category: p.Category,
		Metadata: map[string]any{
			domain.MetadataSource:        domain.SourcePredefined,
			domain.MetadataDepartment:    p.Department,
			domain.MetadataVersion:       p.Version,
			domain.MetadataEffectiveDate: p.EffectiveDate,
		},
	}
}

// Load parses the embedded corpus
func Load() ([]Policy, error) {
	return Parse(corpus)
}

// Parse decodes a YAML list of policies and validates each entry
func Parse(data []byte) ([]Policy, error) {
	var out []Policy
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse policies: %w", err)
	}
	for i, p := range out {
		req := p.Request()
		if err := req.Validate(); err != nil {
			return nil, fmt.Errorf("policy %d: %w", i, err)
		}
	}
	return out, nil
}
