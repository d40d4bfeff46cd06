package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/postprocessors"
)

const excerptLength = 300

// AskInput is the input schema for the ask_policy tool.
type AskInput struct {
	Question   string `json:"question" jsonschema:"the question about company policies"`
	Department string `json:"department,omitempty" jsonschema:"department to focus on, e.g. rrhh, it, legal"`
	Category   string `json:"category,omitempty" jsonschema:"restrict the answer to one policy category"`
	TopK       int    `json:"top_k,omitempty" jsonschema:"number of policy excerpts to consult (default 5)"`
}

// AskOutput is the output schema for the ask_policy tool.
type AskOutput struct {
	Answer       string         `json:"answer"`
	Confidence   float64        `json:"confidence"`
	AnswerSource string         `json:"answer_source"`
	Sources      []SourceOutput `json:"sources"`
}

// SearchInput is the input schema for the search_policies tool.
type SearchInput struct {
	Query    string `json:"query" jsonschema:"text to look for in the policy corpus"`
	Category string `json:"category,omitempty" jsonschema:"restrict results to one policy category"`
	TopK     int    `json:"top_k,omitempty" jsonschema:"maximum number of results to return (default 5)"`
}

// SearchOutput is the output schema for the search_policies tool.
type SearchOutput struct {
	Results []SourceOutput `json:"results"`
	Count   int            `json:"count"`
}

// SourceOutput is one retrieved policy excerpt.
type SourceOutput struct {
	DocumentID int64   `json:"document_id"`
	Title      string  `json:"title"`
	Category   string  `json:"category"`
	Score      float64 `json:"score"`
	Excerpt    string  `json:"excerpt"`
}

// CategoriesInput is the input schema for the list_categories tool.
type CategoriesInput struct {
	Department string `json:"department,omitempty" jsonschema:"only list the categories this department owns"`
}

// CategoriesOutput is the output schema for the list_categories tool.
type CategoriesOutput struct {
	Categories  []string `json:"categories"`
	Departments []string `json:"departments"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask_policy",
		Description: "Answer a question about company HR policies, citing the policy documents used",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_policies",
		Description: "Find the policy excerpts most similar to a query",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_categories",
		Description: "List the policy categories, optionally those owned by one department",
	}, s.handleListCategories)
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	resp, err := s.rag.Ask(ctx, input.Question, domain.AskOptions{
		TopK:         input.TopK,
		Category:     input.Category,
		Department:   input.Department,
		UseGenerator: true,
	})
	if err != nil {
		return nil, AskOutput{}, publicError(err)
	}

	return nil, AskOutput{
		Answer:       resp.Answer,
		Confidence:   resp.Confidence,
		AnswerSource: string(resp.AnswerSource),
		Sources:      toSources(resp.Sources),
	}, nil
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	results, err := s.rag.SearchDocuments(ctx, input.Query, domain.SearchOptions{
		TopK:     input.TopK,
		Category: input.Category,
	})
	if err != nil {
		return nil, SearchOutput{}, publicError(err)
	}

	sources := toSources(results)
	return nil, SearchOutput{Results: sources, Count: len(sources)}, nil
}

func (s *Server) handleListCategories(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CategoriesInput,
) (*mcp.CallToolResult, CategoriesOutput, error) {
	var (
		categories []string
		err        error
	)
	if input.Department != "" {
		categories, err = s.rag.DepartmentCategories(ctx, input.Department)
	} else {
		categories, err = s.rag.Categories(ctx)
	}
	if err != nil {
		return nil, CategoriesOutput{}, publicError(err)
	}
	if categories == nil {
		categories = []string{}
	}

	return nil, CategoriesOutput{
		Categories:  categories,
		Departments: domain.DepartmentNames(),
	}, nil
}

func toSources(results []domain.SearchResult) []SourceOutput {
	out := make([]SourceOutput, 0, len(results))
	for _, r := range results {
		src := SourceOutput{Score: r.RelevanceScore}
		if r.Document != nil {
			src.DocumentID = r.Document.ID
			src.Title = r.Document.Title
			src.Category = r.Document.Category
		}
		if r.Chunk != nil {
			src.Excerpt = postprocessors.Excerpt(r.Chunk.Text, excerptLength)
		}
		out = append(out, src)
	}
	return out
}
