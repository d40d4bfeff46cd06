package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/custodia-labs/policy-rag/internal/adapters/driven/ai"
	"github.com/custodia-labs/policy-rag/internal/app"
	"github.com/custodia-labs/policy-rag/internal/config"
	"github.com/custodia-labs/policy-rag/internal/core/domain"
)

// Mock services for testing

type mockRAGService struct {
	addFn        func(ctx context.Context, req domain.AddDocumentRequest) (int64, error)
	searchFn     func(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
	askFn        func(ctx context.Context, query string, opts domain.AskOptions) (*domain.RAGResponse, error)
	getFn        func(ctx context.Context, id int64) (*domain.Document, error)
	byCategoryFn func(ctx context.Context, category string) ([]*domain.Document, error)
	deleteFn     func(ctx context.Context, id int64) error
	categoriesFn func(ctx context.Context) ([]string, error)
	statsFn      func(ctx context.Context) (*domain.SystemStats, error)
}

func (m *mockRAGService) AddDocument(ctx context.Context, req domain.AddDocumentRequest) (int64, error) {
	if m.addFn != nil {
		return m.addFn(ctx, req)
	}
	return 0, errors.New("not implemented")
}

func (m *mockRAGService) SearchDocuments(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, opts)
	}
	return nil, errors.New("not implemented")
}

func (m *mockRAGService) GenerateResponse(ctx context.Context, query string, useGenerator bool) (*domain.RAGResponse, error) {
	return m.Ask(ctx, query, domain.AskOptions{UseGenerator: useGenerator})
}

func (m *mockRAGService) Ask(ctx context.Context, query string, opts domain.AskOptions) (*domain.RAGResponse, error) {
	if m.askFn != nil {
		return m.askFn(ctx, query, opts)
	}
	return nil, errors.New("not implemented")
}

func (m *mockRAGService) GetDocument(ctx context.Context, id int64) (*domain.Document, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockRAGService) DocumentsByCategory(ctx context.Context, category string) ([]*domain.Document, error) {
	if m.byCategoryFn != nil {
		return m.byCategoryFn(ctx, category)
	}
	return nil, nil
}

func (m *mockRAGService) DeleteDocument(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return domain.ErrNotFound
}

func (m *mockRAGService) DocumentCount(ctx context.Context) (int, error) {
	return 0, nil
}

func (m *mockRAGService) Categories(ctx context.Context) ([]string, error) {
	if m.categoriesFn != nil {
		return m.categoriesFn(ctx)
	}
	return nil, nil
}

func (m *mockRAGService) DepartmentCategories(ctx context.Context, department string) ([]string, error) {
	d, ok := domain.LookupDepartment(department)
	if !ok {
		return nil, domain.ErrUnknownDepartment
	}
	return d.Categories, nil
}

func (m *mockRAGService) Stats(ctx context.Context) (*domain.SystemStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return &domain.SystemStats{}, nil
}

type mockIngestionService struct {
	enqueueFn    func(ctx context.Context, req domain.AddDocumentRequest) (string, error)
	taskStatusFn func(ctx context.Context, id string) (*domain.Task, error)
}

func (m *mockIngestionService) SeedPolicies(ctx context.Context) (int, error) { return 0, nil }

func (m *mockIngestionService) IngestFile(ctx context.Context, path, category string) (int64, error) {
	return 0, nil
}

func (m *mockIngestionService) IngestGlob(ctx context.Context, pattern, category string) ([]int64, error) {
	return nil, nil
}

func (m *mockIngestionService) Watch(ctx context.Context, dir, pattern, category string) error {
	return nil
}

func (m *mockIngestionService) Enqueue(ctx context.Context, req domain.AddDocumentRequest) (string, error) {
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, req)
	}
	return "", domain.ErrServiceUnavailable
}

func (m *mockIngestionService) EnqueueSeed(ctx context.Context) (string, error) { return "", nil }

func (m *mockIngestionService) TaskStatus(ctx context.Context, id string) (*domain.Task, error) {
	if m.taskStatusFn != nil {
		return m.taskStatusFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockIngestionService) ProcessTask(ctx context.Context, task *domain.Task) error {
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(rag *mockRAGService, ingestion *mockIngestionService, checks map[string]Pinger) *Server {
	if rag == nil {
		rag = &mockRAGService{}
	}
	cfg := DefaultConfig()
	cfg.Version = "1.2.3"
	if ingestion == nil {
		return NewServer(cfg, rag, nil, checks, quietLogger())
	}
	return NewServer(cfg, rag, ingestion, checks, quietLogger())
}

func do(t *testing.T, s *Server, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("failed to marshal body: %v", err)
			}
			reader = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, target, reader)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHandleHealth(t *testing.T) {
	rr := do(t, newTestServer(nil, nil, nil), "GET", "/health", nil)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if resp := decode[StatusResponse](t, rr); resp.Status != "ok" {
		t.Errorf("expected status ok, got %s", resp.Status)
	}
}

func TestHandleVersion(t *testing.T) {
	rr := do(t, newTestServer(nil, nil, nil), "GET", "/version", nil)

	if resp := decode[VersionResponse](t, rr); resp.Version != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %s", resp.Version)
	}
}

func TestHandleReady(t *testing.T) {
	t.Run("all backends reachable", func(t *testing.T) {
		checks := map[string]Pinger{
			"storage": PingFunc(func(ctx context.Context) error { return nil }),
		}
		rr := do(t, newTestServer(nil, nil, checks), "GET", "/ready", nil)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
		resp := decode[ReadyResponse](t, rr)
		if resp.Checks["storage"] != "ok" {
			t.Errorf("expected storage ok, got %q", resp.Checks["storage"])
		}
	})

	t.Run("one backend down", func(t *testing.T) {
		checks := map[string]Pinger{
			"storage": PingFunc(func(ctx context.Context) error { return nil }),
			"redis":   PingFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
		}
		rr := do(t, newTestServer(nil, nil, checks), "GET", "/ready", nil)

		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", rr.Code)
		}
		resp := decode[ReadyResponse](t, rr)
		if resp.Status != "unavailable" {
			t.Errorf("expected status unavailable, got %s", resp.Status)
		}
		if resp.Checks["redis"] != "unavailable" {
			t.Errorf("expected redis unavailable, got %q", resp.Checks["redis"])
		}
	})
}

func TestHandleAsk(t *testing.T) {
	var gotQuery string
	var gotOpts domain.AskOptions
	rag := &mockRAGService{
		askFn: func(ctx context.Context, query string, opts domain.AskOptions) (*domain.RAGResponse, error) {
			gotQuery, gotOpts = query, opts
			return &domain.RAGResponse{
				Answer:       "Tienes 22 días hábiles.",
				Query:        query,
				Confidence:   0.42,
				AnswerSource: domain.AnswerSourceTemplate,
			}, nil
		},
	}
	s := newTestServer(rag, nil, nil)

	rr := do(t, s, "POST", "/api/v1/ask", map[string]any{
		"query":      "¿Cuántos días de vacaciones tengo?",
		"top_k":      3,
		"department": "rrhh",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotQuery != "¿Cuántos días de vacaciones tengo?" {
		t.Errorf("unexpected query %q", gotQuery)
	}
	if gotOpts.TopK != 3 || gotOpts.Department != "rrhh" {
		t.Errorf("unexpected options %+v", gotOpts)
	}
	if !gotOpts.UseGenerator {
		t.Error("expected use_generator to default to true")
	}
	resp := decode[domain.RAGResponse](t, rr)
	if resp.Answer != "Tienes 22 días hábiles." {
		t.Errorf("unexpected answer %q", resp.Answer)
	}
}

func TestHandleAsk_InvalidBody(t *testing.T) {
	rr := do(t, newTestServer(nil, nil, nil), "POST", "/api/v1/ask", "{not json")

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleAskQuery(t *testing.T) {
	var gotOpts domain.AskOptions
	rag := &mockRAGService{
		askFn: func(ctx context.Context, query string, opts domain.AskOptions) (*domain.RAGResponse, error) {
			gotOpts = opts
			return &domain.RAGResponse{Query: query}, nil
		},
	}
	s := newTestServer(rag, nil, nil)

	rr := do(t, s, "GET", "/api/v1/ask?q=teletrabajo&top_k=2&category=trabajo_remoto&use_generator=false", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotOpts.TopK != 2 || gotOpts.Category != "trabajo_remoto" || gotOpts.UseGenerator {
		t.Errorf("unexpected options %+v", gotOpts)
	}

	tests := []struct {
		name   string
		target string
	}{
		{"non-numeric top_k", "/api/v1/ask?q=x&top_k=many"},
		{"non-boolean use_generator", "/api/v1/ask?q=x&use_generator=maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, s, "GET", tt.target, nil)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", rr.Code)
			}
		})
	}
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
		kind     string
	}{
		{"invalid query", fmt.Errorf("%w: query is empty", domain.ErrInvalidQuery), http.StatusBadRequest, "invalid_query"},
		{"unknown department", domain.ErrUnknownDepartment, http.StatusBadRequest, "invalid_query"},
		{"invalid input", domain.ErrMissingTitle, http.StatusBadRequest, "invalid_input"},
		{"not found", domain.ErrNotFound, http.StatusNotFound, "not_found"},
		{"embedding failure", fmt.Errorf("%w: timeout", domain.ErrEmbeddingGeneration), http.StatusServiceUnavailable, "embedding_generation"},
		{"search failure", domain.ErrSearchFailure, http.StatusServiceUnavailable, "search_failure"},
		{"unavailable", domain.ErrServiceUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{"uncategorised", errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rag := &mockRAGService{
				askFn: func(ctx context.Context, query string, opts domain.AskOptions) (*domain.RAGResponse, error) {
					return nil, tt.err
				},
			}
			rr := do(t, newTestServer(rag, nil, nil), "POST", "/api/v1/ask", map[string]string{"query": "x"})

			if rr.Code != tt.expected {
				t.Errorf("expected status %d, got %d", tt.expected, rr.Code)
			}
			resp := decode[ErrorResponse](t, rr)
			if resp.Kind != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, resp.Kind)
			}
			if tt.expected == http.StatusInternalServerError && resp.Error != "internal server error" {
				t.Errorf("internal error message leaked: %q", resp.Error)
			}
		})
	}
}

func TestHandleSearch(t *testing.T) {
	rag := &mockRAGService{
		searchFn: func(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
			if opts.Category != "beneficios" || opts.TopK != 4 {
				t.Errorf("unexpected options %+v", opts)
			}
			return []domain.SearchResult{
				{Document: &domain.Document{ID: 1, Title: "Beneficios"}, Chunk: &domain.Chunk{Text: "seguro médico"}, RelevanceScore: 0.7},
			}, nil
		},
	}
	rr := do(t, newTestServer(rag, nil, nil), "POST", "/api/v1/search", map[string]any{
		"query":    "seguro",
		"top_k":    4,
		"category": "beneficios",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	resp := decode[CountResponse[domain.SearchResult]](t, rr)
	if resp.Count != 1 || resp.Items[0].Document.Title != "Beneficios" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandleAddDocument(t *testing.T) {
	rag := &mockRAGService{
		addFn: func(ctx context.Context, req domain.AddDocumentRequest) (int64, error) {
			if err := req.Validate(); err != nil {
				return 0, err
			}
			return 12, nil
		},
	}
	s := newTestServer(rag, nil, nil)

	rr := do(t, s, "POST", "/api/v1/documents", map[string]any{
		"title":    "Política de viajes",
		"content":  "Los viajes se reservan con antelación.",
		"category": "viajes",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if resp := decode[IDResponse](t, rr); resp.ID != 12 {
		t.Errorf("expected id 12, got %d", resp.ID)
	}

	rr = do(t, s, "POST", "/api/v1/documents", map[string]any{"content": "sin título", "category": "x"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for missing title, got %d", rr.Code)
	}
}

func TestHandleAddDocument_Async(t *testing.T) {
	doc := map[string]any{"title": "T", "content": "C", "category": "c"}

	t.Run("queued", func(t *testing.T) {
		ingestion := &mockIngestionService{
			enqueueFn: func(ctx context.Context, req domain.AddDocumentRequest) (string, error) {
				if req.Title != "T" {
					t.Errorf("unexpected request %+v", req)
				}
				return "task-1", nil
			},
		}
		rr := do(t, newTestServer(nil, ingestion, nil), "POST", "/api/v1/documents?async=true", doc)

		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d", rr.Code)
		}
		resp := decode[TaskResponse](t, rr)
		if resp.TaskID != "task-1" || resp.Status != "pending" {
			t.Errorf("unexpected response %+v", resp)
		}
	})

	t.Run("async flag in body", func(t *testing.T) {
		ingestion := &mockIngestionService{
			enqueueFn: func(ctx context.Context, req domain.AddDocumentRequest) (string, error) {
				return "task-2", nil
			},
		}
		body := map[string]any{"title": "T", "content": "C", "category": "c", "async": true}
		rr := do(t, newTestServer(nil, ingestion, nil), "POST", "/api/v1/documents", body)

		if rr.Code != http.StatusAccepted {
			t.Errorf("expected status 202, got %d", rr.Code)
		}
	})

	t.Run("no queue configured", func(t *testing.T) {
		rr := do(t, newTestServer(nil, &mockIngestionService{}, nil), "POST", "/api/v1/documents?async=true", doc)
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", rr.Code)
		}
	})

	t.Run("no ingestion service", func(t *testing.T) {
		rr := do(t, newTestServer(nil, nil, nil), "POST", "/api/v1/documents?async=true", doc)
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", rr.Code)
		}
	})
}

func TestHandleGetDocument(t *testing.T) {
	rag := &mockRAGService{
		getFn: func(ctx context.Context, id int64) (*domain.Document, error) {
			if id == 7 {
				return &domain.Document{ID: 7, Title: "Código de ética"}, nil
			}
			return nil, domain.ErrNotFound
		},
	}
	s := newTestServer(rag, nil, nil)

	tests := []struct {
		name     string
		target   string
		expected int
	}{
		{"found", "/api/v1/documents/7", http.StatusOK},
		{"unknown id", "/api/v1/documents/99", http.StatusNotFound},
		{"non-numeric id", "/api/v1/documents/abc", http.StatusBadRequest},
		{"zero id", "/api/v1/documents/0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, s, "GET", tt.target, nil)
			if rr.Code != tt.expected {
				t.Errorf("expected status %d, got %d", tt.expected, rr.Code)
			}
		})
	}
}

func TestHandleDeleteDocument(t *testing.T) {
	deleted := false
	rag := &mockRAGService{
		deleteFn: func(ctx context.Context, id int64) error {
			if id != 3 {
				return domain.ErrNotFound
			}
			deleted = true
			return nil
		},
	}
	s := newTestServer(rag, nil, nil)

	rr := do(t, s, "DELETE", "/api/v1/documents/3", nil)
	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rr.Code)
	}
	if !deleted {
		t.Error("expected document to be deleted")
	}

	rr = do(t, s, "DELETE", "/api/v1/documents/4", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleGetTask(t *testing.T) {
	ingestion := &mockIngestionService{
		taskStatusFn: func(ctx context.Context, id string) (*domain.Task, error) {
			if id != "task-1" {
				return nil, domain.ErrNotFound
			}
			return &domain.Task{ID: id, Status: domain.TaskStatusCompleted, DocumentID: 5}, nil
		},
	}
	s := newTestServer(nil, ingestion, nil)

	rr := do(t, s, "GET", "/api/v1/tasks/task-1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if task := decode[domain.Task](t, rr); task.DocumentID != 5 {
		t.Errorf("expected document id 5, got %d", task.DocumentID)
	}

	rr = do(t, s, "GET", "/api/v1/tasks/other", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleCatalogue(t *testing.T) {
	rag := &mockRAGService{
		categoriesFn: func(ctx context.Context) ([]string, error) {
			return []string{"beneficios", "vacaciones"}, nil
		},
		byCategoryFn: func(ctx context.Context, category string) ([]*domain.Document, error) {
			if category != "vacaciones" {
				return nil, nil
			}
			return []*domain.Document{{ID: 1, Title: "Vacaciones", Category: category}}, nil
		},
	}
	s := newTestServer(rag, nil, nil)

	rr := do(t, s, "GET", "/api/v1/categories", nil)
	if resp := decode[CountResponse[string]](t, rr); resp.Count != 2 {
		t.Errorf("expected 2 categories, got %d", resp.Count)
	}

	rr = do(t, s, "GET", "/api/v1/categories/vacaciones/documents", nil)
	if resp := decode[CountResponse[domain.Document]](t, rr); resp.Count != 1 || resp.Items[0].Title != "Vacaciones" {
		t.Errorf("unexpected documents %+v", resp)
	}

	rr = do(t, s, "GET", "/api/v1/categories/empty/documents", nil)
	resp := decode[CountResponse[domain.Document]](t, rr)
	if resp.Count != 0 || resp.Items == nil {
		t.Errorf("expected empty non-nil list, got %+v", resp)
	}
}

func TestHandleDepartments(t *testing.T) {
	s := newTestServer(nil, nil, nil)

	rr := do(t, s, "GET", "/api/v1/departments", nil)
	resp := decode[CountResponse[domain.Department]](t, rr)
	if resp.Count != len(domain.DepartmentNames()) {
		t.Errorf("expected %d departments, got %d", len(domain.DepartmentNames()), resp.Count)
	}

	rr = do(t, s, "GET", "/api/v1/departments/legal/categories", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	categories := decode[CountResponse[string]](t, rr)
	if categories.Count != 4 {
		t.Errorf("expected 4 legal categories, got %d", categories.Count)
	}

	rr = do(t, s, "GET", "/api/v1/departments/astronomia/categories", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleStats(t *testing.T) {
	rag := &mockRAGService{
		statsFn: func(ctx context.Context) (*domain.SystemStats, error) {
			return &domain.SystemStats{Documents: 7, Chunks: 7, EncoderModel: "blake2b-hash"}, nil
		},
	}
	rr := do(t, newTestServer(rag, nil, nil), "GET", "/api/v1/stats", nil)

	stats := decode[domain.SystemStats](t, rr)
	if stats.Documents != 7 || stats.EncoderModel != "blake2b-hash" {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rr := do(t, newTestServer(nil, nil, nil), "PUT", "/api/v1/ask", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rr.Code)
	}
}

// TestServer_WithSeededCorpus drives the real services end to end.
func TestServer_WithSeededCorpus(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "rag.db")

	a, err := app.New(ctx, cfg, quietLogger())
	if err != nil {
		t.Fatalf("failed to build app: %v", err)
	}
	defer a.Close()
	a.Seed(ctx)

	checks := make(map[string]Pinger)
	for _, c := range a.Checks() {
		checks[c.Name] = PingFunc(c.Ping)
	}
	s := NewServer(DefaultConfig(), a.RAG, a.Ingestion, checks, quietLogger())

	rr := do(t, s, "GET", "/ready", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected ready, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = do(t, s, "POST", "/api/v1/ask", map[string]string{"query": "¿Puedo trabajar desde casa?"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[domain.RAGResponse](t, rr)
	if resp.Answer == "" || len(resp.Sources) == 0 {
		t.Errorf("expected an answer with sources, got %+v", resp)
	}

	rr = do(t, s, "POST", "/api/v1/ask", map[string]string{"query": "   "})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for blank query, got %d", rr.Code)
	}

	rr = do(t, s, "POST", "/api/v1/ask", map[string]any{"query": "vacaciones", "top_k": 51})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for top_k 51, got %d", rr.Code)
	}

	rr = do(t, s, "POST", "/api/v1/documents", map[string]string{
		"title":    "Política de viajes",
		"content":  "Los viajes de empresa se reservan con dos semanas de antelación.",
		"category": "viajes",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	id := decode[IDResponse](t, rr).ID

	rr = do(t, s, "GET", fmt.Sprintf("/api/v1/documents/%d", id), nil)
	if doc := decode[domain.Document](t, rr); doc.Title != "Política de viajes" {
		t.Errorf("unexpected document %+v", doc)
	}

	rr = do(t, s, "DELETE", fmt.Sprintf("/api/v1/documents/%d", id), nil)
	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rr.Code)
	}
	rr = do(t, s, "GET", fmt.Sprintf("/api/v1/documents/%d", id), nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404 after delete, got %d", rr.Code)
	}
}

func TestServer_StartStopsOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	s := NewServer(cfg, &mockRAGService{}, nil, nil, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

// TestAsk_UpstreamErrorDetailStaysInLogs points the encoder at a provider
// that rejects every request and checks the client only sees the kind.
func TestAsk_UpstreamErrorDetailStaysInLogs(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached for text-embedding-3-small in organization org-SECRET","type":"requests","code":"rate_limit_exceeded"}}`))
	}))
	defer upstream.Close()

	ctx := context.Background()
	cfg := config.Default()
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "rag.db")
	cfg.Ingestion.SeedOnStart = false

	var logs bytes.Buffer
	a, err := app.New(ctx, cfg, slog.New(slog.NewTextHandler(&logs, nil)))
	if err != nil {
		t.Fatalf("failed to build app: %v", err)
	}
	defer a.Close()

	encoder, err := ai.NewOpenAIEmbedding("sk-test", "text-embedding-3-small", upstream.URL, 0)
	if err != nil {
		t.Fatalf("failed to build encoder: %v", err)
	}
	a.Runtime.SetEmbeddingService(encoder, false)

	s := NewServer(DefaultConfig(), a.RAG, a.Ingestion, nil, quietLogger())
	rr := do(t, s, "POST", "/api/v1/ask", map[string]string{"query": "¿Cuántos días de vacaciones tengo?"})

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d: %s", rr.Code, rr.Body.String())
	}
	for _, secret := range []string{"org-SECRET", "text-embedding-3-small", "rate_limit_exceeded"} {
		if strings.Contains(rr.Body.String(), secret) {
			t.Errorf("response leaked %q: %s", secret, rr.Body.String())
		}
	}
	resp := decode[ErrorResponse](t, rr)
	if resp.Kind != "embedding_generation" || resp.Error != "embedding generation failed" {
		t.Errorf("unexpected error response %+v", resp)
	}
	if !strings.Contains(logs.String(), "org-SECRET") {
		t.Errorf("expected the upstream error in the logs, got %q", logs.String())
	}
}
