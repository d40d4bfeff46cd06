package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid query"`
	Kind  string `json:"kind,omitempty" example:"invalid_query"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ReadyResponse reports the state of every backend probe
// @Description Readiness status with per-backend results
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// IDResponse carries the ID of a created document
// @Description Created document ID
type IDResponse struct {
	ID int64 `json:"id" example:"12"`
}

// TaskResponse carries the ID of a queued ingestion task
// @Description Queued task ID
type TaskResponse struct {
	TaskID string `json:"task_id" example:"5a7c1e0e-9f64-4a53-a0c2-9d1c1f6f4a11"`
	Status string `json:"status" example:"pending"`
}

// CountResponse wraps a list with its length
// @Description List with count
type CountResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newCountResponse[T any](items []T) CountResponse[T] {
	if items == nil {
		items = []T{}
	}
	return CountResponse[T]{Items: items, Count: len(items)}
}

const readyTimeout = 2 * time.Second

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the storage, cache and queue backends
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse  "A backend is unreachable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(s.checks))}
	status := http.StatusOK
	for name, check := range s.checks {
		if err := check.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", "check", name, "error", err)
			resp.Checks[name] = "unavailable"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// Question answering

type askRequest struct {
	Query        string `json:"query"`
	TopK         int    `json:"top_k,omitempty"`
	Category     string `json:"category,omitempty"`
	Department   string `json:"department,omitempty"`
	UseGenerator *bool  `json:"use_generator,omitempty"`
}

func (req askRequest) options() domain.AskOptions {
	useGenerator := true
	if req.UseGenerator != nil {
		useGenerator = *req.UseGenerator
	}
	return domain.AskOptions{
		TopK:         req.TopK,
		Category:     req.Category,
		Department:   req.Department,
		UseGenerator: useGenerator,
	}
}

// handleAsk godoc
// @Summary      Ask a question
// @Description  Answer a question from the policy corpus, optionally scoped to a category and department
// @Tags         Ask
// @Accept       json
// @Produce      json
// @Param        request  body      askRequest  true  "Question"
// @Success      200      {object}  domain.RAGResponse
// @Failure      400      {object}  ErrorResponse  "Empty or too long query, bad top_k or unknown department"
// @Failure      503      {object}  ErrorResponse  "Embedding or search backend failed"
// @Router       /ask [post]
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.ask(w, r, req)
}

// handleAskQuery godoc
// @Summary      Ask a question
// @Description  Query-string form of POST /ask
// @Tags         Ask
// @Produce      json
// @Param        q              query     string  true   "Question"
// @Param        top_k          query     int     false  "Number of chunks to retrieve"
// @Param        category       query     string  false  "Restrict to a category"
// @Param        department     query     string  false  "Department to bias towards"
// @Param        use_generator  query     bool    false  "Compose the answer with the generator"
// @Success      200            {object}  domain.RAGResponse
// @Failure      400            {object}  ErrorResponse  "Invalid query"
// @Failure      503            {object}  ErrorResponse  "Embedding or search backend failed"
// @Router       /ask [get]
func (s *Server) handleAskQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := askRequest{
		Query:      q.Get("q"),
		Category:   q.Get("category"),
		Department: q.Get("department"),
	}
	if v := q.Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "top_k must be an integer")
			return
		}
		req.TopK = n
	}
	if v := q.Get("use_generator"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "use_generator must be a boolean")
			return
		}
		req.UseGenerator = &b
	}
	s.ask(w, r, req)
}

func (s *Server) ask(w http.ResponseWriter, r *http.Request, req askRequest) {
	resp, err := s.ragService.Ask(r.Context(), req.Query, req.options())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type searchRequest struct {
	Query    string `json:"query"`
	TopK     int    `json:"top_k,omitempty"`
	Category string `json:"category,omitempty"`
}

// handleSearch godoc
// @Summary      Search policy chunks
// @Description  Return the chunks most similar to the query, best first, without composing an answer
// @Tags         Ask
// @Accept       json
// @Produce      json
// @Param        request  body      searchRequest  true  "Search query"
// @Success      200      {object}  CountResponse[domain.SearchResult]
// @Failure      400      {object}  ErrorResponse  "Invalid request or query"
// @Failure      503      {object}  ErrorResponse  "Embedding or search backend failed"
// @Router       /search [post]
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := s.ragService.SearchDocuments(r.Context(), req.Query, domain.SearchOptions{
		TopK:     req.TopK,
		Category: req.Category,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newCountResponse(results))
}

// Document endpoints

type addDocumentRequest struct {
	domain.AddDocumentRequest
	Async bool `json:"async,omitempty"`
}

// handleAddDocument godoc
// @Summary      Add document
// @Description  Chunk, embed and store a policy document. With async=true the document is queued for the worker instead.
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Param        request  body      addDocumentRequest  true  "Document"
// @Param        async    query     bool                false "Queue instead of ingesting inline"
// @Success      201      {object}  IDResponse
// @Success      202      {object}  TaskResponse
// @Failure      400      {object}  ErrorResponse  "Missing title, content or category"
// @Failure      503      {object}  ErrorResponse  "Embedding backend or queue unavailable"
// @Router       /documents [post]
func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	var req addDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if v := r.URL.Query().Get("async"); v != "" {
		async, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "async must be a boolean")
			return
		}
		req.Async = async
	}

	if req.Async {
		if s.ingestionService == nil {
			writeError(w, http.StatusServiceUnavailable, "async ingestion is not configured")
			return
		}
		taskID, err := s.ingestionService.Enqueue(r.Context(), req.AddDocumentRequest)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, TaskResponse{TaskID: taskID, Status: string(domain.TaskStatusPending)})
		return
	}

	id, err := s.ragService.AddDocument(r.Context(), req.AddDocumentRequest)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, IDResponse{ID: id})
}

// handleGetDocument godoc
// @Summary      Get document
// @Description  Get a document by ID
// @Tags         Documents
// @Produce      json
// @Param        id   path      int  true  "Document ID"
// @Success      200  {object}  domain.Document
// @Failure      400  {object}  ErrorResponse  "Invalid document ID"
// @Failure      404  {object}  ErrorResponse  "Document not found"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /documents/{id} [get]
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}

	doc, err := s.ragService.GetDocument(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// handleDeleteDocument godoc
// @Summary      Delete document
// @Description  Delete a document and its chunks
// @Tags         Documents
// @Param        id   path      int  true  "Document ID"
// @Success      204  "No Content"
// @Failure      400  {object}  ErrorResponse  "Invalid document ID"
// @Failure      404  {object}  ErrorResponse  "Document not found"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /documents/{id} [delete]
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}

	if err := s.ragService.DeleteDocument(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetTask godoc
// @Summary      Get ingestion task
// @Description  Report the state of a queued ingestion task
// @Tags         Documents
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  domain.Task
// @Failure      404  {object}  ErrorResponse  "Task not found"
// @Failure      503  {object}  ErrorResponse  "Queue not configured"
// @Router       /tasks/{id} [get]
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	if s.ingestionService == nil {
		writeError(w, http.StatusServiceUnavailable, "async ingestion is not configured")
		return
	}

	task, err := s.ingestionService.TaskStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// Catalogue endpoints

// handleListCategories godoc
// @Summary      List categories
// @Description  Distinct categories of the stored documents
// @Tags         Catalogue
// @Produce      json
// @Success      200  {object}  CountResponse[string]
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /categories [get]
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.ragService.Categories(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCountResponse(categories))
}

// handleListCategoryDocuments godoc
// @Summary      List documents in a category
// @Description  Documents of one category, most recent first
// @Tags         Catalogue
// @Produce      json
// @Param        category  path      string  true  "Category"
// @Success      200       {object}  CountResponse[domain.Document]
// @Failure      500       {object}  ErrorResponse  "Internal server error"
// @Router       /categories/{category}/documents [get]
func (s *Server) handleListCategoryDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.ragService.DocumentsByCategory(r.Context(), r.PathValue("category"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCountResponse(docs))
}

// handleListDepartments godoc
// @Summary      List departments
// @Description  Known departments with their categories and keywords
// @Tags         Catalogue
// @Produce      json
// @Success      200  {object}  CountResponse[domain.Department]
// @Router       /departments [get]
func (s *Server) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	names := domain.DepartmentNames()
	departments := make([]domain.Department, 0, len(names))
	for _, name := range names {
		if d, ok := domain.LookupDepartment(name); ok {
			departments = append(departments, d)
		}
	}
	writeJSON(w, http.StatusOK, newCountResponse(departments))
}

// handleListDepartmentCategories godoc
// @Summary      List department categories
// @Description  Categories a department considers its own
// @Tags         Catalogue
// @Produce      json
// @Param        department  path      string  true  "Department"
// @Success      200         {object}  CountResponse[string]
// @Failure      400         {object}  ErrorResponse  "Unknown department"
// @Router       /departments/{department}/categories [get]
func (s *Server) handleListDepartmentCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.ragService.DepartmentCategories(r.Context(), r.PathValue("department"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCountResponse(categories))
}

// handleStats godoc
// @Summary      System statistics
// @Description  Corpus size, usage counters and AI backend status
// @Tags         Catalogue
// @Produce      json
// @Success      200  {object}  domain.SystemStats
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /stats [get]
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ragService.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Helper functions

// documentID parses the {id} path value, writing a 400 when it is invalid.
func documentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.PathValue("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return 0, false
	}
	return id, true
}

// statusFor maps a domain error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery), errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEmbeddingGeneration),
		errors.Is(err, domain.ErrSearchFailure),
		errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"status", status,
			"request_id", GetRequestID(r.Context()),
			"error", err,
		)
	}
	writeJSON(w, status, ErrorResponse{Error: domain.PublicMessage(err), Kind: domain.Kind(err)})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
