package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driven"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driving"
	"github.com/custodia-labs/policy-rag/internal/postprocessors"
	"github.com/custodia-labs/policy-rag/internal/runtime"
)

// Ensure ragService implements RAGService
var _ driving.RAGService = (*ragService)(nil)

// Retrieval defaults
const (
	DefaultMaxQueryLength      = 1000
	DefaultMaxTopK             = 50
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.3
	DefaultCacheTTL            = 10 * time.Minute
	DefaultGeneratorTimeout    = 30 * time.Second

	// keywordsPerDocument is how many keywords are stored in metadata
	keywordsPerDocument = 10
)

// Errors returned when a backend fails. The backend's own error is logged
// and never returned, so callers only see these fixed messages.
var (
	errEmbedQuery    = fmt.Errorf("%w: the query could not be embedded", domain.ErrEmbeddingGeneration)
	errEmbedDocument = fmt.Errorf("%w: the document could not be embedded", domain.ErrEmbeddingGeneration)
	errSearchStore   = fmt.Errorf("%w: the policy store could not be searched", domain.ErrSearchFailure)
	errStoreDocument = fmt.Errorf("%w: the document could not be stored", domain.ErrInternal)
)

// RAGConfig holds configuration for the retrieval service
type RAGConfig struct {
	// MaxQueryLength is the longest accepted query, in characters
	MaxQueryLength int

	// MaxTopK bounds the number of results a caller may request
	MaxTopK int

	// DefaultTopK is used when a caller leaves top_k unset
	DefaultTopK int

	// Chunk controls how documents are split before embedding
	Chunk postprocessors.ChunkConfig

	// SimilarityThreshold is reported in stats. It never filters results.
	SimilarityThreshold float64

	// CacheTTL is how long composed answers stay cached
	CacheTTL time.Duration

	// GeneratorTimeout bounds each call to the answer generator
	GeneratorTimeout time.Duration

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultRAGConfig returns sensible defaults
func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		MaxQueryLength:      DefaultMaxQueryLength,
		MaxTopK:             DefaultMaxTopK,
		DefaultTopK:         DefaultTopK,
		Chunk:               postprocessors.DefaultChunkConfig(),
		SimilarityThreshold: DefaultSimilarityThreshold,
		CacheTTL:            DefaultCacheTTL,
		GeneratorTimeout:    DefaultGeneratorTimeout,
		Logger:              slog.Default(),
	}
}

// ragService implements the RAGService interface
type ragService struct {
	documentStore driven.DocumentStore
	vectorStore   driven.VectorStore
	services      *runtime.Services     // encoder and generator
	cache         driven.ResponseCache // optional
	pipeline      *postprocessors.Pipeline
	config        RAGConfig
	logger        *slog.Logger
	startedAt     time.Time

	questionsAsked atomic.Int64
	searches       atomic.Int64
	documentsAdded atomic.Int64
}

// NewRAGService creates a new RAGService. cache may be nil.
func NewRAGService(
	documentStore driven.DocumentStore,
	vectorStore driven.VectorStore,
	services *runtime.Services,
	cache driven.ResponseCache,
	cfg RAGConfig,
) driving.RAGService {
	defaults := DefaultRAGConfig()
	if cfg.MaxQueryLength <= 0 {
		cfg.MaxQueryLength = defaults.MaxQueryLength
	}
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = defaults.MaxTopK
	}
	if cfg.DefaultTopK <= 0 || cfg.DefaultTopK > cfg.MaxTopK {
		cfg.DefaultTopK = min(defaults.DefaultTopK, cfg.MaxTopK)
	}
	if cfg.GeneratorTimeout <= 0 {
		cfg.GeneratorTimeout = defaults.GeneratorTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &ragService{
		documentStore: documentStore,
		vectorStore:   vectorStore,
		services:      services,
		cache:         cache,
		pipeline:      postprocessors.DefaultPipeline(cfg.Chunk),
		config:        cfg,
		logger:        cfg.Logger,
		startedAt:     time.Now(),
	}
}

// AddDocument chunks, embeds and stores a document.
// Embeddings are computed before anything is written so an encoder failure
// leaves no partial document behind.
func (s *ragService) AddDocument(ctx context.Context, req domain.AddDocumentRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}

	encoder, err := s.encoder()
	if err != nil {
		return 0, err
	}

	texts := s.pipeline.Split(req.Content)
	if len(texts) == 0 {
		return 0, domain.ErrMissingContent
	}
	embeddings, err := encoder.EmbedBatch(ctx, texts)
	if err != nil {
		s.logger.Error("failed to embed document chunks", "model", encoder.Model(), "error", err)
		return 0, errEmbedDocument
	}
	if len(embeddings) != len(texts) {
		return 0, fmt.Errorf("%w: got %d embeddings for %d chunks", domain.ErrEmbeddingGeneration, len(embeddings), len(texts))
	}

	doc := &domain.Document{
		Title:     strings.TrimSpace(req.Title),
		Content:   req.Content,
		Category:  strings.TrimSpace(req.Category),
		CreatedAt: time.Now(),
	}
	doc.MergeMetadata(req.Metadata)
	if _, ok := doc.Metadata[domain.MetadataKeywords]; !ok {
		doc.MergeMetadata(map[string]any{
			domain.MetadataKeywords: postprocessors.ExtractKeywords(req.Content, keywordsPerDocument),
		})
	}

	id, err := s.documentStore.Save(ctx, doc)
	if err != nil {
		s.logger.Error("failed to save document", "error", err)
		return 0, errStoreDocument
	}

	chunks := make([]*domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &domain.Chunk{
			DocumentID: id,
			Text:       text,
			Embedding:  embeddings[i],
			Index:      i,
		}
	}
	if err := s.vectorStore.SaveBatch(ctx, chunks); err != nil {
		if delErr := s.documentStore.Delete(ctx, id); delErr != nil {
			s.logger.Error("failed to roll back document", "document_id", id, "error", delErr)
		}
		s.logger.Error("failed to save chunks", "document_id", id, "error", err)
		return 0, errStoreDocument
	}

	s.documentsAdded.Add(1)
	s.invalidateCache(ctx)

	s.logger.Info("document added",
		"document_id", id,
		"category", doc.Category,
		"chunks", len(chunks))

	return id, nil
}

// SearchDocuments validates the query and returns hydrated results, best first.
func (s *ragService) SearchDocuments(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	query, err := s.validateQuery(query)
	if err != nil {
		return nil, err
	}
	topK, err := s.resolveTopK(opts.TopK)
	if err != nil {
		return nil, err
	}

	results, err := s.search(ctx, query, topK, opts.Category)
	if err != nil {
		return nil, err
	}
	s.searches.Add(1)
	return results, nil
}

// GenerateResponse answers query with the default options.
func (s *ragService) GenerateResponse(ctx context.Context, query string, useGenerator bool) (*domain.RAGResponse, error) {
	return s.Ask(ctx, query, domain.AskOptions{UseGenerator: useGenerator})
}

// Ask validates, searches, filters by department and composes an answer.
func (s *ragService) Ask(ctx context.Context, query string, opts domain.AskOptions) (*domain.RAGResponse, error) {
	query, err := s.validateQuery(query)
	if err != nil {
		return nil, err
	}
	topK, err := s.resolveTopK(opts.TopK)
	if err != nil {
		return nil, err
	}
	department, err := normaliseDepartment(opts.Department)
	if err != nil {
		return nil, err
	}

	key := cacheKey(query, topK, opts.Category, department, opts.UseGenerator)
	generation, cacheable := s.cacheGeneration(ctx)
	if cacheable {
		if cached := s.cachedResponse(ctx, generation, key); cached != nil {
			s.questionsAsked.Add(1)
			cached.Query = query
			cached.Timestamp = time.Now()
			return cached, nil
		}
	}

	results, err := s.search(ctx, query, topK, opts.Category)
	if err != nil {
		return nil, err
	}
	results, err = FilterByDepartment(results, department)
	if err != nil {
		return nil, err
	}

	resp := s.compose(ctx, query, department, results, opts.UseGenerator)
	s.questionsAsked.Add(1)
	if cacheable && !s.degraded(resp, opts.UseGenerator) {
		s.storeResponse(ctx, generation, key, resp)
	}

	return resp, nil
}

// compose builds the answer envelope. Generator failures degrade to the
// template composer and are never returned.
func (s *ragService) compose(ctx context.Context, query, department string, results []domain.SearchResult, useGenerator bool) *domain.RAGResponse {
	resp := &domain.RAGResponse{
		Sources:    results,
		Query:      query,
		Department: department,
		Timestamp:  time.Now(),
	}

	if len(results) == 0 {
		resp.Answer = NoResultsAnswer(department)
		resp.Sources = []domain.SearchResult{}
		resp.AnswerSource = domain.AnswerSourceNoResults
		return resp
	}
	resp.Confidence = domain.Confidence(results)

	if useGenerator {
		if gen := s.generate(ctx, query, results); gen.ok() {
			resp.Answer = gen.answer
			resp.AnswerSource = domain.AnswerSourceGenerator
			return resp
		} else if gen.err != nil {
			s.logger.Warn("generator failed, using template answer", "error", gen.err)
		}
	}

	resp.Answer = TemplateAnswer(results, department)
	resp.AnswerSource = domain.AnswerSourceTemplate
	return resp
}

// generation is the outcome of one generator call
type generation struct {
	answer string
	err    error
}

func (g generation) ok() bool {
	return g.err == nil && g.answer != ""
}

// generate asks the configured generator for an answer grounded in the
// top results.
func (s *ragService) generate(ctx context.Context, query string, results []domain.SearchResult) generation {
	llm := s.services.LLMService()
	if llm == nil {
		return generation{}
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.GeneratorTimeout)
	defer cancel()

	answer, err := llm.Generate(ctx, driven.GenerationRequest{
		SystemPrompt: SystemPrompt,
		Context:      BuildContext(results),
		Question:     query,
	})
	if err != nil {
		return generation{err: fmt.Errorf("%w: %v", domain.ErrGenerationFailure, err)}
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return generation{err: fmt.Errorf("%w: empty answer", domain.ErrGenerationFailure)}
	}
	return generation{answer: answer}
}

// search encodes query, searches the vector store and hydrates each chunk
// with its document. Chunks whose document is gone are dropped.
func (s *ragService) search(ctx context.Context, query string, topK int, category string) ([]domain.SearchResult, error) {
	encoder, err := s.encoder()
	if err != nil {
		return nil, err
	}

	embedding, err := encoder.Embed(ctx, query)
	if err != nil {
		s.logger.Error("failed to embed query", "model", encoder.Model(), "error", err)
		return nil, errEmbedQuery
	}

	chunks, err := s.vectorStore.Search(ctx, embedding, topK, strings.TrimSpace(category))
	if err != nil {
		s.logger.Error("vector search failed", "error", err)
		return nil, errSearchStore
	}

	results := make([]domain.SearchResult, 0, len(chunks))
	docs := make(map[int64]*domain.Document)
	for _, chunk := range chunks {
		doc, ok := docs[chunk.DocumentID]
		if !ok {
			doc, err = s.documentStore.Get(ctx, chunk.DocumentID)
			if errors.Is(err, domain.ErrNotFound) {
				s.logger.Warn("dropping orphaned chunk", "chunk_id", chunk.ID, "document_id", chunk.DocumentID)
				continue
			}
			if err != nil {
				s.logger.Error("failed to load search result document", "document_id", chunk.DocumentID, "error", err)
				return nil, errSearchStore
			}
			docs[chunk.DocumentID] = doc
		}
		results = append(results, domain.SearchResult{
			Document:       doc,
			Chunk:          chunk,
			RelevanceScore: chunk.Similarity,
		})
	}
	return results, nil
}

// GetDocument returns one document
func (s *ragService) GetDocument(ctx context.Context, id int64) (*domain.Document, error) {
	return s.documentStore.Get(ctx, id)
}

// DocumentsByCategory lists a category's documents, most recent first
func (s *ragService) DocumentsByCategory(ctx context.Context, category string) ([]*domain.Document, error) {
	if strings.TrimSpace(category) == "" {
		return nil, domain.ErrMissingCategory
	}
	return s.documentStore.GetByCategory(ctx, strings.TrimSpace(category))
}

// DeleteDocument removes the chunks of a document, then the document.
func (s *ragService) DeleteDocument(ctx context.Context, id int64) error {
	if _, err := s.documentStore.Get(ctx, id); err != nil {
		return err
	}
	if _, err := s.vectorStore.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := s.documentStore.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidateCache(ctx)
	s.logger.Info("document deleted", "document_id", id)
	return nil
}

// DocumentCount returns the number of stored documents
func (s *ragService) DocumentCount(ctx context.Context) (int, error) {
	return s.documentStore.Count(ctx)
}

// Categories returns the distinct document categories
func (s *ragService) Categories(ctx context.Context) ([]string, error) {
	return s.documentStore.Categories(ctx)
}

// DepartmentCategories returns the categories owned by a department
func (s *ragService) DepartmentCategories(_ context.Context, department string) ([]string, error) {
	d, ok := domain.LookupDepartment(department)
	if !ok {
		return nil, domain.ErrUnknownDepartment
	}
	out := make([]string, len(d.Categories))
	copy(out, d.Categories)
	return out, nil
}

// Stats summarises corpus size and usage counters
func (s *ragService) Stats(ctx context.Context) (*domain.SystemStats, error) {
	documents, err := s.documentStore.Count(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := s.vectorStore.Count(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := s.documentStore.Categories(ctx)
	if err != nil {
		return nil, err
	}

	stats := &domain.SystemStats{
		Documents:           documents,
		Chunks:              chunks,
		Categories:          categories,
		QuestionsAsked:      s.questionsAsked.Load(),
		Searches:            s.searches.Load(),
		DocumentsAdded:      s.documentsAdded.Load(),
		Uptime:              time.Since(s.startedAt),
		EncoderFallback:     s.services.Config().EncoderFallback(),
		GeneratorAvailable:  s.services.Config().GeneratorAvailable(),
		SimilarityThreshold: s.config.SimilarityThreshold,
	}
	if encoder := s.services.EmbeddingService(); encoder != nil {
		stats.EncoderModel = encoder.Model()
		stats.EncoderDimension = encoder.Dimensions()
	}
	if llm := s.services.LLMService(); llm != nil {
		stats.GeneratorModel = llm.Model()
	}
	return stats, nil
}

func (s *ragService) encoder() (driven.EmbeddingService, error) {
	encoder := s.services.EmbeddingService()
	if encoder == nil {
		return nil, fmt.Errorf("%w: no encoder configured", domain.ErrEmbeddingGeneration)
	}
	return encoder, nil
}

// validateQuery trims query and checks its length
func (s *ragService) validateQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("%w: query is empty", domain.ErrInvalidQuery)
	}
	if n := utf8.RuneCountInString(query); n > s.config.MaxQueryLength {
		return "", fmt.Errorf("%w: query is %d characters, maximum is %d", domain.ErrInvalidQuery, n, s.config.MaxQueryLength)
	}
	return query, nil
}

// resolveTopK applies the default and checks the bounds
func (s *ragService) resolveTopK(topK int) (int, error) {
	if topK == 0 {
		return s.config.DefaultTopK, nil
	}
	if topK < 1 || topK > s.config.MaxTopK {
		return 0, fmt.Errorf("%w: top_k must be between 1 and %d", domain.ErrInvalidQuery, s.config.MaxTopK)
	}
	return topK, nil
}

func normaliseDepartment(department string) (string, error) {
	if domain.IsGeneralDepartment(department) {
		return "", nil
	}
	d, ok := domain.LookupDepartment(department)
	if !ok {
		return "", domain.ErrUnknownDepartment
	}
	return d.Name, nil
}

func cacheKey(query string, topK int, category, department string, useGenerator bool) string {
	h := sha256.New()
	for _, part := range []string{
		strings.ToLower(query),
		strconv.Itoa(topK),
		category,
		department,
		strconv.FormatBool(useGenerator),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// cacheGeneration reads the generation shared by the lookup and the store
// of one Ask. The answer is not cached when it cannot be read.
func (s *ragService) cacheGeneration(ctx context.Context) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	generation, err := s.cache.Generation(ctx)
	if err != nil {
		s.logger.Warn("response cache generation read failed", "error", err)
		return 0, false
	}
	return generation, true
}

func (s *ragService) cachedResponse(ctx context.Context, generation int64, key string) *domain.RAGResponse {
	resp, err := s.cache.Get(ctx, generation, key)
	if err != nil {
		s.logger.Warn("response cache read failed", "error", err)
		return nil
	}
	return resp
}

func (s *ragService) storeResponse(ctx context.Context, generation int64, key string, resp *domain.RAGResponse) {
	if s.config.CacheTTL <= 0 {
		return
	}
	if err := s.cache.Set(ctx, generation, key, resp, s.config.CacheTTL); err != nil {
		s.logger.Warn("response cache write failed", "error", err)
	}
}

// degraded reports a template answer given in place of a generator answer.
// Such answers are not cached so the next ask retries the generator.
func (s *ragService) degraded(resp *domain.RAGResponse, useGenerator bool) bool {
	return useGenerator &&
		resp.AnswerSource == domain.AnswerSourceTemplate &&
		s.services.LLMService() != nil
}

func (s *ragService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("response cache invalidation failed", "error", err)
	}
}
