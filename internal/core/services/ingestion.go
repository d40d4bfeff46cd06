package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driven"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driving"
	"github.com/custodia-labs/policy-rag/internal/normalisers"
	"github.com/custodia-labs/policy-rag/internal/policies"
)

// Ensure ingestionService implements IngestionService
var _ driving.IngestionService = (*ingestionService)(nil)

// SeedLockName is the distributed lock held while seeding
const SeedLockName = "policy-rag:seed-policies"

// IngestionConfig holds configuration for the ingestion service
type IngestionConfig struct {
	// SeedLockTTL bounds how long a crashed seeder can block others
	SeedLockTTL time.Duration

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultIngestionConfig returns sensible defaults
func DefaultIngestionConfig() IngestionConfig {
	return IngestionConfig{
		SeedLockTTL: 5 * time.Minute,
		Logger:      slog.Default(),
	}
}

// ingestionService implements the IngestionService interface
type ingestionService struct {
	rag         driving.RAGService
	queue       driven.TaskQueue       // optional
	lock        driven.DistributedLock // optional
	normalisers driven.NormaliserRegistry
	config      IngestionConfig
	logger      *slog.Logger

	mu      sync.Mutex
	watched map[string]int64 // file path -> document ID
}

// NewIngestionService creates a new IngestionService.
// queue and lock may be nil for single-instance deployments.
func NewIngestionService(
	rag driving.RAGService,
	queue driven.TaskQueue,
	lock driven.DistributedLock,
	registry driven.NormaliserRegistry,
	cfg IngestionConfig,
) driving.IngestionService {
	if cfg.SeedLockTTL <= 0 {
		cfg.SeedLockTTL = DefaultIngestionConfig().SeedLockTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if registry == nil {
		registry = normalisers.DefaultRegistry()
	}
	return &ingestionService{
		rag:         rag,
		queue:       queue,
		lock:        lock,
		normalisers: registry,
		config:      cfg,
		logger:      cfg.Logger,
		watched:     make(map[string]int64),
	}
}

// SeedPolicies adds every predefined policy whose title is not yet stored
// in its category, so a seed interrupted halfway is completed by the next
// run. When another instance holds the seed lock nothing is loaded.
func (s *ingestionService) SeedPolicies(ctx context.Context) (int, error) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, SeedLockName, s.config.SeedLockTTL)
		if err != nil {
			return 0, fmt.Errorf("acquire seed lock: %w", err)
		}
		if !acquired {
			s.logger.Info("policy seeding already running elsewhere")
			return 0, nil
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), SeedLockName); err != nil {
				s.logger.Warn("failed to release seed lock", "error", err)
			}
		}()
	}

	all, err := policies.Load()
	if err != nil {
		return 0, err
	}

	titles := make(map[string]map[string]bool) // category -> stored titles
	added := 0
	for _, p := range all {
		req := p.Request()
		stored, ok := titles[req.Category]
		if !ok {
			if stored, err = s.storedTitles(ctx, req.Category); err != nil {
				return added, fmt.Errorf("seed %q: %w", p.Title, err)
			}
			titles[req.Category] = stored
		}
		if stored[strings.TrimSpace(req.Title)] {
			continue
		}
		if _, err := s.rag.AddDocument(ctx, req); err != nil {
			return added, fmt.Errorf("seed %q: %w", p.Title, err)
		}
		added++
	}

	if added == 0 {
		s.logger.Debug("predefined policies already stored, nothing to seed")
		return 0, nil
	}
	s.logger.Info("seeded predefined policies", "documents", added)
	return added, nil
}

func (s *ingestionService) storedTitles(ctx context.Context, category string) (map[string]bool, error) {
	docs, err := s.rag.DocumentsByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	titles := make(map[string]bool, len(docs))
	for _, d := range docs {
		titles[d.Title] = true
	}
	return titles, nil
}

// IngestFile normalises one file and adds it as a document
func (s *ingestionService) IngestFile(ctx context.Context, path, category string) (int64, error) {
	req, err := s.fileRequest(path, category)
	if err != nil {
		return 0, err
	}
	return s.rag.AddDocument(ctx, *req)
}

func (s *ingestionService) fileRequest(path, category string) (*domain.AddDocumentRequest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		s.logger.Error("failed to read policy file", "path", path, "error", err)
		return nil, fmt.Errorf("%w: cannot read %s", domain.ErrInvalidInput, filepath.Base(path))
	}

	mimeType := normalisers.DetectMIMEType(path)
	content, err := s.normalisers.Normalise(string(raw), mimeType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	if strings.TrimSpace(category) == "" {
		category = filepath.Base(filepath.Dir(path))
	}

	return &domain.AddDocumentRequest{
		Title:    fileTitle(path, string(raw), mimeType),
		Content:  content,
		Category: category,
		Metadata: map[string]any{
			domain.MetadataSource: domain.SourceFile,
			domain.MetadataPath:   path,
		},
	}, nil
}

// fileTitle prefers the document's own heading over its file name
func fileTitle(path, raw, mimeType string) string {
	var title string
	switch mimeType {
	case "text/html":
		title = normalisers.HTMLTitle(raw)
	case "text/markdown":
		title = normalisers.MarkdownTitle(raw)
	}
	if title != "" {
		return title
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.NewReplacer("_", " ", "-", " ").Replace(name)
}

// IngestGlob ingests every regular file matching pattern. Failing files are
// skipped and reported together after the rest have been ingested.
func (s *ingestionService) IngestGlob(ctx context.Context, pattern, category string) ([]int64, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: bad pattern: %v", domain.ErrInvalidInput, err)
	}

	ids := []int64{}
	var errs []error
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		id, err := s.IngestFile(ctx, path, category)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(path), err))
			continue
		}
		ids = append(ids, id)
	}

	s.logger.Info("ingested files", "pattern", pattern, "documents", len(ids), "failed", len(errs))
	return ids, errors.Join(errs...)
}

// Watch re-ingests files under dir whose name matches pattern whenever
// they are created or written.
func (s *ingestionService) Watch(ctx context.Context, dir, pattern, category string) error {
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("%w: bad pattern %q", domain.ErrInvalidInput, pattern)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("%w: cannot watch %s", domain.ErrInvalidInput, filepath.Base(dir))
	}
	s.logger.Info("watching for policy changes", "dir", dir, "pattern", pattern)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handleEvent(ctx, event, pattern, category)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watcher error", "error", err)
		}
	}
}

func (s *ingestionService) handleEvent(ctx context.Context, event fsnotify.Event, pattern, category string) {
	if matched, _ := doublestar.Match(pattern, filepath.Base(event.Name)); !matched {
		return
	}

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		if _, err := s.replaceFile(ctx, event.Name, category); err != nil {
			s.logger.Warn("failed to ingest changed file", "path", event.Name, "error", err)
		}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		s.forgetFile(ctx, event.Name)
	}
}

// replaceFile ingests path and deletes the document previously ingested
// from it.
func (s *ingestionService) replaceFile(ctx context.Context, path, category string) (int64, error) {
	id, err := s.IngestFile(ctx, path, category)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	previous, had := s.watched[path]
	s.watched[path] = id
	s.mu.Unlock()

	if had {
		if err := s.rag.DeleteDocument(ctx, previous); err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("failed to delete previous version", "document_id", previous, "error", err)
		}
	}
	s.logger.Info("ingested changed file", "path", path, "document_id", id)
	return id, nil
}

func (s *ingestionService) forgetFile(ctx context.Context, path string) {
	s.mu.Lock()
	id, had := s.watched[path]
	delete(s.watched, path)
	s.mu.Unlock()

	if !had {
		return
	}
	if err := s.rag.DeleteDocument(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("failed to delete removed file", "document_id", id, "error", err)
	}
}

// Enqueue schedules req for background ingestion
func (s *ingestionService) Enqueue(ctx context.Context, req domain.AddDocumentRequest) (string, error) {
	if s.queue == nil {
		return "", fmt.Errorf("%w: no task queue configured", domain.ErrServiceUnavailable)
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	task, err := domain.NewIngestDocumentTask(req)
	if err != nil {
		return "", fmt.Errorf("%w: encode task: %v", domain.ErrInvalidInput, err)
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return "", fmt.Errorf("enqueue task: %w", err)
	}
	return task.ID, nil
}

// EnqueueSeed schedules a background seeding task
func (s *ingestionService) EnqueueSeed(ctx context.Context) (string, error) {
	if s.queue == nil {
		return "", fmt.Errorf("%w: no task queue configured", domain.ErrServiceUnavailable)
	}
	task := domain.NewSeedPoliciesTask()
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return "", fmt.Errorf("enqueue task: %w", err)
	}
	return task.ID, nil
}

// TaskStatus reports the state of a queued task
func (s *ingestionService) TaskStatus(ctx context.Context, taskID string) (*domain.Task, error) {
	if s.queue == nil {
		return nil, fmt.Errorf("%w: no task queue configured", domain.ErrServiceUnavailable)
	}
	return s.queue.GetTask(ctx, taskID)
}

// ProcessTask executes one dequeued task
func (s *ingestionService) ProcessTask(ctx context.Context, task *domain.Task) error {
	switch task.Type {
	case domain.TaskTypeIngestDocument:
		req, err := task.DocumentRequest()
		if err != nil {
			return err
		}
		id, err := s.rag.AddDocument(ctx, *req)
		if err != nil {
			return err
		}
		task.DocumentID = id
		return nil

	case domain.TaskTypeSeedPolicies:
		_, err := s.SeedPolicies(ctx)
		return err

	default:
		return fmt.Errorf("%w: unknown task type %q", domain.ErrInvalidInput, task.Type)
	}
}
