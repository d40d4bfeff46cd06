package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/policy-rag/internal/core/ports/driven"
)

// MockLLMService is a mock implementation of LLMService for testing
type MockLLMService struct {
	mu       sync.Mutex
	Response string
	Err      error
	requests []driven.GenerationRequest
}

// NewMockLLMService creates a mock that always answers with response
func NewMockLLMService(response string) *MockLLMService {
	return &MockLLMService{Response: response}
}

func (m *MockLLMService) Generate(ctx context.Context, req driven.GenerationRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

func (m *MockLLMService) Model() string {
	return "mock-llm"
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	return nil
}

func (m *MockLLMService) Close() error {
	return nil
}

// Requests returns the requests received so far
func (m *MockLLMService) Requests() []driven.GenerationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]driven.GenerationRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
