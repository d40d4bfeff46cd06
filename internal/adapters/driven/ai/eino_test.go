package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
)

type fakeEmbedder struct {
	err   error
	short bool
	got   []string
}

func (f *fakeEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	f.got = texts
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = []float64{float64(len(t)), 0.5}
	}
	if f.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

type fakeChatModel struct {
	reply string
	err   error
	input []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func TestEinoEmbedding_EmbedBatch(t *testing.T) {
	fake := &fakeEmbedder{}
	emb := NewEinoEmbeddingFrom(fake, "embedding-3", 2)

	vecs, err := emb.EmbedBatch(context.Background(), []string{"abc", "", "de"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.got) != 2 {
		t.Errorf("expected blank text to be skipped, sent %v", fake.got)
	}
	if len(vecs) != 2 || vecs[0][0] != 3 || vecs[1][0] != 2 || vecs[0][1] != 0.5 {
		t.Errorf("unexpected vectors %v", vecs)
	}
	if emb.Dimensions() != 2 || emb.Model() != "embedding-3" {
		t.Errorf("unexpected metadata %d %s", emb.Dimensions(), emb.Model())
	}
}

func TestEinoEmbedding_Errors(t *testing.T) {
	emb := NewEinoEmbeddingFrom(&fakeEmbedder{err: errors.New("down")}, "m", 0)
	if emb.Dimensions() != 1536 {
		t.Errorf("expected default dimensions, got %d", emb.Dimensions())
	}
	if err := emb.HealthCheck(context.Background()); !errors.Is(err, domain.ErrEmbeddingGeneration) {
		t.Errorf("expected ErrEmbeddingGeneration, got %v", err)
	}

	short := NewEinoEmbeddingFrom(&fakeEmbedder{short: true}, "m", 2)
	if _, err := short.EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("expected error on embedding count mismatch")
	}
}

func TestEinoLLM_Generate(t *testing.T) {
	fake := &fakeChatModel{reply: " Son 22 días. "}
	llm := NewEinoLLMFrom(fake, "glm-4-flash")

	answer, err := llm.Generate(context.Background(), testRequest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Son 22 días." {
		t.Errorf("unexpected answer %q", answer)
	}
	if len(fake.input) != 2 || fake.input[0].Role != schema.System || fake.input[1].Role != schema.User {
		t.Fatalf("unexpected messages %+v", fake.input)
	}
	if !strings.Contains(fake.input[1].Content, testRequest.Context) {
		t.Error("expected context in user message")
	}
}

func TestEinoLLM_Failures(t *testing.T) {
	failing := NewEinoLLMFrom(&fakeChatModel{err: errors.New("boom")}, "m")
	if _, err := failing.Generate(context.Background(), testRequest); !errors.Is(err, domain.ErrGenerationFailure) {
		t.Errorf("expected ErrGenerationFailure, got %v", err)
	}
	if err := failing.Ping(context.Background()); !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got %v", err)
	}

	blank := NewEinoLLMFrom(&fakeChatModel{reply: ""}, "m")
	if _, err := blank.Generate(context.Background(), testRequest); !errors.Is(err, domain.ErrGenerationFailure) {
		t.Errorf("expected ErrGenerationFailure, got %v", err)
	}
}
