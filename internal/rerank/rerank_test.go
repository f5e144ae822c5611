package rerank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semaj90/campaign-rag/internal/apperr"
	"github.com/semaj90/campaign-rag/internal/llm"
	"github.com/semaj90/campaign-rag/internal/retrieval"
)

type fakeProvider struct {
	response string
	err      error
}

func (f *fakeProvider) Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (string, *llm.Usage, error) {
	return f.response, &llm.Usage{}, f.err
}
func (f *fakeProvider) ChatStream(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (<-chan llm.StreamChunk, error) {
	return nil, nil
}
func (f *fakeProvider) Generate(ctx context.Context, prompt string, opts llm.ChatOptions) (string, *llm.Usage, error) {
	return f.response, &llm.Usage{}, f.err
}
func (f *fakeProvider) GenerateStream(ctx context.Context, prompt string, opts llm.ChatOptions) (<-chan llm.StreamChunk, error) {
	return nil, nil
}
func (f *fakeProvider) HealthCheck(ctx context.Context) error { return f.err }

func candidates(n int) []retrieval.Result {
	out := make([]retrieval.Result, n)
	for i := range out {
		out[i] = retrieval.Result{ChunkID: string(rune('a' + i)), Content: "candidate content", Score: 0.5}
	}
	return out
}

func TestRerankEmptyInputIsNoOp(t *testing.T) {
	out, err := Rerank(context.Background(), &fakeProvider{}, "model", "q", nil, 0)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestRerankReordersAndDropsBelowThreshold(t *testing.T) {
	provider := &fakeProvider{response: `[{"index":1,"score":2},{"index":2,"score":9}]`}
	out, err := Rerank(context.Background(), provider, "model", "q", candidates(2), 0.3)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].ChunkID)
	assert.InDelta(t, 0.9, out[0].Score, 0.001)
}

func TestRerankTolerantOfMarkdownFencedResponse(t *testing.T) {
	provider := &fakeProvider{response: "```json\n[{\"index\":1,\"score\":8}]\n```"}
	out, err := Rerank(context.Background(), provider, "model", "q", candidates(1), 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.8, out[0].Score, 0.001)
}

func TestRerankFailsOnNonArrayResponse(t *testing.T) {
	provider := &fakeProvider{response: "I cannot comply with this request."}
	_, err := Rerank(context.Background(), provider, "model", "q", candidates(1), 0)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeRerankFailed, apperr.CodeOf(err))
}

func TestRerankFailsWhenLLMErrors(t *testing.T) {
	provider := &fakeProvider{err: assert.AnError}
	_, err := Rerank(context.Background(), provider, "model", "q", candidates(1), 0)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeRerankFailed, apperr.CodeOf(err))
}
