package rewrite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semaj90/campaign-rag/internal/llm"
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

func TestRewriteIsNoOpWithoutHistory(t *testing.T) {
	out, err := Rewrite(context.Background(), &fakeProvider{response: "should be ignored"}, "model", "what is the AC of a goblin?", nil)
	require.NoError(t, err)
	assert.Equal(t, "what is the AC of a goblin?", out)
}

func TestRewriteUsesModelOutputWhenHistoryPresent(t *testing.T) {
	history := []llm.Message{{Role: llm.RoleUser, Content: "tell me about goblins"}, {Role: llm.RoleAssistant, Content: "they are small and green"}}
	out, err := Rewrite(context.Background(), &fakeProvider{response: "  what is the goblin's armor class?  "}, "model", "and their AC?", history)
	require.NoError(t, err)
	assert.Equal(t, "what is the goblin's armor class?", out)
}

func TestRewriteFallsBackToOriginalQuestionOnError(t *testing.T) {
	history := []llm.Message{{Role: llm.RoleUser, Content: "hi"}}
	out, err := Rewrite(context.Background(), &fakeProvider{err: assert.AnError}, "model", "follow-up question", history)
	require.NoError(t, err)
	assert.Equal(t, "follow-up question", out)
}

func TestRewriteFallsBackOnBlankOutput(t *testing.T) {
	history := []llm.Message{{Role: llm.RoleUser, Content: "hi"}}
	out, err := Rewrite(context.Background(), &fakeProvider{response: "   "}, "model", "follow-up question", history)
	require.NoError(t, err)
	assert.Equal(t, "follow-up question", out)
}
