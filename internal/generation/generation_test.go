package generation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ctxbuild "github.com/semaj90/campaign-rag/internal/context"
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

func TestGenerateReturnsHighConfidenceForStrongSources(t *testing.T) {
	sources := []SourceRef{
		{Index: 1, DocumentName: "Bestiary", RelevanceScore: 0.95},
		{Index: 2, DocumentName: "Bestiary", RelevanceScore: 0.9},
	}
	built := ctxbuild.Built{ContextText: "[1] Bestiary\ngoblins have AC 15", ChunksUsed: 2}
	provider := &fakeProvider{response: "Goblins have an armor class of 15 [1]."}

	answer, err := Generate(context.Background(), provider, "model", "what is a goblin's AC?", built, sources, nil)
	require.NoError(t, err)
	assert.False(t, answer.IsUnanswerable)
	assert.Equal(t, LabelHigh, answer.ConfidenceTag)
}

func TestGenerateReturnsLowConfidenceWithNoSources(t *testing.T) {
	built := ctxbuild.Built{ChunksUsed: 0}
	provider := &fakeProvider{response: "I don't have enough information to answer that."}

	answer, err := Generate(context.Background(), provider, "model", "what color is the sky on Eberron?", built, nil, nil)
	require.NoError(t, err)
	assert.True(t, answer.IsUnanswerable)
	assert.Equal(t, LabelLow, answer.ConfidenceTag)
	assert.InDelta(t, 0.1, answer.Confidence, 0.001)
}

func TestGeneratePropagatesProviderError(t *testing.T) {
	built := ctxbuild.Built{ChunksUsed: 0}
	provider := &fakeProvider{err: assert.AnError}
	_, err := Generate(context.Background(), provider, "model", "question", built, nil, nil)
	require.Error(t, err)
}

func TestRecentHistoryCapsAtTenMessages(t *testing.T) {
	history := make([]llm.Message, 15)
	for i := range history {
		history[i] = llm.Message{Role: llm.RoleUser, Content: "msg"}
	}
	trimmed := recentHistory(history)
	assert.Len(t, trimmed, maxHistoryMessages)
}

func TestIsUnanswerableDetectsHedgePhrases(t *testing.T) {
	assert.True(t, isUnanswerable("I don't have enough information about that topic."))
	assert.True(t, isUnanswerable("This is Not Mentioned In the provided sources."))
	assert.False(t, isUnanswerable("The goblin has 7 hit points."))
}

func TestScoreConfidenceWeightsTopScoreAverageAndCount(t *testing.T) {
	single := []SourceRef{{RelevanceScore: 1.0}}
	multi := []SourceRef{{RelevanceScore: 1.0}, {RelevanceScore: 1.0}, {RelevanceScore: 1.0}}
	assert.Greater(t, scoreConfidence(multi, false), scoreConfidence(single, false))
}

func TestLabelForThresholds(t *testing.T) {
	assert.Equal(t, LabelHigh, labelFor(0.7))
	assert.Equal(t, LabelMedium, labelFor(0.4))
	assert.Equal(t, LabelMedium, labelFor(0.69))
	assert.Equal(t, LabelLow, labelFor(0.39))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, clamp(-1, 0, 1))
	assert.Equal(t, 1.0, clamp(2, 0, 1))
	assert.Equal(t, 0.5, clamp(0.5, 0, 1))
}
