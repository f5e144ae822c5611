package streaming

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ctxbuild "github.com/semaj90/campaign-rag/internal/context"
	"github.com/semaj90/campaign-rag/internal/llm"
)

type fakeStreamProvider struct {
	tokens []string
	err    error
}

func (f *fakeStreamProvider) Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (string, *llm.Usage, error) {
	return "", nil, nil
}
func (f *fakeStreamProvider) ChatStream(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (<-chan llm.StreamChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan llm.StreamChunk, len(f.tokens)+1)
	for _, tok := range f.tokens {
		out <- llm.StreamChunk{Token: tok}
	}
	out <- llm.StreamChunk{Done: true}
	close(out)
	return out, nil
}
func (f *fakeStreamProvider) Generate(ctx context.Context, prompt string, opts llm.ChatOptions) (string, *llm.Usage, error) {
	return "", nil, nil
}
func (f *fakeStreamProvider) GenerateStream(ctx context.Context, prompt string, opts llm.ChatOptions) (<-chan llm.StreamChunk, error) {
	return nil, nil
}
func (f *fakeStreamProvider) HealthCheck(ctx context.Context) error { return nil }

func TestRunEmitsOneEventPerCompleteJSONObject(t *testing.T) {
	provider := &fakeStreamProvider{tokens: []string{
		`[{"title":"The `, `Missing Heir", "description": "a noble vanishes"}, `,
		`{"title":"Smugglers' Cove", "description":"contraband washes ashore"}]`,
	}}
	var events []Event
	Run(context.Background(), provider, "model", Params{Kind: KindHook, Count: 2}, ctxbuild.Built{}, nil, func(ev Event) {
		events = append(events, ev)
	})

	var hooks []Event
	var complete bool
	for _, ev := range events {
		if ev.Type == EventHook {
			hooks = append(hooks, ev)
		}
		if ev.Type == EventComplete {
			complete = true
		}
	}
	require.Len(t, hooks, 2)
	assert.Equal(t, "The Missing Heir", hooks[0].Hook.Title)
	assert.Equal(t, "Smugglers' Cove", hooks[1].Hook.Title)
	assert.True(t, complete)
}

func TestRunEmitsErrorEventOnProviderFailure(t *testing.T) {
	provider := &fakeStreamProvider{err: assert.AnError}
	var events []Event
	Run(context.Background(), provider, "model", Params{Kind: KindNPC, Count: 1}, ctxbuild.Built{}, nil, func(ev Event) {
		events = append(events, ev)
	})

	require.NotEmpty(t, events)
	assert.Equal(t, EventError, events[len(events)-1].Type)
}

func TestRegenerateReturnsSingleItem(t *testing.T) {
	provider := &fakeStreamProvider{tokens: []string{`[{"name":"Lyra Nightsong","description":"a wandering bard"}]`}}
	ev, err := Regenerate(context.Background(), provider, "model", Params{Kind: KindNPC}, ctxbuild.Built{}, nil)
	require.NoError(t, err)
	assert.Equal(t, EventNPC, ev.Type)
	assert.Equal(t, "Lyra Nightsong", ev.NPC.Name)
}

func TestItemParserHandlesBracesInsideStringLiterals(t *testing.T) {
	p := newItemParser()
	items := p.feed(`{"title": "a } b", "description": "c { d"}`)
	require.Len(t, items, 1)
	assert.Equal(t, `{"title": "a } b", "description": "c { d"}`, items[0])
}

func TestItemParserHandlesEscapedQuotes(t *testing.T) {
	p := newItemParser()
	items := p.feed(`{"title": "she said \"hi\""}`)
	require.Len(t, items, 1)
}

func TestItemParserSplitsAcrossMultipleFeedCalls(t *testing.T) {
	p := newItemParser()
	var items []string
	items = append(items, p.feed(`{"a": `)...)
	items = append(items, p.feed(`1}`)...)
	require.Len(t, items, 1)
	assert.Equal(t, `{"a": 1}`, items[0])
}
