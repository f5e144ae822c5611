package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semaj90/campaign-rag/internal/apperr"
	"github.com/semaj90/campaign-rag/internal/processor"
)

func paragraphs(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString("This is paragraph number ")
		b.WriteString(strings.Repeat("word ", 20))
		b.WriteString(".\n\n")
	}
	return b.String()
}

func TestRunFixedSizeProducesContiguousNonEmptyChunks(t *testing.T) {
	content := paragraphs(10)
	doc := &processor.Result{Content: content}
	result, err := Run(context.Background(), doc, DefaultOptions(StrategyFixed))
	require.NoError(t, err)
	require.NotEmpty(t, result.Chunks)

	for _, c := range result.Chunks {
		assert.NotEmpty(t, c.Content)
		assert.Equal(t, content[c.StartOffset:c.EndOffset], c.Content)
	}
}

func TestRunFixedSizeOverlapBetweenConsecutiveChunks(t *testing.T) {
	content := paragraphs(10)
	doc := &processor.Result{Content: content}
	opts := DefaultOptions(StrategyFixed)
	result, err := Run(context.Background(), doc, opts)
	require.NoError(t, err)
	require.Greater(t, len(result.Chunks), 1)

	for i := 1; i < len(result.Chunks); i++ {
		prev, cur := result.Chunks[i-1], result.Chunks[i]
		assert.LessOrEqual(t, cur.StartOffset, prev.EndOffset, "chunk %d should overlap or abut chunk %d", i, i-1)
	}
}

func TestRunRejectsEmptyContent(t *testing.T) {
	_, err := Run(context.Background(), &processor.Result{Content: ""}, DefaultOptions(StrategyFixed))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeEmptyContent, apperr.CodeOf(err))
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, &processor.Result{Content: "some content"}, DefaultOptions(StrategyFixed))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeCancelled, apperr.CodeOf(err))
}

func TestRunMarkdownAwarePromotesHeadingToSection(t *testing.T) {
	content := "# Intro\n\n" + strings.Repeat("intro text ", 30) +
		"\n\n## Combat Rules\n\n" + strings.Repeat("combat text ", 60)
	doc := &processor.Result{Content: content}
	result, err := Run(context.Background(), doc, DefaultOptions(StrategyMarkdown))
	require.NoError(t, err)
	require.NotEmpty(t, result.Chunks)

	var sawCombatSection bool
	for _, c := range result.Chunks {
		if strings.Contains(c.Content, "combat text") {
			if c.Section == "Combat Rules" {
				sawCombatSection = true
			}
		}
	}
	assert.True(t, sawCombatSection, "expected a chunk containing combat text to carry the Combat Rules section")
}

func TestRunMarkdownAwareDoesNotSplitFencedCodeBlock(t *testing.T) {
	code := "```\n" + strings.Repeat("line of code\n", 40) + "```\n"
	content := strings.Repeat("filler ", 10) + "\n\n" + code
	doc := &processor.Result{Content: content}
	opts := DefaultOptions(StrategyMarkdown)
	opts.Markdown.TargetTokens = 20 // force a cut that would otherwise land mid-fence
	result, err := Run(context.Background(), doc, opts)
	require.NoError(t, err)

	fenceStart := strings.Index(content, "```")
	fenceEnd := strings.LastIndex(content, "```") + 3
	for _, c := range result.Chunks {
		if c.StartOffset <= fenceStart && c.EndOffset >= fenceEnd {
			continue // whole fence contained in this chunk, fine
		}
		// Any chunk boundary within the fence range is disallowed.
		assert.False(t, c.StartOffset > fenceStart && c.StartOffset < fenceEnd,
			"chunk must not start inside the fenced code block")
	}
}

func TestRunSemanticFallsBackToFixedSizeWithoutSections(t *testing.T) {
	doc := &processor.Result{Content: paragraphs(10)}
	result, err := Run(context.Background(), doc, DefaultOptions(StrategySemantic))
	require.NoError(t, err)
	assert.Equal(t, StrategyFixed, result.Strategy)
}

func TestRunSemanticKeepsSmallSectionWhole(t *testing.T) {
	doc := &processor.Result{
		Content: "A short section.",
		Sections: []processor.Section{
			{Title: "Short", Level: 1, StartOffset: 0},
		},
	}
	result, err := Run(context.Background(), doc, DefaultOptions(StrategySemantic))
	require.NoError(t, err)
	require.Len(t, result.Chunks, 1)
	assert.Equal(t, "Short", result.Chunks[0].Section)
}

func TestRunResolvesPageNumberFromProcessorOffsets(t *testing.T) {
	content := strings.Repeat("x", 100)
	doc := &processor.Result{
		Content: content,
		Pages: []processor.PageOffset{
			{PageNumber: 1, StartOffset: 0, EndOffset: 50},
			{PageNumber: 2, StartOffset: 50, EndOffset: 100},
		},
	}
	opts := DefaultOptions(StrategyFixed)
	opts.Fixed.TargetTokens = 5 // force multiple small chunks
	result, err := Run(context.Background(), doc, opts)
	require.NoError(t, err)

	var sawPage1, sawPage2 bool
	for _, c := range result.Chunks {
		if c.PageNumber == nil {
			continue
		}
		switch *c.PageNumber {
		case 1:
			sawPage1 = true
		case 2:
			sawPage2 = true
		}
	}
	assert.True(t, sawPage1)
	assert.True(t, sawPage2)
}

func TestEstimateTokensRoundsUp(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
}
