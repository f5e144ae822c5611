// Package chunker carves processor.Result content into embedding-sized
// chunks (spec.md §4.2) using one of three strategies, all sharing the
// same page-number resolution and token estimation.
package chunker

import (
	"context"

	"github.com/semaj90/campaign-rag/internal/apperr"
	"github.com/semaj90/campaign-rag/internal/processor"
)

type Strategy string

const (
	StrategyFixed     Strategy = "fixed-size"
	StrategySemantic  Strategy = "semantic"
	StrategyMarkdown  Strategy = "markdown-aware"
)

type FixedSizeOptions struct {
	TargetTokens   int
	OverlapTokens  int
	MinChunkTokens int
}

type SemanticOptions struct {
	MaxTokens       int
	MinTokens       int
	MaxHeadingLevel int
}

type MarkdownOptions struct {
	TargetTokens       int
	OverlapTokens      int
	PreserveCodeBlocks bool
	PreserveLists      bool
}

type Options struct {
	Strategy Strategy
	Fixed    FixedSizeOptions
	Semantic SemanticOptions
	Markdown MarkdownOptions
}

// DefaultOptions returns spec.md §4.2's documented defaults for the
// given strategy, falling back to fixed-size's defaults for its own
// nested field even when another strategy is selected (semantic falls
// back to fixed-size internally).
func DefaultOptions(strategy Strategy) Options {
	if strategy == "" {
		strategy = StrategyFixed
	}
	return Options{
		Strategy: strategy,
		Fixed:    FixedSizeOptions{TargetTokens: 128, OverlapTokens: 24, MinChunkTokens: 20},
		Semantic: SemanticOptions{MaxTokens: 256, MinTokens: 64, MaxHeadingLevel: 6},
		Markdown: MarkdownOptions{TargetTokens: 128, OverlapTokens: 24, PreserveCodeBlocks: true, PreserveLists: true},
	}
}

// Chunk is one emitted segment, still campaign/document agnostic — the
// indexing worker stamps DocumentID/CampaignID/ChunkIndex onto store.Chunk.
type Chunk struct {
	Content     string
	StartOffset int
	EndOffset   int
	TokenCount  int
	PageNumber  *int
	Section     string
}

type Result struct {
	Chunks             []Chunk
	Strategy           Strategy
	TotalTokens        int
	AverageChunkTokens float64
}

// rawSpan is a strategy's output before page resolution and token
// counting are applied uniformly by Run.
type rawSpan struct {
	Content     string
	StartOffset int
	EndOffset   int
	Section     string
}

// Run dispatches to the requested strategy and finishes every chunk with
// shared bookkeeping: token estimate and page-number resolution against
// doc.Pages (spec.md §4.2 "resolved by locating its startOffset within
// the page offset ranges supplied by the processor").
func Run(ctx context.Context, doc *processor.Result, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Wrap(apperr.CodeCancelled, "chunking cancelled before start", err)
	}
	if doc == nil || doc.Content == "" {
		return nil, apperr.New(apperr.CodeEmptyContent, "nothing to chunk")
	}

	var spans []rawSpan
	strategy := opts.Strategy
	switch strategy {
	case StrategySemantic:
		if len(doc.Sections) == 0 {
			spans = fixedSize(doc.Content, opts.Fixed)
			strategy = StrategyFixed
		} else {
			spans = semantic(doc, opts.Semantic, opts.Fixed)
		}
	case StrategyMarkdown:
		spans = markdownAware(doc.Content, opts.Markdown)
	default:
		spans = fixedSize(doc.Content, opts.Fixed)
		strategy = StrategyFixed
	}

	if len(spans) == 0 {
		return nil, apperr.New(apperr.CodeChunkingFailed, "chunking produced no chunks")
	}

	chunks := make([]Chunk, 0, len(spans))
	total := 0
	for _, s := range spans {
		tokens := EstimateTokens(s.Content)
		total += tokens
		chunks = append(chunks, Chunk{
			Content:     s.Content,
			StartOffset: s.StartOffset,
			EndOffset:   s.EndOffset,
			TokenCount:  tokens,
			PageNumber:  resolvePage(doc.Pages, s.StartOffset),
			Section:     s.Section,
		})
	}

	return &Result{
		Chunks:             chunks,
		Strategy:           strategy,
		TotalTokens:        total,
		AverageChunkTokens: float64(total) / float64(len(chunks)),
	}, nil
}

func resolvePage(pages []processor.PageOffset, startOffset int) *int {
	for _, p := range pages {
		if startOffset >= p.StartOffset && startOffset < p.EndOffset {
			n := p.PageNumber
			return &n
		}
	}
	return nil
}
