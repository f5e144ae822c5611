// Package ctxbuild assembles retrieval results into a prompt-ready context
// under a token budget (spec.md §4.7), grounded in sse-rag-service's
// buildContext generalized from a flat message join into citation-indexed,
// source-tracked entries.
package ctxbuild

import (
	"fmt"
	"strings"

	"github.com/semaj90/campaign-rag/internal/retrieval"
	"github.com/semaj90/campaign-rag/internal/store"
)

const (
	DefaultMaxTokens        = 3000
	DefaultAdaptiveRatio    = 0.4
	entrySeparator          = "\n\n---\n\n"
)

// Options configures one Build call. A zero Options uses spec.md §4.7's
// documented defaults (MaxTokens 3000, AdaptiveRatio 0.4, MinRelevanceScore 0).
type Options struct {
	MaxTokens         int
	MinRelevanceScore float64
	AdaptiveRatio     float64
}

func (o Options) withDefaults() Options {
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.AdaptiveRatio <= 0 {
		o.AdaptiveRatio = DefaultAdaptiveRatio
	}
	return o
}

// Built is the transient assembled-context result spec.md §3 names
// BuiltContext.
type Built struct {
	ContextText     string
	Sources         []store.AnswerSource
	ChunksUsed      int
	EstimatedTokens int
}

// DocInfo is the per-chunk document metadata the retrieval layer's
// Result doesn't itself carry (name/type are resolved by the caller via
// the document record, since retrieval.Result only knows document IDs).
type DocInfo struct {
	DocumentName string
	DocumentType store.DocumentType
}

// Build iterates results (assumed already sorted by score descending),
// formats each into a header line plus content, and stops before
// exceeding MaxTokens. The effective minimum score is
// max(MinRelevanceScore, topScore*AdaptiveRatio); a result skipped for
// falling below it does not consume a citation index (spec.md §4.7
// "citation index is 1-based and contiguous").
func Build(results []retrieval.Result, docs map[string]DocInfo, opts Options) Built {
	opts = opts.withDefaults()
	if len(results) == 0 {
		return Built{ContextText: "", Sources: nil, ChunksUsed: 0, EstimatedTokens: 0}
	}

	topScore := results[0].Score
	floor := opts.MinRelevanceScore
	if adaptive := topScore * opts.AdaptiveRatio; adaptive > floor {
		floor = adaptive
	}

	var body strings.Builder
	var sources []store.AnswerSource
	tokens := 0
	citation := 0

	for _, r := range results {
		if r.Score < floor {
			continue
		}
		info := docs[r.DocumentID]
		header := formatHeader(citation+1, info.DocumentName, r.Section, r.PageNumber)
		entry := header + "\n" + r.Content

		sep := ""
		if citation > 0 {
			sep = entrySeparator
		}
		entryTokens := estimateTokens(entry) + estimateTokens(sep)
		if citation > 0 && tokens+entryTokens > opts.MaxTokens {
			break
		}
		if citation == 0 && entryTokens > opts.MaxTokens {
			break
		}

		body.WriteString(sep)
		body.WriteString(entry)
		tokens += entryTokens
		citation++

		sources = append(sources, store.AnswerSource{
			Index:          citation,
			DocumentID:     r.DocumentID,
			DocumentName:   info.DocumentName,
			DocumentType:   info.DocumentType,
			PageNumber:     r.PageNumber,
			Section:        sectionPtr(r.Section),
			RelevanceScore: r.Score,
		})
	}

	return Built{
		ContextText:     body.String(),
		Sources:         sources,
		ChunksUsed:      citation,
		EstimatedTokens: tokens,
	}
}

// formatHeader renders "[i] documentName [- section] [(p. N)]" per
// spec.md §4.7.
func formatHeader(index int, documentName, section string, pageNumber *int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s", index, documentName)
	if section != "" {
		fmt.Fprintf(&b, " - %s", section)
	}
	if pageNumber != nil {
		fmt.Fprintf(&b, " (p. %d)", *pageNumber)
	}
	return b.String()
}

func sectionPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// estimateTokens mirrors chunker.EstimateTokens's chars/4 heuristic
// without importing the chunker package, keeping ctxbuild a leaf
// dependency of retrieval/store only.
func estimateTokens(s string) int {
	if len(s) == 0 {
		return 0
	}
	return (len(s) + 3) / 4
}
