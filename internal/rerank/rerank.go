// Package rerank re-scores retrieval candidates with an LLM judgment
// pass (spec.md §4.6), grounded in the same numbered-list-plus-JSON
// pattern the teacher's generation code uses for structured LLM output.
package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/semaj90/campaign-rag/internal/apperr"
	"github.com/semaj90/campaign-rag/internal/llm"
	"github.com/semaj90/campaign-rag/internal/retrieval"
)

const (
	temperature      = 0.1
	DefaultThreshold = 0.2
)

const promptTemplate = `Question: %s

Score each candidate passage's relevance to the question, 1-10 (10 = most relevant). Respond with only a JSON array like [{"index": 1, "score": 7}, ...], one entry per candidate, no other text.

Candidates:
%s`

type scoreEntry struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Rerank sends candidates as a numbered list to the chat model and
// returns them reordered by the rescaled score, dropping anything below
// threshold (0 uses DefaultThreshold). A malformed or non-array response
// returns apperr.CodeRerankFailed — callers may fall back to input order.
func Rerank(ctx context.Context, provider llm.Provider, model, question string, candidates []retrieval.Result, threshold float64) ([]retrieval.Result, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	var list strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&list, "%d. %s\n", i+1, truncate(c.Content, 500))
	}

	prompt := fmt.Sprintf(promptTemplate, question, list.String())
	out, _, err := provider.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		llm.ChatOptions{Model: model, Temperature: temperature, MaxTokens: 512})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeRerankFailed, "rerank LLM call failed", err)
	}

	entries, err := parseScores(out)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeRerankFailed, "rerank response was not a valid score array", err)
	}

	byIndex := make(map[int]float64, len(entries))
	for _, e := range entries {
		byIndex[e.Index] = e.Score / 10
	}

	ranked := make([]retrieval.Result, 0, len(candidates))
	for i, c := range candidates {
		score, ok := byIndex[i+1]
		if !ok || score < threshold {
			continue
		}
		c.Score = score
		ranked = append(ranked, c)
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked, nil
}

// parseScores strips markdown code fences (models routinely wrap JSON in
// ```json ... ``` despite instructions) and decodes the remaining text as
// a JSON array. Anything else — an object, prose, truncated JSON — is a
// parse failure.
func parseScores(raw string) ([]scoreEntry, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if !strings.HasPrefix(cleaned, "[") {
		return nil, fmt.Errorf("response is not a JSON array")
	}
	var entries []scoreEntry
	if err := json.Unmarshal([]byte(cleaned), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return strings.ReplaceAll(s, "\n", " ")
	}
	return strings.ReplaceAll(s[:max], "\n", " ") + "…"
}
