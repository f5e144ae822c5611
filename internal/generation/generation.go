// Package generation implements the response generator (spec.md §4.8):
// prompted answer generation with citation preservation and heuristic
// confidence scoring, grounded in unified-rag-service's ragQueryHandler
// prompt assembly generalized into a standalone component the HTTP layer
// calls into.
package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/semaj90/campaign-rag/internal/apperr"
	ctxbuild "github.com/semaj90/campaign-rag/internal/context"
	"github.com/semaj90/campaign-rag/internal/llm"
)

const temperature = 0
const maxHistoryMessages = 10

const systemPrompt = `You are a knowledgeable assistant for tabletop RPG campaign documents. Answer strictly from the supplied source text.
Quote numeric and mechanical values verbatim. Cite your claims with bracketed markers (e.g. [1]) matching the numbered sources in the context.
If the sources are insufficient to answer, begin your response with "I don't have enough information" and describe what is missing.
If sources conflict, cite both and note the conflict.`

// Label is the three-level confidence label exposed to the external API.
type Label string

const (
	LabelHigh   Label = "high"
	LabelMedium Label = "medium"
	LabelLow    Label = "low"
)

// Answer is the result of one generate call.
type Answer struct {
	Answer         string
	Confidence     float64
	ConfidenceTag  Label
	Sources        []SourceRef
	IsUnanswerable bool
	Usage          *llm.Usage
}

// SourceRef mirrors store.AnswerSource but generation stays decoupled
// from the store package — the caller maps ctxbuild.Built.Sources onto
// this shape (identical fields, kept separate so generation never needs
// to import store).
type SourceRef struct {
	Index          int
	DocumentID     string
	DocumentName   string
	PageNumber     *int
	Section        *string
	RelevanceScore float64
}

var unanswerablePhrases = []string{
	"i don't have enough information",
	"not mentioned in",
	"no information about",
	"not found in the",
	"cannot find",
	"no relevant context",
	"cannot answer this question",
	"the provided sources do not",
	"insufficient information",
}

// Generate prompts the chat LLM with the built context, the question,
// and up to the last 10 history messages, then scores confidence per
// spec.md §4.8.
func Generate(ctx context.Context, provider llm.Provider, model string, question string, built ctxbuild.Built, sources []SourceRef, history []llm.Message) (*Answer, error) {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	messages = append(messages, recentHistory(history)...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userMessage(question, built, sources)})

	out, usage, err := provider.Chat(ctx, messages, llm.ChatOptions{Model: model, Temperature: temperature, MaxTokens: 1024})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeGenerationFailed, "response generation failed", err)
	}

	unanswerable := isUnanswerable(out)
	confidence := scoreConfidence(sources, unanswerable)

	return &Answer{
		Answer:         out,
		Confidence:     confidence,
		ConfidenceTag:  labelFor(confidence),
		Sources:        sources,
		IsUnanswerable: unanswerable,
		Usage:          usage,
	}, nil
}

func recentHistory(history []llm.Message) []llm.Message {
	if len(history) <= maxHistoryMessages {
		return history
	}
	return history[len(history)-maxHistoryMessages:]
}

// userMessage builds the context + source legend + question block. When
// built has no sources, substitutes the explicit "no relevant context"
// notice per spec.md §4.8.
func userMessage(question string, built ctxbuild.Built, sources []SourceRef) string {
	var b strings.Builder
	if built.ChunksUsed == 0 {
		b.WriteString("No relevant context was found for this question.\n\n")
	} else {
		b.WriteString("Context:\n")
		b.WriteString(built.ContextText)
		b.WriteString("\n\nSources:\n")
		for _, s := range sources {
			b.WriteString(formatLegendEntry(s))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}

func formatLegendEntry(s SourceRef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s", s.Index, s.DocumentName)
	if s.Section != nil && *s.Section != "" {
		fmt.Fprintf(&b, " - %s", *s.Section)
	}
	if s.PageNumber != nil {
		fmt.Fprintf(&b, " (p. %d)", *s.PageNumber)
	}
	return b.String()
}

// isUnanswerable does a case-insensitive substring match against a
// closed set of hedge phrases (spec.md §4.8).
func isUnanswerable(answer string) bool {
	lower := strings.ToLower(answer)
	for _, phrase := range unanswerablePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// scoreConfidence implements spec.md §4.8's heuristic: 0.1 with no
// sources, 0.15 when unanswerable, else a weighted blend of top score,
// average relevance, and source count (capped contribution).
func scoreConfidence(sources []SourceRef, unanswerable bool) float64 {
	if len(sources) == 0 {
		return 0.1
	}
	if unanswerable {
		return 0.15
	}

	topScore := sources[0].RelevanceScore
	sum := 0.0
	for _, s := range sources {
		sum += s.RelevanceScore
	}
	avgRelevance := sum / float64(len(sources))

	bonus := float64(len(sources) - 1)
	if bonus > 3 {
		bonus = 3
	}

	score := topScore*0.5 + avgRelevance*0.3 + bonus*0.05 + 0.05
	return clamp(score, 0, 1)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func labelFor(confidence float64) Label {
	switch {
	case confidence >= 0.7:
		return LabelHigh
	case confidence >= 0.4:
		return LabelMedium
	default:
		return LabelLow
	}
}
