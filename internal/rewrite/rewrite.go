// Package rewrite turns a follow-up question plus conversation history
// into a standalone search query (spec.md §4.5). Rewriting is advisory:
// any failure falls back to the original question rather than failing
// the query pipeline.
package rewrite

import (
	"context"
	"strings"
	"time"

	"github.com/semaj90/campaign-rag/internal/llm"
)

const (
	temperature = 0.1
	maxTokens   = 200
	timeout     = 15 * time.Second
)

const systemPrompt = "Rewrite the latest message into a standalone search query preserving names and specifics. Output only the rewrite."

// Rewrite returns question unchanged when history is empty (spec.md
// §4.5's no-op case). Otherwise it asks the chat model for a standalone
// rewrite under a 15s timeout; on any error or blank output it returns
// the original question.
func Rewrite(ctx context.Context, provider llm.Provider, model, question string, history []llm.Message) (string, error) {
	if len(history) == 0 {
		return question, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})

	out, _, err := provider.Chat(reqCtx, messages, llm.ChatOptions{Model: model, Temperature: temperature, MaxTokens: maxTokens})
	if err != nil || strings.TrimSpace(out) == "" {
		return question, nil
	}
	return strings.TrimSpace(out), nil
}
