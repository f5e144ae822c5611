// Package streaming implements the generation streamer (spec.md §4.9):
// hooks/NPCs generated from the same retrieval base and emitted
// incrementally as the chat model streams its JSON array response.
// Grounded in sse-rag-service's SSEEvent/sendSSEEvent plumbing,
// generalized from a free-form event type to the status/hook/npc/
// complete/error union spec.md §4.9 names.
package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/semaj90/campaign-rag/internal/apperr"
	ctxbuild "github.com/semaj90/campaign-rag/internal/context"
	"github.com/semaj90/campaign-rag/internal/generation"
	"github.com/semaj90/campaign-rag/internal/llm"
)

type ItemKind string

const (
	KindHook ItemKind = "hook"
	KindNPC  ItemKind = "npc"
)

// Hook is one adventure-hook item the model emits.
type Hook struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Tone        string `json:"tone,omitempty"`
	Theme       string `json:"theme,omitempty"`
}

// NPC is one non-player-character item the model emits.
type NPC struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Role        string `json:"role,omitempty"`
	Motivation  string `json:"motivation,omitempty"`
}

// Params configures one generation request.
type Params struct {
	Kind       ItemKind
	Tone       string
	Theme      string
	PartyLevel int
	Count      int
	CampaignID string
}

// EventType enumerates the SSE union spec.md §4.9 defines. The sequence
// emitted by Run is monotonic: Status* -> (Hook|NPC)* -> Complete|Error.
type EventType string

const (
	EventStatus   EventType = "status"
	EventHook     EventType = "hook"
	EventNPC      EventType = "npc"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

type Event struct {
	Type       EventType            `json:"type"`
	Message    string               `json:"message,omitempty"`
	Hook       *Hook                `json:"hook,omitempty"`
	NPC        *NPC                 `json:"npc,omitempty"`
	Sources    []generation.SourceRef `json:"sources,omitempty"`
	ChunksUsed int                  `json:"chunksUsed,omitempty"`
	Usage      *llm.Usage           `json:"usage,omitempty"`
	StatusCode int                  `json:"statusCode,omitempty"`
	Error      string               `json:"error,omitempty"`
}

const systemPromptTemplate = `You generate tabletop RPG %s content grounded strictly in the supplied campaign context.
Respond with a single JSON array of exactly %d objects, no surrounding prose, no markdown code fences.
Each object must have exactly these fields: %s.`

const hookFields = `"title" (string), "description" (string)`
const npcFields = `"name" (string), "description" (string), "role" (string), "motivation" (string)`

// Run drives one generation: builds a prompt from built context, streams
// the chat model's response, and emits one event per complete top-level
// JSON object recognized in the stream, finishing with Complete or Error.
// The caller supplies built/sourceRefs from a prior retrieval pass (the
// "domain-specific framing query" hybrid search spec.md §4.9 describes);
// streaming itself never calls retrieval directly, keeping this package a
// leaf consumer of ctxbuild + llm only.
func Run(ctx context.Context, provider llm.Provider, model string, params Params, built ctxbuild.Built, sourceRefs []generation.SourceRef, emit func(Event)) {
	count := params.Count
	if count <= 0 {
		count = 1
	}

	emit(Event{Type: EventStatus, Message: "retrieving grounding context"})

	kindWord, fields := "adventure hooks", hookFields
	if params.Kind == KindNPC {
		kindWord, fields = "non-player characters", npcFields
	}

	systemPrompt := fmt.Sprintf(systemPromptTemplate, kindWord, count, fields)

	userPrompt := formatUserPrompt(params, built)

	emit(Event{Type: EventStatus, Message: "generating content"})

	chunks, err := provider.ChatStream(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: userPrompt},
	}, llm.ChatOptions{Model: model, Temperature: 0.7, MaxTokens: 512 * count})
	if err != nil {
		emit(Event{Type: EventError, StatusCode: 500, Error: string(apperr.CodeGenerationFailed), Message: err.Error()})
		return
	}

	parser := newItemParser()
	var usage *llm.Usage

	for chunk := range chunks {
		if chunk.Err != nil {
			emit(Event{Type: EventError, StatusCode: 500, Error: string(apperr.CodeLLMError), Message: chunk.Err.Error()})
			return
		}
		for _, raw := range parser.feed(chunk.Token) {
			if ev, ok := decodeItem(params.Kind, raw); ok {
				emit(ev)
			}
		}
		if chunk.Done {
			break
		}
		if err := ctx.Err(); err != nil {
			emit(Event{Type: EventError, StatusCode: 499, Error: string(apperr.CodeCancelled), Message: "generation cancelled"})
			return
		}
	}

	emit(Event{Type: EventComplete, Sources: sourceRefs, ChunksUsed: built.ChunksUsed, Usage: usage})
}

// Regenerate reruns Run with count=1 for a single replacement item; the
// caller is responsible for splicing the returned item at the requested
// index in its client-visible list (spec.md §4.9 "per-item regeneration").
func Regenerate(ctx context.Context, provider llm.Provider, model string, params Params, built ctxbuild.Built, sourceRefs []generation.SourceRef) (Event, error) {
	params.Count = 1
	var result Event
	found := false
	Run(ctx, provider, model, params, built, sourceRefs, func(ev Event) {
		if (ev.Type == EventHook || ev.Type == EventNPC) && !found {
			result = ev
			found = true
		}
	})
	if !found {
		return Event{}, apperr.New(apperr.CodeGenerationFailed, "regeneration produced no item")
	}
	return result, nil
}

func formatUserPrompt(params Params, built ctxbuild.Built) string {
	var b strings.Builder
	b.WriteString("Campaign context:\n")
	if built.ChunksUsed == 0 {
		b.WriteString("(no relevant context retrieved; generate generic but internally consistent content)\n")
	} else {
		b.WriteString(built.ContextText)
		b.WriteString("\n")
	}
	b.WriteString("\nParameters:\n")
	if params.Tone != "" {
		b.WriteString("tone: " + params.Tone + "\n")
	}
	if params.Theme != "" {
		b.WriteString("theme: " + params.Theme + "\n")
	}
	if params.PartyLevel > 0 {
		fmt.Fprintf(&b, "party level: %d\n", params.PartyLevel)
	}
	return b.String()
}

func decodeItem(kind ItemKind, raw string) (Event, bool) {
	switch kind {
	case KindNPC:
		var npc NPC
		if err := json.Unmarshal([]byte(raw), &npc); err != nil {
			return Event{}, false
		}
		return Event{Type: EventNPC, NPC: &npc}, true
	default:
		var hook Hook
		if err := json.Unmarshal([]byte(raw), &hook); err != nil {
			return Event{}, false
		}
		return Event{Type: EventHook, Hook: &hook}, true
	}
}

// itemParser recognizes complete top-level JSON objects within a
// streamed JSON array by tracking brace depth and string/escape state,
// independent of chunk boundaries (a single object may straddle many
// tokens). String literals are tracked so braces inside them don't skew
// depth.
type itemParser struct {
	buf        strings.Builder
	objDepth   int
	inString   bool
	escaped    bool
	objStart   int
	totalRead  int
}

func newItemParser() *itemParser { return &itemParser{} }

// feed consumes one streamed token and returns any complete top-level
// objects it completed.
func (p *itemParser) feed(token string) []string {
	var complete []string
	for _, r := range token {
		p.buf.WriteRune(r)
		p.totalRead = p.buf.Len()

		if p.inString {
			if p.escaped {
				p.escaped = false
			} else if r == '\\' {
				p.escaped = true
			} else if r == '"' {
				p.inString = false
			}
			continue
		}

		switch r {
		case '"':
			p.inString = true
		case '{':
			if p.objDepth == 0 {
				p.objStart = p.totalRead - 1
			}
			p.objDepth++
		case '}':
			if p.objDepth > 0 {
				p.objDepth--
				if p.objDepth == 0 {
					full := p.buf.String()
					complete = append(complete, full[p.objStart:p.totalRead])
				}
			}
		}
	}
	return complete
}
