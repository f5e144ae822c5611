package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	ctxbuild "github.com/semaj90/campaign-rag/internal/context"
	"github.com/semaj90/campaign-rag/internal/generation"
	"github.com/semaj90/campaign-rag/internal/retrieval"
	"github.com/semaj90/campaign-rag/internal/streaming"
)

type generateRequest struct {
	Tone       string `json:"tone"`
	Theme      string `json:"theme"`
	PartyLevel int    `json:"partyLevel"`
	Count      int    `json:"count"`
}

// GenerateHooksHandler handles POST /campaigns/:id/generate/hooks.
func (s *Server) GenerateHooksHandler(c *gin.Context) {
	s.handleGenerate(c, streaming.KindHook)
}

// GenerateNPCsHandler handles POST /campaigns/:id/generate/npcs.
func (s *Server) GenerateNPCsHandler(c *gin.Context) {
	s.handleGenerate(c, streaming.KindNPC)
}

// handleGenerate retrieves grounding context with a framing query built
// from the campaign's tone/theme, then either streams one SSE event per
// generated item (Accept: text/event-stream, grounded in sse-rag-service's
// sseHandler flush loop) or collects the full set into one JSON response.
func (s *Server) handleGenerate(c *gin.Context, kind streaming.ItemKind) {
	campaignID := c.Param("id")
	var req generateRequest
	_ = c.ShouldBindJSON(&req)

	params := streaming.Params{
		Kind: kind, Tone: req.Tone, Theme: req.Theme,
		PartyLevel: req.PartyLevel, Count: req.Count, CampaignID: campaignID,
	}

	built, sourceRefs, err := s.buildGenerationContext(c, campaignID, params)
	if err != nil {
		s.Logger.Error("failed to build generation context", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve campaign context"})
		return
	}

	if c.GetHeader("Accept") == "text/event-stream" {
		s.streamGeneration(c, params, built, sourceRefs)
		return
	}

	var hooks []streaming.Hook
	var npcs []streaming.NPC
	streaming.Run(c.Request.Context(), s.LLM, s.Config.ChatModel, params, built, sourceRefs, func(ev streaming.Event) {
		switch ev.Type {
		case streaming.EventHook:
			hooks = append(hooks, *ev.Hook)
		case streaming.EventNPC:
			npcs = append(npcs, *ev.NPC)
		}
	})

	resp := gin.H{"sources": sourceRefs, "chunksUsed": built.ChunksUsed}
	if kind == streaming.KindNPC {
		resp["npcs"] = npcs
	} else {
		resp["hooks"] = hooks
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) streamGeneration(c *gin.Context, params streaming.Params, built ctxbuild.Built, sourceRefs []generation.SourceRef) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	streaming.Run(c.Request.Context(), s.LLM, s.Config.ChatModel, params, built, sourceRefs, func(ev streaming.Event) {
		writeSSEEvent(c, ev)
		c.Writer.Flush()
	})
}

func writeSSEEvent(c *gin.Context, ev streaming.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		data = []byte("{}")
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Type, data)
}

// buildGenerationContext runs the same hybrid search the query path uses,
// but framed by tone/theme instead of a user question (spec.md §4.9).
func (s *Server) buildGenerationContext(c *gin.Context, campaignID string, params streaming.Params) (ctxbuild.Built, []generation.SourceRef, error) {
	query := framingQuery(params)
	queryEmbedding, err := s.Embedding.EmbedOne(c.Request.Context(), query)
	if err != nil {
		return ctxbuild.Built{}, nil, err
	}

	results, err := retrieval.Search(c.Request.Context(), s.Store.Pool(), query, queryEmbedding, retrieval.Filter{CampaignID: campaignID})
	if err != nil {
		return ctxbuild.Built{}, nil, err
	}

	docs, err := s.docInfoFor(c.Request.Context(), results)
	if err != nil {
		return ctxbuild.Built{}, nil, err
	}

	built := ctxbuild.Build(results, docs, ctxbuild.Options{})
	return built, toSourceRefs(built.Sources), nil
}

func framingQuery(params streaming.Params) string {
	var b strings.Builder
	b.WriteString("campaign setting, locations, and characters")
	if params.Theme != "" {
		fmt.Fprintf(&b, " related to %s", params.Theme)
	}
	if params.Tone != "" {
		fmt.Fprintf(&b, " with a %s tone", params.Tone)
	}
	return b.String()
}
