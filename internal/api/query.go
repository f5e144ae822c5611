// Package api exposes the campaign-scoped HTTP surface (spec.md §6):
// query, generation, document upload, and ops endpoints, grounded in
// unified-rag-service's uploadDocumentHandler/ragQueryHandler and
// sse-rag-service's sseHandler gin wiring.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/semaj90/campaign-rag/internal/apperr"
	ctxbuild "github.com/semaj90/campaign-rag/internal/context"
	"github.com/semaj90/campaign-rag/internal/generation"
	"github.com/semaj90/campaign-rag/internal/llm"
	"github.com/semaj90/campaign-rag/internal/observability/metrics"
	"github.com/semaj90/campaign-rag/internal/rerank"
	"github.com/semaj90/campaign-rag/internal/retrieval"
	"github.com/semaj90/campaign-rag/internal/rewrite"
	"github.com/semaj90/campaign-rag/internal/store"
)

const maxQueryLength = 2000

type queryRequest struct {
	Query   string       `json:"query" binding:"required"`
	History []historyMsg `json:"history"`
	Filters *queryFilters `json:"filters"`
}

type historyMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type queryFilters struct {
	DocumentTypes []string `json:"documentTypes"`
	Tags          []string `json:"tags"`
	DocumentIDs   []string `json:"documentIds"`
}

type queryResponse struct {
	Answer     string               `json:"answer"`
	Sources    []store.AnswerSource `json:"sources"`
	Confidence generation.Label     `json:"confidence"`
}

// QueryHandler handles POST /campaigns/:id/query.
func (s *Server) QueryHandler(c *gin.Context) {
	start := time.Now()
	defer func() { metrics.QueryLatency.Observe(time.Since(start).Seconds()) }()

	campaignID := c.Param("id")
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Query) == 0 || len(req.Query) > maxQueryLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query must be 1-2000 characters"})
		return
	}

	documentIDs, ok, err := s.resolveDocumentIDFilter(c.Request.Context(), req.Filters)
	if err != nil {
		s.Logger.Error("failed to resolve tag filter", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process query"})
		return
	}
	if !ok {
		// Tag filter resolved to an empty set: short-circuit without
		// calling the LLM (spec.md §6).
		c.JSON(http.StatusOK, queryResponse{Answer: "", Sources: nil, Confidence: generation.LabelLow})
		return
	}

	history := toLLMHistory(req.History)
	standalone, _ := rewrite.Rewrite(c.Request.Context(), s.LLM, s.Config.ChatModel, req.Query, history)

	queryEmbedding, err := s.Embedding.EmbedOne(c.Request.Context(), standalone)
	if err != nil {
		s.Logger.Error("query embedding failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process query"})
		return
	}

	filter := retrieval.Filter{CampaignID: campaignID, DocumentIDs: documentIDs}
	if req.Filters != nil {
		filter.DocumentTypes = req.Filters.DocumentTypes
	}
	results, err := retrieval.Search(c.Request.Context(), s.Store.Pool(), standalone, queryEmbedding, filter)
	if err != nil {
		s.Logger.Error("hybrid search failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process query"})
		return
	}

	if reranked, err := rerank.Rerank(c.Request.Context(), s.LLM, s.Config.ChatModel, standalone, results, rerank.DefaultThreshold); err == nil {
		results = reranked
	} else {
		s.Logger.Warn("rerank failed, falling back to retrieval order", zap.Error(err))
	}

	docs, err := s.docInfoFor(c.Request.Context(), results)
	if err != nil {
		s.Logger.Error("failed to resolve document info", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process query"})
		return
	}

	built := ctxbuild.Build(results, docs, ctxbuild.Options{})
	sourceRefs := toSourceRefs(built.Sources)

	answer, err := generation.Generate(c.Request.Context(), s.LLM, s.Config.ChatModel, req.Query, built, sourceRefs, history)
	if err != nil {
		s.Logger.Error("response generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process query"})
		return
	}

	metrics.QueryConfidence.WithLabelValues(string(answer.ConfidenceTag)).Observe(answer.Confidence)
	c.JSON(http.StatusOK, queryResponse{
		Answer:     answer.Answer,
		Sources:    built.Sources,
		Confidence: answer.ConfidenceTag,
	})
}

// resolveDocumentIDFilter intersects filters.documentIds with the
// document set matching filters.tags. Returns ok=false when the
// intersection is empty (spec.md §6 "empty intersection short-circuits").
func (s *Server) resolveDocumentIDFilter(ctx context.Context, filters *queryFilters) ([]string, bool, error) {
	if filters == nil || len(filters.Tags) == 0 {
		if filters == nil {
			return nil, true, nil
		}
		return filters.DocumentIDs, true, nil
	}
	byTag, err := s.Store.DocumentIDsByTags(ctx, filters.Tags)
	if err != nil {
		return nil, false, err
	}
	if len(filters.DocumentIDs) == 0 {
		if len(byTag) == 0 {
			return nil, false, nil
		}
		return byTag, true, nil
	}
	intersection := intersect(filters.DocumentIDs, byTag)
	if len(intersection) == 0 {
		return nil, false, nil
	}
	return intersection, true, nil
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, id := range b {
		set[id] = true
	}
	var out []string
	for _, id := range a {
		if set[id] {
			out = append(out, id)
		}
	}
	return out
}

func toLLMHistory(history []historyMsg) []llm.Message {
	if len(history) == 0 {
		return nil
	}
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		out = append(out, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}
	return out
}

func toSourceRefs(sources []store.AnswerSource) []generation.SourceRef {
	out := make([]generation.SourceRef, 0, len(sources))
	for _, s := range sources {
		out = append(out, generation.SourceRef{
			Index:          s.Index,
			DocumentID:     s.DocumentID,
			DocumentName:   s.DocumentName,
			PageNumber:     s.PageNumber,
			Section:        s.Section,
			RelevanceScore: s.RelevanceScore,
		})
	}
	return out
}

func (s *Server) docInfoFor(ctx context.Context, results []retrieval.Result) (map[string]ctxbuild.DocInfo, error) {
	info := make(map[string]ctxbuild.DocInfo, len(results))
	seen := make(map[string]bool)
	for _, r := range results {
		if seen[r.DocumentID] {
			continue
		}
		seen[r.DocumentID] = true
		doc, err := s.Store.GetDocument(ctx, r.DocumentID)
		if err != nil {
			if ae, ok := apperr.As(err); ok && ae.Code == apperr.CodeNotFound {
				continue
			}
			return nil, err
		}
		info[r.DocumentID] = ctxbuild.DocInfo{DocumentName: doc.Name, DocumentType: doc.DocumentType}
	}
	return info, nil
}
