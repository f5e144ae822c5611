// Package retrieval implements the hybrid vector + lexical search fusion
// described in spec.md §4.4, grounded in unified-rag-service's
// hybridSearch (vector ANN query + keyword fallback) generalized to a
// weighted-sum fusion with normalized scores on both sides.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/semaj90/campaign-rag/internal/apperr"
)

const (
	DefaultLimit         = 8
	DefaultVectorWeight  = 0.7
	DefaultKeywordWeight = 0.3
	// candidatePoolFactor widens each sub-retrieval beyond Limit so fusion
	// has enough candidates to rank correctly after dedup.
	candidatePoolFactor = 4
)

// Filter scopes a search to one campaign and optionally narrows by
// document identity or type.
type Filter struct {
	CampaignID    string
	Limit         int
	DocumentIDs   []string
	DocumentTypes []string
	VectorWeight  float64
	KeywordWeight float64
}

type Result struct {
	ChunkID      string
	DocumentID   string
	DocumentName string
	DocumentType string
	Content      string
	ChunkIndex   int
	PageNumber   *int
	Section      string
	VectorScore  float64
	KeywordScore float64
	Score        float64
}

// scopeClause builds the shared campaignId/documentIds/documentTypes
// predicate, starting parameter numbering at argOffset+1, and returns it
// alongside the arguments to append after any search-specific ones.
func scopeClause(filter Filter, argOffset int) (string, []any) {
	var clauses []string
	var args []any

	argOffset++
	clauses = append(clauses, fmt.Sprintf("campaign_id = $%d", argOffset))
	args = append(args, filter.CampaignID)

	if len(filter.DocumentIDs) > 0 {
		argOffset++
		clauses = append(clauses, fmt.Sprintf("document_id = ANY($%d)", argOffset))
		args = append(args, filter.DocumentIDs)
	}
	if len(filter.DocumentTypes) > 0 {
		argOffset++
		clauses = append(clauses, fmt.Sprintf(`document_id IN (SELECT id FROM documents WHERE document_type = ANY($%d))`, argOffset))
		args = append(args, filter.DocumentTypes)
	}
	return strings.Join(clauses, " AND "), args
}

// Search runs the vector and lexical retrievals, fuses by weighted sum,
// dedups by chunkId keeping the max score, and returns at most
// filter.Limit results sorted by score descending (spec.md §4.4's
// tie-break: higher vectorScore, then later chunkIndex).
func Search(ctx context.Context, pool *pgxpool.Pool, queryText string, queryEmbedding []float32, filter Filter) ([]Result, error) {
	if filter.CampaignID == "" {
		return nil, apperr.New(apperr.CodeInvalidQuery, "campaignId is required for search")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	alphaV := filter.VectorWeight
	alphaK := filter.KeywordWeight
	if alphaV == 0 && alphaK == 0 {
		alphaV, alphaK = DefaultVectorWeight, DefaultKeywordWeight
	}
	poolSize := limit * candidatePoolFactor

	vectorHits, err := vectorSearch(ctx, pool, queryEmbedding, filter, poolSize)
	if err != nil {
		return nil, err
	}
	var keywordHits []Result
	if strings.TrimSpace(queryText) != "" {
		keywordHits, err = keywordSearch(ctx, pool, queryText, filter, poolSize)
		if err != nil {
			return nil, err
		}
	}

	merged := make(map[string]*Result, len(vectorHits)+len(keywordHits))
	for _, h := range vectorHits {
		hc := h
		merged[hc.ChunkID] = &hc
	}
	for _, h := range keywordHits {
		if existing, ok := merged[h.ChunkID]; ok {
			existing.KeywordScore = h.KeywordScore
		} else {
			hc := h
			merged[hc.ChunkID] = &hc
		}
	}

	results := make([]Result, 0, len(merged))
	for _, r := range merged {
		r.Score = alphaV*r.VectorScore + alphaK*r.KeywordScore
		results = append(results, *r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].VectorScore != results[j].VectorScore {
			return results[i].VectorScore > results[j].VectorScore
		}
		return results[i].ChunkIndex > results[j].ChunkIndex
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// vectorSearch ranks chunks by cosine similarity to queryEmbedding,
// normalized from pgvector's [-1,1] range to spec.md §4.4's [0,1].
func vectorSearch(ctx context.Context, pool *pgxpool.Pool, queryEmbedding []float32, filter Filter, limit int) ([]Result, error) {
	if len(queryEmbedding) == 0 {
		return nil, nil
	}
	scope, scopeArgs := scopeClause(filter, 1)
	args := append([]any{pgvector.NewVector(queryEmbedding)}, scopeArgs...)
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, document_id, content, chunk_index, page_number, section,
		       (1 - (embedding <=> $1)) AS cosine_sim
		FROM chunks
		WHERE %s
		ORDER BY embedding <=> $1
		LIMIT $%d`, scope, len(args))

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeSearchFailed, "vector search failed", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		var cosineSim float64
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.Content, &r.ChunkIndex, &r.PageNumber, &r.Section, &cosineSim); err != nil {
			return nil, apperr.Wrap(apperr.CodeSearchFailed, "vector search scan failed", err)
		}
		r.VectorScore = normalizeSimilarity(cosineSim)
		out = append(out, r)
	}
	return out, nil
}

// keywordSearch ranks chunks by Postgres full-text rank, normalized via
// ts_rank_cd's normalization flag 32 (rank/(rank+1)), which is bounded to
// [0,1) and therefore already satisfies spec.md §4.4's normalization
// requirement without further scaling.
func keywordSearch(ctx context.Context, pool *pgxpool.Pool, queryText string, filter Filter, limit int) ([]Result, error) {
	scope, scopeArgs := scopeClause(filter, 1)
	args := append([]any{queryText}, scopeArgs...)
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, document_id, content, chunk_index, page_number, section,
		       ts_rank_cd(content_tsv, plainto_tsquery('english', $1), 32) AS rank
		FROM chunks
		WHERE content_tsv @@ plainto_tsquery('english', $1) AND %s
		ORDER BY rank DESC
		LIMIT $%d`, scope, len(args))

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeSearchFailed, "keyword search failed", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.Content, &r.ChunkIndex, &r.PageNumber, &r.Section, &r.KeywordScore); err != nil {
			return nil, apperr.Wrap(apperr.CodeSearchFailed, "keyword search scan failed", err)
		}
		out = append(out, r)
	}
	return out, nil
}

func normalizeSimilarity(sim float64) float64 {
	v := (sim + 1) / 2
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v
}
