// Package embedding implements the batched vector-generation client
// against the model API (spec.md §4.3/§6), grounded in
// sse-rag-service.generateEmbedding and unified-rag-service's
// generateEmbeddingViaOllama, generalized from a single-string call to a
// batched POST {model, input: []string} request and fitted with the
// cancellation/timeout semantics spec.md §5 requires.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/semaj90/campaign-rag/internal/apperr"
)

type Client struct {
	BaseURL    string
	Model      string
	Dimension  int
	Timeout    time.Duration
	HTTP       *http.Client
	limiter    *rate.Limiter
}

// New builds a client rate-limited to maxConcurrent simultaneous requests'
// worth of throughput, honoring spec.md §5's "callers MUST rate-limit by
// bounding worker concurrency" for the shared embedding endpoint.
func New(baseURL, model string, dimension int, timeout time.Duration, maxConcurrent int) *Client {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Client{
		BaseURL:   baseURL,
		Model:     model,
		Dimension: dimension,
		Timeout:   timeout,
		HTTP:      &http.Client{},
		limiter:   rate.NewLimiter(rate.Limit(maxConcurrent), maxConcurrent),
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates vectors for a batch of input strings in one HTTP call.
// An empty batch short-circuits without calling the endpoint (spec.md §8
// boundary behavior). The per-request timeout and the caller's ctx race:
// whichever fires first aborts the request; both listeners are released on
// return (spec.md §9 "guaranteed removal on exit from the scope").
func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperr.Wrap(apperr.CodeCancelled, "embedding request cancelled while rate-limited", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Model: c.Model, Input: inputs})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeEmbeddingFailed, "failed to encode embedding request", err)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, fmt.Sprintf("%s/embed", c.BaseURL), bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeEmbeddingFailed, "failed to build embedding request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, apperr.Wrap(apperr.CodeEmbeddingFailed, "embedding request timed out", err)
		}
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.CodeCancelled, "embedding request cancelled", err)
		}
		return nil, apperr.Wrap(apperr.CodeEmbeddingFailed, "embedding request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, apperr.New(apperr.CodeEmbeddingFailed, fmt.Sprintf("embedding endpoint returned %d", resp.StatusCode))
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, apperr.Wrap(apperr.CodeEmbeddingFailed, "failed to decode embedding response", err)
	}
	for _, v := range decoded.Embeddings {
		if len(v) != c.Dimension {
			return nil, apperr.New(apperr.CodeEmbeddingFailed,
				fmt.Sprintf("embedding dimension mismatch: got %d want %d", len(v), c.Dimension))
		}
	}
	return decoded.Embeddings, nil
}

// EmbedOne is a convenience wrapper for single-string callers (the query
// path's question embedding, the rewriter's none-use, etc).
func (c *Client) EmbedOne(ctx context.Context, input string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{input})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, apperr.New(apperr.CodeEmbeddingFailed, "embedding endpoint returned no vectors")
	}
	return vectors[0], nil
}

// BatchSlices splits inputs into batches of at most size (spec.md §4.3
// stage 5's "slice chunk texts into batches of ≤20").
func BatchSlices(inputs []string, size int) [][]string {
	if size <= 0 {
		size = 20
	}
	var batches [][]string
	for start := 0; start < len(inputs); start += size {
		end := start + size
		if end > len(inputs) {
			end = len(inputs)
		}
		batches = append(batches, inputs[start:end])
	}
	return batches
}
