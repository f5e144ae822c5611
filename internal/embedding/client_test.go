package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semaj90/campaign-rag/internal/apperr"
)

func TestBatchSlicesSplitsAtSize(t *testing.T) {
	inputs := []string{"a", "b", "c", "d", "e"}
	batches := BatchSlices(inputs, 2)
	require.Len(t, batches, 3)
	assert.Equal(t, []string{"a", "b"}, batches[0])
	assert.Equal(t, []string{"c", "d"}, batches[1])
	assert.Equal(t, []string{"e"}, batches[2])
}

func TestBatchSlicesDefaultsSizeWhenNonPositive(t *testing.T) {
	inputs := make([]string, 25)
	batches := BatchSlices(inputs, 0)
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 20)
	assert.Len(t, batches[1], 5)
}

func TestEmbedShortCircuitsOnEmptyInput(t *testing.T) {
	c := New("http://unused", "model", 4, time.Second, 1)
	vectors, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestEmbedPostsBatchAndReturnsVectors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"hello", "world"}, req.Input)
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.1, 0.2}, {0.3, 0.4}}})
	}))
	defer server.Close()

	c := New(server.URL, "model", 2, time.Second, 1)
	vectors, err := c.Embed(context.Background(), []string{"hello", "world"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vectors[0])
}

func TestEmbedFailsOnDimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.1, 0.2, 0.3}}})
	}))
	defer server.Close()

	c := New(server.URL, "model", 2, time.Second, 1)
	_, err := c.Embed(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeEmbeddingFailed, apperr.CodeOf(err))
}

func TestEmbedFailsOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(server.URL, "model", 2, time.Second, 1)
	_, err := c.Embed(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeEmbeddingFailed, apperr.CodeOf(err))
}

func TestEmbedOneReturnsFirstVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.5, 0.6}}})
	}))
	defer server.Close()

	c := New(server.URL, "model", 2, time.Second, 1)
	vector, err := c.EmbedOne(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.6}, vector)
}
