// Package indexing orchestrates the document-indexing job (spec.md
// §4.3): extract -> chunk -> embed -> store -> finalise, with staged
// progress reporting, cooperative cancellation, and cleanup-on-failure.
// Grounded in legal-gateway/worker.go's processJob/processDocument loop,
// generalized from a single WASM-preprocessed payload into the
// processor/chunker/embedding pipeline this spec names.
package indexing

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/semaj90/campaign-rag/internal/apperr"
	"github.com/semaj90/campaign-rag/internal/chunker"
	"github.com/semaj90/campaign-rag/internal/embedding"
	"github.com/semaj90/campaign-rag/internal/processor"
	"github.com/semaj90/campaign-rag/internal/queue"
	"github.com/semaj90/campaign-rag/internal/storage"
	"github.com/semaj90/campaign-rag/internal/store"
)

// Stage progress boundaries, spec.md §4.3.
const (
	pctExtractStart = 0
	pctExtractEnd   = 20
	pctChunkEnd     = 35
	pctEmbedEnd     = 85
	pctStoreEnd     = 95
	pctDone         = 100
)

// Worker runs one document's indexing pipeline. It holds no per-job
// state so a single Worker instance is safe to invoke concurrently for
// different documents, bounded by the caller's own concurrency control
// (spec.md §5 "bounded by configurable concurrency").
type Worker struct {
	Store          *store.Store
	Storage        *storage.Client
	Embedding      *embedding.Client
	Queue          *queue.Queue
	Logger         *zap.Logger
	ChunkerOptions chunker.Options
	EmbedBatchSize int
}

// ProcessDocument runs stages 1-7 for one document. Idempotent: a retry
// re-runs from stage 1, and InsertChunks upserts on (documentId,
// chunkIndex) conflict so re-running after a partial failure is safe.
func (w *Worker) ProcessDocument(ctx context.Context, payload queue.Payload) error {
	documentID, campaignID := payload.DocumentID, payload.CampaignID

	// Stage 1: validate.
	doc, err := w.Store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if err := w.checkCancelled(ctx, documentID); err != nil {
		return w.fail(ctx, documentID, err)
	}

	// Stage 2: mark processing.
	if err := w.Store.MarkProcessing(ctx, documentID); err != nil {
		return w.fail(ctx, documentID, apperr.Wrap(apperr.CodeStorageFailed, "failed to mark document processing", err))
	}

	// Stage 3: extract (0 -> 20%).
	w.reportProgress(ctx, documentID, pctExtractStart, "downloading document")
	raw, err := w.Storage.Get(ctx, doc.StoragePath)
	if err != nil {
		return w.fail(ctx, documentID, apperr.Wrap(apperr.CodeStorageFailed, "failed to download document", err))
	}
	proc, err := processor.ForMimeType(doc.MimeType)
	if err != nil {
		return w.fail(ctx, documentID, err)
	}
	result, err := proc.Process(ctx, campaignID, documentID, raw)
	if err != nil {
		return w.fail(ctx, documentID, err)
	}
	if err := w.Store.UpdateMetadata(ctx, documentID, map[string]interface{}{
		"title":            result.Metadata.Title,
		"author":           result.Metadata.Author,
		"created":          result.Metadata.Created,
		"updated":          result.Metadata.Updated,
		"hasExtractedText": result.HasExtractedText,
	}); err != nil {
		return w.fail(ctx, documentID, apperr.Wrap(apperr.CodeStorageFailed, "failed to persist extracted metadata", err))
	}
	w.reportProgress(ctx, documentID, pctExtractEnd, "extraction complete")

	if err := w.checkCancelled(ctx, documentID); err != nil {
		return w.fail(ctx, documentID, err)
	}

	// Stage 4: chunk (20 -> 35%).
	chunked, err := chunker.Run(ctx, result, w.ChunkerOptions)
	if err != nil {
		return w.fail(ctx, documentID, err)
	}
	w.reportProgress(ctx, documentID, pctChunkEnd, fmt.Sprintf("split into %d chunks", len(chunked.Chunks)))

	if err := w.checkCancelled(ctx, documentID); err != nil {
		return w.fail(ctx, documentID, err)
	}

	// Stage 5: embed (35 -> 85%), batches of <=20, cancellation checked
	// inside the loop per spec.md §4.3.
	vectors, err := w.embedAll(ctx, documentID, chunked)
	if err != nil {
		return w.fail(ctx, documentID, err)
	}

	if err := w.checkCancelled(ctx, documentID); err != nil {
		return w.fail(ctx, documentID, err)
	}

	// Stage 6: store (85 -> 95%), sub-batches of <=100 rows, in ascending
	// chunkIndex order (spec.md §5).
	w.Store.DeleteChunks(ctx, documentID) // idempotent re-index: clear any partial prior insert
	storeChunks := make([]*store.Chunk, 0, len(chunked.Chunks))
	for i, c := range chunked.Chunks {
		storeChunks = append(storeChunks, &store.Chunk{
			DocumentID: documentID,
			CampaignID: campaignID,
			Content:    c.Content,
			Embedding:  vectors[i],
			ChunkIndex: i,
			TokenCount: c.TokenCount,
			PageNumber: c.PageNumber,
			Section:    sectionPtr(c.Section),
		})
	}
	if err := w.Store.InsertChunks(ctx, storeChunks); err != nil {
		return w.fail(ctx, documentID, err)
	}
	w.reportProgress(ctx, documentID, pctStoreEnd, "chunks stored")

	// Stage 7: finalise.
	if err := w.Store.MarkReady(ctx, documentID, len(storeChunks)); err != nil {
		return w.fail(ctx, documentID, apperr.Wrap(apperr.CodeStorageFailed, "failed to finalise document", err))
	}
	w.reportProgress(ctx, documentID, pctDone, "indexing complete")
	return nil
}

// embedAll slices chunk text into batches of at most EmbedBatchSize,
// fans them out with a bounded-concurrency errgroup (DOMAIN STACK:
// golang.org/x/sync), and maps batch completion linearly onto the
// 35-85% progress window.
func (w *Worker) embedAll(ctx context.Context, documentID string, chunked *chunker.Result) ([][]float32, error) {
	texts := make([]string, len(chunked.Chunks))
	for i, c := range chunked.Chunks {
		texts[i] = c.Content
	}
	batches := embedding.BatchSlices(texts, w.EmbedBatchSize)
	vectors := make([][]float32, len(texts))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	completed := 0

	for batchIdx, batch := range batches {
		batchIdx, batch := batchIdx, batch
		offset := batchOffset(batches, batchIdx)
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return apperr.Wrap(apperr.CodeCancelled, "embedding cancelled mid-batch", err)
			}
			vecs, err := w.Embedding.Embed(gCtx, batch)
			if err != nil {
				return err
			}
			for i, v := range vecs {
				vectors[offset+i] = v
			}
			completed++
			pct := pctChunkEnd + (completed*(pctEmbedEnd-pctChunkEnd))/max1(len(batches))
			w.reportProgress(ctx, documentID, pct, fmt.Sprintf("embedded batch %d/%d", completed, len(batches)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func batchOffset(batches [][]string, idx int) int {
	offset := 0
	for i := 0; i < idx; i++ {
		offset += len(batches[i])
	}
	return offset
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// checkCancelled reports CANCELLED if ctx is done, matching spec.md
// §4.3's "check a cooperative cancellation signal" between every stage.
func (w *Worker) checkCancelled(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return apperr.Wrap(apperr.CodeCancelled, "job cancelled", err)
	}
	return nil
}

// fail runs the cleanup path spec.md §4.3 requires on any stage error:
// delete chunks, mark the document failed, emit a telemetry event, and
// re-raise so the queue records the attempt failure.
func (w *Worker) fail(ctx context.Context, documentID string, err error) error {
	cleanupCtx := context.Background()
	if delErr := w.Store.DeleteChunks(cleanupCtx, documentID); delErr != nil {
		w.Logger.Error("cleanup: failed to delete chunks", zap.String("documentId", documentID), zap.Error(delErr))
	}
	message := err.Error()
	if ae, ok := apperr.As(err); ok && ae.Code == apperr.CodeCancelled {
		message = "Job cancelled"
	}
	if markErr := w.Store.MarkFailed(cleanupCtx, documentID, message); markErr != nil {
		w.Logger.Error("cleanup: failed to mark document failed", zap.String("documentId", documentID), zap.Error(markErr))
	}
	if pubErr := w.Queue.PublishEvent(cleanupCtx, "document_indexing_failed", map[string]string{
		"documentId": documentID,
		"error":      message,
	}); pubErr != nil {
		w.Logger.Error("failed to publish indexing-failed event", zap.Error(pubErr))
	}
	w.Logger.Error("indexing job failed", zap.String("documentId", documentID), zap.Error(err))
	return err
}

func (w *Worker) reportProgress(ctx context.Context, documentID string, pct int, message string) {
	if err := w.Queue.SetProgress(ctx, documentID, queue.Progress{
		Percentage: pct,
		Message:    message,
		Status:     "processing",
	}); err != nil {
		w.Logger.Warn("failed to persist job progress", zap.String("documentId", documentID), zap.Error(err))
	}
}

func sectionPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
