package indexing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/semaj90/campaign-rag/internal/apperr"
	"github.com/semaj90/campaign-rag/internal/queue"
)

const dequeueTimeout = 2 * time.Second

// Run consumes the document-indexing queue until ctx is cancelled,
// dispatching each job to a bounded pool of goroutines (spec.md §5
// "a queue of parallel worker tasks, bounded by configurable
// concurrency"). Jobs for a document already in flight are not run —
// Run pushes them back onto the queue so they are dequeued again later
// and run once the in-flight job has released its lock, per spec.md §5's
// per-document dedup.
func Run(ctx context.Context, w *Worker, q *queue.Queue, concurrency, attemptMax int) {
	if concurrency <= 0 {
		concurrency = 4
	}
	slots := make(chan struct{}, concurrency)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		payload, err := q.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			w.Logger.Error("dequeue failed", zap.Error(err))
			continue
		}
		if payload == nil {
			continue
		}
		if !q.TryLock(payload.DocumentID) {
			// Already running for this document; requeue for later.
			_ = q.Enqueue(ctx, *payload)
			continue
		}

		slots <- struct{}{}
		go func(p queue.Payload) {
			defer func() { <-slots }()
			defer q.Unlock(p.DocumentID)
			runWithRetries(ctx, w, q, p, attemptMax)
		}(*payload)
	}
}

// runWithRetries re-attempts ProcessDocument up to attemptMax times,
// restarting from stage 1 each time (spec.md §4.3 "retries restart from
// stage 1"), but stops immediately on a non-retryable error code per the
// taxonomy's retryability classification (spec.md §9).
func runWithRetries(ctx context.Context, w *Worker, q *queue.Queue, payload queue.Payload, attemptMax int) {
	if attemptMax <= 0 {
		attemptMax = 3
	}
	var lastErr error
	for attempt := 1; attempt <= attemptMax; attempt++ {
		lastErr = w.ProcessDocument(ctx, payload)
		if lastErr == nil {
			return
		}
		if !apperr.CodeOf(lastErr).Retryable() {
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
	w.Logger.Error("indexing job exhausted retries",
		zap.String("documentId", payload.DocumentID), zap.Int("attempts", attemptMax), zap.Error(lastErr))
}
