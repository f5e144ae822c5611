// Package queue implements the document-indexing job queue (spec.md §6)
// over Redis, grounded in legal-gateway/worker.go's BLPOP consumer loop
// and updateJobStatus/publishEvent pattern, generalized from a single
// ad hoc ingest queue into a named-queue abstraction the indexing worker
// consumes.
package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/semaj90/campaign-rag/internal/apperr"
)

const statusTTL = 24 * time.Hour

// Payload is the indexing job payload spec.md §6 defines.
type Payload struct {
	DocumentID string `json:"documentId"`
	CampaignID string `json:"campaignId"`
}

// Progress is the progress payload shape spec.md §6 defines, persisted
// to Redis so a caller can poll mid-run (SPEC_FULL.md's "job
// status/progress persistence" supplement).
type Progress struct {
	Percentage int                    `json:"percentage"`
	Message    string                 `json:"message"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Status     string                 `json:"status"`
	UpdatedAt  time.Time              `json:"updatedAt"`
}

// Queue wraps a Redis client with RPUSH/BLPOP job dispatch plus
// documentId-level in-flight deduplication (spec.md §5 "only one job
// runs at a time" per document).
type Queue struct {
	rdb      *redis.Client
	name     string
	mu       sync.Mutex
	inflight map[string]bool
}

func New(rdb *redis.Client, name string) *Queue {
	return &Queue{rdb: rdb, name: name, inflight: make(map[string]bool)}
}

// Enqueue pushes a job payload onto the named queue list.
func (q *Queue) Enqueue(ctx context.Context, p Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return apperr.Wrap(apperr.CodeStorageFailed, "failed to encode job payload", err)
	}
	if err := q.rdb.RPush(ctx, q.listKey(), data).Err(); err != nil {
		return apperr.Wrap(apperr.CodeStorageFailed, "failed to enqueue job", err)
	}
	return nil
}

// Dequeue blocks (up to timeout, 0 means forever) for the next job.
// Returns (nil, nil) on timeout with no job available.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Payload, error) {
	result, err := q.rdb.BLPop(ctx, timeout, q.listKey()).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageFailed, "dequeue failed", err)
	}
	if len(result) < 2 {
		return nil, nil
	}
	var p Payload
	if err := json.Unmarshal([]byte(result[1]), &p); err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageFailed, "failed to decode job payload", err)
	}
	return &p, nil
}

// TryLock marks documentId as in-flight, returning false if a job for
// that document is already running — queue-level deduplication per
// spec.md §5.
func (q *Queue) TryLock(documentID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inflight[documentID] {
		return false
	}
	q.inflight[documentID] = true
	return true
}

func (q *Queue) Unlock(documentID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, documentID)
}

// InflightIDs returns a snapshot of currently locked document IDs, used
// by the stale-job sweeper.
func (q *Queue) InflightIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, 0, len(q.inflight))
	for id := range q.inflight {
		ids = append(ids, id)
	}
	return ids
}

// SetProgress persists the current stage progress under a 24h TTL so a
// caller can poll job state mid-run.
func (q *Queue) SetProgress(ctx context.Context, documentID string, p Progress) error {
	p.UpdatedAt = time.Now()
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return q.rdb.Set(ctx, q.statusKey(documentID), data, statusTTL).Err()
}

// GetProgress reads the last persisted progress for a document, if any.
func (q *Queue) GetProgress(ctx context.Context, documentID string) (*Progress, error) {
	data, err := q.rdb.Get(ctx, q.statusKey(documentID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p Progress
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PublishEvent emits a telemetry-style pub/sub event (e.g.
// document_indexing_failed, spec.md §4.3) on the queue's events channel.
func (q *Queue) PublishEvent(ctx context.Context, event string, data interface{}) error {
	payload, err := json.Marshal(map[string]interface{}{"event": event, "data": data, "ts": time.Now()})
	if err != nil {
		return err
	}
	return q.rdb.Publish(ctx, "events:"+q.name, payload).Err()
}

func (q *Queue) listKey() string   { return q.name }
func (q *Queue) statusKey(documentID string) string { return "job:status:" + documentID }
