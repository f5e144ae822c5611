package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/semaj90/campaign-rag/internal/apperr"
)

// Store wraps a pgxpool.Pool with the document/chunk persistence operations
// the indexing worker and query path need. Grounded in
// unified-rag-service's initializeStorage/storeDocument/storeDocumentChunk,
// generalized from the legal-domain schema to campaigns/documents/chunks.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func New(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	s := &Store{pool: pool, logger: logger}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
		CREATE EXTENSION IF NOT EXISTS vector;

		CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			campaign_id UUID NOT NULL,
			name TEXT NOT NULL,
			document_type VARCHAR(20) NOT NULL,
			mime_type TEXT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			failure_message TEXT,
			metadata JSONB DEFAULT '{}',
			chunk_count INTEGER DEFAULT 0,
			tags TEXT[] DEFAULT '{}',
			storage_path TEXT NOT NULL DEFAULT '',
			embeddings_generated BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS chunks (
			id UUID PRIMARY KEY,
			document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			campaign_id UUID NOT NULL,
			content TEXT NOT NULL,
			embedding vector(768),
			chunk_index INTEGER NOT NULL,
			token_count INTEGER DEFAULT 0,
			page_number INTEGER,
			section TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(document_id, chunk_index)
		);

		CREATE INDEX IF NOT EXISTS idx_chunks_campaign_document ON chunks(campaign_id, document_id);
		CREATE INDEX IF NOT EXISTS idx_documents_campaign ON documents(campaign_id);
		CREATE INDEX IF NOT EXISTS idx_chunks_embedding_hnsw ON chunks
			USING hnsw (embedding vector_cosine_ops) WITH (m = 16, ef_construction = 64);

		ALTER TABLE chunks ADD COLUMN IF NOT EXISTS content_tsv tsvector
			GENERATED ALWAYS AS (to_tsvector('english', content)) STORED;
		CREATE INDEX IF NOT EXISTS idx_chunks_content_tsv ON chunks USING gin (content_tsv);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// CreateDocument inserts a new document in pending status.
func (s *Store) CreateDocument(ctx context.Context, d *Document) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.Status = DocumentStatusPending
	now := time.Now()
	d.CreatedAt, d.UpdatedAt = now, now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (id, campaign_id, name, document_type, mime_type, status, metadata, tags, storage_path, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		d.ID, d.CampaignID, d.Name, d.DocumentType, d.MimeType, d.Status, d.Metadata, d.Tags, d.StoragePath, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return apperr.Wrap(apperr.CodeStorageFailed, "failed to create document", err)
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, documentID string) (*Document, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, campaign_id, name, document_type, mime_type, status, COALESCE(failure_message,''),
		       metadata, chunk_count, tags, storage_path, embeddings_generated, created_at, updated_at
		FROM documents WHERE id = $1`, documentID)
	var d Document
	err := row.Scan(&d.ID, &d.CampaignID, &d.Name, &d.DocumentType, &d.MimeType, &d.Status, &d.FailureMessage,
		&d.Metadata, &d.ChunkCount, &d.Tags, &d.StoragePath, &d.EmbeddingsReady, &d.CreatedAt, &d.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperr.New(apperr.CodeNotFound, "document not found: "+documentID)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageFailed, "failed to load document", err)
	}
	return &d, nil
}

func (s *Store) MarkProcessing(ctx context.Context, documentID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE documents SET status=$1, updated_at=now() WHERE id=$2`,
		DocumentStatusProcessing, documentID)
	return err
}

// MarkReady finalizes a document after successful indexing.
func (s *Store) MarkReady(ctx context.Context, documentID string, chunkCount int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE documents SET status=$1, chunk_count=$2, embeddings_generated=TRUE, updated_at=now()
		WHERE id=$3`, DocumentStatusReady, chunkCount, documentID)
	return err
}

// MarkFailed records a terminal failure message and clears chunk_count.
func (s *Store) MarkFailed(ctx context.Context, documentID, message string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE documents SET status=$1, failure_message=$2, chunk_count=0, updated_at=now()
		WHERE id=$3`, DocumentStatusFailed, message, documentID)
	return err
}

// UpdateMetadata merges processor-returned metadata onto the document record.
func (s *Store) UpdateMetadata(ctx context.Context, documentID string, metadata map[string]interface{}) error {
	_, err := s.pool.Exec(ctx, `UPDATE documents SET metadata = metadata || $1, updated_at=now() WHERE id=$2`,
		metadata, documentID)
	return err
}

// DeleteChunks removes all chunks for a document — used by indexing cleanup
// on failure/cancellation and by re-indexing before a fresh insert, scoped
// to documentId per spec.md §5's "no cross-document locking required".
func (s *Store) DeleteChunks(ctx context.Context, documentID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	return err
}

// DeleteDocument removes a document; chunks cascade via FK.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, documentID)
	return err
}

const chunkInsertBatchSize = 100

// InsertChunks writes chunks in ascending chunkIndex order, in sub-batches
// of at most 100 rows (spec.md §4.3 stage 6), using one COPY-free batched
// INSERT per sub-batch (pgx.Batch keeps the teacher's single-row
// storeDocumentChunk pattern but amortizes round trips).
func (s *Store) InsertChunks(ctx context.Context, chunks []*Chunk) error {
	for start := 0; start < len(chunks); start += chunkInsertBatchSize {
		end := start + chunkInsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := s.insertChunkBatch(ctx, chunks[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertChunkBatch(ctx context.Context, chunks []*Chunk) error {
	batch := &pgx.Batch{}
	for _, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now()
		}
		batch.Queue(`
			INSERT INTO chunks (id, document_id, campaign_id, content, embedding, chunk_index, token_count, page_number, section, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (document_id, chunk_index) DO UPDATE SET content=EXCLUDED.content, embedding=EXCLUDED.embedding`,
			c.ID, c.DocumentID, c.CampaignID, c.Content, c.Embedding, c.ChunkIndex, c.TokenCount, c.PageNumber, c.Section, c.CreatedAt)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range chunks {
		if _, err := br.Exec(); err != nil {
			return apperr.Wrap(apperr.CodeStorageFailed, "failed to insert chunk batch", err)
		}
	}
	return nil
}

// ChunksByDocument returns a document's chunks ordered by chunkIndex.
func (s *Store) ChunksByDocument(ctx context.Context, documentID string) ([]*Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, campaign_id, content, embedding, chunk_index, token_count, page_number, section, created_at
		FROM chunks WHERE document_id = $1 ORDER BY chunk_index ASC`, documentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageFailed, "failed to load chunks", err)
	}
	defer rows.Close()
	var out []*Chunk
	for rows.Next() {
		var c Chunk
		var embedding pgvector.Vector
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.CampaignID, &c.Content, &embedding,
			&c.ChunkIndex, &c.TokenCount, &c.PageNumber, &c.Section, &c.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.CodeStorageFailed, "failed to scan chunk", err)
		}
		c.Embedding = embedding
		out = append(out, &c)
	}
	return out, nil
}

// DocumentIDsByTags returns the ids of documents carrying any of the given
// tags, used to resolve a query's tag filter to a document-id set before
// scoping retrieval (spec.md §6).
func (s *Store) DocumentIDsByTags(ctx context.Context, tags []string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM documents WHERE tags && $1`, tags)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageFailed, "failed to resolve tag filter", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Wrap(apperr.CodeStorageFailed, "failed to scan document id", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Pool exposes the underlying pool for packages (retrieval) that need
// query flexibility beyond this repository's fixed statements.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }
