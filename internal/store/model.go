// Package store holds the persisted data model (Document, Chunk, Job) and
// the pgx-backed repository that reads and writes it, grounded in the
// teacher's rag_documents/rag_document_chunks schema
// (unified-rag-service/main.go) generalized from a legal-domain shape to
// the campaign/document-type shape spec.md §3 requires.
package store

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

type DocumentType string

const (
	DocumentTypeRulebook DocumentType = "rulebook"
	DocumentTypeSetting  DocumentType = "setting"
	DocumentTypeNotes    DocumentType = "notes"
	DocumentTypeMap      DocumentType = "map"
	DocumentTypeImage    DocumentType = "image"
)

type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusReady      DocumentStatus = "ready"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document is a user-uploaded artifact scoped to a campaign.
type Document struct {
	ID              string                 `json:"id"`
	CampaignID      string                 `json:"campaignId"`
	Name            string                 `json:"name"`
	DocumentType    DocumentType           `json:"documentType"`
	MimeType        string                 `json:"mimeType"`
	Status          DocumentStatus         `json:"status"`
	FailureMessage  string                 `json:"failureMessage,omitempty"`
	Metadata        map[string]interface{} `json:"metadata"`
	ChunkCount      int                    `json:"chunkCount"`
	Tags            []string               `json:"tags"`
	StoragePath     string                 `json:"storagePath"`
	EmbeddingsReady bool                   `json:"embeddingsGenerated"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// Chunk is an embedded searchable segment of a Document.
type Chunk struct {
	ID          string          `json:"id"`
	DocumentID  string          `json:"documentId"`
	CampaignID  string          `json:"campaignId"`
	Content     string          `json:"content"`
	Embedding   pgvector.Vector `json:"-"`
	ChunkIndex  int             `json:"chunkIndex"`
	TokenCount  int             `json:"tokenCount"`
	PageNumber  *int            `json:"pageNumber,omitempty"`
	Section     *string         `json:"section,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// EmbeddingDimension is the fixed vector width tied to the canonical
// embedding model (spec.md §3/§6).
const EmbeddingDimension = 768

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message is one turn of a Conversation, optionally carrying the sources
// and confidence the response generator attached to it.
type Message struct {
	Role       MessageRole    `json:"role"`
	Content    string         `json:"content"`
	Sources    []AnswerSource `json:"sources,omitempty"`
	Confidence *float64       `json:"confidence,omitempty"`
}

// AnswerSource is a resolved citation attached to a generated answer.
type AnswerSource struct {
	Index          int          `json:"index"`
	DocumentID     string       `json:"documentId"`
	DocumentName   string       `json:"documentName"`
	DocumentType   DocumentType `json:"documentType"`
	PageNumber     *int         `json:"pageNumber,omitempty"`
	Section        *string      `json:"section,omitempty"`
	RelevanceScore float64      `json:"relevanceScore"`
}

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job is an indexing task dispatched through the document-indexing queue.
type Job struct {
	QueueName    string    `json:"queueName"`
	DocumentID   string    `json:"documentId"`
	CampaignID   string    `json:"campaignId"`
	Progress     int       `json:"progress"`
	Status       JobStatus `json:"status"`
	AttemptCount int       `json:"attemptCount"`
}
