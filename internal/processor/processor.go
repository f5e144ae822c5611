// Package processor extracts text and structure from uploaded documents
// (spec.md §4.1). Every variant implements Processor and shares the same
// error tagging so the indexing worker can classify a failure as
// retryable without inspecting processor internals.
package processor

import (
	"context"
	"mime"
	"strings"

	"github.com/semaj90/campaign-rag/internal/apperr"
)

// PageOffset locates one page's plain-text span within Content, so a
// later chunking pass can resolve a chunk's pageNumber by checking which
// range its startOffset falls into (spec.md §4.2 "page resolution").
type PageOffset struct {
	PageNumber  int
	StartOffset int
	EndOffset   int
}

// Section marks a heading boundary within Content — used by the
// semantic chunker and carried through to Chunk.Section.
type Section struct {
	Title       string
	Level       int
	StartOffset int
}

// Metadata captures whatever the source format exposes about authorship
// and provenance. Fields are best-effort; a processor leaves unknown
// fields zero rather than guessing.
type Metadata struct {
	Title   string
	Author  string
	Created string
	Updated string
}

// Result is the common output of every processor: concatenated text plus
// enough structure for the chunker to carve it up with page/section
// metadata attached.
type Result struct {
	Content         string
	Pages           []PageOffset
	Sections        []Section
	Metadata        Metadata
	HasExtractedText bool
}

// Processor extracts Result from raw document bytes. campaignId and
// documentId are accepted for error messages and telemetry, not used to
// change extraction behavior.
type Processor interface {
	Process(ctx context.Context, campaignID, documentID string, raw []byte) (*Result, error)
}

// ForMimeType resolves the processor responsible for a content type,
// tagging anything else as UNSUPPORTED_MIME_TYPE per spec.md §4.1.
func ForMimeType(contentType string) (Processor, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch {
	case mediaType == "application/pdf":
		return &PDFProcessor{}, nil
	case mediaType == "text/markdown" || mediaType == "text/x-markdown":
		return &TextProcessor{Markdown: true}, nil
	case mediaType == "text/plain":
		return &TextProcessor{Markdown: false}, nil
	default:
		return nil, apperr.New(apperr.CodeUnsupportedMimeType, "unsupported document mime type: "+contentType)
	}
}
