// Package apperr defines the error taxonomy shared across campaign-rag's
// components. Codes cross component boundaries as values, not exceptions;
// panics are reserved for invariant violations a caller cannot recover from.
package apperr

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure. Components compare against these
// constants instead of inspecting error message text.
type Code string

const (
	CodeInvalidQuery        Code = "INVALID_QUERY"
	CodeEmbeddingFailed     Code = "EMBEDDING_FAILED"
	CodeSearchFailed        Code = "SEARCH_FAILED"
	CodeContextBuildFailed  Code = "CONTEXT_BUILD_FAILED"
	CodeGenerationFailed    Code = "GENERATION_FAILED"
	CodeLLMError            Code = "LLM_ERROR"
	CodeRerankFailed        Code = "RERANK_FAILED"
	CodeExtractionFailed    Code = "EXTRACTION_FAILED"
	CodeChunkingFailed      Code = "CHUNKING_FAILED"
	CodeStorageFailed       Code = "STORAGE_FAILED"
	CodeUnsupportedMimeType Code = "UNSUPPORTED_MIME_TYPE"
	CodeEncryptedPDF        Code = "ENCRYPTED_PDF"
	CodeInvalidPDF          Code = "INVALID_PDF"
	CodeEmptyFile           Code = "EMPTY_FILE"
	CodeEmptyContent        Code = "EMPTY_CONTENT"
	CodeParseError          Code = "PARSE_ERROR"
	CodeCancelled           Code = "CANCELLED"
	CodeNotFound            Code = "NOT_FOUND"
)

// retryable classifies each code once, at the taxonomy level, per the
// design note in spec.md §9: call sites never parse error messages to
// decide whether to retry.
var retryable = map[Code]bool{
	CodeInvalidQuery:        false,
	CodeEmbeddingFailed:     true,
	CodeSearchFailed:        true,
	CodeContextBuildFailed:  false,
	CodeGenerationFailed:    true,
	CodeLLMError:            true,
	CodeRerankFailed:        false,
	CodeExtractionFailed:    true,
	CodeChunkingFailed:      false,
	CodeStorageFailed:       true,
	CodeUnsupportedMimeType: false,
	CodeEncryptedPDF:        false,
	CodeInvalidPDF:          false,
	CodeEmptyFile:           false,
	CodeEmptyContent:        false,
	CodeParseError:          false,
	CodeCancelled:           false,
	CodeNotFound:            false,
}

// Retryable reports whether a failure of this code may succeed on a later
// attempt (e.g. a transient network error) versus being deterministic.
func (c Code) Retryable() bool {
	return retryable[c]
}

// Error is the tagged result type returned at component boundaries.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds an *Error carrying cause as the underlying error.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// As extracts an *Error from err, mirroring errors.As without requiring
// callers to declare the target variable inline.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// CodeOf returns the Code of err if it is (or wraps) an *Error, otherwise
// CodeGenerationFailed as a conservative default for untyped failures.
func CodeOf(err error) Code {
	if ae, ok := As(err); ok {
		return ae.Code
	}
	return CodeGenerationFailed
}
