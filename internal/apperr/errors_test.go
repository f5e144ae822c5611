package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryableClassification(t *testing.T) {
	assert.True(t, CodeEmbeddingFailed.Retryable())
	assert.True(t, CodeStorageFailed.Retryable())
	assert.False(t, CodeInvalidQuery.Retryable())
	assert.False(t, CodeCancelled.Retryable())
	assert.False(t, CodeNotFound.Retryable())
}

func TestWrapPreservesCauseAndUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeStorageFailed, "failed to write chunk", cause)

	assert.Equal(t, CodeStorageFailed, err.Code)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAsExtractsTaggedError(t *testing.T) {
	err := New(CodeNotFound, "document not found")
	ae, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, CodeNotFound, ae.Code)

	_, ok = As(errors.New("plain error"))
	assert.False(t, ok)
}

func TestCodeOfDefaultsForUntaggedErrors(t *testing.T) {
	assert.Equal(t, CodeGenerationFailed, CodeOf(errors.New("boom")))
	assert.Equal(t, CodeRerankFailed, CodeOf(New(CodeRerankFailed, "bad scores")))
}
