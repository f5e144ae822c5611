package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTryLockPreventsDuplicateInflightJob(t *testing.T) {
	q := New(nil, "test-queue")
	assert.True(t, q.TryLock("doc-1"))
	assert.False(t, q.TryLock("doc-1"), "a second lock for the same document must fail while the first is held")
	assert.True(t, q.TryLock("doc-2"), "a different document must not be blocked")
}

func TestUnlockReleasesDocumentForRelocking(t *testing.T) {
	q := New(nil, "test-queue")
	require := assert.New(t)
	require.True(q.TryLock("doc-1"))
	q.Unlock("doc-1")
	require.True(q.TryLock("doc-1"), "unlocking must allow the document to be locked again")
}

func TestInflightIDsReflectsCurrentLocks(t *testing.T) {
	q := New(nil, "test-queue")
	q.TryLock("doc-1")
	q.TryLock("doc-2")
	ids := q.InflightIDs()
	assert.ElementsMatch(t, []string{"doc-1", "doc-2"}, ids)

	q.Unlock("doc-1")
	assert.ElementsMatch(t, []string{"doc-2"}, q.InflightIDs())
}
