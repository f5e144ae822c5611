package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSimilarityRescalesToUnitRange(t *testing.T) {
	assert.InDelta(t, 1.0, normalizeSimilarity(1), 0.0001)
	assert.InDelta(t, 0.5, normalizeSimilarity(0), 0.0001)
	assert.InDelta(t, 0.0, normalizeSimilarity(-1), 0.0001)
}

func TestNormalizeSimilarityClampsOutOfRangeInput(t *testing.T) {
	assert.Equal(t, 1.0, normalizeSimilarity(5))
	assert.Equal(t, 0.0, normalizeSimilarity(-5))
}

func TestScopeClauseAlwaysScopesByCampaign(t *testing.T) {
	clause, args := scopeClause(Filter{CampaignID: "camp-1"}, 0)
	assert.Contains(t, clause, "campaign_id = $1")
	assert.Equal(t, []any{"camp-1"}, args)
}

func TestScopeClauseAddsDocumentIDAndTypeFilters(t *testing.T) {
	clause, args := scopeClause(Filter{
		CampaignID:    "camp-1",
		DocumentIDs:   []string{"doc-1", "doc-2"},
		DocumentTypes: []string{"rulebook"},
	}, 0)
	assert.Contains(t, clause, "document_id = ANY($2)")
	assert.Contains(t, clause, "document_type = ANY($3)")
	require := assert.New(t)
	require.Len(args, 3)
}

func TestScopeClauseRespectsArgOffset(t *testing.T) {
	clause, _ := scopeClause(Filter{CampaignID: "camp-1"}, 2)
	assert.Contains(t, clause, "campaign_id = $3")
}
