package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedder_SimilarTextHasHighSimilarity(t *testing.T) {
	e := NewHashEmbedder()
	ctx := context.Background()

	a, err := e.Embed(ctx, "what time do you open")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "what time do you open")
	require.NoError(t, err)

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	assert.InDelta(t, 1.0, dot, 0.0001)
}

func TestHashEmbedder_ZeroVectorForEmptyText(t *testing.T) {
	e := NewHashEmbedder()
	vec, err := e.Embed(context.Background(), "")
	require.NoError(t, err)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}
