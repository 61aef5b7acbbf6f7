package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/canadianpizza/orderbot-core/pkg/cache"
)

type fakeEmbedder struct {
	vectors map[string]cache.Embedding
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (cache.Embedding, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return cache.Embedding{0, 0, 1}, nil
}

func TestMemoryCatalog_MatchReturnsClosestProducts(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string]cache.Embedding{
		`10" pizza box`:  {1, 0, 0},
		"napkins":        {0, 1, 0},
		"pizza boxes 10": {0.95, 0.05, 0},
	}}
	catalog := NewMemoryCatalog(embedder)
	require.NoError(t, catalog.Load(context.Background(), []Product{
		{SKU: "BOX-10", Name: `10" pizza box`},
		{SKU: "NAP-1", Name: "napkins"},
	}, embedder))

	matches, err := catalog.Match(context.Background(), "pizza boxes 10", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "BOX-10", matches[0].Product.SKU)
}

func TestMemoryCatalog_EmptyCatalogReturnsNoMatches(t *testing.T) {
	catalog := NewMemoryCatalog(&fakeEmbedder{})
	matches, err := catalog.Match(context.Background(), "anything", 3)
	require.NoError(t, err)
	require.Empty(t, matches)
}
