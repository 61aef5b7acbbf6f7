package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canadianpizza/orderbot-core/pkg/config"
	"github.com/canadianpizza/orderbot-core/pkg/models"
)

type fakeEmbedder struct {
	vectors map[string]Embedding
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (Embedding, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return Embedding{1, 0, 0}, nil
}

func newTestHierarchy(t *testing.T, embedder Embedder) *Hierarchy {
	t.Helper()
	dir := t.TempDir()
	h, err := New(config.DefaultCacheTTLConfig(), Options{
		SQLitePath: filepath.Join(dir, "cache.db"),
		Embedder:   embedder,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestHierarchy_L1RoundTrip(t *testing.T) {
	h := newTestHierarchy(t, nil)
	ctx := context.Background()

	key := L1Key(NormalizeText("what are your hours"), "ctx", "outlet-1", models.LanguageEN)
	var dest string
	hit, err := h.LookupL1(ctx, key, &dest)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, h.StoreL1(ctx, key, "we are open 9 to 5"))

	hit, err = h.LookupL1(ctx, key, &dest)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "we are open 9 to 5", dest)
}

func TestHierarchy_L2ParaphraseMatch(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string]Embedding{
		"what time do you open":  {1, 0, 0},
		"when do you open today": {0.999, 0.01, 0},
	}}
	h := newTestHierarchy(t, embedder)
	ctx := context.Background()

	require.NoError(t, h.StoreL2(ctx, "k1", "what time do you open", "9am"))

	var dest string
	hit, err := h.LookupL2(ctx, "when do you open today", &dest)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "9am", dest)
}

func TestHierarchy_L2DisabledWithoutEmbedder(t *testing.T) {
	h := newTestHierarchy(t, nil)
	ctx := context.Background()

	require.NoError(t, h.StoreL2(ctx, "k1", "anything", "value"))
	var dest string
	hit, err := h.LookupL2(ctx, "anything", &dest)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestHierarchy_Coalesce(t *testing.T) {
	h := newTestHierarchy(t, nil)

	calls := 0
	fn := func() (any, error) {
		calls++
		return "computed", nil
	}

	v1, err1, _ := h.Coalesce("shared-key", fn)
	require.NoError(t, err1)
	assert.Equal(t, "computed", v1)
	assert.Equal(t, 1, calls)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity(Embedding{1, 0}, Embedding{1, 0}), 0.0001)
	assert.InDelta(t, 0.0, cosineSimilarity(Embedding{1, 0}, Embedding{0, 1}), 0.0001)
}
