package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/canadianpizza/orderbot-core/pkg/cache"
	"github.com/canadianpizza/orderbot-core/pkg/config"
	"github.com/canadianpizza/orderbot-core/pkg/llm"
	"github.com/canadianpizza/orderbot-core/pkg/models"
)

type fakeProvider struct {
	response *llm.Response
	err      error
}

func (f *fakeProvider) Chat(ctx context.Context, system string, messages []llm.Message) (*llm.Response, error) {
	return f.response, f.err
}

func TestClassify_ParsesWellFormedJSON(t *testing.T) {
	provider := &fakeProvider{response: &llm.Response{
		Content: `{"intent": "product_inquiry", "confidence": 0.92, "reasoning": "asks about a product", "product_names": ["garlic bread"]}`,
	}}
	c := New(provider, nil)

	result, err := c.Classify(context.Background(), "how much is the garlic bread?", nil)
	require.NoError(t, err)
	require.Equal(t, models.IntentProductInquiry, result.Intent)
	require.InDelta(t, 0.92, result.Confidence, 0.0001)
	require.True(t, result.Entities.HasProduct())
	require.False(t, result.Degraded)
}

func TestClassify_ToleratesSurroundingProse(t *testing.T) {
	provider := &fakeProvider{response: &llm.Response{
		Content: "Here is the classification:\n" + `{"intent": "greeting", "confidence": 0.99}` + "\nHope that helps!",
	}}
	c := New(provider, nil)

	result, err := c.Classify(context.Background(), "hello there", nil)
	require.NoError(t, err)
	require.Equal(t, models.IntentGreeting, result.Intent)
}

func TestClassify_DegradesOnLLMFailure(t *testing.T) {
	c := New(&fakeProvider{err: errors.New("timeout")}, nil)

	result, err := c.Classify(context.Background(), "anything", nil)
	require.NoError(t, err)
	require.True(t, result.Degraded)
	require.Equal(t, models.IntentGeneralQuery, result.Intent)
	require.Equal(t, 0.0, result.Confidence)
}

func TestClassify_DegradesOnMalformedJSON(t *testing.T) {
	c := New(&fakeProvider{response: &llm.Response{Content: "not json at all"}}, nil)

	result, err := c.Classify(context.Background(), "anything", nil)
	require.NoError(t, err)
	require.True(t, result.Degraded)
}

func TestClassify_DegradesOnUnknownIntentLabel(t *testing.T) {
	c := New(&fakeProvider{response: &llm.Response{
		Content: `{"intent": "not_a_real_intent", "confidence": 0.5}`,
	}}, nil)

	result, err := c.Classify(context.Background(), "anything", nil)
	require.NoError(t, err)
	require.True(t, result.Degraded)
}

func TestClassify_UsesL3CacheOnHit(t *testing.T) {
	h := newTestHierarchy(t)
	calls := 0
	provider := &fakeProviderFunc{fn: func() (*llm.Response, error) {
		calls++
		return &llm.Response{Content: `{"intent": "greeting", "confidence": 0.8}`}, nil
	}}
	c := New(provider, h)

	ctx := context.Background()
	r1, err := c.Classify(ctx, "hi", nil)
	require.NoError(t, err)
	r2, err := c.Classify(ctx, "hi", nil)
	require.NoError(t, err)

	require.Equal(t, r1.Intent, r2.Intent)
	require.Equal(t, 1, calls, "second classify of the same normalized text should hit L3 cache")
}

type fakeProviderFunc struct {
	fn func() (*llm.Response, error)
}

func (f *fakeProviderFunc) Chat(ctx context.Context, system string, messages []llm.Message) (*llm.Response, error) {
	return f.fn()
}

func newTestHierarchy(t *testing.T) *cache.Hierarchy {
	t.Helper()
	h, err := cache.New(config.DefaultCacheTTLConfig(), cache.Options{
		SQLitePath:       t.TempDir() + "/cache.db",
		FallbackCapacity: 16,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}
