package orchestrator

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/canadianpizza/orderbot-core/pkg/cache"
	"github.com/canadianpizza/orderbot-core/pkg/config"
	"github.com/canadianpizza/orderbot-core/pkg/dispatch"
	"github.com/canadianpizza/orderbot-core/pkg/intent"
	"github.com/canadianpizza/orderbot-core/pkg/llm"
	"github.com/canadianpizza/orderbot-core/pkg/models"
	"github.com/canadianpizza/orderbot-core/pkg/ratelimit"
	"github.com/canadianpizza/orderbot-core/pkg/response"
	"github.com/canadianpizza/orderbot-core/pkg/session"
)

type fakeProvider struct {
	response *llm.Response
	err      error
}

func (f *fakeProvider) Chat(_ context.Context, _ string, _ []llm.Message) (*llm.Response, error) {
	return f.response, f.err
}

type fakeCatalog struct {
	matches []dispatch.ProductMatch
}

func (f *fakeCatalog) Match(_ context.Context, _ string, _ int) ([]dispatch.ProductMatch, error) {
	return f.matches, nil
}

func newTestStore(t *testing.T) *session.Store {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping orchestrator integration test")
	}
	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return session.New(pool)
}

func newTestOrchestrator(t *testing.T, classifyResponse string, generateResponse *llm.Response) *Orchestrator {
	t.Helper()
	store := newTestStore(t)

	hierarchy, err := cache.New(config.DefaultCacheTTLConfig(), cache.Options{
		SQLitePath:       t.TempDir() + "/cache.db",
		FallbackCapacity: 16,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = hierarchy.Close() })

	classifier := intent.New(&fakeProvider{response: &llm.Response{Content: classifyResponse}}, hierarchy)
	generator := response.New(&fakeProvider{response: generateResponse})
	limiter := ratelimit.New(config.DefaultRateLimitConfig())

	return New(limiter, store, hierarchy, classifier, nil, generator, nil, config.DefaultRetentionConfig(), nil, nil)
}

func TestHandle_RejectsEmptyMessageWithoutPersistenceOrClassification(t *testing.T) {
	o := newTestOrchestrator(t, `{"intent": "greeting", "confidence": 0.9}`, &llm.Response{Content: "hi"})

	_, err := o.Handle(context.Background(), Request{Text: "   ", UserID: "u1"})
	require.Error(t, err)
}

func TestHandle_GreetingRoundTrip(t *testing.T) {
	o := newTestOrchestrator(t, `{"intent": "greeting", "confidence": 0.95}`, &llm.Response{Content: "Hello! How can I help?"})

	result, err := o.Handle(context.Background(), Request{Text: "hello there", UserID: "u-greeting", Language: models.LanguageEN})
	require.NoError(t, err)
	require.Equal(t, models.IntentGreeting, result.Intent)
	require.Equal(t, "Hello! How can I help?", result.Message)
	require.Equal(t, "query", result.Mode)
	require.False(t, result.Metadata.Degraded)
	require.NotEmpty(t, result.SessionID)
}

func TestHandle_SecondFreshSessionWithSameOpeningMessageHitsL1Cache(t *testing.T) {
	// Both calls arrive with an empty conversational context (a brand-new
	// session each), so their L1 keys (normalized text + context digest +
	// outlet + language) coincide even though the sessions differ.
	o := newTestOrchestrator(t, `{"intent": "greeting", "confidence": 0.95}`, &llm.Response{Content: "Hello!"})

	ctx := context.Background()
	first, err := o.Handle(ctx, Request{Text: "hello there", UserID: "u-cache-a"})
	require.NoError(t, err)
	require.False(t, first.Metadata.FromCache)

	second, err := o.Handle(ctx, Request{Text: "hello there", UserID: "u-cache-b"})
	require.NoError(t, err)
	require.Equal(t, first.Message, second.Message)
	require.True(t, second.Metadata.FromCache)
}

func TestHandle_GenerationFailureDegradesButStillResponds(t *testing.T) {
	o := newTestOrchestrator(t, `{"intent": "general_query", "confidence": 0.6}`, nil)
	o.generator = response.New(&fakeProvider{err: errors.New("llm unavailable")})

	result, err := o.Handle(context.Background(), Request{Text: "what is your return policy", UserID: "u-degrade"})
	require.NoError(t, err)
	require.True(t, result.Metadata.Degraded)
}

func TestHandle_DispatchesOrderOnHighConfidencePlacement(t *testing.T) {
	o := newTestOrchestrator(t,
		`{"intent": "order_placement", "confidence": 0.95, "product_names": ["10\" pizza box"], "quantities": [100]}`,
		&llm.Response{Content: `[{"product_name": "10\" pizza box", "quantity": 100, "sku": "BOX-10"}]`},
	)
	o.dispatcher = dispatch.New(&fakeCatalog{matches: []dispatch.ProductMatch{
		{Product: dispatch.Product{SKU: "BOX-10", Name: `10" pizza box`}, Score: 0.9},
	}}, &fakeProvider{response: &llm.Response{Content: `[{"product_name": "10\" pizza box", "quantity": 100, "sku": "BOX-10"}]`}})

	result, err := o.Handle(context.Background(), Request{Text: `I need 100 10" pizza boxes`, UserID: "u-order"})
	require.NoError(t, err)
	require.Equal(t, "order", result.Mode)
	require.NotNil(t, result.AgentTimeline)
	require.Len(t, result.AgentTimeline.Stages, 5)
	require.NotNil(t, result.OrderID)
}

func TestHandle_RateLimitDeniesWithoutPersistence(t *testing.T) {
	o := newTestOrchestrator(t, `{"intent": "greeting", "confidence": 0.9}`, &llm.Response{Content: "hi"})
	cfg := config.DefaultRateLimitConfig()
	cfg.PerUserPerMinute = 1
	o.limiter = ratelimit.New(cfg)

	ctx := context.Background()
	_, err := o.Handle(ctx, Request{Text: "hello", UserID: "u-ratelimit"})
	require.NoError(t, err)

	_, err = o.Handle(ctx, Request{Text: "hello again", UserID: "u-ratelimit"})
	require.Error(t, err)
}
