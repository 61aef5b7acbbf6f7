package response

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

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

func TestGenerate_SurfacesCitationsWhenChunksPresent(t *testing.T) {
	g := New(&fakeProvider{response: &llm.Response{Content: "Bulk orders get a 10% discount.", InputTokens: 50, OutputTokens: 10}})

	chunks := []models.KnowledgeChunk{
		{PolicyID: "p1", PolicyName: "Pricing Policy", Section: "Bulk Discounts", Content: "10% off orders over 50 units.", RelevanceScore: 0.9},
	}
	resp := g.Generate(context.Background(), "do you offer bulk pricing?", models.IntentPolicyQuestion, chunks, nil, models.LanguageEN)

	require.Len(t, resp.Citations, 1)
	require.Equal(t, "p1", resp.Citations[0].PolicyID)
	require.False(t, resp.Metadata.Degraded)
	require.Equal(t, 60, resp.Metadata.GenerationCostTokens)
}

func TestGenerate_NoChunksNoCitations(t *testing.T) {
	g := New(&fakeProvider{response: &llm.Response{Content: "Hello!"}})
	resp := g.Generate(context.Background(), "hi", models.IntentGreeting, nil, nil, models.LanguageEN)
	require.Empty(t, resp.Citations)
}

func TestGenerate_LLMFailureReturnsApologyDegraded(t *testing.T) {
	g := New(&fakeProvider{err: errors.New("upstream unavailable")})
	resp := g.Generate(context.Background(), "where is my order", models.IntentOrderStatus, nil, nil, models.LanguageEN)

	require.True(t, resp.Metadata.Degraded)
	require.False(t, resp.Metadata.RequiresEscalation)
	require.NotEmpty(t, resp.Text)
}

func TestGenerate_ComplaintOnFailureSetsEscalation(t *testing.T) {
	g := New(&fakeProvider{err: errors.New("upstream unavailable")})
	resp := g.Generate(context.Background(), "this order was wrong again", models.IntentComplaint, nil, nil, models.LanguageEN)

	require.True(t, resp.Metadata.Degraded)
	require.True(t, resp.Metadata.RequiresEscalation)
}

func TestGenerate_ChunksTruncatedToMax(t *testing.T) {
	g := New(&fakeProvider{response: &llm.Response{Content: "answer"}})
	chunks := make([]models.KnowledgeChunk, 5)
	for i := range chunks {
		chunks[i] = models.KnowledgeChunk{PolicyID: "p", Content: "x"}
	}
	resp := g.Generate(context.Background(), "q", models.IntentPolicyQuestion, chunks, nil, models.LanguageEN)
	require.LessOrEqual(t, len(resp.Citations), MaxChunks)
}

func TestGenerate_UnsupportedLanguageFallsBackToEnglishApology(t *testing.T) {
	g := New(&fakeProvider{err: errors.New("fail")})
	resp := g.Generate(context.Background(), "hi", models.IntentGeneralQuery, nil, nil, models.Language("fr"))
	require.Equal(t, apologyText[models.LanguageEN], resp.Text)
}
