package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/canadianpizza/orderbot-core/pkg/llm"
	"github.com/canadianpizza/orderbot-core/pkg/models"
)

type fakeCatalog struct {
	matches []ProductMatch
	err     error
}

func (f *fakeCatalog) Match(ctx context.Context, description string, k int) ([]ProductMatch, error) {
	return f.matches, f.err
}

type fakeProvider struct {
	response *llm.Response
	err      error
}

func (f *fakeProvider) Chat(ctx context.Context, system string, messages []llm.Message) (*llm.Response, error) {
	return f.response, f.err
}

func TestDispatch_AbortsOnZeroMatches(t *testing.T) {
	d := New(&fakeCatalog{}, &fakeProvider{})
	result := d.Dispatch(context.Background(), "1000 widgets", models.Entities{ProductNames: []string{"widgets"}}, "outlet-1", "session-1")

	require.True(t, result.Aborted)
	require.Equal(t, NoMatchMessage, result.Message)
	require.Len(t, result.Timeline.Stages, 1)
	require.Equal(t, models.StageSemanticProductMatch, result.Timeline.Stages[0].StageName)
	require.Equal(t, models.StageStatusCompleted, result.Timeline.Stages[0].Status)
}

func TestDispatch_FullPipelineOnSuccess(t *testing.T) {
	catalog := &fakeCatalog{matches: []ProductMatch{{Product: Product{SKU: "BOX-10", Name: `10" pizza box`}, Score: 0.93}}}
	provider := &fakeProvider{response: &llm.Response{Content: `[{"product_name": "10\" pizza box", "quantity": 100, "sku": "BOX-10"}]`}}
	d := New(catalog, provider)

	result := d.Dispatch(context.Background(), `I need 100 x 10" pizza boxes`, models.Entities{ProductNames: []string{`10" pizza boxes`}, Quantities: []int{100}}, "outlet-1", "session-1")

	require.False(t, result.Aborted)
	require.Len(t, result.Timeline.Stages, 5)
	for _, stage := range result.Timeline.Stages {
		require.Equal(t, models.StageStatusCompleted, stage.Status)
	}
	require.Equal(t, models.OrderedStages[0], result.Timeline.Stages[0].StageName)
	require.Equal(t, models.OrderedStages[4], result.Timeline.Stages[4].StageName)
}

func TestDispatch_PreservesStage1OnStage2Failure(t *testing.T) {
	catalog := &fakeCatalog{matches: []ProductMatch{{Product: Product{SKU: "BOX-10", Name: "pizza box"}, Score: 0.9}}}
	provider := &fakeProvider{err: errors.New("llm timeout")}
	d := New(catalog, provider)

	result := d.Dispatch(context.Background(), "order some boxes", models.Entities{ProductNames: []string{"boxes"}}, "outlet-1", "session-1")

	require.False(t, result.Aborted)
	require.Len(t, result.Timeline.Stages, 2)
	require.Equal(t, models.StageStatusCompleted, result.Timeline.Stages[0].Status)
	require.Equal(t, models.StageStatusError, result.Timeline.Stages[1].Status)
}

func TestDispatch_PreservesStage1OnMalformedParsingOutput(t *testing.T) {
	catalog := &fakeCatalog{matches: []ProductMatch{{Product: Product{SKU: "BOX-10", Name: "pizza box"}, Score: 0.9}}}
	provider := &fakeProvider{response: &llm.Response{Content: "not a json array"}}
	d := New(catalog, provider)

	result := d.Dispatch(context.Background(), "order some boxes", models.Entities{ProductNames: []string{"boxes"}}, "outlet-1", "session-1")

	require.False(t, result.Aborted)
	require.Len(t, result.Timeline.Stages, 2)
	require.Equal(t, models.StageStatusError, result.Timeline.Stages[1].Status)
}
