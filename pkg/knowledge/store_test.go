package knowledge

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/canadianpizza/orderbot-core/pkg/cache"
	"github.com/canadianpizza/orderbot-core/pkg/models"
)

func TestSingleton_ConcurrentCallersShareOneLoad(t *testing.T) {
	ResetSingletonForTest()
	t.Cleanup(ResetSingletonForTest)

	embedder := &countingEmbedder{}
	chunks := []models.KnowledgeChunk{{PolicyID: "p1", Content: "refund policy", Language: models.LanguageEN}}

	var wg sync.WaitGroup
	stores := make([]*MemoryStore, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := Singleton(context.Background(), chunks, embedder)
			require.NoError(t, err)
			stores[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range stores {
		require.Same(t, stores[0], s)
	}
	require.EqualValues(t, 1, embedder.calls.Load())
}

type countingEmbedder struct {
	calls atomic.Int32
}

func (e *countingEmbedder) Embed(_ context.Context, _ string) (cache.Embedding, error) {
	e.calls.Add(1)
	return cache.Embedding{1, 0, 0}, nil
}
