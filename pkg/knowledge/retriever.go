package knowledge

import (
	"context"
	"log/slog"
	"time"

	"github.com/canadianpizza/orderbot-core/pkg/cache"
	"github.com/canadianpizza/orderbot-core/pkg/models"
)

// DefaultK is spec §4.6's default top-k, "reduced from an earlier value
// of 5 to halve context tokens."
const DefaultK = 3

// DefaultTimeout is spec §4.9's per-step deadline for retrieval.
const DefaultTimeout = 10 * time.Second

// Retriever implements KnowledgeRetriever.
type Retriever struct {
	store    VectorStore
	embedder cache.Embedder
	cache    *cache.Hierarchy
	timeout  time.Duration
	logger   *slog.Logger
}

func New(store VectorStore, embedder cache.Embedder, hierarchy *cache.Hierarchy, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: store, embedder: embedder, cache: hierarchy, timeout: DefaultTimeout, logger: logger}
}

// cachedResult is the JSON-serializable shape stored in L4, since
// models.KnowledgeChunk round-trips cleanly through JSON on its own.
type cachedResult struct {
	Chunks []models.KnowledgeChunk
}

// Retrieve embeds query, consults L4 for a cached result, and otherwise
// queries the vector store for the top-k chunks in language. Embedding
// or vector-store failure logs a warning and returns an empty result
// rather than an error (spec §4.6: "Embedding-service failure -> log
// warning, return empty, continue").
func (r *Retriever) Retrieve(ctx context.Context, query string, language models.Language, k int) ([]models.KnowledgeChunk, error) {
	if k <= 0 {
		k = DefaultK
	}

	normalized := cache.NormalizeText(query)
	key := cache.L4Key(normalized)

	if r.cache != nil {
		var cached cachedResult
		if hit, err := r.cache.LookupL4(ctx, key, &cached); err == nil && hit {
			return truncate(cached.Chunks, k), nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if r.embedder == nil || r.store == nil {
		return nil, nil
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("knowledge retrieval: embedding failed, returning empty result", "error", err)
		return nil, nil
	}

	chunks, err := r.store.Query(ctx, vec, language, k)
	if err != nil {
		r.logger.Warn("knowledge retrieval: vector store query failed, returning empty result", "error", err)
		return nil, nil
	}

	if r.cache != nil && len(chunks) > 0 {
		_ = r.cache.StoreL4(ctx, key, cachedResult{Chunks: chunks})
	}
	return chunks, nil
}

func truncate(chunks []models.KnowledgeChunk, k int) []models.KnowledgeChunk {
	if k >= len(chunks) {
		return chunks
	}
	return chunks[:k]
}
