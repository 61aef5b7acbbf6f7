package llm

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/canadianpizza/orderbot-core/pkg/cache"
)

// embeddingDimensions fixes the vector size used by the L2 cache's cosine
// similarity comparison (spec §4.3).
const embeddingDimensions = 64

// HashEmbedder is a deterministic, dependency-free stand-in for the
// external embedding service spec §4.5 names but leaves unspecified
// ("Embed the query using a configured embedding service (external)").
// It hashes overlapping word shingles into a fixed-size vector and
// L2-normalizes it, so that near-duplicate phrasing produces vectors with
// high cosine similarity without requiring a live embedding API — see
// DESIGN.md's pkg/llm entry for why this interpretation was chosen over requiring
// a specific vector provider the pack does not name.
type HashEmbedder struct{}

func NewHashEmbedder() *HashEmbedder { return &HashEmbedder{} }

func (e *HashEmbedder) Embed(_ context.Context, text string) (cache.Embedding, error) {
	vec := make([]float64, embeddingDimensions)

	words := shingle(text)
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		bucket := int(h.Sum32()) % embeddingDimensions
		if bucket < 0 {
			bucket += embeddingDimensions
		}
		vec[bucket]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make(cache.Embedding, embeddingDimensions)
	if norm == 0 {
		return out, nil
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

// shingle splits text on whitespace into unigrams and bigrams, giving the
// hash embedder some sensitivity to word order without needing a real
// tokenizer.
func shingle(text string) []string {
	var words []string
	start := -1
	for i, r := range text {
		if r == ' ' || r == '\t' || r == '\n' {
			if start >= 0 {
				words = append(words, text[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, text[start:])
	}

	shingles := make([]string, 0, len(words)*2)
	for i, w := range words {
		shingles = append(shingles, w)
		if i > 0 {
			shingles = append(shingles, words[i-1]+" "+w)
		}
	}
	return shingles
}

var _ cache.Embedder = (*HashEmbedder)(nil)
