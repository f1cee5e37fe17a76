package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/mkleiva/wellgraph/cache"
)

const (
	// maxEmbedBatch bounds one provider call; larger inputs are split.
	maxEmbedBatch = 500

	embedCacheSize = 2048
)

// Embedder wraps a Provider with batching and an in-process cache keyed by
// (model, text). Repeated queries skip the provider entirely.
type Embedder struct {
	provider Provider
	model    string
	cache    *cache.LRU
}

// NewEmbedder creates an Embedder around provider. model is recorded in the
// cache key so switching models never serves stale vectors.
func NewEmbedder(provider Provider, model string) *Embedder {
	return &Embedder{
		provider: provider,
		model:    model,
		cache:    cache.NewLRU(embedCacheSize),
	}
}

// EmbedOne embeds a single text.
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Embed returns one vector per input text, in input order. Cached texts are
// served locally; the rest go to the provider in batches of at most 500.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var missing []int
	for i, text := range texts {
		if raw, ok := e.cache.Get(e.key(text)); ok {
			out[i] = decodeVector(raw)
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	for start := 0; start < len(missing); start += maxEmbedBatch {
		end := start + maxEmbedBatch
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		inputs := make([]string, len(batch))
		for j, idx := range batch {
			inputs[j] = texts[idx]
		}

		vecs, err := e.provider.Embed(ctx, inputs)
		if err != nil {
			return nil, fmt.Errorf("embedding batch of %d: %w", len(inputs), err)
		}
		if len(vecs) != len(inputs) {
			return nil, fmt.Errorf("embedding batch: got %d vectors for %d inputs", len(vecs), len(inputs))
		}

		for j, idx := range batch {
			out[idx] = vecs[j]
			e.cache.Set(e.key(texts[idx]), encodeVector(vecs[j]), 0)
		}
	}
	return out, nil
}

func (e *Embedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + e.model + ":" + hex.EncodeToString(sum[:])
}

// encodeVector packs a vector as little-endian IEEE-754 float32 so cached
// vectors round-trip bit for bit.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
