// Package embedcache wraps a retrieval.Embedder with a persistent BadgerDB
// cache. Embedding models are deterministic for a fixed model and text, so
// cached vectors are exact; re-ingesting a corpus or repeating a popular
// query skips the inference call entirely.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/dgraph-io/badger/v4"

	"github.com/wayfind-ai/go-wayfind/pkg/retrieval"
)

// Embedder caches vectors from an inner embedder in BadgerDB.
//
// Keys are sha256(model "\x00" text), so switching models never serves stale
// vectors from the same cache directory.
type Embedder struct {
	inner retrieval.Embedder
	db    *badger.DB
	model string
}

// New opens (or creates) the cache at path around inner. The model name
// namespaces the cache keys.
func New(inner retrieval.Embedder, model, path string) (*Embedder, error) {
	if inner == nil {
		return nil, fmt.Errorf("embedcache: inner embedder is required")
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("embedcache: open %s: %w", path, err)
	}

	return &Embedder{inner: inner, db: db, model: model}, nil
}

// Embed returns the cached vector for text, calling the inner embedder on a
// miss.
func (e *Embedder) Embed(ctx context.Context, text string) (retrieval.EmbeddingVector, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch serves cached texts from BadgerDB and sends only the misses to
// the inner embedder, in their original relative order. Output order matches
// input order regardless of the hit/miss split.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]retrieval.EmbeddingVector, error) {
	if len(texts) == 0 {
		return nil, retrieval.NewInputError("texts are required", retrieval.ErrEmptyInput)
	}

	vectors := make([]retrieval.EmbeddingVector, len(texts))
	var (
		missTexts   []string
		missIndices []int
	)

	err := e.db.View(func(txn *badger.Txn) error {
		for i, text := range texts {
			key := e.key(text)
			item, err := txn.Get(key)
			if err == badger.ErrKeyNotFound {
				missTexts = append(missTexts, text)
				missIndices = append(missIndices, i)
				continue
			}
			if err != nil {
				return err
			}
			err = item.Value(func(val []byte) error {
				vec, decodeErr := decodeVector(val)
				if decodeErr != nil {
					// Treat an undecodable entry as a miss; it will be
					// rewritten below.
					missTexts = append(missTexts, texts[i])
					missIndices = append(missIndices, i)
					return nil
				}
				vectors[i] = vec
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embedcache: read: %w", err)
	}

	if len(missTexts) == 0 {
		return vectors, nil
	}

	fresh, err := e.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedcache: got %d vectors for %d texts", len(fresh), len(missTexts))
	}

	err = e.db.Update(func(txn *badger.Txn) error {
		for i, vec := range fresh {
			if err := txn.Set(e.key(missTexts[i]), encodeVector(vec)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embedcache: write: %w", err)
	}

	for i, vec := range fresh {
		vectors[missIndices[i]] = vec
	}
	return vectors, nil
}

// Dimensions returns the inner embedder's dimensionality.
func (e *Embedder) Dimensions() int { return e.inner.Dimensions() }

// Close closes the cache database. The inner embedder is not touched.
func (e *Embedder) Close() error {
	return e.db.Close()
}

func (e *Embedder) key(text string) []byte {
	h := sha256.New()
	h.Write([]byte(e.model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return h.Sum(nil)
}

// encodeVector packs a vector as little-endian float32 bits.
func encodeVector(vec retrieval.EmbeddingVector) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) (retrieval.EmbeddingVector, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("corrupt cache entry: %d bytes", len(buf))
	}
	vec := make(retrieval.EmbeddingVector, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
