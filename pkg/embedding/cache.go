package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var cacheBucket = []byte("embeddings")

// CachedClient stores embeddings in a bbolt file keyed by model and text,
// so reruns over the same listings skip the embedding service.
type CachedClient struct {
	next   Client
	model  string
	db     *bolt.DB
	logger *zap.Logger
}

func NewCachedClient(next Client, model, path string, logger *zap.Logger) (*CachedClient, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for embedding cache: %w", err)
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &CachedClient{next: next, model: model, db: db, logger: logger}, nil
}

func (c *CachedClient) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(cacheBucket)
		for i, text := range texts {
			if v := b.Get(c.key(text)); v != nil {
				out[i] = decodeVector(v)
				continue
			}
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, text)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding cache: %w", err)
	}

	c.logger.Debug("embedding cache lookup",
		zap.Int("hits", len(texts)-len(missTexts)),
		zap.Int("misses", len(missTexts)))
	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := c.next.GetEmbeddings(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if err := checkCount(missTexts, fresh); err != nil {
		return nil, err
	}

	err = c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(cacheBucket)
		for j, i := range missIdx {
			out[i] = fresh[j]
			if err := b.Put(c.key(missTexts[j]), encodeVector(fresh[j])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write embedding cache: %w", err)
	}
	return out, nil
}

// Close closes the cache file.
func (c *CachedClient) Close() error {
	return c.db.Close()
}

func (c *CachedClient) key(text string) []byte {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return sum[:]
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
