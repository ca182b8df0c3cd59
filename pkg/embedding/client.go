package embedding

import (
	"context"
	"errors"
	"fmt"
)

type EmbeddingRequest struct {
	Inputs   []string `json:"inputs"`
	Truncate bool     `json:"truncate,omitempty"`
}

type EmbeddingResponse [][]float32

// Client embeds whole texts (sentences, paragraphs).
type Client interface {
	// If you send 3 texts, you'll get 3 vectors, in the same order.
	GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// WordSource looks up pre-trained vectors for single words.
// Implementations must be safe for concurrent readers.
type WordSource interface {
	Lookup(word string) ([]float32, bool)
	Dimension() int
}

var ErrCountMismatch = errors.New("embedding count does not match input count")

func checkCount(texts []string, vectors [][]float32) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("%w: got %d for %d inputs", ErrCountMismatch, len(vectors), len(texts))
	}
	return nil
}
