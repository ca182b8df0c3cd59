package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTEIServer(t *testing.T, failures int32, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if r.URL.Path != "/embed" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if n <= failures {
			http.Error(w, "busy", status)
			return
		}
		var req EmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := make(EmbeddingResponse, len(req.Inputs))
		for i, text := range req.Inputs {
			out[i] = []float32{float32(len(text)), 1}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestTEIClient_GetEmbeddings(t *testing.T) {
	srv, calls := newTEIServer(t, 0, 0)
	c := NewTEIClient(srv.URL, 0, 5*time.Second, zap.NewNop())

	vecs, err := c.GetEmbeddings(context.Background(), []string{"go", "rust!"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{2, 1}, vecs[0])
	assert.Equal(t, []float32{5, 1}, vecs[1])
	assert.Equal(t, int32(1), calls.Load())
}

func TestTEIClient_RetriesServerErrors(t *testing.T) {
	srv, calls := newTEIServer(t, 2, http.StatusServiceUnavailable)
	c := NewTEIClient(srv.URL, 0, 5*time.Second, zap.NewNop())
	c.baseDelay = time.Millisecond

	vecs, err := c.GetEmbeddings(context.Background(), []string{"data"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestTEIClient_ClientErrorIsNotRetried(t *testing.T) {
	srv, calls := newTEIServer(t, 10, http.StatusBadRequest)
	c := NewTEIClient(srv.URL, 0, 5*time.Second, zap.NewNop())
	c.baseDelay = time.Millisecond

	_, err := c.GetEmbeddings(context.Background(), []string{"data"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestTEIClient_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(EmbeddingResponse{{1, 2}})
	}))
	defer srv.Close()

	c := NewTEIClient(srv.URL, 0, 5*time.Second, zap.NewNop())
	_, err := c.GetEmbeddings(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrCountMismatch)
}
