package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// TEIClient talks to a text-embeddings-inference server (POST /embed).
type TEIClient struct {
	BaseURL    string
	HTTPClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

// NewTEIClient creates a client for baseURL. requestsPerSecond <= 0 disables
// throttling.
func NewTEIClient(baseURL string, requestsPerSecond float64, timeout time.Duration, logger *zap.Logger) *TEIClient {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &TEIClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: 3,
		baseDelay:  200 * time.Millisecond,
		logger:     logger,
	}
}

func (c *TEIClient) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vectors, retryable, err := c.embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err

		if attempt < c.maxRetries {
			delay := c.backoff(attempt)
			c.logger.Warn("embedding request failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(err))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return nil, lastErr
}

func (c *TEIClient) embed(ctx context.Context, texts []string) ([][]float32, bool, error) {
	jsonData, err := json.Marshal(EmbeddingRequest{Inputs: texts, Truncate: true})
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/embed", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, string(body))
	}

	var embeddings EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddings); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if err := checkCount(texts, embeddings); err != nil {
		return nil, false, err
	}

	return embeddings, false, nil
}

func (c *TEIClient) backoff(attempt int) time.Duration {
	// Exponential backoff: baseDelay * 2^attempt with some jitter
	delay := float64(c.baseDelay) * math.Pow(2, float64(attempt))
	jitter := delay * 0.25 * (0.5 - (float64(time.Now().UnixNano()%1000) / 1000))
	return time.Duration(delay + jitter)
}
