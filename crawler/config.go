package crawler

import (
	"time"
)

const DefaultBaseURL = "https://ch.indeed.com/Stellen"

type CrawlerConfig struct {
	BaseURL        string
	Pages          int
	RequestTimeout time.Duration
	Parallelism    int
	RequestDelay   time.Duration
	UserAgent      string
}

// DefaultConfig returns a default crawler configuration
func DefaultConfig() *CrawlerConfig {
	return &CrawlerConfig{
		BaseURL:        DefaultBaseURL,
		Pages:          1,
		RequestTimeout: 30 * time.Second,
		Parallelism:    2,
		RequestDelay:   2 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}
