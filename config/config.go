package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cluster   ClusterConfig   `yaml:"cluster"`
	Viz       VizConfig       `yaml:"viz"`
	Crawler   CrawlerConfig   `yaml:"crawler"`
	Store     StoreConfig     `yaml:"store"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	API       APIConfig       `yaml:"api"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// EmbeddingConfig selects the embedding source. Mode "word" averages word
// vectors from a GloVe table, mode "passage" sends whole texts to Provider.
type EmbeddingConfig struct {
	Mode              string  `yaml:"mode"`
	Provider          string  `yaml:"provider"`
	WordVectorsPath   string  `yaml:"word_vectors_path"`
	MinTokenLength    int     `yaml:"min_token_length"`
	StemFallback      bool    `yaml:"stem_fallback"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	APIKey            string  `yaml:"api_key"`
	BatchSize         int     `yaml:"batch_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	CachePath         string  `yaml:"cache_path"`
}

type ClusterConfig struct {
	TopEnd   int    `yaml:"top_end"`
	Restarts int    `yaml:"restarts"`
	MaxIter  int    `yaml:"max_iter"`
	Seed     uint64 `yaml:"seed"`
	Workers  int    `yaml:"workers"`

	Sensitivity float64 `yaml:"sensitivity"`
}

type VizConfig struct {
	Method        string   `yaml:"method"`
	TextField     string   `yaml:"text_field"`
	DisplayFields []string `yaml:"display_fields"`
	ShowText      bool     `yaml:"show_text"`
	SavePlot      bool     `yaml:"save_plot"`
	OutputDir     string   `yaml:"output_dir"`
	QueryName     string   `yaml:"query_name"`
	PreviewLength int      `yaml:"preview_length"`
	LabelLength   int      `yaml:"label_length"`
	Height        int      `yaml:"height"`
	Perplexity    float64  `yaml:"perplexity"`
}

type CrawlerConfig struct {
	BaseURL     string `yaml:"base_url"`
	Query       string `yaml:"query"`
	JobType     string `yaml:"job_type"`
	Language    string `yaml:"language"`
	Default     bool   `yaml:"default"`
	Pages       int    `yaml:"pages"`
	Render      bool   `yaml:"render"`
	ProxyURL    string `yaml:"proxy_url"`
	UserAgent   string `yaml:"user_agent"`
	DelaySecs   int    `yaml:"delay_secs"`
	Parallelism int    `yaml:"parallelism"`
	StatePath   string `yaml:"state_path"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type QdrantConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
}

type APIConfig struct {
	Port int `yaml:"port"`
}

// Load reads the YAML file at path on top of the defaults and applies
// environment overrides. A missing file (or empty path) yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Embedding: EmbeddingConfig{
			Mode:              "passage",
			Provider:          "tei",
			MinTokenLength:    3,
			BaseURL:           "http://localhost:8080",
			BatchSize:         32,
			RequestsPerSecond: 10,
			TimeoutSecs:       30,
		},
		Cluster: ClusterConfig{
			TopEnd:   15,
			Restarts: 30,
			MaxIter:  300,
			Seed:     42,

			Sensitivity: 1,
		},
		Viz: VizConfig{
			Method:        "pca",
			TextField:     "summary",
			DisplayFields: []string{"title", "company", "date_listed"},
			OutputDir:     ".",
			PreviewLength: 40,
			LabelLength:   15,
			Height:        720,
			Perplexity:    30,
		},
		Crawler: CrawlerConfig{
			BaseURL:     "https://ch.indeed.com/Stellen",
			Language:    "en",
			Pages:       1,
			UserAgent:   "jobmap/1.0",
			DelaySecs:   1,
			Parallelism: 2,
		},
		Store:  StoreConfig{Path: "jobmap.db"},
		Qdrant: QdrantConfig{Host: "localhost", Port: 6334, Collection: "job_clusters"},
		API:    APIConfig{Port: 8090},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Embedding.MinTokenLength <= 0 {
		cfg.Embedding.MinTokenLength = 3
	}
	if cfg.Embedding.BatchSize <= 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Embedding.TimeoutSecs <= 0 {
		cfg.Embedding.TimeoutSecs = 30
	}
	if cfg.Embedding.Provider == "openai" && cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Provider == "ollama" && cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Cluster.Restarts <= 0 {
		cfg.Cluster.Restarts = 30
	}
	if cfg.Cluster.MaxIter <= 0 {
		cfg.Cluster.MaxIter = 300
	}
	if cfg.Cluster.Sensitivity <= 0 {
		cfg.Cluster.Sensitivity = 1
	}
	if cfg.Viz.PreviewLength <= 0 {
		cfg.Viz.PreviewLength = 40
	}
	if cfg.Viz.LabelLength <= 0 {
		cfg.Viz.LabelLength = 15
	}
	if cfg.Viz.Height <= 0 {
		cfg.Viz.Height = 720
	}
	if cfg.Viz.OutputDir == "" {
		cfg.Viz.OutputDir = "."
	}
	if cfg.Crawler.Pages <= 0 {
		cfg.Crawler.Pages = 1
	}
	if cfg.Crawler.Parallelism <= 0 {
		cfg.Crawler.Parallelism = 2
	}
}

func applyEnv(cfg *Config) error {
	if v := getEnv("JOBMAP_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := getEnv("JOBMAP_EMBEDDING_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := getEnv("JOBMAP_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := getEnv("OPENAI_API_KEY"); v != "" && cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = v
	}
	if v := getEnv("JOBMAP_WORD_VECTORS"); v != "" {
		cfg.Embedding.WordVectorsPath = v
	}
	if v := getEnv("JOBMAP_PROXY_URL"); v != "" {
		cfg.Crawler.ProxyURL = v
	}
	if v := getEnv("JOBMAP_QDRANT_HOST"); v != "" {
		cfg.Qdrant.Host = v
	}
	if v := getEnv("JOBMAP_QDRANT_API_KEY"); v != "" {
		cfg.Qdrant.APIKey = v
	}
	if v := getEnv("JOBMAP_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid JOBMAP_API_PORT %q: %w", v, err)
		}
		cfg.API.Port = port
	}
	if v := getEnv("JOBMAP_TOP_END"); v != "" {
		topEnd, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid JOBMAP_TOP_END %q: %w", v, err)
		}
		cfg.Cluster.TopEnd = topEnd
	}
	return nil
}

// Validate checks the values callers can get wrong in a config file.
func (c *Config) Validate() error {
	switch c.Embedding.Mode {
	case "word":
		if c.Embedding.WordVectorsPath == "" {
			return errors.New("embedding.word_vectors_path is required in word mode")
		}
	case "passage":
		switch c.Embedding.Provider {
		case "tei", "ollama":
		case "openai":
			if c.Embedding.APIKey == "" {
				return errors.New("embedding.api_key (or OPENAI_API_KEY) is required for openai")
			}
		default:
			return fmt.Errorf("unknown embedding.provider %q", c.Embedding.Provider)
		}
	default:
		return fmt.Errorf("unknown embedding.mode %q", c.Embedding.Mode)
	}
	if c.Cluster.TopEnd < 2 {
		return fmt.Errorf("cluster.top_end must be at least 2, got %d", c.Cluster.TopEnd)
	}
	switch c.Viz.Method {
	case "pca", "tsne":
	default:
		return fmt.Errorf("unknown viz.method %q", c.Viz.Method)
	}
	return nil
}

func getEnv(key string) string {
	return os.Getenv(key)
}
