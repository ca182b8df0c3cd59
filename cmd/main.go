package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"jobmap/api"
	"jobmap/cluster"
	"jobmap/config"
	"jobmap/crawler"
	"jobmap/pipeline"
	"jobmap/pkg/embedding"
	qdrantClient "jobmap/pkg/qdrantdb"
	"jobmap/record"
	"jobmap/reduce"
	"jobmap/store"
	"jobmap/vectorize"
	"jobmap/viz"
)

const usage = `usage: jobmap <command> [flags]

commands:
  scrape   fetch listings and store them as a batch
  run      cluster a stored batch or a records file and plot it
  serve    expose the clustering pipeline over HTTP
  batches  list stored batches`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "scrape":
		err = scrapeCmd(ctx, args)
	case "run":
		err = runCmd(ctx, args)
	case "serve":
		err = serveCmd(ctx, args)
	case "batches":
		err = batchesCmd(args)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

// =========
// Config & logging
// =========

func load(fs *flag.FlagSet, args []string) (*config.Config, *zap.Logger, error) {
	path := fs.String("config", "config.yaml", "path to the YAML config")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(*path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zc.Level = lvl
	return zc.Build()
}

// =========
// scrape
// =========

func scrapeCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	term := fs.String("query", "", "search term (overrides crawler.query)")
	jobType := fs.String("type", "", "internship, fulltime or permanent")
	lang := fs.String("lang", "", "two letter language code")
	def := fs.Bool("default", false, "run the default English-jobs search")
	pages := fs.Int("pages", 0, "listing pages to fetch")
	batch := fs.String("batch", "", "batch name (default: date and query)")
	out := fs.String("out", "", "also write the records to this JSON/YAML file")
	cfg, logger, err := load(fs, args)
	if err != nil {
		return err
	}
	defer logger.Sync()

	q := crawler.Query{
		Term:     firstNonEmpty(*term, cfg.Crawler.Query),
		JobType:  firstNonEmpty(*jobType, cfg.Crawler.JobType),
		Language: firstNonEmpty(*lang, cfg.Crawler.Language),
		Default:  *def || cfg.Crawler.Default,
	}

	ccfg := crawler.DefaultConfig()
	ccfg.BaseURL = cfg.Crawler.BaseURL
	ccfg.Pages = cfg.Crawler.Pages
	if *pages > 0 {
		ccfg.Pages = *pages
	}
	ccfg.Parallelism = cfg.Crawler.Parallelism
	ccfg.RequestDelay = time.Duration(cfg.Crawler.DelaySecs) * time.Second
	if cfg.Crawler.UserAgent != "" {
		ccfg.UserAgent = cfg.Crawler.UserAgent
	}

	var opts []crawler.Option
	if cfg.Crawler.Render {
		opts = append(opts, crawler.WithBrowser(crawler.NewBrowser(logger, cfg.Crawler.ProxyURL, ccfg.UserAgent)))
	} else {
		httpClient, err := crawler.NewHTTPClient(cfg.Crawler.ProxyURL, ccfg.RequestTimeout)
		if err != nil {
			return err
		}
		opts = append(opts, crawler.WithHTTPClient(httpClient))
	}
	if cfg.Crawler.StatePath != "" {
		state := &store.CrawlStorage{DBPath: cfg.Crawler.StatePath}
		defer state.Close()
		opts = append(opts, crawler.WithStore(state))
	}

	recs, err := crawler.NewScraper(ccfg, logger, opts...).Scrape(ctx, q)
	if err != nil {
		return err
	}
	if err := record.Validate(recs); err != nil {
		return err
	}

	records, err := store.OpenRecords(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer records.Close()

	name := *batch
	if name == "" {
		name = time.Now().Format("2006-01-02") + "_" + strings.ReplaceAll(q.Name(), " ", "-")
	}
	if err := records.Save(name, recs); err != nil {
		return err
	}
	logger.Info("stored batch", zap.String("batch", name), zap.Int("records", len(recs)))

	if *out != "" {
		if err := record.WriteFile(*out, recs); err != nil {
			return err
		}
	}

	fmt.Printf("Count of company appearances in batch %s:\n", name)
	for i, c := range viz.CountBy(recs, record.FieldCompany) {
		if i == 10 {
			break
		}
		fmt.Printf("%4d  %s\n", c.Count, c.Value)
	}
	return nil
}

// =========
// run
// =========

func runCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	batch := fs.String("batch", "", "stored batch to cluster (default: latest)")
	in := fs.String("in", "", "records file to cluster instead of a stored batch")
	field := fs.String("field", "", "text field to vectorize")
	method := fs.String("method", "", "pca or tsne")
	topEnd := fs.Int("top-end", 0, "largest k to consider")
	save := fs.Bool("save", false, "write the dataset and charts")
	queryName := fs.String("query-name", "", "query name used in titles")
	cfg, logger, err := load(fs, args)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if *method != "" {
		cfg.Viz.Method = *method
	}
	if *topEnd > 0 {
		cfg.Cluster.TopEnd = *topEnd
	}
	if *field != "" {
		cfg.Viz.TextField = *field
	}
	cfg.Viz.SavePlot = cfg.Viz.SavePlot || *save
	cfg.Viz.QueryName = firstNonEmpty(*queryName, cfg.Viz.QueryName)

	recs, err := loadRecords(cfg, *batch, *in)
	if err != nil {
		return err
	}

	runner, closeRunner, err := buildRunner(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRunner()

	opts, err := runOptions(cfg)
	if err != nil {
		return err
	}
	report, err := runner.Run(ctx, recs, opts)
	if err != nil {
		return err
	}

	fmt.Printf("k=%d (top_end %d) over %d points, %d degraded, %d tokens excluded\n",
		report.K, report.TopEnd, len(report.Points), len(report.Degraded), report.Excluded)
	for _, w := range report.Warnings {
		fmt.Println("warning:", w.Message)
	}
	for _, path := range report.Artifacts {
		fmt.Println("wrote", path)
	}
	return nil
}

func loadRecords(cfg *config.Config, batch, in string) ([]record.Record, error) {
	if in != "" {
		return record.ReadFile(in)
	}
	records, err := store.OpenRecords(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	defer records.Close()

	if batch == "" {
		names, err := records.Batches()
		if err != nil {
			return nil, err
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("no stored batches in %s, run scrape first", cfg.Store.Path)
		}
		batch = names[len(names)-1]
	}
	return records.Load(batch)
}

func runOptions(cfg *config.Config) (pipeline.Options, error) {
	textField, err := record.ParseField(cfg.Viz.TextField)
	if err != nil {
		return pipeline.Options{}, err
	}
	display := make([]record.Field, 0, len(cfg.Viz.DisplayFields))
	for _, name := range cfg.Viz.DisplayFields {
		f, err := record.ParseField(name)
		if err != nil {
			return pipeline.Options{}, err
		}
		display = append(display, f)
	}
	return pipeline.Options{
		TextField: textField,
		TopEnd:    cfg.Cluster.TopEnd,
		Viz: viz.Options{
			DisplayFields: display,
			PreviewLength: cfg.Viz.PreviewLength,
			ShowText:      cfg.Viz.ShowText,
			LabelField:    record.FieldCompany,
			LabelLength:   cfg.Viz.LabelLength,
		},
		Save:      cfg.Viz.SavePlot,
		OutputDir: cfg.Viz.OutputDir,
		Query:     cfg.Viz.QueryName,
		Height:    cfg.Viz.Height,
	}, nil
}

// buildRunner wires the embedding source, clustering engine, projection
// and optional qdrant sink. The returned func releases them.
func buildRunner(cfg *config.Config, logger *zap.Logger) (*pipeline.Runner, func(), error) {
	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("close failed", zap.Error(err))
			}
		}
	}

	// =========
	// Embedding source
	// =========
	var strategy vectorize.Strategy
	switch cfg.Embedding.Mode {
	case "word":
		table, err := embedding.LoadWordTable(cfg.Embedding.WordVectorsPath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("loaded word vectors",
			zap.Int("words", table.Len()),
			zap.Int("dimension", table.Dimension()))
		strategy = &vectorize.WordAverage{
			Source:         table,
			MinTokenLength: cfg.Embedding.MinTokenLength,
			StemFallback:   cfg.Embedding.StemFallback,
			Workers:        cfg.Cluster.Workers,
			Logger:         logger,
		}
	default:
		client, err := newEmbeddingClient(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Embedding.CachePath != "" {
			cached, err := embedding.NewCachedClient(client, cfg.Embedding.Provider+"/"+cfg.Embedding.Model,
				cfg.Embedding.CachePath, logger)
			if err != nil {
				return nil, nil, err
			}
			closers = append(closers, cached.Close)
			client = cached
		}
		strategy = &vectorize.Passage{Client: client, BatchSize: cfg.Embedding.BatchSize, Logger: logger}
	}

	// =========
	// Clustering & projection
	// =========
	engine := cluster.NewEngine(cluster.Config{
		Restarts: cfg.Cluster.Restarts,
		MaxIter:  cfg.Cluster.MaxIter,
		Seed:     cfg.Cluster.Seed,
		Workers:  cfg.Cluster.Workers,

		Sensitivity: cfg.Cluster.Sensitivity,
	}, logger)

	method, err := reduce.ParseMethod(cfg.Viz.Method)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	reducer, err := reduce.ForMethod(method, tsneFor(cfg))
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	runner := pipeline.NewRunner(strategy, engine, reducer, logger)

	// =========
	// Qdrant vector
	// =========
	if cfg.Qdrant.Enabled {
		qdb, err := qdrantClient.NewClient(cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.APIKey, cfg.Qdrant.Collection)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to initialize qdrant: %w", err)
		}
		closers = append(closers, qdb.Close)
		runner.Sink = qdb
	}
	return runner, closeAll, nil
}

func tsneFor(cfg *config.Config) *reduce.TSNE {
	return &reduce.TSNE{Perplexity: cfg.Viz.Perplexity, Seed: cfg.Cluster.Seed}
}

func newEmbeddingClient(cfg *config.Config, logger *zap.Logger) (embedding.Client, error) {
	e := cfg.Embedding
	switch e.Provider {
	case "openai":
		return embedding.NewOpenAIClient(e.APIKey, e.BaseURL, e.Model)
	case "ollama":
		return embedding.NewOllamaClient(e.BaseURL, e.Model, e.BatchSize)
	default:
		return embedding.NewTEIClient(e.BaseURL, e.RequestsPerSecond,
			time.Duration(e.TimeoutSecs)*time.Second, logger), nil
	}
}

// =========
// serve
// =========

func serveCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg, logger, err := load(fs, args)
	if err != nil {
		return err
	}
	defer logger.Sync()

	runner, closeRunner, err := buildRunner(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRunner()

	opts, err := runOptions(cfg)
	if err != nil {
		return err
	}
	return api.NewServer(runner, opts, tsneFor(cfg), cfg.API.Port, logger).Start(ctx)
}

// =========
// batches
// =========

func batchesCmd(args []string) error {
	fs := flag.NewFlagSet("batches", flag.ExitOnError)
	cfg, logger, err := load(fs, args)
	if err != nil {
		return err
	}
	defer logger.Sync()

	records, err := store.OpenRecords(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer records.Close()

	names, err := records.Batches()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
