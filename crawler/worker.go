package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobmap/record"
)

// VisitStore is colly storage whose visit set can be reset between scrapes.
type VisitStore interface {
	storage.Storage
	ClearVisits() error
}

// Scraper fetches listing pages and turns job cards into records.
type Scraper struct {
	config  *CrawlerConfig
	client  *http.Client
	store   VisitStore
	browser *Browser
	logger  *zap.Logger
	now     func() time.Time
}

type Option func(*Scraper)

// WithStore persists cookies and visits between runs.
func WithStore(s VisitStore) Option { return func(w *Scraper) { w.store = s } }

// WithBrowser renders pages in headless Chrome instead of plain HTTP.
func WithBrowser(b *Browser) Option { return func(w *Scraper) { w.browser = b } }

// WithHTTPClient sets the client colly uses, e.g. one that dials a proxy.
func WithHTTPClient(c *http.Client) Option { return func(w *Scraper) { w.client = c } }

func NewScraper(config *CrawlerConfig, logger *zap.Logger, opts ...Option) *Scraper {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Pages <= 0 {
		config.Pages = 1
	}
	s := &Scraper{config: config, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scrape fetches config.Pages listing pages for q and returns the postings
// in page order, each posting once. Every record is stamped with the time
// of the scrape.
func (w *Scraper) Scrape(ctx context.Context, q Query) ([]record.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	ctx = WithScrapeID(ctx, uuid.NewString())
	logger := GetContextLogger(ctx, w.logger)

	var pages [][]record.Record
	var err error
	if w.browser != nil {
		pages, err = w.render(ctx, q, logger)
	} else {
		pages, err = w.collect(ctx, q, logger)
	}
	if err != nil {
		return nil, err
	}

	pulled := w.now()
	seen := make(map[string]bool)
	var out []record.Record
	for _, page := range pages {
		for _, r := range page {
			if r.Link != "" {
				if seen[r.Link] {
					continue
				}
				seen[r.Link] = true
			}
			r.PulledAt = pulled
			out = append(out, r)
		}
	}
	logger.Info("scrape completed",
		zap.String("query", q.Name()),
		zap.Int("pages", len(pages)),
		zap.Int("postings", len(out)))
	return out, nil
}

func (w *Scraper) newCollector() (*colly.Collector, error) {
	c := colly.NewCollector(
		colly.UserAgent(w.config.UserAgent),
		colly.MaxDepth(1),
		colly.Async(true),
	)
	if w.client != nil {
		c.SetClient(w.client)
	}
	if w.config.RequestTimeout > 0 {
		c.SetRequestTimeout(w.config.RequestTimeout)
	}
	parallelism := max(w.config.Parallelism, 1)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: parallelism,
		Delay:       w.config.RequestDelay,
	}); err != nil {
		return nil, err
	}
	if w.store != nil {
		if err := c.SetStorage(w.store); err != nil {
			return nil, fmt.Errorf("set crawl storage: %w", err)
		}
		if err := w.store.ClearVisits(); err != nil {
			return nil, fmt.Errorf("clear visits: %w", err)
		}
	}
	return c, nil
}

func (w *Scraper) collect(ctx context.Context, q Query, logger *zap.Logger) ([][]record.Record, error) {
	c, err := w.newCollector()
	if err != nil {
		return nil, err
	}

	searchURL := q.SearchURL(w.config.BaseURL)
	pages := make([][]record.Record, w.config.Pages)
	var (
		mu   sync.Mutex
		errs []error
	)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		logger.Debug("requesting listings", zap.String("url", r.URL.String()))
	})
	c.OnResponse(func(r *colly.Response) {
		page := r.Ctx.GetAny("page").(int)
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			logger.Error("failed to parse document", zap.String("url", r.Request.URL.String()), zap.Error(err))
			return
		}
		cards := ParseCards(doc, searchURL)
		logger.Info("parsed listings page",
			zap.Int("page", page),
			zap.Int("status", r.StatusCode),
			zap.Int("cards", len(cards)))
		mu.Lock()
		pages[page] = cards
		mu.Unlock()
	})
	c.OnError(func(r *colly.Response, err error) {
		logger.Error("listings request failed",
			zap.String("url", r.Request.URL.String()),
			zap.Int("status", r.StatusCode),
			zap.Error(err))
		mu.Lock()
		errs = append(errs, fmt.Errorf("%s: %w", r.Request.URL, err))
		mu.Unlock()
	})

	for page := range pages {
		pctx := colly.NewContext()
		pctx.Put("page", page)
		if err := c.Request(http.MethodGet, q.PageURL(w.config.BaseURL, page), nil, pctx, nil); err != nil {
			logger.Error("failed to visit URL", zap.Int("page", page), zap.Error(err))
		}
	}
	c.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(errs) == len(pages) {
		return nil, fmt.Errorf("every listings page failed: %w", errs[0])
	}
	return trimEmpty(pages), nil
}

func (w *Scraper) render(ctx context.Context, q Query, logger *zap.Logger) ([][]record.Record, error) {
	searchURL := q.SearchURL(w.config.BaseURL)
	var pages [][]record.Record
	for page := 0; page < w.config.Pages; page++ {
		html, err := w.browser.Fetch(ctx, q.PageURL(w.config.BaseURL, page))
		if err != nil {
			return nil, err
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(html)))
		if err != nil {
			return nil, fmt.Errorf("parse rendered page %d: %w", page, err)
		}
		cards := ParseCards(doc, searchURL)
		logger.Info("parsed rendered page", zap.Int("page", page), zap.Int("cards", len(cards)))
		if len(cards) == 0 {
			break
		}
		pages = append(pages, cards)
	}
	return pages, nil
}

// trimEmpty drops pages after the first page without cards; later pages
// repeat the last results once the listing runs out.
func trimEmpty(pages [][]record.Record) [][]record.Record {
	if i := slices.IndexFunc(pages, func(p []record.Record) bool { return len(p) == 0 }); i >= 0 {
		return pages[:i]
	}
	return pages
}
