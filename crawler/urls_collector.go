package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Browser loads listing pages in headless Chrome for pages that build
// their job cards with JavaScript.
type Browser struct {
	logger          *zap.Logger
	Timeout         time.Duration
	ChromedpOptions []chromedp.ExecAllocatorOption
}

func NewBrowser(logger *zap.Logger, proxyURL, userAgent string) *Browser {
	options := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Headless,
		chromedp.UserAgent(userAgent),
		chromedp.Flag("accept-language", "en-US,en;q=0.9"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.Flag("disable-extensions", ""),
	)
	if proxyURL != "" {
		options = append(options, chromedp.ProxyServer(proxyURL))
	}
	return &Browser{logger: logger, Timeout: 90 * time.Second, ChromedpOptions: options}
}

// Fetch navigates to pageURL, waits for the results column and returns the
// rendered document.
func (b *Browser) Fetch(ctx context.Context, pageURL string) (string, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, b.ChromedpOptions...)
	defer allocCancel()
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()
	taskCtx, timeoutCancel := context.WithTimeout(taskCtx, b.Timeout)
	defer timeoutCancel()

	b.logger.Info("rendering listings", zap.String("url", pageURL))

	var html string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitVisible("body"),
		chromedp.Evaluate(`Object.defineProperty(navigator, 'webdriver', { get: () => undefined });`, nil),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		var currentURL, title string
		chromedp.Run(taskCtx, chromedp.Location(&currentURL), chromedp.Title(&title))
		b.logger.Error("failed to render listings",
			zap.String("current_url", currentURL),
			zap.String("title", title),
			zap.Error(err))
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}
	b.logger.Debug("rendered listings", zap.Int("dom_length", len(html)))
	return html, nil
}
