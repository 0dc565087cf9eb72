package tools

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/source"
)

// BrowserExtractor renders pages in headless Chrome, for sites that build
// their content with JavaScript.
type BrowserExtractor struct {
	Logger      *slog.Logger
	PageTimeout time.Duration
}

func NewBrowserExtractor(logger *slog.Logger) *BrowserExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserExtractor{Logger: logger, PageTimeout: 30 * time.Second}
}

// Extract visits each URL in one browser session. Pages that fail to load are skipped.
func (b *BrowserExtractor) Extract(ctx context.Context, urls []string) ([]source.Page, error) {
	if len(urls) == 0 {
		return []source.Page{}, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	pages := make([]source.Page, 0, len(urls))
	var errs []error
	for _, u := range urls {
		page, err := b.visit(browserCtx, u)
		if err != nil {
			b.Logger.Warn("Failed to render page", "url", u, "error", err)
			errs = append(errs, err)
			continue
		}
		pages = append(pages, page)
	}
	if len(pages) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return pages, nil
}

func (b *BrowserExtractor) visit(ctx context.Context, url string) (source.Page, error) {
	tabCtx, cancel := chromedp.NewContext(ctx)
	defer cancel()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.PageTimeout)
	defer cancelTimeout()

	var title, text string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Title(&title),
		chromedp.Text("body", &text, chromedp.ByQuery),
	)
	if err != nil {
		return source.Page{}, err
	}
	return source.Page{URL: url, Title: title, RawContent: text}, nil
}
