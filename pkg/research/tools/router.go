package tools

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/source"
)

// Extractor fetches the full content of pages.
type Extractor interface {
	Extract(ctx context.Context, urls []string) ([]source.Page, error)
}

// RoutingExtractor sends PDF links to the PDF extractor and everything else
// to the web extractor. Web pages come first in the result.
type RoutingExtractor struct {
	Web    Extractor
	PDF    Extractor
	Logger *slog.Logger
}

func (r *RoutingExtractor) Extract(ctx context.Context, urls []string) ([]source.Page, error) {
	var web, pdf []string
	for _, u := range urls {
		if r.PDF != nil && IsPDF(u) {
			pdf = append(pdf, u)
		} else {
			web = append(web, u)
		}
	}

	pages := []source.Page{}
	var errs []error
	for _, batch := range []struct {
		ex   Extractor
		urls []string
	}{{r.Web, web}, {r.PDF, pdf}} {
		if len(batch.urls) == 0 {
			continue
		}
		got, err := batch.ex.Extract(ctx, batch.urls)
		if err != nil {
			r.logger().Warn("Extractor failed", "urls", batch.urls, "error", err)
			errs = append(errs, err)
			continue
		}
		pages = append(pages, got...)
	}

	if len(pages) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return pages, nil
}

func (r *RoutingExtractor) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// IsPDF reports whether rawURL points at a PDF document.
func IsPDF(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	return strings.HasSuffix(path, ".pdf") || (strings.HasSuffix(u.Hostname(), "arxiv.org") && strings.HasPrefix(path, "/pdf/"))
}
