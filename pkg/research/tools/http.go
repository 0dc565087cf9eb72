package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/source"
)

const maxFetchBytes = 64 * 1024

// HTTPExtractor downloads pages directly and strips them to plain text.
type HTTPExtractor struct {
	Logger *slog.Logger
	client *http.Client
}

func NewHTTPExtractor(logger *slog.Logger) *HTTPExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPExtractor{Logger: logger, client: &http.Client{Timeout: 15 * time.Second}}
}

// Extract fetches each URL, skipping the ones that fail. An error is returned
// only when nothing could be fetched.
func (h *HTTPExtractor) Extract(ctx context.Context, urls []string) ([]source.Page, error) {
	pages := make([]source.Page, 0, len(urls))
	var errs []error
	for _, u := range urls {
		title, text, err := h.fetch(ctx, u)
		if err != nil {
			h.Logger.Warn("Failed to fetch page", "url", u, "error", err)
			errs = append(errs, err)
			continue
		}
		pages = append(pages, source.Page{URL: u, Title: title, RawContent: text})
	}
	if len(pages) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return pages, nil
}

func (h *HTTPExtractor) fetch(ctx context.Context, url string) (string, string, error) {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return "", "", errors.New("fetch url is empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trimmed, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("fetch http %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*maxFetchBytes))
	if err != nil {
		return "", "", err
	}

	html := string(body)
	text := stripHTML(html)
	if len(text) > maxFetchBytes {
		text = text[:maxFetchBytes]
	}
	return pageTitle(html), text, nil
}

var (
	reTitle      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	reScript     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	reStyle      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	reNav        = regexp.MustCompile(`(?is)<nav[^>]*>.*?</nav>`)
	reHeader     = regexp.MustCompile(`(?is)<header[^>]*>.*?</header>`)
	reFooter     = regexp.MustCompile(`(?is)<footer[^>]*>.*?</footer>`)
	reTags       = regexp.MustCompile(`<[^>]+>`)
	reWhitespace = regexp.MustCompile(`[ \t]+`)
)

var entities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

func pageTitle(html string) string {
	m := reTitle.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(entities.Replace(m[1]))
}

// stripHTML drops scripts, styles and page chrome, then all remaining tags.
func stripHTML(html string) string {
	s := reTitle.ReplaceAllString(html, "")
	s = reScript.ReplaceAllString(s, "")
	s = reStyle.ReplaceAllString(s, "")
	s = reNav.ReplaceAllString(s, "")
	s = reHeader.ReplaceAllString(s, "")
	s = reFooter.ReplaceAllString(s, "")
	s = reTags.ReplaceAllString(s, " ")
	s = entities.Replace(s)
	s = reWhitespace.ReplaceAllString(s, " ")

	var out []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}
