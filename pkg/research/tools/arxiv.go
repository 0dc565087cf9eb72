package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/search"
)

const arxivBaseURL = "https://export.arxiv.org/api/query"

// atomFeed is the subset of the arXiv Atom response the provider reads.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string     `xml:"title"`
	Summary string     `xml:"summary"`
	Links   []atomLink `xml:"link"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

// Arxiv is a search provider over the arXiv API. Results point at the paper PDFs.
type Arxiv struct {
	MaxResults int
	BaseURL    string
	Logger     *slog.Logger
	client     *http.Client
}

func NewArxiv(maxResults int, logger *slog.Logger) *Arxiv {
	if maxResults <= 0 {
		maxResults = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Arxiv{
		MaxResults: maxResults,
		BaseURL:    arxivBaseURL,
		Logger:     logger,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Search returns papers matching query, skipping entries without a PDF link.
func (a *Arxiv) Search(ctx context.Context, query string) ([]search.Result, error) {
	params := url.Values{
		"search_query": {"all:" + query},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(a.MaxResults)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		a.Logger.Warn("arXiv request rejected", "status", resp.StatusCode, "body", string(msg))
		return nil, fmt.Errorf("arxiv: %s", resp.Status)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("arxiv: decode feed: %w", err)
	}

	results := make([]search.Result, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		link := pdfLink(entry.Links)
		if link == "" {
			continue
		}
		results = append(results, search.Result{
			URL:     link,
			Title:   collapseSpace(entry.Title),
			Content: collapseSpace(entry.Summary),
		})
	}
	a.Logger.Info("arXiv search complete", "query", query, "count", len(results))
	return results, nil
}

func pdfLink(links []atomLink) string {
	for _, l := range links {
		if l.Type == "application/pdf" {
			return strings.Replace(l.Href, "http://", "https://", 1)
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
