package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/search"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/source"
)

const tavilyBaseURL = "https://api.tavily.com"

// Tavily calls the Tavily search and extract APIs.
type Tavily struct {
	APIKey string
	// Depth controls Tavily's search_depth parameter (basic or advanced).
	Depth      string
	MaxResults int
	BaseURL    string
	client     *http.Client
}

// NewTavily constructs a Tavily client.
func NewTavily(apiKey string, maxResults int) *Tavily {
	if maxResults <= 0 {
		maxResults = 2
	}
	return &Tavily{
		APIKey:     apiKey,
		Depth:      "basic",
		MaxResults: maxResults,
		BaseURL:    tavilyBaseURL,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Search posts a query to Tavily.
func (t *Tavily) Search(ctx context.Context, query string) ([]search.Result, error) {
	body := map[string]any{
		"query":        query,
		"api_key":      t.APIKey,
		"search_depth": t.Depth,
		"max_results":  t.MaxResults,
		"topic":        "general",
	}

	var response struct {
		Results []struct {
			Title   string  `json:"title"`
			URL     string  `json:"url"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	if err := t.post(ctx, "/search", body, &response); err != nil {
		return nil, err
	}

	results := make([]search.Result, 0, len(response.Results))
	for _, r := range response.Results {
		results = append(results, search.Result{URL: r.URL, Title: r.Title, Content: r.Content, Score: r.Score})
		if len(results) >= t.MaxResults {
			break
		}
	}
	return results, nil
}

// Extract fetches full page content as markdown.
func (t *Tavily) Extract(ctx context.Context, urls []string) ([]source.Page, error) {
	if len(urls) == 0 {
		return []source.Page{}, nil
	}
	body := map[string]any{
		"urls":           urls,
		"api_key":        t.APIKey,
		"extract_depth":  "advanced",
		"format":         "markdown",
		"include_images": false,
	}

	var response struct {
		Results []struct {
			URL        string `json:"url"`
			RawContent string `json:"raw_content"`
		} `json:"results"`
		FailedResults []struct {
			URL   string `json:"url"`
			Error string `json:"error"`
		} `json:"failed_results"`
	}
	if err := t.post(ctx, "/extract", body, &response); err != nil {
		return nil, err
	}

	pages := make([]source.Page, 0, len(response.Results))
	for _, r := range response.Results {
		pages = append(pages, source.Page{URL: r.URL, RawContent: r.RawContent})
	}
	return pages, nil
}

// post sends body as JSON and decodes the response into out. Rate-limited
// requests are retried with exponential backoff until ctx is done.
func (t *Tavily) post(ctx context.Context, path string, body any, out any) error {
	if strings.TrimSpace(t.APIKey) == "" {
		return errors.New("tavily: API key is missing")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var resp *http.Response
	delay := 1 * time.Second
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err = t.client.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("tavily http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
