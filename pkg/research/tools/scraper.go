package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/source"
)

const (
	mistralOCRURL   = "https://api.mistral.ai/v1/ocr"
	mistralOCRModel = "mistral-ocr-latest"
	ocrTimeout      = 120 * time.Second
	// error bodies are echoed back only up to this length
	maxErrorBody = 512
)

type ocrDocument struct {
	Type string `json:"type"`
	URL  string `json:"document_url"`
}

type ocrRequest struct {
	Model        string      `json:"model"`
	Document     ocrDocument `json:"document"`
	IncludeImage bool        `json:"include_image_base64"`
}

type ocrPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type ocrResponse struct {
	Pages []ocrPage `json:"pages"`
}

// PDFScraper extracts PDF documents as markdown using the Mistral OCR API.
type PDFScraper struct {
	APIKey  string
	BaseURL string
	Logger  *slog.Logger
	client  *http.Client
}

func NewPDFScraper(apiKey string, logger *slog.Logger) *PDFScraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFScraper{
		APIKey:  apiKey,
		BaseURL: mistralOCRURL,
		Logger:  logger,
		client:  &http.Client{Timeout: ocrTimeout},
	}
}

// Extract scrapes each PDF in turn. Documents that fail are logged and
// skipped; an error is returned only when every document fails.
func (p *PDFScraper) Extract(ctx context.Context, urls []string) ([]source.Page, error) {
	pages := make([]source.Page, 0, len(urls))
	var errs []error
	for _, u := range urls {
		text, err := p.ScrapePDF(ctx, u)
		if err != nil {
			p.Logger.Warn("Failed to scrape PDF", "url", u, "error", err)
			errs = append(errs, err)
			continue
		}
		pages = append(pages, source.Page{URL: u, RawContent: text})
	}
	if len(pages) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return pages, nil
}

// ScrapePDF returns the document's pages as markdown, each under a
// "- Page N -" marker.
func (p *PDFScraper) ScrapePDF(ctx context.Context, url string) (string, error) {
	if p.APIKey == "" {
		return "", errors.New("mistral ocr: API key is missing")
	}

	payload, err := json.Marshal(ocrRequest{
		Model:    mistralOCRModel,
		Document: ocrDocument{Type: "document_url", URL: strings.Replace(url, "http://", "https://", 1)},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("mistral ocr: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("mistral ocr: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var doc ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("mistral ocr: decode response: %w", err)
	}

	var sb strings.Builder
	for _, page := range doc.Pages {
		fmt.Fprintf(&sb, "- Page %d -\n%s\n\n", page.Index, page.Markdown)
	}
	return strings.TrimSpace(sb.String()), nil
}
