package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/search"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/source"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTavilySearch(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %s, want /search", r.URL.Path)
		}
		// first call is rate limited
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body["query"] != "tidal power" || body["api_key"] != "key" {
			t.Errorf("unexpected request body %v", body)
		}
		io.WriteString(w, `{"results":[
			{"title":"A","url":"https://a.example","content":"alpha","score":0.9},
			{"title":"B","url":"https://b.example","content":"beta","score":0.8},
			{"title":"C","url":"https://c.example","content":"gamma","score":0.7}]}`)
	}))
	defer srv.Close()

	tv := NewTavily("key", 2)
	tv.BaseURL = srv.URL

	got, err := tv.Search(context.Background(), "tidal power")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	want := []search.Result{
		{URL: "https://a.example", Title: "A", Content: "alpha", Score: 0.9},
		{URL: "https://b.example", Title: "B", Content: "beta", Score: 0.8},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	if hits.Load() != 2 {
		t.Errorf("server hit %d times, want 2", hits.Load())
	}
}

func TestTavilyExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extract" {
			t.Errorf("path = %s, want /extract", r.URL.Path)
		}
		io.WriteString(w, `{"results":[{"url":"https://a.example","raw_content":"# A\nbody"}],
			"failed_results":[{"url":"https://b.example","error":"timeout"}]}`)
	}))
	defer srv.Close()

	tv := NewTavily("key", 2)
	tv.BaseURL = srv.URL

	got, err := tv.Extract(context.Background(), []string{"https://a.example", "https://b.example"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := []source.Page{{URL: "https://a.example", RawContent: "# A\nbody"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pages mismatch (-want +got):\n%s", diff)
	}
}

func TestTavilyErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	tv := NewTavily("key", 2)
	tv.BaseURL = srv.URL
	if _, err := tv.Search(context.Background(), "q"); err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("Search() error = %v, want http 401", err)
	}

	if _, err := NewTavily("", 2).Search(context.Background(), "q"); err == nil {
		t.Error("Search() without API key succeeded")
	}
}

const arxivFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>Tidal  Stream
      Turbines</title>
    <summary>  We study turbines. </summary>
    <published>2024-01-01T00:00:00Z</published>
    <link href="http://arxiv.org/abs/2401.00001v1" type="text/html"/>
    <link href="http://arxiv.org/pdf/2401.00001v1" type="application/pdf"/>
  </entry>
  <entry>
    <title>No PDF</title>
    <summary>missing link</summary>
  </entry>
</feed>`

func TestArxivSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("search_query"); got != "all:tidal turbines" {
			t.Errorf("search_query = %q", got)
		}
		io.WriteString(w, arxivFeed)
	}))
	defer srv.Close()

	a := NewArxiv(3, quietLogger())
	a.BaseURL = srv.URL

	got, err := a.Search(context.Background(), "tidal turbines")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	want := []search.Result{{
		URL:     "https://arxiv.org/pdf/2401.00001v1",
		Title:   "Tidal Stream Turbines",
		Content: "We study turbines.",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestPDFScraper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		var body struct {
			Document struct {
				URL string `json:"document_url"`
			} `json:"document"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if strings.Contains(body.Document.URL, "broken") {
			http.Error(w, "cannot read", http.StatusBadRequest)
			return
		}
		io.WriteString(w, `{"pages":[{"index":0,"markdown":"# Title"},{"index":1,"markdown":"Body"}]}`)
	}))
	defer srv.Close()

	p := NewPDFScraper("secret", quietLogger())
	p.BaseURL = srv.URL

	got, err := p.Extract(context.Background(), []string{"http://x.example/a.pdf", "https://x.example/broken.pdf"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := []source.Page{{URL: "http://x.example/a.pdf", RawContent: "- Page 0 -\n# Title\n\n- Page 1 -\nBody"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pages mismatch (-want +got):\n%s", diff)
	}

	if _, err := p.Extract(context.Background(), []string{"https://x.example/broken.pdf"}); err == nil {
		t.Error("Extract() of only failing documents returned no error")
	}
}

func TestHTTPExtractor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `<html><head><title>Tides &amp; Power</title><style>p{}</style></head>
<body><nav>menu</nav><script>var x=1;</script>
<p>Tidal   energy is <b>predictable</b>.</p>
<footer>copyright</footer></body></html>`)
	}))
	defer srv.Close()

	h := NewHTTPExtractor(quietLogger())
	got, err := h.Extract(context.Background(), []string{srv.URL + "/page", srv.URL + "/missing"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d pages, want 1", len(got))
	}
	if got[0].Title != "Tides & Power" {
		t.Errorf("title = %q", got[0].Title)
	}
	if got[0].RawContent != "Tidal energy is predictable ." {
		t.Errorf("content = %q", got[0].RawContent)
	}
}

type stubExtractor struct {
	got []string
	err error
}

func (s *stubExtractor) Extract(ctx context.Context, urls []string) ([]source.Page, error) {
	s.got = append(s.got, urls...)
	if s.err != nil {
		return nil, s.err
	}
	pages := make([]source.Page, len(urls))
	for i, u := range urls {
		pages[i] = source.Page{URL: u, RawContent: "content"}
	}
	return pages, nil
}

func TestRoutingExtractor(t *testing.T) {
	web := &stubExtractor{}
	pdf := &stubExtractor{err: errors.New("ocr down")}
	r := &RoutingExtractor{Web: web, PDF: pdf, Logger: quietLogger()}

	urls := []string{"https://a.example/post", "https://arxiv.org/pdf/2401.00001v1", "https://b.example/paper.PDF"}
	got, err := r.Extract(context.Background(), urls)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if diff := cmp.Diff([]string{"https://a.example/post"}, web.got); diff != "" {
		t.Errorf("web urls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(urls[1:], pdf.got); diff != "" {
		t.Errorf("pdf urls mismatch (-want +got):\n%s", diff)
	}
	if len(got) != 1 {
		t.Errorf("got %d pages, want 1 despite PDF failure", len(got))
	}
}

func TestRoutingExtractorAllFail(t *testing.T) {
	r := &RoutingExtractor{Web: &stubExtractor{err: errors.New("down")}, Logger: quietLogger()}
	if _, err := r.Extract(context.Background(), []string{"https://a.example/x.pdf"}); err == nil {
		t.Error("Extract() returned no error when every extractor failed")
	}
}

func TestIsPDF(t *testing.T) {
	tests := map[string]bool{
		"https://example.com/report.pdf":      true,
		"https://example.com/REPORT.PDF?dl=1": true,
		"https://arxiv.org/pdf/2401.00001v1":  true,
		"https://export.arxiv.org/pdf/1234":   true,
		"https://arxiv.org/abs/2401.00001v1":  false,
		"https://example.com/pdf-guide":       false,
		"::bad url":                           false,
	}
	for u, want := range tests {
		if got := IsPDF(u); got != want {
			t.Errorf("IsPDF(%q) = %v, want %v", u, got, want)
		}
	}
}
