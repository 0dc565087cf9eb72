package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/clients"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/config"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/embeddings"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/knowledge"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/source"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/vectorstore"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeArchive struct {
	docs      []vectorstore.Document
	err       error
	gotURL    string
	gotFilter map[string]any
}

func (f *fakeArchive) GetContentByURL(ctx context.Context, url string) ([]vectorstore.Document, error) {
	f.gotURL = url
	return f.docs, f.err
}

func (f *fakeArchive) GetContentByMetadata(ctx context.Context, filter map[string]any) ([]vectorstore.Document, error) {
	f.gotFilter = filter
	return f.docs, f.err
}

func newStore(t *testing.T) *knowledge.Store {
	t.Helper()
	s, err := knowledge.Open(t.TempDir(), embeddings.NewHashEmbedder(64), knowledge.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func TestSearchKnowledge(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	pages := []source.Page{
		{URL: "https://a.example/tides", RawContent: "tidal turbines convert ocean tides into electricity"},
		{URL: "https://b.example/solar", RawContent: "solar panels convert sunlight into electricity"},
	}
	if _, err := s.AddDocuments(ctx, pages, "energy", 1); err != nil {
		t.Fatalf("AddDocuments() error = %v", err)
	}

	tools := NewKnowledgeToolset(s, nil, quietLogger())
	resp, err := tools.SearchKnowledge(ctx, SearchKnowledgeArgs{Query: "tidal turbines ocean"})
	if err != nil {
		t.Fatalf("SearchKnowledge() error = %v", err)
	}
	for _, want := range []string{"[Source]: https://a.example/tides", "[Topic]: energy", "[Relevance]: ", "[Content]: tidal turbines"} {
		if !strings.Contains(resp.Results, want) {
			t.Errorf("results missing %q:\n%s", want, resp.Results)
		}
	}

	resp, err = tools.SearchKnowledge(ctx, SearchKnowledgeArgs{Query: "tides", Topic: "astronomy"})
	if err != nil {
		t.Fatalf("SearchKnowledge() error = %v", err)
	}
	if resp.Results != knowledge.NoPriorKnowledge {
		t.Errorf("filtered search = %q, want %q", resp.Results, knowledge.NoPriorKnowledge)
	}
}

func TestFindContent(t *testing.T) {
	ctx := context.Background()
	archive := &fakeArchive{docs: []vectorstore.Document{{
		ID:       "1",
		Content:  "Tidal energy is predictable.",
		Metadata: map[string]any{"url": "https://a.example", "topic": "energy", "iteration": 1},
	}}}
	tools := NewKnowledgeToolset(newStore(t), archive, quietLogger())

	want := "[Content]: Tidal energy is predictable.\n[iteration]: 1\n[topic]: energy\n[url]: https://a.example"

	got, err := tools.FindContentByURL(ctx, FindURLArgs{URL: "https://a.example"})
	if err != nil {
		t.Fatalf("FindContentByURL() error = %v", err)
	}
	if diff := cmp.Diff(want, got.Content); diff != "" {
		t.Errorf("FindContentByURL mismatch (-want +got):\n%s", diff)
	}
	if archive.gotURL != "https://a.example" {
		t.Errorf("archive queried for %q", archive.gotURL)
	}

	filter := map[string]any{"topic": "energy"}
	got, err = tools.FindContentByMetadata(ctx, FindMetadataArgs{Filter: filter})
	if err != nil {
		t.Fatalf("FindContentByMetadata() error = %v", err)
	}
	if diff := cmp.Diff(want, got.Content); diff != "" {
		t.Errorf("FindContentByMetadata mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(filter, archive.gotFilter); diff != "" {
		t.Errorf("filter mismatch (-want +got):\n%s", diff)
	}

	archive.err = errors.New("connection refused")
	if _, err := tools.FindContentByURL(ctx, FindURLArgs{URL: "x"}); err == nil {
		t.Error("FindContentByURL() error = nil for failing archive")
	}
}

func TestFindContentWithoutArchive(t *testing.T) {
	tools := NewKnowledgeToolset(newStore(t), nil, quietLogger())
	if _, err := tools.FindContentByURL(context.Background(), FindURLArgs{URL: "x"}); !errors.Is(err, errArchiveDisabled) {
		t.Errorf("FindContentByURL() error = %v, want errArchiveDisabled", err)
	}
	if _, err := tools.FindContentByMetadata(context.Background(), FindMetadataArgs{}); !errors.Is(err, errArchiveDisabled) {
		t.Errorf("FindContentByMetadata() error = %v, want errArchiveDisabled", err)
	}
}

func TestHistoryEvents(t *testing.T) {
	skip := uuid.New()
	history := []Message{
		{ID: uuid.New(), Role: "user", Content: "What about tides?"},
		{ID: uuid.New(), Role: "model", Content: "Tides are predictable."},
		{ID: skip, Role: "user", Content: "current message"},
	}

	events := historyEvents(history, skip)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	tests := []struct {
		author, role, text string
	}{
		{"user", "user", "What about tides?"},
		{agentName, "model", "Tides are predictable."},
	}
	for i, tt := range tests {
		evt := events[i]
		if evt.Author != tt.author {
			t.Errorf("event %d author = %q, want %q", i, evt.Author, tt.author)
		}
		c := evt.LLMResponse.Content
		if c.Role != tt.role || c.Parts[0].Text != tt.text {
			t.Errorf("event %d content = %s/%q, want %s/%q", i, c.Role, c.Parts[0].Text, tt.role, tt.text)
		}
	}
}

func TestPartEvents(t *testing.T) {
	call := &genai.FunctionCall{Name: "search_knowledge"}
	result := &genai.FunctionResponse{Name: "search_knowledge"}

	tests := []struct {
		name string
		part *genai.Part
		want []string
	}{
		{"Text", &genai.Part{Text: "hello"}, []string{EventContent}},
		{"Tool call", &genai.Part{FunctionCall: call}, []string{EventToolCall}},
		{"Tool result", &genai.Part{FunctionResponse: result}, []string{EventToolResult}},
		{"Empty", &genai.Part{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, ev := range partEvents(tt.part) {
				got = append(got, ev.Type)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("event types mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTitlePrompt(t *testing.T) {
	p := titlePrompt("Why tides?", "The moon.")
	if !strings.Contains(p, "Question: Why tides?") || !strings.Contains(p, "Answer: The moon.") {
		t.Errorf("prompt missing exchange:\n%s", p)
	}
}

func TestParseTitle(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{`{"title": "Tidal Power Basics"}`, "Tidal Power Basics", false},
		{`{"title": "  spaced  "}`, "spaced", false},
		{`{}`, "", false},
		{`not json`, "", true},
	}
	for _, tt := range tests {
		got, err := parseTitle(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseTitle(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("parseTitle(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestChatModel(t *testing.T) {
	cfg := config.Defaults()
	cfg.LLMProvider = "google"
	cfg.WriterModel = "gemini-3-pro-preview"
	if got := chatModel(cfg); got != "gemini-3-pro-preview" {
		t.Errorf("chatModel() = %q, want writer model", got)
	}

	cfg.LLMProvider = "anthropic"
	cfg.WriterModel = clients.Claude4Sonnet
	if got := chatModel(cfg); got != clients.DefaultModel {
		t.Errorf("chatModel() = %q, want %q", got, clients.DefaultModel)
	}
}
