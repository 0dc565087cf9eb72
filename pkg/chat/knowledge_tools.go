package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/knowledge"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/vectorstore"
)

const defaultTopK = 5

// Knowledge is the local store searched by the agent.
type Knowledge interface {
	Retrieve(ctx context.Context, query string, n int, topicFilter string) ([]knowledge.Retrieved, error)
}

// Archive is the Postgres mirror of the knowledge store.
type Archive interface {
	GetContentByURL(ctx context.Context, url string) ([]vectorstore.Document, error)
	GetContentByMetadata(ctx context.Context, filter map[string]any) ([]vectorstore.Document, error)
}

// KnowledgeToolset gives the agent read access to past research.
type KnowledgeToolset struct {
	Knowledge Knowledge
	// Archive is optional; the lookup tools are only offered when it is set.
	Archive Archive
	Logger  *slog.Logger
}

func NewKnowledgeToolset(kb Knowledge, archive Archive, logger *slog.Logger) *KnowledgeToolset {
	if logger == nil {
		logger = slog.Default()
	}
	return &KnowledgeToolset{Knowledge: kb, Archive: archive, Logger: logger}
}

func (t *KnowledgeToolset) Name() string {
	return "knowledge_tools"
}

func (t *KnowledgeToolset) Tools(ctx agent.ReadonlyContext) ([]tool.Tool, error) {
	searchTool, err := functiontool.New[SearchKnowledgeArgs, SearchKnowledgeResp](
		functiontool.Config{
			Name:        "search_knowledge",
			Description: "Semantic search over pages gathered by earlier research runs.",
		},
		func(ctx tool.Context, args SearchKnowledgeArgs) (SearchKnowledgeResp, error) {
			return t.SearchKnowledge(ctx, args)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search tool: %w", err)
	}
	tools := []tool.Tool{searchTool}

	if t.Archive == nil {
		return tools, nil
	}

	byURLTool, err := functiontool.New[FindURLArgs, FindContentResp](
		functiontool.Config{
			Name:        "find_content_by_url",
			Description: "Return the archived content of a page by its URL.",
		},
		func(ctx tool.Context, args FindURLArgs) (FindContentResp, error) {
			return t.FindContentByURL(ctx, args)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create find_by_url tool: %w", err)
	}

	byMetadataTool, err := functiontool.New[FindMetadataArgs, FindContentResp](
		functiontool.Config{
			Name:        "find_content_by_metadata",
			Description: "Find archived pages using logical filters on url, topic, iteration and word_count.",
		},
		func(ctx tool.Context, args FindMetadataArgs) (FindContentResp, error) {
			return t.FindContentByMetadata(ctx, args)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create find_by_metadata tool: %w", err)
	}

	return append(tools, byURLTool, byMetadataTool), nil
}

type SearchKnowledgeArgs struct {
	Query string `json:"query" description:"The search query"`
	TopK  int    `json:"topK,omitempty" description:"Number of results to return (default 5)"`
	Topic string `json:"topic,omitempty" description:"Optional research topic to restrict results to"`
}

type SearchKnowledgeResp struct {
	Results string `json:"results"`
}

func (t *KnowledgeToolset) SearchKnowledge(ctx context.Context, args SearchKnowledgeArgs) (SearchKnowledgeResp, error) {
	if args.TopK <= 0 {
		args.TopK = defaultTopK
	}
	t.Logger.Info("Search knowledge", "query", args.Query, "topK", args.TopK, "topic", args.Topic)

	docs, err := t.Knowledge.Retrieve(ctx, args.Query, args.TopK, args.Topic)
	if err != nil {
		return SearchKnowledgeResp{}, fmt.Errorf("failed to search knowledge: %w", err)
	}
	if len(docs) == 0 {
		return SearchKnowledgeResp{Results: knowledge.NoPriorKnowledge}, nil
	}

	formatted := make([]string, 0, len(docs))
	for _, d := range docs {
		formatted = append(formatted, fmt.Sprintf("[Source]: %s\n[Topic]: %s\n[Relevance]: %.2f\n[Content]: %s",
			d.URL, d.Topic, d.RelevanceScore, d.Content))
	}
	return SearchKnowledgeResp{Results: strings.Join(formatted, "\n\n")}, nil
}

type FindURLArgs struct {
	URL string `json:"url" description:"The page URL to look up"`
}

type FindMetadataArgs struct {
	Filter map[string]any `json:"filter" description:"JSON filter object with logical operators ($and, $or, $not)"`
}

type FindContentResp struct {
	Content string `json:"content"`
}

func (t *KnowledgeToolset) FindContentByURL(ctx context.Context, args FindURLArgs) (FindContentResp, error) {
	if t.Archive == nil {
		return FindContentResp{}, errArchiveDisabled
	}
	docs, err := t.Archive.GetContentByURL(ctx, args.URL)
	if err != nil {
		return FindContentResp{}, fmt.Errorf("failed to find content: %w", err)
	}
	return FindContentResp{Content: formatDocuments(docs)}, nil
}

func (t *KnowledgeToolset) FindContentByMetadata(ctx context.Context, args FindMetadataArgs) (FindContentResp, error) {
	if t.Archive == nil {
		return FindContentResp{}, errArchiveDisabled
	}
	docs, err := t.Archive.GetContentByMetadata(ctx, args.Filter)
	if err != nil {
		return FindContentResp{}, fmt.Errorf("failed to find content: %w", err)
	}
	return FindContentResp{Content: formatDocuments(docs)}, nil
}

var errArchiveDisabled = errors.New("knowledge archive is not configured")

func formatDocuments(docs []vectorstore.Document) string {
	formatted := make([]string, 0, len(docs))
	for _, d := range docs {
		var sb strings.Builder
		sb.WriteString("[Content]: " + d.Content)

		keys := make([]string, 0, len(d.Metadata))
		for k := range d.Metadata {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "\n[%s]: %v", k, d.Metadata[k])
		}
		formatted = append(formatted, sb.String())
	}
	return strings.Join(formatted, "\n\n")
}
