// Package mcpserver exposes the knowledge store and the source scorer as MCP tools.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/knowledge"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/scorer"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/source"
)

const defaultResults = 5

// Knowledge is the part of the knowledge store the tools read.
type Knowledge interface {
	Retrieve(ctx context.Context, query string, n int, topicFilter string) ([]knowledge.Retrieved, error)
	Stats() knowledge.Stats
}

// Server wraps the MCP SDK server.
type Server struct {
	MCPServer *sdkmcp.Server
	Knowledge Knowledge
	Scorer    *scorer.Scorer

	log *slog.Logger
}

// New creates a server with the knowledge and scoring tools registered.
func New(kb Knowledge, sc *scorer.Scorer, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if sc == nil {
		sc = scorer.New(scorer.DefaultMinScore)
	}
	s := &Server{
		MCPServer: sdkmcp.NewServer(&sdkmcp.Implementation{Name: "scriptgen", Version: version}, nil),
		Knowledge: kb,
		Scorer:    sc,
		log:       logger.With("component", "mcp"),
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "search_knowledge",
		Description: "Semantic search over previously researched pages. Returns the closest documents with a relevance score in [0, 1].",
	}, s.handleSearchKnowledge)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "knowledge_stats",
		Description: "Report how many documents the knowledge store holds, where it lives and which embedding model built it.",
	}, s.handleKnowledgeStats)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "score_source",
		Description: "Score a source page for a research topic on domain authority, content depth, keyword relevance and URL structure.",
	}, s.handleScoreSource)
}

// Run serves MCP over stdin/stdout until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("Serving MCP over stdio")
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

// Handler serves MCP over streamable HTTP.
func (s *Server) Handler() http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return s.MCPServer
	}, nil)
}

type searchKnowledgeInput struct {
	Query string `json:"query" jsonschema:"text to search for"`
	N     int    `json:"n,omitempty" jsonschema:"maximum number of documents (default 5)"`
	Topic string `json:"topic,omitempty" jsonschema:"only return documents stored under this exact topic"`
}

type searchKnowledgeOutput struct {
	Results []knowledge.Retrieved `json:"results"`
	Context string                `json:"context"`
}

func (s *Server) handleSearchKnowledge(ctx context.Context, _ *sdkmcp.CallToolRequest, input searchKnowledgeInput) (*sdkmcp.CallToolResult, searchKnowledgeOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, searchKnowledgeOutput{}, fmt.Errorf("query is required")
	}
	n := input.N
	if n <= 0 {
		n = defaultResults
	}

	results, err := s.Knowledge.Retrieve(ctx, input.Query, n, input.Topic)
	if err != nil {
		s.log.Error("Knowledge search failed", "query", input.Query, "error", err)
		return nil, searchKnowledgeOutput{}, err
	}
	s.log.Info("Knowledge search", "query", input.Query, "results", len(results))
	return nil, searchKnowledgeOutput{Results: results, Context: knowledge.FormatContext(results)}, nil
}

type knowledgeStatsInput struct{}

func (s *Server) handleKnowledgeStats(_ context.Context, _ *sdkmcp.CallToolRequest, _ knowledgeStatsInput) (*sdkmcp.CallToolResult, knowledge.Stats, error) {
	return nil, s.Knowledge.Stats(), nil
}

type scoreSourceInput struct {
	URL     string `json:"url" jsonschema:"source URL"`
	Content string `json:"content,omitempty" jsonschema:"page text used for depth and relevance"`
	Topic   string `json:"topic" jsonschema:"research topic"`
}

type scoreSourceOutput struct {
	URL      string        `json:"url"`
	Scores   scorer.Scores `json:"scores"`
	MinScore float64       `json:"min_score"`
	Passes   bool          `json:"passes"`
}

func (s *Server) handleScoreSource(_ context.Context, _ *sdkmcp.CallToolRequest, input scoreSourceInput) (*sdkmcp.CallToolResult, scoreSourceOutput, error) {
	if input.URL == "" {
		return nil, scoreSourceOutput{}, fmt.Errorf("url is required")
	}
	scored := scorer.ScoreSource(source.Page{URL: input.URL, RawContent: input.Content}, input.Topic)
	return nil, scoreSourceOutput{
		URL:      input.URL,
		Scores:   scored.Quality,
		MinScore: s.Scorer.MinScore,
		Passes:   scored.Quality.Final >= s.Scorer.MinScore,
	}, nil
}
