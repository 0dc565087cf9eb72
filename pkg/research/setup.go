package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/cache"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/clients"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/config"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/embeddings"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/knowledge"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/research/tools"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/scorer"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/search"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/telemetry"
)

// Components holds the collaborators shared by every run of a process.
type Components struct {
	Config    *config.Config
	Knowledge *knowledge.Store
	Provider  search.Provider
	Extractor Extractor
	Planner   LLM
	Writer    LLM
	Judge     LLM
	Scorer    *scorer.Scorer
	Metrics   *telemetry.Metrics
	Logger    *slog.Logger

	closers []func() error
}

// SetupOption customises Setup.
type SetupOption func(*setupOptions)

type setupOptions struct {
	mirror  knowledge.Mirror
	metrics *telemetry.Metrics
}

// WithKnowledgeMirror archives every stored knowledge batch to m.
func WithKnowledgeMirror(m knowledge.Mirror) SetupOption {
	return func(o *setupOptions) { o.mirror = m }
}

// WithMetrics records pipeline metrics on m.
func WithMetrics(m *telemetry.Metrics) SetupOption {
	return func(o *setupOptions) { o.metrics = m }
}

// NewEmbedder builds the embedder selected by cfg.
func NewEmbedder(ctx context.Context, cfg *config.Config) (knowledge.Embedder, error) {
	switch strings.ToLower(cfg.EmbeddingProvider) {
	case "hash":
		return embeddings.NewHashEmbedder(cfg.EmbeddingDim), nil
	case "", "google":
		if cfg.GoogleApiKey == "" {
			return nil, errors.New("GOOGLE_API_KEY is required for the google embedding provider; set EMBEDDING_PROVIDER=hash to embed locally")
		}
		return embeddings.NewGoogleEmbedder(ctx, cfg.EmbeddingModel, cfg.GoogleApiKey, cfg.EmbeddingDim)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.EmbeddingProvider)
	}
}

// OpenKnowledge opens the knowledge store configured by cfg.
func OpenKnowledge(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...knowledge.Option) (*knowledge.Store, error) {
	embedder, err := NewEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	opts = append([]knowledge.Option{knowledge.WithLogger(logger)}, opts...)
	return knowledge.Open(cfg.KnowledgeDir, embedder, opts...)
}

// Setup builds every collaborator a research run needs from cfg.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...SetupOption) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o setupOptions
	for _, opt := range opts {
		opt(&o)
	}

	c := &Components{
		Config:  cfg,
		Scorer:  scorer.New(cfg.MinSourceScore),
		Metrics: o.metrics,
		Logger:  logger,
	}

	var kbOpts []knowledge.Option
	if o.mirror != nil {
		kbOpts = append(kbOpts, knowledge.WithMirror(o.mirror))
	}
	kb, err := OpenKnowledge(ctx, cfg, logger, kbOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge store: %w", err)
	}
	c.Knowledge = kb
	c.Metrics.SetKnowledgeDocuments(kb.Len())

	tavily := tools.NewTavily(cfg.TavilyApiKey, cfg.SearchMaxResults)

	var provider search.Provider
	switch strings.ToLower(cfg.SearchProvider) {
	case "arxiv":
		provider = tools.NewArxiv(cfg.SearchMaxResults, logger)
	default:
		provider = tavily
	}
	c.Provider = c.withCache(ctx, provider)

	var web Extractor
	switch strings.ToLower(cfg.Extractor) {
	case "http":
		web = tools.NewHTTPExtractor(logger)
	case "browser":
		web = tools.NewBrowserExtractor(logger)
	default:
		web = tavily
	}
	router := &tools.RoutingExtractor{Web: web, Logger: logger}
	if cfg.MistralApiKey != "" {
		router.PDF = tools.NewPDFScraper(cfg.MistralApiKey, logger)
	}
	c.Extractor = router

	roles := []struct {
		target      *LLM
		model       string
		temperature float64
	}{
		{&c.Planner, cfg.PlannerModel, clients.PlannerTemperature},
		{&c.Writer, cfg.WriterModel, clients.WriterTemperature},
		{&c.Judge, cfg.JudgeModel, clients.JudgeTemperature},
	}
	for _, r := range roles {
		m, err := clients.NewModel(ctx, cfg.LLMProvider, cfg.LLMApiKey(), r.model)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create %s model: %w", r.model, err)
		}
		*r.target = clients.NewChat(m, r.temperature, logger)
	}

	return c, nil
}

// withCache wraps p with the Redis result cache when one is configured and reachable.
func (c *Components) withCache(ctx context.Context, p search.Provider) search.Provider {
	cfg := c.Config
	if cfg.RedisURL == "" {
		return p
	}
	opts, err := cache.ParseOptions(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		c.Logger.Warn("Search cache disabled", "error", err)
		return p
	}
	rc, err := cache.NewRedisCache(ctx, opts, c.Metrics)
	if err != nil {
		c.Logger.Warn("Search cache disabled", "error", err)
		return p
	}
	c.closers = append(c.closers, rc.Close)
	c.Logger.Info("Search cache enabled", "addr", opts.Addr, "ttl", cfg.CacheTTL)
	return search.NewCached(p, rc, cfg.CacheTTL, c.Logger)
}

// NewEngine returns an engine over the shared collaborators that logs to logger.
func (c *Components) NewEngine(logger *slog.Logger, progress io.Writer) *Engine {
	if logger == nil {
		logger = c.Logger
	}
	fan := search.NewFanOut(c.Provider, logger)
	fan.QueryTimeout = c.Config.SearchTimeout

	return &Engine{
		Planner:       c.Planner,
		Writer:        c.Writer,
		Judge:         c.Judge,
		Searcher:      fan,
		Extractor:     c.Extractor,
		Knowledge:     c.Knowledge,
		Scorer:        c.Scorer,
		MaxIterations: c.Config.MaxIterations,
		Logger:        logger,
		Metrics:       c.Metrics,
		Progress:      progress,
	}
}

// NewScout returns a topic scout over the configured search provider.
func (c *Components) NewScout() *TopicScout {
	return &TopicScout{Provider: c.Provider, LLM: c.Judge, Logger: c.Logger}
}

// Close releases connections opened by Setup.
func (c *Components) Close() error {
	var errs []error
	for _, fn := range c.closers {
		errs = append(errs, fn())
	}
	c.closers = nil
	return errors.Join(errs...)
}
