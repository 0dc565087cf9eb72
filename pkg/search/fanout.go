package search

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultQueryTimeout bounds a single provider call.
const DefaultQueryTimeout = 30 * time.Second

// Outcome is the merged result of a fan-out.
type Outcome struct {
	Results []Result
	Latency time.Duration
}

// FanOut issues every query to the provider concurrently and joins the results.
type FanOut struct {
	Provider     Provider
	Logger       *slog.Logger
	QueryTimeout time.Duration
}

// NewFanOut returns a FanOut with the default per-query timeout.
func NewFanOut(p Provider, logger *slog.Logger) *FanOut {
	if logger == nil {
		logger = slog.Default()
	}
	return &FanOut{Provider: p, Logger: logger, QueryTimeout: DefaultQueryTimeout}
}

// Search cleans the queries and runs them in parallel. A failing query
// contributes no results and never cancels its siblings. The order of the
// merged results is unspecified.
func (f *FanOut) Search(ctx context.Context, queries []string) Outcome {
	queries = CleanQueries(queries)
	if len(queries) == 0 {
		f.logger().Warn("No valid search queries")
		return Outcome{Results: []Result{}}
	}

	start := time.Now()
	var (
		mu      sync.Mutex
		results = []Result{}
		g       errgroup.Group
	)
	for _, q := range queries {
		g.Go(func() error {
			found, err := f.searchOne(ctx, q)
			if err != nil {
				f.logger().Error("Search failed", "query", q, "error", err)
				return nil
			}
			f.logger().Info("Search successful", "query", q, "count", len(found))

			mu.Lock()
			results = append(results, found...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // failures are logged per query

	latency := time.Since(start)
	f.logger().Info("Search fan-out complete", "queries", len(queries), "results", len(results), "latency", latency)
	return Outcome{Results: results, Latency: latency}
}

func (f *FanOut) searchOne(ctx context.Context, query string) ([]Result, error) {
	if f.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.QueryTimeout)
		defer cancel()
	}
	return f.Provider.Search(ctx, query)
}

func (f *FanOut) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}
