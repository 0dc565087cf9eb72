package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCleanQueries(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"Nil", nil, []string{}},
		{"Blanks dropped", []string{"", "  ", `""`, "' '"}, []string{}},
		{"Quotes trimmed", []string{` "solar panels" `, "'wind'"}, []string{"solar panels", "wind"}},
		{"Inner quotes kept", []string{`the "best" tool`}, []string{`the "best" tool`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, CleanQueries(tt.in)); diff != "" {
				t.Errorf("CleanQueries mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFanOutBlankQueriesMakeNoCalls(t *testing.T) {
	var calls atomic.Int32
	p := ProviderFunc(func(ctx context.Context, q string) ([]Result, error) {
		calls.Add(1)
		return nil, nil
	})

	out := NewFanOut(p, quietLogger()).Search(context.Background(), []string{"", "   ", `"'"`})

	if calls.Load() != 0 {
		t.Errorf("provider called %d times, want 0", calls.Load())
	}
	if len(out.Results) != 0 {
		t.Errorf("got %d results, want 0", len(out.Results))
	}
	if out.Latency != 0 {
		t.Errorf("latency = %v, want 0", out.Latency)
	}
}

func TestFanOutRunsConcurrently(t *testing.T) {
	const delay = 200 * time.Millisecond
	p := ProviderFunc(func(ctx context.Context, q string) ([]Result, error) {
		time.Sleep(delay)
		return []Result{{URL: "https://example.com/" + q}}, nil
	})

	out := NewFanOut(p, quietLogger()).Search(context.Background(), []string{"a", "b", "c"})

	if len(out.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(out.Results))
	}
	if out.Latency < delay {
		t.Errorf("latency %v shorter than a single query", out.Latency)
	}
	// closer to the slowest query than to the sum of all three
	if out.Latency >= 2*delay {
		t.Errorf("latency %v looks sequential, want close to %v", out.Latency, delay)
	}
}

func TestFanOutIsolatesFailures(t *testing.T) {
	p := ProviderFunc(func(ctx context.Context, q string) ([]Result, error) {
		if q == "bad" {
			return nil, errors.New("boom")
		}
		return []Result{{URL: "https://example.com/" + q, Title: q}}, nil
	})

	out := NewFanOut(p, quietLogger()).Search(context.Background(), []string{"one", "bad", "two"})

	var got []string
	for _, r := range out.Results {
		got = append(got, r.Title)
	}
	sort.Strings(got)
	if diff := cmp.Diff([]string{"one", "two"}, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestFanOutFailureDoesNotCancelSiblings(t *testing.T) {
	var sawCancel atomic.Bool
	p := ProviderFunc(func(ctx context.Context, q string) ([]Result, error) {
		if q == "fast-fail" {
			return nil, errors.New("boom")
		}
		select {
		case <-ctx.Done():
			sawCancel.Store(true)
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
			return []Result{{URL: "https://example.com/slow"}}, nil
		}
	})

	out := NewFanOut(p, quietLogger()).Search(context.Background(), []string{"fast-fail", "slow"})

	if sawCancel.Load() {
		t.Error("sibling query was cancelled")
	}
	if len(out.Results) != 1 {
		t.Errorf("got %d results, want 1", len(out.Results))
	}
}

func TestFanOutQueryTimeout(t *testing.T) {
	p := ProviderFunc(func(ctx context.Context, q string) ([]Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	f := NewFanOut(p, quietLogger())
	f.QueryTimeout = 20 * time.Millisecond
	out := f.Search(context.Background(), []string{"hangs"})

	if len(out.Results) != 0 {
		t.Errorf("got %d results, want 0", len(out.Results))
	}
	if out.Latency > time.Second {
		t.Errorf("timeout not applied, latency %v", out.Latency)
	}
}

type memCache struct {
	mu      sync.Mutex
	entries map[string][]Result
	failGet bool
}

func (m *memCache) Get(ctx context.Context, key string) ([]Result, bool, error) {
	if m.failGet {
		return nil, false, errors.New("cache down")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.entries[key]
	return r, ok, nil
}

func (m *memCache) Set(ctx context.Context, key string, results []Result, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = results
	return nil
}

func TestCachedServesRepeatQueries(t *testing.T) {
	var calls atomic.Int32
	p := ProviderFunc(func(ctx context.Context, q string) ([]Result, error) {
		calls.Add(1)
		return []Result{{URL: "https://example.com", Title: q}}, nil
	})
	c := NewCached(p, &memCache{entries: map[string][]Result{}}, time.Minute, quietLogger())

	first, err := c.Search(context.Background(), "Go  Concurrency")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	second, err := c.Search(context.Background(), "go concurrency")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if calls.Load() != 1 {
		t.Errorf("provider called %d times, want 1", calls.Load())
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached results differ (-first +second):\n%s", diff)
	}
}

func TestCachedBypassesBrokenCache(t *testing.T) {
	p := ProviderFunc(func(ctx context.Context, q string) ([]Result, error) {
		return []Result{{URL: "https://example.com"}}, nil
	})
	c := NewCached(p, &memCache{entries: map[string][]Result{}, failGet: true}, time.Minute, quietLogger())

	got, err := c.Search(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d results, want 1", len(got))
	}
}

func TestURLs(t *testing.T) {
	got := URLs([]Result{{URL: "a"}, {URL: ""}, {URL: "b"}})
	if diff := cmp.Diff([]string{"a", "b"}, got); diff != "" {
		t.Errorf("URLs mismatch (-want +got):\n%s", diff)
	}
}
