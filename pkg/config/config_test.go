package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		EnvFile, "GOOGLE_API_KEY", "ANTHROPIC_API_KEY", "LLM_PROVIDER", "PLANNER_MODEL",
		"WRITER_MODEL", "JUDGE_MODEL", "EMBEDDING_PROVIDER", "EMBEDDING_MODEL",
		"EMBEDDING_DIM", "KNOWLEDGE_DIR", "MAX_ITERATIONS", "MIN_SOURCE_SCORE",
		"SEARCH_PROVIDER", "TAVILY_API_KEY", "SEARCH_MAX_RESULTS", "SEARCH_TIMEOUT",
		"EXTRACTOR", "MISTRAL_API_KEY", "REDIS_URL", "REDIS_PASSWORD", "REDIS_DB",
		"CACHE_TTL", "DATABASE_URL", "PORT", "OUTPUT_DIR",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scriptgen.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxIterations != 2 || cfg.MinSourceScore != 0.3 || cfg.KnowledgeDir != "./knowledge_store" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.SearchTimeout != 30*time.Second {
		t.Errorf("search timeout = %v", cfg.SearchTimeout)
	}
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
max_iterations: 4
min_source_score: 0.5
search_timeout: 10s
knowledge_dir: /data/kb
port: "9000"
`)
	t.Setenv("MAX_ITERATIONS", "3")
	t.Setenv("SEARCH_TIMEOUT", "5s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"env beats file", cfg.MaxIterations, 3},
		{"env duration", cfg.SearchTimeout, 5 * time.Second},
		{"file beats default", cfg.MinSourceScore, 0.5},
		{"file string", cfg.KnowledgeDir, "/data/kb"},
		{"file port", cfg.Port, "9000"},
		{"default kept", cfg.SearchProvider, "tavily"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadFileFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvFile, writeFile(t, "llm_provider: anthropic\n"))
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLMApiKey() != "sk-test" {
		t.Errorf("LLMApiKey() = %q, want anthropic key", cfg.LLMApiKey())
	}
}

func TestLoadInvalidEnvFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_ITERATIONS", "many")
	t.Setenv("MIN_SOURCE_SCORE", "high")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxIterations != 2 || cfg.MinSourceScore != 0.3 {
		t.Errorf("invalid values were not ignored: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		wantErr string
	}{
		{"Bad yaml", "max_iterations: [", nil, "failed to parse"},
		{"Zero iterations", "max_iterations: 0", nil, "max_iterations"},
		{"Score out of range", "", map[string]string{"MIN_SOURCE_SCORE": "1.5"}, "min_source_score"},
		{"Unknown extractor", "", map[string]string{"EXTRACTOR": "curl"}, "extractor"},
		{"Unknown provider", "search_provider: bing", nil, "search_provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}

	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file returned no error")
	}
}
