package splitter

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestFirstChunk(t *testing.T) {
	ts := NewRecursiveCharacterTextSplitter(50, 0)

	tests := []struct {
		name    string
		text    string
		maxRune int
	}{
		{"Short text unchanged", "hello world", 11},
		{"Paragraphs", strings.Repeat("word ", 30) + "\n\n" + strings.Repeat("more ", 30), 50},
		{"No separators", strings.Repeat("ü", 120), 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ts.FirstChunk(tt.text)
			if n := utf8.RuneCountInString(got); n > tt.maxRune {
				t.Errorf("chunk has %d runes, want at most %d", n, tt.maxRune)
			}
			if !utf8.ValidString(got) {
				t.Error("chunk is not valid UTF-8")
			}
			if got == "" {
				t.Error("chunk is empty")
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"abc", 5, "abc"},
		{"abcdef", 3, "abc"},
		{"ééé", 2, "éé"},
		{"ééé", 3, "ééé"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
