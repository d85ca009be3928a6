package pipeline

import (
	"strings"
	"testing"
	"unicode/utf8"

	"ai-assistant-be/pkg/store"
)

func TestBuildContext(t *testing.T) {
	docA := store.Document{Title: "A", Content: strings.Repeat("a", 50)}
	docB := store.Document{Title: "B", Content: strings.Repeat("b", 50)}
	docC := store.Document{Title: "C", Content: strings.Repeat("c", 50)}

	t.Run("all documents fit", func(t *testing.T) {
		text, used := BuildContext([]store.Document{docA, docB}, 1000)
		if len(used) != 2 {
			t.Fatalf("used = %d docs, want 2", len(used))
		}
		if !strings.Contains(text, "[A]") || !strings.Contains(text, "[B]") {
			t.Errorf("context missing document headers: %q", text)
		}
	})

	t.Run("boundary document is cut, not dropped", func(t *testing.T) {
		// docA block is [A]\n + 50 chars + \n\n = 56 chars. Budget 80 leaves
		// 24 chars for docB, which must be cut to exactly that.
		text, used := BuildContext([]store.Document{docA, docB, docC}, 80)
		if len(used) != 2 {
			t.Fatalf("used = %d docs, want 2 (A whole, B cut, C dropped)", len(used))
		}
		if len(text) != 80 {
			t.Errorf("context length = %d, want exactly the 80 char budget", len(text))
		}
		if strings.Contains(text, "[C]") {
			t.Errorf("document after the boundary must be dropped")
		}
	})

	t.Run("boundary cut never splits a rune", func(t *testing.T) {
		// Each rune is 3 bytes; most budgets land mid-rune.
		multibyte := store.Document{Title: "J", Content: strings.Repeat("日本語", 40)}
		for budget := 10; budget < 40; budget++ {
			text, used := BuildContext([]store.Document{multibyte}, budget)
			if !utf8.ValidString(text) {
				t.Fatalf("budget %d produced invalid UTF-8: %q", budget, text)
			}
			if len(text) > budget {
				t.Fatalf("budget %d exceeded: got %d bytes", budget, len(text))
			}
			if len(used) != 1 {
				t.Fatalf("budget %d: used = %d docs, want 1", budget, len(used))
			}
		}
	})

	t.Run("empty inputs", func(t *testing.T) {
		if text, used := BuildContext(nil, 100); text != "" || used != nil {
			t.Errorf("nil docs should produce empty context")
		}
		if text, used := BuildContext([]store.Document{docA}, 0); text != "" || used != nil {
			t.Errorf("zero budget should produce empty context")
		}
	})

	t.Run("source is included in header", func(t *testing.T) {
		doc := store.Document{Title: "Guide", Source: "https://example.com", Content: "body"}
		text, _ := BuildContext([]store.Document{doc}, 1000)
		if !strings.Contains(text, "[Guide] (https://example.com)") {
			t.Errorf("header missing source: %q", text)
		}
	})
}
