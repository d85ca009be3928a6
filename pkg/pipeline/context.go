package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"ai-assistant-be/pkg/store"
)

// BuildContext concatenates documents into a bounded character budget,
// highest priority first. Whole documents are added until the running total
// would exceed the budget; the document at the boundary is cut to the
// remaining budget rather than omitted, and everything after it is dropped.
func BuildContext(docs []store.Document, budget int) (string, []store.Document) {
	if budget <= 0 || len(docs) == 0 {
		return "", nil
	}

	var sb strings.Builder
	var used []store.Document

	for _, doc := range docs {
		block := formatDoc(doc)
		remaining := budget - sb.Len()
		if remaining <= 0 {
			break
		}

		if len(block) <= remaining {
			sb.WriteString(block)
			used = append(used, doc)
			continue
		}

		// Boundary document: cut instead of wasting the remaining budget,
		// backing off to a rune boundary so no rune is split
		cut := remaining
		for cut > 0 && !utf8.RuneStart(block[cut]) {
			cut--
		}
		sb.WriteString(block[:cut])
		used = append(used, doc)
		break
	}

	return sb.String(), used
}

func formatDoc(doc store.Document) string {
	title := doc.Title
	if title == "" {
		title = "Untitled"
	}
	if doc.Source != "" {
		return fmt.Sprintf("[%s] (%s)\n%s\n\n", title, doc.Source, doc.Content)
	}
	return fmt.Sprintf("[%s]\n%s\n\n", title, doc.Content)
}
