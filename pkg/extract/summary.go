package extract

import (
	"fmt"
	"strings"
)

type EntityCount struct {
	Type  string
	Count int
}

// SummarizeEntities groups the message's entities by type, counting
// occurrences and preserving the order in which each type first appeared.
func SummarizeEntities(m *ExtractedMessage) []EntityCount {
	var counts []EntityCount
	index := make(map[string]int)
	for _, ent := range m.Entities {
		if i, ok := index[ent.Type]; ok {
			counts[i].Count++
			continue
		}
		index[ent.Type] = len(counts)
		counts = append(counts, EntityCount{Type: ent.Type, Count: 1})
	}
	return counts
}

// FormatSummary renders a human-readable digest of an extracted message.
func FormatSummary(m *ExtractedMessage) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📋 Message %d\n", m.SourceID)

	text := m.Text
	if text == "" {
		text = "(no text)"
	} else if runes := []rune(text); len(runes) > 120 {
		text = string(runes[:120]) + "…"
	}
	fmt.Fprintf(&b, "Text: %s\n", text)

	if counts := SummarizeEntities(m); len(counts) > 0 {
		parts := make([]string, 0, len(counts))
		for _, c := range counts {
			parts = append(parts, fmt.Sprintf("%s ×%d", c.Type, c.Count))
		}
		fmt.Fprintf(&b, "Entities: %s\n", strings.Join(parts, ", "))
	}

	if len(m.Buttons) > 0 {
		fmt.Fprintf(&b, "Buttons: %d\n", len(m.Buttons))
	}
	if m.Media != nil {
		fmt.Fprintf(&b, "Media: %s\n", m.Media.Kind)
	}
	if m.Forward != nil {
		fmt.Fprintf(&b, "Forwarded from: %s\n", m.Forward.OriginalSenderName)
	}

	return strings.TrimRight(b.String(), "\n")
}
