package consolidate

import (
	"context"
	"strings"

	"github.com/noema-platform/noema/internal/memory"
)

const defaultSummaryLimit = 1024

// ExtractiveSummarizer produces a summary by taking the leading
// sentence of each entry. It needs no model and is the fallback when
// no language capability is wired in.
type ExtractiveSummarizer struct {
	// Limit caps the summary length in bytes. Zero means the default.
	Limit int
}

func (s *ExtractiveSummarizer) Summarize(_ context.Context, entries []memory.Entry) (string, error) {
	limit := s.Limit
	if limit <= 0 {
		limit = defaultSummaryLimit
	}

	seen := make(map[string]struct{}, len(entries))
	var b strings.Builder
	for _, e := range entries {
		sentence := firstSentence(e.Content)
		if sentence == "" {
			continue
		}
		if _, dup := seen[sentence]; dup {
			continue
		}
		seen[sentence] = struct{}{}

		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(sentence)
		if b.Len() >= limit {
			break
		}
	}

	out := b.String()
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			return strings.TrimSpace(text[:i+1])
		}
	}
	return text
}
