package consolidate

import (
	"context"
	"fmt"

	"github.com/noema-platform/noema/internal/memory"
)

// CapabilitySummarizer delegates cluster summarization to an injected
// TextSummarizer and shapes the result into a consolidated entry.
type CapabilitySummarizer struct {
	capability TextSummarizer
}

// NewCapabilitySummarizer creates the default summarization strategy.
func NewCapabilitySummarizer(capability TextSummarizer) *CapabilitySummarizer {
	return &CapabilitySummarizer{capability: capability}
}

// SummarizeCluster produces one new entry from the cluster. Scope and
// owner are inherited from the cluster's first entry; tags carry the
// consolidation markers plus every tag shared by all members.
func (s *CapabilitySummarizer) SummarizeCluster(ctx context.Context, c *memory.Cluster, opts Options) (memory.Entry, error) {
	if len(c.Entries) == 0 {
		return memory.Entry{}, memory.NewSummarizationError(fmt.Errorf("cluster %s is empty", c.ID))
	}

	content, err := s.capability.Summarize(ctx, c.Entries)
	if err != nil {
		return memory.Entry{}, memory.NewSummarizationError(err)
	}

	kind := opts.SummaryKind
	if kind == "" {
		kind = memory.KindLongTerm
	}

	first := c.Entries[0]
	tags := []string{
		"consolidated",
		fmt.Sprintf("source:%d-entries", len(c.Entries)),
	}
	tags = append(tags, sharedTags(c.Entries)...)

	return memory.Entry{
		Kind:         kind,
		Content:      content,
		Tags:         tags,
		Scope:        first.Scope,
		OwnerAgentID: first.OwnerAgentID,
		Visibility:   first.Visibility,
	}, nil
}

// sharedTags returns tags present on every entry, in first-entry order.
func sharedTags(entries []memory.Entry) []string {
	var shared []string
	for _, tag := range entries[0].Tags {
		onAll := true
		for _, e := range entries[1:] {
			if !e.HasTag(tag) {
				onAll = false
				break
			}
		}
		if onAll {
			shared = append(shared, tag)
		}
	}
	return shared
}
