package memory

import (
	"time"
)

// Kind classifies a memory entry and drives provider routing.
// A kind expresses default provider affinity, not exclusivity: any
// provider whose SupportsKind reports true may hold entries of that kind.
type Kind string

const (
	KindShortTerm  Kind = "short-term"
	KindLongTerm   Kind = "long-term"
	KindSemantic   Kind = "semantic"
	KindProcedural Kind = "procedural"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindShortTerm, KindLongTerm, KindSemantic, KindProcedural:
		return true
	}
	return false
}

// Scope is the visibility partition of an entry.
type Scope string

const (
	ScopeAgent  Scope = "agent"
	ScopeGuild  Scope = "guild"
	ScopeGlobal Scope = "global"
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeAgent, ScopeGuild, ScopeGlobal:
		return true
	}
	return false
}

// Visibility controls who may read an entry within its scope.
type Visibility string

const (
	VisibilityPrivate   Visibility = "private"
	VisibilityPublic    Visibility = "public"
	VisibilityProtected Visibility = "protected"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityPublic, VisibilityProtected:
		return true
	}
	return false
}

// Entry is one stored unit of agent memory.
type Entry struct {
	ID            string            `json:"id"`
	Kind          Kind              `json:"kind" validate:"required"`
	CreatedAt     time.Time         `json:"created_at"`
	Content       string            `json:"content" validate:"required,min=1"`
	Tags          []string          `json:"tags,omitempty"`
	Scope         Scope             `json:"scope"`
	OwnerAgentID  string            `json:"owner_agent_id,omitempty"`
	Visibility    Visibility        `json:"visibility"`
	ExpiresAt     *time.Time        `json:"expires_at,omitempty"`
	Embedding     []float32         `json:"embedding,omitempty"`
	EmbeddingMeta map[string]string `json:"embedding_meta,omitempty"`
}

// HasTag reports whether the entry carries the given tag.
func (e *Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Expired reports whether the entry's expiry, if any, has passed.
func (e *Entry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}

// Query selects entries by exact filters and, optionally, by semantic
// similarity. A query carrying SimilarityTo or SimilarityToVector is
// routed to semantic search by the manager.
type Query struct {
	Kind         Kind       `json:"kind,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	CreatedAfter *time.Time `json:"created_after,omitempty"`
	CreatedUntil *time.Time `json:"created_until,omitempty"`
	Scope        Scope      `json:"scope,omitempty"`
	OwnerAgentID string     `json:"owner_agent_id,omitempty"`
	Visibility   Visibility `json:"visibility,omitempty"`

	// ExcludePrivate drops private entries regardless of Visibility.
	// Used by the consolidation pipeline.
	ExcludePrivate bool `json:"exclude_private,omitempty"`

	SimilarityTo        string    `json:"similarity_to,omitempty"`
	SimilarityToVector  []float32 `json:"similarity_to_vector,omitempty"`
	SimilarityThreshold float64   `json:"similarity_threshold,omitempty"`

	MaxResults int `json:"max_results,omitempty"`
}

// Semantic reports whether the query carries a similarity request.
func (q Query) Semantic() bool {
	return q.SimilarityTo != "" || len(q.SimilarityToVector) > 0
}

// Matches applies the query's exact filters to an entry. Tag filtering
// is any-match: one shared tag is enough.
func (q Query) Matches(e *Entry) bool {
	if q.Kind != "" && e.Kind != q.Kind {
		return false
	}
	if q.Scope != "" && e.Scope != q.Scope {
		return false
	}
	if q.OwnerAgentID != "" && e.OwnerAgentID != q.OwnerAgentID {
		return false
	}
	if q.Visibility != "" && e.Visibility != q.Visibility {
		return false
	}
	if q.ExcludePrivate && e.Visibility == VisibilityPrivate {
		return false
	}
	if q.CreatedAfter != nil && e.CreatedAt.Before(*q.CreatedAfter) {
		return false
	}
	if q.CreatedUntil != nil && e.CreatedAt.After(*q.CreatedUntil) {
		return false
	}
	if len(q.Tags) > 0 {
		found := false
		for _, t := range q.Tags {
			if e.HasTag(t) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ScoredEntry wraps an Entry with its similarity score from semantic search.
type ScoredEntry struct {
	Entry      Entry   `json:"entry"`
	Similarity float64 `json:"similarity"`
}

// Cluster is a transient grouping of related entries produced during
// consolidation. Only the summarized entry derived from a cluster is
// durable; the cluster itself is never persisted.
type Cluster struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Entries        []Entry   `json:"entries"`
	CoherenceScore float64   `json:"coherence_score,omitempty"`
	Consolidated   bool      `json:"consolidated"`
}
