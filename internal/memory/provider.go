package memory

import "context"

// Provider is a storage backend for memory entries. Each provider owns
// its internal storage exclusively; the manager only goes through this
// contract.
//
// Entries reach Store with ID, CreatedAt, scope and visibility already
// filled in by the manager; Store persists them and must fail with a
// ValidationError when the entry's kind is unsupported. Query applies
// the query's exact filters against provider-local storage only; the
// manager merges across providers. Delete is idempotent: removing an
// unknown id is a no-op.
type Provider interface {
	Name() string
	Store(ctx context.Context, e *Entry) error
	Query(ctx context.Context, q Query) ([]Entry, error)
	Delete(ctx context.Context, id string) error
	SupportsKind(k Kind) bool
}

// SemanticSearcher is implemented by vector-capable providers. Results
// are similarity-scored and already cut to the query's threshold; the
// manager applies the global ordering and MaxResults cutoff.
type SemanticSearcher interface {
	Provider
	SemanticSearch(ctx context.Context, q Query) ([]ScoredEntry, error)
}

// Maintainer is implemented by providers with local maintenance work,
// such as expiring entries past their TTL. Sweep is driven by the
// manager's Consolidate call; the manager owns no timer of its own.
type Maintainer interface {
	Provider
	Sweep(ctx context.Context) error
}
