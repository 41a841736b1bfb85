// Package longterm provides the durable memory provider backed by
// PostgreSQL with pgvector. It serves the long-term and procedural
// kinds and answers semantic search through the pgvector cosine
// distance operator.
package longterm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/noema-platform/noema/internal/embedding"
	"github.com/noema-platform/noema/internal/memory"
)

const defaultTopK = 50

// Store persists entries in the memory_entries table. When an
// embedding capability is configured, entries stored without a vector
// get one computed on write, making the provider semantic-capable.
type Store struct {
	pool     *pgxpool.Pool
	embedder embedding.Capability
}

// New creates a Postgres-backed long-term store. embedder may be nil;
// semantic search then only covers entries stored with vectors.
func New(pool *pgxpool.Pool, embedder embedding.Capability) *Store {
	return &Store{pool: pool, embedder: embedder}
}

func (s *Store) Name() string { return "longterm-postgres" }

func (s *Store) SupportsKind(k memory.Kind) bool {
	return k == memory.KindLongTerm || k == memory.KindProcedural
}

func (s *Store) Store(ctx context.Context, e *memory.Entry) error {
	if !s.SupportsKind(e.Kind) {
		return &memory.ValidationError{Reason: "kind " + string(e.Kind) + " not supported by long-term store"}
	}

	if len(e.Embedding) == 0 && s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, e.Content)
		if err != nil {
			return memory.NewEmbeddingError("entry content", err)
		}
		e.Embedding = vec
		e.EmbeddingMeta = map[string]string{
			"provider":   s.Name(),
			"dimensions": strconv.Itoa(s.embedder.Dimensions()),
		}
	}

	meta, err := json.Marshal(e.EmbeddingMeta)
	if err != nil {
		return fmt.Errorf("marshaling embedding meta: %w", err)
	}

	if len(e.Embedding) > 0 {
		_, err = s.pool.Exec(ctx,
			`INSERT INTO memory_entries (id, kind, content, tags, scope, owner_agent_id, visibility, created_at, expires_at, embedding, embedding_meta)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			e.ID, e.Kind, e.Content, e.Tags, e.Scope, e.OwnerAgentID, e.Visibility,
			e.CreatedAt, e.ExpiresAt, pgvector.NewVector(e.Embedding), meta,
		)
	} else {
		_, err = s.pool.Exec(ctx,
			`INSERT INTO memory_entries (id, kind, content, tags, scope, owner_agent_id, visibility, created_at, expires_at, embedding_meta)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			e.ID, e.Kind, e.Content, e.Tags, e.Scope, e.OwnerAgentID, e.Visibility,
			e.CreatedAt, e.ExpiresAt, meta,
		)
	}
	if err != nil {
		return fmt.Errorf("inserting entry: %w", err)
	}
	return nil
}

// filterClauses translates the query's exact filters into WHERE
// conditions, continuing placeholder numbering from args.
func filterClauses(q memory.Query, args []any) ([]string, []any) {
	conds := []string{"(expires_at IS NULL OR expires_at > now())"}

	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if q.Kind != "" {
		add("kind = $%d", q.Kind)
	}
	if len(q.Tags) > 0 {
		add("tags && $%d::text[]", q.Tags)
	}
	if q.CreatedAfter != nil {
		add("created_at >= $%d", *q.CreatedAfter)
	}
	if q.CreatedUntil != nil {
		add("created_at <= $%d", *q.CreatedUntil)
	}
	if q.Scope != "" {
		add("scope = $%d", q.Scope)
	}
	if q.OwnerAgentID != "" {
		add("owner_agent_id = $%d", q.OwnerAgentID)
	}
	if q.Visibility != "" {
		add("visibility = $%d", q.Visibility)
	}
	if q.ExcludePrivate {
		add("visibility <> $%d", memory.VisibilityPrivate)
	}
	return conds, args
}

const entryColumns = "id, kind, content, tags, scope, owner_agent_id, visibility, created_at, expires_at, embedding_meta"

func scanEntry(scan func(dest ...any) error) (memory.Entry, error) {
	var (
		e    memory.Entry
		exp  *time.Time
		meta []byte
	)
	if err := scan(&e.ID, &e.Kind, &e.Content, &e.Tags, &e.Scope, &e.OwnerAgentID, &e.Visibility, &e.CreatedAt, &exp, &meta); err != nil {
		return memory.Entry{}, err
	}
	e.ExpiresAt = exp
	if len(meta) > 0 && string(meta) != "null" {
		if err := json.Unmarshal(meta, &e.EmbeddingMeta); err != nil {
			return memory.Entry{}, fmt.Errorf("unmarshaling embedding meta: %w", err)
		}
	}
	return e, nil
}

func (s *Store) Query(ctx context.Context, q memory.Query) ([]memory.Entry, error) {
	conds, args := filterClauses(q, nil)

	limit := q.MaxResults
	if limit <= 0 {
		limit = defaultTopK
	}
	args = append(args, limit)

	sql := fmt.Sprintf(
		`SELECT %s FROM memory_entries WHERE %s ORDER BY created_at DESC LIMIT $%d`,
		entryColumns, strings.Join(conds, " AND "), len(args),
	)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var out []memory.Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SemanticSearch ranks by cosine similarity computed in Postgres as
// 1 - (embedding <=> query), thresholded and cut to top-k.
func (s *Store) SemanticSearch(ctx context.Context, q memory.Query) ([]memory.ScoredEntry, error) {
	vec := q.SimilarityToVector
	if len(vec) == 0 {
		if q.SimilarityTo == "" {
			return nil, &memory.ValidationError{Reason: "semantic search without similarity term"}
		}
		if s.embedder == nil {
			return nil, memory.NewEmbeddingError("query text", fmt.Errorf("no embedding capability configured"))
		}
		embedded, err := s.embedder.Embed(ctx, q.SimilarityTo)
		if err != nil {
			return nil, memory.NewEmbeddingError("query text", err)
		}
		vec = embedded
	}

	args := []any{pgvector.NewVector(vec), q.SimilarityThreshold}
	conds, args := filterClauses(q, args)
	conds = append(conds, "embedding IS NOT NULL", "1 - (embedding <=> $1) >= $2")

	limit := q.MaxResults
	if limit <= 0 {
		limit = defaultTopK
	}
	args = append(args, limit)

	sql := fmt.Sprintf(
		`SELECT %s, 1 - (embedding <=> $1) AS similarity
		 FROM memory_entries
		 WHERE %s
		 ORDER BY embedding <=> $1
		 LIMIT $%d`,
		entryColumns, strings.Join(conds, " AND "), len(args),
	)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("searching similar entries: %w", err)
	}
	defer rows.Close()

	var out []memory.ScoredEntry
	for rows.Next() {
		var (
			e    memory.Entry
			exp  *time.Time
			meta []byte
			sim  float64
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.Content, &e.Tags, &e.Scope, &e.OwnerAgentID, &e.Visibility, &e.CreatedAt, &exp, &meta, &sim); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		e.ExpiresAt = exp
		if len(meta) > 0 && string(meta) != "null" {
			if err := json.Unmarshal(meta, &e.EmbeddingMeta); err != nil {
				return nil, fmt.Errorf("unmarshaling embedding meta: %w", err)
			}
		}
		out = append(out, memory.ScoredEntry{Entry: e, Similarity: sim})
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	// No rows affected is fine: delete is idempotent by contract.
	if _, err := s.pool.Exec(ctx, `DELETE FROM memory_entries WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	return nil
}

// Sweep removes entries past their expiry.
func (s *Store) Sweep(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM memory_entries WHERE expires_at IS NOT NULL AND expires_at <= now()`); err != nil {
		return fmt.Errorf("sweeping expired entries: %w", err)
	}
	return nil
}
