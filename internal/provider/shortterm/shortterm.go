// Package shortterm provides a Redis-backed short-term memory
// provider. Entries are stored as JSON values with Redis-enforced
// expiry; an index set tracks live ids for querying.
package shortterm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noema-platform/noema/internal/memory"
)

const (
	keyPrefix = "noema:mem:"
	indexKey  = "noema:mem:index"
)

// Store keeps short-term entries in Redis. An entry with ExpiresAt set
// gets a matching Redis TTL; otherwise DefaultTTL applies when
// non-zero. Redis reclaims expired values on its own; Sweep reconciles
// the id index against what actually survived.
type Store struct {
	client     *redis.Client
	defaultTTL time.Duration
}

// New creates a Redis-backed short-term store.
func New(client *redis.Client, defaultTTL time.Duration) *Store {
	return &Store{client: client, defaultTTL: defaultTTL}
}

func (s *Store) Name() string { return "shortterm-redis" }

func (s *Store) SupportsKind(k memory.Kind) bool { return k == memory.KindShortTerm }

func entryKey(id string) string { return keyPrefix + id }

func (s *Store) Store(ctx context.Context, e *memory.Entry) error {
	if e.Kind != memory.KindShortTerm {
		return &memory.ValidationError{Reason: "kind " + string(e.Kind) + " not supported by short-term store"}
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling entry: %w", err)
	}

	ttl := s.defaultTTL
	if e.ExpiresAt != nil {
		ttl = time.Until(*e.ExpiresAt)
		if ttl <= 0 {
			// Already past expiry; nothing to persist.
			return nil
		}
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, entryKey(e.ID), data, ttl)
	pipe.SAdd(ctx, indexKey, e.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pipeline exec for %s: %w", e.ID, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, q memory.Query) ([]memory.Entry, error) {
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", indexKey, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = entryKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget: %w", err)
	}

	now := time.Now()
	var out []memory.Entry
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue // expired between SMEMBERS and MGET
		}
		var e memory.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue // skip malformed entries
		}
		if e.Expired(now) {
			continue
		}
		if q.Matches(&e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, entryKey(id))
	pipe.SRem(ctx, indexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	return nil
}

// Sweep drops index members whose values Redis has already expired.
func (s *Store) Sweep(ctx context.Context) error {
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("smembers %s: %w", indexKey, err)
	}

	var stale []interface{}
	for _, id := range ids {
		n, err := s.client.Exists(ctx, entryKey(id)).Result()
		if err != nil {
			return fmt.Errorf("exists %s: %w", id, err)
		}
		if n == 0 {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	if err := s.client.SRem(ctx, indexKey, stale...).Err(); err != nil {
		return fmt.Errorf("srem stale ids: %w", err)
	}
	return nil
}
