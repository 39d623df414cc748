// Package cache implements the semantic answer cache: a Redis-backed store
// of query/answer pairs matched by embedding similarity rather than key
// equality. Keys are content hashes of the raw query text, so only
// byte-identical queries collide; near-duplicates are reconciled by the
// similarity lookup.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/answercache/answercache/internal/classifier"
	"github.com/answercache/answercache/pkg/observability"
)

// Store persists cache entries in Redis and answers similarity lookups with
// a full scan over the cache namespace. The scan is acceptable at small
// scale; swap in an ANN index before pointing real traffic at this.
//
// Store is safe for concurrent use. Two concurrent misses for the same
// query may both generate and both write; the later write wins. That race
// is accepted: the cache only needs eventual usefulness, not exactly-once
// writes.
type Store struct {
	client *redis.Client
	config Config
	logger observability.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewStore creates a cache store on top of the given Redis client.
func NewStore(client *redis.Client, config Config, logger observability.Logger) *Store {
	if config.Prefix == "" {
		config.Prefix = DefaultConfig().Prefix
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = DefaultConfig().DefaultTTL
	}
	if config.ScanBatchSize <= 0 {
		config.ScanBatchSize = DefaultConfig().ScanBatchSize
	}

	return &Store{
		client: client,
		config: config,
		logger: logger.WithPrefix("cache-store"),
	}
}

// Key returns the cache key for the given raw query text: the configured
// prefix plus a SHA-256 digest of the query. Identical raw text always maps
// to the same key; any difference in casing or whitespace produces a
// different key.
func (s *Store) Key(query string) string {
	sum := sha256.Sum256([]byte(query))
	return s.config.Prefix + hex.EncodeToString(sum[:])
}

// Lookup scans every entry under the cache namespace, scores it against the
// query embedding, and returns the best-scoring entry at or above the
// threshold for the given query type. Returns (nil, nil) on a miss.
//
// The original design returned the first entry clearing the threshold in
// scan order; since Redis scan order is unspecified, that made hits
// non-deterministic. Lookup deliberately upgrades to best-match semantics.
func (s *Store) Lookup(ctx context.Context, queryType classifier.QueryType, embedding []float32) (*Match, error) {
	threshold := ThresholdFor(queryType)

	var best *Match

	iter := s.client.Scan(ctx, 0, s.config.Prefix+"*", s.config.ScanBatchSize).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		data, err := s.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			// Expired between SCAN and GET
			continue
		}
		if err != nil {
			s.misses.Add(1)
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}

		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			s.logger.Warn("Skipping malformed cache entry", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
			continue
		}

		score, err := CosineSimilarity(embedding, entry.Embedding)
		if err != nil {
			s.logger.Warn("Skipping entry with unusable embedding", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
			continue
		}

		if score >= threshold && (best == nil || score > best.Score) {
			e := entry
			best = &Match{Entry: &e, Score: score}
		}
	}
	if err := iter.Err(); err != nil {
		s.misses.Add(1)
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if best == nil {
		s.misses.Add(1)
		return nil, nil
	}

	s.hits.Add(1)
	s.logger.Debug("Similarity hit", map[string]interface{}{
		"query":      best.Entry.Query,
		"score":      best.Score,
		"query_type": string(queryType),
	})
	return best, nil
}

// Put writes the entry under its content-hash key. A nil expiresAt stores
// the entry with no expiration. A future expiresAt becomes a TTL; an
// expiresAt at or behind the current instant falls back to the default TTL
// instead of rejecting the write.
func (s *Store) Put(ctx context.Context, entry *Entry, expiresAt *time.Time) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	var ttl time.Duration
	if expiresAt != nil {
		ttl = time.Until(*expiresAt)
		if ttl <= 0 {
			s.logger.Debug("Expiry already in the past, using default TTL", map[string]interface{}{
				"expires_at": expiresAt.Format(time.RFC3339),
			})
			ttl = s.config.DefaultTTL
		}
	}

	key := s.Key(entry.Query)
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	s.logger.Debug("Cached entry", map[string]interface{}{
		"key":        key,
		"query_type": string(entry.QueryType),
		"ttl":        ttl.String(),
	})
	return nil
}

// Get retrieves the entry stored under the exact key, if any.
func (s *Store) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal cache entry: %w", err)
	}
	return &entry, nil
}

// Ping verifies store connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Stats counts entries under the cache namespace and reports hit/miss
// counters accumulated since process start.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, s.config.Prefix+"*", s.config.ScanBatchSize).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	hits := s.hits.Load()
	misses := s.misses.Load()
	hitRate := 0.0
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}

	return &Stats{
		TotalEntries: count,
		Hits:         hits,
		Misses:       misses,
		HitRate:      hitRate,
	}, nil
}

// Clear removes every entry under the cache namespace.
func (s *Store) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.config.Prefix+"*", s.config.ScanBatchSize).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			s.logger.Error("Failed to delete cache entry", map[string]interface{}{
				"key":   iter.Val(),
				"error": err.Error(),
			})
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	s.logger.Info("Cache cleared", nil)
	return nil
}
