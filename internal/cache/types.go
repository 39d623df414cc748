package cache

import (
	"time"

	"github.com/answercache/answercache/internal/classifier"
)

// Entry is the unit of persistence: one cached answer keyed by a content
// hash of the raw query text. Entries are immutable after creation; they
// leave the store only through TTL expiry (or an explicit Clear).
type Entry struct {
	Query        string               `json:"query"`
	MainResponse string               `json:"main_response"`
	Embedding    []float32            `json:"embedding"`
	Timestamp    time.Time            `json:"timestamp"`
	QueryType    classifier.QueryType `json:"query_type"`
}

// Match is a lookup result: the entry that cleared the threshold and the
// cosine similarity it scored against the incoming query.
type Match struct {
	Entry *Entry
	Score float64
}

// Config configures the cache store.
type Config struct {
	// Prefix namespaces all cache keys in Redis
	Prefix string
	// DefaultTTL is applied when a write requests an expiry instant that is
	// already in the past
	DefaultTTL time.Duration
	// ScanBatchSize is the COUNT hint passed to Redis SCAN
	ScanBatchSize int64
}

// DefaultConfig returns the store defaults.
func DefaultConfig() Config {
	return Config{
		Prefix:        "query:",
		DefaultTTL:    300 * time.Second,
		ScanBatchSize: 100,
	}
}

// Stats reports cache usage at a point in time.
type Stats struct {
	TotalEntries int     `json:"total_entries"`
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	HitRate      float64 `json:"hit_rate"`
}
