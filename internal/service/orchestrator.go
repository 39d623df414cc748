// Package service wires classification, similarity lookup, generation and
// write-back into the read-through/write-through policy behind the query
// endpoint.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/answercache/answercache/internal/cache"
	"github.com/answercache/answercache/internal/classifier"
	"github.com/answercache/answercache/internal/extract"
	"github.com/answercache/answercache/pkg/observability"
)

// ErrEmptyQuery is returned when the query text is missing. It maps to a
// client error and is never retried.
var ErrEmptyQuery = errors.New("query is required")

// Answer sources reported in query metadata.
const (
	SourceCache = "cache"
	SourceLLM   = "llm"
)

// Embedder converts text to a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces an answer for a prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Configured() bool
}

// Store is the cache persistence contract the orchestrator depends on.
type Store interface {
	Lookup(ctx context.Context, queryType classifier.QueryType, embedding []float32) (*cache.Match, error)
	Put(ctx context.Context, entry *cache.Entry, expiresAt *time.Time) error
	Ping(ctx context.Context) error
}

// QueryResult is the outcome of handling one query.
type QueryResult struct {
	Response        string
	Source          string
	QueryType       classifier.QueryType
	SimilarityScore *float64
}

// HealthStatus reports component health. It is always produced, never an
// error: failures are carried in the body.
type HealthStatus struct {
	Status           string `json:"status"`
	RedisConnected   bool   `json:"redis_connected"`
	APIKeyConfigured bool   `json:"api_key_configured"`
}

// expiryInstruction is appended to time-sensitive prompts so the backend
// labels its reply for the expiry extractor.
const expiryInstruction = `

Additionally, please provide an expiration time for this information in ISO format.
Format your response as:
MAIN_RESPONSE: [your main response]
EXPIRY: [ISO format date-time when this information expires]`

// Orchestrator implements the per-query state machine:
// classify, attempt lookup, and on a miss generate, extract an expiry when
// the answer is perishable, and write back.
//
// Cache faults are invisible to callers: a failing lookup degrades to a
// miss and a failing write-back is logged and dropped. Only query
// validation and backend failures surface as errors.
type Orchestrator struct {
	store     Store
	embedder  Embedder
	generator Generator
	logger    observability.Logger

	now func() time.Time
}

// NewOrchestrator creates an orchestrator over the given collaborators.
func NewOrchestrator(store Store, embedder Embedder, generator Generator, logger observability.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		embedder:  embedder,
		generator: generator,
		logger:    logger.WithPrefix("orchestrator"),
		now:       time.Now,
	}
}

// HandleQuery answers a query, consulting the semantic cache first unless
// forceRefresh is set.
func (o *Orchestrator) HandleQuery(ctx context.Context, query string, forceRefresh bool) (*QueryResult, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}

	queryType := classifier.Classify(query)

	var queryEmbedding []float32
	if !forceRefresh {
		if result := o.tryLookup(ctx, query, queryType, &queryEmbedding); result != nil {
			return result, nil
		}
	}

	prompt := query
	if queryType == classifier.QueryTypeTimeSensitive {
		prompt = query + expiryInstruction
	}

	answer, err := o.generator.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	mainResponse := answer
	var expiresAt *time.Time
	if queryType == classifier.QueryTypeTimeSensitive {
		main, expiry := extract.Extract(answer, o.now())
		mainResponse = main
		expiresAt = &expiry
	}

	o.writeBack(ctx, query, mainResponse, queryType, queryEmbedding, expiresAt)

	return &QueryResult{
		Response:  mainResponse,
		Source:    SourceLLM,
		QueryType: queryType,
	}, nil
}

// tryLookup performs the cache lookup attempt. Any failure is swallowed and
// logged: cache unavailability must never block answering. On success the
// computed query embedding is handed back for reuse by the write-back.
func (o *Orchestrator) tryLookup(ctx context.Context, query string, queryType classifier.QueryType, embedding *[]float32) *QueryResult {
	queryEmbedding, err := o.embedder.Embed(ctx, query)
	if err != nil {
		o.logger.Warn("Embedding failed during lookup, treating as miss", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	*embedding = queryEmbedding

	match, err := o.store.Lookup(ctx, queryType, queryEmbedding)
	if err != nil {
		o.logger.Warn("Cache lookup failed, treating as miss", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	if match == nil {
		return nil
	}

	score := match.Score
	return &QueryResult{
		Response:        match.Entry.MainResponse,
		Source:          SourceCache,
		QueryType:       queryType,
		SimilarityScore: &score,
	}
}

// writeBack stores the generated answer keyed by the original query.
// Failures here are non-fatal and logged only.
func (o *Orchestrator) writeBack(ctx context.Context, query, mainResponse string, queryType classifier.QueryType, embedding []float32, expiresAt *time.Time) {
	if embedding == nil {
		var err error
		embedding, err = o.embedder.Embed(ctx, query)
		if err != nil {
			o.logger.Warn("Embedding failed during write-back, dropping cache write", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}
	}

	entry := &cache.Entry{
		Query:        query,
		MainResponse: mainResponse,
		Embedding:    embedding,
		Timestamp:    o.now(),
		QueryType:    queryType,
	}

	if err := o.store.Put(ctx, entry, expiresAt); err != nil {
		o.logger.Warn("Cache write-back failed, dropping", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Health reports store connectivity and backend configuration. It never
// returns an error.
func (o *Orchestrator) Health(ctx context.Context) HealthStatus {
	status := HealthStatus{
		APIKeyConfigured: o.generator.Configured(),
	}

	if err := o.store.Ping(ctx); err != nil {
		o.logger.Warn("Health check: store unreachable", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		status.RedisConnected = true
	}

	if status.RedisConnected && status.APIKeyConfigured {
		status.Status = "healthy"
	} else {
		status.Status = "unhealthy"
	}
	return status
}
