package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/answercache/answercache/internal/cache"
	"github.com/answercache/answercache/internal/classifier"
	"github.com/answercache/answercache/pkg/observability"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type fakeGenerator struct {
	response   string
	err        error
	configured bool
	prompts    []string
}

func (f *fakeGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeGenerator) Configured() bool {
	return f.configured
}

func setupOrchestrator(t *testing.T, embedder *fakeEmbedder, generator *fakeGenerator) (*Orchestrator, *cache.Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := cache.NewStore(client, cache.DefaultConfig(), observability.NewNoopLogger())
	orch := NewOrchestrator(store, embedder, generator, observability.NewNoopLogger())

	return orch, store, mr
}

func TestHandleQuery_EmptyQuery(t *testing.T) {
	orch, _, _ := setupOrchestrator(t,
		&fakeEmbedder{vector: []float32{1, 0}},
		&fakeGenerator{response: "x", configured: true})

	_, err := orch.HandleQuery(context.Background(), "", false)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestHandleQuery_EvergreenMissThenHit(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.5, 0.5, 0.5}}
	generator := &fakeGenerator{response: "Paris", configured: true}
	orch, store, mr := setupOrchestrator(t, embedder, generator)

	ctx := context.Background()
	query := "What is the capital of France?"

	// First call misses and consults the backend.
	result, err := orch.HandleQuery(ctx, query, false)
	require.NoError(t, err)
	assert.Equal(t, "Paris", result.Response)
	assert.Equal(t, SourceLLM, result.Source)
	assert.Equal(t, classifier.QueryTypeEvergreen, result.QueryType)
	assert.Nil(t, result.SimilarityScore)

	// The evergreen entry is stored without a TTL.
	assert.Equal(t, time.Duration(0), mr.TTL(store.Key(query)))

	// The evergreen prompt is not augmented.
	require.Len(t, generator.prompts, 1)
	assert.Equal(t, query, generator.prompts[0])

	// Second call hits the cache.
	result, err = orch.HandleQuery(ctx, query, false)
	require.NoError(t, err)
	assert.Equal(t, "Paris", result.Response)
	assert.Equal(t, SourceCache, result.Source)
	require.NotNil(t, result.SimilarityScore)
	assert.GreaterOrEqual(t, *result.SimilarityScore, 0.80)

	// Backend was not consulted again.
	assert.Len(t, generator.prompts, 1)
}

func TestHandleQuery_TimeSensitiveWithExpiry(t *testing.T) {
	expiry := time.Now().Add(1 * time.Hour)
	reply := "MAIN_RESPONSE: Sunny, 72F\nEXPIRY: " + expiry.Format("2006-01-02T15:04:05")

	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	generator := &fakeGenerator{response: reply, configured: true}
	orch, store, mr := setupOrchestrator(t, embedder, generator)

	query := "What's the weather in Boston today?"
	result, err := orch.HandleQuery(context.Background(), query, false)
	require.NoError(t, err)

	assert.Equal(t, "Sunny, 72F", result.Response)
	assert.Equal(t, SourceLLM, result.Source)
	assert.Equal(t, classifier.QueryTypeTimeSensitive, result.QueryType)

	// The prompt was augmented with the expiry-format instruction.
	require.Len(t, generator.prompts, 1)
	assert.True(t, strings.HasPrefix(generator.prompts[0], query))
	assert.Contains(t, generator.prompts[0], "MAIN_RESPONSE:")
	assert.Contains(t, generator.prompts[0], "EXPIRY:")

	// Stored TTL equals the seconds until the expiry instant.
	ttl := mr.TTL(store.Key(query))
	assert.InDelta(t, time.Until(expiry).Seconds(), ttl.Seconds(), 5)

	// The stored entry holds the extracted main response, not the raw reply.
	entry, err := store.Get(context.Background(), store.Key(query))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "Sunny, 72F", entry.MainResponse)
	assert.Equal(t, classifier.QueryTypeTimeSensitive, entry.QueryType)
}

func TestHandleQuery_TimeSensitiveMissingExpiryLabel(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	generator := &fakeGenerator{response: "Sunny with a high of 72F", configured: true}
	orch, store, mr := setupOrchestrator(t, embedder, generator)

	query := "weather in Chicago tomorrow"
	result, err := orch.HandleQuery(context.Background(), query, false)
	require.NoError(t, err)

	// Full reply becomes the main response and the default 5-minute TTL applies.
	assert.Equal(t, "Sunny with a high of 72F", result.Response)
	ttl := mr.TTL(store.Key(query))
	assert.InDelta(t, (5 * time.Minute).Seconds(), ttl.Seconds(), 5)
}

func TestHandleQuery_ForceRefreshBypassesLookup(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	generator := &fakeGenerator{response: "first answer", configured: true}
	orch, store, _ := setupOrchestrator(t, embedder, generator)

	ctx := context.Background()
	query := "Who painted the Mona Lisa?"

	_, err := orch.HandleQuery(ctx, query, false)
	require.NoError(t, err)

	// An eligible hit exists, but forceRefresh goes straight to the backend
	// and rewrites the entry.
	generator.response = "second answer"
	result, err := orch.HandleQuery(ctx, query, true)
	require.NoError(t, err)
	assert.Equal(t, SourceLLM, result.Source)
	assert.Equal(t, "second answer", result.Response)
	assert.Len(t, generator.prompts, 2)

	entry, err := store.Get(ctx, store.Key(query))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "second answer", entry.MainResponse)
}

func TestHandleQuery_CacheUnavailableDegradesToBackend(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	generator := &fakeGenerator{response: "still answered", configured: true}
	orch, _, mr := setupOrchestrator(t, embedder, generator)

	mr.Close()

	result, err := orch.HandleQuery(context.Background(), "Who invented the telephone?", false)
	require.NoError(t, err)
	assert.Equal(t, "still answered", result.Response)
	assert.Equal(t, SourceLLM, result.Source)
}

func TestHandleQuery_EmbeddingFailureDegradesToBackend(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("quota exceeded")}
	generator := &fakeGenerator{response: "answered anyway", configured: true}
	orch, store, _ := setupOrchestrator(t, embedder, generator)

	ctx := context.Background()
	query := "Who wrote Hamlet?"

	result, err := orch.HandleQuery(ctx, query, false)
	require.NoError(t, err)
	assert.Equal(t, "answered anyway", result.Response)
	assert.Equal(t, SourceLLM, result.Source)

	// Write-back was dropped because no embedding could be computed.
	entry, err := store.Get(ctx, store.Key(query))
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestHandleQuery_GeneratorFailureIsFatal(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	generator := &fakeGenerator{err: errors.New("backend unreachable"), configured: true}
	orch, _, _ := setupOrchestrator(t, embedder, generator)

	_, err := orch.HandleQuery(context.Background(), "anything", false)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyQuery)
}

func TestHandleQuery_SimilarQueryHit(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0, 0}}
	generator := &fakeGenerator{response: "The Eiffel Tower is 330m tall", configured: true}
	orch, store, _ := setupOrchestrator(t, embedder, generator)

	ctx := context.Background()

	// Seed an entry under different raw text with a nearby embedding.
	require.NoError(t, store.Put(ctx, &cache.Entry{
		Query:        "How tall is the Eiffel Tower?",
		MainResponse: "The Eiffel Tower is 330m tall",
		Embedding:    []float32{0.95, 0.1, 0},
		Timestamp:    time.Now(),
		QueryType:    classifier.QueryTypeEvergreen,
	}, nil))

	result, err := orch.HandleQuery(ctx, "What is the height of the Eiffel Tower?", false)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, result.Source)
	assert.Equal(t, "The Eiffel Tower is 330m tall", result.Response)
	require.NotNil(t, result.SimilarityScore)
	assert.GreaterOrEqual(t, *result.SimilarityScore, 0.80)
	assert.Empty(t, generator.prompts)
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		orch, _, _ := setupOrchestrator(t,
			&fakeEmbedder{vector: []float32{1, 0}},
			&fakeGenerator{configured: true})

		status := orch.Health(context.Background())
		assert.Equal(t, "healthy", status.Status)
		assert.True(t, status.RedisConnected)
		assert.True(t, status.APIKeyConfigured)
	})

	t.Run("store down", func(t *testing.T) {
		orch, _, mr := setupOrchestrator(t,
			&fakeEmbedder{vector: []float32{1, 0}},
			&fakeGenerator{configured: true})
		mr.Close()

		status := orch.Health(context.Background())
		assert.Equal(t, "unhealthy", status.Status)
		assert.False(t, status.RedisConnected)
		assert.True(t, status.APIKeyConfigured)
	})

	t.Run("backend not configured", func(t *testing.T) {
		orch, _, _ := setupOrchestrator(t,
			&fakeEmbedder{vector: []float32{1, 0}},
			&fakeGenerator{configured: false})

		status := orch.Health(context.Background())
		assert.Equal(t, "unhealthy", status.Status)
		assert.False(t, status.APIKeyConfigured)
	})
}
