// Package api implements the HTTP surface of the answercache service
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/answercache/answercache/internal/cache"
	"github.com/answercache/answercache/internal/service"
	"github.com/answercache/answercache/pkg/observability"
)

// QueryService answers queries and reports component health.
type QueryService interface {
	HandleQuery(ctx context.Context, query string, forceRefresh bool) (*service.QueryResult, error)
	Health(ctx context.Context) service.HealthStatus
}

// CacheAdmin exposes the administrative store operations.
type CacheAdmin interface {
	Stats(ctx context.Context) (*cache.Stats, error)
	Clear(ctx context.Context) error
}

// Handler handles API requests
type Handler struct {
	service QueryService
	admin   CacheAdmin
	logger  observability.Logger
}

// NewHandler creates a new API handler
func NewHandler(svc QueryService, admin CacheAdmin, logger observability.Logger) *Handler {
	return &Handler{
		service: svc,
		admin:   admin,
		logger:  logger.WithPrefix("api"),
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)

	api := router.Group("/api")
	api.POST("/query", h.handleQuery)
	api.GET("/cache/stats", h.cacheStats)
	api.DELETE("/cache", h.clearCache)
}

// handleQuery processes a user query through the semantic cache
func (h *Handler) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.Query == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "query parameter is required"})
		return
	}

	result, err := h.service.HandleQuery(c.Request.Context(), req.Query, req.ForceRefresh)
	if err != nil {
		if errors.Is(err, service.ErrEmptyQuery) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "query parameter is required"})
			return
		}

		h.logger.Error("Query handling failed", map[string]interface{}{
			"error":      err.Error(),
			"request_id": c.GetString("request_id"),
		})
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to answer query"})
		return
	}

	c.JSON(http.StatusOK, QueryResponse{
		Response: result.Response,
		Metadata: QueryMetadata{
			Source:          result.Source,
			QueryType:       string(result.QueryType),
			SimilarityScore: result.SimilarityScore,
		},
	})
}

// health reports component status; it never fails the request
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Health(c.Request.Context()))
}

// cacheStats returns entry counts and hit/miss counters
func (h *Handler) cacheStats(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to read cache stats", map[string]interface{}{
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "cache unavailable"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// clearCache removes every cached entry
func (h *Handler) clearCache(c *gin.Context) {
	if err := h.admin.Clear(c.Request.Context()); err != nil {
		h.logger.Error("Failed to clear cache", map[string]interface{}{
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "cache unavailable"})
		return
	}
	c.Status(http.StatusNoContent)
}
