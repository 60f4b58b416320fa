// Package httpapi exposes the autocomplete engine over HTTP with gin.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/bastiangx/autocomplete/internal/logger"
	"github.com/bastiangx/autocomplete/pkg/config"
	"github.com/bastiangx/autocomplete/pkg/metrics"
	"github.com/bastiangx/autocomplete/pkg/suggest"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"
)

// maxBodySize bounds bulk loads.
const maxBodySize = 32 << 20

// Engine is the part of the completer the HTTP API needs.
type Engine interface {
	suggest.ICompleter
	LoadContext(ctx context.Context, entries []suggest.Entry) (*suggest.LoadReport, error)
	Term(id suggest.TermID) (suggest.Term, error)
}

// API holds the handlers and their shared state.
type API struct {
	engine  Engine
	limits  config.ServerConfig
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *log.Logger
}

// NewAPI creates the handler set. A nil m disables /metrics.
func NewAPI(engine Engine, limits config.ServerConfig, m *metrics.Metrics) *API {
	return &API{
		engine:  engine,
		limits:  limits,
		metrics: m,
		logger:  logger.New("http"),
	}
}

// SetupRoutes registers all routes on router.
func SetupRoutes(router *gin.Engine, api *API) {
	router.Use(RequestIDMiddleware(), AccessLogMiddleware(logger.NewJSON(os.Stderr, "access")))

	router.GET("/healthz", api.HealthHandler)
	router.GET("/stats", api.StatsHandler)
	if api.metrics != nil {
		router.GET("/metrics", gin.WrapH(api.metrics.Handler()))
	}

	router.GET("/autocomplete", api.AutocompleteQueryHandler)
	router.POST("/autocomplete", api.AutocompleteHandler)

	termRoutes := router.Group("/terms")
	{
		termRoutes.PUT("", api.UpsertTermHandler)
		termRoutes.DELETE("/:term", api.RemoveTermHandler)
		termRoutes.POST("/bulk", RequestSizeLimitMiddleware(maxBodySize), api.BulkLoadHandler)
	}
}

// NewRouter builds a gin engine with recovery and every route registered.
func NewRouter(api *API) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	SetupRoutes(router, api)
	return router
}

// AutocompleteRequest is the body of POST /autocomplete. A missing limit
// uses the configured default.
type AutocompleteRequest struct {
	Prefix string `json:"prefix" form:"prefix"`
	Limit  *int   `json:"limit" form:"limit"`
}

// TermRequest is the body of PUT /terms.
type TermRequest struct {
	Term  string   `json:"term"`
	Score *float64 `json:"score" binding:"required"`
}

// TermResponse echoes a term as the engine stored it.
type TermResponse struct {
	ID    suggest.TermID `json:"id"`
	Term  string         `json:"term"`
	Score float64        `json:"score"`
}

// EntryFailure is one rejected entry of a bulk load.
type EntryFailure struct {
	Index int    `json:"index"`
	Term  string `json:"term"`
	Error string `json:"error"`
}

// LoadReportResponse is the body returned by POST /terms/bulk.
type LoadReportResponse struct {
	Total      int            `json:"total"`
	Applied    int            `json:"applied"`
	Failed     []EntryFailure `json:"failed"`
	DurationMs float64        `json:"duration_ms"`
}

// HealthHandler answers liveness probes.
func (api *API) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// StatsHandler returns the engine statistics.
func (api *API) StatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, api.engine.Stats())
}

// AutocompleteQueryHandler handles GET /autocomplete?prefix=&limit=.
func (api *API) AutocompleteQueryHandler(c *gin.Context) {
	var req AutocompleteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		SendError(c, http.StatusBadRequest, ErrorCodeInvalidArgument, "Invalid query parameters: "+err.Error())
		return
	}
	api.complete(c, req)
}

// AutocompleteHandler handles POST /autocomplete.
func (api *API) AutocompleteHandler(c *gin.Context) {
	var req AutocompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendInvalidJSONError(c, err)
		return
	}
	api.complete(c, req)
}

// complete answers with a JSON array of terms in rank order. Identical
// queries in flight at the same time share one engine call.
func (api *API) complete(c *gin.Context, req AutocompleteRequest) {
	prefixLen := len([]rune(req.Prefix))
	if prefixLen < api.limits.MinPrefix {
		SendError(c, http.StatusBadRequest, ErrorCodeInvalidArgument,
			fmt.Sprintf("prefix must be at least %d characters", api.limits.MinPrefix))
		return
	}
	if api.limits.MaxPrefix > 0 && prefixLen > api.limits.MaxPrefix {
		SendError(c, http.StatusBadRequest, ErrorCodeInvalidArgument,
			fmt.Sprintf("prefix exceeds maximum length of %d characters", api.limits.MaxPrefix))
		return
	}

	k := api.limits.DefaultLimit
	if req.Limit != nil {
		k = *req.Limit
	}
	if api.limits.MaxLimit > 0 && k > api.limits.MaxLimit {
		k = api.limits.MaxLimit
	}

	start := time.Now()
	key := fmt.Sprintf("%d\x00%s", k, req.Prefix)
	v, err, shared := api.group.Do(key, func() (any, error) {
		return api.engine.Query(req.Prefix, k)
	})
	if err != nil {
		api.metrics.ObserveQuery(0, 0, err)
		SendEngineError(c, err)
		return
	}
	words := v.([]string)
	api.metrics.ObserveQuery(time.Since(start), len(words), nil)
	if shared {
		api.logger.Debug("coalesced query", "prefix", req.Prefix, "limit", k)
	}
	c.JSON(http.StatusOK, words)
}

// UpsertTermHandler handles PUT /terms.
func (api *API) UpsertTermHandler(c *gin.Context) {
	var req TermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendInvalidJSONError(c, err)
		return
	}
	id, err := api.engine.Upsert(req.Term, *req.Score)
	api.metrics.ObserveUpsert(err)
	if err != nil {
		SendEngineError(c, err)
		return
	}
	api.metrics.SetTerms(api.engine.Stats()["totalTerms"])
	stored, err := api.engine.Term(id)
	if err != nil {
		// Removed again before we could read it back.
		stored = suggest.Term{ID: id, Text: req.Term, Score: *req.Score}
	}
	c.JSON(http.StatusOK, TermResponse{ID: stored.ID, Term: stored.Text, Score: stored.Score})
}

// RemoveTermHandler handles DELETE /terms/:term.
func (api *API) RemoveTermHandler(c *gin.Context) {
	if err := api.engine.Remove(c.Param("term")); err != nil {
		SendEngineError(c, err)
		return
	}
	api.metrics.SetTerms(api.engine.Stats()["totalTerms"])
	c.Status(http.StatusNoContent)
}

// BulkLoadHandler handles POST /terms/bulk. Invalid entries are reported in
// the response while the valid ones are applied.
func (api *API) BulkLoadHandler(c *gin.Context) {
	var entries []suggest.Entry
	if err := c.ShouldBindJSON(&entries); err != nil {
		SendInvalidJSONError(c, err)
		return
	}

	report, err := api.engine.LoadContext(c.Request.Context(), entries)
	api.metrics.ObserveLoad(report)
	api.metrics.SetTerms(api.engine.Stats()["totalTerms"])
	if err != nil {
		SendError(c, http.StatusServiceUnavailable, ErrorCodeLoadCancelled,
			fmt.Sprintf("load stopped after %d of %d entries: %v", report.Applied, report.Total, err))
		return
	}

	resp := LoadReportResponse{
		Total:      report.Total,
		Applied:    report.Applied,
		Failed:     make([]EntryFailure, len(report.Failed)),
		DurationMs: float64(report.Duration.Microseconds()) / 1000,
	}
	for i, f := range report.Failed {
		resp.Failed[i] = EntryFailure{Index: f.Index, Term: f.Term, Error: f.Err.Error()}
	}
	api.logger.Info("bulk load", "applied", report.Applied, "rejected", len(report.Failed))
	c.JSON(http.StatusOK, resp)
}
