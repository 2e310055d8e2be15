package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"

	"github.com/soundprediction/harmony"
	"github.com/soundprediction/harmony/pkg/cluster"
	"github.com/soundprediction/harmony/pkg/crosswalk"
	"github.com/soundprediction/harmony/pkg/embedder"
	"github.com/soundprediction/harmony/pkg/metrics"
	"github.com/soundprediction/harmony/pkg/server/dto"
	"github.com/soundprediction/harmony/pkg/types"
)

// HarmonyHandler serves the matching, clustering, alignment and crosswalk endpoints.
type HarmonyHandler struct {
	client  *harmony.Client
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewHarmonyHandler creates a new harmony handler. m may be nil.
func NewHarmonyHandler(client *harmony.Client, m *metrics.Metrics, logger *slog.Logger) *HarmonyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HarmonyHandler{
		client:  client,
		metrics: m,
		logger:  logger.With("component", "http"),
	}
}

// writeError writes an error response as JSON
func writeError(c *gin.Context, status int, errCode, message string) {
	c.AbortWithStatusJSON(status, dto.ErrorResponse{
		Error:   errCode,
		Message: message,
		Code:    status,
	})
}

// bind decodes and validates the request body, writing a 400 on failure.
func bind[T interface{ Validate() error }](c *gin.Context, req T) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

// match runs the engine and records the run.
func (h *HarmonyHandler) match(c *gin.Context, req *dto.InstrumentsRequest) (*types.MatchResult, bool) {
	if h.client == nil {
		writeError(c, http.StatusServiceUnavailable, "not_ready", "harmony client not initialized")
		return nil, false
	}

	start := time.Now()
	res, err := h.client.Match(c.Request.Context(), req.Instruments, req.Query)
	if h.metrics != nil {
		if err != nil {
			h.metrics.ObserveMatch(nil, 0)
		} else {
			h.metrics.ObserveMatch(&res.Stats, time.Since(start))
		}
	}
	if err != nil {
		status, code := classify(err)
		h.logger.ErrorContext(c.Request.Context(), "match failed",
			"error", err,
			"status", status,
			"instruments", len(req.Instruments))
		writeError(c, status, code, err.Error())
		return nil, false
	}
	return res, true
}

// classify maps engine errors to HTTP status codes.
func classify(err error) (int, string) {
	var statusErr *embedder.StatusError
	switch {
	case errors.Is(err, types.ErrDuplicateInstrument):
		return http.StatusConflict, "duplicate_instrument"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable, "embedder_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.As(err, &statusErr):
		if statusErr.StatusCode == http.StatusTooManyRequests {
			return http.StatusTooManyRequests, "rate_limited"
		}
		return http.StatusBadGateway, "embedder_failed"
	default:
		return http.StatusInternalServerError, "match_failed"
	}
}

// Match handles POST /api/v1/match
func (h *HarmonyHandler) Match(c *gin.Context) {
	var req dto.MatchRequest
	if !bind(c, &req) {
		return
	}
	res, ok := h.match(c, &req.InstrumentsRequest)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.NewMatchResponse(res))
}

// Cluster handles POST /api/v1/cluster
func (h *HarmonyHandler) Cluster(c *gin.Context) {
	var req dto.ClusterRequest
	if !bind(c, &req) {
		return
	}
	opts := h.clusterOptions(&req)
	if opts == nil {
		writeError(c, http.StatusBadRequest, "invalid_request", "unknown clustering strategy "+req.Strategy)
		return
	}

	res, ok := h.match(c, &req.InstrumentsRequest)
	if !ok {
		return
	}
	clusters, err := h.client.ClusterWith(c.Request.Context(), res, *opts)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "cluster_failed", err.Error())
		return
	}
	if h.metrics != nil {
		h.metrics.ClustersProduced.Observe(float64(len(clusters)))
	}
	c.JSON(http.StatusOK, dto.ClusterResponse{Clusters: clusters, Stats: res.Stats})
}

// clusterOptions overlays the request on the client defaults; nil means an unknown strategy.
func (h *HarmonyHandler) clusterOptions(req *dto.ClusterRequest) *cluster.Options {
	opts := h.client.ClusterOptions()
	if req.Strategy != "" {
		strategy, err := cluster.ParseStrategy(req.Strategy)
		if err != nil {
			return nil
		}
		opts.Strategy = strategy
	}
	if req.Threshold != nil {
		opts.Threshold = req.Threshold
	}
	if req.TopicCount != nil {
		opts.TopicCount = *req.TopicCount
	}
	return &opts
}

// Crosswalk handles POST /api/v1/crosswalk
func (h *HarmonyHandler) Crosswalk(c *gin.Context) {
	var req dto.CrosswalkRequest
	if !bind(c, &req) {
		return
	}
	res, ok := h.match(c, &req.InstrumentsRequest)
	if !ok {
		return
	}

	cfg := h.client.GetConfig()
	threshold := cfg.CrosswalkThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	opts := crosswalk.Options{
		ExcludeSameInstrument: req.ExcludeSameInstrument || cfg.CrosswalkOptions.ExcludeSameInstrument,
		OneToOne:              req.OneToOne || cfg.CrosswalkOptions.OneToOne,
	}
	c.JSON(http.StatusOK, dto.CrosswalkResponse{
		Crosswalk: h.client.CrosswalkWith(res, threshold, opts),
		Stats:     res.Stats,
	})
}

// Align handles POST /api/v1/align
func (h *HarmonyHandler) Align(c *gin.Context) {
	var req dto.AlignRequest
	if !bind(c, &req) {
		return
	}
	res, ok := h.match(c, &req.InstrumentsRequest)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.AlignResponse{
		Alignments: h.client.Align(req.Instruments, res),
		Stats:      res.Stats,
	})
}

// Harmonise handles POST /api/v1/harmonise
func (h *HarmonyHandler) Harmonise(c *gin.Context) {
	var req dto.MatchRequest
	if !bind(c, &req) {
		return
	}
	res, ok := h.match(c, &req.InstrumentsRequest)
	if !ok {
		return
	}
	clusters, err := h.client.Cluster(c.Request.Context(), res)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "cluster_failed", err.Error())
		return
	}
	if h.metrics != nil {
		h.metrics.ClustersProduced.Observe(float64(len(clusters)))
	}
	c.JSON(http.StatusOK, dto.HarmoniseResponse{
		MatchResponse: dto.NewMatchResponse(res),
		Clusters:      clusters,
		Alignments:    h.client.Align(req.Instruments, res),
		Crosswalk:     h.client.Crosswalk(res),
	})
}
