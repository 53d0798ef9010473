package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ultra-signal-engine/internal/arbiter"
	"ultra-signal-engine/internal/database"
	"ultra-signal-engine/internal/ingest"
	"ultra-signal-engine/internal/lifecycle"
	"ultra-signal-engine/internal/market"
)

// ============================================================================
// INGEST HANDLERS
// ============================================================================

// handleIngestWebhook accepts a TradingView-style alert and books it as a
// raw source for the next arbitration run
func (s *Server) handleIngestWebhook(c *gin.Context) {
	if !s.webhookEnabled {
		errorResponse(c, http.StatusForbidden, "webhook ingest is disabled")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "failed to read request body")
		return
	}

	signal, err := ingest.ParseWebhook(body, time.Now())
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	s.book.Add(signal.Symbol, signal.Timeframe, signal)
	s.bus.PublishSourceIngested(arbiter.SourceWebhook, signal.Symbol, signal.Timeframe, signal.Side)

	successResponse(c, gin.H{
		"symbol":    signal.Symbol,
		"timeframe": signal.Timeframe,
		"side":      signal.Side,
	})
}

// handleIngestManual accepts an operator-entered trade idea
func (s *Server) handleIngestManual(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "failed to read request body")
		return
	}

	signal, err := ingest.ParseManual(body, time.Now())
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	s.book.Add(signal.Symbol, signal.Timeframe, signal)
	s.bus.PublishSourceIngested(arbiter.SourceManual, signal.Symbol, signal.Timeframe, signal.Side)

	successResponse(c, gin.H{
		"symbol":    signal.Symbol,
		"timeframe": signal.Timeframe,
		"side":      signal.Side,
	})
}

// ============================================================================
// ANALYZE HANDLER
// ============================================================================

// analyzeRequest carries one pipeline run's inputs
type analyzeRequest struct {
	Symbol    string          `json:"symbol" binding:"required"`
	Timeframe string          `json:"timeframe" binding:"required"`
	Candles   []market.Candle `json:"candles" binding:"required"`
}

// handleAnalyze runs the full pipeline for the posted candle series
func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	timeframe := strings.ToLower(strings.TrimSpace(req.Timeframe))

	outcome, err := s.pipe.Run(c.Request.Context(), symbol, timeframe, req.Candles, time.Now())
	if err != nil {
		if errors.Is(err, arbiter.ErrNoSources) {
			errorResponse(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	successResponse(c, outcome)
}

// ============================================================================
// LIVE SIGNAL HANDLERS
// ============================================================================

// handleListSignals returns the live buffer contents, filtered
func (s *Server) handleListSignals(c *gin.Context) {
	filter := lifecycle.Filter{
		Symbol:    strings.ToUpper(c.Query("symbol")),
		Timeframe: strings.ToLower(c.Query("timeframe")),
		Side:      strings.ToUpper(c.Query("side")),
	}
	if v := c.Query("min_confidence"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			filter.MinConfidence = parsed
		}
	}

	successResponse(c, s.buffer.List(filter))
}

// handleGetSignal returns one live signal by id
func (s *Server) handleGetSignal(c *gin.Context) {
	signal, found := s.buffer.Get(c.Param("id"))
	if !found {
		errorResponse(c, http.StatusNotFound, "signal not found or expired")
		return
	}
	successResponse(c, signal)
}

// handleRemoveSignal removes a live signal before its TTL expires
func (s *Server) handleRemoveSignal(c *gin.Context) {
	id := c.Param("id")
	if !s.buffer.Remove(id) {
		errorResponse(c, http.StatusNotFound, "signal not found or expired")
		return
	}
	successResponse(c, gin.H{"removed": id})
}

// handleBufferStats returns live-buffer aggregates
func (s *Server) handleBufferStats(c *gin.Context) {
	successResponse(c, s.buffer.Stats())
}

// ============================================================================
// HISTORY HANDLERS
// ============================================================================

// handleListHistory returns the persisted signal history, paginated
func (s *Server) handleListHistory(c *gin.Context) {
	if s.repo == nil {
		errorResponse(c, http.StatusServiceUnavailable, "signal history is disabled")
		return
	}

	filter := database.HistoryFilter{
		Symbol:    strings.ToUpper(c.Query("symbol")),
		Timeframe: strings.ToLower(c.Query("timeframe")),
		Side:      strings.ToUpper(c.Query("side")),
	}
	if v := c.Query("min_confidence"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			filter.MinConfidence = parsed
		}
	}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			filter.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			filter.Offset = parsed
		}
	}

	records, err := s.repo.ListSignalHistory(c.Request.Context(), filter)
	if err != nil {
		s.log.Error("History query failed", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to fetch signal history")
		return
	}
	successResponse(c, records)
}

// handleHistoryStats returns history aggregates
func (s *Server) handleHistoryStats(c *gin.Context) {
	if s.repo == nil {
		errorResponse(c, http.StatusServiceUnavailable, "signal history is disabled")
		return
	}

	stats, err := s.repo.SignalHistoryStats(c.Request.Context())
	if err != nil {
		s.log.Error("History stats query failed", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to fetch history stats")
		return
	}
	successResponse(c, stats)
}

// ============================================================================
// INTEL HANDLERS
// ============================================================================

type socialScoreRequest struct {
	Score float64 `json:"score"`
}

// handleSetSocialScore stores an externally supplied social sentiment score
func (s *Server) handleSetSocialScore(c *gin.Context) {
	if s.intel == nil {
		errorResponse(c, http.StatusServiceUnavailable, "market intelligence is disabled")
		return
	}

	var req socialScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	symbol := strings.ToUpper(c.Param("symbol"))
	if err := s.intel.SetSocialScore(c.Request.Context(), symbol, req.Score); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	successResponse(c, gin.H{"symbol": symbol, "score": req.Score})
}

type riskProfileRequest struct {
	Level string `json:"level"`
}

// handleSetRiskProfile stores or clears a per-asset risk override
func (s *Server) handleSetRiskProfile(c *gin.Context) {
	if s.intel == nil {
		errorResponse(c, http.StatusServiceUnavailable, "market intelligence is disabled")
		return
	}

	var req riskProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	symbol := strings.ToUpper(c.Param("symbol"))
	level := strings.ToUpper(strings.TrimSpace(req.Level))
	if err := s.intel.SetRiskProfile(c.Request.Context(), symbol, level); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	successResponse(c, gin.H{"symbol": symbol, "level": level})
}
