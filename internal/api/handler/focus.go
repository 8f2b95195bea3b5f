package handler

import (
	"errors"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eliteGoblin/focusd/deepfocus/internal/api/dto"
	"github.com/eliteGoblin/focusd/deepfocus/internal/usecase"
)

// FocusHandler serves status, block checks, sessions, stats and
// activity reports.
type FocusHandler struct {
	checker  *usecase.AccessChecker
	stats    *usecase.StatsService
	focus    FocusSource
	activity ActivitySource
	session  CodingState
}

// NewFocusHandler creates a FocusHandler.
func NewFocusHandler(checker *usecase.AccessChecker, stats *usecase.StatsService, focus FocusSource, activity ActivitySource, session CodingState) *FocusHandler {
	return &FocusHandler{checker: checker, stats: stats, focus: focus, activity: activity, session: session}
}

// Status returns the live focus state.
func (h *FocusHandler) Status(c *gin.Context) {
	fs := h.focus.FocusStats(c.Request.Context())
	metrics := h.activity.Metrics()

	resp := dto.StatusResponse{
		IsActivelyCoding:    h.session.IsCoding(),
		CurrentApp:          fs.CurrentApp,
		IsIDEActive:         fs.IsIDEActive,
		KeystrokeActivity:   metrics.ActivityLevel,
		KeystrokesPerMinute: metrics.KeystrokesPerMinute,
	}
	if start, ok := h.session.SessionStart(); ok {
		resp.CurrentSession = &dto.SessionInfo{
			StartTime:       start,
			DurationMinutes: math.Round(h.session.SessionMinutes()*100) / 100,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// CheckBlock decides whether ?url= may be visited now.
func (h *FocusHandler) CheckBlock(c *gin.Context) {
	decision, err := h.checker.Check(c.Request.Context(), c.Query("url"))
	if errors.Is(err, usecase.ErrEmptyURL) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, decision)
}

// Override records a manual bypass of ?url=.
func (h *FocusHandler) Override(c *gin.Context) {
	dest, n, err := h.checker.RecordOverride(c.Request.Context(), c.Query("url"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.OverrideResponse{Domain: dest, OverrideCount: n})
}

// SetScore stores a productivity score.
func (h *FocusHandler) SetScore(c *gin.Context) {
	var req dto.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	score, ok := h.checker.UpdateScore(c.Request.Context(), req.Domain, *req.Score)
	if !ok {
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: "smart blocking is disabled"})
		return
	}
	c.JSON(http.StatusOK, dto.ScoreResponse{Domain: req.Domain, Score: score})
}

// CurrentSession describes the running session.
func (h *FocusHandler) CurrentSession(c *gin.Context) {
	cur, err := h.stats.CurrentSession(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, cur)
}

// TodayStats summarizes today.
func (h *FocusHandler) TodayStats(c *gin.Context) {
	stats, err := h.stats.TodayStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Keystrokes accepts key presses counted by a client.
func (h *FocusHandler) Keystrokes(c *gin.Context) {
	var req dto.KeystrokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	h.activity.RecordEvents(req.Count)
	c.JSON(http.StatusOK, h.activity.Metrics())
}
