package api

import (
	"github.com/eliteGoblin/focusd/deepfocus/internal/api/handler"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	health := handler.NewHealthHandler(s.deps.Version, s.deps.Liveness)
	s.engine.GET("/health", health.Health)

	api := s.engine.Group("/api")

	focus := handler.NewFocusHandler(s.deps.Checker, s.deps.Stats, s.deps.Focus, s.deps.Activity, s.deps.Session)
	api.GET("/status", focus.Status)
	api.POST("/check-block", focus.CheckBlock)
	api.GET("/sessions/current", focus.CurrentSession)
	api.GET("/stats/today", focus.TodayStats)
	api.POST("/overrides", focus.Override)
	api.PUT("/scores", focus.SetScore)
	api.POST("/activity/keystrokes", focus.Keystrokes)

	rules := handler.NewRuleHandler(s.deps.Rules, s.deps.Engine)
	api.GET("/rules", rules.List)
	api.POST("/rules", rules.Create)
	api.PUT("/rules/:id", rules.Update)
	api.DELETE("/rules/:id", rules.Delete)
	api.POST("/rules/:id/toggle", rules.Toggle)
}
