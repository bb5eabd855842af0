package api

import (
	"errors"
	"os"
	"strings"
)

func (s *Server) registerRoutes() error {
	if s == nil || s.router == nil {
		return nil
	}

	api := s.router.Group("/api")
	apiKey := strings.TrimSpace(os.Getenv("REPLAY_EVAL_API_KEY"))
	if apiKey != "" {
		api.Use(apiKeyAuthMiddleware(apiKey))
	} else if strings.EqualFold(strings.TrimSpace(os.Getenv("REPLAY_EVAL_DISABLE_AUTH")), "true") {
		// Explicitly allow unauthenticated access.
	} else {
		return errors.New("api: missing auth configuration: set REPLAY_EVAL_API_KEY or set REPLAY_EVAL_DISABLE_AUTH=true")
	}

	api.GET("/health", s.handleHealth)

	api.GET("/sweeps", s.handleListSweeps)
	api.GET("/sweeps/:id", s.handleGetSweep)
	api.GET("/sweeps/:id/results", s.handleGetSweepResults)
	api.GET("/sweeps/:id/alerts", s.handleGetSweepAlerts)

	api.GET("/agents/:id/history", s.handleAgentHistory)

	return nil
}
