package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stellarlinkco/replay-eval/internal/store"
)

func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{"status": "ok"}

	if s.fetcher != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if _, err := s.fetcher.CheckHealth(ctx); err != nil {
			status["episode_store"] = "unreachable"
		} else {
			status["episode_store"] = "ok"
		}
	}

	c.JSON(http.StatusOK, status)
}

func (s *Server) handleListSweeps(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store not configured"})
		return
	}

	filter := store.SweepFilter{
		AgentID: strings.TrimSpace(c.Query("agent_id")),
		Limit:   parseIntQuery(c, "limit", 20),
	}
	if v := strings.TrimSpace(c.Query("since")); v != "" {
		ts, err := parseSince(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since: " + err.Error()})
			return
		}
		filter.Since = ts
	}

	sweeps, err := s.store.ListSweeps(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sweeps": sweeps, "count": len(sweeps)})
}

func (s *Server) handleGetSweep(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store not configured"})
		return
	}

	sweep, err := s.store.GetSweep(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sweep)
}

func (s *Server) handleGetSweepResults(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store not configured"})
		return
	}

	id := c.Param("id")
	if _, err := s.store.GetSweep(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	results, err := s.store.GetResults(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

func (s *Server) handleGetSweepAlerts(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store not configured"})
		return
	}

	id := c.Param("id")
	if _, err := s.store.GetSweep(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	alerts, err := s.store.GetAlerts(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

func (s *Server) handleAgentHistory(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store not configured"})
		return
	}

	agentID := strings.TrimSpace(c.Param("id"))
	if agentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing agent id"})
		return
	}

	sweeps, err := s.store.AgentHistory(c.Request.Context(), agentID, parseIntQuery(c, "limit", 20))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent_id": agentID, "sweeps": sweeps, "count": len(sweeps)})
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseSince(v string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, v); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02", v)
}
