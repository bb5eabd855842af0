// Package api exposes stored eval sweeps, results and alerts over HTTP
// for dashboards and CI integrations.
package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stellarlinkco/replay-eval/internal/config"
	"github.com/stellarlinkco/replay-eval/internal/fetcher"
	"github.com/stellarlinkco/replay-eval/internal/store"
)

type Server struct {
	router  *gin.Engine
	store   store.Store
	fetcher *fetcher.Client
	config  *config.Config
}

func NewServer(cfg *config.Config, st store.Store, fc *fetcher.Client) (*Server, error) {
	r := gin.New()
	s := &Server{
		router:  r,
		store:   st,
		fetcher: fc,
		config:  cfg,
	}
	s.registerMiddleware()
	if err := s.registerRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Run(addr string) error {
	if s == nil || s.router == nil {
		return errors.New("api: nil server")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = ":8080"
	}
	return s.router.Run(addr)
}
