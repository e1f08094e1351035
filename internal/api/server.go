package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/user/hcaptcha-monitor/internal/archive"
)

// Server exposes metrics, health and the archive ledger over HTTP.
type Server struct {
	router     http.Handler
	httpServer *http.Server
	ledger     *archive.Ledger
	gatherer   prometheus.Gatherer
	logger     *zap.Logger
}

func NewServer(port string, l *archive.Ledger, g prometheus.Gatherer, logger *zap.Logger) *Server {
	s := &Server{
		ledger:   l,
		gatherer: g,
		logger:   logger,
	}
	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
