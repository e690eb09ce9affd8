package webserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stake-plus/govcomms-feedback/src/actions/core"
	"github.com/stake-plus/govcomms-feedback/src/config"
	"github.com/stake-plus/govcomms-feedback/src/proposals"
)

// New builds the inspection API engine.
func New(cfg config.APIConfig, store proposals.Store) *gin.Engine {
	g := gin.New()
	g.Use(requestID(), gin.Logger(), gin.Recovery())
	attachRoutes(g, cfg, store)
	return g
}

var _ core.Module = (*Server)(nil)

// Server runs the API as a bot module.
type Server struct {
	srv  *http.Server
	done chan error
}

func NewServer(cfg config.APIConfig, store proposals.Store) *Server {
	return &Server{srv: &http.Server{
		Addr:              cfg.Addr,
		Handler:           New(cfg, store),
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

func (s *Server) Name() string { return "api" }

// Start binds the listener so address errors surface here, then serves in
// the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", s.srv.Addr, err)
	}
	s.done = make(chan error, 1)
	go func() {
		log.Printf("api: listening on %s", ln.Addr())
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("api: shutdown: %v", err)
	}
	if s.done != nil {
		if err := <-s.done; err != nil {
			log.Printf("api: serve: %v", err)
		}
	}
}
