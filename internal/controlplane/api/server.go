// Package api provides the Name Node's admin REST surface: an
// authenticated HTTP server giving operators health checks and
// read-only visibility into the Storage Node registry, connected
// clients, and the file table. It is entirely separate from the
// client/SN line protocol in pkg/wireproto; nothing here is on the
// path of a read, write, create, or delete.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/docspp/cluster/internal/controlplane/api/auth"
	"github.com/docspp/cluster/internal/controlplane/api/handlers"
	"github.com/docspp/cluster/internal/logger"
	"github.com/docspp/cluster/internal/namenode"
)

// Config configures the admin API HTTP server.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Credential   handlers.AdminCredential
	JWT          auth.JWTConfig
}

// Server wraps an http.Server serving the admin API.
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer builds a Server over coordinator. The JWT secret (config.JWT)
// must be at least 32 characters; NewServer fails fast otherwise rather
// than accepting unauthenticatable tokens.
func NewServer(config Config, coordinator *namenode.Coordinator) (*Server, error) {
	if len(config.JWT.Secret) < 32 {
		return nil, fmt.Errorf("admin API: JWT secret must be at least 32 characters")
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 10 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 10 * time.Second
	}

	jwtService, err := auth.NewJWTService(config.JWT)
	if err != nil {
		return nil, fmt.Errorf("admin API: creating JWT service: %w", err)
	}

	router := NewRouter(coordinator, jwtService, config.Credential)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      router,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
		config: config,
	}, nil
}

// Start serves the admin API until ctx is cancelled, then gracefully
// shuts down within 5 seconds.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("admin API listening", "port", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errCh <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("admin API server failed: %w", err)
	}
}

// Stop gracefully shuts down the server. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("admin API shutdown error: %w", err)
			logger.Error("admin API shutdown error", "error", err)
		} else {
			logger.Info("admin API stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the configured listening port.
func (s *Server) Port() int { return s.config.Port }
