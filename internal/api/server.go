package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/latchguard/go-lock-agent/internal/auth"
	"github.com/latchguard/go-lock-agent/internal/config"
	"github.com/latchguard/go-lock-agent/internal/credential"
	"github.com/latchguard/go-lock-agent/internal/identity"
	"github.com/latchguard/go-lock-agent/internal/ledger"
	"github.com/latchguard/go-lock-agent/internal/registration"
	"github.com/latchguard/go-lock-agent/internal/revocation"
)

// Router groups the echo route trees the handlers attach to.
type Router struct {
	Routes           []*echo.Route
	Root             *echo.Group
	Management       *echo.Group
	APIV1Locks       *echo.Group
	APIV1Credentials *echo.Group
}

// Server is the central struct keeping all the agent's dependencies. Handlers
// receive it and pick what they need.
type Server struct {
	Echo   *echo.Echo
	Router *Router

	Config       config.Server
	Tokens       *auth.TokenManager
	Identities   *identity.Store
	Credentials  *credential.Store
	Issuer       *credential.Issuer
	Registration *registration.Coordinator
	Revocation   *revocation.Coordinator

	// Ledger is nil when the agent runs without a chain connection.
	Ledger ledger.Reader
}

// NewServer creates a server shell. Dependencies are attached by the caller
// before Init and Start.
func NewServer(cfg config.Server) *Server {
	return &Server{
		Config: cfg,
	}
}

// Ready reports whether all components required to serve requests are set.
func (s *Server) Ready() bool {
	return s.Echo != nil &&
		s.Router != nil &&
		s.Tokens != nil &&
		s.Identities != nil &&
		s.Credentials != nil &&
		s.Issuer != nil &&
		s.Registration != nil &&
		s.Revocation != nil
}

// Start runs the HTTP server. Blocks until shutdown.
func (s *Server) Start() error {
	if !s.Ready() {
		return errors.New("server is not ready")
	}
	return s.Echo.Start(s.Config.Echo.ListenAddress)
}

// Shutdown stops the HTTP server and the registration coordinator.
func (s *Server) Shutdown(ctx context.Context) []error {
	log.Warn().Msg("Shutting down server")

	var errs []error

	if s.Echo != nil {
		if err := s.Echo.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Failed to shutdown echo server")
			errs = append(errs, err)
		}
	}

	if s.Registration != nil {
		if err := s.Registration.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close registration coordinator")
			errs = append(errs, err)
		}
	}

	return errs
}
