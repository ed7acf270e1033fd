// Package fantasy exposes Fantasy Premier League data as MCP resources and
// analytical tools. Resources cover the raw reference data (players, teams,
// gameweeks, fixtures); tools run analysis over it (filtering, comparison,
// fixture difficulty). All upstream access goes through the fpl client, so the
// package itself holds no network or caching logic.
package fantasy

import (
	"log/slog"

	"github.com/fplmcp/fplgate"
	"github.com/fplmcp/fplgate/fpl"
)

// Server wires the FPL client into the gateway's capability registry.
type Server struct {
	client *fpl.Client
	logger *slog.Logger
}

// ServerOption represents the options for the Server.
type ServerOption func(*Server)

// NewServer creates a fantasy server backed by the given FPL client.
func NewServer(client *fpl.Client, options ...ServerOption) *Server {
	s := &Server{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// WithServerLogger sets the logger for the server.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger.With(
			slog.String("component", "fantasy"),
		)
	}
}

// Registry builds the gateway's capability registry: every resource and tool
// this server exposes, bound to its handler. The registry is immutable, built
// exactly once at startup.
func (s *Server) Registry() *fplgate.Registry {
	return fplgate.NewRegistry(s.resourceEntries(), s.toolEntries())
}
