package fplgate

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var errSessionClosed = errors.New("session is closed")

// Session holds the per-connection state of one MCP client. Each transport
// adapter owns the sessions it creates: one per WebSocket connection, one per
// SSE stream, and an ephemeral one per HTTP POST. Sessions are never shared
// across transports and die with their connection.
type Session struct {
	id string

	mu              sync.Mutex
	initialized     bool
	protocolVersion string
	clientInfo      Info
	clientCaps      ClientCapabilities
}

// NewSession creates a session in the pre-initialize state with a unique ID.
func NewSession() *Session {
	return &Session{id: uuid.New().String()}
}

// NewInitializedSession creates a session that is already past the initialize
// handshake. The HTTP POST adapter uses this for its per-request sessions: the
// transport is stateless, so each POST is treated as an independent MCP turn
// rather than requiring initialize on every call.
func NewInitializedSession() *Session {
	s := NewSession()
	s.initialized = true
	s.protocolVersion = protocolVersion
	return s
}

// ID returns the unique identifier for this session.
func (s *Session) ID() string { return s.id }

// Initialized reports whether the initialize handshake has completed.
func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// ClientInfo returns the client identity recorded during initialize.
func (s *Session) ClientInfo() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientInfo
}

func (s *Session) recordInitialize(params initializeParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.protocolVersion = params.ProtocolVersion
	s.clientInfo = params.ClientInfo
	s.clientCaps = params.Capabilities
}

func (s *Session) markInitialized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
}
