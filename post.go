package fplgate

import (
	"io"
	"log/slog"
	"net/http"
)

// PostServer adapts plain HTTP request/response framing to the dispatcher
// contract. The transport is stateless: a fresh Session is created for every
// POST and discarded when the response is written, so nothing negotiated in one
// call survives into the next. Each POST is therefore treated as an independent
// MCP turn that does not require a prior initialize — a documented limitation
// of the transport, not of the dispatcher.
type PostServer struct {
	dispatcher *Dispatcher
	logger     *slog.Logger

	maxBodySize int64
}

// PostServerOption represents the options for the PostServer.
type PostServerOption func(*PostServer)

var defaultPostMaxBodySize int64 = 4 << 20

// NewPostServer creates an HTTP POST transport backed by the given dispatcher.
func NewPostServer(dispatcher *Dispatcher, options ...PostServerOption) *PostServer {
	s := &PostServer{
		dispatcher: dispatcher,
		logger:     slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.maxBodySize == 0 {
		s.maxBodySize = defaultPostMaxBodySize
	}
	return s
}

// WithPostServerLogger sets the logger for the POST server.
func WithPostServerLogger(logger *slog.Logger) PostServerOption {
	return func(s *PostServer) {
		s.logger = logger.With(
			slog.String("component", "post"),
		)
	}
}

// WithPostMaxBodySize caps the accepted request body size in bytes.
func WithPostMaxBodySize(size int64) PostServerOption {
	return func(s *PostServer) {
		s.maxBodySize = size
	}
}

// Handler returns an http.Handler that dispatches one JSON-RPC payload per
// POST. Responses are returned in the POST body; notifications are acknowledged
// with 202 Accepted and no body.
func (s *PostServer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBodySize))
		if err != nil {
			s.logger.Warn("failed to read request body", slog.String("err", err.Error()))
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		sess := NewInitializedSession()

		payload := s.dispatcher.Dispatch(r.Context(), sess, body)
		if payload == nil {
			w.WriteHeader(http.StatusAccepted)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(payload); err != nil {
			s.logger.Warn("failed to write response", slog.String("err", err.Error()))
		}
	})
}
