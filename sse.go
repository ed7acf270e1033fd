package fplgate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/tmaxmax/go-sse"
)

// SSEServer adapts Server-Sent Events framing to the dispatcher contract.
// Server-to-client traffic flows over the SSE stream while client requests
// arrive through a paired HTTP POST endpoint; the two handlers returned by
// HandleSSE and HandleMessage can be mounted on any HTTP mux.
//
// Each SSE connection owns one Session for its whole lifetime. Responses are
// pushed back as "message" events correlated by JSON-RPC id.
type SSEServer struct {
	messageURL string
	dispatcher *Dispatcher
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*sseSession

	done chan struct{}
}

// SSEServerOption represents the options for the SSEServer.
type SSEServerOption func(*SSEServer)

type sseSession struct {
	state  *Session
	sess   *sse.Session
	logger *slog.Logger

	sendMsgs chan sseSendMsg

	done       chan struct{}
	closeOnce  sync.Once
	sendClosed chan struct{}
}

type sseSendMsg struct {
	msg  *sse.Message
	errs chan<- error
}

// NewSSEServer creates an SSE transport that hands every decoded payload to the
// given dispatcher. messageURL is the absolute URL of the companion POST
// endpoint advertised to clients through the initial "endpoint" event.
func NewSSEServer(messageURL string, dispatcher *Dispatcher, options ...SSEServerOption) *SSEServer {
	s := &SSEServer{
		messageURL: messageURL,
		dispatcher: dispatcher,
		logger:     slog.Default(),
		sessions:   make(map[string]*sseSession),
		done:       make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// WithSSEServerLogger sets the logger for the SSE server.
func WithSSEServerLogger(logger *slog.Logger) SSEServerOption {
	return func(s *SSEServer) {
		s.logger = logger.With(
			slog.String("component", "sse"),
		)
	}
}

// Shutdown terminates all active SSE sessions. Connected handlers unblock and
// return once their session is stopped.
func (s *SSEServer) Shutdown(context.Context) error {
	close(s.done)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.stop()
	}
	s.sessions = make(map[string]*sseSession)
	return nil
}

// HandleSSE returns an http.Handler for establishing SSE connections over GET
// requests. The handler upgrades the connection, assigns a session, and tells
// the client its message endpoint. The connection stays open until the client
// disconnects or the server shuts down.
func (s *SSEServer) HandleSSE() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sse.Upgrade(w, r)
		if err != nil {
			nErr := fmt.Errorf("failed to upgrade session: %w", err)
			s.logger.Error("failed to upgrade session", "err", nErr)
			http.Error(w, nErr.Error(), http.StatusInternalServerError)
			return
		}

		state := NewSession()

		// Form an url the client can use to reach this server session.
		endpoint := fmt.Sprintf("%s?sessionID=%s", s.messageURL, state.ID())

		msg := sse.Message{
			Type: sse.Type("endpoint"),
		}
		msg.AppendData(endpoint)
		if err := sess.Send(&msg); err != nil {
			nErr := fmt.Errorf("failed to write SSE URL: %w", err)
			s.logger.Error("failed to write SSE URL", "err", nErr)
			http.Error(w, nErr.Error(), http.StatusInternalServerError)
			return
		}
		if err := sess.Flush(); err != nil {
			nErr := fmt.Errorf("failed to flush SSE: %w", err)
			s.logger.Error("failed to flush SSE", "err", nErr)
			http.Error(w, nErr.Error(), http.StatusInternalServerError)
			return
		}

		srvSession := &sseSession{
			state:      state,
			sess:       sess,
			logger:     s.logger.With(slog.String("sessionID", state.ID())),
			sendMsgs:   make(chan sseSendMsg, 5),
			done:       make(chan struct{}),
			sendClosed: make(chan struct{}),
		}

		s.mu.Lock()
		s.sessions[state.ID()] = srvSession
		s.mu.Unlock()

		// Writes into the sse library are funneled through one goroutine.
		go srvSession.processSendMessages()

		// Block until the client goes away or the server shuts down, keeping
		// the connection open.
		select {
		case <-r.Context().Done():
		case <-s.done:
		case <-srvSession.done:
		}
		srvSession.stop()

		s.mu.Lock()
		delete(s.sessions, state.ID())
		s.mu.Unlock()
	})
}

// HandleMessage returns an http.Handler for the POST side-channel. The handler
// expects a sessionID query parameter and a JSON-RPC payload body; the
// dispatcher's response is pushed to the session's SSE stream rather than
// returned in the POST body.
func (s *SSEServer) HandleMessage() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessID := r.URL.Query().Get("sessionID")
		if sessID == "" {
			nErr := errors.New("missing sessionID query parameter")
			s.logger.Warn("missing sessionID query parameter", slog.String("err", nErr.Error()))
			http.Error(w, nErr.Error(), http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		srvSession, ok := s.sessions[sessID]
		s.mu.Unlock()
		if !ok {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			nErr := fmt.Errorf("failed to read message body: %w", err)
			s.logger.Warn("failed to read message body", slog.String("err", nErr.Error()))
			http.Error(w, nErr.Error(), http.StatusBadRequest)
			return
		}

		// Dispatch off the request goroutine so slow handlers don't hold the
		// POST open; the response travels over the SSE stream.
		go func() {
			payload := s.dispatcher.Dispatch(context.Background(), srvSession.state, body)
			if payload == nil {
				return
			}
			if err := srvSession.send(payload); err != nil {
				srvSession.logger.Warn("failed to push response", slog.String("err", err.Error()))
			}
		}()

		w.WriteHeader(http.StatusAccepted)
	})
}

func (s *sseSession) send(payload []byte) error {
	sseMsg := &sse.Message{
		Type: sse.Type("message"),
	}
	sseMsg.AppendData(string(payload))

	errs := make(chan error)

	// Queue the message for sending to avoid race in the sse library
	select {
	case s.sendMsgs <- sseSendMsg{sseMsg, errs}:
	case <-s.done:
		return errors.New("session is closed")
	}

	select {
	case err := <-errs:
		return err
	case <-s.done:
		return errors.New("session is closed")
	}
}

func (s *sseSession) stop() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	<-s.sendClosed
}

func (s *sseSession) processSendMessages() {
	defer close(s.sendClosed)

	for {
		select {
		case sm := <-s.sendMsgs:
			// Send and flush the message to the client.
			if err := s.sess.Send(sm.msg); err != nil {
				s.logger.Warn("failed to send message", slog.String("err", err.Error()))

				select {
				case sm.errs <- err:
				default:
				}
				continue
			}
			if err := s.sess.Flush(); err != nil {
				s.logger.Warn("failed to flush message", slog.String("err", err.Error()))

				select {
				case sm.errs <- err:
				default:
				}
				continue
			}

			select {
			case sm.errs <- nil:
			default:
			}
		case <-s.done:
			return
		}
	}
}

// SSEClient is a Server-Sent Events MCP client. It connects to an SSEServer,
// learns its message endpoint from the initial "endpoint" event, sends requests
// over HTTP POST, and receives responses as "message" events.
// Instances should be created using NewSSEClient.
type SSEClient struct {
	httpClient *http.Client
	connectURL string
	messageURL string
	logger     *slog.Logger

	maxPayloadSize int

	messages chan JSONRPCMessage
}

// SSEClientOption represents the options for the SSEClient.
type SSEClientOption func(*SSEClient)

// NewSSEClient creates an SSE client that connects to the specified connectURL.
// The optional httpClient parameter allows custom HTTP client configuration -
// if nil, the default HTTP client is used. The client must call StartSession to
// begin communication.
func NewSSEClient(connectURL string, httpClient *http.Client, options ...SSEClientOption) *SSEClient {
	cli := httpClient
	if cli == nil {
		cli = http.DefaultClient
	}
	s := &SSEClient{
		connectURL: connectURL,
		httpClient: cli,
		logger:     slog.Default(),
		messages:   make(chan JSONRPCMessage),
	}

	for _, opt := range options {
		opt(s)
	}

	return s
}

// WithSSEClientMaxPayloadSize sets the maximum size of the payload that can be
// received from the server. If the payload size exceeds this limit, the error
// will be logged and the client will be disconnected.
func WithSSEClientMaxPayloadSize(size int) SSEClientOption {
	return func(s *SSEClient) {
		s.maxPayloadSize = size
	}
}

// Send transmits a JSON-encoded message to the server through an HTTP POST
// request. The provided context allows request cancellation. Returns an error
// if message encoding fails, the request cannot be created, or the server
// responds with a non-2xx status code.
func (s *SSEClient) Send(ctx context.Context, msg JSONRPCMessage) error {
	msgBs, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return s.SendRaw(ctx, msgBs)
}

// SendRaw transmits an already serialized payload, which may be a batch array.
func (s *SSEClient) SendRaw(ctx context.Context, payload []byte) error {
	r := bytes.NewReader(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.messageURL, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

// StartSession establishes the SSE connection and begins message processing.
// It blocks until the server announced the message endpoint, then returns an
// iterator over received server messages. The connection remains active until
// the context is cancelled or an error occurs.
func (s *SSEClient) StartSession(ctx context.Context) (iter.Seq[JSONRPCMessage], error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.connectURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SSE server: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	ready := make(chan error, 1)
	go s.listenSSEMessages(resp.Body, ready)

	select {
	case <-ctx.Done():
		resp.Body.Close()
		return nil, ctx.Err()
	case err := <-ready:
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
	}

	return s.listenMessages(), nil
}

func (s *SSEClient) listenSSEMessages(body io.ReadCloser, ready chan<- error) {
	defer func() {
		body.Close()
		close(s.messages)
	}()

	var config *sse.ReadConfig
	if s.maxPayloadSize > 0 {
		config = &sse.ReadConfig{
			MaxEventSize: s.maxPayloadSize,
		}
	}

	for ev, err := range sse.Read(body, config) {
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.Error("failed to read SSE message", "err", err)
			}
			return
		}

		switch ev.Type {
		case "endpoint":
			// Validate and parse the endpoint URL to ensure messages are sent
			// to the right destination.
			u, err := url.Parse(ev.Data)
			if err != nil {
				ready <- fmt.Errorf("parse endpoint URL: %w", err)
				return
			}
			if u.String() == "" {
				ready <- errors.New("empty endpoint URL")
				return
			}
			s.messageURL = u.String()
			ready <- nil
		case "message":
			// Require an endpoint URL before processing messages; this also
			// guards against events arriving before the handshake finished.
			if s.messageURL == "" {
				s.logger.Error("received message before endpoint URL")
				continue
			}

			data := []byte(ev.Data)
			if bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("[")) {
				// Batch response: feed each element separately.
				var batch []JSONRPCMessage
				if err := json.Unmarshal(data, &batch); err != nil {
					s.logger.Error("failed to unmarshal batch message", "err", err)
					continue
				}
				for _, msg := range batch {
					s.messages <- msg
				}
				continue
			}

			var msg JSONRPCMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				s.logger.Error("failed to unmarshal message", "err", err)
				continue
			}

			s.messages <- msg
		default:
			s.logger.Error("unhandled event type", "type", ev.Type)
		}
	}
}

func (s *SSEClient) listenMessages() iter.Seq[JSONRPCMessage] {
	return func(yield func(JSONRPCMessage) bool) {
		for msg := range s.messages {
			if !yield(msg) {
				return
			}
		}
	}
}
