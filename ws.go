package fplgate

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSServer adapts WebSocket framing to the dispatcher contract. Each socket
// owns one Session; every text frame carries one JSON-RPC envelope or batch
// array, and each dispatcher response is written back as a single frame.
//
// Frames are dispatched concurrently, but writes are funneled through a single
// goroutine because the websocket library permits only one concurrent writer.
type WSServer struct {
	dispatcher *Dispatcher
	logger     *slog.Logger

	upgrader     websocket.Upgrader
	writeTimeout time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

// WSServerOption represents the options for the WSServer.
type WSServerOption func(*WSServer)

type wsSession struct {
	state  *Session
	conn   *websocket.Conn
	logger *slog.Logger

	writeTimeout time.Duration

	sendMsgs chan wsSendMsg

	done        chan struct{}
	closeOnce   sync.Once
	writeClosed chan struct{}
}

type wsSendMsg struct {
	payload []byte
	errs    chan<- error
}

var defaultWSWriteTimeout = 30 * time.Second

// NewWSServer creates a WebSocket transport that hands every received frame to
// the given dispatcher.
func NewWSServer(dispatcher *Dispatcher, options ...WSServerOption) *WSServer {
	s := &WSServer{
		dispatcher: dispatcher,
		logger:     slog.Default(),
		upgrader: websocket.Upgrader{
			// The gateway performs no client authentication, so any origin may
			// connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		done: make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.writeTimeout == 0 {
		s.writeTimeout = defaultWSWriteTimeout
	}
	return s
}

// WithWSServerLogger sets the logger for the WebSocket server.
func WithWSServerLogger(logger *slog.Logger) WSServerOption {
	return func(s *WSServer) {
		s.logger = logger.With(
			slog.String("component", "websocket"),
		)
	}
}

// WithWSWriteTimeout sets the per-frame write deadline.
func WithWSWriteTimeout(timeout time.Duration) WSServerOption {
	return func(s *WSServer) {
		s.writeTimeout = timeout
	}
}

// Shutdown stops accepting frames on all connections. Handlers return once
// their read loop observes the closed socket.
func (s *WSServer) Shutdown(context.Context) error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return nil
}

// Handler returns an http.Handler that upgrades GET requests to WebSocket
// connections and serves them until the client disconnects.
func (s *WSServer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Error("failed to upgrade connection", slog.String("err", err.Error()))
			return
		}

		state := NewSession()
		sess := &wsSession{
			state:        state,
			conn:         conn,
			logger:       s.logger.With(slog.String("sessionID", state.ID())),
			writeTimeout: s.writeTimeout,
			sendMsgs:     make(chan wsSendMsg, 5),
			done:         make(chan struct{}),
			writeClosed:  make(chan struct{}),
		}

		go sess.processSendMessages()
		go func() {
			select {
			case <-s.done:
				sess.stop()
			case <-sess.done:
			}
		}()

		s.serve(sess)
		sess.stop()
	})
}

func (s *WSServer) serve(sess *wsSession) {
	// Aborting session-bound handler calls on disconnect happens through this
	// context; fetches already shared via the response cache run to completion
	// underneath it and populate the cache for other waiters.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pending sync.WaitGroup
	defer pending.Wait()

	for {
		msgType, payload, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sess.logger.Warn("connection closed abruptly", slog.String("err", err.Error()))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		pending.Add(1)
		go func(payload []byte) {
			defer pending.Done()

			resp := s.dispatcher.Dispatch(ctx, sess.state, payload)
			if resp == nil {
				return
			}
			if err := sess.send(resp); err != nil {
				sess.logger.Warn("failed to write response", slog.String("err", err.Error()))
			}
		}(payload)
	}
}

func (s *wsSession) send(payload []byte) error {
	errs := make(chan error, 1)

	select {
	case s.sendMsgs <- wsSendMsg{payload: payload, errs: errs}:
	case <-s.done:
		return errSessionClosed
	}

	select {
	case err := <-errs:
		return err
	case <-s.done:
		return errSessionClosed
	}
}

func (s *wsSession) stop() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
	<-s.writeClosed
}

func (s *wsSession) processSendMessages() {
	defer close(s.writeClosed)

	for {
		select {
		case sm := <-s.sendMsgs:
			if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
				sm.errs <- err
				continue
			}
			sm.errs <- s.conn.WriteMessage(websocket.TextMessage, sm.payload)
		case <-s.done:
			return
		}
	}
}
