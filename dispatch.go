package fplgate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// DispatcherOption represents the options for the Dispatcher.
type DispatcherOption func(*Dispatcher)

// Dispatcher is the transport-independent core of the gateway. It parses one
// JSON-RPC envelope (or batch of envelopes), validates it, resolves the method
// against the capability registry, invokes the handler, and produces the
// response envelope. Transport adapters call Dispatch from whatever concurrency
// model suits their framing; the dispatcher itself holds no transport state and
// is safe for concurrent use.
type Dispatcher struct {
	info         Info
	instructions string
	registry     *Registry
	logger       *slog.Logger

	// strictPreInit rejects every request except initialize and ping before the
	// handshake completes. The default policy tolerates the discovery methods
	// (resources/list, tools/list) pre-initialize, since they touch nothing but
	// the immutable registry; reads and tool calls always require an
	// established session.
	strictPreInit bool
}

// NewDispatcher creates a dispatcher serving the given registry. The info is
// reported as serverInfo in every initialize result.
func NewDispatcher(info Info, registry *Registry, options ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		info:     info,
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// WithInstructions returns a DispatcherOption that sets the instructions string
// included in initialize results.
func WithInstructions(instructions string) DispatcherOption {
	return func(d *Dispatcher) {
		d.instructions = instructions
	}
}

// WithStrictPreInitialize returns a DispatcherOption that rejects discovery
// methods before the initialize handshake completes.
func WithStrictPreInitialize() DispatcherOption {
	return func(d *Dispatcher) {
		d.strictPreInit = true
	}
}

// WithDispatcherLogger sets the logger for the dispatcher.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger.With(
			slog.String("component", "dispatcher"),
		)
	}
}

// Dispatch processes one wire payload, which is either a single JSON-RPC
// envelope or a batch array of envelopes, and returns the serialized response
// payload. It returns nil when no response is due: the input was a notification,
// or a batch consisting entirely of notifications.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *Session, raw []byte) []byte {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return d.dispatchBatch(ctx, sess, trimmed)
	}

	resp := d.dispatchOne(ctx, sess, raw)
	if resp == nil {
		return nil
	}
	return marshalResponse(*resp, d.logger)
}

func (d *Dispatcher) dispatchBatch(ctx context.Context, sess *Session, raw []byte) []byte {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return marshalResponse(errorMessage(nullID, jsonRPCParseErrorCode, "Parse error"), d.logger)
	}
	if len(elems) == 0 {
		return marshalResponse(errorMessage(nullID, jsonRPCInvalidRequestCode, "Invalid Request"), d.logger)
	}

	// Each element is dispatched independently; responses keep the input order,
	// with notifications contributing nothing.
	responses := make([]JSONRPCMessage, 0, len(elems))
	for _, elem := range elems {
		if resp := d.dispatchOne(ctx, sess, elem); resp != nil {
			responses = append(responses, *resp)
		}
	}
	if len(responses) == 0 {
		return nil
	}

	bs, err := json.Marshal(responses)
	if err != nil {
		d.logger.Error("failed to marshal batch response", slog.String("err", err.Error()))
		return marshalResponse(errorMessage(nullID, jsonRPCInternalErrorCode, "internal error"), d.logger)
	}
	return bs
}

// dispatchOne walks a single envelope through the request lifecycle and returns
// its response, or nil for notifications.
func (d *Dispatcher) dispatchOne(ctx context.Context, sess *Session, raw []byte) *JSONRPCMessage {
	started := time.Now()

	var msg JSONRPCMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		resp := errorMessage(nullID, jsonRPCParseErrorCode, "Parse error")
		return &resp
	}

	if msg.JSONRPC != JSONRPCVersion || msg.Method == "" {
		if msg.Method == "" && (msg.Result != nil || msg.Error != nil) {
			// A response envelope from the client; the gateway issues no
			// client-bound requests, so there is nothing to correlate it with.
			return nil
		}
		resp := errorMessage(requestID(msg), jsonRPCInvalidRequestCode, "Invalid Request")
		return &resp
	}

	if msg.isNotification() {
		d.handleNotification(sess, msg)
		return nil
	}

	resp := d.handleRequest(ctx, sess, msg)

	d.logger.Debug("dispatched request",
		slog.String("sessionID", sess.ID()),
		slog.String("method", msg.Method),
		slog.Duration("elapsed", time.Since(started)),
		slog.Bool("failed", resp.Error != nil))

	return &resp
}

func (d *Dispatcher) handleNotification(sess *Session, msg JSONRPCMessage) {
	switch msg.Method {
	case methodNotificationsInitialized:
		sess.markInitialized()
	default:
		// Unknown notifications are ignored; notifications never get responses.
		d.logger.Debug("ignoring notification",
			slog.String("sessionID", sess.ID()),
			slog.String("method", msg.Method))
	}
}

func (d *Dispatcher) handleRequest(ctx context.Context, sess *Session, msg JSONRPCMessage) JSONRPCMessage {
	switch msg.Method {
	case methodInitialize:
		return d.handleInitialize(sess, msg)
	case methodPing:
		return resultMessage(msg.ID, struct{}{}, d.logger)
	case MethodResourcesList:
		if resp, ok := d.requireSession(sess, msg, d.strictPreInit); !ok {
			return resp
		}
		return resultMessage(msg.ID, d.registry.ListResources(), d.logger)
	case MethodToolsList:
		if resp, ok := d.requireSession(sess, msg, d.strictPreInit); !ok {
			return resp
		}
		return resultMessage(msg.ID, d.registry.ListTools(), d.logger)
	case MethodResourcesRead:
		if resp, ok := d.requireSession(sess, msg, true); !ok {
			return resp
		}
		return d.handleReadResource(ctx, sess, msg)
	case MethodToolsCall:
		if resp, ok := d.requireSession(sess, msg, true); !ok {
			return resp
		}
		return d.handleCallTool(ctx, sess, msg)
	default:
		return errorMessage(msg.ID, jsonRPCMethodNotFoundCode,
			fmt.Sprintf("method not found: %s", msg.Method))
	}
}

// requireSession enforces the pre-initialize policy. When required is false the
// method is tolerated on uninitialized sessions.
func (d *Dispatcher) requireSession(sess *Session, msg JSONRPCMessage, required bool) (JSONRPCMessage, bool) {
	if required && !sess.Initialized() {
		return errorMessage(msg.ID, jsonRPCInvalidRequestCode, "session not initialized"), false
	}
	return JSONRPCMessage{}, true
}

func (d *Dispatcher) handleInitialize(sess *Session, msg JSONRPCMessage) JSONRPCMessage {
	var params initializeParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return errorMessage(msg.ID, jsonRPCInvalidParamsCode,
			fmt.Sprintf("failed to unmarshal params: %s", err.Error()))
	}

	sess.recordInitialize(params)

	// The result always reports the version this server speaks; clients on a
	// different revision decide for themselves whether to proceed.
	return resultMessage(msg.ID, initializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    d.registry.Capabilities(),
		ServerInfo:      d.info,
		Instructions:    d.instructions,
	}, d.logger)
}

func (d *Dispatcher) handleReadResource(ctx context.Context, sess *Session, msg JSONRPCMessage) JSONRPCMessage {
	var params ReadResourceParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return errorMessage(msg.ID, jsonRPCInvalidParamsCode,
			fmt.Sprintf("failed to unmarshal params: %s", err.Error()))
	}

	entry, ok := d.registry.ResolveResource(params.URI)
	if !ok {
		return errorMessage(msg.ID, jsonRPCInvalidParamsCode,
			fmt.Sprintf("unknown resource: %s", params.URI))
	}

	result, err := d.safeReadResource(ctx, entry.Handler, params)
	if err != nil {
		d.logger.Error("resource handler failed",
			slog.String("sessionID", sess.ID()),
			slog.String("uri", params.URI),
			slog.String("err", err.Error()))
		return errorMessage(msg.ID, jsonRPCInternalErrorCode, "internal error")
	}

	return resultMessage(msg.ID, result, d.logger)
}

func (d *Dispatcher) handleCallTool(ctx context.Context, sess *Session, msg JSONRPCMessage) JSONRPCMessage {
	var params CallToolParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return errorMessage(msg.ID, jsonRPCInvalidParamsCode,
			fmt.Sprintf("failed to unmarshal params: %s", err.Error()))
	}

	entry, ok := d.registry.ResolveTool(params.Name)
	if !ok {
		return errorMessage(msg.ID, jsonRPCInvalidParamsCode,
			fmt.Sprintf("unknown tool: %s", params.Name))
	}

	result, err := d.safeCallTool(ctx, entry.Handler, params.Arguments)
	if err != nil {
		// Full detail stays server-side; the client gets a sanitized message.
		d.logger.Error("tool handler failed",
			slog.String("sessionID", sess.ID()),
			slog.String("tool", params.Name),
			slog.String("err", err.Error()))
		return errorMessage(msg.ID, jsonRPCInternalErrorCode, "internal error")
	}

	return resultMessage(msg.ID, result, d.logger)
}

// safeReadResource invokes the handler with panic isolation, so a faulty
// handler surfaces as an internal error instead of taking the process down.
func (d *Dispatcher) safeReadResource(
	ctx context.Context,
	handler ResourceHandler,
	params ReadResourceParams,
) (result ReadResourceResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("resource handler panic: %v", r)
		}
	}()
	return handler(ctx, params)
}

func (d *Dispatcher) safeCallTool(
	ctx context.Context,
	handler ToolHandler,
	args json.RawMessage,
) (result CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool handler panic: %v", r)
		}
	}()
	return handler(ctx, args)
}

// requestID returns the envelope's id, substituting an explicit null when the
// id is absent so error responses stay well-formed.
func requestID(msg JSONRPCMessage) json.RawMessage {
	if len(msg.ID) == 0 {
		return nullID
	}
	return msg.ID
}

func errorMessage(id json.RawMessage, code int, message string) JSONRPCMessage {
	return JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
	}
}

func resultMessage(id json.RawMessage, result any, logger *slog.Logger) JSONRPCMessage {
	resBs, err := json.Marshal(result)
	if err != nil {
		logger.Error("failed to marshal result", slog.String("err", err.Error()))
		return errorMessage(id, jsonRPCInternalErrorCode, "internal error")
	}
	return JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  resBs,
	}
}

func marshalResponse(msg JSONRPCMessage, logger *slog.Logger) []byte {
	bs, err := json.Marshal(msg)
	if err != nil {
		logger.Error("failed to marshal response", slog.String("err", err.Error()))
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`)
	}
	return bs
}
