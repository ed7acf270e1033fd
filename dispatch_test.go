package fplgate_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/fplmcp/fplgate"
)

func testRegistry(resourceCalls, toolCalls *int) *fplgate.Registry {
	resources := []fplgate.ResourceEntry{
		{
			Resource: fplgate.Resource{
				URI:      "test://data",
				Name:     "Test Data",
				MimeType: "application/json",
			},
			Handler: func(_ context.Context, params fplgate.ReadResourceParams) (fplgate.ReadResourceResult, error) {
				if resourceCalls != nil {
					*resourceCalls++
				}
				return fplgate.ReadResourceResult{
					Contents: []fplgate.ResourceContents{
						{
							URI:      params.URI,
							MimeType: "application/json",
							Text:     `{"ok":true}`,
						},
					},
				}, nil
			},
		},
	}
	tools := []fplgate.ToolEntry{
		{
			Tool: fplgate.Tool{
				Name:        "echo",
				InputSchema: json.RawMessage(`{"type":"object"}`),
			},
			Handler: func(_ context.Context, args json.RawMessage) (fplgate.CallToolResult, error) {
				if toolCalls != nil {
					*toolCalls++
				}
				return fplgate.CallToolResult{
					Content: []fplgate.Content{
						{Type: fplgate.ContentTypeText, Text: string(args)},
					},
				}, nil
			},
		},
		{
			Tool: fplgate.Tool{Name: "boom"},
			Handler: func(context.Context, json.RawMessage) (fplgate.CallToolResult, error) {
				return fplgate.CallToolResult{}, errors.New("handler blew up")
			},
		},
	}
	return fplgate.NewRegistry(resources, tools)
}

func testDispatcher(t *testing.T, options ...fplgate.DispatcherOption) *fplgate.Dispatcher {
	t.Helper()
	return fplgate.NewDispatcher(fplgate.Info{
		Name:    "test-gateway",
		Version: "0.0.1",
	}, testRegistry(nil, nil), options...)
}

func initializedSession(t *testing.T, d *fplgate.Dispatcher) *fplgate.Session {
	t.Helper()

	sess := fplgate.NewSession()
	resp := d.Dispatch(context.Background(), sess,
		[]byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"0"}}}`))
	if resp == nil {
		t.Fatal("expected initialize response")
	}
	var msg fplgate.JSONRPCMessage
	if err := json.Unmarshal(resp, &msg); err != nil {
		t.Fatalf("failed to unmarshal initialize response: %v", err)
	}
	if msg.Error != nil {
		t.Fatalf("initialize failed: %v", msg.Error)
	}

	if resp := d.Dispatch(context.Background(), sess,
		[]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)); resp != nil {
		t.Fatalf("expected no response to initialized notification, got %s", resp)
	}
	return sess
}

func dispatchOne(t *testing.T, d *fplgate.Dispatcher, sess *fplgate.Session, payload string) fplgate.JSONRPCMessage {
	t.Helper()

	resp := d.Dispatch(context.Background(), sess, []byte(payload))
	if resp == nil {
		t.Fatalf("expected a response for payload %s", payload)
	}
	var msg fplgate.JSONRPCMessage
	if err := json.Unmarshal(resp, &msg); err != nil {
		t.Fatalf("failed to unmarshal response %s: %v", resp, err)
	}
	return msg
}

func TestDispatchInitialize(t *testing.T) {
	d := testDispatcher(t)
	sess := fplgate.NewSession()

	msg := dispatchOne(t, d, sess,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"0"}}}`)

	if msg.Error != nil {
		t.Fatalf("unexpected error: %v", msg.Error)
	}
	if !bytes.Equal(msg.ID, json.RawMessage(`1`)) {
		t.Fatalf("expected id 1, got %s", msg.ID)
	}

	var result struct {
		ProtocolVersion string `json:"protocolVersion"`
		Capabilities    struct {
			Resources *struct{} `json:"resources"`
			Tools     *struct{} `json:"tools"`
		} `json:"capabilities"`
		ServerInfo fplgate.Info `json:"serverInfo"`
	}
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	if result.ProtocolVersion != "2024-11-05" {
		t.Errorf("expected protocolVersion 2024-11-05, got %s", result.ProtocolVersion)
	}
	if result.Capabilities.Resources == nil || result.Capabilities.Tools == nil {
		t.Error("expected both resources and tools capabilities to be advertised")
	}
	if result.ServerInfo.Name != "test-gateway" {
		t.Errorf("expected serverInfo name test-gateway, got %s", result.ServerInfo.Name)
	}
}

func TestDispatchParseError(t *testing.T) {
	var resourceCalls, toolCalls int
	d := fplgate.NewDispatcher(fplgate.Info{Name: "test", Version: "0"},
		testRegistry(&resourceCalls, &toolCalls))
	sess := fplgate.NewSession()

	msg := dispatchOne(t, d, sess, `{"jsonrpc":"2.0","id":1,`)

	if msg.Error == nil {
		t.Fatal("expected an error response")
	}
	if msg.Error.Code != -32700 {
		t.Errorf("expected code -32700, got %d", msg.Error.Code)
	}
	if !bytes.Equal(msg.ID, json.RawMessage(`null`)) {
		t.Errorf("expected null id, got %s", msg.ID)
	}
	if resourceCalls != 0 || toolCalls != 0 {
		t.Errorf("expected no handler invocations, got %d resource and %d tool calls",
			resourceCalls, toolCalls)
	}
}

func TestDispatchMethodNotFound(t *testing.T) {
	d := testDispatcher(t)
	sess := initializedSession(t, d)

	msg := dispatchOne(t, d, sess, `{"jsonrpc":"2.0","id":2,"method":"resources/subscribe"}`)

	if msg.Error == nil {
		t.Fatal("expected an error response")
	}
	if msg.Error.Code != -32601 {
		t.Errorf("expected code -32601, got %d", msg.Error.Code)
	}
}

func TestDispatchEchoesIDVerbatim(t *testing.T) {
	d := testDispatcher(t)
	sess := initializedSession(t, d)

	for _, id := range []string{`42`, `"abc-123"`, `"42"`} {
		payload := fmt.Sprintf(`{"jsonrpc":"2.0","id":%s,"method":"ping"}`, id)
		msg := dispatchOne(t, d, sess, payload)
		if !bytes.Equal(msg.ID, json.RawMessage(id)) {
			t.Errorf("expected id %s echoed back, got %s", id, msg.ID)
		}
	}
}

func TestDispatchExplicitNullIDIsARequest(t *testing.T) {
	d := testDispatcher(t)
	sess := initializedSession(t, d)

	// Only an absent id marks a notification; a literal null is a request and
	// gets its null echoed back.
	msg := dispatchOne(t, d, sess, `{"jsonrpc":"2.0","id":null,"method":"ping"}`)
	if msg.Error != nil {
		t.Fatalf("unexpected error: %v", msg.Error)
	}
	if !bytes.Equal(msg.ID, json.RawMessage(`null`)) {
		t.Errorf("expected null id echoed back, got %s", msg.ID)
	}
}

func TestDispatchNotificationGetsNoResponse(t *testing.T) {
	d := testDispatcher(t)
	sess := initializedSession(t, d)

	if resp := d.Dispatch(context.Background(), sess,
		[]byte(`{"jsonrpc":"2.0","method":"notifications/progress"}`)); resp != nil {
		t.Fatalf("expected no response, got %s", resp)
	}
}

func TestDispatchBatch(t *testing.T) {
	d := testDispatcher(t)
	sess := initializedSession(t, d)

	payload := `[
		{"jsonrpc":"2.0","id":1,"method":"ping"},
		{"foo":"bar"},
		{"jsonrpc":"2.0","method":"notifications/initialized"},
		{"jsonrpc":"2.0","id":2,"method":"tools/list"}
	]`

	resp := d.Dispatch(context.Background(), sess, []byte(payload))
	if resp == nil {
		t.Fatal("expected a batch response")
	}

	var msgs []fplgate.JSONRPCMessage
	if err := json.Unmarshal(resp, &msgs); err != nil {
		t.Fatalf("failed to unmarshal batch response %s: %v", resp, err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(msgs))
	}

	if !bytes.Equal(msgs[0].ID, json.RawMessage(`1`)) || msgs[0].Error != nil {
		t.Errorf("expected first response to be a ping result with id 1, got %+v", msgs[0])
	}
	if msgs[1].Error == nil || msgs[1].Error.Code != -32600 {
		t.Errorf("expected second response to be Invalid Request, got %+v", msgs[1])
	}
	if !bytes.Equal(msgs[2].ID, json.RawMessage(`2`)) || msgs[2].Error != nil {
		t.Errorf("expected third response to be a tools/list result with id 2, got %+v", msgs[2])
	}
}

func TestDispatchBatchWithMalformedEntry(t *testing.T) {
	d := testDispatcher(t)
	sess := initializedSession(t, d)

	payload := `[
		{"jsonrpc":"2.0","id":1,"method":"ping"},
		"not an envelope",
		{"jsonrpc":"2.0","id":2,"method":"ping"}
	]`

	resp := d.Dispatch(context.Background(), sess, []byte(payload))
	if resp == nil {
		t.Fatal("expected a batch response")
	}

	var msgs []fplgate.JSONRPCMessage
	if err := json.Unmarshal(resp, &msgs); err != nil {
		t.Fatalf("failed to unmarshal batch response %s: %v", resp, err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(msgs))
	}
	if msgs[0].Error != nil || msgs[2].Error != nil {
		t.Errorf("expected the valid requests to succeed, got %+v and %+v", msgs[0], msgs[2])
	}
	if msgs[1].Error == nil || msgs[1].Error.Code != -32700 {
		t.Errorf("expected -32700 for the malformed entry, got %+v", msgs[1])
	}
	if !bytes.Equal(msgs[0].ID, json.RawMessage(`1`)) || !bytes.Equal(msgs[2].ID, json.RawMessage(`2`)) {
		t.Errorf("expected input order preserved, got ids %s and %s", msgs[0].ID, msgs[2].ID)
	}
}

func TestDispatchEmptyBatch(t *testing.T) {
	d := testDispatcher(t)
	sess := fplgate.NewSession()

	msg := dispatchOne(t, d, sess, `[]`)
	if msg.Error == nil || msg.Error.Code != -32600 {
		t.Fatalf("expected Invalid Request for empty batch, got %+v", msg)
	}
}

func TestDispatchBatchOfNotifications(t *testing.T) {
	d := testDispatcher(t)
	sess := initializedSession(t, d)

	if resp := d.Dispatch(context.Background(), sess,
		[]byte(`[{"jsonrpc":"2.0","method":"notifications/initialized"}]`)); resp != nil {
		t.Fatalf("expected no response, got %s", resp)
	}
}

func TestDispatchPreInitialize(t *testing.T) {
	d := testDispatcher(t)
	sess := fplgate.NewSession()

	// Discovery is tolerated before the handshake.
	msg := dispatchOne(t, d, sess, `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`)
	if msg.Error != nil {
		t.Errorf("expected resources/list to succeed pre-initialize, got %v", msg.Error)
	}

	// Reads and calls are not.
	msg = dispatchOne(t, d, sess,
		`{"jsonrpc":"2.0","id":2,"method":"resources/read","params":{"uri":"test://data"}}`)
	if msg.Error == nil || msg.Error.Code != -32600 {
		t.Errorf("expected resources/read to fail pre-initialize with -32600, got %+v", msg)
	}

	msg = dispatchOne(t, d, sess,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"echo","arguments":{}}}`)
	if msg.Error == nil || msg.Error.Code != -32600 {
		t.Errorf("expected tools/call to fail pre-initialize with -32600, got %+v", msg)
	}
}

func TestDispatchStrictPreInitialize(t *testing.T) {
	d := testDispatcher(t, fplgate.WithStrictPreInitialize())
	sess := fplgate.NewSession()

	msg := dispatchOne(t, d, sess, `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`)
	if msg.Error == nil || msg.Error.Code != -32600 {
		t.Errorf("expected resources/list to fail in strict mode, got %+v", msg)
	}

	// Ping is always allowed.
	msg = dispatchOne(t, d, sess, `{"jsonrpc":"2.0","id":2,"method":"ping"}`)
	if msg.Error != nil {
		t.Errorf("expected ping to succeed pre-initialize, got %v", msg.Error)
	}
}

func TestDispatchReadResource(t *testing.T) {
	d := testDispatcher(t)
	sess := initializedSession(t, d)

	msg := dispatchOne(t, d, sess,
		`{"jsonrpc":"2.0","id":5,"method":"resources/read","params":{"uri":"test://data"}}`)
	if msg.Error != nil {
		t.Fatalf("unexpected error: %v", msg.Error)
	}

	var result fplgate.ReadResourceResult
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	if len(result.Contents) != 1 {
		t.Fatalf("expected 1 content block, got %d", len(result.Contents))
	}
	if result.Contents[0].URI != "test://data" {
		t.Errorf("expected content to echo uri test://data, got %s", result.Contents[0].URI)
	}
}

func TestDispatchUnknownResource(t *testing.T) {
	d := testDispatcher(t)
	sess := initializedSession(t, d)

	msg := dispatchOne(t, d, sess,
		`{"jsonrpc":"2.0","id":6,"method":"resources/read","params":{"uri":"test://missing"}}`)
	if msg.Error == nil || msg.Error.Code != -32602 {
		t.Fatalf("expected -32602 for unknown resource, got %+v", msg)
	}
}

func TestDispatchCallTool(t *testing.T) {
	d := testDispatcher(t)
	sess := initializedSession(t, d)

	msg := dispatchOne(t, d, sess,
		`{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"echo","arguments":{"hello":"world"}}}`)
	if msg.Error != nil {
		t.Fatalf("unexpected error: %v", msg.Error)
	}

	var result fplgate.CallToolResult
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0].Text != `{"hello":"world"}` {
		t.Fatalf("expected echoed arguments, got %+v", result)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	d := testDispatcher(t)
	sess := initializedSession(t, d)

	msg := dispatchOne(t, d, sess,
		`{"jsonrpc":"2.0","id":8,"method":"tools/call","params":{"name":"missing","arguments":{}}}`)
	if msg.Error == nil || msg.Error.Code != -32602 {
		t.Fatalf("expected -32602 for unknown tool, got %+v", msg)
	}
}

func TestDispatchToolHandlerError(t *testing.T) {
	d := testDispatcher(t)
	sess := initializedSession(t, d)

	msg := dispatchOne(t, d, sess,
		`{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{"name":"boom","arguments":{}}}`)
	if msg.Error == nil || msg.Error.Code != -32603 {
		t.Fatalf("expected -32603 for failing handler, got %+v", msg)
	}
	if msg.Error.Message != "internal error" {
		t.Errorf("expected sanitized message, got %q", msg.Error.Message)
	}
}
