// Package fplgate implements the transport-agnostic core of an MCP gateway:
// JSON-RPC 2.0 message types, a read-only capability registry of resources and
// tools, a dispatcher that turns request envelopes into response envelopes, and
// three transport adapters (Server-Sent Events, WebSocket, and plain HTTP POST)
// that share byte-identical payload semantics and differ only in framing.
package fplgate
