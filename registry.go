package fplgate

import (
	"context"
	"encoding/json"
)

// ResourceHandler produces the contents of a single resource. Implementations
// receive only the read parameters and report failures through the returned
// error; the dispatcher converts any failure into a JSON-RPC error envelope.
type ResourceHandler func(ctx context.Context, params ReadResourceParams) (ReadResourceResult, error)

// ToolHandler executes a single tool call with the raw JSON arguments the
// client supplied. Implementations report failures through the returned error;
// the dispatcher converts any failure into a JSON-RPC error envelope.
type ToolHandler func(ctx context.Context, args json.RawMessage) (CallToolResult, error)

// ResourceEntry pairs a resource descriptor with its handler for registration.
type ResourceEntry struct {
	Resource Resource
	Handler  ResourceHandler
}

// ToolEntry pairs a tool descriptor with its handler for registration.
type ToolEntry struct {
	Tool    Tool
	Handler ToolHandler
}

// Registry is the process-wide table of declared resources and tools. It is
// built once at startup and never mutated afterwards, so all lookups run
// without locking and the same instance is shared by every session on every
// transport.
type Registry struct {
	resources map[string]ResourceEntry
	tools     map[string]ToolEntry

	resourceList ListResourcesResult
	toolList     ListToolsResult
}

// NewRegistry builds an immutable registry from the given resource and tool
// entries. The list results returned by resources/list and tools/list are
// precomputed here, preserving registration order.
func NewRegistry(resources []ResourceEntry, tools []ToolEntry) *Registry {
	r := &Registry{
		resources: make(map[string]ResourceEntry, len(resources)),
		tools:     make(map[string]ToolEntry, len(tools)),
	}

	r.resourceList.Resources = make([]Resource, 0, len(resources))
	for _, re := range resources {
		r.resources[re.Resource.URI] = re
		r.resourceList.Resources = append(r.resourceList.Resources, re.Resource)
	}

	r.toolList.Tools = make([]Tool, 0, len(tools))
	for _, te := range tools {
		r.tools[te.Tool.Name] = te
		r.toolList.Tools = append(r.toolList.Tools, te.Tool)
	}

	return r
}

// ListResources returns the precomputed resource list.
func (r *Registry) ListResources() ListResourcesResult { return r.resourceList }

// ListTools returns the precomputed tool list.
func (r *Registry) ListTools() ListToolsResult { return r.toolList }

// ResolveResource looks up the handler registered for the given resource URI.
func (r *Registry) ResolveResource(uri string) (ResourceEntry, bool) {
	re, ok := r.resources[uri]
	return re, ok
}

// ResolveTool looks up the handler registered for the given tool name.
func (r *Registry) ResolveTool(name string) (ToolEntry, bool) {
	te, ok := r.tools[name]
	return te, ok
}

// Capabilities reports the capability map advertised in the initialize result.
// Both resources and tools are always present; the gateway's capability set is
// fixed at startup.
func (r *Registry) Capabilities() ServerCapabilities {
	return ServerCapabilities{
		Resources: &ResourcesCapability{},
		Tools:     &ToolsCapability{},
	}
}
