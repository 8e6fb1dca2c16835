// ABOUTME: Manifest assembly and shared helpers for the Outline tool set.
// ABOUTME: All returns definitions in a fixed order; Register loads them into a registry.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/2389/outline-mcp-gateway/internal/registry"
)

// Caller performs one Outline API call. *outline.Client satisfies it.
type Caller interface {
	Call(ctx context.Context, endpoint string, body any, out any) error
}

// Names lists every tool in registration order.
var Names = []string{
	"archiveDocument",
	"askDocuments",
	"createCollection",
	"createComment",
	"createDocument",
	"createTemplateFromDocument",
	"deleteComment",
	"deleteDocument",
	"getCollection",
	"getDocument",
	"listCollections",
	"listDocuments",
	"listUsers",
	"moveDocument",
	"searchDocuments",
	"updateCollection",
	"updateComment",
	"updateDocument",
}

// All returns every tool definition bound to c, in Names order.
func All(c Caller) []registry.Definition {
	var defs []registry.Definition
	defs = append(defs, documentTools(c)...)
	defs = append(defs, collectionTools(c)...)
	defs = append(defs, commentTools(c)...)
	defs = append(defs, userTools(c)...)

	slices.SortStableFunc(defs, func(a, b registry.Definition) int {
		return slices.Index(Names, a.Name) - slices.Index(Names, b.Name)
	})
	return defs
}

// Register adds every tool to r. It stops at the first registration error.
func Register(r *registry.Registry, c Caller) error {
	for _, def := range All(c) {
		if err := r.Register(def); err != nil {
			return fmt.Errorf("registering %s: %w", def.Name, err)
		}
	}
	return nil
}

func decode[T any](input json.RawMessage) (T, error) {
	var in T
	if err := json.Unmarshal(input, &in); err != nil {
		return in, fmt.Errorf("invalid input: %w", err)
	}
	return in, nil
}

// object calls endpoint and wraps the returned record under key.
func object(ctx context.Context, c Caller, endpoint string, body any, key string) (any, error) {
	var data map[string]any
	if err := c.Call(ctx, endpoint, body, &data); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%s returned no %s", endpoint, key)
	}
	return map[string]any{key: data}, nil
}

// list calls endpoint and wraps the returned array under key.
func list(ctx context.Context, c Caller, endpoint string, body any, key string) (any, error) {
	var data []any
	if err := c.Call(ctx, endpoint, body, &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = []any{}
	}
	return map[string]any{key: data}, nil
}

// deleted calls endpoint and reports the id that was removed.
func deleted(ctx context.Context, c Caller, endpoint string, body any, id string) (any, error) {
	if err := c.Call(ctx, endpoint, body, nil); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "id": id}, nil
}

// Output contracts shared by several tools.
func objectOutput(key string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"type":"object","properties":{%q:{"type":"object"}},"required":[%q]}`, key, key))
}

func listOutput(key string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"type":"object","properties":{%q:{"type":"array","items":{"type":"object"}}},"required":[%q]}`, key, key))
}

const deletedOutput = `{"type":"object","properties":{"success":{"type":"boolean"},"id":{"type":"string"}},"required":["success","id"]}`

// pagination is embedded by list-style inputs.
type pagination struct {
	Offset int `json:"offset,omitempty"`
	Limit  int `json:"limit,omitempty"`
}

const paginationProps = `"offset":{"type":"integer","minimum":0,"description":"Number of records to skip"},
		"limit":{"type":"integer","minimum":1,"maximum":100,"description":"Maximum number of records to return"}`
