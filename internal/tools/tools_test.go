// ABOUTME: Tests for the Outline tool manifest using a fake Caller.
// ABOUTME: Runs each tool through a real registry so input and output contracts are exercised.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/outline-mcp-gateway/internal/registry"
)

type recordedCall struct {
	Endpoint string
	Body     map[string]any
}

// fakeCaller answers each endpoint with a canned JSON payload.
type fakeCaller struct {
	mu        sync.Mutex
	responses map[string]string
	err       error
	calls     []recordedCall
}

func (f *fakeCaller) Call(_ context.Context, endpoint string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	var decoded map[string]any
	_ = json.Unmarshal(raw, &decoded)

	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{Endpoint: endpoint, Body: decoded})
	f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	if out == nil {
		return nil
	}
	resp, ok := f.responses[endpoint]
	if !ok {
		resp = "null"
	}
	return json.Unmarshal([]byte(resp), out)
}

func (f *fakeCaller) last(t *testing.T) recordedCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

func newRegistry(t *testing.T, c Caller) *registry.Registry {
	t.Helper()
	r := registry.New(nil)
	require.NoError(t, Register(r, c))
	r.Seal()
	return r
}

func TestAll_ManifestOrder(t *testing.T) {
	defs := All(&fakeCaller{})
	require.Len(t, defs, len(Names))
	for i, def := range defs {
		assert.Equal(t, Names[i], def.Name)
		assert.NotEmpty(t, def.Description, def.Name)
		assert.NotNil(t, def.Handler, def.Name)
	}
}

func TestRegister_AllSchemasCompile(t *testing.T) {
	r := newRegistry(t, &fakeCaller{})
	assert.Equal(t, 18, r.Len())

	infos := r.List()
	assert.Equal(t, "archiveDocument", infos[0].Name)
	assert.Equal(t, "updateDocument", infos[len(infos)-1].Name)
}

func TestRegister_Twice(t *testing.T) {
	r := registry.New(nil)
	c := &fakeCaller{}
	require.NoError(t, Register(r, c))

	err := Register(r, c)
	var dup *registry.DuplicateToolError
	assert.ErrorAs(t, err, &dup)
}

func TestTools_EndpointMapping(t *testing.T) {
	c := &fakeCaller{responses: map[string]string{
		"documents.archive":        `{"id":"d1"}`,
		"documents.answerQuestion": `{"search":{"answer":"yes"},"documents":[]}`,
		"collections.create":       `{"id":"c1","name":"Eng"}`,
		"comments.create":          `{"id":"cm1"}`,
		"documents.create":         `{"id":"d2"}`,
		"documents.templatize":     `{"id":"t1","template":true}`,
		"collections.info":         `{"id":"c1"}`,
		"documents.info":           `{"id":"d1","text":"# Hi"}`,
		"collections.list":         `[{"id":"c1"}]`,
		"documents.list":           `[{"id":"d1"}]`,
		"users.list":               `[{"id":"u1"}]`,
		"documents.move":           `{"documents":[{"id":"d1"}],"collections":[]}`,
		"documents.search":         `[{"context":"...","ranking":1,"document":{"id":"d1"}}]`,
		"collections.update":       `{"id":"c1"}`,
		"comments.update":          `{"id":"cm1"}`,
		"documents.update":         `{"id":"d1"}`,
	}}
	r := newRegistry(t, c)

	tests := []struct {
		tool     string
		args     string
		endpoint string
		key      string
	}{
		{"archiveDocument", `{"id":"d1"}`, "documents.archive", "document"},
		{"askDocuments", `{"query":"is it?"}`, "documents.answerQuestion", "search"},
		{"createCollection", `{"name":"Eng","color":"#4E5C6E"}`, "collections.create", "collection"},
		{"createComment", `{"documentId":"d1","text":"nice"}`, "comments.create", "comment"},
		{"createDocument", `{"title":"T","collectionId":"c1"}`, "documents.create", "document"},
		{"createTemplateFromDocument", `{"id":"d1"}`, "documents.templatize", "document"},
		{"deleteComment", `{"id":"cm1"}`, "comments.delete", "success"},
		{"deleteDocument", `{"id":"d1"}`, "documents.delete", "success"},
		{"getCollection", `{"id":"c1"}`, "collections.info", "collection"},
		{"getDocument", `{"id":"d1"}`, "documents.info", "document"},
		{"listCollections", `{}`, "collections.list", "collections"},
		{"listDocuments", `{"collectionId":"c1","limit":10}`, "documents.list", "documents"},
		{"listUsers", `{"query":"ann"}`, "users.list", "users"},
		{"moveDocument", `{"id":"d1","collectionId":"c2"}`, "documents.move", "documents"},
		{"searchDocuments", `{"query":"roadmap"}`, "documents.search", "results"},
		{"updateCollection", `{"id":"c1","name":"Platform"}`, "collections.update", "collection"},
		{"updateComment", `{"id":"cm1","text":"edited"}`, "comments.update", "comment"},
		{"updateDocument", `{"id":"d1","text":"more","append":true}`, "documents.update", "document"},
	}
	require.Len(t, tests, len(Names))

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			out, err := r.Invoke(context.Background(), tt.tool, json.RawMessage(tt.args))
			require.NoError(t, err)

			assert.Equal(t, tt.endpoint, c.last(t).Endpoint)
			m, ok := out.(map[string]any)
			require.True(t, ok, "output must be an object")
			assert.Contains(t, m, tt.key)
		})
	}
}

func TestTools_OmitsUnsetOptionalFields(t *testing.T) {
	c := &fakeCaller{responses: map[string]string{"documents.list": `[]`}}
	r := newRegistry(t, c)

	_, err := r.Invoke(context.Background(), "listDocuments", json.RawMessage(`{"collectionId":"c1","offset":5}`))
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"collectionId": "c1", "offset": float64(5)}, c.last(t).Body)
}

func TestTools_EmptyListBecomesArray(t *testing.T) {
	c := &fakeCaller{responses: map[string]string{"collections.list": `null`}}
	r := newRegistry(t, c)

	out, err := r.Invoke(context.Background(), "listCollections", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"collections": []any{}}, out)
}

func TestTools_DeleteReportsID(t *testing.T) {
	c := &fakeCaller{}
	r := newRegistry(t, c)

	out, err := r.Invoke(context.Background(), "deleteDocument", json.RawMessage(`{"id":"d9","permanent":true}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"success": true, "id": "d9"}, out)
	assert.Equal(t, true, c.last(t).Body["permanent"])
}

func TestGetDocument_HTMLFormat(t *testing.T) {
	c := &fakeCaller{responses: map[string]string{
		"documents.info": `{"id":"d1","title":"Plan","text":"# Roadmap\n\n- [x] ship"}`,
	}}
	r := newRegistry(t, c)

	out, err := r.Invoke(context.Background(), "getDocument", json.RawMessage(`{"id":"d1","format":"html"}`))
	require.NoError(t, err)

	doc := out.(map[string]any)["document"].(map[string]any)
	html, ok := doc["html"].(string)
	require.True(t, ok)
	assert.Contains(t, html, "<h1>Roadmap</h1>")
	assert.Contains(t, html, `type="checkbox"`)
	assert.Equal(t, map[string]any{"id": "d1"}, c.last(t).Body, "format is not forwarded to Outline")
}

func TestTools_InvalidArguments(t *testing.T) {
	r := newRegistry(t, &fakeCaller{})

	tests := []struct {
		tool string
		args string
	}{
		{"getDocument", `{}`},
		{"getDocument", `{"id":"d1","format":"pdf"}`},
		{"createDocument", `{"title":"T"}`},
		{"listCollections", `{"limit":0}`},
		{"listCollections", `{"limit":500}`},
		{"createCollection", `{"name":"x","color":"red"}`},
		{"moveDocument", `{"id":"d1"}`},
		{"searchDocuments", `{"query":""}`},
		{"listUsers", `{"bogus":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.tool+" "+tt.args, func(t *testing.T) {
			_, err := r.Invoke(context.Background(), tt.tool, json.RawMessage(tt.args))
			var invalid *registry.InvalidArgumentsError
			assert.ErrorAs(t, err, &invalid)
		})
	}
}

func TestTools_CallerFailureIsExecutionError(t *testing.T) {
	cause := errors.New("outline unreachable")
	r := newRegistry(t, &fakeCaller{err: cause})

	_, err := r.Invoke(context.Background(), "listUsers", nil)

	var execErr *registry.ToolExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.ErrorIs(t, err, cause)
}
