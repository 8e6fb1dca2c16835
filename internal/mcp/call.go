// ABOUTME: Decodes a request's method and params into one typed call variant.
// ABOUTME: Unknown methods and malformed params are rejected before any handler runs.

package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Method names served by the dispatcher.
const (
	MethodInitialize = "initialize"
	MethodToolsList  = "tools/list"
	MethodToolsCall  = "tools/call"
)

// Call is one of InitializeCall, ListToolsCall or CallToolCall.
type Call interface {
	method() string
}

// ClientInfo identifies the connecting client.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeCall is the initialize handshake.
type InitializeCall struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Capabilities    json.RawMessage `json:"capabilities,omitempty"`
	ClientInfo      ClientInfo      `json:"clientInfo"`
}

func (InitializeCall) method() string { return MethodInitialize }

// ListToolsCall asks for tool metadata. The cursor is accepted and ignored;
// the tool set always fits in one page.
type ListToolsCall struct {
	Cursor string `json:"cursor,omitempty"`
}

func (ListToolsCall) method() string { return MethodToolsList }

// CallToolCall invokes a named tool.
type CallToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

func (CallToolCall) method() string { return MethodToolsCall }

// decodeCall turns req into a typed call. Missing params decode as the
// zero value of the variant.
func decodeCall(req Request) (Call, *Error) {
	switch req.Method {
	case MethodInitialize:
		var c InitializeCall
		if err := decodeParams(req.Params, &c); err != nil {
			return nil, err
		}
		return c, nil

	case MethodToolsList:
		var c ListToolsCall
		if err := decodeParams(req.Params, &c); err != nil {
			return nil, err
		}
		return c, nil

	case MethodToolsCall:
		var c CallToolCall
		if err := decodeParams(req.Params, &c); err != nil {
			return nil, err
		}
		if c.Name == "" {
			return nil, &Error{Code: CodeInvalidParams, Message: "invalid params: tool name is required"}
		}
		if len(c.Arguments) == 0 || bytes.Equal(c.Arguments, []byte("null")) {
			c.Arguments = json.RawMessage(`{}`)
		}
		return c, nil

	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
	}
}

func decodeParams(raw json.RawMessage, dst any) *Error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}
