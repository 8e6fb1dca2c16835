// ABOUTME: Routes decoded JSON-RPC calls to the tool registry and packages the outcome.
// ABOUTME: Classifies registry errors into JSON-RPC codes; optionally rate limits and audits tools/call.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/outline-mcp-gateway/internal/audit"
	"github.com/2389/outline-mcp-gateway/internal/credential"
	"github.com/2389/outline-mcp-gateway/internal/ratelimit"
	"github.com/2389/outline-mcp-gateway/internal/registry"
)

// Supported MCP protocol versions.
var supportedProtocolVersions = map[string]bool{
	"2024-11-05": true,
	"2025-03-26": true,
	"2025-06-18": true,
	"2025-11-25": true,
}

// latestProtocolVersion is advertised when the client asks for one we don't know.
const latestProtocolVersion = "2025-11-25"

// AuditRecorder persists one row per tools/call. *audit.Store satisfies it.
type AuditRecorder interface {
	Record(ctx context.Context, e *audit.Entry) error
}

// DispatcherConfig holds the dispatcher's collaborators.
type DispatcherConfig struct {
	Registry      *registry.Registry
	Limiter       *ratelimit.Limiter // optional
	Audit         AuditRecorder      // optional
	Logger        *slog.Logger
	ServerName    string
	ServerVersion string
}

// Dispatcher answers initialize, tools/list and tools/call.
type Dispatcher struct {
	registry *registry.Registry
	limiter  *ratelimit.Limiter
	audit    AuditRecorder
	logger   *slog.Logger
	name     string
	version  string
}

// NewDispatcher creates a dispatcher over a populated registry.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.ServerName
	if name == "" {
		name = "outline-mcp-server"
	}
	version := cfg.ServerVersion
	if version == "" {
		version = "dev"
	}
	return &Dispatcher{
		registry: cfg.Registry,
		limiter:  cfg.Limiter,
		audit:    cfg.Audit,
		logger:   logger.With("component", "dispatcher"),
		name:     name,
		version:  version,
	}, nil
}

// Decode parses a raw request body. A body that is not JSON yields a
// ParseError response with a null id; a body that is JSON but not a valid
// request yields InvalidRequest, echoing the id if one could be read.
func Decode(body []byte) (Request, *Response) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || !json.Valid(body) {
			resp := failure(nil, CodeParseError, "parse error: invalid JSON")
			return req, &resp
		}
		resp := failure(salvageID(body), CodeInvalidRequest, "invalid request: "+err.Error())
		return req, &resp
	}
	if req.JSONRPC != "2.0" {
		resp := failure(req.ID, CodeInvalidRequest, "invalid request: jsonrpc must be \"2.0\"")
		return req, &resp
	}
	if req.Method == "" {
		resp := failure(req.ID, CodeInvalidRequest, "invalid request: method is required")
		return req, &resp
	}
	return req, nil
}

// salvageID extracts the id from a body whose other fields have the wrong shape.
func salvageID(body []byte) json.RawMessage {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil
	}
	return probe.ID
}

// Dispatch handles a decoded request. The context must carry the request's
// credential for tools/call to reach Outline.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	call, rpcErr := decodeCall(req)
	if rpcErr != nil {
		d.logger.Debug("rejected request", "method", req.Method, "code", rpcErr.Code, "error", rpcErr.Message)
		return Response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	}

	switch c := call.(type) {
	case InitializeCall:
		return result(req.ID, d.initialize(c))
	case ListToolsCall:
		return result(req.ID, ListToolsResult{Tools: d.registry.List()})
	case CallToolCall:
		return d.callTool(ctx, req.ID, c)
	default:
		return failure(req.ID, CodeInternalError, fmt.Sprintf("unhandled call %T", call))
	}
}

// InitializeResult is the initialize handshake response.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
}

// ServerInfo identifies this server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func (d *Dispatcher) initialize(c InitializeCall) InitializeResult {
	version := c.ProtocolVersion
	if !supportedProtocolVersions[version] {
		version = latestProtocolVersion
	}
	d.logger.Info("MCP client initialized",
		"client", c.ClientInfo.Name,
		"client_version", c.ClientInfo.Version,
		"protocol_version", version,
	)
	return InitializeResult{
		ProtocolVersion: version,
		Capabilities: map[string]any{
			"tools": map[string]any{"listChanged": false},
		},
		ServerInfo: ServerInfo{Name: d.name, Version: d.version},
	}
}

// ListToolsResult is the tools/list response.
type ListToolsResult struct {
	Tools []registry.Info `json:"tools"`
}

// CallToolResult is the tools/call response.
type CallToolResult struct {
	Content           []Content `json:"content"`
	StructuredContent any       `json:"structuredContent,omitempty"`
	IsError           bool      `json:"isError,omitempty"`
}

// Content is one block of tool output.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (d *Dispatcher) callTool(ctx context.Context, id json.RawMessage, c CallToolCall) Response {
	requestID := uuid.New().String()
	start := time.Now()
	logger := d.logger.With("tool", c.Name, "request_id", requestID)

	resp := d.invoke(ctx, id, c, logger)

	code := 0
	if resp.Error != nil {
		code = resp.Error.Code
		logger.Warn("tools/call failed", "code", code, "error", resp.Error.Message, "duration", time.Since(start))
	} else {
		logger.Debug("tools/call complete", "duration", time.Since(start))
	}
	d.record(ctx, requestID, c.Name, code, time.Since(start))
	return resp
}

func (d *Dispatcher) invoke(ctx context.Context, id json.RawMessage, c CallToolCall, logger *slog.Logger) Response {
	if _, ok := d.registry.Get(c.Name); !ok {
		return failure(id, CodeInvalidParams, (&registry.ToolNotFoundError{Name: c.Name}).Error())
	}
	if !d.limiter.AllowTool(c.Name) {
		return failure(id, CodeServerError, fmt.Sprintf("rate limit exceeded for tool %s", c.Name))
	}

	logger.Debug("tools/call")
	out, err := d.registry.Invoke(ctx, c.Name, c.Arguments)
	if err != nil {
		return failure(id, classify(err), err.Error())
	}

	text, err := json.Marshal(out)
	if err != nil {
		return failure(id, CodeInternalError, fmt.Sprintf("encoding output of tool %s: %v", c.Name, err))
	}
	return result(id, CallToolResult{
		Content:           []Content{{Type: "text", Text: string(text)}},
		StructuredContent: out,
	})
}

// classify maps registry and credential errors onto JSON-RPC codes.
func classify(err error) int {
	var notFound *registry.ToolNotFoundError
	var invalid *registry.InvalidArgumentsError
	switch {
	case errors.As(err, &notFound), errors.As(err, &invalid):
		return CodeInvalidParams
	case errors.Is(err, credential.ErrMissing):
		return CodeServerError
	default:
		return CodeInternalError
	}
}

func (d *Dispatcher) record(ctx context.Context, requestID, tool string, code int, elapsed time.Duration) {
	if d.audit == nil {
		return
	}
	fingerprint := ""
	if c := credential.FromContext(ctx); c != nil {
		if v, ok := c.Credential(); ok {
			fingerprint = credential.Fingerprint(v)
		}
	}
	// The call context may already be cancelled by the time the row is written.
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	err := d.audit.Record(auditCtx, &audit.Entry{
		RequestID:             requestID,
		Tool:                  tool,
		CredentialFingerprint: fingerprint,
		Code:                  code,
		Duration:              elapsed,
	})
	if err != nil {
		d.logger.Warn("failed to record tool call", "request_id", requestID, "error", err)
	}
}
