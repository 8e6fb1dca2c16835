// ABOUTME: HTTP transport for MCP: resolves the caller's Outline credential and runs the dispatcher.
// ABOUTME: Each request leases an execution unit whose credential context is reset on every exit path.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/2389/outline-mcp-gateway/internal/credential"
)

// DefaultMaxBodyBytes is the request body limit when none is configured (1MB).
const DefaultMaxBodyBytes = 1 << 20

// Credential headers, highest priority first.
const (
	HeaderAPIKey       = "x-outline-api-key"
	HeaderAPIKeyLegacy = "outline-api-key"
)

const credentialRequiredMessage = "credential required: send x-outline-api-key, outline-api-key or Authorization: Bearer <key>, or configure a default API key"

// Config holds configuration for the MCP HTTP transport.
type Config struct {
	Dispatcher        *Dispatcher
	Pool              *credential.Pool
	DefaultCredential string // used when no header carries one
	MaxBodyBytes      int64
	AllowedOrigin     string // Access-Control-Allow-Origin; empty means "*"
	Logger            *slog.Logger
}

// Server adapts HTTP requests onto the dispatcher.
type Server struct {
	dispatcher        *Dispatcher
	pool              *credential.Pool
	defaultCredential string
	maxBodyBytes      int64
	allowedOrigin     string
	logger            *slog.Logger
}

// NewServer creates the MCP transport.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if cfg.Pool == nil {
		return nil, errors.New("execution unit pool is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	origin := cfg.AllowedOrigin
	if origin == "" {
		origin = "*"
	}
	return &Server{
		dispatcher:        cfg.Dispatcher,
		pool:              cfg.Pool,
		defaultCredential: cfg.DefaultCredential,
		maxBodyBytes:      maxBody,
		allowedOrigin:     origin,
		logger:            logger.With("component", "mcp"),
	}, nil
}

// RegisterRoutes registers the MCP endpoint on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/mcp", s.handleMCP)
}

// SetCORSHeaders writes the cross-origin headers browser clients need.
func SetCORSHeaders(h http.Header, origin string) {
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, x-outline-api-key, outline-api-key, authorization")
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	SetCORSHeaders(w.Header(), s.allowedOrigin)

	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handlePost processes one JSON-RPC message.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBodyBytes+1))
	if err != nil {
		s.writeResponse(w, failure(nil, CodeParseError, "parse error: failed to read request body"))
		return
	}
	if int64(len(body)) > s.maxBodyBytes {
		s.writeResponse(w, failure(nil, CodeInvalidRequest, "invalid request: body too large"))
		return
	}

	req, rejected := Decode(body)
	if rejected != nil {
		s.writeResponse(w, *rejected)
		return
	}

	if req.IsNotification() {
		if strings.HasPrefix(req.Method, "notifications/") {
			s.logger.Debug("accepted MCP notification", "method", req.Method)
		} else {
			s.logger.Warn("received notification for non-notification method", "method", req.Method)
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	apiKey := ExtractCredential(r.Header, s.defaultCredential)
	if apiKey == "" {
		s.logger.Debug("request without credential", "method", req.Method)
		s.writeResponse(w, failure(req.ID, CodeServerError, credentialRequiredMessage))
		return
	}

	s.writeResponse(w, s.serve(r.Context(), req, apiKey))
}

// serve runs req on a leased execution unit. The unit's credential context
// is populated before dispatch and reset before the unit is released, on
// every path including a panic.
func (s *Server) serve(ctx context.Context, req Request, apiKey string) (resp Response) {
	unit, err := s.pool.Acquire(ctx)
	if err != nil {
		s.logger.Warn("no execution unit available", "method", req.Method, "error", err)
		return failure(req.ID, CodeInternalError, "internal error: no execution unit available")
	}
	defer s.pool.Release(unit)
	defer unit.Reset()
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("panic while handling MCP request", "method", req.Method, "unit", unit.ID(), "panic", p)
			resp = failure(req.ID, CodeInternalError, "internal error")
		}
	}()

	cc := unit.Instance()
	bindCredential(cc, req.Method, apiKey)

	s.logger.Debug("MCP request",
		"method", req.Method,
		"unit", unit.ID(),
		"credential", credential.Fingerprint(apiKey),
	)
	return s.dispatcher.Dispatch(credential.WithContext(ctx, cc), req)
}

// bindCredential stores apiKey in cc for methods that reach Outline.
// initialize and tools/list leave the credential unset.
func bindCredential(cc *credential.Context, method, apiKey string) {
	if method == MethodToolsCall {
		cc.SetCredential(apiKey)
	}
}

// ExtractCredential resolves the Outline API key for a request:
// x-outline-api-key, then outline-api-key, then Authorization (with any
// "Bearer " prefix removed), then fallback.
func ExtractCredential(h http.Header, fallback string) string {
	if v := strings.TrimSpace(h.Get(HeaderAPIKey)); v != "" {
		return v
	}
	if v := strings.TrimSpace(h.Get(HeaderAPIKeyLegacy)); v != "" {
		return v
	}
	if v := bearerToken(h.Get("Authorization")); v != "" {
		return v
	}
	return fallback
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	const prefix = "bearer "
	if len(header) >= len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		header = header[len(prefix):]
	}
	return strings.TrimSpace(header)
}

func (s *Server) writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(resp))
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC response", "error", err)
	}
}
