// ABOUTME: Non-MCP HTTP surface: health probes, the info document and the not-found fallback
// ABOUTME: Also holds the CORS and request deadline middleware wrapped around every route

package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/2389/outline-mcp-gateway/internal/mcp"
)

// InfoDocument is served at the root path.
type InfoDocument struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Version     string            `json:"version"`
	Endpoints   map[string]string `json:"endpoints"`
}

// HealthResponse is served at /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
}

// ReadyResponse is served at /health/ready.
type ReadyResponse struct {
	Status         string `json:"status"`
	Tools          int    `json:"tools"`
	ExecutionUnits int    `json:"execution_units"`
	Audit          bool   `json:"audit"`
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w)
		return
	}
	g.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   ServiceName,
	})
}

func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w)
		return
	}
	g.writeJSON(w, http.StatusOK, ReadyResponse{
		Status:         "ready",
		Tools:          g.registry.Len(),
		ExecutionUnits: g.pool.Size(),
		Audit:          g.audit != nil,
	})
}

func (g *Gateway) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	g.writeJSON(w, http.StatusOK, InfoDocument{
		Name:        "Outline MCP Server",
		Description: "A Model Context Protocol server for Outline API",
		Version:     Version,
		Endpoints: map[string]string{
			"/mcp":    "POST - MCP JSON-RPC endpoint",
			"/health": "GET - Health check",
		},
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	w.Header().Set("Allow", "GET, HEAD, OPTIONS")
	http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Debug("failed to write response", "error", err)
	}
}

// withCORS sets CORS headers on every response and answers preflight
// requests on any path.
func (g *Gateway) withCORS(next http.Handler) http.Handler {
	origin := g.config.Server.CORSAllowedOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mcp.SetCORSHeaders(w.Header(), origin)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRequestTimeout bounds each request, including outbound Outline calls,
// by server.request_timeout.
func (g *Gateway) withRequestTimeout(next http.Handler) http.Handler {
	timeout := g.config.Server.RequestTimeout
	if timeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
