// Package gateway orchestrates the outline-mcp server components.
//
// # Overview
//
// The gateway package wires configuration into a running server. It owns
// the tool registry, the execution unit pool, the optional audit store, the
// MCP transport and the HTTP server, and optionally joins a tailnet via
// tsnet instead of binding a local TCP address.
//
// # Gateway Struct
//
//	type Gateway struct {
//	    config      *config.Config
//	    registry    *registry.Registry
//	    pool        *credential.Pool
//	    audit       *audit.Store
//	    mcpServer   *mcp.Server
//	    httpServer  *http.Server
//	    tsnetServer *tsnet.Server
//	    // ...
//	}
//
// # Lifecycle
//
// New registers every Outline tool and seals the registry, so tools/list is
// fixed for the life of the process. Run blocks until its context is
// canceled, then shuts down with a five second grace period:
//
//	gw, err := gateway.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return gw.Run(ctx)
//
// # HTTP Routes
//
//	POST /mcp           MCP JSON-RPC endpoint
//	GET  /health        liveness: {"status":"ok","timestamp":...,"service":...}
//	GET  /health/ready  registered tool count and execution units
//	GET  /              server info document
//
// Every response carries CORS headers, OPTIONS on any path answers 204, and
// unknown paths answer 404 "Not Found". Each request runs under
// server.request_timeout, which also bounds the outbound Outline calls.
//
// # Tailscale
//
// With tailscale.enabled the server listens on :80 of the tailnet node.
// The auth key comes from tailscale.auth_key or TS_AUTHKEY; node state
// defaults to ~/.local/share/outline-mcp/tailscale.
package gateway
