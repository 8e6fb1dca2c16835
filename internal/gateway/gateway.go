// ABOUTME: Gateway orchestrator that wires the Outline tool set behind the MCP HTTP endpoint
// ABOUTME: Manages the tool registry, audit store, HTTP server and optional tailscale listener lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"tailscale.com/tsnet"

	"github.com/2389/outline-mcp-gateway/internal/audit"
	"github.com/2389/outline-mcp-gateway/internal/config"
	"github.com/2389/outline-mcp-gateway/internal/credential"
	"github.com/2389/outline-mcp-gateway/internal/mcp"
	"github.com/2389/outline-mcp-gateway/internal/outline"
	"github.com/2389/outline-mcp-gateway/internal/ratelimit"
	"github.com/2389/outline-mcp-gateway/internal/registry"
	"github.com/2389/outline-mcp-gateway/internal/tools"
)

// Version is reported in initialize responses and the info document.
// Overridden at build time with -ldflags "-X .../internal/gateway.Version=...".
var Version = "dev"

// ServiceName identifies this server in health and initialize responses.
const ServiceName = "outline-mcp-server"

// Gateway orchestrates the outline-mcp server components.
type Gateway struct {
	config      *config.Config
	registry    *registry.Registry
	pool        *credential.Pool
	audit       *audit.Store
	mcpServer   *mcp.Server
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger

	// mcpEndpoint is the URL clients should configure (e.g., "http://localhost:8080/mcp")
	mcpEndpoint string
}

// New creates a gateway from configuration. The tool registry is populated
// and sealed before New returns.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reg := registry.New(logger.With("component", "registry"))
	client := outline.NewClient(cfg.Outline.APIURL, cfg.Outline.Timeout, logger)
	if err := tools.Register(reg, client); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}
	reg.Seal()

	if err := checkRateLimitTools(cfg.RateLimit.PerTool, reg); err != nil {
		return nil, err
	}

	gw := &Gateway{
		config:      cfg,
		registry:    reg,
		pool:        credential.NewPool(cfg.Server.ExecutionUnits),
		logger:      logger,
		mcpEndpoint: "http://" + cfg.Server.HTTPAddr + "/mcp",
	}

	dispatcherCfg := mcp.DispatcherConfig{
		Registry: reg,
		Limiter: ratelimit.New(ratelimit.Config{
			ToolsPerSecond: cfg.RateLimit.ToolsPerSecond,
			Burst:          cfg.RateLimit.Burst,
			PerTool:        cfg.RateLimit.PerTool,
			Tools:          tools.Names,
		}),
		Logger:        logger,
		ServerName:    ServiceName,
		ServerVersion: Version,
	}

	if cfg.Audit.Path != "" {
		store, err := audit.Open(cfg.Audit.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("opening audit store: %w", err)
		}
		gw.audit = store
		dispatcherCfg.Audit = store
	}

	dispatcher, err := mcp.NewDispatcher(dispatcherCfg)
	if err != nil {
		gw.closeAudit()
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}

	gw.mcpServer, err = mcp.NewServer(mcp.Config{
		Dispatcher:        dispatcher,
		Pool:              gw.pool,
		DefaultCredential: cfg.Outline.APIKey,
		MaxBodyBytes:      cfg.Server.MaxBodyBytes,
		AllowedOrigin:     cfg.Server.CORSAllowedOrigin,
		Logger:            logger,
	})
	if err != nil {
		gw.closeAudit()
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.RequestTimeout,
		// Leave room to write the response after the handler deadline fires.
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
	}

	if cfg.Outline.APIKey == "" {
		logger.Info("no default Outline API key configured; every request must send one")
	}
	logger.Info("gateway initialized",
		"tools", reg.Len(),
		"execution_units", gw.pool.Size(),
		"outline_api", client.BaseURL(),
		"audit", cfg.Audit.Path != "",
	)
	return gw, nil
}

// checkRateLimitTools rejects ratelimit.per_tool entries naming tools that
// are not registered.
func checkRateLimitTools(perTool map[string]float64, reg *registry.Registry) error {
	var unknown []string
	for name := range perTool {
		if _, ok := reg.Get(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	slices.Sort(unknown)
	return fmt.Errorf("ratelimit.per_tool names unknown tools: %s", strings.Join(unknown, ", "))
}

// Handler returns the complete HTTP handler: /mcp, /health, /health/ready and /.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	g.mcpServer.RegisterRoutes(mux)
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/health/ready", g.handleReady)
	mux.HandleFunc("/", g.handleRoot)
	return g.withRequestTimeout(g.withCORS(mux))
}

// Registry returns the sealed tool registry.
func (g *Gateway) Registry() *registry.Registry {
	return g.registry
}

// MCPEndpoint returns the URL clients should use to reach /mcp.
func (g *Gateway) MCPEndpoint() string {
	return g.mcpEndpoint
}

// setupTCPListener creates a standard TCP listener for HTTP.
func (g *Gateway) setupTCPListener() (net.Listener, error) {
	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	g.mcpEndpoint = "http://" + ln.Addr().String() + "/mcp"
	return ln, nil
}

// setupListener creates the listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Debug("server.http_addr is ignored when tailscale is enabled", "http_addr", g.config.Server.HTTPAddr)
		}
		return g.setupTailscaleListener(ctx)
	}
	return g.setupTCPListener()
}

// shutdownGrace bounds how long in-flight requests get once Run is told to stop.
const shutdownGrace = 5 * time.Second

// Run serves HTTP until ctx is canceled or the server fails, then shuts
// down. A canceled ctx is a clean exit and returns nil.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	served := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String(), "mcp_endpoint", g.mcpEndpoint)
		served <- g.httpServer.Serve(ln)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		g.logger.Info("stop requested, draining requests", "grace", shutdownGrace)
	case err := <-served:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("HTTP server: %w", err)
			g.logger.Error("HTTP server stopped", "error", err)
		}
	}

	// ctx may already be canceled; shutdown gets its own deadline.
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := g.Shutdown(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

func (g *Gateway) closeAudit() error {
	if g.audit == nil {
		return nil
	}
	err := g.audit.Close()
	g.audit = nil
	return err
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}
	errs = appendCloseError(errs, "audit close", g.closeAudit())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}
