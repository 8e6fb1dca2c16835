// ABOUTME: Tests for Gateway wiring, lifecycle and the non-MCP HTTP routes
// ABOUTME: Drives a fake Outline backend through the full /mcp path

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tailscale.com/ipn/ipnstate"

	"github.com/2389/outline-mcp-gateway/internal/config"
	"github.com/2389/outline-mcp-gateway/internal/tools"
)

// testConfig creates a valid config listening on a free local port.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available HTTP port: %v", err)
	}
	httpAddr := ln.Addr().String()
	ln.Close()

	cfg := config.Default()
	cfg.Server.HTTPAddr = httpAddr
	cfg.Server.ExecutionUnits = 2
	cfg.Server.RequestTimeout = 10 * time.Second
	cfg.Outline.APIURL = "http://127.0.0.1:1/api"
	cfg.Outline.Timeout = 5 * time.Second
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg
}

// testLogger creates a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGateway(t *testing.T, cfg *config.Config) *Gateway {
	t.Helper()
	gw, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = gw.closeAudit() })
	return gw
}

func TestGatewayNew(t *testing.T) {
	cfg := testConfig(t)
	gw := newTestGateway(t, cfg)

	if gw.config != cfg {
		t.Error("gateway config mismatch")
	}
	if got := gw.Registry().Len(); got != len(tools.Names) {
		t.Errorf("registry has %d tools, want %d", got, len(tools.Names))
	}
	if gw.pool.Size() != 2 {
		t.Errorf("pool size = %d, want 2", gw.pool.Size())
	}
	if gw.audit != nil {
		t.Error("audit store should be nil without audit.path")
	}
	if gw.httpServer == nil {
		t.Error("httpServer should not be nil")
	}
}

func TestGatewayNewWithAudit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Audit.Path = filepath.Join(t.TempDir(), "audit", "calls.db")
	gw := newTestGateway(t, cfg)

	if gw.audit == nil {
		t.Fatal("audit store should be open")
	}
	if err := gw.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error: %v", err)
	}
	if gw.audit != nil {
		t.Error("audit store should be closed after shutdown")
	}
}

func TestGatewayRunAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	gw := newTestGateway(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- gw.Run(ctx)
	}()

	healthURL := "http://" + cfg.Server.HTTPAddr + "/health"
	var resp *http.Response
	var err error
	for i := 0; i < 50; i++ {
		resp, err = http.Get(healthURL)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		cancel()
		t.Fatalf("server never became reachable: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}
	if want := "http://" + cfg.Server.HTTPAddr + "/mcp"; gw.MCPEndpoint() != want {
		t.Errorf("MCPEndpoint() = %q, want %q", gw.MCPEndpoint(), want)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() returned error after cancel: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestGatewayRunAddressInUse(t *testing.T) {
	cfg := testConfig(t)
	ln, err := net.Listen("tcp", cfg.Server.HTTPAddr)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	gw := newTestGateway(t, cfg)
	if err := gw.Run(context.Background()); err == nil {
		t.Fatal("Run() should fail when the address is taken")
	}
}

func TestHealthEndpoint(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "ok" || health.Service != ServiceName {
		t.Errorf("unexpected health body: %+v", health)
	}
	if _, err := time.Parse(time.RFC3339, health.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", health.Timestamp, err)
	}
}

func TestReadyEndpoint(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health/ready")
	if err != nil {
		t.Fatalf("GET /health/ready: %v", err)
	}
	defer resp.Body.Close()

	var ready ReadyResponse
	if err := json.NewDecoder(resp.Body).Decode(&ready); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ready.Tools != len(tools.Names) || ready.ExecutionUnits != 2 || ready.Audit {
		t.Errorf("unexpected ready body: %+v", ready)
	}
}

func TestRootInfoAndNotFound(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	var info InfoDocument
	err = json.NewDecoder(resp.Body).Decode(&info)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Name != "Outline MCP Server" {
		t.Errorf("name = %q", info.Name)
	}
	if _, ok := info.Endpoints["/mcp"]; !ok {
		t.Error("info document should list /mcp")
	}

	resp, err = http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatalf("GET /nope: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if strings.TrimSpace(string(body)) != "Not Found" {
		t.Errorf("body = %q, want Not Found", body)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("404 should carry CORS header, got %q", got)
	}
}

func TestPreflightAnyPath(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	for _, path := range []string{"/mcp", "/health", "/anything"} {
		req, _ := http.NewRequest(http.MethodOptions, srv.URL+path, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("OPTIONS %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("OPTIONS %s status = %d, want 204", path, resp.StatusCode)
		}
		if !strings.Contains(resp.Header.Get("Access-Control-Allow-Headers"), "x-outline-api-key") {
			t.Errorf("OPTIONS %s missing allow-headers", path)
		}
	}
}

func TestHealthRejectsPost(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/health", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestMCPEndToEnd(t *testing.T) {
	var hits atomic.Int32
	var lastAuth atomic.Value
	outlineAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		lastAuth.Store(r.Header.Get("Authorization"))
		if r.URL.Path != "/api/collections.list" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"data":[{"id":"col-1","name":"Engineering"}]}`)
	}))
	defer outlineAPI.Close()

	cfg := testConfig(t)
	cfg.Outline.APIURL = outlineAPI.URL + "/api"
	cfg.Audit.Path = ":memory:"
	gw := newTestGateway(t, cfg)
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	post := func(body, key string) (*http.Response, map[string]any) {
		t.Helper()
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/mcp", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set("x-outline-api-key", key)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("POST /mcp: %v", err)
		}
		defer resp.Body.Close()
		var out map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return resp, out
	}

	resp, out := post(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"listCollections","arguments":{}}}`, "key-abc")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, out)
	}
	result, ok := out["result"].(map[string]any)
	if !ok {
		t.Fatalf("missing result: %v", out)
	}
	structured, _ := result["structuredContent"].(map[string]any)
	collections, _ := structured["collections"].([]any)
	if len(collections) != 1 {
		t.Errorf("collections = %v, want one entry", structured["collections"])
	}
	if got, _ := lastAuth.Load().(string); got != "Bearer key-abc" {
		t.Errorf("Authorization sent to Outline = %q", got)
	}

	entries, err := gw.audit.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	if len(entries) != 1 || entries[0].Tool != "listCollections" || entries[0].Code != 0 {
		t.Errorf("unexpected audit entries: %+v", entries)
	}

	resp, out = post(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"listCollections","arguments":{}}}`, "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("missing credential status = %d, want 405", resp.StatusCode)
	}
	rpcErr, _ := out["error"].(map[string]any)
	if code, _ := rpcErr["code"].(float64); code != -32000 {
		t.Errorf("error code = %v, want -32000", rpcErr["code"])
	}
	if hits.Load() != 1 {
		t.Errorf("Outline was called %d times, want 1", hits.Load())
	}
}

func TestDefaultCredentialFromConfig(t *testing.T) {
	var lastAuth atomic.Value
	outlineAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastAuth.Store(r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"data":[]}`)
	}))
	defer outlineAPI.Close()

	cfg := testConfig(t)
	cfg.Outline.APIURL = outlineAPI.URL
	cfg.Outline.APIKey = "configured-key"
	gw := newTestGateway(t, cfg)
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	body := `{"jsonrpc":"2.0","id":"u","method":"tools/call","params":{"name":"listUsers","arguments":{}}}`
	resp, err := http.Post(srv.URL+"/mcp", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /mcp: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if got, _ := lastAuth.Load().(string); got != "Bearer configured-key" {
		t.Errorf("Authorization = %q, want configured key", got)
	}
}

func TestResolveTailnetNode(t *testing.T) {
	home := func() (string, error) { return "/home/tester", nil }
	noHome := func() (string, error) { return "", errors.New("no home") }
	env := func(vals map[string]string) func(string) string {
		return func(k string) string { return vals[k] }
	}

	node, err := resolveTailnetNode(config.TailscaleConfig{
		Hostname: "docs", StateDir: "/custom/state", AuthKey: "tskey-config", Ephemeral: true,
	}, env(nil), noHome)
	if err != nil {
		t.Fatalf("explicit settings: %v", err)
	}
	if node.stateDir != "/custom/state" || node.authKey != "tskey-config" || !node.ephemeral || node.hostname != "docs" {
		t.Errorf("explicit settings not kept: %+v", node)
	}

	node, err = resolveTailnetNode(config.TailscaleConfig{Hostname: "docs"}, env(map[string]string{"TS_AUTHKEY": "tskey-env"}), home)
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if want := filepath.Join("/home/tester", ".local", "share", "outline-mcp", "tailscale"); node.stateDir != want {
		t.Errorf("stateDir = %q, want %q", node.stateDir, want)
	}
	if node.authKey != "tskey-env" {
		t.Errorf("authKey = %q, want TS_AUTHKEY value", node.authKey)
	}

	if _, err := resolveTailnetNode(config.TailscaleConfig{StateDir: "/s"}, env(nil), home); !errors.Is(err, errNoAuthKey) {
		t.Errorf("missing key: got %v, want errNoAuthKey", err)
	}
	if _, err := resolveTailnetNode(config.TailscaleConfig{AuthKey: "k"}, env(nil), noHome); err == nil {
		t.Error("expected error when home directory is unknown")
	}
}

func TestTailnetEndpoint(t *testing.T) {
	status := &ipnstate.Status{Self: &ipnstate.PeerStatus{DNSName: "docs.tailnet.ts.net."}}
	if got := tailnetEndpoint("docs", status); got != "http://docs.tailnet.ts.net/mcp" {
		t.Errorf("with DNS name: %q", got)
	}
	if got := tailnetEndpoint("docs", &ipnstate.Status{}); got != "http://docs/mcp" {
		t.Errorf("without DNS name: %q", got)
	}
}

func TestNewRejectsUnknownRateLimitTool(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.PerTool = map[string]float64{"askDocuments": 1, "serchDocuments": 1}

	_, err := New(cfg, testLogger())
	if err == nil {
		t.Fatal("New() should reject per_tool entries for unknown tools")
	}
	if !strings.Contains(err.Error(), "serchDocuments") || strings.Contains(err.Error(), "askDocuments") {
		t.Errorf("error should name only the unknown tool: %v", err)
	}
}

func TestRateLimitedUnknownToolStillNotFound(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.ToolsPerSecond = 0.001
	cfg.RateLimit.Burst = 1
	gw := newTestGateway(t, cfg)
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/mcp",
			strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"noSuchTool","arguments":{}}}`))
		req.Header.Set("x-outline-api-key", "k")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("POST /mcp: %v", err)
		}
		var out struct {
			Error struct {
				Code int `json:"code"`
			} `json:"error"`
		}
		err = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest || out.Error.Code != -32602 {
			t.Errorf("attempt %d: status %d code %d, want 400 -32602", i, resp.StatusCode, out.Error.Code)
		}
	}
}

func TestAppendCloseError(t *testing.T) {
	errs := appendCloseError(nil, "first", nil)
	if len(errs) != 0 {
		t.Fatalf("nil error should not be appended")
	}
	errs = appendCloseError(errs, "second", errors.New("boom"))
	if len(errs) != 1 || errs[0].Error() != "second: boom" {
		t.Errorf("unexpected errors: %v", errs)
	}
}
