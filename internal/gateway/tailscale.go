// ABOUTME: Tailnet listener for the gateway via tsnet
// ABOUTME: Resolves node state and auth key, joins the tailnet and serves MCP on port 80

package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/outline-mcp-gateway/internal/config"
)

// errNoAuthKey is returned when neither tailscale.auth_key nor TS_AUTHKEY is set.
var errNoAuthKey = errors.New("tailscale auth key required: set tailscale.auth_key or TS_AUTHKEY (keys: https://login.tailscale.com/admin/settings/keys)")

// tailnetNode is the resolved node configuration handed to tsnet.
type tailnetNode struct {
	hostname  string
	stateDir  string
	authKey   string
	ephemeral bool
}

// resolveTailnetNode fills defaults: state lives under
// ~/.local/share/outline-mcp/tailscale and the key falls back to TS_AUTHKEY.
func resolveTailnetNode(cfg config.TailscaleConfig, getenv func(string) string, homeDir func() (string, error)) (tailnetNode, error) {
	node := tailnetNode{
		hostname:  cfg.Hostname,
		stateDir:  cfg.StateDir,
		authKey:   cfg.AuthKey,
		ephemeral: cfg.Ephemeral,
	}

	if node.stateDir == "" {
		home, err := homeDir()
		if err != nil {
			return tailnetNode{}, fmt.Errorf("locating tailscale state (set tailscale.state_dir): %w", err)
		}
		node.stateDir = filepath.Join(home, ".local", "share", "outline-mcp", "tailscale")
	}

	if node.authKey == "" {
		node.authKey = getenv("TS_AUTHKEY")
	}
	if node.authKey == "" {
		return tailnetNode{}, errNoAuthKey
	}
	return node, nil
}

// setupTailscaleListener brings the node up and listens on :80 of the tailnet.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	node, err := resolveTailnetNode(g.config.Tailscale, os.Getenv, os.UserHomeDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(node.stateDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	srv := &tsnet.Server{
		Hostname:  node.hostname,
		Dir:       node.stateDir,
		AuthKey:   node.authKey,
		Ephemeral: node.ephemeral,
	}
	g.logger.Info("joining tailnet", "hostname", node.hostname, "state_dir", node.stateDir, "ephemeral", node.ephemeral)

	status, err := srv.Up(ctx)
	if err != nil {
		_ = srv.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	ln, err := srv.Listen("tcp", ":80")
	if err != nil {
		_ = srv.Close()
		return nil, fmt.Errorf("listening on tailnet port 80: %w", err)
	}

	g.tsnetServer = srv
	g.mcpEndpoint = tailnetEndpoint(node.hostname, status)
	g.logger.Info("tailnet node ready", "mcp_endpoint", g.mcpEndpoint, "ips", status.TailscaleIPs)
	return ln, nil
}

// tailnetEndpoint prefers the node's MagicDNS name over its bare hostname.
func tailnetEndpoint(hostname string, status *ipnstate.Status) string {
	host := hostname
	if status != nil && status.Self != nil && status.Self.DNSName != "" {
		host = strings.TrimSuffix(status.Self.DNSName, ".")
	}
	return "http://" + host + "/mcp"
}
