// ABOUTME: Entry point for the outline-mcp server
// ABOUTME: Subcommands to serve MCP over HTTP, probe health, list tools and read the audit log

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/2389/outline-mcp-gateway/internal/audit"
	"github.com/2389/outline-mcp-gateway/internal/config"
	"github.com/2389/outline-mcp-gateway/internal/gateway"
	"github.com/2389/outline-mcp-gateway/internal/outline"
	"github.com/2389/outline-mcp-gateway/internal/registry"
	"github.com/2389/outline-mcp-gateway/internal/tools"
)

const banner = `
             _   _ _
  ___  _   _| |_| (_)_ __   ___       _ __ ___   ___ _ __
 / _ \| | | | __| | | '_ \ / _ \_____| '_ ' _ \ / __| '_ \
| (_) | |_| | |_| | | | | |  __/_____| | | | | | (__| |_) |
 \___/ \__,_|\__|_|_|_| |_|\___|     |_| |_| |_|\___| .__/
                                                    |_|
`

const usage = `Usage: outline-mcp <command> [flags]

Commands:
  serve     Start the MCP server
  health    Check a running server's health
  tools     List the tools the server exposes
  audit     Show recent tool calls from the audit log
  version   Print the version
  help      Show this help

Run "outline-mcp <command> --help" for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		cancel()
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches a subcommand. Separated from main so commands can be tested.
func run(ctx context.Context, command string, args []string, stdout io.Writer) error {
	switch command {
	case "serve":
		return runServe(ctx, args, stdout)
	case "health":
		return runHealth(ctx, args, stdout)
	case "tools":
		return runTools(args, stdout)
	case "audit":
		return runAudit(ctx, args, stdout)
	case "version", "--version":
		fmt.Fprintf(stdout, "outline-mcp %s\n", gateway.Version)
		return nil
	case "help", "--help", "-h":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command: %s\n\n%s", command, usage)
	}
}

// errHelpShown signals that --help was handled and the command should exit cleanly.
var errHelpShown = errors.New("help shown")

// parseFlags parses args into fs, printing flag help to stdout on --help.
func parseFlags(fs *pflag.FlagSet, args []string, stdout io.Writer) error {
	fs.SetOutput(stdout)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return errHelpShown
		}
		return err
	}
	if rest := fs.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return nil
}

func runServe(ctx context.Context, args []string, stdout io.Writer) error {
	var configPath, addr, logLevel string
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.StringVarP(&configPath, "config", "c", "", "config file (default: $OUTLINE_MCP_CONFIG or ~/.config/outline-mcp/config.yaml)")
	fs.StringVar(&addr, "addr", "", "override server.http_addr")
	fs.StringVar(&logLevel, "log-level", "", "override logging.level")
	if err := parseFlags(fs, args, stdout); err != nil {
		if errors.Is(err, errHelpShown) {
			return nil
		}
		return err
	}

	cfg, loadedFrom, err := config.Resolve(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if addr != "" {
		cfg.Server.HTTPAddr = addr
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Fprint(stdout, banner)
	gray.Fprintf(stdout, "    version: %s\n\n", gateway.Version)

	if loadedFrom == "" {
		loadedFrom = "(defaults)"
	}
	green.Fprint(stdout, "    ▶ ")
	fmt.Fprintf(stdout, "Config:    %s\n", loadedFrom)
	green.Fprint(stdout, "    ▶ ")
	fmt.Fprintf(stdout, "Outline:   %s\n", cfg.Outline.APIURL)
	if cfg.Tailscale.Enabled {
		green.Fprint(stdout, "    ▶ ")
		fmt.Fprint(stdout, "Tailscale: ")
		cyan.Fprint(stdout, cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Fprint(stdout, " (ephemeral)")
		}
		fmt.Fprintln(stdout)
	} else {
		green.Fprint(stdout, "    ▶ ")
		fmt.Fprintf(stdout, "HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	if cfg.Outline.APIKey == "" {
		yellow.Fprint(stdout, "    ! ")
		fmt.Fprintln(stdout, "No default API key; clients must send x-outline-api-key")
	}
	if cfg.Audit.Path != "" {
		green.Fprint(stdout, "    ▶ ")
		fmt.Fprintf(stdout, "Audit:     %s\n", cfg.Audit.Path)
	}
	fmt.Fprintln(stdout)

	logger := setupLogger(cfg.Logging, stdout)
	logger.Info("starting outline-mcp",
		"config", loadedFrom,
		"http_addr", cfg.Server.HTTPAddr,
		"tailscale", cfg.Tailscale.Enabled,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	return gw.Run(ctx)
}

func runHealth(ctx context.Context, args []string, stdout io.Writer) error {
	var configPath, url string
	var timeout time.Duration
	fs := pflag.NewFlagSet("health", pflag.ContinueOnError)
	fs.StringVarP(&configPath, "config", "c", "", "config file used to find the server address")
	fs.StringVar(&url, "url", "", "server base URL (default: derived from server.http_addr)")
	fs.DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	if err := parseFlags(fs, args, stdout); err != nil {
		if errors.Is(err, errHelpShown) {
			return nil
		}
		return err
	}

	if url == "" {
		cfg, _, err := config.Resolve(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		url = "http://" + dialableAddr(cfg.Server.HTTPAddr)
	}
	url = strings.TrimRight(url, "/") + "/health"

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	color.New(color.FgGreen).Fprintln(stdout, "healthy")
	return nil
}

// dialableAddr turns a wildcard listen address into one a local client can dial.
func dialableAddr(addr string) string {
	switch {
	case strings.HasPrefix(addr, "0.0.0.0:"):
		return "127.0.0.1" + strings.TrimPrefix(addr, "0.0.0.0")
	case strings.HasPrefix(addr, ":"):
		return "127.0.0.1" + addr
	case strings.HasPrefix(addr, "[::]:"):
		return "[::1]" + strings.TrimPrefix(addr, "[::]")
	default:
		return addr
	}
}

func runTools(args []string, stdout io.Writer) error {
	var showSchemas bool
	fs := pflag.NewFlagSet("tools", pflag.ContinueOnError)
	fs.BoolVar(&showSchemas, "schemas", false, "print each tool's input schema")
	if err := parseFlags(fs, args, stdout); err != nil {
		if errors.Is(err, errHelpShown) {
			return nil
		}
		return err
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.New(quiet)
	client := outline.NewClient(outline.DefaultAPIURL, outline.DefaultTimeout, quiet)
	if err := tools.Register(reg, client); err != nil {
		return fmt.Errorf("registering tools: %w", err)
	}
	reg.Seal()

	cyan := color.New(color.FgCyan)
	cyan.Fprintf(stdout, "%d tools\n\n", reg.Len())

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	for _, info := range reg.List() {
		fmt.Fprintf(w, "%s\t%s\n", info.Name, info.Description)
		if showSchemas {
			fmt.Fprintf(w, "\t%s\n", compactSchema(info.InputSchema))
		}
	}
	return w.Flush()
}

// compactSchema collapses a schema literal onto one line.
func compactSchema(raw []byte) string {
	return strings.Join(strings.Fields(string(raw)), " ")
}

func runAudit(ctx context.Context, args []string, stdout io.Writer) error {
	var configPath, path string
	var limit int
	fs := pflag.NewFlagSet("audit", pflag.ContinueOnError)
	fs.StringVarP(&configPath, "config", "c", "", "config file used to find audit.path")
	fs.StringVar(&path, "path", "", "audit database (default: audit.path from config)")
	fs.IntVarP(&limit, "limit", "n", 20, "number of rows to show")
	if err := parseFlags(fs, args, stdout); err != nil {
		if errors.Is(err, errHelpShown) {
			return nil
		}
		return err
	}

	if path == "" {
		cfg, _, err := config.Resolve(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		path = cfg.Audit.Path
	}
	if path == "" {
		return errors.New("no audit log configured: set audit.path or pass --path")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}

	store, err := audit.Open(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(stdout, "No tool calls recorded.")
		return nil
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTOOL\tCODE\tDURATION\tCREDENTIAL\tREQUEST")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Tool,
			formatCode(e.Code),
			e.Duration.Round(time.Millisecond),
			e.CredentialFingerprint,
			e.RequestID,
		)
	}
	return w.Flush()
}

func formatCode(code int) string {
	if code == 0 {
		return "ok"
	}
	return fmt.Sprintf("%d", code)
}
