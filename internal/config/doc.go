// Package config handles configuration loading for outline-mcp.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file (chosen by the .toml
// extension) with environment variable expansion. Every setting has a
// default, so the server also runs with no file at all.
//
// # Configuration File
//
// Locations (in order):
//
//  1. --config flag
//  2. Path from OUTLINE_MCP_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/outline-mcp/config.yaml (~/.config/outline-mcp/config.yaml)
//
// A missing file at the third location is not an error.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	outline:
//	  api_key: "${OUTLINE_API_KEY}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// OUTLINE_API_KEY and OUTLINE_API_URL also fill outline.api_key and
// outline.api_url when the file leaves them empty.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  execution_units: 16        # concurrent MCP requests
//	  request_timeout: "60s"
//	  max_body_bytes: 1048576
//	  cors_allowed_origin: "*"
//
//	tailscale:
//	  enabled: false
//	  hostname: "outline-mcp"
//	  auth_key: "${TS_AUTHKEY}"
//	  state_dir: ""              # default: ~/.local/share/outline-mcp/tailscale
//	  ephemeral: false
//
//	outline:
//	  api_url: "https://app.getoutline.com/api"
//	  api_key: "${OUTLINE_API_KEY}"   # fallback when a request sends no key
//	  timeout: "30s"
//
//	audit:
//	  path: ""                   # SQLite file; empty disables the audit log
//
//	ratelimit:
//	  tools_per_second: 0        # 0 disables limiting
//	  burst: 1
//	  per_tool:
//	    askDocuments: 0.2
//
//	logging:
//	  level: "info"              # debug, info, warn, error
//	  format: "text"             # text, json
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax ("30s", "1m30s").
package config
