// ABOUTME: Per-tool token-bucket rate limiting for tools/call
// ABOUTME: A nil *Limiter allows everything so callers need no special casing

package ratelimit

import (
	"golang.org/x/time/rate"
)

// fallbackKey names the shared bucket for tools outside Config.Tools.
const fallbackKey = "*"

// Config defines rate limiting settings.
type Config struct {
	// ToolsPerSecond is the default sustained rate for each tool. Zero disables limiting.
	ToolsPerSecond float64
	// Burst is the default bucket size for each tool.
	Burst int
	// PerTool overrides ToolsPerSecond for specific tool names.
	PerTool map[string]float64
	// Tools lists the names that get a bucket of their own. Any other name
	// draws from a single shared bucket.
	Tools []string
}

// Limiter holds one token bucket per known tool. The bucket set is fixed at
// construction, so caller-supplied names never grow it.
type Limiter struct {
	buckets map[string]*rate.Limiter
}

// New returns a limiter for cfg, or nil when limiting is disabled.
func New(cfg Config) *Limiter {
	if cfg.ToolsPerSecond <= 0 && len(cfg.PerTool) == 0 {
		return nil
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	defaultRate := rate.Limit(cfg.ToolsPerSecond)
	if cfg.ToolsPerSecond <= 0 {
		defaultRate = rate.Inf
	}

	l := &Limiter{buckets: make(map[string]*rate.Limiter, len(cfg.Tools)+len(cfg.PerTool)+1)}
	l.buckets[fallbackKey] = rate.NewLimiter(defaultRate, burst)
	for _, name := range cfg.Tools {
		l.buckets[name] = rate.NewLimiter(defaultRate, burst)
	}
	for name, rps := range cfg.PerTool {
		l.buckets[name] = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return l
}

// AllowTool reports whether a call to tool may proceed now. It never blocks.
func (l *Limiter) AllowTool(tool string) bool {
	if l == nil {
		return true
	}
	bucket, ok := l.buckets[tool]
	if !ok {
		bucket = l.buckets[fallbackKey]
	}
	return bucket.Allow()
}

// Len returns the number of buckets, including the shared fallback.
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}
	return len(l.buckets)
}
