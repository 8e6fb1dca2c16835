// ABOUTME: Request-scoped credential holder for outbound Outline authentication
// ABOUTME: Provides WithContext/FromContext for threading the credential to tool callbacks

package credential

import (
	"context"
	"errors"
	"sync"
)

// ErrMissing is returned when no credential is available for a request.
var ErrMissing = errors.New("credential required")

// Context holds the credential for the lifetime of one inbound request.
// The credential is opaque; no validation of its shape happens here.
type Context struct {
	mu    sync.RWMutex
	value string
	set   bool
}

// SetCredential overwrites the stored credential.
func (c *Context) SetCredential(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
	c.set = true
}

// Credential returns the stored credential and whether one was set.
func (c *Context) Credential() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.set
}

// contextKey is the key type for storing a *Context in context.Context.
type contextKey struct{}

// WithContext returns a new context carrying the credential context.
func WithContext(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext retrieves the credential context, returning nil if not present.
func FromContext(ctx context.Context) *Context {
	c, ok := ctx.Value(contextKey{}).(*Context)
	if !ok {
		return nil
	}
	return c
}

// Require returns the credential carried by ctx, or ErrMissing when the
// context has no credential context or it was never set.
func Require(ctx context.Context) (string, error) {
	c := FromContext(ctx)
	if c == nil {
		return "", ErrMissing
	}
	value, ok := c.Credential()
	if !ok || value == "" {
		return "", ErrMissing
	}
	return value, nil
}
