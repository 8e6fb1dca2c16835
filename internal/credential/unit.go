// ABOUTME: Execution units that own a single credential slot and are reused across requests
// ABOUTME: Pool leases units exclusively so two requests never share a slot at the same time

package credential

import (
	"context"
	"fmt"
	"sync"
)

// Unit is one isolated execution unit. It owns at most one active credential
// context at a time. Units are reused across requests, so Reset must run at
// the end of every request, whatever the outcome.
type Unit struct {
	id int

	mu     sync.Mutex
	active *Context
}

// NewUnit creates an execution unit with no active context.
func NewUnit(id int) *Unit {
	return &Unit{id: id}
}

// ID returns the unit's identifier (for logging).
func (u *Unit) ID() int {
	return u.id
}

// Instance returns the active context, creating an empty one on first access.
func (u *Unit) Instance() *Context {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.active == nil {
		u.active = &Context{}
	}
	return u.active
}

// Reset discards the active context. The next Instance call yields a fresh,
// empty context with no trace of the previous credential.
func (u *Unit) Reset() {
	u.mu.Lock()
	u.active = nil
	u.mu.Unlock()
}

// Pool is a fixed set of execution units. A unit is held by exactly one
// request between Acquire and Release.
type Pool struct {
	units chan *Unit
	size  int
}

// NewPool creates a pool with size units. Sizes below one are raised to one.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		units: make(chan *Unit, size),
		size:  size,
	}
	for i := 0; i < size; i++ {
		p.units <- NewUnit(i)
	}
	return p
}

// Size returns the number of units in the pool.
func (p *Pool) Size() int {
	return p.size
}

// Acquire blocks until a unit is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*Unit, error) {
	select {
	case u := <-p.units:
		return u, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquiring execution unit: %w", ctx.Err())
	}
}

// Release returns a unit to the pool. Callers reset the unit before releasing it.
func (p *Pool) Release(u *Unit) {
	p.units <- u
}
