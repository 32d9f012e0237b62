// Package settings provides runtime feature-flag evaluation.
// The abstraction allows different backends: in-memory, database, Redis.
package settings

import (
	"context"
	"sync"
)

// Provider evaluates system-wide behavior flags per operation.
type Provider interface {
	// AllowNegativeStock reports whether stock balances may go below zero.
	AllowNegativeStock(ctx context.Context) bool

	// AllowDirectAdjustment reports whether out-of-band stock adjustments
	// (bypassing the movement-note workflow) are permitted.
	AllowDirectAdjustment(ctx context.Context) bool
}

// Flag names (constants for type safety)
const (
	FlagAllowNegativeStock    = "allow_negative_stock"
	FlagAllowDirectAdjustment = "allow_direct_adjustment"
)

// InMemory is a simple in-memory settings provider.
// Suitable for single-process deployments and testing.
type InMemory struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// NewInMemory creates an in-memory provider. Direct adjustments are
// enabled by default; negative stock is not.
func NewInMemory() *InMemory {
	return &InMemory{
		flags: map[string]bool{
			FlagAllowNegativeStock:    false,
			FlagAllowDirectAdjustment: true,
		},
	}
}

func (p *InMemory) AllowNegativeStock(ctx context.Context) bool {
	return p.get(FlagAllowNegativeStock)
}

func (p *InMemory) AllowDirectAdjustment(ctx context.Context) bool {
	return p.get(FlagAllowDirectAdjustment)
}

// SetFlag sets a boolean flag (for wiring and tests).
func (p *InMemory) SetFlag(flag string, enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flags[flag] = enabled
}

func (p *InMemory) get(flag string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.flags[flag]
}
