// Package numerator provides domain contracts for document auto-numbering.
// Implementations live in the infrastructure layer.
package numerator

import (
	"context"
	"fmt"
	"time"
)

// Generator generates sequential document numbers.
//
// Numbers follow the pattern PREFIX-YEAR-NNNNNN (e.g., ENT-2025-000014),
// with the sequence reset per prefix per year.
type Generator interface {
	// NextNumber generates the next document number for the given config
	// and business period.
	NextNumber(ctx context.Context, cfg Config, period time.Time) (string, error)
}

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "ENT", "TRF")
	Prefix string

	// PadWidth is the minimum sequence width (default 6)
	PadWidth int
}

// DefaultConfig returns the standard per-year numbering for a prefix.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:   prefix,
		PadWidth: 6,
	}
}

// Key returns the sequence key for the config and period (per prefix per year).
func (c Config) Key(period time.Time) string {
	return fmt.Sprintf("%s_%s", c.Prefix, period.Format("2006"))
}

// Format renders the final number string.
func (c Config) Format(period time.Time, num int64) string {
	padWidth := c.PadWidth
	if padWidth == 0 {
		padWidth = 6
	}
	return fmt.Sprintf("%s-%s-%0*d", c.Prefix, period.Format("2006"), padWidth, num)
}

// Sequential is an in-memory Generator for tests.
type Sequential struct {
	last map[string]int64
}

// NewSequential creates a test generator starting each sequence at 1.
func NewSequential() *Sequential {
	return &Sequential{last: make(map[string]int64)}
}

func (s *Sequential) NextNumber(ctx context.Context, cfg Config, period time.Time) (string, error) {
	key := cfg.Key(period)
	s.last[key]++
	return cfg.Format(period, s.last[key]), nil
}
