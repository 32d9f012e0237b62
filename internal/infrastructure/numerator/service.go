// Package numerator provides the PostgreSQL-backed document numbering
// service. It implements the strict strategy: every number comes from an
// UPSERT with RETURNING on the sequence row, so numbers are sequential
// without gaps even under concurrent load.
package numerator

import (
	"context"
	"fmt"
	"time"

	"epitrack/internal/core/numerator"
	"epitrack/internal/infrastructure/storage/postgres"
)

// Service implements numerator.Generator on PostgreSQL.
type Service struct {
	txManager *postgres.TxManager
}

// New creates a numbering service.
func New(txManager *postgres.TxManager) *Service {
	return &Service{txManager: txManager}
}

// NextNumber generates the next document number for the prefix and period.
// The sequence resets per prefix per year. Callers should run inside the
// same transaction as the document insert so an aborted insert does not
// burn a number.
func (s *Service) NextNumber(ctx context.Context, cfg numerator.Config, period time.Time) (string, error) {
	querier := s.txManager.GetQuerier(ctx)

	var num int64
	err := querier.QueryRow(ctx, `
		INSERT INTO sys_sequences (sequence_type, year, current_val)
		VALUES ($1, $2, 1)
		ON CONFLICT (sequence_type, year) DO UPDATE SET current_val = sys_sequences.current_val + 1
		RETURNING current_val
	`, cfg.Prefix, period.Year()).Scan(&num)
	if err != nil {
		return "", fmt.Errorf("next number for %s: %w", cfg.Key(period), err)
	}

	return cfg.Format(period, num), nil
}

var _ numerator.Generator = (*Service)(nil)
