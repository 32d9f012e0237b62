package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BatchQuery is one statement in a pipelined batch.
type BatchQuery struct {
	SQL  string
	Args []any
}

// CopyRows bulk-inserts rows into table using the COPY protocol. Much
// cheaper than row-by-row INSERTs once a document carries more than a
// handful of lines. Must run inside a transaction.
func CopyRows(ctx context.Context, txm *TxManager, table string, columns []string, rows [][]any) (int64, error) {
	tx := txm.GetTx(ctx)
	if tx == nil {
		return 0, fmt.Errorf("CopyRows requires an active transaction")
	}
	return tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
}

// ExecBatch sends all queries to the server in a single round-trip and
// checks every result. Must run inside a transaction.
func ExecBatch(ctx context.Context, txm *TxManager, queries []BatchQuery) error {
	tx := txm.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("ExecBatch requires an active transaction")
	}

	batch := &pgx.Batch{}
	for _, q := range queries {
		batch.Queue(q.SQL, q.Args...)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := range queries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	return nil
}
