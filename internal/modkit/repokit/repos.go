// Package repokit holds the types repos share so they never import a driver
package repokit

import (
	"context"

	"campaigncollector/internal/platform/store"
)

// Queryer is the read and write surface repos bind to
type Queryer = store.RowQuerier

// TxRunner can execute a function inside a transaction
type TxRunner = store.TxRunner

type (
	// Rows is a result set
	Rows = store.Rows

	// Row is a single row result
	Row = store.Row

	// CommandTag is the result of a write
	CommandTag = store.CommandTag
)

// WithTx runs fn inside a transaction on tx
func WithTx(ctx context.Context, tx TxRunner, fn func(q Queryer) error) error {
	return tx.Tx(ctx, fn)
}
