package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// TransactionManager executes a function within a database transaction,
// passing the underlying transaction handle via `tx`.
//
// Use-case interfaces stay clean (no storage types leak out), while
// repository methods that accept a Tx can detect it implementation-side
// and run conditional updates or FOR UPDATE selects against the same
// transaction. Repositories MUST gracefully accept a nil Tx (the
// non-transactional path executes against the pool).
//
// The payment state machine depends on this: the status re-check and the
// benefit writes share one transaction, so two concurrent deliveries can
// never both observe PENDING and both transition.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
