package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store is the persistence contract the ledger service runs against. All
// mutations happen inside one atomic unit: they commit together or not at
// all, and partial application is never observable to other operations.
type Store interface {
	// InUnit runs fn inside one atomic unit. A nil return commits, any error
	// rolls back. Lock waits inside the unit are bounded; on timeout the
	// returned error is a *TransientError.
	InUnit(ctx context.Context, fn func(ctx context.Context, u Unit) error) error

	// ReadBalance is an unlocked read for non-critical queries.
	ReadBalance(ctx context.Context, accountNumber string) (decimal.Decimal, error)

	// History returns a user's transactions ordered by created_at descending.
	History(ctx context.Context, userID int64, limit, offset int) ([]Transaction, error)
}

// Unit exposes the operations available inside one atomic unit. Row locks
// acquired here are held until the unit commits or rolls back.
type Unit interface {
	// LockAccount acquires an exclusive row lock on the account.
	// Returns ErrNotFound when no such account exists.
	LockAccount(ctx context.Context, accountNumber string) (*Account, error)

	// LockAccountByUser locks the account owned by the user.
	LockAccountByUser(ctx context.Context, userID int64) (*Account, error)

	// AccountNumberForUser resolves a user's account number without locking.
	AccountNumberForUser(ctx context.Context, userID int64) (string, error)

	// ApplyDelta adds delta to the balance only if the resulting balance
	// stays non-negative and, when requireActive is set, the account is
	// active at update time. Reports the new balance and whether a row was
	// updated, so the check-then-act is race-free even without a prior lock.
	ApplyDelta(ctx context.Context, accountNumber string, delta decimal.Decimal, requireActive bool) (decimal.Decimal, bool, error)

	// InsertTransaction appends one immutable log entry to the unit. If the
	// unit rolls back the entry never becomes visible.
	InsertTransaction(ctx context.Context, rec TransactionInput) error
}
