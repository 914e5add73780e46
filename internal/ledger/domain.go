package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates account lifecycle states.
type Status string

const (
	// StatusActive marks an account that may be debited by its owner.
	StatusActive Status = "active"
	// StatusSuspended blocks customer-initiated debits.
	StatusSuspended Status = "suspended"
)

// TransactionType enumerates ledger entry kinds.
type TransactionType string

const (
	TypeDeposit     TransactionType = "deposit"
	TypeWithdraw    TransactionType = "withdraw"
	TypeTransferIn  TransactionType = "transfer_in"
	TypeTransferOut TransactionType = "transfer_out"
)

// Account is one row of the balance store. The balance is a fixed-point
// decimal with scale 2 and is never negative at any committed state.
type Account struct {
	AccountNumber string
	UserID        int64
	Balance       decimal.Decimal
	Status        Status
	CreatedAt     time.Time
}

// Transaction is one immutable entry of the append-only transaction log.
// BalanceAfter snapshots the owning account's balance as committed
// immediately after the event. RelatedAccount is set only for transfers.
type Transaction struct {
	ID             int64
	UserID         int64
	AccountNumber  string
	Type           TransactionType
	Amount         decimal.Decimal
	BalanceAfter   decimal.Decimal
	RelatedAccount *string
	CreatedAt      time.Time
}

// TransactionInput carries the fields of a log entry to be appended inside
// the caller's current atomic unit.
type TransactionInput struct {
	UserID         int64
	AccountNumber  string
	Type           TransactionType
	Amount         decimal.Decimal
	BalanceAfter   decimal.Decimal
	RelatedAccount *string
}
