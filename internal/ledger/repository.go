package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-bank/meridian/internal/platform/db"
)

// PostgresStore implements Store on a pgx connection pool. Atomic units map
// to transactions; row locks are SELECT ... FOR UPDATE. Units run at read
// committed: row locks serialize writers on the same account, and the
// conditional UPDATE predicate is evaluated against the locked row.
type PostgresStore struct {
	pool     *pgxpool.Pool
	lockWait time.Duration
}

// NewPostgresStore constructs a store. lockWait bounds lock waits inside a
// unit; zero leaves the server default in place.
func NewPostgresStore(pool *pgxpool.Pool, lockWait time.Duration) *PostgresStore {
	return &PostgresStore{pool: pool, lockWait: lockWait}
}

// InUnit runs fn inside one transaction with a bounded lock_timeout.
func (s *PostgresStore) InUnit(ctx context.Context, fn func(ctx context.Context, u Unit) error) error {
	err := db.WithTx(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if err := db.SetLockTimeout(ctx, tx, s.lockWait); err != nil {
			return err
		}
		return fn(ctx, &pgUnit{tx: tx})
	})
	return classify(err)
}

// ReadBalance is an unlocked read for non-critical queries.
func (s *PostgresStore) ReadBalance(ctx context.Context, accountNumber string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.pool.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE account_number = $1`,
		accountNumber,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Decimal{}, ErrNotFound
	}
	if err != nil {
		return decimal.Decimal{}, classify(err)
	}
	return balance, nil
}

// History returns the user's transactions, newest first. Pagination is stable
// only while no new rows are inserted between pages.
func (s *PostgresStore) History(ctx context.Context, userID int64, limit, offset int) ([]Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT transaction_id, user_id, account_number, transaction_type,
		       amount, balance_after, related_account, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.AccountNumber, &t.Type, &t.Amount, &t.BalanceAfter, &t.RelatedAccount, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

type pgUnit struct {
	tx pgx.Tx
}

func (u *pgUnit) LockAccount(ctx context.Context, accountNumber string) (*Account, error) {
	return u.lockAccount(ctx, `
		SELECT account_number, user_id, balance, status, created_at
		FROM accounts
		WHERE account_number = $1
		FOR UPDATE`,
		accountNumber,
	)
}

func (u *pgUnit) LockAccountByUser(ctx context.Context, userID int64) (*Account, error) {
	return u.lockAccount(ctx, `
		SELECT account_number, user_id, balance, status, created_at
		FROM accounts
		WHERE user_id = $1
		LIMIT 1
		FOR UPDATE`,
		userID,
	)
}

func (u *pgUnit) lockAccount(ctx context.Context, query string, arg any) (*Account, error) {
	var acct Account
	err := u.tx.QueryRow(ctx, query, arg).Scan(&acct.AccountNumber, &acct.UserID, &acct.Balance, &acct.Status, &acct.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (u *pgUnit) AccountNumberForUser(ctx context.Context, userID int64) (string, error) {
	var number string
	err := u.tx.QueryRow(ctx,
		`SELECT account_number FROM accounts WHERE user_id = $1 LIMIT 1`,
		userID,
	).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return number, nil
}

// ApplyDelta performs the conditional balance update. The predicate is
// evaluated at update time, so the check-then-act is race-free even when the
// caller holds no prior lock.
func (u *pgUnit) ApplyDelta(ctx context.Context, accountNumber string, delta decimal.Decimal, requireActive bool) (decimal.Decimal, bool, error) {
	var balance decimal.Decimal
	err := u.tx.QueryRow(ctx, `
		UPDATE accounts
		SET balance = balance + $1
		WHERE account_number = $2
		  AND balance + $1 >= 0
		  AND (NOT $3 OR status = 'active')
		RETURNING balance`,
		delta, accountNumber, requireActive,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Decimal{}, false, nil
	}
	if err != nil {
		return decimal.Decimal{}, false, err
	}
	return balance, true, nil
}

func (u *pgUnit) InsertTransaction(ctx context.Context, rec TransactionInput) error {
	_, err := u.tx.Exec(ctx, `
		INSERT INTO transactions (user_id, account_number, transaction_type, amount, balance_after, related_account, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		rec.UserID, rec.AccountNumber, rec.Type, rec.Amount, rec.BalanceAfter, rec.RelatedAccount,
	)
	return err
}

// classify separates transient infrastructure failures from everything else.
// Domain outcomes pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if IsDomainOutcome(err) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", "40P01", "40001": // lock_not_available, deadlock_detected, serialization_failure
			return &TransientError{Err: err}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientError{Err: err}
	}
	return err
}
