package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"
)

// Invalidator is the post-commit cache hook. It is called once per affected
// user, strictly after the atomic unit has committed.
type Invalidator interface {
	InvalidateProfile(ctx context.Context, userID int64)
}

// Observer counts finished ledger operations by outcome.
type Observer interface {
	ObserveLedgerOp(op, outcome string)
}

// Service orchestrates deposit, withdraw and transfer by composing the store,
// the transaction log and the validation rules into single atomic units.
// Domain outcomes are returned as the sentinel errors in outcome.go and
// always mean the unit rolled back with zero state change.
type Service struct {
	store      Store
	logger     *slog.Logger
	inval      Invalidator
	obs        Observer
	maxHistory int
}

// ServiceParams groups Service dependencies.
type ServiceParams struct {
	Store       Store
	Logger      *slog.Logger
	Invalidator Invalidator
	Observer    Observer
	// MaxHistoryLimit caps the history page size. Zero means 200.
	MaxHistoryLimit int
}

// NewService constructs a Service.
func NewService(p ServiceParams) *Service {
	if p.MaxHistoryLimit <= 0 {
		p.MaxHistoryLimit = 200
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return &Service{
		store:      p.Store,
		logger:     p.Logger,
		inval:      p.Invalidator,
		obs:        p.Observer,
		maxHistory: p.MaxHistoryLimit,
	}
}

// Deposit credits the account. Deposits are permitted regardless of account
// status; only the customer-initiated debit paths check it.
func (s *Service) Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (decimal.Decimal, error) {
	var newBalance decimal.Decimal
	var ownerID int64

	err := s.observe(ctx, "deposit", func(ctx context.Context) error {
		if err := ValidateAmount(amount); err != nil {
			return err
		}
		return s.store.InUnit(ctx, func(ctx context.Context, u Unit) error {
			acct, err := u.LockAccount(ctx, accountNumber)
			if err != nil {
				return err
			}
			balance, applied, err := u.ApplyDelta(ctx, accountNumber, amount, false)
			if err != nil {
				return err
			}
			if !applied {
				return fmt.Errorf("ledger: deposit on %s not applied", accountNumber)
			}
			ownerID = acct.UserID
			newBalance = balance
			return u.InsertTransaction(ctx, TransactionInput{
				UserID:        acct.UserID,
				AccountNumber: accountNumber,
				Type:          TypeDeposit,
				Amount:        amount,
				BalanceAfter:  balance,
			})
		})
	})
	if err != nil {
		return decimal.Decimal{}, err
	}

	s.invalidate(ctx, ownerID)
	return newBalance, nil
}

// WithdrawByAccount debits an account addressed by number. This is the
// administrative path: it deliberately skips the status check, so a
// suspended account can still be debited by an operator.
func (s *Service) WithdrawByAccount(ctx context.Context, accountNumber string, amount decimal.Decimal) (decimal.Decimal, error) {
	var newBalance decimal.Decimal
	var ownerID int64

	err := s.observe(ctx, "withdraw_by_account", func(ctx context.Context) error {
		if err := ValidateAmount(amount); err != nil {
			return err
		}
		return s.store.InUnit(ctx, func(ctx context.Context, u Unit) error {
			acct, err := u.LockAccount(ctx, accountNumber)
			if err != nil {
				return err
			}
			balance, applied, err := u.ApplyDelta(ctx, accountNumber, amount.Neg(), false)
			if err != nil {
				return err
			}
			if !applied {
				return ErrInsufficient
			}
			ownerID = acct.UserID
			newBalance = balance
			return u.InsertTransaction(ctx, TransactionInput{
				UserID:        acct.UserID,
				AccountNumber: accountNumber,
				Type:          TypeWithdraw,
				Amount:        amount,
				BalanceAfter:  balance,
			})
		})
	})
	if err != nil {
		return decimal.Decimal{}, err
	}

	s.invalidate(ctx, ownerID)
	return newBalance, nil
}

// WithdrawByUser debits the caller's own account. The customer path requires
// the account to be active.
func (s *Service) WithdrawByUser(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var newBalance decimal.Decimal

	err := s.observe(ctx, "withdraw", func(ctx context.Context) error {
		if err := ValidateAmount(amount); err != nil {
			return err
		}
		return s.store.InUnit(ctx, func(ctx context.Context, u Unit) error {
			acct, err := u.LockAccountByUser(ctx, userID)
			if err != nil {
				return err
			}
			if err := RequireActive(acct.Status); err != nil {
				return err
			}
			// The lock closes the race between the status check above and
			// the predicate below; the predicate re-checks anyway.
			balance, applied, err := u.ApplyDelta(ctx, acct.AccountNumber, amount.Neg(), true)
			if err != nil {
				return err
			}
			if !applied {
				return ErrInsufficient
			}
			newBalance = balance
			return u.InsertTransaction(ctx, TransactionInput{
				UserID:        userID,
				AccountNumber: acct.AccountNumber,
				Type:          TypeWithdraw,
				Amount:        amount,
				BalanceAfter:  balance,
			})
		})
	})
	if err != nil {
		return decimal.Decimal{}, err
	}

	s.invalidate(ctx, userID)
	return newBalance, nil
}

// Transfer moves amount from the sender's account to the named receiver
// account as one atomic unit: two balance updates plus two log entries
// commit together or not at all.
func (s *Service) Transfer(ctx context.Context, fromUserID int64, toAccountNumber string, amount decimal.Decimal) (decimal.Decimal, error) {
	var senderBalance decimal.Decimal
	var receiverUserID int64

	err := s.observe(ctx, "transfer", func(ctx context.Context) error {
		if err := ValidateAmount(amount); err != nil {
			return err
		}
		return s.store.InUnit(ctx, func(ctx context.Context, u Unit) error {
			senderNumber, err := u.AccountNumberForUser(ctx, fromUserID)
			if err != nil {
				return err
			}

			// Both rows are locked in ascending account-number order, never
			// in caller order. Two opposite-direction transfers therefore
			// acquire locks in the same relative order and cannot deadlock.
			numbers := []string{senderNumber, toAccountNumber}
			sort.Strings(numbers)
			locked := make(map[string]*Account, 2)
			for _, number := range numbers {
				if _, ok := locked[number]; ok {
					continue
				}
				acct, err := u.LockAccount(ctx, number)
				if err != nil {
					return err
				}
				locked[number] = acct
			}
			sender, receiver := locked[senderNumber], locked[toAccountNumber]

			if err := RequireActive(sender.Status); err != nil {
				return err
			}
			if err := RequireActive(receiver.Status); err != nil {
				return err
			}
			if err := RequireDistinct(sender.AccountNumber, receiver.AccountNumber); err != nil {
				return err
			}
			if sender.Balance.LessThan(amount) {
				return ErrInsufficient
			}

			newSender, applied, err := u.ApplyDelta(ctx, sender.AccountNumber, amount.Neg(), true)
			if err != nil {
				return err
			}
			if !applied {
				return ErrInsufficient
			}
			newReceiver, applied, err := u.ApplyDelta(ctx, receiver.AccountNumber, amount, false)
			if err != nil {
				return err
			}
			if !applied {
				return fmt.Errorf("ledger: transfer credit on %s not applied", receiver.AccountNumber)
			}

			senderBalance = newSender
			receiverUserID = receiver.UserID

			out := TransactionInput{
				UserID:         fromUserID,
				AccountNumber:  sender.AccountNumber,
				Type:           TypeTransferOut,
				Amount:         amount,
				BalanceAfter:   newSender,
				RelatedAccount: &receiver.AccountNumber,
			}
			if err := u.InsertTransaction(ctx, out); err != nil {
				return err
			}
			in := TransactionInput{
				UserID:         receiver.UserID,
				AccountNumber:  receiver.AccountNumber,
				Type:           TypeTransferIn,
				Amount:         amount,
				BalanceAfter:   newReceiver,
				RelatedAccount: &sender.AccountNumber,
			}
			return u.InsertTransaction(ctx, in)
		})
	})
	if err != nil {
		return decimal.Decimal{}, err
	}

	s.invalidate(ctx, fromUserID)
	s.invalidate(ctx, receiverUserID)
	return senderBalance, nil
}

// History pages through a user's transactions, newest first.
func (s *Service) History(ctx context.Context, userID int64, limit, offset int) ([]Transaction, error) {
	if limit <= 0 || limit > s.maxHistory {
		return nil, ErrInvalidPage
	}
	if offset < 0 {
		return nil, ErrInvalidPage
	}
	return s.store.History(ctx, userID, limit, offset)
}

// Balance is an unlocked read for non-critical display.
func (s *Service) Balance(ctx context.Context, accountNumber string) (decimal.Decimal, error) {
	return s.store.ReadBalance(ctx, accountNumber)
}

func (s *Service) observe(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if s.obs != nil {
		s.obs.ObserveLedgerOp(op, outcomeLabel(err))
	}
	if err != nil && !IsDomainOutcome(err) {
		s.logger.Error("ledger operation failed", slog.String("op", op), slog.Any("error", err))
	}
	return err
}

func (s *Service) invalidate(ctx context.Context, userID int64) {
	if s.inval == nil || userID == 0 {
		return
	}
	s.inval.InvalidateProfile(ctx, userID)
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsTransient(err):
		return "transient"
	case IsDomainOutcome(err):
		return "rejected"
	default:
		return "error"
	}
}
