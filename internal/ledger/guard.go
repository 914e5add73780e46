package ledger

import "github.com/shopspring/decimal"

// Validation rules shared by all ledger operations. Pure functions, no I/O.

// ValidateAmount accepts strictly positive amounts expressible at two
// decimal places.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}

// RequireActive fails unless the account may be debited by its owner.
func RequireActive(status Status) error {
	if status != StatusActive {
		return ErrSuspended
	}
	return nil
}

// RequireDistinct fails when both sides of a transfer are one account.
func RequireDistinct(a, b string) error {
	if a == b {
		return ErrSameAccount
	}
	return nil
}
