package ledger

import "errors"

// Domain outcomes form a closed set. Every one of them implies the enclosing
// atomic unit was rolled back with zero state change.
var (
	// ErrNotFound indicates the referenced account does not exist.
	ErrNotFound = errors.New("ledger: account not found")
	// ErrSuspended indicates a customer-initiated debit hit a suspended account.
	ErrSuspended = errors.New("ledger: account suspended")
	// ErrInsufficient indicates the debit would take the balance below zero.
	ErrInsufficient = errors.New("ledger: insufficient funds")
	// ErrSameAccount indicates a transfer where both sides resolve to one account.
	ErrSameAccount = errors.New("ledger: transfer to same account")
	// ErrInvalidAmount indicates a non-positive amount or one not expressible
	// at two decimal places.
	ErrInvalidAmount = errors.New("ledger: invalid amount")
	// ErrInvalidPage indicates an out-of-range history limit or offset.
	ErrInvalidPage = errors.New("ledger: invalid page window")
)

// IsDomainOutcome reports whether err belongs to the closed outcome set.
func IsDomainOutcome(err error) bool {
	for _, target := range []error{ErrNotFound, ErrSuspended, ErrInsufficient, ErrSameAccount, ErrInvalidAmount, ErrInvalidPage} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// TransientError wraps infrastructure failures such as lock-wait timeouts and
// lost connections. Callers may retry the whole operation from scratch; the
// service never retries on its own, and any retry re-validates against fresh
// state.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "ledger: transient failure: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable infrastructure failure.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
