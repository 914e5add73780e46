package auth

import (
	"time"

	"github.com/meridian-bank/meridian/internal/ledger"
)

// User is a credential row. AccountStatus is joined in for customers so the
// login path can refuse suspended accounts; it is nil for admins.
type User struct {
	UserID        int64
	Username      string
	Email         string
	PasswordHash  string
	Role          string
	AccountStatus *ledger.Status
	OTPCode       *string
	OTPExpiresAt  *time.Time
	OTPAttempts   int
	CreatedAt     time.Time
}
