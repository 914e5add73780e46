package customers

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-bank/meridian/internal/ledger"
)

// Customer is a user row with role customer.
type Customer struct {
	UserID       int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Profile is the joined users+accounts view served to the customer and
// cached in Redis. The balance here is a display value; critical reads go
// through the ledger.
type Profile struct {
	UserID         int64           `json:"user_id"`
	Username       string          `json:"username"`
	Email          string          `json:"email"`
	Role           string          `json:"role"`
	CreatedAt      time.Time       `json:"account_created_at"`
	AccountNumber  string          `json:"account_number"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	AccountStatus  ledger.Status   `json:"account_status"`
}
