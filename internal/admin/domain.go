package admin

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-bank/meridian/internal/ledger"
)

// CustomerRecord is the administrative view of a customer. Account fields
// are pointers because a registration can fail between the user insert and
// the account allocation.
type CustomerRecord struct {
	UserID        int64            `json:"user_id"`
	Username      string           `json:"username"`
	Email         string           `json:"email"`
	Role          string           `json:"role"`
	CreatedAt     time.Time        `json:"created_at"`
	AccountNumber *string          `json:"account_number"`
	Balance       *decimal.Decimal `json:"balance"`
	AccountStatus *ledger.Status   `json:"account_status"`
}

// Statistics summarizes the customer base.
type Statistics struct {
	TotalCustomers int64           `json:"total_customers"`
	TotalBalance   decimal.Decimal `json:"total_balance"`
	ActiveAccounts int64           `json:"active_accounts"`
}

// UpdateCustomerInput carries the optional fields of a customer update.
type UpdateCustomerInput struct {
	Username string
	Email    string
	Password string
}
