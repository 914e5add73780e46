package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-bank/meridian/internal/ledger"
)

// ErrNotFound indicates the customer does not exist.
var ErrNotFound = errors.New("admin: customer not found")

// Repository provides PostgreSQL backed persistence for administration.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const customerColumns = `
	u.user_id, u.username, u.email, u.role, u.created_at,
	a.account_number, a.balance, a.status`

// ListCustomers returns all customers, newest first.
func (r *Repository) ListCustomers(ctx context.Context) ([]CustomerRecord, error) {
	return r.queryCustomers(ctx, fmt.Sprintf(`
		SELECT %s
		FROM users u
		LEFT JOIN accounts a ON a.user_id = u.user_id
		WHERE u.role = 'customer'
		ORDER BY u.created_at DESC`, customerColumns))
}

// SearchCustomers matches username, email or account number.
func (r *Repository) SearchCustomers(ctx context.Context, term string) ([]CustomerRecord, error) {
	pattern := "%" + term + "%"
	return r.queryCustomers(ctx, fmt.Sprintf(`
		SELECT %s
		FROM users u
		LEFT JOIN accounts a ON a.user_id = u.user_id
		WHERE u.role = 'customer'
		  AND (u.username ILIKE $1 OR u.email ILIKE $1 OR a.account_number LIKE $1)
		ORDER BY u.created_at DESC`, customerColumns), pattern)
}

// GetCustomer returns one customer by user id.
func (r *Repository) GetCustomer(ctx context.Context, userID int64) (*CustomerRecord, error) {
	records, err := r.queryCustomers(ctx, fmt.Sprintf(`
		SELECT %s
		FROM users u
		LEFT JOIN accounts a ON a.user_id = u.user_id
		WHERE u.user_id = $1 AND u.role = 'customer'`, customerColumns), userID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return &records[0], nil
}

// GetCustomerByAccount returns one customer by account number.
func (r *Repository) GetCustomerByAccount(ctx context.Context, accountNumber string) (*CustomerRecord, error) {
	records, err := r.queryCustomers(ctx, fmt.Sprintf(`
		SELECT %s
		FROM users u
		JOIN accounts a ON a.user_id = u.user_id
		WHERE a.account_number = $1 AND u.role = 'customer'`, customerColumns), accountNumber)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return &records[0], nil
}

func (r *Repository) queryCustomers(ctx context.Context, query string, args ...any) ([]CustomerRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CustomerRecord
	for rows.Next() {
		var rec CustomerRecord
		if err := rows.Scan(&rec.UserID, &rec.Username, &rec.Email, &rec.Role, &rec.CreatedAt,
			&rec.AccountNumber, &rec.Balance, &rec.AccountStatus); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateCustomer applies the non-empty fields. Reports whether a row changed.
func (r *Repository) UpdateCustomer(ctx context.Context, userID int64, username, email, passwordHash string) (bool, error) {
	var sets []string
	var args []any
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("username", username)
	add("email", email)
	add("password_hash", passwordHash)
	if len(sets) == 0 {
		return false, nil
	}
	args = append(args, userID)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE user_id = $%d AND role = 'customer'`,
		strings.Join(sets, ", "), len(args))

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateAccountStatus transitions the customer's account status.
func (r *Repository) UpdateAccountStatus(ctx context.Context, userID int64, status ledger.Status) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET status = $1 WHERE user_id = $2`,
		status, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteCustomer removes a customer row. The accounts and transactions rows
// are kept by ON DELETE semantics in the schema; the ledger itself never
// deletes accounts.
func (r *Repository) DeleteCustomer(ctx context.Context, userID int64) (bool, error) {
	var role string
	err := r.pool.QueryRow(ctx, `SELECT role FROM users WHERE user_id = $1`, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if role != "customer" {
		return false, nil
	}
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM users WHERE user_id = $1 AND role = 'customer'`, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Statistics aggregates customer counts and balances.
func (r *Repository) Statistics(ctx context.Context) (*Statistics, error) {
	var stats Statistics
	var total *decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users WHERE role = 'customer'),
			(SELECT SUM(balance) FROM accounts),
			(SELECT COUNT(*) FROM accounts WHERE status = 'active')`,
	).Scan(&stats.TotalCustomers, &total, &stats.ActiveAccounts)
	if err != nil {
		return nil, err
	}
	if total != nil {
		stats.TotalBalance = *total
	}
	return &stats, nil
}
