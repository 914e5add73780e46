package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-bank/meridian/internal/shared"
)

// Repository provides PostgreSQL backed persistence for customers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateUser inserts a user with role customer and returns its id.
func (r *Repository) CreateUser(ctx context.Context, username, email, passwordHash string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, 'customer', NOW())
		RETURNING user_id`,
		username, email, passwordHash,
	).Scan(&id)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("customers: user already exists: %w", shared.ErrDuplicate)
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UsernameExists reports whether a customer with the username exists.
func (r *Repository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM users WHERE username = $1`, username)
}

// EmailExists reports whether a customer with the email exists.
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM users WHERE email = $1`, email)
}

// AccountNumberExists reports whether the account number is taken.
func (r *Repository) AccountNumberExists(ctx context.Context, accountNumber string) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM accounts WHERE account_number = $1`, accountNumber)
}

func (r *Repository) exists(ctx context.Context, query string, arg any) (bool, error) {
	var one int
	err := r.pool.QueryRow(ctx, query, arg).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateAccount inserts a zero-balance active account for the user. Account
// creation is the only path that sets a balance outside the ledger, and it
// only ever writes 0.00.
func (r *Repository) CreateAccount(ctx context.Context, userID int64, accountNumber string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (account_number, user_id, balance, status, created_at)
		VALUES ($1, $2, 0.00, 'active', NOW())`,
		accountNumber, userID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("customers: account number taken: %w", shared.ErrDuplicate)
	}
	return err
}

// ProfileByUserID returns the joined customer profile.
func (r *Repository) ProfileByUserID(ctx context.Context, userID int64) (*Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx, `
		SELECT u.user_id, u.username, u.email, u.role, u.created_at,
		       a.account_number, a.balance, a.status
		FROM users u
		JOIN accounts a ON a.user_id = u.user_id
		WHERE u.user_id = $1 AND u.role = 'customer'`,
		userID,
	).Scan(&p.UserID, &p.Username, &p.Email, &p.Role, &p.CreatedAt, &p.AccountNumber, &p.CurrentBalance, &p.AccountStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ProfileByAccountNumber returns the customer owning the account.
func (r *Repository) ProfileByAccountNumber(ctx context.Context, accountNumber string) (*Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx, `
		SELECT u.user_id, u.username, u.email, u.role, u.created_at,
		       a.account_number, a.balance, a.status
		FROM users u
		JOIN accounts a ON a.user_id = u.user_id
		WHERE a.account_number = $1 AND u.role = 'customer'
		LIMIT 1`,
		accountNumber,
	).Scan(&p.UserID, &p.Username, &p.Email, &p.Role, &p.CreatedAt, &p.AccountNumber, &p.CurrentBalance, &p.AccountStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
