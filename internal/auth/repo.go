package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-bank/meridian/internal/shared"
)

// Repository defines credential persistence for the auth service.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	SetOTP(ctx context.Context, userID int64, code string, expiresAt time.Time) error
	ClearOTP(ctx context.Context, userID int64) error
	IncrementOTPAttempts(ctx context.Context, userID int64) error
}

// PgRepository is the PostgreSQL implementation.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// FindByUsername loads a user with the owning account's status joined in.
func (r *PgRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `
		SELECT u.user_id, u.username, u.email, u.password_hash, u.role,
		       u.otp_code, u.otp_expires_at, u.otp_attempts, u.created_at,
		       a.status
		FROM users u
		LEFT JOIN accounts a ON a.user_id = u.user_id
		WHERE u.username = $1
		LIMIT 1`,
		username,
	).Scan(&u.UserID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&u.OTPCode, &u.OTPExpiresAt, &u.OTPAttempts, &u.CreatedAt,
		&u.AccountStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetOTP stores a fresh code, resetting the attempt counter.
func (r *PgRepository) SetOTP(ctx context.Context, userID int64, code string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET otp_code = $1, otp_expires_at = $2, otp_attempts = 0
		WHERE user_id = $3`,
		code, expiresAt, userID)
	return err
}

// ClearOTP removes any pending code and resets the attempt counter.
func (r *PgRepository) ClearOTP(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET otp_code = NULL, otp_expires_at = NULL, otp_attempts = 0
		WHERE user_id = $1`,
		userID)
	return err
}

// IncrementOTPAttempts counts a wrong code.
func (r *PgRepository) IncrementOTPAttempts(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET otp_attempts = otp_attempts + 1
		WHERE user_id = $1`,
		userID)
	return err
}
