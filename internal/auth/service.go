package auth

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-bank/meridian/internal/ledger"
	"github.com/meridian-bank/meridian/internal/shared"
)

const (
	loginAttemptMax = 5
	otpAttemptMax   = 10
	otpWrongCodeMax = 5
	otpValidity     = 5 * time.Minute
	otpCodeDigits   = 6
	rateLimitWindow = 10 * time.Minute
)

// OTPMailer delivers one-time codes out of band. The worker's asynq client
// implements this; delivery happens outside the request path.
type OTPMailer interface {
	SendOTP(ctx context.Context, email, code string) error
}

// Service wraps authentication business rules. Customer login is a single
// password step; admin login is password then OTP.
type Service struct {
	repo    Repository
	tokens  *TokenStore
	limiter *attemptLimiter
	mailer  OTPMailer
	logger  *slog.Logger
	now     func() time.Time
}

// ServiceParams groups Service dependencies.
type ServiceParams struct {
	Repo   Repository
	Tokens *TokenStore
	Redis  *redis.Client
	Mailer OTPMailer
	Logger *slog.Logger
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// NewService constructs a Service.
func NewService(p ServiceParams) *Service {
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Service{
		repo:    p.Repo,
		tokens:  p.Tokens,
		limiter: newAttemptLimiter(p.Redis, rateLimitWindow),
		mailer:  p.Mailer,
		logger:  p.Logger,
		now:     p.Now,
	}
}

// CustomerLogin validates customer credentials and issues a bearer token.
// Suspended accounts cannot log in.
func (s *Service) CustomerLogin(ctx context.Context, username, password string) (string, error) {
	rateKey := "rl:customer_login:" + username
	if err := s.limiter.hit(ctx, rateKey, loginAttemptMax); err != nil {
		return "", err
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil || user.Role != string(shared.RoleCustomer) {
		return "", shared.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", shared.ErrInvalidCredentials
	}
	if user.AccountStatus != nil && *user.AccountStatus == ledger.StatusSuspended {
		return "", fmt.Errorf("auth: account suspended: %w", shared.ErrForbidden)
	}

	token, err := s.tokens.Issue(ctx, shared.Identity{UserID: user.UserID, Role: shared.RoleCustomer})
	if err != nil {
		return "", err
	}
	s.limiter.reset(ctx, rateKey)
	return token, nil
}

// AdminLoginInitiate validates admin credentials and sends an OTP valid for
// five minutes.
func (s *Service) AdminLoginInitiate(ctx context.Context, username, password string) error {
	rateKey := "rl:admin_login:" + username
	if err := s.limiter.hit(ctx, rateKey, loginAttemptMax); err != nil {
		return err
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil || user.Role != string(shared.RoleAdmin) {
		return shared.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return shared.ErrInvalidCredentials
	}

	code := randomOTP()
	if err := s.repo.SetOTP(ctx, user.UserID, code, s.now().Add(otpValidity)); err != nil {
		return err
	}
	if err := s.mailer.SendOTP(ctx, user.Email, code); err != nil {
		return err
	}
	s.limiter.reset(ctx, rateKey)
	return nil
}

// AdminLoginVerify checks the OTP and issues an admin bearer token. The code
// is single-use: it is cleared on success, on expiry and after too many
// wrong attempts.
func (s *Service) AdminLoginVerify(ctx context.Context, username, code string) (string, error) {
	rateKey := "rl:admin_otp:" + username
	if err := s.limiter.hit(ctx, rateKey, otpAttemptMax); err != nil {
		return "", err
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil || user.Role != string(shared.RoleAdmin) {
		return "", shared.ErrInvalidCredentials
	}
	if user.OTPCode == nil || user.OTPExpiresAt == nil {
		return "", shared.ErrInvalidCredentials
	}
	if user.OTPAttempts >= otpWrongCodeMax {
		_ = s.repo.ClearOTP(ctx, user.UserID)
		return "", fmt.Errorf("auth: otp attempts exhausted: %w", shared.ErrRateLimited)
	}
	if s.now().After(*user.OTPExpiresAt) {
		_ = s.repo.ClearOTP(ctx, user.UserID)
		return "", shared.ErrInvalidCredentials
	}
	if *user.OTPCode != code {
		if err := s.repo.IncrementOTPAttempts(ctx, user.UserID); err != nil {
			s.logger.Warn("increment otp attempts", slog.Any("error", err))
		}
		return "", shared.ErrInvalidCredentials
	}

	if err := s.repo.ClearOTP(ctx, user.UserID); err != nil {
		return "", err
	}
	token, err := s.tokens.Issue(ctx, shared.Identity{UserID: user.UserID, Role: shared.RoleAdmin})
	if err != nil {
		return "", err
	}
	s.limiter.reset(ctx, rateKey)
	return token, nil
}

// Logout revokes the bearer token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

func randomOTP() string {
	code := make([]byte, otpCodeDigits)
	for i := range code {
		code[i] = byte('0' + rand.IntN(10))
	}
	return string(code)
}
