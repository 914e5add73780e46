package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-bank/meridian/internal/auth"
	"github.com/meridian-bank/meridian/internal/ledger"
	"github.com/meridian-bank/meridian/internal/shared"
	_ "github.com/meridian-bank/meridian/testing"
)

type stubRepo struct {
	user *auth.User
}

func (s *stubRepo) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	if s.user == nil || s.user.Username != username {
		return nil, shared.ErrNotFound
	}
	u := *s.user
	return &u, nil
}

func (s *stubRepo) SetOTP(ctx context.Context, userID int64, code string, expiresAt time.Time) error {
	s.user.OTPCode = &code
	s.user.OTPExpiresAt = &expiresAt
	s.user.OTPAttempts = 0
	return nil
}

func (s *stubRepo) ClearOTP(ctx context.Context, userID int64) error {
	s.user.OTPCode = nil
	s.user.OTPExpiresAt = nil
	s.user.OTPAttempts = 0
	return nil
}

func (s *stubRepo) IncrementOTPAttempts(ctx context.Context, userID int64) error {
	s.user.OTPAttempts++
	return nil
}

type recordingMailer struct {
	email string
	code  string
}

func (m *recordingMailer) SendOTP(ctx context.Context, email, code string) error {
	m.email = email
	m.code = code
	return nil
}

func hash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func statusPtr(s ledger.Status) *ledger.Status { return &s }

func newTestService(t *testing.T, repo auth.Repository, mailer auth.OTPMailer) (*auth.Service, *auth.TokenStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tokens := auth.NewTokenStore(client, time.Hour)
	svc := auth.NewService(auth.ServiceParams{
		Repo:   repo,
		Tokens: tokens,
		Redis:  client,
		Mailer: mailer,
	})
	return svc, tokens
}

func TestCustomerLoginIssuesToken(t *testing.T) {
	repo := &stubRepo{user: &auth.User{
		UserID:        7,
		Username:      "alice",
		Role:          "customer",
		PasswordHash:  hash(t, "hunter2passw0rd"),
		AccountStatus: statusPtr(ledger.StatusActive),
	}}
	svc, tokens := newTestService(t, repo, nil)

	token, err := svc.CustomerLogin(context.Background(), "alice", "hunter2passw0rd")
	require.NoError(t, err)

	id, err := tokens.Resolve(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, int64(7), id.UserID)
	require.Equal(t, shared.RoleCustomer, id.Role)
}

func TestCustomerLoginRejectsBadCredentials(t *testing.T) {
	repo := &stubRepo{user: &auth.User{
		UserID:        7,
		Username:      "alice",
		Role:          "customer",
		PasswordHash:  hash(t, "hunter2passw0rd"),
		AccountStatus: statusPtr(ledger.StatusActive),
	}}
	svc, _ := newTestService(t, repo, nil)

	_, err := svc.CustomerLogin(context.Background(), "alice", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	_, err = svc.CustomerLogin(context.Background(), "nobody", "hunter2passw0rd")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestCustomerLoginRejectsSuspendedAccount(t *testing.T) {
	repo := &stubRepo{user: &auth.User{
		UserID:        7,
		Username:      "alice",
		Role:          "customer",
		PasswordHash:  hash(t, "hunter2passw0rd"),
		AccountStatus: statusPtr(ledger.StatusSuspended),
	}}
	svc, _ := newTestService(t, repo, nil)

	_, err := svc.CustomerLogin(context.Background(), "alice", "hunter2passw0rd")
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestCustomerLoginRateLimited(t *testing.T) {
	repo := &stubRepo{user: &auth.User{
		UserID:        7,
		Username:      "alice",
		Role:          "customer",
		PasswordHash:  hash(t, "hunter2passw0rd"),
		AccountStatus: statusPtr(ledger.StatusActive),
	}}
	svc, _ := newTestService(t, repo, nil)

	for i := 0; i < 5; i++ {
		_, err := svc.CustomerLogin(context.Background(), "alice", "wrong")
		require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	}
	_, err := svc.CustomerLogin(context.Background(), "alice", "hunter2passw0rd")
	require.ErrorIs(t, err, shared.ErrRateLimited)
}

func TestAdminLoginFullFlow(t *testing.T) {
	repo := &stubRepo{user: &auth.User{
		UserID:       1,
		Username:     "root",
		Email:        "root@example.com",
		Role:         "admin",
		PasswordHash: hash(t, "sup3rsecret!"),
	}}
	mailer := &recordingMailer{}
	svc, tokens := newTestService(t, repo, mailer)
	ctx := context.Background()

	require.NoError(t, svc.AdminLoginInitiate(ctx, "root", "sup3rsecret!"))
	require.Equal(t, "root@example.com", mailer.email)
	require.Len(t, mailer.code, 6)

	token, err := svc.AdminLoginVerify(ctx, "root", mailer.code)
	require.NoError(t, err)

	id, err := tokens.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, shared.RoleAdmin, id.Role)

	// The code is single-use.
	_, err = svc.AdminLoginVerify(ctx, "root", mailer.code)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAdminLoginVerifyWrongCodeCountsAttempts(t *testing.T) {
	repo := &stubRepo{user: &auth.User{
		UserID:       1,
		Username:     "root",
		Email:        "root@example.com",
		Role:         "admin",
		PasswordHash: hash(t, "sup3rsecret!"),
	}}
	mailer := &recordingMailer{}
	svc, _ := newTestService(t, repo, mailer)
	ctx := context.Background()

	require.NoError(t, svc.AdminLoginInitiate(ctx, "root", "sup3rsecret!"))

	for i := 0; i < 5; i++ {
		_, err := svc.AdminLoginVerify(ctx, "root", "000000")
		require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	}
	// Attempt budget exhausted: code is dropped even when correct.
	_, err := svc.AdminLoginVerify(ctx, "root", mailer.code)
	require.ErrorIs(t, err, shared.ErrRateLimited)
	require.Nil(t, repo.user.OTPCode)
}

func TestAdminLoginVerifyExpiredCode(t *testing.T) {
	repo := &stubRepo{user: &auth.User{
		UserID:       1,
		Username:     "root",
		Email:        "root@example.com",
		Role:         "admin",
		PasswordHash: hash(t, "sup3rsecret!"),
	}}
	mailer := &recordingMailer{}
	now := time.Now()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := auth.NewService(auth.ServiceParams{
		Repo:   repo,
		Tokens: auth.NewTokenStore(client, time.Hour),
		Redis:  client,
		Mailer: mailer,
		Now:    func() time.Time { return now },
	})
	ctx := context.Background()

	require.NoError(t, svc.AdminLoginInitiate(ctx, "root", "sup3rsecret!"))

	now = now.Add(6 * time.Minute)
	_, err := svc.AdminLoginVerify(ctx, "root", mailer.code)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	require.Nil(t, repo.user.OTPCode)
}

func TestTokenRevocation(t *testing.T) {
	repo := &stubRepo{user: &auth.User{
		UserID:        7,
		Username:      "alice",
		Role:          "customer",
		PasswordHash:  hash(t, "hunter2passw0rd"),
		AccountStatus: statusPtr(ledger.StatusActive),
	}}
	svc, tokens := newTestService(t, repo, nil)
	ctx := context.Background()

	token, err := svc.CustomerLogin(ctx, "alice", "hunter2passw0rd")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, token))

	_, err = tokens.Resolve(ctx, token)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}
