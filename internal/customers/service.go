package customers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-bank/meridian/internal/shared"
)

// allocationAttempts bounds the random account-number retry loop.
const allocationAttempts = 5

var (
	// ErrWeakPassword indicates the password failed the strength rule.
	ErrWeakPassword = errors.New("customers: password must be at least 8 characters and include a letter and a number")
	// ErrAllocationFailed indicates no unique account number was found
	// within the bounded retries.
	ErrAllocationFailed = errors.New("customers: failed to allocate a unique account number")
)

// RepositoryPort defines data access methods for customers.
type RepositoryPort interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (int64, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	AccountNumberExists(ctx context.Context, accountNumber string) (bool, error)
	CreateAccount(ctx context.Context, userID int64, accountNumber string) error
	ProfileByUserID(ctx context.Context, userID int64) (*Profile, error)
	ProfileByAccountNumber(ctx context.Context, accountNumber string) (*Profile, error)
}

// Service handles registration and profile reads.
type Service struct {
	repo      RepositoryPort
	cache     *ProfileCache
	logger    *slog.Logger
	numberGen func() string
}

// ServiceParams groups Service dependencies. NumberGen overrides account
// number generation, mainly for tests.
type ServiceParams struct {
	Repo      RepositoryPort
	Cache     *ProfileCache
	Logger    *slog.Logger
	NumberGen func() string
}

// NewService constructs a Service.
func NewService(p ServiceParams) *Service {
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.NumberGen == nil {
		p.NumberGen = randomAccountNumber
	}
	return &Service{repo: p.Repo, cache: p.Cache, logger: p.Logger, numberGen: p.NumberGen}
}

// randomAccountNumber draws a 10-digit number.
func randomAccountNumber() string {
	return strconv.FormatInt(1_000_000_000+rand.Int64N(9_000_000_000), 10)
}

// Register creates a user plus a zero-balance active account. The account
// number is drawn at random and retried a bounded number of times on
// collision; exhausting the retries fails the registration.
func (s *Service) Register(ctx context.Context, username, email, password string) (int64, error) {
	if taken, err := s.repo.UsernameExists(ctx, username); err != nil {
		return 0, err
	} else if taken {
		return 0, fmt.Errorf("customers: username already exists: %w", shared.ErrDuplicate)
	}
	if taken, err := s.repo.EmailExists(ctx, email); err != nil {
		return 0, err
	} else if taken {
		return 0, fmt.Errorf("customers: email already exists: %w", shared.ErrDuplicate)
	}
	if err := ValidatePasswordStrength(password); err != nil {
		return 0, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}
	userID, err := s.repo.CreateUser(ctx, username, email, string(hash))
	if err != nil {
		return 0, err
	}

	for attempt := 0; attempt < allocationAttempts; attempt++ {
		number := s.numberGen()
		taken, err := s.repo.AccountNumberExists(ctx, number)
		if err != nil {
			return 0, err
		}
		if taken {
			continue
		}
		if err := s.repo.CreateAccount(ctx, userID, number); err != nil {
			if errors.Is(err, shared.ErrDuplicate) {
				continue // lost the race on this number, draw again
			}
			return 0, err
		}
		return userID, nil
	}
	return 0, ErrAllocationFailed
}

// ValidatePasswordStrength enforces the minimum password rule.
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return ErrWeakPassword
	}
	return nil
}

// Profile returns the customer profile, served from cache when fresh.
func (s *Service) Profile(ctx context.Context, userID int64) (*Profile, error) {
	if p := s.cache.Get(ctx, userID); p != nil {
		return p, nil
	}
	p, err := s.repo.ProfileByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, p)
	return p, nil
}

// ProfileByAccountNumber looks a customer up by account number. Used by the
// admin surface; not cached.
func (s *Service) ProfileByAccountNumber(ctx context.Context, accountNumber string) (*Profile, error) {
	return s.repo.ProfileByAccountNumber(ctx, accountNumber)
}
