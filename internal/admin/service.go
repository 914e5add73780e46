package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-bank/meridian/internal/customers"
	"github.com/meridian-bank/meridian/internal/ledger"
	"github.com/meridian-bank/meridian/internal/shared"
)

// RepositoryPort defines data access methods for administration.
type RepositoryPort interface {
	ListCustomers(ctx context.Context) ([]CustomerRecord, error)
	SearchCustomers(ctx context.Context, term string) ([]CustomerRecord, error)
	GetCustomer(ctx context.Context, userID int64) (*CustomerRecord, error)
	GetCustomerByAccount(ctx context.Context, accountNumber string) (*CustomerRecord, error)
	UpdateCustomer(ctx context.Context, userID int64, username, email, passwordHash string) (bool, error)
	UpdateAccountStatus(ctx context.Context, userID int64, status ledger.Status) (bool, error)
	DeleteCustomer(ctx context.Context, userID int64) (bool, error)
	Statistics(ctx context.Context) (*Statistics, error)
}

// AuditRecorder persists administrative actions.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles administrative business logic. Status transitions and
// deletes are audited and invalidate the customer's cached profile.
type Service struct {
	repo   RepositoryPort
	audit  AuditRecorder
	inval  ledger.Invalidator
	logger *slog.Logger
}

// ServiceParams groups Service dependencies.
type ServiceParams struct {
	Repo        RepositoryPort
	Audit       AuditRecorder
	Invalidator ledger.Invalidator
	Logger      *slog.Logger
}

// NewService constructs a Service.
func NewService(p ServiceParams) *Service {
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return &Service{repo: p.Repo, audit: p.Audit, inval: p.Invalidator, logger: p.Logger}
}

// Customers lists all customers, optionally filtered by a search term.
func (s *Service) Customers(ctx context.Context, search string) ([]CustomerRecord, error) {
	if search != "" {
		return s.repo.SearchCustomers(ctx, search)
	}
	return s.repo.ListCustomers(ctx)
}

// Customer returns one customer by user id.
func (s *Service) Customer(ctx context.Context, userID int64) (*CustomerRecord, error) {
	rec, err := s.repo.GetCustomer(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// CustomerByAccount returns one customer by account number.
func (s *Service) CustomerByAccount(ctx context.Context, accountNumber string) (*CustomerRecord, error) {
	rec, err := s.repo.GetCustomerByAccount(ctx, accountNumber)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// UpdateCustomer changes the given fields. Password updates are re-hashed
// and pass the same strength rule as registration.
func (s *Service) UpdateCustomer(ctx context.Context, actorID, userID int64, input UpdateCustomerInput) error {
	passwordHash := ""
	if input.Password != "" {
		if err := customers.ValidatePasswordStrength(input.Password); err != nil {
			return err
		}
		h, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		passwordHash = string(h)
	}
	changed, err := s.repo.UpdateCustomer(ctx, userID, input.Username, input.Email, passwordHash)
	if err != nil {
		return err
	}
	if !changed {
		return shared.ErrNotFound
	}
	s.recordAudit(ctx, actorID, "customer.update", userID, nil)
	s.invalidate(ctx, userID)
	return nil
}

// SetAccountStatus transitions between active and suspended. Suspension blocks
// customer-initiated debits only; the account keeps accepting credits.
func (s *Service) SetAccountStatus(ctx context.Context, actorID, userID int64, status ledger.Status) error {
	if status != ledger.StatusActive && status != ledger.StatusSuspended {
		return fmt.Errorf("admin: invalid status %q", status)
	}
	changed, err := s.repo.UpdateAccountStatus(ctx, userID, status)
	if err != nil {
		return err
	}
	if !changed {
		return shared.ErrNotFound
	}
	s.recordAudit(ctx, actorID, "account.status", userID, map[string]any{"status": status})
	s.invalidate(ctx, userID)
	return nil
}

// DeleteCustomer removes the customer record.
func (s *Service) DeleteCustomer(ctx context.Context, actorID, userID int64) error {
	deleted, err := s.repo.DeleteCustomer(ctx, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return shared.ErrNotFound
	}
	s.recordAudit(ctx, actorID, "customer.delete", userID, nil)
	s.invalidate(ctx, userID)
	return nil
}

// Stats aggregates customer statistics.
func (s *Service) Stats(ctx context.Context) (*Statistics, error) {
	return s.repo.Statistics(ctx)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, userID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "customer",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) invalidate(ctx context.Context, userID int64) {
	if s.inval != nil {
		s.inval.InvalidateProfile(ctx, userID)
	}
}
