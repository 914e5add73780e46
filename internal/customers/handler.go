package customers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-bank/meridian/internal/ledger"
	"github.com/meridian-bank/meridian/internal/platform/httpx"
	"github.com/meridian-bank/meridian/internal/shared"
)

// Handler wires the customer-facing JSON endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	ledger   *ledger.Service
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, ledgerSvc *ledger.Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		ledger:   ledgerSvc,
		validate: validator.New(),
	}
}

// MountPublic registers routes that need no identity.
func (h *Handler) MountPublic(r chi.Router) {
	r.Post("/register", h.handleRegister)
}

// MountProtected registers routes that require a customer identity.
func (h *Handler) MountProtected(r chi.Router) {
	r.Get("/profile", h.handleProfile)
	r.Get("/balance", h.handleBalance)
	r.Post("/withdraw", h.handleWithdraw)
	r.Post("/transfer", h.handleTransfer)
	r.Get("/transactions", h.handleTransactions)
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	userID, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrWeakPassword) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		if errors.Is(err, ErrAllocationFailed) {
			h.logger.Error("account allocation exhausted", slog.String("username", req.Username))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"status":  "success",
		"message": "customer registered successfully",
		"user_id": userID,
	})
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	profile, err := h.service.Profile(r.Context(), id.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

// handleBalance reads the balance from the store rather than the profile
// cache, so the figure is current even right after a transfer.
func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	profile, err := h.service.Profile(r.Context(), id.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	balance, err := h.ledger.Balance(r.Context(), profile.AccountNumber)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":         "success",
		"account_number": profile.AccountNumber,
		"balance":        balance,
	})
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req amountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	balance, err := h.ledger.WithdrawByUser(r.Context(), id.UserID, req.Amount)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "success", "new_balance": balance})
}

type transferRequest struct {
	ToAccountNumber string          `json:"to_account_number" validate:"required,len=10,numeric"`
	Amount          decimal.Decimal `json:"amount"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req transferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	balance, err := h.ledger.Transfer(r.Context(), id.UserID, req.ToAccountNumber, req.Amount)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "success", "new_balance": balance})
}

func (h *Handler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	items, err := h.ledger.History(r.Context(), id.UserID, limit, offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, t := range items {
		entry := map[string]any{
			"transaction_id":   t.ID,
			"account_number":   t.AccountNumber,
			"transaction_type": t.Type,
			"amount":           t.Amount,
			"balance_after":    t.BalanceAfter,
			"created_at":       t.CreatedAt,
		}
		if t.RelatedAccount != nil {
			entry["related_account"] = *t.RelatedAccount
		}
		out = append(out, entry)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "success", "transactions": out})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
