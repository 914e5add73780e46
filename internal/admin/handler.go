package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-bank/meridian/internal/customers"
	"github.com/meridian-bank/meridian/internal/ledger"
	"github.com/meridian-bank/meridian/internal/platform/httpx"
	"github.com/meridian-bank/meridian/internal/shared"
)

// Handler wires the administrative JSON endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	customers *customers.Service
	ledger    *ledger.Service
	validate  *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, customerSvc *customers.Service, ledgerSvc *ledger.Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		customers: customerSvc,
		ledger:    ledgerSvc,
		validate:  validator.New(),
	}
}

// Mount registers routes that require an admin identity.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/customers", h.handleList)
	r.Post("/customers", h.handleCreate)
	r.Get("/customers/stats", h.handleStats)
	r.Get("/customers/by-account/{accountNumber}", h.handleGetByAccount)
	r.Get("/customers/{userID}", h.handleGet)
	r.Put("/customers/{userID}", h.handleUpdate)
	r.Patch("/customers/{userID}/status", h.handleStatus)
	r.Delete("/customers/{userID}", h.handleDelete)
	r.Post("/add-cash", h.handleAddCash)
	r.Post("/withdraw-cash", h.handleWithdrawCash)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.Customers(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if records == nil {
		records = []CustomerRecord{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"customers": records,
	})
}

type createCustomerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	userID, err := h.customers.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, customers.ErrWeakPassword) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"status":  "success",
		"message": "customer created successfully",
		"user_id": userID,
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	rec, err := h.service.Customer(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) handleGetByAccount(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.CustomerByAccount(r.Context(), chi.URLParam(r, "accountNumber"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

type updateCustomerRequest struct {
	Username string `json:"username" validate:"omitempty,min=3,max=50"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	var req updateCustomerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if req.Username == "" && req.Email == "" && req.Password == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "no fields to update")
		return
	}
	input := UpdateCustomerInput{Username: req.Username, Email: req.Email, Password: req.Password}
	if err := h.service.UpdateCustomer(r.Context(), actorID(r), userID, input); err != nil {
		if errors.Is(err, customers.ErrWeakPassword) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "customer updated successfully",
	})
}

type statusRequest struct {
	Status ledger.Status `json:"status" validate:"required,oneof=active suspended"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.SetAccountStatus(r.Context(), actorID(r), userID, req.Status); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "account status updated",
	})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	if err := h.service.DeleteCustomer(r.Context(), actorID(r), userID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "customer deleted successfully",
	})
}

type cashRequest struct {
	AccountNumber string          `json:"account_number" validate:"required,len=10,numeric"`
	Amount        decimal.Decimal `json:"amount"`
}

func (h *Handler) handleAddCash(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCash(w, r)
	if !ok {
		return
	}
	balance, err := h.ledger.Deposit(r.Context(), req.AccountNumber, req.Amount)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "success", "new_balance": balance})
}

func (h *Handler) handleWithdrawCash(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCash(w, r)
	if !ok {
		return
	}
	balance, err := h.ledger.WithdrawByAccount(r.Context(), req.AccountNumber, req.Amount)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "success", "new_balance": balance})
}

func (h *Handler) decodeCash(w http.ResponseWriter, r *http.Request) (cashRequest, bool) {
	var req cashRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return req, false
	}
	return req, true
}

func pathUserID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
}

func actorID(r *http.Request) int64 {
	if id, ok := shared.IdentityFromContext(r.Context()); ok {
		return id.UserID
	}
	return 0
}
