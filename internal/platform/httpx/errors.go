package httpx

import (
	"errors"
	"net/http"

	"github.com/meridian-bank/meridian/internal/ledger"
	"github.com/meridian-bank/meridian/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Ledger outcomes get their own mappings so clients can tell a refused
// operation from an infrastructure failure.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ledger.ErrSuspended):
		Problem(w, http.StatusForbidden, "Account Suspended", err.Error())
	case errors.Is(err, ledger.ErrInsufficient):
		Problem(w, http.StatusBadRequest, "Insufficient Funds", err.Error())
	case errors.Is(err, ledger.ErrSameAccount):
		Problem(w, http.StatusBadRequest, "Same Account", err.Error())
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrInvalidPage):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case ledger.IsTransient(err):
		Problem(w, http.StatusServiceUnavailable, "Temporarily Unavailable", "the operation may be retried")
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, shared.ErrRateLimited):
		Problem(w, http.StatusTooManyRequests, "Too Many Attempts", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
