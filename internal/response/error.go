package response

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/GregMSThompson/potsync-backend/internal/errs"
	"github.com/GregMSThompson/potsync-backend/pkg/logger"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *responseHandler) WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(ErrorResponse{Code: code, Message: message}); err != nil {
		log := logger.FromContext(r.Context())
		log.Error("failed to encode error response", "error", err, "status", status, "code", code)
	}
}

func (h *responseHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())

	switch e := err.(type) {
	case *errs.NotFoundError:
		log.Warn("resource not found", "error", e.Message)
		h.WriteError(w, r, http.StatusNotFound, "not_found", e.Message)

	case *errs.ValidationError:
		log.Warn("validation failed", "error", e.Message)
		h.WriteError(w, r, http.StatusBadRequest, "invalid_input", e.Message)

	case *errs.NotConfiguredError:
		log.Warn("missing configuration", "error", e.Message)
		h.WriteError(w, r, http.StatusConflict, "not_configured", e.Message)

	case *errs.AuthError:
		level := slog.LevelWarn
		if e.Permanent {
			level = slog.LevelError
		}
		log.Log(r.Context(), level, "provider auth failure",
			"provider", e.Provider,
			"permanent", e.Permanent,
			"error", e.Message)
		h.WriteError(w, r, http.StatusBadGateway, "provider_auth_failed",
			"The provider rejected our credentials")

	case *errs.UnavailableError:
		log.Warn("provider unavailable", "provider", e.Provider, "error", e.Message)
		h.WriteError(w, r, http.StatusServiceUnavailable, "provider_unavailable",
			"Provider temporarily unavailable")

	case *errs.InsufficientFundsError:
		log.Warn("insufficient funds",
			"required", e.Required,
			"available", e.Available)
		h.WriteError(w, r, http.StatusConflict, "insufficient_funds", e.Message)

	default:
		log.Error("unexpected error",
			"error", err,
			"type", fmt.Sprintf("%T", err))
		h.WriteError(w, r, http.StatusInternalServerError, "internal_error",
			"An unexpected error occurred")
	}
}
