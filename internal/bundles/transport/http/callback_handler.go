package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/bingwasokoni/bundles/internal/bundles/app"
	"github.com/bingwasokoni/bundles/internal/bundles/domain"
)

const maxRequestBodyBytes = 1 << 20 // 1MB

// CallbackProcessor is the application surface the callback handler depends on.
type CallbackProcessor interface {
	HandleCallback(ctx context.Context, payload []byte, meta domain.RequesterMeta) (*app.CallbackOutcome, error)
}

type CallbackHandler struct {
	service CallbackProcessor
	logger  *slog.Logger
}

func NewCallbackHandler(service CallbackProcessor, logger *slog.Logger) *CallbackHandler {
	return &CallbackHandler{
		service: service,
		logger:  logger.With("component", "callback_handler"),
	}
}

// HandleCallback handles POST /api/payment-callback. A callback that reports
// a failed payment is still acknowledged with 200: the provider delivered its
// message and must not retry. Non-200 is reserved for payloads we could not
// decode or match to a transaction.
func (h *CallbackHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to read callback body", "error", err, "request_id", requestID)
		writeJSON(w, h.logger, http.StatusBadRequest, envelope{"success": false, "message": "Unreadable request body"})
		return
	}

	outcome, err := h.service.HandleCallback(r.Context(), payload, requesterMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMalformedCallbackPayload):
			writeJSON(w, h.logger, http.StatusBadRequest, envelope{"success": false, "message": "Invalid callback payload"})
		case errors.Is(err, domain.ErrNoCallbackIdentifier):
			writeJSON(w, h.logger, http.StatusBadRequest, envelope{"success": false, "message": "Callback payload carries no transaction identifier"})
		case errors.Is(err, domain.ErrTransactionNotFound):
			h.logger.WarnContext(r.Context(), "callback for unknown transaction", "request_id", requestID)
			writeJSON(w, h.logger, http.StatusNotFound, envelope{"success": false, "message": "Transaction not found"})
		default:
			// Anything else means the callback may not have been persisted.
			// A 5xx keeps the provider redelivering instead of treating the
			// payload as rejected.
			h.logger.ErrorContext(r.Context(), "failed to process callback", "error", err, "request_id", requestID)
			writeJSON(w, h.logger, http.StatusInternalServerError, envelope{"success": false, "message": "Internal server error"})
		}
		return
	}

	h.logger.InfoContext(r.Context(), "callback processed",
		"transaction_id", outcome.Transaction.ID,
		"status", outcome.Transaction.Status,
		"duplicate", outcome.Duplicate,
		"request_id", requestID)

	writeJSON(w, h.logger, http.StatusOK, envelope{"success": true, "message": "Callback received"})
}
