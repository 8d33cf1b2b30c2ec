package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/bingwasokoni/bundles/internal/bundles/app"
	"github.com/bingwasokoni/bundles/internal/bundles/domain"
)

// PaymentProcessor is the application surface the payment handler depends on.
type PaymentProcessor interface {
	InitiatePayment(ctx context.Context, payerRaw string, bundleID int, recipientRaw string, meta domain.RequesterMeta) (*app.InitiateResult, error)
	RecordManualPayment(ctx context.Context, payerRaw string, bundleID int, recipientRaw, providerCode string, meta domain.RequesterMeta) (*domain.Transaction, error)
	CheckStatus(ctx context.Context, txID, providerRef string) (*app.StatusResult, error)
	ListBundles(ctx context.Context) ([]domain.Bundle, error)
	Stats(ctx context.Context) (*domain.Stats, error)
}

type PaymentHandler struct {
	service  PaymentProcessor
	validate *validator.Validate
	logger   *slog.Logger
}

func NewPaymentHandler(service PaymentProcessor, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With("component", "payment_handler"),
	}
}

// ListPackages handles GET /api/packages.
func (h *PaymentHandler) ListPackages(w http.ResponseWriter, r *http.Request) {
	bundles, err := h.service.ListBundles(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list packages", "error", err, "request_id", middleware.GetReqID(r.Context()))
		writeError(w, h.logger, err)
		return
	}
	dtos := make([]bundleDTO, 0, len(bundles))
	for _, b := range bundles {
		dtos = append(dtos, toBundleDTO(b))
	}
	writeJSON(w, h.logger, http.StatusOK, envelope{"success": true, "packages": dtos})
}

// InitiatePayment handles POST /api/initiate-payment.
func (h *PaymentHandler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req initiatePaymentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.InitiatePayment(r.Context(), req.Phone, req.PackageID, req.RecipientPhone, requesterMeta(r))
	if err != nil {
		h.logger.WarnContext(r.Context(), "payment initiation rejected",
			"error", err, "request_id", middleware.GetReqID(r.Context()))
		writeError(w, h.logger, err)
		return
	}

	body := envelope{
		"success":        true,
		"message":        result.CustomerMessage,
		"transaction_id": result.Transaction.ID,
		"package":        toBundleDTO(*result.Bundle),
	}
	if result.Transaction.ProviderReference != nil {
		body["checkout_request_id"] = *result.Transaction.ProviderReference
	}
	writeJSON(w, h.logger, http.StatusOK, body)
}

// CheckStatus handles POST /api/check-payment-status.
func (h *PaymentHandler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	var req checkStatusRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.CheckStatus(r.Context(), req.TransactionID, req.CheckoutRequestID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	body := envelope{"success": true, "transaction": toTransactionDTO(result.Transaction)}
	if result.Bundle != nil {
		body["package"] = toBundleDTO(*result.Bundle)
	}
	writeJSON(w, h.logger, http.StatusOK, body)
}

// ManualPayment handles POST /api/manual-payment.
func (h *PaymentHandler) ManualPayment(w http.ResponseWriter, r *http.Request) {
	var req manualPaymentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	txn, err := h.service.RecordManualPayment(r.Context(), req.Phone, req.PackageID, req.RecipientPhone, req.MpesaCode, requesterMeta(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, envelope{
		"success":        true,
		"message":        "Manual payment recorded. Your bundle will be activated after verification.",
		"transaction_id": txn.ID,
		"status":         string(txn.Status),
	})
}

// Stats handles GET /api/stats.
func (h *PaymentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to compute stats", "error", err, "request_id", middleware.GetReqID(r.Context()))
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, envelope{"success": true, "stats": stats})
}

func (h *PaymentHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(req); err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, envelope{"success": false, "message": "Invalid request body"})
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, envelope{"success": false, "message": "Missing or invalid required fields"})
		return false
	}
	return true
}
