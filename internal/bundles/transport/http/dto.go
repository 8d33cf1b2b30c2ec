package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bingwasokoni/bundles/internal/bundles/domain"
)

type initiatePaymentRequest struct {
	Phone          string `json:"phone" validate:"required"`
	PackageID      int    `json:"package_id" validate:"required,gt=0"`
	RecipientPhone string `json:"recipient_phone"`
}

type manualPaymentRequest struct {
	Phone          string `json:"phone" validate:"required"`
	PackageID      int    `json:"package_id" validate:"required,gt=0"`
	RecipientPhone string `json:"recipient_phone"`
	MpesaCode      string `json:"mpesa_code" validate:"required"`
}

type checkStatusRequest struct {
	TransactionID     string `json:"transaction_id" validate:"required_without=CheckoutRequestID"`
	CheckoutRequestID string `json:"checkout_request_id"`
}

type bundleDTO struct {
	ID          int             `json:"id"`
	Size        string          `json:"size"`
	Price       decimal.Decimal `json:"price"`
	Validity    string          `json:"validity"`
	Description string          `json:"description"`
}

func toBundleDTO(b domain.Bundle) bundleDTO {
	return bundleDTO{ID: b.ID, Size: b.Size, Price: b.Price, Validity: b.Validity, Description: b.Description}
}

type transactionDTO struct {
	ID          string          `json:"id"`
	Phone       string          `json:"phone"`
	Recipient   string          `json:"recipient"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	Receipt     string          `json:"mpesa_receipt,omitempty"`
	Detail      string          `json:"status_detail,omitempty"`
	CreatedAt   string          `json:"created_at"`
	CompletedAt string          `json:"completed_at,omitempty"`
}

func toTransactionDTO(t *domain.Transaction) transactionDTO {
	dto := transactionDTO{
		ID:        t.ID,
		Phone:     t.PayerPhone,
		Recipient: t.RecipientPhone,
		Amount:    t.Amount,
		Status:    string(t.Status),
		Detail:    t.StatusDetail,
		CreatedAt: t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if t.ReceiptReference != nil {
		dto.Receipt = *t.ReceiptReference
	}
	if t.CompletedAt != nil {
		dto.CompletedAt = t.CompletedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return dto
}

// envelope is the common response shape: {"success": ..., "message": ...}
// plus endpoint-specific fields.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, message := httpStatusFor(err)
	writeJSON(w, logger, status, envelope{"success": false, "message": message})
}

// httpStatusFor maps the domain error taxonomy onto HTTP statuses; anything
// unrecognized becomes a generic 500 so internal detail never leaks.
func httpStatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidPhone):
		return http.StatusBadRequest, "Invalid phone number format. Use 07XXXXXXXX or 2547XXXXXXXX"
	case errors.Is(err, domain.ErrBundleNotFound):
		return http.StatusBadRequest, "Invalid package selected"
	case errors.Is(err, domain.ErrDailyLimitReached):
		return http.StatusBadRequest, "You can only purchase once per day per line"
	case errors.Is(err, domain.ErrTransactionNotFound):
		return http.StatusNotFound, "Transaction not found"
	case errors.Is(err, domain.ErrNoCallbackIdentifier):
		return http.StatusBadRequest, "Transaction ID or Checkout Request ID required"
	case errors.Is(err, domain.ErrGatewayFault):
		detail := strings.TrimPrefix(err.Error(), domain.ErrGatewayFault.Error()+": ")
		if detail == domain.ErrGatewayFault.Error() {
			detail = "Could not reach the payment service."
		}
		return http.StatusBadGateway, detail + " You can also pay manually and submit the M-PESA code."
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func requesterMeta(r *http.Request) domain.RequesterMeta {
	return domain.RequesterMeta{
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}
