package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bingwasokoni/bundles/internal/bundles/adapters/paymentgateway"
	"github.com/bingwasokoni/bundles/internal/bundles/domain"
	"github.com/bingwasokoni/bundles/internal/bundles/repository"
)

// idGenerationAttempts bounds retries when a generated transaction id
// collides with an existing row.
const idGenerationAttempts = 3

// PaymentService orchestrates the push-payment lifecycle: validation, the
// daily-limit policy, transaction creation and the synchronous gateway
// submission. The asynchronous half lives in CallbackService.
type PaymentService struct {
	transactions repository.TransactionRepository
	bundles      repository.BundleRepository
	audit        repository.AuditRepository
	gateway      paymentgateway.Gateway
	businessName string
	logger       *slog.Logger
}

func NewPaymentService(
	transactions repository.TransactionRepository,
	bundles repository.BundleRepository,
	audit repository.AuditRepository,
	gateway paymentgateway.Gateway,
	businessName string,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		transactions: transactions,
		bundles:      bundles,
		audit:        audit,
		gateway:      gateway,
		businessName: businessName,
		logger:       logger.With("service", "payment"),
	}
}

// InitiateResult is returned on a successfully submitted push request.
type InitiateResult struct {
	Transaction     *domain.Transaction
	Bundle          *domain.Bundle
	CustomerMessage string
}

// InitiatePayment runs the full initiation flow. The transaction row is
// created and committed before the gateway call, so a slow provider never
// holds a store lock; on any gateway failure the row is kept as a FAILED
// permanent record, never rolled back.
func (s *PaymentService) InitiatePayment(ctx context.Context, payerRaw string, bundleID int, recipientRaw string, meta domain.RequesterMeta) (*InitiateResult, error) {
	payer, err := domain.NormalizePhone(payerRaw)
	if err != nil {
		return nil, fmt.Errorf("payer phone: %w", err)
	}
	recipient := payer
	if recipientRaw != "" {
		if recipient, err = domain.NormalizePhone(recipientRaw); err != nil {
			return nil, fmt.Errorf("recipient phone: %w", err)
		}
	}

	bundle, err := s.bundles.GetByID(ctx, bundleID)
	if err != nil {
		return nil, err
	}
	if !bundle.IsActive {
		return nil, domain.ErrBundleNotFound
	}

	txn, err := s.createTransaction(ctx, payer, recipient, bundle, domain.StatusPending, nil, "")
	if err != nil {
		paymentsInitiatedCounter.WithLabelValues("rejected").Inc()
		return nil, err
	}
	s.appendAudit(ctx, domain.AuditPaymentInitiated,
		fmt.Sprintf("Transaction: %s, Phone: %s", txn.ID, payer), meta)

	s.logger.InfoContext(ctx, "payment initiated", "transaction_id", txn.ID,
		"payer", payer, "bundle_id", bundle.ID, "amount", bundle.Price.String())

	start := time.Now()
	resp, err := s.gateway.SubmitPushRequest(ctx, paymentgateway.PushRequest{
		Phone:           payer,
		Amount:          txn.Amount,
		ClientReference: txn.ID,
		Description:     fmt.Sprintf("%s Data Bundle - %s", bundle.Size, s.businessName),
	})
	if err != nil {
		detail := submissionFailureDetail(err)
		gatewaySubmitDurationHist.WithLabelValues("failed").Observe(time.Since(start).Seconds())
		paymentsInitiatedCounter.WithLabelValues("gateway_failed").Inc()

		if mfErr := s.transactions.MarkSubmissionFailed(ctx, txn.ID, detail); mfErr != nil {
			s.logger.ErrorContext(ctx, "failed to record submission failure",
				"transaction_id", txn.ID, "error", mfErr)
		}
		s.logger.WarnContext(ctx, "STK push submission failed",
			"transaction_id", txn.ID, "detail", detail)
		return nil, fmt.Errorf("%w: %s", domain.ErrGatewayFault, detail)
	}
	gatewaySubmitDurationHist.WithLabelValues("accepted").Observe(time.Since(start).Seconds())

	if err := s.transactions.SetProviderReference(ctx, txn.ID, resp.ProviderReference); err != nil {
		// The push went out but we could not persist the reference; the row
		// stays reconcilable through the client-reference fallback.
		s.logger.ErrorContext(ctx, "failed to store provider reference",
			"transaction_id", txn.ID, "provider_reference", resp.ProviderReference, "error", err)
		return nil, fmt.Errorf("storing provider reference: %w", err)
	}
	txn.Status = domain.StatusAwaitingConfirmation
	txn.ProviderReference = &resp.ProviderReference

	message := resp.CustomerMessage
	if message == "" {
		message = "Payment request sent to your phone. Please check and enter your PIN."
	}
	paymentsInitiatedCounter.WithLabelValues("accepted").Inc()
	return &InitiateResult{Transaction: txn, Bundle: bundle, CustomerMessage: message}, nil
}

// RecordManualPayment records an out-of-band payment awaiting human
// verification. The daily limit applies exactly as in the push flow.
func (s *PaymentService) RecordManualPayment(ctx context.Context, payerRaw string, bundleID int, recipientRaw, providerCode string, meta domain.RequesterMeta) (*domain.Transaction, error) {
	payer, err := domain.NormalizePhone(payerRaw)
	if err != nil {
		return nil, fmt.Errorf("payer phone: %w", err)
	}
	recipient := payer
	if recipientRaw != "" {
		if recipient, err = domain.NormalizePhone(recipientRaw); err != nil {
			return nil, fmt.Errorf("recipient phone: %w", err)
		}
	}

	bundle, err := s.bundles.GetByID(ctx, bundleID)
	if err != nil {
		return nil, err
	}
	if !bundle.IsActive {
		return nil, domain.ErrBundleNotFound
	}

	txn, err := s.createTransaction(ctx, payer, recipient, bundle,
		domain.StatusPendingVerification, &providerCode, "Manual payment - pending verification")
	if err != nil {
		return nil, err
	}
	s.appendAudit(ctx, domain.AuditManualPayment,
		fmt.Sprintf("Transaction: %s, Code: %s", txn.ID, providerCode), meta)

	s.logger.InfoContext(ctx, "manual payment recorded", "transaction_id", txn.ID, "payer", payer)
	return txn, nil
}

// StatusResult pairs a transaction with its bundle for status queries.
// Bundle may be nil if the catalog row has since become unreadable.
type StatusResult struct {
	Transaction *domain.Transaction
	Bundle      *domain.Bundle
}

// CheckStatus returns the current snapshot for a transaction id or, failing
// that, a provider reference. The query is read-only and idempotent.
func (s *PaymentService) CheckStatus(ctx context.Context, txID, providerRef string) (*StatusResult, error) {
	var txn *domain.Transaction
	var err error
	switch {
	case txID != "":
		txn, err = s.transactions.GetByID(ctx, txID)
	case providerRef != "":
		txn, err = s.transactions.GetByProviderReference(ctx, providerRef)
	default:
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}

	bundle, err := s.bundles.GetByID(ctx, txn.BundleID)
	if err != nil {
		s.logger.WarnContext(ctx, "bundle lookup failed for status query",
			"transaction_id", txn.ID, "bundle_id", txn.BundleID, "error", err)
		bundle = nil
	}
	return &StatusResult{Transaction: txn, Bundle: bundle}, nil
}

// ListBundles returns the active catalog, cheapest first.
func (s *PaymentService) ListBundles(ctx context.Context) ([]domain.Bundle, error) {
	return s.bundles.ListActive(ctx)
}

// Stats returns the aggregate transaction snapshot.
func (s *PaymentService) Stats(ctx context.Context) (*domain.Stats, error) {
	return s.transactions.Stats(ctx)
}

func (s *PaymentService) createTransaction(ctx context.Context, payer, recipient string, bundle *domain.Bundle, status domain.TransactionStatus, receipt *string, detail string) (*domain.Transaction, error) {
	now := time.Now().UTC()
	txn := &domain.Transaction{
		PayerPhone:       payer,
		RecipientPhone:   recipient,
		BundleID:         bundle.ID,
		Amount:           bundle.Price,
		Status:           status,
		ReceiptReference: receipt,
		StatusDetail:     detail,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	for attempt := 0; attempt < idGenerationAttempts; attempt++ {
		txn.ID = domain.NewTransactionID(time.Now())
		err := s.transactions.CreateWithDailyLimit(ctx, txn)
		if errors.Is(err, domain.ErrDuplicateTransactionID) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return txn, nil
	}
	return nil, domain.ErrDuplicateTransactionID
}

func (s *PaymentService) appendAudit(ctx context.Context, action, details string, meta domain.RequesterMeta) {
	// Audit append failures are logged, not propagated: the financial state
	// change has already happened and must not be reverted.
	if err := s.audit.Append(ctx, domain.NewAuditEntry(action, details, meta)); err != nil {
		s.logger.ErrorContext(ctx, "failed to append audit entry", "action", action, "error", err)
	}
}

// submissionFailureDetail converts a gateway error into the status detail
// stored on the failed transaction.
func submissionFailureDetail(err error) string {
	var gwErr *paymentgateway.Error
	if errors.As(err, &gwErr) {
		switch gwErr.Kind {
		case paymentgateway.KindTimeout:
			return "Payment service timeout. Please try again."
		case paymentgateway.KindUnreachable:
			return "Cannot connect to payment service. Please try again later."
		case paymentgateway.KindMalformedResponse:
			return "Payment service returned an unreadable response."
		default:
			return gwErr.Reason
		}
	}
	return "Payment service temporarily unavailable."
}
