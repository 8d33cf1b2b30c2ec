package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bingwasokoni/bundles/internal/bundles/domain"
	"github.com/bingwasokoni/bundles/internal/bundles/repository"
)

// CallbackService reconciles asynchronous provider callbacks against pending
// transactions. It tolerates duplicate and out-of-order delivery: terminal
// writes in the store are idempotent, and a duplicate resolves to the
// existing final state without a second audit entry.
type CallbackService struct {
	transactions repository.TransactionRepository
	audit        repository.AuditRepository
	logger       *slog.Logger
}

func NewCallbackService(transactions repository.TransactionRepository, audit repository.AuditRepository, logger *slog.Logger) *CallbackService {
	return &CallbackService{
		transactions: transactions,
		audit:        audit,
		logger:       logger.With("service", "callback"),
	}
}

// CallbackOutcome reports what a callback did. Completed reflects the
// business outcome; Duplicate marks a redelivery that changed nothing.
type CallbackOutcome struct {
	Transaction *domain.Transaction
	Completed   bool
	Duplicate   bool
}

// callbackEvent is the tolerant intermediate representation of a provider
// callback. Field names vary across provider revisions, so extraction works
// through ordered fallbacks rather than one fixed schema.
type callbackEvent struct {
	Success           bool
	ProviderReference string
	ClientReference   string
	Receipt           string
	Message           string
}

// HandleCallback parses the raw payload, resolves the transaction (provider
// reference first, client reference second) and applies the terminal status
// exactly once. A FAILED business outcome is still a successful
// reconciliation; only malformed or unresolvable callbacks return an error.
func (s *CallbackService) HandleCallback(ctx context.Context, payload []byte, meta domain.RequesterMeta) (*CallbackOutcome, error) {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		callbacksProcessedCounter.WithLabelValues("unmatched").Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedCallbackPayload, err)
	}

	ev := parseCallbackEvent(fields)
	if ev.ProviderReference == "" && ev.ClientReference == "" {
		s.logger.WarnContext(ctx, "callback without identifier", "payload_size", len(payload))
		callbacksProcessedCounter.WithLabelValues("unmatched").Inc()
		return nil, domain.ErrNoCallbackIdentifier
	}

	txn, transitioned, err := s.applyTerminal(ctx, ev)
	if err != nil {
		s.logger.WarnContext(ctx, "callback did not match any transaction",
			"provider_reference", ev.ProviderReference, "client_reference", ev.ClientReference)
		callbacksProcessedCounter.WithLabelValues("unmatched").Inc()
		return nil, err
	}

	if !transitioned {
		// Redelivery of an already-applied terminal update; the first audit
		// entry stands, nothing new to record.
		s.logger.InfoContext(ctx, "duplicate callback ignored", "transaction_id", txn.ID, "status", txn.Status)
		callbacksProcessedCounter.WithLabelValues("duplicate").Inc()
		return &CallbackOutcome{Transaction: txn, Completed: txn.Status == domain.StatusCompleted, Duplicate: true}, nil
	}

	s.appendAudit(ctx, domain.AuditPaymentCallback,
		fmt.Sprintf("Transaction: %s, Status: %s", txn.ID, txn.Status), meta)

	if ev.Success {
		s.logger.InfoContext(ctx, "payment completed", "transaction_id", txn.ID,
			"receipt", ev.Receipt, "recipient", txn.RecipientPhone)
		// TODO: hook bundle fulfillment here once the loading system exposes an API.
		callbacksProcessedCounter.WithLabelValues("completed").Inc()
	} else {
		s.logger.InfoContext(ctx, "payment failed", "transaction_id", txn.ID, "detail", txn.StatusDetail)
		callbacksProcessedCounter.WithLabelValues("failed").Inc()
	}
	return &CallbackOutcome{Transaction: txn, Completed: ev.Success}, nil
}

// applyTerminal tries each candidate identifier in resolution order:
// provider reference against provider_reference, client reference against
// id, and finally the provider-reference value against id, which covers
// provider revisions that echo our reference in their transaction id field.
func (s *CallbackService) applyTerminal(ctx context.Context, ev callbackEvent) (*domain.Transaction, bool, error) {
	detail := ev.Message
	if detail == "" {
		if ev.Success {
			detail = "Payment completed successfully"
		} else {
			detail = "Payment failed"
		}
	}

	type attempt struct {
		byID bool
		key  string
	}
	attempts := make([]attempt, 0, 3)
	if ev.ProviderReference != "" {
		attempts = append(attempts, attempt{byID: false, key: ev.ProviderReference})
	}
	if ev.ClientReference != "" {
		attempts = append(attempts, attempt{byID: true, key: ev.ClientReference})
	}
	if ev.ProviderReference != "" && ev.ProviderReference != ev.ClientReference {
		attempts = append(attempts, attempt{byID: true, key: ev.ProviderReference})
	}

	for _, a := range attempts {
		var txn *domain.Transaction
		var transitioned bool
		var err error
		switch {
		case ev.Success && a.byID:
			txn, transitioned, err = s.transactions.CompleteByID(ctx, a.key, ev.Receipt, detail)
		case ev.Success:
			txn, transitioned, err = s.transactions.CompleteByProviderReference(ctx, a.key, ev.Receipt, detail)
		case a.byID:
			txn, transitioned, err = s.transactions.FailByID(ctx, a.key, detail)
		default:
			txn, transitioned, err = s.transactions.FailByProviderReference(ctx, a.key, detail)
		}
		if errors.Is(err, domain.ErrTransactionNotFound) {
			continue
		}
		return txn, transitioned, err
	}
	return nil, false, domain.ErrTransactionNotFound
}

func (s *CallbackService) appendAudit(ctx context.Context, action, details string, meta domain.RequesterMeta) {
	if err := s.audit.Append(ctx, domain.NewAuditEntry(action, details, meta)); err != nil {
		s.logger.ErrorContext(ctx, "failed to append audit entry", "action", action, "error", err)
	}
}

func parseCallbackEvent(fields map[string]any) callbackEvent {
	ev := callbackEvent{
		ProviderReference: stringField(fields, "CheckoutRequestID", "checkout_request_id", "checkoutRequestId", "TransactionID", "transactionId", "transaction_id"),
		ClientReference:   stringField(fields, "reference", "Reference", "client_reference", "clientReference", "AccountReference"),
		Receipt:           stringField(fields, "MpesaReceiptNumber", "mpesa_receipt_number", "mpesa_receipt", "receipt_number", "receipt"),
		Message:           stringField(fields, "ResultDesc", "result_desc", "resultDesc", "message", "description"),
	}

	code := stringField(fields, "ResultCode", "result_code", "resultCode")
	if code != "" {
		ev.Success = code == "0"
		return ev
	}
	switch strings.ToLower(stringField(fields, "status", "Status", "result")) {
	case "success", "succeeded", "completed", "0":
		ev.Success = true
	}
	return ev
}

// stringField returns the first present, non-empty value among keys,
// normalizing JSON strings and numbers to a string.
func stringField(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := fields[key]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			if val != "" {
				return val
			}
		case float64:
			return strconv.FormatFloat(val, 'f', -1, 64)
		case json.Number:
			return val.String()
		}
	}
	return ""
}
