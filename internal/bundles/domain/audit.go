package domain

import (
	"time"

	"github.com/google/uuid"
)

// Audit action names. Every financial state change is recorded under one of
// these regardless of business outcome.
const (
	AuditPaymentInitiated = "payment_initiated"
	AuditPaymentCallback  = "payment_callback"
	AuditManualPayment    = "manual_payment"
)

// RequesterMeta captures who triggered an action, taken from the HTTP layer.
type RequesterMeta struct {
	IPAddress string
	UserAgent string
}

// AuditEntry is one append-only record of a security- or ops-relevant
// action. Entries are never updated or deleted.
type AuditEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAuditEntry builds an entry with a fresh id and timestamp.
func NewAuditEntry(action, details string, meta RequesterMeta) *AuditEntry {
	return &AuditEntry{
		ID:        uuid.NewString(),
		Action:    action,
		Details:   details,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		CreatedAt: time.Now().UTC(),
	}
}
