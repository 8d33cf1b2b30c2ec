package paymentgateway

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrorKind classifies submission failures. The orchestrator treats
// unexpected transport faults identically to KindUnreachable.
type ErrorKind string

const (
	KindTimeout           ErrorKind = "timeout"
	KindUnreachable       ErrorKind = "unreachable"
	KindRejected          ErrorKind = "rejected"
	KindMalformedResponse ErrorKind = "malformed_response"
)

// Error is a classified gateway failure. Ordinary rejections come back as
// KindRejected rather than a bare transport error, so callers can always
// rely on the Kind.
type Error struct {
	Kind   ErrorKind
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s: %s", e.Kind, e.Reason)
}

// PushRequest is a provider-agnostic STK push submission.
type PushRequest struct {
	// Phone is the payer MSISDN in canonical format.
	Phone  string
	Amount decimal.Decimal
	// ClientReference is our transaction id, echoed back by some provider
	// callback revisions.
	ClientReference string
	Description     string
}

// PushResponse is the synchronous result of an accepted submission.
type PushResponse struct {
	// ProviderReference is the provider's own identifier for the push
	// attempt; the reconciler joins callbacks on it.
	ProviderReference string
	CustomerMessage   string
}

// Gateway isolates the provider contract. The payload shape has been
// reworked across provider revisions, so nothing outside this package may
// depend on its field names.
type Gateway interface {
	SubmitPushRequest(ctx context.Context, req PushRequest) (*PushResponse, error)
}
