package paymentgateway

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// MockGateway is an in-process Gateway used in tests and when the service
// runs without provider credentials. By default every submission is
// accepted with a generated reference.
type MockGateway struct {
	logger *slog.Logger

	// FailWith, when non-nil, is returned verbatim from every submission.
	FailWith *Error
	// FixedReference overrides the generated provider reference.
	FixedReference string
}

func NewMockGateway(logger *slog.Logger) *MockGateway {
	return &MockGateway{logger: logger.With("gateway", "mock")}
}

func (g *MockGateway) SubmitPushRequest(ctx context.Context, req PushRequest) (*PushResponse, error) {
	if g.FailWith != nil {
		g.logger.WarnContext(ctx, "mock gateway simulating failure",
			"kind", g.FailWith.Kind, "reference", req.ClientReference)
		return nil, g.FailWith
	}

	ref := g.FixedReference
	if ref == "" {
		ref = "mock_" + uuid.NewString()
	}
	g.logger.InfoContext(ctx, "mock gateway accepted push",
		"provider_reference", ref, "reference", req.ClientReference)
	return &PushResponse{
		ProviderReference: ref,
		CustomerMessage:   "Payment request sent to your phone. Please check and enter your PIN.",
	}, nil
}
