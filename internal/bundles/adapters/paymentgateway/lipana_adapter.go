package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"
)

// LipanaGateway submits STK push requests to the LipaNa.Dev API.
type LipanaGateway struct {
	logger      *slog.Logger
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	shortcode   string
	callbackURL string
}

func NewLipanaGateway(logger *slog.Logger, baseURL, apiKey, shortcode, callbackURL string, timeout time.Duration, httpClient *http.Client) *LipanaGateway {
	if httpClient == nil {
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &LipanaGateway{
		logger:      logger.With("gateway", "lipana"),
		httpClient:  httpClient,
		baseURL:     baseURL,
		apiKey:      apiKey,
		shortcode:   shortcode,
		callbackURL: callbackURL,
	}
}

// lipanaPushRequest is the current provider payload shape. Field mapping
// lives only here so a provider revision touches one file.
type lipanaPushRequest struct {
	Phone             string  `json:"phone"`
	Amount            float64 `json:"amount"`
	Description       string  `json:"description"`
	CallbackURL       string  `json:"callback_url"`
	Reference         string  `json:"reference"`
	BusinessShortcode string  `json:"business_shortcode"`
}

type lipanaPushResponse struct {
	Success           bool   `json:"success"`
	CheckoutRequestID string `json:"checkout_request_id"`
	CustomerMessage   string `json:"customer_message"`
	Message           string `json:"message"`
}

func (g *LipanaGateway) SubmitPushRequest(ctx context.Context, req PushRequest) (*PushResponse, error) {
	body := lipanaPushRequest{
		Phone:             req.Phone,
		Amount:            req.Amount.InexactFloat64(),
		Description:       req.Description,
		CallbackURL:       g.callbackURL,
		Reference:         req.ClientReference,
		BusinessShortcode: g.shortcode,
	}
	reqBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling push request: %w", err)
	}

	endpoint := g.baseURL + "/stk/push"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("building push request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	g.logger.InfoContext(ctx, "submitting STK push", "reference", req.ClientReference, "phone", req.Phone)

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, &Error{Kind: KindUnreachable, Reason: fmt.Sprintf("reading provider response: %v", err)}
	}

	var decoded lipanaPushResponse
	if err := json.Unmarshal(respBytes, &decoded); err != nil {
		g.logger.ErrorContext(ctx, "unparseable provider response",
			"status_code", httpResp.StatusCode, "reference", req.ClientReference)
		return nil, &Error{Kind: KindMalformedResponse, Reason: fmt.Sprintf("status %d, undecodable body", httpResp.StatusCode)}
	}

	if httpResp.StatusCode != http.StatusOK || !decoded.Success {
		reason := decoded.Message
		if reason == "" {
			reason = fmt.Sprintf("payment request failed with status %d", httpResp.StatusCode)
		}
		g.logger.WarnContext(ctx, "STK push rejected", "status_code", httpResp.StatusCode,
			"reason", reason, "reference", req.ClientReference)
		return nil, &Error{Kind: KindRejected, Reason: reason}
	}

	if decoded.CheckoutRequestID == "" {
		return nil, &Error{Kind: KindMalformedResponse, Reason: "accepted response missing checkout_request_id"}
	}

	g.logger.InfoContext(ctx, "STK push accepted",
		"provider_reference", decoded.CheckoutRequestID, "reference", req.ClientReference)
	return &PushResponse{
		ProviderReference: decoded.CheckoutRequestID,
		CustomerMessage:   decoded.CustomerMessage,
	}, nil
}

// classifyTransportError maps client-side failures onto the error taxonomy.
func classifyTransportError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Reason: "payment service timeout"}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &Error{Kind: KindTimeout, Reason: "payment service timeout"}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Reason: "payment service timeout"}
	}
	return &Error{Kind: KindUnreachable, Reason: fmt.Sprintf("cannot reach payment service: %v", err)}
}
