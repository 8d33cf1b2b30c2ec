package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bingwasokoni/bundles/internal/bundles/app"
	"github.com/bingwasokoni/bundles/internal/bundles/domain"
	transporthttp "github.com/bingwasokoni/bundles/internal/bundles/transport/http"
)

type MockPaymentProcessor struct {
	mock.Mock
}

func (m *MockPaymentProcessor) InitiatePayment(ctx context.Context, payerRaw string, bundleID int, recipientRaw string, meta domain.RequesterMeta) (*app.InitiateResult, error) {
	args := m.Called(ctx, payerRaw, bundleID, recipientRaw, meta)
	res, _ := args.Get(0).(*app.InitiateResult)
	return res, args.Error(1)
}

func (m *MockPaymentProcessor) RecordManualPayment(ctx context.Context, payerRaw string, bundleID int, recipientRaw, providerCode string, meta domain.RequesterMeta) (*domain.Transaction, error) {
	args := m.Called(ctx, payerRaw, bundleID, recipientRaw, providerCode, meta)
	res, _ := args.Get(0).(*domain.Transaction)
	return res, args.Error(1)
}

func (m *MockPaymentProcessor) CheckStatus(ctx context.Context, txID, providerRef string) (*app.StatusResult, error) {
	args := m.Called(ctx, txID, providerRef)
	res, _ := args.Get(0).(*app.StatusResult)
	return res, args.Error(1)
}

func (m *MockPaymentProcessor) ListBundles(ctx context.Context) ([]domain.Bundle, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]domain.Bundle)
	return res, args.Error(1)
}

func (m *MockPaymentProcessor) Stats(ctx context.Context) (*domain.Stats, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(*domain.Stats)
	return res, args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBundle() domain.Bundle {
	return domain.Bundle{
		ID:          2,
		Size:        "250 MB",
		Price:       decimal.NewFromInt(20),
		Validity:    "24 Hours",
		Description: "250 MB valid for 24 hours",
		IsActive:    true,
	}
}

func testTransaction(status domain.TransactionStatus) *domain.Transaction {
	now := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	return &domain.Transaction{
		ID:             "BNDL-20240315093000-A1B2C3",
		PayerPhone:     "254712345678",
		RecipientPhone: "254712345678",
		BundleID:       2,
		Amount:         decimal.NewFromInt(20),
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func postJSON(handler http.HandlerFunc, payload string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(payload)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestListPackages_Success(t *testing.T) {
	svc := new(MockPaymentProcessor)
	svc.On("ListBundles", mock.Anything).Return([]domain.Bundle{testBundle()}, nil).Once()
	h := transporthttp.NewPaymentHandler(svc, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/packages", nil)
	rec := httptest.NewRecorder()
	h.ListPackages(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	packages, ok := body["packages"].([]any)
	require.True(t, ok)
	require.Len(t, packages, 1)
	first := packages[0].(map[string]any)
	assert.Equal(t, "250 MB", first["size"])
	svc.AssertExpectations(t)
}

func TestInitiatePayment_Success(t *testing.T) {
	bundle := testBundle()
	txn := testTransaction(domain.StatusAwaitingConfirmation)
	ref := "ws_CO_12345"
	txn.ProviderReference = &ref

	svc := new(MockPaymentProcessor)
	svc.On("InitiatePayment", mock.Anything, "0712345678", 2, "", mock.AnythingOfType("domain.RequesterMeta")).
		Return(&app.InitiateResult{Transaction: txn, Bundle: &bundle, CustomerMessage: "Check your phone to complete payment"}, nil).Once()
	h := transporthttp.NewPaymentHandler(svc, discardLogger())

	rec := postJSON(h.InitiatePayment, `{"phone":"0712345678","package_id":2}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, txn.ID, body["transaction_id"])
	assert.Equal(t, "ws_CO_12345", body["checkout_request_id"])
	assert.Equal(t, "Check your phone to complete payment", body["message"])
	svc.AssertExpectations(t)
}

func TestInitiatePayment_InvalidJSON(t *testing.T) {
	svc := new(MockPaymentProcessor)
	h := transporthttp.NewPaymentHandler(svc, discardLogger())

	rec := postJSON(h.InitiatePayment, `{not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "InitiatePayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestInitiatePayment_MissingFields(t *testing.T) {
	svc := new(MockPaymentProcessor)
	h := transporthttp.NewPaymentHandler(svc, discardLogger())

	rec := postJSON(h.InitiatePayment, `{"phone":"0712345678"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	svc.AssertNotCalled(t, "InitiatePayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestInitiatePayment_DailyLimit(t *testing.T) {
	svc := new(MockPaymentProcessor)
	svc.On("InitiatePayment", mock.Anything, "0712345678", 2, "", mock.AnythingOfType("domain.RequesterMeta")).
		Return(nil, domain.ErrDailyLimitReached).Once()
	h := transporthttp.NewPaymentHandler(svc, discardLogger())

	rec := postJSON(h.InitiatePayment, `{"phone":"0712345678","package_id":2}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "once per day")
	svc.AssertExpectations(t)
}

func TestInitiatePayment_GatewayFault(t *testing.T) {
	svc := new(MockPaymentProcessor)
	svc.On("InitiatePayment", mock.Anything, "0712345678", 2, "", mock.AnythingOfType("domain.RequesterMeta")).
		Return(nil, domain.ErrGatewayFault).Once()
	h := transporthttp.NewPaymentHandler(svc, discardLogger())

	rec := postJSON(h.InitiatePayment, `{"phone":"0712345678","package_id":2}`)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "manually")
	svc.AssertExpectations(t)
}

func TestCheckStatus_Found(t *testing.T) {
	bundle := testBundle()
	txn := testTransaction(domain.StatusCompleted)
	receipt := "QHX12ABC34"
	completed := time.Date(2024, 3, 15, 9, 31, 0, 0, time.UTC)
	txn.ReceiptReference = &receipt
	txn.CompletedAt = &completed

	svc := new(MockPaymentProcessor)
	svc.On("CheckStatus", mock.Anything, txn.ID, "").
		Return(&app.StatusResult{Transaction: txn, Bundle: &bundle}, nil).Once()
	h := transporthttp.NewPaymentHandler(svc, discardLogger())

	rec := postJSON(h.CheckStatus, `{"transaction_id":"BNDL-20240315093000-A1B2C3"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	tx := body["transaction"].(map[string]any)
	assert.Equal(t, "completed", tx["status"])
	assert.Equal(t, "QHX12ABC34", tx["mpesa_receipt"])
	assert.NotEmpty(t, tx["completed_at"])
	svc.AssertExpectations(t)
}

func TestCheckStatus_NotFound(t *testing.T) {
	svc := new(MockPaymentProcessor)
	svc.On("CheckStatus", mock.Anything, "BNDL-MISSING", "").
		Return(nil, domain.ErrTransactionNotFound).Once()
	h := transporthttp.NewPaymentHandler(svc, discardLogger())

	rec := postJSON(h.CheckStatus, `{"transaction_id":"BNDL-MISSING"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	svc.AssertExpectations(t)
}

func TestCheckStatus_NoIdentifier(t *testing.T) {
	svc := new(MockPaymentProcessor)
	h := transporthttp.NewPaymentHandler(svc, discardLogger())

	rec := postJSON(h.CheckStatus, `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "CheckStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckStatus_ByCheckoutRequestID(t *testing.T) {
	bundle := testBundle()
	txn := testTransaction(domain.StatusAwaitingConfirmation)

	svc := new(MockPaymentProcessor)
	svc.On("CheckStatus", mock.Anything, "", "ws_CO_12345").
		Return(&app.StatusResult{Transaction: txn, Bundle: &bundle}, nil).Once()
	h := transporthttp.NewPaymentHandler(svc, discardLogger())

	rec := postJSON(h.CheckStatus, `{"checkout_request_id":"ws_CO_12345"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestManualPayment_Success(t *testing.T) {
	txn := testTransaction(domain.StatusPendingVerification)

	svc := new(MockPaymentProcessor)
	svc.On("RecordManualPayment", mock.Anything, "0712345678", 2, "", "QHX12ABC34", mock.AnythingOfType("domain.RequesterMeta")).
		Return(txn, nil).Once()
	h := transporthttp.NewPaymentHandler(svc, discardLogger())

	rec := postJSON(h.ManualPayment, `{"phone":"0712345678","package_id":2,"mpesa_code":"QHX12ABC34"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "pending_verification", body["status"])
	svc.AssertExpectations(t)
}

func TestManualPayment_MissingCode(t *testing.T) {
	svc := new(MockPaymentProcessor)
	h := transporthttp.NewPaymentHandler(svc, discardLogger())

	rec := postJSON(h.ManualPayment, `{"phone":"0712345678","package_id":2}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "RecordManualPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStats_Success(t *testing.T) {
	svc := new(MockPaymentProcessor)
	svc.On("Stats", mock.Anything).Return(&domain.Stats{
		TotalTransactions:     10,
		TodayTransactions:     3,
		CompletedTransactions: 6,
		PendingTransactions:   2,
		TotalRevenue:          decimal.NewFromInt(120),
	}, nil).Once()
	h := transporthttp.NewPaymentHandler(svc, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	h.Stats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	svc.AssertExpectations(t)
}
