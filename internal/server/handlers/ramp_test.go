package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radlabs/rampd/internal/domain"
	"github.com/radlabs/rampd/internal/domain/interfaces"
)

type stubRampService struct {
	quote      *domain.SpotQuote
	quoteErr   error
	result     *domain.TransferResult
	mintErr    error
	history    []domain.TransferSummary
	historyErr error
	receipt    *domain.StoredReceipt
}

func (s *stubRampService) Quote(ctx context.Context, usd string) (*domain.SpotQuote, error) {
	return s.quote, s.quoteErr
}

func (s *stubRampService) CreatePaymentOrder(ctx context.Context, usd string) (*domain.PaymentOrder, error) {
	return &domain.PaymentOrder{ID: "ORDER-1", Status: "CREATED"}, nil
}

func (s *stubRampService) MintAndTransfer(ctx context.Context, req *domain.MintRequest) (*domain.TransferResult, error) {
	return s.result, s.mintErr
}

func (s *stubRampService) History(ctx context.Context, address string) ([]domain.TransferSummary, error) {
	return s.history, s.historyErr
}

func (s *stubRampService) ReceiptByID(ctx context.Context, transferID string) (*domain.StoredReceipt, error) {
	return s.receipt, nil
}

func (s *stubRampService) ReceiptByDigest(ctx context.Context, digestHex string) (*domain.StoredReceipt, error) {
	return s.receipt, nil
}

func (s *stubRampService) WalletFor(ctx context.Context, email string) (*interfaces.UserWallet, error) {
	return nil, nil
}

func newTestRouter(svc *stubRampService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewRampHandler(svc, zerolog.Nop())

	router.POST("/v1/ramp/quote", handler.Quote)
	router.POST("/v1/ramp/fiat-to-usdc", handler.FiatToUSDC)
	router.GET("/v1/tx/history", handler.History)
	router.GET("/v1/tx/:txid/receipt", handler.ReceiptByID)
	return router
}

func TestFiatToUSDC(t *testing.T) {
	svc := &stubRampService{
		result: &domain.TransferResult{
			TransferID:       "TX-1",
			AssetID:          4242,
			AmountMinorUnits: 9_870_000,
			Decimals:         6,
			AmountUSDC:       "9.870000",
			DigestHex:        "abcd",
		},
	}
	router := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/ramp/fiat-to-usdc", strings.NewReader(`{"usd":"10.00","to_wallet":"ADDR"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"txid":"TX-1"`)
	assert.Contains(t, w.Body.String(), `"amount_min_units":9870000`)
}

func TestFiatToUSDCErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid amount", domain.ErrInvalidAmount, http.StatusBadRequest},
		{"invalid address", domain.ErrInvalidAddress, http.StatusBadRequest},
		{"exchange down", domain.ErrUpstreamExchange, http.StatusBadGateway},
		{"payment rejected", domain.ErrUpstreamPayment, http.StatusBadGateway},
		{"submission rejected", domain.ErrSubmissionRejected, http.StatusBadGateway},
		{"confirmation timeout", domain.ErrConfirmationTimeout, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&stubRampService{mintErr: tt.err})

			w := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/v1/ramp/fiat-to-usdc", strings.NewReader(`{"usd":"10.00"}`))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestFiatToUSDCMissingUSD(t *testing.T) {
	router := newTestRouter(&stubRampService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/ramp/fiat-to-usdc", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryRequiresAddress(t *testing.T) {
	router := newTestRouter(&stubRampService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/tx/history", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistory(t *testing.T) {
	svc := &stubRampService{
		history: []domain.TransferSummary{
			{TransferID: "TX-1", Direction: "IN", Amount: "9.870000"},
		},
	}
	router := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/tx/history?address=ADDR", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"direction":"IN"`)
}

func TestReceiptByIDNotFound(t *testing.T) {
	router := newTestRouter(&stubRampService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/tx/TX-404/receipt", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
