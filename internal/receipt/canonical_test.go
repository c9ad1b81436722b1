package receipt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radlabs/rampd/internal/domain"
)

func sampleReceipt() *domain.Receipt {
	return &domain.Receipt{
		Payer: domain.PartyRef{Email: "alice@example.com", PayPal: "alice-pp@example.com"},
		Recipient: domain.PartyRef{
			Wallet: "GD64YIY3TWGDMCNPP553DZPPR6LDUSFQOIJVFDPPXWEG3FVOJCCDBBHU5A",
		},
		Payment: domain.PaymentInfo{
			Kind:       "fiat->spot(usdt)->usdc->localnet-usdc",
			USD:        "10.00",
			USDTSpent:  "10.000000",
			USDCBought: "9.870000",
			OrderID:    "ord-123",
		},
		Exchange: domain.ExchangeInfo{
			Name:           "binance",
			Venue:          "spot-testnet",
			Symbol:         "USDCUSDT",
			EffectivePrice: "1.013171",
		},
		VenueOrder: domain.VenueOrder{
			OrderID:      4821337,
			Status:       "FILLED",
			TransactTime: 1724800000123,
			ExecutedQty:  "9.870000",
			CumQuoteQty:  "10.000000",
			Side:         "BUY",
			Type:         "MARKET",
		},
		Asset: domain.AssetInfo{
			ID:       1018,
			Name:     "USDC-DEV",
			Unit:     "USDCd",
			Decimals: 6,
		},
		Timestamp: 1724800001,
	}
}

func TestCanonicalDeterministic(t *testing.T) {
	a, err := Canonical(sampleReceipt())
	require.NoError(t, err)
	b, err := Canonical(sampleReceipt())
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, DigestOf(a), DigestOf(b))
}

func TestCanonicalNoWhitespace(t *testing.T) {
	b, err := Canonical(sampleReceipt())
	require.NoError(t, err)

	assert.NotContains(t, string(b), ": ")
	assert.NotContains(t, string(b), ", ")
	assert.NotContains(t, string(b), "\n")
}

func TestDigestChangesWithContent(t *testing.T) {
	base, err := Digest(sampleReceipt())
	require.NoError(t, err)

	changed := sampleReceipt()
	changed.Payment.USD = "10.01"
	other, err := Digest(changed)
	require.NoError(t, err)

	assert.NotEqual(t, base, other)
}
