package domain

// ExchangeOrder is the venue's order-fill record, field names as the venue
// reports them (including its misspelled cummulativeQuoteQty).
type ExchangeOrder struct {
	Symbol        string      `json:"symbol"`
	OrderID       int64       `json:"orderId"`
	ClientOrderID string      `json:"clientOrderId"`
	TransactTime  int64       `json:"transactTime"`
	Price         string      `json:"price"`
	OrigQty       string      `json:"origQty"`
	ExecutedQty   string      `json:"executedQty"`
	CumQuoteQty   string      `json:"cummulativeQuoteQty"`
	Status        string      `json:"status"`
	TimeInForce   string      `json:"timeInForce"`
	Type          string      `json:"type"`
	Side          string      `json:"side"`
	Fills         []OrderFill `json:"fills"`
}

type OrderFill struct {
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
}

// SpotQuote is a live spot snapshot for converting USD into the base asset.
type SpotQuote struct {
	USD          string       `json:"usd"`
	Symbol       string       `json:"symbol"`
	Venue        string       `json:"venue"`
	Price        QuotePrices  `json:"price"`
	ExpectedUSDC ExpectedUSDC `json:"expected_usdc"`
	Timestamp    int64        `json:"ts"`
}

type QuotePrices struct {
	Last      string `json:"last"`
	Bid       string `json:"bid"`
	Ask       string `json:"ask"`
	Mid       string `json:"mid"`
	SpreadBps string `json:"spread_bps"`
}

type ExpectedUSDC struct {
	AtLast string `json:"at_last"`
	AtMid  string `json:"at_mid"`
	AtAsk  string `json:"at_ask"`
}
