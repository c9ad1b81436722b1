package chainindex

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/radlabs/rampd/internal/domain"
	"github.com/radlabs/rampd/pkg/config"
)

// IndexerClient reads confirmed transactions back from the chain indexer's
// REST API. Read-only; the write path never depends on it.
type IndexerClient struct {
	baseURL    string
	token      string
	limit      int
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewIndexerClient(cfg *config.IndexerConfig, logger zerolog.Logger) *IndexerClient {
	return &IndexerClient{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		limit:   cfg.Limit,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		logger: logger.With().Str("component", "indexer_client").Logger(),
	}
}

type searchResponse struct {
	Transactions []indexedTxn `json:"transactions"`
}

type indexedTxn struct {
	ID            string         `json:"id"`
	RoundTime     int64          `json:"round-time"`
	Sender        string         `json:"sender"`
	Note          string         `json:"note"`
	AssetTransfer *assetTransfer `json:"asset-transfer-transaction"`
}

type assetTransfer struct {
	AssetID  uint64 `json:"asset-id"`
	Amount   uint64 `json:"amount"`
	Receiver string `json:"receiver"`
}

// SearchAssetTransfers lists asset transfers touching address for assetID,
// newest first, up to the configured page limit. Non-transfer transactions
// in the page are skipped.
func (c *IndexerClient) SearchAssetTransfers(ctx context.Context, address string, assetID uint64) ([]domain.ChainTransfer, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid indexer base URL: %w", err)
	}
	u.Path = "/v2/transactions"
	q := u.Query()
	q.Set("address", address)
	q.Set("asset-id", strconv.FormatUint(assetID, 10))
	q.Set("limit", strconv.Itoa(c.limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request failed: %w", err)
	}
	if c.token != "" {
		req.Header.Set("X-Indexer-API-Token", c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("indexer request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error().
			Int("status_code", resp.StatusCode).
			Str("address", address).
			Str("response_body", string(body)).
			Msg("Indexer request failed")
		return nil, fmt.Errorf("indexer returned status %d", resp.StatusCode)
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing indexer response failed: %w", err)
	}

	transfers := make([]domain.ChainTransfer, 0, len(result.Transactions))
	for _, tx := range result.Transactions {
		if tx.AssetTransfer == nil {
			continue
		}
		var note []byte
		if tx.Note != "" {
			if decoded, err := base64.StdEncoding.DecodeString(tx.Note); err == nil {
				note = decoded
			}
		}
		transfers = append(transfers, domain.ChainTransfer{
			TxID:      tx.ID,
			RoundTime: tx.RoundTime,
			Sender:    tx.Sender,
			Receiver:  tx.AssetTransfer.Receiver,
			Amount:    tx.AssetTransfer.Amount,
			Note:      note,
		})
	}

	c.logger.Debug().
		Str("address", address).
		Uint64("asset_id", assetID).
		Int("transfer_count", len(transfers)).
		Msg("Fetched asset transfers")
	return transfers, nil
}
