package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"reaper/internal/adapters/config"
	"reaper/internal/domain/token"
	"reaper/pkg/errors"
)

// Compile-time check
var _ token.Ledger = (*Client)(nil)

// Client talks to the external value ledger over HTTP. Transfers are the only
// way value enters or leaves the engine; the ledger service is the source of
// truth for balances.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new value ledger client
func NewClient(cfg config.LedgerConfig) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type transferRequest struct {
	Ref    string          `json:"ref"`
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

type balanceResponse struct {
	Account string          `json:"account"`
	Balance decimal.Decimal `json:"balance"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Transfer moves value between ledger accounts. The ledger deduplicates on
// ref, so resending a transfer that already settled is a no-op.
func (c *Client) Transfer(ctx context.Context, ref string, from, to token.Account, amount decimal.Decimal) error {
	body, err := json.Marshal(transferRequest{
		Ref:    ref,
		From:   string(from),
		To:     string(to),
		Amount: amount,
	})
	if err != nil {
		return errors.Wrap(err, "marshal transfer request")
	}

	url := fmt.Sprintf("%s/v1/transfers", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build transfer request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "execute transfer")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var apiErr errorResponse
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return errors.Wrapf(errors.ErrTransferFailed, "ledger: %s", apiErr.Error)
		}
		return errors.Wrapf(errors.ErrTransferFailed, "ledger returned %d", resp.StatusCode)
	}
	return nil
}

// BalanceOf returns an account's current balance
func (c *Client) BalanceOf(ctx context.Context, account token.Account) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/v1/accounts/%s/balance", c.baseURL, account)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "build balance request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "fetch balance")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, errors.Wrapf(errors.ErrTransferFailed, "ledger returned %d", resp.StatusCode)
	}

	var out balanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return decimal.Zero, errors.Wrap(err, "decode balance response")
	}
	return out.Balance, nil
}
