package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainswarm/chainswarm-go/internal/models"
	"github.com/chainswarm/chainswarm-go/internal/registry"
)

// Client talks to the external market-data/execution service over HTTP. It
// implements PriceOracle, GasEstimator, and TradeExecutor.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

type priceResponse struct {
	Chain string          `json:"chain"`
	Token string          `json:"token"`
	Price decimal.Decimal `json:"price"`
}

type gasResponse struct {
	GasCost decimal.Decimal `json:"gas_cost"`
}

type tradeRequestPayload struct {
	SourceChain  string          `json:"source_chain"`
	TargetChain  string          `json:"target_chain"`
	Token        string          `json:"token"`
	Amount       decimal.Decimal `json:"amount"`
	SourceBridge string          `json:"source_bridge"`
	TargetBridge string          `json:"target_bridge"`
}

type tradeResponse struct {
	Success   bool            `json:"success"`
	Profit    decimal.Decimal `json:"profit"`
	GasUsed   decimal.Decimal `json:"gas_used"`
	Timestamp time.Time       `json:"timestamp"`
	Error     string          `json:"error,omitempty"`
}

// NewClient creates a market service client. timeout bounds each HTTP call.
func NewClient(serviceURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(serviceURL, "/"),
	}
}

// GetPrice implements PriceOracle.
func (c *Client) GetPrice(ctx context.Context, chain, token string) (decimal.Decimal, error) {
	if chain == "" || token == "" {
		return decimal.Zero, fmt.Errorf("%w: chain and token are required", ErrInvalidParameters)
	}

	path := fmt.Sprintf("/api/v1/price/%s/%s", url.PathEscape(chain), url.PathEscape(token))
	var resp priceResponse
	if err := c.makeRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return decimal.Zero, err
	}
	if !resp.Price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s on %s", ErrPriceUnavailable, token, chain)
	}
	return resp.Price, nil
}

// EstimateGas implements GasEstimator.
func (c *Client) EstimateGas(ctx context.Context, token string, source, target registry.ChainInfo) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("source", source.Name)
	q.Set("target", target.Name)
	q.Set("token", token)

	var resp gasResponse
	if err := c.makeRequest(ctx, http.MethodGet, "/api/v1/gas?"+q.Encode(), nil, &resp); err != nil {
		return decimal.Zero, err
	}
	if resp.GasCost.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative gas estimate for %s", ErrInvalidParameters, token)
	}
	return resp.GasCost, nil
}

// ExecuteCrossChainTrade implements TradeExecutor.
func (c *Client) ExecuteCrossChainTrade(ctx context.Context, req TradeRequest) (*models.TradeResult, error) {
	payload := tradeRequestPayload{
		SourceChain:  req.SourceChain,
		TargetChain:  req.TargetChain,
		Token:        req.Token,
		Amount:       req.Amount,
		SourceBridge: req.SourceInfo.BridgeAddress,
		TargetBridge: req.TargetInfo.BridgeAddress,
	}

	var resp tradeResponse
	if err := c.makeRequest(ctx, http.MethodPost, "/api/v1/trade", payload, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", ErrExecutionFailure, resp.Error)
	}
	return &models.TradeResult{
		Success:    true,
		Profit:     resp.Profit,
		GasUsed:    resp.GasUsed,
		ExecutedAt: resp.Timestamp,
	}, nil
}

func (c *Client) makeRequest(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrPriceUnavailable, path)
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrInvalidParameters, path)
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("service returned status %d for %s: %s", resp.StatusCode, path, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}
	return nil
}
