package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/stealth-alerts/internal/errors"
	"github.com/stealth-alerts/internal/types"
)

// HoneypotClient runs sell-simulation checks against honeypot.is. The check
// is two calls: resolve the token's main trading pair, then simulate against
// that pair.
type HoneypotClient struct {
	baseURL string
	client  *http.Client
}

// NewHoneypotClient creates a honeypot.is client.
func NewHoneypotClient() *HoneypotClient {
	return &HoneypotClient{
		baseURL: "https://api.honeypot.is",
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

type honeypotPair struct {
	Pair struct {
		Address string `json:"Address"`
	} `json:"Pair"`
}

type honeypotResult struct {
	HoneypotResult struct {
		IsHoneypot bool `json:"isHoneypot"`
	} `json:"honeypotResult"`
	SimulationResult struct {
		BuyTax      float64 `json:"buyTax"`
		SellTax     float64 `json:"sellTax"`
		TransferTax float64 `json:"transferTax"`
	} `json:"simulationResult"`
	ContractCode struct {
		OpenSource bool `json:"openSource"`
	} `json:"contractCode"`
}

// Check simulates a buy/sell round trip for the token and returns the
// verdict. Tokens with no trading pair cannot be simulated and error out.
func (c *HoneypotClient) Check(ctx context.Context, tokenAddress string) (*types.HoneypotVerdict, error) {
	pairsURL := fmt.Sprintf("%s/v1/GetPairs?address=%s&chainID=1", c.baseURL, url.QueryEscape(tokenAddress))
	body, err := c.get(ctx, pairsURL)
	if err != nil {
		return nil, errors.NewEnrichmentError("honeypot", tokenAddress, err)
	}

	var pairs []honeypotPair
	if err := json.Unmarshal(body, &pairs); err != nil {
		return nil, errors.NewEnrichmentError("honeypot", tokenAddress, fmt.Errorf("parse pairs: %w", err))
	}
	if len(pairs) == 0 || pairs[0].Pair.Address == "" {
		return nil, errors.NewEnrichmentError("honeypot", tokenAddress, fmt.Errorf("no trading pair found"))
	}

	checkURL := fmt.Sprintf("%s/v1/IsHoneypot?address=%s&pair=%s&chainID=1",
		c.baseURL, url.QueryEscape(tokenAddress), url.QueryEscape(pairs[0].Pair.Address))
	body, err = c.get(ctx, checkURL)
	if err != nil {
		return nil, errors.NewEnrichmentError("honeypot", tokenAddress, err)
	}

	var result honeypotResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.NewEnrichmentError("honeypot", tokenAddress, fmt.Errorf("parse result: %w", err))
	}

	return &types.HoneypotVerdict{
		IsHoneypot:  result.HoneypotResult.IsHoneypot,
		BuyTax:      result.SimulationResult.BuyTax,
		SellTax:     result.SimulationResult.SellTax,
		TransferTax: result.SimulationResult.TransferTax,
		OpenSource:  result.ContractCode.OpenSource,
	}, nil
}

func (c *HoneypotClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d - %s", resp.StatusCode, string(body))
	}
	return body, nil
}
