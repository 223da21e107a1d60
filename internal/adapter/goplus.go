package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stealth-alerts/internal/errors"
	"github.com/stealth-alerts/internal/types"
)

// GoPlusClient fetches token security reports from the GoPlus Labs API.
// All chain lookups are pinned to Ethereum mainnet (chain id 1).
type GoPlusClient struct {
	baseURL string
	client  *http.Client
}

// NewGoPlusClient creates a GoPlus token security client.
func NewGoPlusClient() *GoPlusClient {
	return &GoPlusClient{
		baseURL: "https://api.gopluslabs.io",
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

// goPlusSecurity uses "1"/"0" strings for booleans, matching the API.
type goPlusSecurity struct {
	IsOpenSource         string `json:"is_open_source"`
	HiddenOwner          string `json:"hidden_owner"`
	CanTakeBackOwnership string `json:"can_take_back_ownership"`
	IsMintable           string `json:"is_mintable"`
	IsBlacklisted        string `json:"is_blacklisted"`
}

type goPlusResponse struct {
	Code    int                       `json:"code"`
	Message string                    `json:"message"`
	Result  map[string]goPlusSecurity `json:"result"`
}

// TokenSecurity returns the security verdict for a token contract.
func (c *GoPlusClient) TokenSecurity(ctx context.Context, tokenAddress string) (*types.SecurityVerdict, error) {
	secURL := fmt.Sprintf("%s/api/v1/token_security/1?contract_addresses=%s",
		c.baseURL, url.QueryEscape(tokenAddress))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, secURL, nil)
	if err != nil {
		return nil, errors.NewEnrichmentError("token_security", tokenAddress, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NewEnrichmentError("token_security", tokenAddress, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewEnrichmentError("token_security", tokenAddress, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewEnrichmentError("token_security", tokenAddress,
			fmt.Errorf("HTTP error: %d - %s", resp.StatusCode, string(body)))
	}

	var parsed goPlusResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.NewEnrichmentError("token_security", tokenAddress, fmt.Errorf("parse response: %w", err))
	}
	if parsed.Code != 1 {
		return nil, errors.NewEnrichmentError("token_security", tokenAddress,
			fmt.Errorf("goplus API error: code=%d message=%s", parsed.Code, parsed.Message))
	}

	// Results are keyed by lowercased contract address.
	sec, ok := parsed.Result[strings.ToLower(tokenAddress)]
	if !ok {
		return nil, errors.NewEnrichmentError("token_security", tokenAddress, fmt.Errorf("token not in response"))
	}

	return &types.SecurityVerdict{
		IsOpenSource:         sec.IsOpenSource == "1",
		HiddenOwner:          sec.HiddenOwner == "1",
		CanTakeBackOwnership: sec.CanTakeBackOwnership == "1",
		IsMintable:           sec.IsMintable == "1",
		IsBlacklisted:        sec.IsBlacklisted == "1",
	}, nil
}
