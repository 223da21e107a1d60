package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/stealth-alerts/internal/errors"
)

// EtherscanClient resolves contract creation transactions via the Etherscan
// API. Free tier allows 3 requests per second; the limiter is shared across
// all lookups from this client.
type EtherscanClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewEtherscanClient creates an Etherscan API client.
func NewEtherscanClient(apiKey string) *EtherscanClient {
	return &EtherscanClient{
		apiKey:  apiKey,
		baseURL: "https://api.etherscan.io/api",
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(3), 3),
	}
}

type etherscanCreationResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  []struct {
		ContractAddress string `json:"contractAddress"`
		ContractCreator string `json:"contractCreator"`
		TxHash          string `json:"txHash"`
	} `json:"result"`
}

// ContractCreationTx returns the hash of the transaction that deployed the
// given contract. The timestamp lookup happens on-chain; Etherscan only maps
// the contract to its deployment transaction.
func (c *EtherscanClient) ContractCreationTx(ctx context.Context, contractAddress string) (string, error) {
	if c.apiKey == "" {
		return "", errors.NewEnrichmentError("contract_creation", contractAddress, fmt.Errorf("etherscan API key not configured"))
	}

	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "getcontractcreation")
	params.Set("contractaddresses", contractAddress)
	params.Set("apikey", c.apiKey)

	body, err := c.get(ctx, c.baseURL+"?"+params.Encode())
	if err != nil {
		return "", errors.NewEnrichmentError("contract_creation", contractAddress, err)
	}

	var resp etherscanCreationResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", errors.NewEnrichmentError("contract_creation", contractAddress, fmt.Errorf("parse response: %w", err))
	}
	if resp.Status != "1" || len(resp.Result) == 0 {
		return "", errors.NewEnrichmentError("contract_creation", contractAddress,
			fmt.Errorf("etherscan API error: %s", resp.Message))
	}
	if resp.Result[0].TxHash == "" {
		return "", errors.NewEnrichmentError("contract_creation", contractAddress, fmt.Errorf("creation tx hash missing"))
	}
	return resp.Result[0].TxHash, nil
}

func (c *EtherscanClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

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
