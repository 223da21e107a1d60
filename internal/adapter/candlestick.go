package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/stealth-alerts/internal/config"
	"github.com/stealth-alerts/internal/errors"
	"github.com/stealth-alerts/internal/types"
)

// CandlestickClient talks to the stealth-wallet data provider. Login always
// goes to the base host; authed data calls go through the proxy host so the
// auth token stays usable from restricted networks.
type CandlestickClient struct {
	baseURL      string
	proxyURL     string
	email        string
	password     string
	deviceID     string
	portfolioKey string
	client       *http.Client
}

// NewCandlestickClient creates a provider client from config.
func NewCandlestickClient(cfg config.ProviderConfig) *CandlestickClient {
	proxy := cfg.ProxyURL
	if proxy == "" {
		proxy = cfg.BaseURL
	}
	return &CandlestickClient{
		baseURL:      cfg.BaseURL,
		proxyURL:     proxy,
		email:        cfg.Email,
		password:     cfg.HashedPassword,
		deviceID:     cfg.DeviceID,
		portfolioKey: cfg.PortfolioAESKey,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
}

// apiEnvelope is the provider's standard response wrapper. code==1 means
// success; anything else is a provider-side rejection.
type apiEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Login performs an email/password login and returns a fresh auth token.
// The password is sent pre-hashed; the client never sees the clear one.
func (c *CandlestickClient) Login(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"deviceId": c.deviceID,
		"email":    c.email,
		"password": c.password,
	})
	if err != nil {
		return "", errors.NewAuthUnavailableError(err)
	}

	loginURL := c.baseURL + "/api/v2/user/login-email"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, bytes.NewReader(payload))
	if err != nil {
		return "", errors.NewAuthUnavailableError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	env, err := c.do(req)
	if err != nil {
		return "", errors.NewAuthUnavailableError(err)
	}
	if env.Code != 1 {
		return "", errors.NewAuthUnavailableError(fmt.Errorf("login rejected: code=%d message=%s", env.Code, env.Message))
	}

	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", errors.NewAuthUnavailableError(fmt.Errorf("parse login response: %w", err))
	}
	if data.Token == "" {
		return "", errors.NewAuthUnavailableError(fmt.Errorf("login response missing token"))
	}
	return data.Token, nil
}

// CheckToken reports whether a cached auth token is still accepted by the
// provider. Any transport failure counts as invalid: the caller falls back
// to a fresh login rather than trusting a token it could not verify.
func (c *CandlestickClient) CheckToken(ctx context.Context, token string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.proxyURL+"/api/v1/user/user-info", nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("x-authorization", token)

	env, err := c.do(req)
	if err != nil {
		return false, err
	}
	return env.Code == 1, nil
}

// FetchTransactions fetches the current page of stealth-wallet purchases for
// an alert's query parameters.
func (c *CandlestickClient) FetchTransactions(ctx context.Context, token string, query config.AlertQuery) ([]types.TransactionRecord, error) {
	params := url.Values{}
	params.Set("current_page", "1")
	params.Set("page_size", strconv.Itoa(query.PageSize))
	params.Set("sort_type", "3")
	params.Set("oriented", "1")
	params.Set("blockchain_id", "2")
	params.Set("exploreType", "token")
	params.Set("days", strconv.Itoa(query.WalletAgeDays))
	params.Set("value_filter", strconv.Itoa(query.ValueFilter))
	params.Set("include_noise_trades", "false")
	params.Set("fundingSource", "ALL")
	params.Set("boughtTokenLimit", strconv.FormatBool(query.BoughtTokenLimit))
	params.Set("hide_first_mins", "0")
	params.Set("activeSource", "ETH")

	searchURL := c.proxyURL + "/api/v1/stealth-money/degen-explorer-by-stealth-money?" + params.Encode()

	env, err := c.getAuthed(ctx, searchURL, token)
	if err != nil {
		return nil, errors.NewUpstreamFetchError("fetch stealth transactions", err)
	}
	if env.Code != 1 {
		return nil, errors.NewUpstreamFetchError("fetch stealth transactions",
			fmt.Errorf("provider rejected request: code=%d message=%s", env.Code, env.Message))
	}

	var data struct {
		Chart []types.TransactionRecord `json:"chart"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, errors.NewUpstreamFetchError("fetch stealth transactions", fmt.Errorf("parse response: %w", err))
	}
	return data.Chart, nil
}

// FetchTopWallets returns the addresses of the provider's current top-ROI
// wallets. The thresholds mirror the ones used for the watched-wallet set:
// consistently profitable wallets with meaningful cost basis.
func (c *CandlestickClient) FetchTopWallets(ctx context.Context, token string) ([]string, error) {
	params := url.Values{}
	params.Set("current_page", "1")
	params.Set("page_size", "50")
	params.Set("sort_type", "0")
	params.Set("oriented", "1")
	params.Set("blockchain_id", "2")
	params.Set("active_within", "2")
	params.Set("timeframe", "3")
	params.Set("total_profit", "4000")
	params.Set("profitFilterType", "totalProfit")
	params.Set("total_cost", "100")
	params.Set("first_in", "1")
	params.Set("token_traded", "3")
	params.Set("win_rate", "0.9")

	topURL := c.proxyURL + "/api/v1/address-explore/top-total-roi?" + params.Encode()

	env, err := c.getAuthed(ctx, topURL, token)
	if err != nil {
		return nil, errors.NewUpstreamFetchError("fetch top wallets", err)
	}
	if env.Code != 1 {
		return nil, errors.NewUpstreamFetchError("fetch top wallets",
			fmt.Errorf("provider rejected request: code=%d message=%s", env.Code, env.Message))
	}

	var data struct {
		Chart []struct {
			AddressInfo struct {
				Address string `json:"address"`
			} `json:"addressInfo"`
		} `json:"chart"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, errors.NewUpstreamFetchError("fetch top wallets", fmt.Errorf("parse response: %w", err))
	}

	addresses := make([]string, 0, len(data.Chart))
	for _, w := range data.Chart {
		if w.AddressInfo.Address != "" {
			addresses = append(addresses, w.AddressInfo.Address)
		}
	}
	return addresses, nil
}

// WalletPerformance fetches trading stats for one wallet. The provider keys
// performance lookups on the encrypted address hash, not the raw address.
func (c *CandlestickClient) WalletPerformance(ctx context.Context, token, address string) (types.WalletStats, error) {
	hash, err := HashWalletAddress(address, c.portfolioKey)
	if err != nil {
		return types.UnknownWalletStats(), errors.NewEnrichmentError("wallet_stats", address, err)
	}

	params := url.Values{}
	params.Set("walletAddressHash", hash)
	params.Set("active_in", "1")

	perfURL := c.proxyURL + "/api/v1/trading-performance/performance-brief?" + params.Encode()

	env, err := c.getAuthed(ctx, perfURL, token)
	if err != nil {
		return types.UnknownWalletStats(), errors.NewEnrichmentError("wallet_stats", address, err)
	}
	if env.Code != 1 {
		return types.UnknownWalletStats(), errors.NewEnrichmentError("wallet_stats", address,
			fmt.Errorf("provider rejected request: code=%d message=%s", env.Code, env.Message))
	}

	var data struct {
		Stat struct {
			WinRate     *float64 `json:"est_win_Rate"`
			ProfitRatio *float64 `json:"est_total_profit_ratio"`
			CoinsTraded *float64 `json:"coin_traded"`
		} `json:"stat"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return types.UnknownWalletStats(), errors.NewEnrichmentError("wallet_stats", address, fmt.Errorf("parse response: %w", err))
	}

	stats := types.UnknownWalletStats()
	if data.Stat.WinRate != nil {
		stats.WinRate = *data.Stat.WinRate
	}
	if data.Stat.ProfitRatio != nil {
		stats.ROI = *data.Stat.ProfitRatio
	}
	if data.Stat.CoinsTraded != nil {
		stats.CoinsTraded = *data.Stat.CoinsTraded
	}
	return stats, nil
}

// TraderURL returns the public trader-scan page for a wallet address.
func (c *CandlestickClient) TraderURL(address string) string {
	return TraderScanURL(address, c.portfolioKey)
}

func (c *CandlestickClient) getAuthed(ctx context.Context, rawURL, token string) (*apiEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-authorization", token)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *CandlestickClient) do(req *http.Request) (*apiEnvelope, error) {
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

	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &env, nil
}
