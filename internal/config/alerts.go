package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Wallet-quality filter rules.
const (
	WalletRuleAny   = "any"
	WalletRuleEvery = "every"
)

// AlertDefinition is the immutable configuration of one alert. Definitions
// are created at load time and never mutated during evaluation.
type AlertDefinition struct {
	ID     int64       `json:"id"`
	Name   string      `json:"name"`
	Query  AlertQuery  `json:"query"`
	Filter AlertFilter `json:"filter"`

	// WalletFilter is optional; nil passes every match.
	WalletFilter *WalletQualityFilter `json:"walletFilter,omitempty"`

	ShowWalletStats bool `json:"showWalletStats"`
	ShowWalletLinks bool `json:"showWalletLinks"`
}

// AlertQuery holds the upstream query parameters for a definition.
type AlertQuery struct {
	PageSize         int  `json:"pageSize"`
	ValueFilter      int  `json:"valueFilter"`
	WalletAgeDays    int  `json:"walletAgeDays"`
	BoughtTokenLimit bool `json:"boughtTokenLimit"`
}

// AlertFilter holds the matching thresholds for a definition.
type AlertFilter struct {
	WindowMinutes      int      `json:"minsAgo"`
	MinDistinctWallets int      `json:"minDistinctWallets"`
	ExcludedTokens     []string `json:"excludedTokens"`
}

// WalletQualityFilter gates matches on per-wallet trading stats. It applies
// only after enrichment has attached win-rate/ROI; unknown stats never
// exclude a wallet.
type WalletQualityFilter struct {
	Rule       string  `json:"rule"` // "any" or "every"
	MinWinRate float64 `json:"minWinRate"`
	MinROI     float64 `json:"minRoi"`
}

// Validate checks that a definition is usable. Definitions failing
// validation are rejected at load time, not at evaluation time.
func (d *AlertDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("alert definition %d: name is required", d.ID)
	}
	if d.Query.PageSize <= 0 {
		return fmt.Errorf("alert %q: query.pageSize must be positive", d.Name)
	}
	if d.Filter.WindowMinutes <= 0 {
		return fmt.Errorf("alert %q: filter.minsAgo must be positive", d.Name)
	}
	if d.Filter.MinDistinctWallets < 1 {
		return fmt.Errorf("alert %q: filter.minDistinctWallets must be at least 1", d.Name)
	}
	if f := d.WalletFilter; f != nil {
		if f.Rule != WalletRuleAny && f.Rule != WalletRuleEvery {
			return fmt.Errorf("alert %q: walletFilter.rule must be %q or %q", d.Name, WalletRuleAny, WalletRuleEvery)
		}
	}
	return nil
}

// ExclusionSet returns the definition's excluded token identifiers as a set.
func (d *AlertDefinition) ExclusionSet() map[string]struct{} {
	set := make(map[string]struct{}, len(d.Filter.ExcludedTokens))
	for _, t := range d.Filter.ExcludedTokens {
		set[t] = struct{}{}
	}
	return set
}

// LoadDefinitions reads alert definitions from the configured JSON file.
// An empty path yields the built-in defaults.
func LoadDefinitions(path string) ([]AlertDefinition, error) {
	if path == "" {
		return DefaultDefinitions(), nil
	}

	data, err := os.ReadFile(path) // #nosec G304 - path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read alert definitions: %w", err)
	}

	var defs []AlertDefinition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parse alert definitions: %w", err)
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("alert definitions file %s is empty", path)
	}

	for i := range defs {
		if defs[i].ID == 0 {
			defs[i].ID = int64(i + 1)
		}
		if err := defs[i].Validate(); err != nil {
			return nil, err
		}
	}
	return defs, nil
}

// wethAddress is excluded by default: wrapped-ether buys are a side effect
// of most swaps, not a signal.
const wethAddress = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"

// DefaultDefinitions returns the two built-in stealth-wallet alerts.
func DefaultDefinitions() []AlertDefinition {
	return []AlertDefinition{
		{
			ID:   1,
			Name: "🔴 Alert 1 - Stealth Wallets (1D, 1 token)",
			Query: AlertQuery{
				PageSize:         100,
				ValueFilter:      120,
				WalletAgeDays:    1,
				BoughtTokenLimit: true,
			},
			Filter: AlertFilter{
				WindowMinutes:      5,
				MinDistinctWallets: 3,
				ExcludedTokens:     []string{wethAddress},
			},
			ShowWalletStats: true,
			ShowWalletLinks: true,
		},
		{
			ID:   2,
			Name: "🟠 Alert 2 - Stealth Wallets (7D, any token)",
			Query: AlertQuery{
				PageSize:         100,
				ValueFilter:      120,
				WalletAgeDays:    7,
				BoughtTokenLimit: false,
			},
			Filter: AlertFilter{
				WindowMinutes:      5,
				MinDistinctWallets: 4,
				ExcludedTokens:     []string{wethAddress},
			},
			ShowWalletStats: true,
			ShowWalletLinks: true,
		},
	}
}
