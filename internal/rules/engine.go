// Package rules applies per-definition thresholds and exclusions to token
// aggregates and ranks the resulting matches.
package rules

import (
	"math"
	"sort"

	"github.com/stealth-alerts/internal/aggregator"
	"github.com/stealth-alerts/internal/config"
)

// Match is a token aggregate that satisfied an alert definition.
type Match struct {
	Definition *config.AlertDefinition
	Aggregate  *aggregator.TokenAggregate
}

// WalletCount returns the match's distinct buyer count.
func (m *Match) WalletCount() int {
	return m.Aggregate.WalletCount()
}

// Evaluate filters aggregates against a definition's thresholds and returns
// the matches ordered by distinct-wallet count descending. Ties keep the
// aggregates' first-seen order.
//
// The exclusion list is re-checked here even though aggregation already
// applies it: a match must never surface an excluded token regardless of
// what upstream produced.
func Evaluate(result *aggregator.Result, def *config.AlertDefinition) []*Match {
	exclusions := def.ExclusionSet()

	matches := make([]*Match, 0)
	for _, agg := range result.Ordered() {
		if _, excluded := exclusions[agg.TokenAddress]; excluded {
			continue
		}
		if agg.WalletCount() < def.Filter.MinDistinctWallets {
			continue
		}
		matches = append(matches, &Match{Definition: def, Aggregate: agg})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].WalletCount() > matches[j].WalletCount()
	})

	return matches
}

// ApplyWalletQuality filters matches through the definition's optional
// wallet-quality filter. It must run after enrichment has attached wallet
// stats; with no filter configured every match passes.
//
// Thresholds are non-strict. A missing or NaN stat counts as satisfying the
// threshold: unknown never excludes.
func ApplyWalletQuality(matches []*Match, def *config.AlertDefinition) []*Match {
	f := def.WalletFilter
	if f == nil {
		return matches
	}

	kept := make([]*Match, 0, len(matches))
	for _, m := range matches {
		if walletsSatisfy(m, f) {
			kept = append(kept, m)
		}
	}
	return kept
}

func walletsSatisfy(m *Match, f *config.WalletQualityFilter) bool {
	addresses := m.Aggregate.WalletAddresses()
	if len(addresses) == 0 {
		return true
	}

	for _, addr := range addresses {
		passes := walletPasses(m, addr, f)
		switch f.Rule {
		case config.WalletRuleAny:
			if passes {
				return true
			}
		case config.WalletRuleEvery:
			if !passes {
				return false
			}
		}
	}

	return f.Rule == config.WalletRuleEvery
}

func walletPasses(m *Match, addr string, f *config.WalletQualityFilter) bool {
	stats, ok := m.Aggregate.WalletStats[addr]
	if !ok {
		return true
	}
	if !math.IsNaN(stats.WinRate) && stats.WinRate < f.MinWinRate {
		return false
	}
	if !math.IsNaN(stats.ROI) && stats.ROI < f.MinROI {
		return false
	}
	return true
}
