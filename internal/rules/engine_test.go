package rules

import (
	"math"
	"testing"
	"time"

	"github.com/stealth-alerts/internal/aggregator"
	"github.com/stealth-alerts/internal/config"
	"github.com/stealth-alerts/internal/types"
)

const (
	tokenT1 = "0x1111111111111111111111111111111111111111"
	tokenT2 = "0x2222222222222222222222222222222222222222"
	tokenT3 = "0x3333333333333333333333333333333333333333"
	weth    = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
)

func buildResult(t *testing.T, buysByToken map[string][]string, order []string) *aggregator.Result {
	t.Helper()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	at := now.Add(-1 * time.Minute)

	var txns []types.TransactionRecord
	for _, token := range order {
		for _, wallet := range buysByToken[token] {
			txns = append(txns, types.TransactionRecord{
				Time:          types.FormatUTCTime(at),
				WalletAddress: wallet,
				TokenAddress:  token,
				TokenSymbol:   "TKN",
				Value:         100,
			})
		}
	}
	return aggregator.Aggregate(txns, 5*time.Minute, nil, now)
}

func definition(minWallets int, excluded ...string) *config.AlertDefinition {
	return &config.AlertDefinition{
		ID:   1,
		Name: "test alert",
		Query: config.AlertQuery{
			PageSize:    100,
			ValueFilter: 120,
		},
		Filter: config.AlertFilter{
			WindowMinutes:      5,
			MinDistinctWallets: minWallets,
			ExcludedTokens:     excluded,
		},
	}
}

func TestEvaluateThreshold(t *testing.T) {
	result := buildResult(t, map[string][]string{
		tokenT1: {"0xA", "0xB", "0xA"},
		tokenT2: {"0xC"},
	}, []string{tokenT1, tokenT2})

	matches := Evaluate(result, definition(2))
	if len(matches) != 1 {
		t.Fatalf("Evaluate() returned %d matches, want 1", len(matches))
	}
	if matches[0].Aggregate.TokenAddress != tokenT1 {
		t.Errorf("matched token = %s, want %s", matches[0].Aggregate.TokenAddress, tokenT1)
	}
	if matches[0].WalletCount() != 2 {
		t.Errorf("WalletCount() = %d, want 2", matches[0].WalletCount())
	}
}

func TestEvaluateNoMatchBelowThreshold(t *testing.T) {
	result := buildResult(t, map[string][]string{
		tokenT1: {"0xA", "0xB", "0xA"},
	}, []string{tokenT1})

	if matches := Evaluate(result, definition(3)); len(matches) != 0 {
		t.Errorf("Evaluate() returned %d matches, want 0", len(matches))
	}
}

func TestEvaluateDefensiveExclusion(t *testing.T) {
	// The aggregate map deliberately contains the excluded token to verify
	// matching re-checks exclusions on its own.
	result := buildResult(t, map[string][]string{
		weth: {"0xA", "0xB", "0xC"},
	}, []string{weth})

	if matches := Evaluate(result, definition(2, weth)); len(matches) != 0 {
		t.Errorf("Evaluate() surfaced an excluded token")
	}
}

func TestEvaluateOrdering(t *testing.T) {
	result := buildResult(t, map[string][]string{
		tokenT1: {"0xA", "0xB"},
		tokenT2: {"0xC", "0xD", "0xE"},
		tokenT3: {"0xF", "0xG"},
	}, []string{tokenT1, tokenT2, tokenT3})

	matches := Evaluate(result, definition(2))
	if len(matches) != 3 {
		t.Fatalf("Evaluate() returned %d matches, want 3", len(matches))
	}
	if matches[0].Aggregate.TokenAddress != tokenT2 {
		t.Errorf("highest wallet count should rank first, got %s", matches[0].Aggregate.TokenAddress)
	}
	// T1 and T3 both have 2 wallets; insertion order breaks the tie.
	if matches[1].Aggregate.TokenAddress != tokenT1 || matches[2].Aggregate.TokenAddress != tokenT3 {
		t.Errorf("tie order = [%s %s], want [T1 T3]",
			matches[1].Aggregate.TokenAddress, matches[2].Aggregate.TokenAddress)
	}
}

func walletMatch(t *testing.T, stats map[string]types.WalletStats) *Match {
	t.Helper()

	wallets := make([]string, 0, len(stats))
	for w := range stats {
		wallets = append(wallets, w)
	}
	result := buildResult(t, map[string][]string{tokenT1: wallets}, []string{tokenT1})
	agg, ok := result.Get(tokenT1)
	if !ok {
		t.Fatal("missing aggregate")
	}
	for w, s := range stats {
		if !math.IsNaN(s.WinRate) || !math.IsNaN(s.ROI) {
			agg.WalletStats[w] = s
		}
	}
	return &Match{Definition: definition(1), Aggregate: agg}
}

func TestApplyWalletQuality(t *testing.T) {
	good := types.WalletStats{WinRate: 0.95, ROI: 2.5, CoinsTraded: 10}
	bad := types.WalletStats{WinRate: 0.2, ROI: 0.1, CoinsTraded: 3}
	unknown := types.UnknownWalletStats()

	tests := []struct {
		name   string
		rule   string
		stats  map[string]types.WalletStats
		passes bool
	}{
		{"no filter wallets pass implicitly", "", nil, true},
		{"every all good", config.WalletRuleEvery, map[string]types.WalletStats{"0xA": good, "0xB": good}, true},
		{"every one bad rejects", config.WalletRuleEvery, map[string]types.WalletStats{"0xA": good, "0xB": bad}, false},
		{"every unknown passes", config.WalletRuleEvery, map[string]types.WalletStats{"0xA": unknown, "0xB": good}, true},
		{"any one good accepts", config.WalletRuleAny, map[string]types.WalletStats{"0xA": bad, "0xB": good}, true},
		{"any unknown never excludes", config.WalletRuleAny, map[string]types.WalletStats{"0xA": unknown}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := definition(1)
			if tt.rule != "" {
				def.WalletFilter = &config.WalletQualityFilter{
					Rule:       tt.rule,
					MinWinRate: 0.5,
					MinROI:     1.0,
				}
			}
			var m *Match
			if tt.stats == nil {
				m = walletMatch(t, map[string]types.WalletStats{"0xA": good})
			} else {
				m = walletMatch(t, tt.stats)
			}
			m.Definition = def

			kept := ApplyWalletQuality([]*Match{m}, def)
			if got := len(kept) == 1; got != tt.passes {
				t.Errorf("ApplyWalletQuality() kept=%v, want %v", got, tt.passes)
			}
		})
	}
}

func TestApplyWalletQualityNonStrictThreshold(t *testing.T) {
	// Thresholds are >=, not >.
	exact := types.WalletStats{WinRate: 0.5, ROI: 1.0, CoinsTraded: 1}
	m := walletMatch(t, map[string]types.WalletStats{"0xA": exact})
	def := m.Definition
	def.WalletFilter = &config.WalletQualityFilter{
		Rule:       config.WalletRuleEvery,
		MinWinRate: 0.5,
		MinROI:     1.0,
	}

	if kept := ApplyWalletQuality([]*Match{m}, def); len(kept) != 1 {
		t.Error("wallet meeting thresholds exactly must pass")
	}
}
