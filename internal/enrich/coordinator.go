// Package enrich decorates matched token clusters with metadata from
// third-party sources. Every lookup is best-effort: a failed source leaves
// its field unknown and never blocks an alert.
package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/stealth-alerts/internal/aggregator"
	"github.com/stealth-alerts/internal/config"
	"github.com/stealth-alerts/internal/logging"
	"github.com/stealth-alerts/internal/rules"
	"github.com/stealth-alerts/internal/types"
)

// maxWalletStats caps per-wallet lookups to the wallets that can appear in
// the rendered table.
const maxWalletStats = 20

type creationSource interface {
	ContractCreationTx(ctx context.Context, contractAddress string) (string, error)
}

type chainSource interface {
	TransactionTime(ctx context.Context, txHash string) (time.Time, error)
	TokenInfo(ctx context.Context, contractAddress string) (name, symbol string, err error)
}

type honeypotSource interface {
	Check(ctx context.Context, tokenAddress string) (*types.HoneypotVerdict, error)
}

type securitySource interface {
	TokenSecurity(ctx context.Context, tokenAddress string) (*types.SecurityVerdict, error)
}

type statsSource interface {
	WalletPerformance(ctx context.Context, token, address string) (types.WalletStats, error)
}

// Coordinator fans out enrichment lookups for matched tokens. Any source may
// be nil, in which case its field stays unknown.
type Coordinator struct {
	creation creationSource
	chain    chainSource
	honeypot honeypotSource
	security securitySource
	stats    statsSource
	logger   *logging.Logger
}

// NewCoordinator creates an enrichment coordinator.
func NewCoordinator(creation creationSource, chain chainSource, honeypot honeypotSource, security securitySource, stats statsSource, logger *logging.Logger) *Coordinator {
	return &Coordinator{
		creation: creation,
		chain:    chain,
		honeypot: honeypot,
		security: security,
		stats:    stats,
		logger:   logger.WithField("component", "enrich"),
	}
}

// Enrich attaches metadata to every match in place. authToken is the provider
// session token used for wallet performance lookups.
func (c *Coordinator) Enrich(ctx context.Context, authToken string, matches []*rules.Match) {
	var wg sync.WaitGroup
	for _, match := range matches {
		wg.Add(1)
		go func(m *rules.Match) {
			defer wg.Done()
			c.enrichMatch(ctx, authToken, m)
		}(match)
	}
	wg.Wait()
}

func (c *Coordinator) enrichMatch(ctx context.Context, authToken string, match *rules.Match) {
	agg := match.Aggregate
	logger := c.logger.WithField("token", agg.TokenAddress)

	var wg sync.WaitGroup

	if c.creation != nil && c.chain != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			txHash, err := c.creation.ContractCreationTx(ctx, agg.TokenAddress)
			if err != nil {
				logger.WithError(err).Warn("Contract creation lookup failed")
				return
			}
			createdAt, err := c.chain.TransactionTime(ctx, txHash)
			if err != nil {
				logger.WithError(err).Warn("Creation timestamp lookup failed")
				return
			}
			agg.CreatedAt = &createdAt
		}()
	}

	if c.chain != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name, symbol, err := c.chain.TokenInfo(ctx, agg.TokenAddress)
			if err != nil {
				logger.WithError(err).Warn("Token info lookup failed")
				return
			}
			agg.TokenName = name
			if agg.TokenSymbol == "" {
				agg.TokenSymbol = symbol
			}
		}()
	}

	if c.honeypot != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			verdict, err := c.honeypot.Check(ctx, agg.TokenAddress)
			if err != nil {
				logger.WithError(err).Warn("Honeypot check failed")
				return
			}
			agg.Honeypot = verdict
		}()
	}

	if c.security != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			verdict, err := c.security.TokenSecurity(ctx, agg.TokenAddress)
			if err != nil {
				logger.WithError(err).Warn("Token security lookup failed")
				return
			}
			agg.Security = verdict
		}()
	}

	if c.stats != nil && NeedsWalletStats(match.Definition) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.enrichWalletStats(ctx, authToken, agg, logger)
		}()
	}

	wg.Wait()
}

// NeedsWalletStats reports whether a definition requires per-wallet stats,
// either for display or for its quality filter.
func NeedsWalletStats(def *config.AlertDefinition) bool {
	return def.ShowWalletStats || def.WalletFilter != nil
}

func (c *Coordinator) enrichWalletStats(ctx context.Context, authToken string, agg *aggregator.TokenAggregate, logger *logging.Logger) {
	wallets := agg.WalletAddresses()
	if len(wallets) > maxWalletStats {
		wallets = wallets[:maxWalletStats]
	}

	stats := make(map[string]types.WalletStats, len(wallets))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, wallet := range wallets {
		wg.Add(1)
		go func(wallet string) {
			defer wg.Done()
			s, err := c.stats.WalletPerformance(ctx, authToken, wallet)
			if err != nil {
				logger.WithError(err).WithField("wallet", wallet).Debug("Wallet stats lookup failed")
				return
			}
			mu.Lock()
			stats[wallet] = s
			mu.Unlock()
		}(wallet)
	}
	wg.Wait()

	agg.WalletStats = stats
}
