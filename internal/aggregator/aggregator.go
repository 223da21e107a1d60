// Package aggregator groups purchase transactions into per-token candidate
// alerts within a time window.
package aggregator

import (
	"time"

	"github.com/stealth-alerts/internal/types"
)

// TokenAggregate accumulates the activity for one token within an evaluation
// cycle. It lives for the duration of the cycle only, unless it becomes a
// match and is persisted as part of a delivery record.
type TokenAggregate struct {
	TokenAddress string
	TokenSymbol  string
	Transactions []types.TransactionRecord
	TotalValue   float64

	// Enrichment fields, attached after matching. Unset means unknown.
	TokenName string
	CreatedAt *time.Time
	Honeypot  *types.HoneypotVerdict
	Security  *types.SecurityVerdict

	// WalletStats is keyed by wallet address. Entries appear only for
	// wallets whose stats lookup succeeded.
	WalletStats map[string]types.WalletStats

	wallets     map[string]struct{}
	walletOrder []string
}

func newTokenAggregate(address, symbol string) *TokenAggregate {
	return &TokenAggregate{
		TokenAddress: address,
		TokenSymbol:  symbol,
		WalletStats:  make(map[string]types.WalletStats),
		wallets:      make(map[string]struct{}),
	}
}

// Add records one transaction. A wallet address contributes once to the
// distinct count no matter how many transactions it produced.
func (a *TokenAggregate) Add(txn types.TransactionRecord) {
	a.Transactions = append(a.Transactions, txn)
	a.TotalValue += txn.Value
	if _, seen := a.wallets[txn.WalletAddress]; !seen {
		a.wallets[txn.WalletAddress] = struct{}{}
		a.walletOrder = append(a.walletOrder, txn.WalletAddress)
	}
}

// WalletCount returns the number of distinct buyer addresses.
func (a *TokenAggregate) WalletCount() int {
	return len(a.wallets)
}

// WalletAddresses returns the distinct buyer addresses in first-seen order.
func (a *TokenAggregate) WalletAddresses() []string {
	out := make([]string, len(a.walletOrder))
	copy(out, a.walletOrder)
	return out
}

// Result holds the aggregates of one cycle keyed by token address,
// preserving first-seen token order for stable downstream ranking.
type Result struct {
	aggregates map[string]*TokenAggregate
	order      []string
}

// Get returns the aggregate for a token address, if any.
func (r *Result) Get(address string) (*TokenAggregate, bool) {
	a, ok := r.aggregates[address]
	return a, ok
}

// Len returns the number of aggregated tokens.
func (r *Result) Len() int {
	return len(r.order)
}

// Ordered returns the aggregates in first-seen order.
func (r *Result) Ordered() []*TokenAggregate {
	out := make([]*TokenAggregate, 0, len(r.order))
	for _, addr := range r.order {
		out = append(out, r.aggregates[addr])
	}
	return out
}

// Rebuild constructs an aggregate directly from a stored transaction set.
// Used by the refresh flow, where the original transactions are immutable
// and no window filtering applies.
func Rebuild(address, symbol string, transactions []types.TransactionRecord) *TokenAggregate {
	agg := newTokenAggregate(address, symbol)
	for _, txn := range transactions {
		agg.Add(txn)
	}
	return agg
}

// Aggregate groups transactions into per-token aggregates.
//
// Transactions with a timestamp at or before now-window are discarded.
// Excluded tokens are skipped at ingestion so they never accumulate partial
// state. Transactions with an unparseable timestamp are skipped. An empty
// input yields an empty result, not an error.
func Aggregate(transactions []types.TransactionRecord, window time.Duration, exclusions map[string]struct{}, now time.Time) *Result {
	result := &Result{aggregates: make(map[string]*TokenAggregate)}
	cutoff := now.Add(-window)

	for _, txn := range transactions {
		ts, err := txn.Timestamp()
		if err != nil {
			continue
		}
		if !ts.After(cutoff) {
			continue
		}
		if _, excluded := exclusions[txn.TokenAddress]; excluded {
			continue
		}

		agg, ok := result.aggregates[txn.TokenAddress]
		if !ok {
			agg = newTokenAggregate(txn.TokenAddress, txn.TokenSymbol)
			result.aggregates[txn.TokenAddress] = agg
			result.order = append(result.order, txn.TokenAddress)
		}
		agg.Add(txn)
	}

	return result
}
