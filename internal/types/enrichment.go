package types

import "math"

// HoneypotVerdict is the third-party sell-prevention risk assessment for a
// token contract.
type HoneypotVerdict struct {
	IsHoneypot  bool    `json:"isHoneypot"`
	BuyTax      float64 `json:"buyTax"`
	SellTax     float64 `json:"sellTax"`
	TransferTax float64 `json:"transferTax"`
	OpenSource  bool    `json:"openSource"`
}

// SecurityVerdict is the ownership/security assessment for a token contract.
type SecurityVerdict struct {
	IsOpenSource         bool `json:"isOpenSource"`
	HiddenOwner          bool `json:"hiddenOwner"`
	CanTakeBackOwnership bool `json:"canTakeBackOwnership"`
	IsMintable           bool `json:"isMintable"`
	IsBlacklisted        bool `json:"isBlacklisted"`
}

// WalletStats holds per-wallet trading performance. Unknown values are NaN;
// unknown never disqualifies a wallet.
type WalletStats struct {
	WinRate     float64 `json:"winRate"`
	ROI         float64 `json:"roi"`
	CoinsTraded float64 `json:"coinsTraded"`
}

// UnknownWalletStats returns stats with every value unknown.
func UnknownWalletStats() WalletStats {
	return WalletStats{
		WinRate:     math.NaN(),
		ROI:         math.NaN(),
		CoinsTraded: math.NaN(),
	}
}
