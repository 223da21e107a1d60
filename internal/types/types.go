// Package types provides common type definitions for the stealth-wallet alert system.
package types

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// UTCTimeLayout is the provider's timestamp format. All provider timestamps
// are UTC wall-clock strings; they must round-trip through this layout for
// window ordering to be correct.
const UTCTimeLayout = "2006-01-02 15:04:05"

// ParseUTCTime parses a provider timestamp string as UTC.
func ParseUTCTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(UTCTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid utc timestamp %q: %w", s, err)
	}
	return t, nil
}

// FormatUTCTime renders a time in the provider's timestamp format.
func FormatUTCTime(t time.Time) string {
	return t.UTC().Format(UTCTimeLayout)
}

// IsValidAddress reports whether s is a well-formed hex contract/wallet address.
func IsValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// NormalizeAddress lowercases a hex address into its canonical comparable form.
func NormalizeAddress(s string) string {
	if !common.IsHexAddress(s) {
		return s
	}
	return "0x" + common.Bytes2Hex(common.HexToAddress(s).Bytes())
}

// TransactionRecord is one token purchase event from the upstream provider.
// Records are immutable; they are the unit the aggregator works over.
type TransactionRecord struct {
	Time          string  `json:"time"` // UTCTimeLayout, UTC
	WalletAddress string  `json:"address"`
	TokenSymbol   string  `json:"buy_token_symbol"`
	TokenAddress  string  `json:"buy_token_address"`
	BuyPrice      float64 `json:"buy_price"`
	Value         float64 `json:"txn_value"`
	FundingSource string  `json:"fundingSource,omitempty"`
}

// Timestamp parses the record's time field.
func (t *TransactionRecord) Timestamp() (time.Time, error) {
	return ParseUTCTime(t.Time)
}

// ActivityEntry is one asset transfer from a push webhook delivery.
type ActivityEntry struct {
	FromAddress string      `json:"fromAddress"`
	ToAddress   string      `json:"toAddress"`
	Value       float64     `json:"value"`
	Asset       string      `json:"asset"`
	Hash        string      `json:"hash"`
	BlockNum    string      `json:"blockNum"`
	RawContract RawContract `json:"rawContract"`
}

// RawContract carries the token contract behind an activity entry.
type RawContract struct {
	Address string `json:"address"`
}

// WebhookPayload is the body of an inbound address-activity webhook delivery.
// ID identifies the delivery itself and is the dedup key; the provider may
// retry the same ID multiple times.
type WebhookPayload struct {
	ID    string       `json:"id"`
	Event WebhookEvent `json:"event"`
}

// WebhookEvent wraps the activity list of a webhook delivery.
type WebhookEvent struct {
	Activity []ActivityEntry `json:"activity"`
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
