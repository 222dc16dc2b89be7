// Package presale implements a multi-round token presale as a
// deterministic, serialized command processor: purchases are priced and
// recorded across three configured rounds, every buyer carries a vesting
// schedule, and finalization routes the sale into either claim or refund
// mode depending on whether the soft cap was reached.
//
// The package owns accounting and lifecycle only. Actual value movement,
// signer authentication, and price discovery belong to the host; the
// engine consumes already-authenticated principals, a host-supplied
// clock, and an admin-maintained price table.
package presale

import (
	"fmt"

	"github.com/pflow-xyz/go-presale/vesting"
)

// Round identifies one of the three fixed sale phases.
type Round uint8

const (
	RoundPrivate Round = iota
	RoundPresale1
	RoundPresale2

	NumRounds = 3
)

// String returns the round's wire name.
func (r Round) String() string {
	switch r {
	case RoundPrivate:
		return "private"
	case RoundPresale1:
		return "presale1"
	case RoundPresale2:
		return "presale2"
	}
	return fmt.Sprintf("round(%d)", uint8(r))
}

// ParseRound converts a wire name back into a Round.
func ParseRound(s string) (Round, error) {
	switch s {
	case "private":
		return RoundPrivate, nil
	case "presale1":
		return RoundPresale1, nil
	case "presale2":
		return RoundPresale2, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRound, s)
}

// PaymentMethod enumerates accepted payment assets. Ordinals are part of
// the wire contract and index the price-feed table.
type PaymentMethod uint8

const (
	MethodEth PaymentMethod = iota
	MethodUsdt
	MethodUsdc
	MethodNative

	NumPaymentMethods = 4
)

// String returns the method's wire name.
func (m PaymentMethod) String() string {
	switch m {
	case MethodEth:
		return "eth"
	case MethodUsdt:
		return "usdt"
	case MethodUsdc:
		return "usdc"
	case MethodNative:
		return "native"
	}
	return fmt.Sprintf("method(%d)", uint8(m))
}

// ParsePaymentMethod converts a wire name back into a PaymentMethod.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch s {
	case "eth":
		return MethodEth, nil
	case "usdt":
		return MethodUsdt, nil
	case "usdc":
		return MethodUsdc, nil
	case "native":
		return MethodNative, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, s)
}

// Decimals returns the smallest-unit scale of the payment asset.
func (m PaymentMethod) Decimals() uint32 {
	switch m {
	case MethodEth:
		return 18
	case MethodUsdt, MethodUsdc:
		return 6
	case MethodNative:
		return 9
	}
	return 0
}

// Stable reports whether the asset shares the USD 6-decimal scale and
// passes through to USD without a price feed.
func (m PaymentMethod) Stable() bool {
	return m == MethodUsdt || m == MethodUsdc
}

// RoundConfig is one sale phase's pricing, allocation, window, and
// vesting terms. The three configurations are contract parameters
// written once at initialization.
type RoundConfig struct {
	PriceUSDPerToken  uint64 `json:"priceUsdPerToken"` // USD 6-dec per whole token
	BonusPercent      uint8  `json:"bonusPercent"`     // additive, 0..100
	AllocationTokens  uint64 `json:"allocationTokens"` // token smallest units
	SoldTokens        uint64 `json:"soldTokens"`
	WindowStart       int64  `json:"windowStart"` // unix seconds, inclusive
	WindowEnd         int64  `json:"windowEnd"`   // unix seconds, inclusive
	VestingCliff      int64  `json:"vestingCliff"`
	VestingDuration   int64  `json:"vestingDuration"`
	ImmediatePct      uint8  `json:"immediatePct"`
	RequiresWhitelist bool   `json:"requiresWhitelist"`
}

// BuyerState is one buyer's ledger entry.
type BuyerState struct {
	Owner            string           `json:"owner"`
	TotalInvestedUSD uint64           `json:"totalInvestedUsd"`
	LastPurchaseTime int64            `json:"lastPurchaseTime"`
	PurchaseCount    uint16           `json:"purchaseCount"`
	Whitelisted      bool             `json:"whitelisted"`
	KYCVerified      bool             `json:"kycVerified"`
	Vesting          vesting.Schedule `json:"vesting"`
}

// State is the presale aggregate.
type State struct {
	Authority         string                    `json:"authority"`
	ProjectTokenID    string                    `json:"projectTokenId"`
	SoftCapUSD        uint64                    `json:"softCapUsd"`
	HardCapUSD        uint64                    `json:"hardCapUsd"`
	TotalRaisedUSD    uint64                    `json:"totalRaisedUsd"`
	SoftCapReached    bool                      `json:"softCapReached"`
	Finalized         bool                      `json:"finalized"`
	CurrentRound      Round                     `json:"currentRound"`
	Rounds            [NumRounds]RoundConfig    `json:"rounds"`
	PriceFeeds        [NumPaymentMethods]uint64 `json:"priceFeeds"` // USD 6-dec per whole asset; 0 = unset
	MultisigOwners    [3]string                 `json:"multisigOwners"`
	WithdrawLockUntil int64                     `json:"withdrawLockUntil"`
	Reserves          [NumPaymentMethods]uint64 `json:"reserves"` // inbound value, asset smallest units
}

// Hard limits of the sale contract.
const (
	MaxTransactionUSD = 10_000 * 1_000_000 // $10,000 per purchase
	KYCThresholdUSD   = 5_000 * 1_000_000  // KYC required above $5,000
	RateLimitSeconds  = 300                // min spacing between purchases
	WithdrawLockDelay = 30 * 24 * 60 * 60  // emergency withdraw lock
)

const (
	day       = int64(24 * 60 * 60)
	tokenUnit = uint64(1_000_000_000)
)

// DefaultRounds returns the fixed round table anchored at sale start t0.
func DefaultRounds(t0 int64) [NumRounds]RoundConfig {
	return [NumRounds]RoundConfig{
		RoundPrivate: {
			PriceUSDPerToken:  10_000, // $0.01
			BonusPercent:      20,
			AllocationTokens:  100_000_000 * tokenUnit,
			WindowStart:       t0,
			WindowEnd:         t0 + 30*day,
			VestingCliff:      0,
			VestingDuration:   90 * day,
			ImmediatePct:      25,
			RequiresWhitelist: true,
		},
		RoundPresale1: {
			PriceUSDPerToken: 15_000, // $0.015
			BonusPercent:     10,
			AllocationTokens: 100_000_000 * tokenUnit,
			WindowStart:      t0 + 30*day,
			WindowEnd:        t0 + 60*day,
			VestingCliff:     0,
			VestingDuration:  30 * day,
			ImmediatePct:     50,
		},
		RoundPresale2: {
			PriceUSDPerToken: 20_000, // $0.02
			BonusPercent:     0,
			AllocationTokens: 100_000_000 * tokenUnit,
			WindowStart:      t0 + 60*day,
			WindowEnd:        t0 + 90*day,
			VestingCliff:     0,
			VestingDuration:  0,
			ImmediatePct:     100,
		},
	}
}
