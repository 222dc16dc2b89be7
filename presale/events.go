package presale

// Event type names as they appear on the wire.
const (
	EventTokensPurchased   = "TokensPurchased"
	EventTokensClaimed     = "TokensClaimed"
	EventRefundIssued      = "RefundIssued"
	EventSoftCapReached    = "SoftCapReached"
	EventPresaleFinalized  = "PresaleFinalized"
	EventWhitelistUpdated  = "WhitelistUpdated"
	EventKycVerified       = "KycVerified"
	EventEmergencyWithdraw = "EmergencyWithdraw"
	EventPriceFeedUpdated  = "PriceFeedUpdated"
	EventRoundAdvanced     = "RoundAdvanced"
)

// Event is one state transition notification. Data holds the typed
// payload for the event's Type.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Sink receives events from the engine. Emission is fire-and-forget:
// the engine never inspects delivery and a sink must not call back into
// the engine.
type Sink interface {
	Emit(evt Event)
}

// NopSink discards everything. It is the engine default and the sink
// used while replaying a journal.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(Event) {}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Emit implements Sink.
func (f SinkFunc) Emit(evt Event) { f(evt) }

// TokensPurchased reports a successful purchase.
type TokensPurchased struct {
	Buyer     string        `json:"buyer"`
	Amount    uint64        `json:"amount"` // token smallest units
	Price     uint64        `json:"price"`  // round price, USD 6-dec per token
	Method    PaymentMethod `json:"paymentMethod"`
	Round     Round         `json:"round"`
	Timestamp int64         `json:"timestamp"`
}

// TokensClaimed reports a vesting release.
type TokensClaimed struct {
	Buyer     string `json:"buyer"`
	Amount    uint64 `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

// RefundIssued reports a post-failure refund. The amount is the buyer's
// recorded USD contribution; the host chooses the payout denomination.
type RefundIssued struct {
	Buyer     string `json:"buyer"`
	AmountUSD uint64 `json:"amountUsd"`
	Timestamp int64  `json:"timestamp"`
}

// SoftCapReached latches exactly once, on the purchase that crosses the
// soft cap.
type SoftCapReached struct {
	AmountUSD uint64 `json:"amountUsd"` // total raised at the crossing
	Timestamp int64  `json:"timestamp"`
}

// PresaleFinalized reports the admin finalize.
type PresaleFinalized struct {
	TotalRaisedUSD uint64 `json:"totalRaisedUsd"`
	Timestamp      int64  `json:"timestamp"`
}

// WhitelistUpdated reports an admin whitelist change.
type WhitelistUpdated struct {
	Buyer  string `json:"buyer"`
	Status bool   `json:"status"`
}

// KycVerified reports an admin KYC flag change.
type KycVerified struct {
	Buyer  string `json:"buyer"`
	Status bool   `json:"status"`
}

// EmergencyWithdraw reports an admin drain of the native reserve.
type EmergencyWithdraw struct {
	Owner     string `json:"owner"`
	Amount    uint64 `json:"amount"` // native smallest units
	Timestamp int64  `json:"timestamp"`
}

// PriceFeedUpdated reports an admin price update.
type PriceFeedUpdated struct {
	Method PaymentMethod `json:"method"`
	Price  uint64        `json:"price"` // USD 6-dec per whole asset
}

// RoundAdvanced reports an admin change of the current round.
type RoundAdvanced struct {
	Round     Round `json:"round"`
	Timestamp int64 `json:"timestamp"`
}
