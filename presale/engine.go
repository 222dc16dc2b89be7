package presale

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pflow-xyz/go-presale/fixedpoint"
	"github.com/pflow-xyz/go-presale/vesting"
)

// Engine is the serialized command processor over one presale aggregate
// and its buyer ledger. Commands execute to completion one at a time;
// every precondition is validated before any state mutates, so a failed
// command leaves no trace and emits no events.
type Engine struct {
	mu     sync.Mutex
	state  State
	buyers map[string]*BuyerState
	sink   Sink
	log    logrus.FieldLogger
	ready  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink sets the event sink. The default discards events.
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithLogger sets the structured logger. The default discards output.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = log }
}

// NewEngine creates an empty, uninitialized engine.
func NewEngine(opts ...Option) *Engine {
	silent := logrus.New()
	silent.SetOutput(io.Discard)

	e := &Engine{
		buyers: make(map[string]*BuyerState),
		sink:   NopSink{},
		log:    silent,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetSink replaces the event sink. Used after a journal replay to attach
// the live sink once historical state is rebuilt.
func (e *Engine) SetSink(s Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s == nil {
		s = NopSink{}
	}
	e.sink = s
}

func (e *Engine) emit(evt Event) {
	e.sink.Emit(evt)
}

// Initialize writes the presale aggregate: caps, the fixed round table
// anchored at now, and the 30-day emergency-withdraw lock.
func (e *Engine) Initialize(authority, projectTokenID string, softCapUSD, hardCapUSD uint64, multisigOwners [3]string, now int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ready {
		return ErrAlreadyInitialized
	}
	if authority == "" {
		return fmt.Errorf("%w: empty authority", ErrInvalidConfig)
	}
	if softCapUSD > hardCapUSD {
		return fmt.Errorf("%w: soft cap %d above hard cap %d", ErrInvalidConfig, softCapUSD, hardCapUSD)
	}

	e.state = State{
		Authority:         authority,
		ProjectTokenID:    projectTokenID,
		SoftCapUSD:        softCapUSD,
		HardCapUSD:        hardCapUSD,
		CurrentRound:      RoundPrivate,
		Rounds:            DefaultRounds(now),
		MultisigOwners:    multisigOwners,
		WithdrawLockUntil: now + WithdrawLockDelay,
	}
	e.ready = true

	e.log.WithFields(logrus.Fields{
		"authority": authority,
		"softCap":   softCapUSD,
		"hardCap":   hardCapUSD,
	}).Info("presale initialized")
	return nil
}

// toUSD converts a payment amount to 6-decimal USD. Stablecoins pass
// through at their shared scale; other assets need a nonzero feed.
func (e *Engine) toUSD(method PaymentMethod, amount uint64) (uint64, error) {
	if method.Stable() {
		return amount, nil
	}
	price := e.state.PriceFeeds[method]
	if price == 0 {
		return 0, fmt.Errorf("%w: %s", ErrPriceFeedNotSet, method)
	}
	return fixedpoint.ToUSD(amount, price, method.Decimals())
}

// tokenAmount prices a USD contribution in token units for a round,
// including the round's additive bonus.
func tokenAmount(usd uint64, r *RoundConfig) (uint64, error) {
	base, err := fixedpoint.TokensForUSD(usd, r.PriceUSDPerToken)
	if err != nil {
		return 0, err
	}
	bonus, err := fixedpoint.Percent(base, r.BonusPercent)
	if err != nil {
		return 0, err
	}
	return fixedpoint.Add(base, bonus)
}

// Buy executes one purchase end to end: window, compliance, rate limit,
// pricing, allocation and cap checks, then atomic bookkeeping and event
// emission. The host has already moved the inbound value; the engine
// records it against the method's reserve.
func (e *Engine) Buy(buyer string, method PaymentMethod, amount uint64, now int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return ErrNotInitialized
	}
	if e.state.Finalized {
		return ErrPresaleFinalized
	}
	if method >= NumPaymentMethods {
		return fmt.Errorf("%w: %d", ErrUnknownPaymentMethod, method)
	}

	r := &e.state.Rounds[e.state.CurrentRound]
	if now < r.WindowStart {
		return ErrRoundNotStarted
	}
	if now > r.WindowEnd {
		return ErrRoundEnded
	}

	// Ledger reads see the zero value for an unknown buyer; the entry is
	// only materialized once every check has passed.
	var snap BuyerState
	if bs, ok := e.buyers[buyer]; ok {
		snap = *bs
	}

	if r.RequiresWhitelist && !snap.Whitelisted {
		return ErrNotWhitelisted
	}
	if now < snap.LastPurchaseTime+RateLimitSeconds {
		return ErrRateLimitExceeded
	}

	usd, err := e.toUSD(method, amount)
	if err != nil {
		return err
	}
	if usd > MaxTransactionUSD {
		return ErrExceedsMaxTransaction
	}
	if usd > KYCThresholdUSD && !snap.KYCVerified {
		return ErrKYCRequired
	}

	tokens, err := tokenAmount(usd, r)
	if err != nil {
		return err
	}

	newSold, err := fixedpoint.Add(r.SoldTokens, tokens)
	if err != nil {
		return err
	}
	if newSold > r.AllocationTokens {
		return ErrExceedsRoundAllocation
	}

	newRaised, err := fixedpoint.Add(e.state.TotalRaisedUSD, usd)
	if err != nil {
		return err
	}
	if newRaised > e.state.HardCapUSD {
		return ErrExceedsHardCap
	}

	newInvested, err := fixedpoint.Add(snap.TotalInvestedUSD, usd)
	if err != nil {
		return err
	}
	newReserve, err := fixedpoint.Add(e.state.Reserves[method], amount)
	if err != nil {
		return err
	}
	if snap.PurchaseCount == math.MaxUint16 {
		return fmt.Errorf("%w: purchase count", ErrOverflow)
	}
	newVestTotal := tokens
	if snap.Vesting.TotalAmount != 0 {
		if newVestTotal, err = fixedpoint.Add(snap.Vesting.TotalAmount, tokens); err != nil {
			return err
		}
	}

	// All checks passed; commit atomically.
	bs := e.buyer(buyer)
	r.SoldTokens = newSold
	e.state.TotalRaisedUSD = newRaised
	e.state.Reserves[method] = newReserve
	bs.TotalInvestedUSD = newInvested
	bs.LastPurchaseTime = now
	bs.PurchaseCount = snap.PurchaseCount + 1
	if snap.Vesting.TotalAmount == 0 {
		// First purchase fixes the vesting clock and terms; later
		// purchases only grow the total.
		bs.Vesting = vesting.Schedule{
			TotalAmount:  tokens,
			StartTime:    now,
			Cliff:        r.VestingCliff,
			Duration:     r.VestingDuration,
			ImmediatePct: r.ImmediatePct,
		}
	} else {
		bs.Vesting.TotalAmount = newVestTotal
	}

	if !e.state.SoftCapReached && newRaised >= e.state.SoftCapUSD {
		e.state.SoftCapReached = true
		e.emit(Event{Type: EventSoftCapReached, Data: SoftCapReached{
			AmountUSD: newRaised,
			Timestamp: now,
		}})
	}

	e.emit(Event{Type: EventTokensPurchased, Data: TokensPurchased{
		Buyer:     buyer,
		Amount:    tokens,
		Price:     r.PriceUSDPerToken,
		Method:    method,
		Round:     e.state.CurrentRound,
		Timestamp: now,
	}})

	e.log.WithFields(logrus.Fields{
		"buyer":  buyer,
		"method": method.String(),
		"usd":    usd,
		"tokens": tokens,
		"round":  e.state.CurrentRound.String(),
	}).Info("purchase recorded")
	return nil
}

// Claim releases the buyer's currently claimable vested tokens. Only
// available after finalization in claim mode (soft cap reached).
func (e *Engine) Claim(buyer string, now int64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return 0, ErrNotInitialized
	}
	if !e.state.Finalized {
		return 0, ErrPresaleNotFinalized
	}
	if !e.state.SoftCapReached {
		// Refund mode; there is nothing to claim.
		return 0, ErrNoTokensAvailable
	}

	bs, ok := e.buyers[buyer]
	if !ok {
		return 0, ErrNoTokensAvailable
	}
	claimable, err := vesting.Claimable(bs.Vesting, now)
	if err != nil {
		return 0, err
	}
	if claimable == 0 {
		return 0, ErrNoTokensAvailable
	}

	newReleased, err := fixedpoint.Add(bs.Vesting.ReleasedAmount, claimable)
	if err != nil {
		return 0, err
	}
	bs.Vesting.ReleasedAmount = newReleased

	e.emit(Event{Type: EventTokensClaimed, Data: TokensClaimed{
		Buyer:     buyer,
		Amount:    claimable,
		Timestamp: now,
	}})

	e.log.WithFields(logrus.Fields{"buyer": buyer, "amount": claimable}).Info("tokens claimed")
	return claimable, nil
}

// Refund returns the buyer's recorded USD contribution after a failed
// sale. The refund is denominated in 6-decimal USD; the host converts
// to its own payout unit.
func (e *Engine) Refund(buyer string, now int64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return 0, ErrNotInitialized
	}
	if !e.state.Finalized {
		return 0, ErrPresaleNotFinalized
	}
	if e.state.SoftCapReached {
		return 0, ErrSoftCapReached
	}

	bs, ok := e.buyers[buyer]
	if !ok || bs.TotalInvestedUSD == 0 {
		return 0, ErrAlreadyRefunded
	}

	amount := bs.TotalInvestedUSD
	bs.TotalInvestedUSD = 0
	bs.PurchaseCount = 0

	e.emit(Event{Type: EventRefundIssued, Data: RefundIssued{
		Buyer:     buyer,
		AmountUSD: amount,
		Timestamp: now,
	}})

	e.log.WithFields(logrus.Fields{"buyer": buyer, "amountUsd": amount}).Info("refund issued")
	return amount, nil
}

// SetWhitelist sets a buyer's whitelist flag, materializing the ledger
// entry if needed so buyers can be whitelisted before their first buy.
func (e *Engine) SetWhitelist(buyer string, status bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return ErrNotInitialized
	}
	e.buyer(buyer).Whitelisted = status
	e.emit(Event{Type: EventWhitelistUpdated, Data: WhitelistUpdated{Buyer: buyer, Status: status}})
	return nil
}

// SetKYC sets a buyer's KYC flag.
func (e *Engine) SetKYC(buyer string, status bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return ErrNotInitialized
	}
	e.buyer(buyer).KYCVerified = status
	e.emit(Event{Type: EventKycVerified, Data: KycVerified{Buyer: buyer, Status: status}})
	return nil
}

// SetPrice updates the USD price of one payment asset. Prices are
// authoritative at operation time; zero means unset.
func (e *Engine) SetPrice(method PaymentMethod, price uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return ErrNotInitialized
	}
	if method >= NumPaymentMethods {
		return fmt.Errorf("%w: %d", ErrUnknownPaymentMethod, method)
	}
	e.state.PriceFeeds[method] = price
	e.emit(Event{Type: EventPriceFeedUpdated, Data: PriceFeedUpdated{Method: method, Price: price}})
	return nil
}

// SetRound selects the current round. Rounds never advance on their own;
// the authority pushes the sale forward explicitly.
func (e *Engine) SetRound(round Round, now int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return ErrNotInitialized
	}
	if e.state.Finalized {
		return ErrPresaleFinalized
	}
	if round >= NumRounds {
		return fmt.Errorf("%w: %d", ErrUnknownRound, round)
	}
	e.state.CurrentRound = round
	e.emit(Event{Type: EventRoundAdvanced, Data: RoundAdvanced{Round: round, Timestamp: now}})
	return nil
}

// Finalize latches the sale closed. The value of SoftCapReached at this
// moment decides claim mode versus refund mode, permanently.
func (e *Engine) Finalize(now int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return ErrNotInitialized
	}
	if e.state.Finalized {
		return ErrAlreadyFinalized
	}
	e.state.Finalized = true

	e.emit(Event{Type: EventPresaleFinalized, Data: PresaleFinalized{
		TotalRaisedUSD: e.state.TotalRaisedUSD,
		Timestamp:      now,
	}})

	e.log.WithFields(logrus.Fields{
		"totalRaisedUsd": e.state.TotalRaisedUSD,
		"softCapReached": e.state.SoftCapReached,
	}).Info("presale finalized")
	return nil
}

// EmergencyWithdraw drains part of the native reserve to the authority,
// refused before the 30-day lock expires.
func (e *Engine) EmergencyWithdraw(amount uint64, now int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return ErrNotInitialized
	}
	if now < e.state.WithdrawLockUntil {
		return ErrTimeLockActive
	}
	newReserve, err := fixedpoint.Sub(e.state.Reserves[MethodNative], amount)
	if err != nil {
		return fmt.Errorf("%w: native reserve %d below %d", ErrInsufficientReserve, e.state.Reserves[MethodNative], amount)
	}
	e.state.Reserves[MethodNative] = newReserve

	e.emit(Event{Type: EventEmergencyWithdraw, Data: EmergencyWithdraw{
		Owner:     e.state.Authority,
		Amount:    amount,
		Timestamp: now,
	}})
	return nil
}

// buyer returns the ledger entry for a principal, materializing a zero
// record on first touch. Callers hold e.mu.
func (e *Engine) buyer(id string) *BuyerState {
	bs, ok := e.buyers[id]
	if !ok {
		bs = &BuyerState{Owner: id}
		e.buyers[id] = bs
	}
	return bs
}

// Initialized reports whether the aggregate has been written.
func (e *Engine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// State returns a copy of the presale aggregate.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Buyer returns a copy of one ledger entry.
func (e *Engine) Buyer(id string) (BuyerState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	bs, ok := e.buyers[id]
	if !ok {
		return BuyerState{}, false
	}
	return *bs, true
}

// Buyers returns copies of all ledger entries, ordered by owner.
func (e *Engine) Buyers() []BuyerState {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]BuyerState, 0, len(e.buyers))
	for _, bs := range e.buyers {
		out = append(out, *bs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out
}

// Claimable reports what the buyer could claim at time now without
// mutating anything.
func (e *Engine) Claimable(buyer string, now int64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	bs, ok := e.buyers[buyer]
	if !ok {
		return 0, nil
	}
	return vesting.Claimable(bs.Vesting, now)
}
