package presale_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pflow-xyz/go-presale/presale"
)

const (
	t0         = int64(1_700_000_000)
	day        = int64(24 * 60 * 60)
	usdUnit    = uint64(1_000_000)
	tokenUnit  = uint64(1_000_000_000)
	nativeUnit = uint64(1_000_000_000)

	authority = "auth-1"
)

type recorder struct {
	events []presale.Event
}

func (r *recorder) Emit(evt presale.Event) {
	r.events = append(r.events, evt)
}

func (r *recorder) types() []string {
	out := make([]string, len(r.events))
	for i, evt := range r.events {
		out[i] = evt.Type
	}
	return out
}

func newTestEngine(t *testing.T, softCapUSD, hardCapUSD uint64) (*presale.Engine, *recorder) {
	t.Helper()
	rec := &recorder{}
	e := presale.NewEngine(presale.WithSink(rec))
	owners := [3]string{"owner-a", "owner-b", "owner-c"}
	require.NoError(t, e.Initialize(authority, "HYPE", softCapUSD, hardCapUSD, owners, t0))
	return e, rec
}

func TestHappyPathPrivateBuy(t *testing.T) {
	e, rec := newTestEngine(t, 10_000_000*usdUnit, 100_000_000*usdUnit)

	require.NoError(t, e.SetPrice(presale.MethodNative, 150*usdUnit))
	require.NoError(t, e.SetWhitelist("buyer-w", true))
	rec.events = nil

	require.NoError(t, e.Buy("buyer-w", presale.MethodNative, 10*nativeUnit, t0+60))

	st := e.State()
	assert.Equal(t, 1_500*usdUnit, st.TotalRaisedUSD)
	assert.Equal(t, uint64(180_000)*tokenUnit, st.Rounds[presale.RoundPrivate].SoldTokens)
	assert.Equal(t, 10*nativeUnit, st.Reserves[presale.MethodNative])
	assert.False(t, st.SoftCapReached)

	bs, ok := e.Buyer("buyer-w")
	require.True(t, ok)
	assert.Equal(t, 1_500*usdUnit, bs.TotalInvestedUSD)
	assert.Equal(t, t0+60, bs.LastPurchaseTime)
	assert.Equal(t, uint16(1), bs.PurchaseCount)
	assert.Equal(t, uint64(180_000)*tokenUnit, bs.Vesting.TotalAmount)
	assert.Equal(t, t0+60, bs.Vesting.StartTime)
	assert.Equal(t, 90*day, bs.Vesting.Duration)
	assert.Equal(t, uint8(25), bs.Vesting.ImmediatePct)

	require.Equal(t, []string{presale.EventTokensPurchased}, rec.types())
	data := rec.events[0].Data.(presale.TokensPurchased)
	assert.Equal(t, "buyer-w", data.Buyer)
	assert.Equal(t, uint64(180_000)*tokenUnit, data.Amount)
	assert.Equal(t, uint64(10_000), data.Price)
	assert.Equal(t, presale.MethodNative, data.Method)
	assert.Equal(t, presale.RoundPrivate, data.Round)
	assert.Equal(t, t0+60, data.Timestamp)
}

func TestKYCGateAboveThreshold(t *testing.T) {
	e, _ := newTestEngine(t, 10_000_000*usdUnit, 100_000_000*usdUnit)
	require.NoError(t, e.SetWhitelist("buyer-k", true))

	// $6,000 via USDC crosses the $5,000 KYC threshold.
	err := e.Buy("buyer-k", presale.MethodUsdc, 6_000*usdUnit, t0+60)
	require.ErrorIs(t, err, presale.ErrKYCRequired)

	// The failed attempt must not consume the rate limit.
	require.NoError(t, e.SetKYC("buyer-k", true))
	require.NoError(t, e.Buy("buyer-k", presale.MethodUsdc, 6_000*usdUnit, t0+61))

	bs, _ := e.Buyer("buyer-k")
	assert.Equal(t, 6_000*usdUnit, bs.TotalInvestedUSD)
}

func TestRateLimit(t *testing.T) {
	e, _ := newTestEngine(t, 10_000_000*usdUnit, 100_000_000*usdUnit)
	require.NoError(t, e.SetWhitelist("buyer-r", true))

	require.NoError(t, e.Buy("buyer-r", presale.MethodUsdc, 100*usdUnit, t0+1_000))

	err := e.Buy("buyer-r", presale.MethodUsdc, 100*usdUnit, t0+1_000+299)
	require.ErrorIs(t, err, presale.ErrRateLimitExceeded)

	require.NoError(t, e.Buy("buyer-r", presale.MethodUsdc, 100*usdUnit, t0+1_000+300))

	bs, _ := e.Buyer("buyer-r")
	assert.Equal(t, uint16(2), bs.PurchaseCount)
}

func TestVestingClaimFlow(t *testing.T) {
	// Small soft cap so the sale finalizes into claim mode.
	e, rec := newTestEngine(t, 1_000*usdUnit, 100_000_000*usdUnit)
	require.NoError(t, e.SetWhitelist("buyer-v", true))

	// $2,500 at $0.01 plus 20% bonus = 300,000 tokens vesting from t0.
	require.NoError(t, e.Buy("buyer-v", presale.MethodUsdc, 2_500*usdUnit, t0))
	require.True(t, e.State().SoftCapReached)

	_, err := e.Claim("buyer-v", t0)
	require.ErrorIs(t, err, presale.ErrPresaleNotFinalized)

	require.NoError(t, e.Finalize(t0+45*day))

	// Midway: immediate 25% plus half the 75% tail.
	amt, err := e.Claim("buyer-v", t0+45*day)
	require.NoError(t, err)
	assert.Equal(t, uint64(187_500)*tokenUnit, amt)

	// End of the 90-day duration releases the remainder.
	amt, err = e.Claim("buyer-v", t0+90*day)
	require.NoError(t, err)
	assert.Equal(t, uint64(112_500)*tokenUnit, amt)

	bs, _ := e.Buyer("buyer-v")
	assert.Equal(t, bs.Vesting.TotalAmount, bs.Vesting.ReleasedAmount)

	// Fully released: nothing further to claim.
	_, err = e.Claim("buyer-v", t0+365*day)
	require.ErrorIs(t, err, presale.ErrNoTokensAvailable)

	var claims int
	for _, evt := range rec.events {
		if evt.Type == presale.EventTokensClaimed {
			claims++
		}
	}
	assert.Equal(t, 2, claims)
}

func TestRefundPathWhenSoftCapMissed(t *testing.T) {
	e, rec := newTestEngine(t, 10_000_000*usdUnit, 100_000_000*usdUnit)
	require.NoError(t, e.SetWhitelist("buyer-a", true))
	require.NoError(t, e.SetWhitelist("buyer-b", true))

	require.NoError(t, e.Buy("buyer-a", presale.MethodUsdc, 4_000*usdUnit, t0+10))
	require.NoError(t, e.Buy("buyer-b", presale.MethodUsdc, 3_000*usdUnit, t0+20))

	require.NoError(t, e.Finalize(t0+31*day))
	require.False(t, e.State().SoftCapReached)

	// Claim mode is closed in a failed sale.
	_, err := e.Claim("buyer-a", t0+31*day)
	require.ErrorIs(t, err, presale.ErrNoTokensAvailable)

	amt, err := e.Refund("buyer-a", t0+31*day)
	require.NoError(t, err)
	assert.Equal(t, 4_000*usdUnit, amt)

	bs, _ := e.Buyer("buyer-a")
	assert.Zero(t, bs.TotalInvestedUSD)
	assert.Zero(t, bs.PurchaseCount)

	_, err = e.Refund("buyer-a", t0+31*day)
	require.ErrorIs(t, err, presale.ErrAlreadyRefunded)

	// Refund solvency: issued refunds equal contributions at finalization.
	amt, err = e.Refund("buyer-b", t0+31*day)
	require.NoError(t, err)
	assert.Equal(t, 3_000*usdUnit, amt)

	var refunded uint64
	for _, evt := range rec.events {
		if evt.Type == presale.EventRefundIssued {
			refunded += evt.Data.(presale.RefundIssued).AmountUSD
		}
	}
	assert.Equal(t, 7_000*usdUnit, refunded)
}

func TestRefundClosedOnceSoftCapReached(t *testing.T) {
	e, _ := newTestEngine(t, 1_000*usdUnit, 100_000_000*usdUnit)
	require.NoError(t, e.SetWhitelist("buyer-s", true))
	require.NoError(t, e.Buy("buyer-s", presale.MethodUsdc, 2_000*usdUnit, t0+10))
	require.NoError(t, e.Finalize(t0+20))

	_, err := e.Refund("buyer-s", t0+30)
	require.ErrorIs(t, err, presale.ErrSoftCapReached)
}

func TestHardCapEdge(t *testing.T) {
	e, _ := newTestEngine(t, 1_000*usdUnit, 5_000*usdUnit)
	require.NoError(t, e.SetWhitelist("buyer-a", true))
	require.NoError(t, e.SetWhitelist("buyer-b", true))

	require.NoError(t, e.Buy("buyer-a", presale.MethodUsdc, 4_000*usdUnit, t0+10))

	err := e.Buy("buyer-b", presale.MethodUsdc, 1_001*usdUnit, t0+20)
	require.ErrorIs(t, err, presale.ErrExceedsHardCap)

	// Filling exactly to the cap is allowed.
	require.NoError(t, e.Buy("buyer-b", presale.MethodUsdc, 1_000*usdUnit, t0+20))
	assert.Equal(t, 5_000*usdUnit, e.State().TotalRaisedUSD)
}

func TestSoftCapLatchesExactlyOnce(t *testing.T) {
	e, rec := newTestEngine(t, 5_000*usdUnit, 100_000_000*usdUnit)
	require.NoError(t, e.SetWhitelist("buyer-a", true))
	require.NoError(t, e.SetWhitelist("buyer-b", true))
	rec.events = nil

	require.NoError(t, e.Buy("buyer-a", presale.MethodUsdc, 3_000*usdUnit, t0+10))
	assert.False(t, e.State().SoftCapReached)

	require.NoError(t, e.Buy("buyer-b", presale.MethodUsdc, 2_000*usdUnit, t0+20))
	assert.True(t, e.State().SoftCapReached)

	// The crossing purchase emits SoftCapReached before TokensPurchased.
	require.Equal(t, []string{
		presale.EventTokensPurchased,
		presale.EventSoftCapReached,
		presale.EventTokensPurchased,
	}, rec.types())
	cross := rec.events[1].Data.(presale.SoftCapReached)
	assert.Equal(t, 5_000*usdUnit, cross.AmountUSD)

	// Further purchases never re-emit the latch.
	require.NoError(t, e.Buy("buyer-a", presale.MethodUsdc, 1_000*usdUnit, t0+400))
	for _, evt := range rec.events[3:] {
		assert.NotEqual(t, presale.EventSoftCapReached, evt.Type)
	}
}

func TestWhitelistGateInPrivateRound(t *testing.T) {
	e, _ := newTestEngine(t, 10_000_000*usdUnit, 100_000_000*usdUnit)

	err := e.Buy("buyer-x", presale.MethodUsdc, 100*usdUnit, t0+10)
	require.ErrorIs(t, err, presale.ErrNotWhitelisted)

	// Presale1 does not require whitelisting.
	require.NoError(t, e.SetRound(presale.RoundPresale1, t0+30*day))
	require.NoError(t, e.Buy("buyer-x", presale.MethodUsdc, 100*usdUnit, t0+30*day))
}

func TestRoundWindows(t *testing.T) {
	e, _ := newTestEngine(t, 10_000_000*usdUnit, 100_000_000*usdUnit)
	require.NoError(t, e.SetWhitelist("buyer-w", true))

	err := e.Buy("buyer-w", presale.MethodUsdc, 100*usdUnit, t0-1)
	require.ErrorIs(t, err, presale.ErrRoundNotStarted)

	err = e.Buy("buyer-w", presale.MethodUsdc, 100*usdUnit, t0+30*day+1)
	require.ErrorIs(t, err, presale.ErrRoundEnded)

	// Window bounds are inclusive.
	require.NoError(t, e.Buy("buyer-w", presale.MethodUsdc, 100*usdUnit, t0+30*day))
}

func TestRoundAllocationEnforced(t *testing.T) {
	e, _ := newTestEngine(t, 10_000_000*usdUnit, ^uint64(0))
	require.NoError(t, e.SetWhitelist("whale", true))
	require.NoError(t, e.SetKYC("whale", true))

	// Private allocation is 100M tokens; $10,000 at $0.01 +20% yields
	// 1.2M tokens per purchase, so 83 purchases fit and the 84th would
	// push SoldTokens past the allocation.
	now := t0
	for i := 0; i < 83; i++ {
		require.NoError(t, e.Buy("whale", presale.MethodUsdc, 10_000*usdUnit, now))
		now += 300
	}

	err := e.Buy("whale", presale.MethodUsdc, 10_000*usdUnit, now)
	require.ErrorIs(t, err, presale.ErrExceedsRoundAllocation)

	st := e.State()
	assert.Equal(t, uint64(83)*1_200_000*tokenUnit, st.Rounds[presale.RoundPrivate].SoldTokens)

	// A smaller purchase that still fits is accepted.
	require.NoError(t, e.Buy("whale", presale.MethodUsdc, 100*usdUnit, now))
}

func TestPriceFeedRequiredForNative(t *testing.T) {
	e, _ := newTestEngine(t, 10_000_000*usdUnit, 100_000_000*usdUnit)
	require.NoError(t, e.SetWhitelist("buyer-n", true))

	err := e.Buy("buyer-n", presale.MethodNative, nativeUnit, t0+10)
	require.ErrorIs(t, err, presale.ErrPriceFeedNotSet)
}

func TestPerTransactionCap(t *testing.T) {
	e, _ := newTestEngine(t, 10_000_000*usdUnit, 100_000_000*usdUnit)
	require.NoError(t, e.SetWhitelist("buyer-c", true))
	require.NoError(t, e.SetKYC("buyer-c", true))

	err := e.Buy("buyer-c", presale.MethodUsdc, 10_001*usdUnit, t0+10)
	require.ErrorIs(t, err, presale.ErrExceedsMaxTransaction)

	require.NoError(t, e.Buy("buyer-c", presale.MethodUsdc, 10_000*usdUnit, t0+10))
}

func TestFinalizeLatch(t *testing.T) {
	e, _ := newTestEngine(t, 10_000_000*usdUnit, 100_000_000*usdUnit)
	require.NoError(t, e.SetWhitelist("buyer-f", true))

	require.NoError(t, e.Finalize(t0+100))
	require.ErrorIs(t, e.Finalize(t0+200), presale.ErrAlreadyFinalized)

	err := e.Buy("buyer-f", presale.MethodUsdc, 100*usdUnit, t0+300)
	require.ErrorIs(t, err, presale.ErrPresaleFinalized)

	require.ErrorIs(t, e.SetRound(presale.RoundPresale1, t0+300), presale.ErrPresaleFinalized)
}

func TestEmergencyWithdrawTimeLock(t *testing.T) {
	e, rec := newTestEngine(t, 1_000*usdUnit, 100_000_000*usdUnit)
	require.NoError(t, e.SetPrice(presale.MethodNative, 100*usdUnit))
	require.NoError(t, e.SetWhitelist("buyer-e", true))
	require.NoError(t, e.Buy("buyer-e", presale.MethodNative, 5*nativeUnit, t0+10))

	err := e.EmergencyWithdraw(nativeUnit, t0+29*day)
	require.ErrorIs(t, err, presale.ErrTimeLockActive)

	err = e.EmergencyWithdraw(6*nativeUnit, t0+30*day)
	require.ErrorIs(t, err, presale.ErrInsufficientReserve)

	rec.events = nil
	require.NoError(t, e.EmergencyWithdraw(2*nativeUnit, t0+30*day))
	assert.Equal(t, 3*nativeUnit, e.State().Reserves[presale.MethodNative])

	require.Equal(t, []string{presale.EventEmergencyWithdraw}, rec.types())
	data := rec.events[0].Data.(presale.EmergencyWithdraw)
	assert.Equal(t, authority, data.Owner)
	assert.Equal(t, 2*nativeUnit, data.Amount)
}

func TestFailedCommandMutatesNothing(t *testing.T) {
	e, rec := newTestEngine(t, 10_000_000*usdUnit, 100_000_000*usdUnit)
	before := e.State()
	rec.events = nil

	err := e.Buy("stranger", presale.MethodUsdc, 100*usdUnit, t0+10)
	require.ErrorIs(t, err, presale.ErrNotWhitelisted)

	assert.Equal(t, before, e.State())
	assert.Empty(t, rec.events)
	_, ok := e.Buyer("stranger")
	assert.False(t, ok, "failed purchase must not materialize a ledger entry")
}

func TestUninitializedEngineRejectsEverything(t *testing.T) {
	e := presale.NewEngine()

	require.ErrorIs(t, e.Buy("b", presale.MethodUsdc, 1, t0), presale.ErrNotInitialized)
	require.ErrorIs(t, e.Finalize(t0), presale.ErrNotInitialized)
	_, err := e.Claim("b", t0)
	require.ErrorIs(t, err, presale.ErrNotInitialized)
	require.ErrorIs(t, e.SetWhitelist("b", true), presale.ErrNotInitialized)
}

func TestDoubleInitializeRejected(t *testing.T) {
	e, _ := newTestEngine(t, 1_000*usdUnit, 2_000*usdUnit)
	err := e.Initialize(authority, "HYPE", 1, 2, [3]string{}, t0)
	require.ErrorIs(t, err, presale.ErrAlreadyInitialized)
}

func TestInitializeValidatesCaps(t *testing.T) {
	e := presale.NewEngine()
	err := e.Initialize(authority, "HYPE", 2_000*usdUnit, 1_000*usdUnit, [3]string{}, t0)
	require.ErrorIs(t, err, presale.ErrInvalidConfig)
}
