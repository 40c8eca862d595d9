package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outcomelabs/marketd/internal/domain"
)

func TestRedeemProportional(t *testing.T) {
	env := newTestEnv(t, testParams())
	ctx := context.Background()
	m := env.newFundedMarket(t, 0, "a", "b", "c")

	// Build a 50% ratio: vault 30000 backing 60000 winning-side shares.
	_, err := env.engine.MintCompleteSet(ctx, m.ID, "a", 20_000)
	require.NoError(t, err)
	_, err = env.engine.MintCompleteSet(ctx, m.ID, "b", 10_000)
	require.NoError(t, err)
	env.setMarket(t, m.ID, func(m *domain.Market) {
		// Inflate winning-side circulating to model fee over-issuance.
		m.YesCirculating = 60_000
	})
	env.setBalance(t, m.ID, "a", domain.SideYes, 20_000)
	env.setBalance(t, m.ID, "b", domain.SideYes, 10_000)
	env.setBalance(t, m.ID, "c", domain.SideYes, 30_000)

	_, err = env.engine.Resolve(ctx, m.ID, 600, 1000)
	require.NoError(t, err)

	info, err := env.engine.GetRedemptionInfo(ctx, m.ID)
	require.NoError(t, err)
	require.InDelta(t, 0.5, info.Ratio, 1e-9)

	res, err := env.engine.Redeem(ctx, m.ID, "a")
	require.NoError(t, err)
	require.Equal(t, uint64(10_000), res.Payout, "20000 shares at 50%")
	require.Equal(t, uint64(20_000), res.SharesBurned)

	// The ratio is invariant across sequential redemptions: vault and
	// circulating shrank in the same proportion, so b sees the same 50%.
	info, err = env.engine.GetRedemptionInfo(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(20_000), info.Vault)
	require.Equal(t, uint64(40_000), info.TotalShares)
	require.InDelta(t, 0.5, info.Ratio, 1e-9)

	res, err = env.engine.Redeem(ctx, m.ID, "b")
	require.NoError(t, err)
	require.Equal(t, uint64(5_000), res.Payout)
}

func TestRedeemErrors(t *testing.T) {
	env := newTestEnv(t, testParams())
	ctx := context.Background()
	m := env.newFundedMarket(t, 0, "a")

	_, err := env.engine.MintCompleteSet(ctx, m.ID, "a", 1_000)
	require.NoError(t, err)

	_, err = env.engine.Redeem(ctx, m.ID, "a")
	require.ErrorIs(t, err, domain.ErrState, "redeem before resolution")

	_, err = env.engine.Resolve(ctx, m.ID, 600, 1000)
	require.NoError(t, err)

	_, err = env.engine.Redeem(ctx, m.ID, "nobody")
	require.ErrorIs(t, err, domain.ErrNothingToRedeem)

	_, err = env.engine.Redeem(ctx, 404, "a")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

// After swaps that favor one side, combined circulating supply can exceed
// twice the vault. Redemption must still never pay out more than the vault
// holds in total.
func TestOverIssuanceConservation(t *testing.T) {
	env := newTestEnv(t, testParams())
	ctx := context.Background()
	m := env.newFundedMarket(t, 200, "a", "b") // 2% fee

	_, err := env.engine.MintCompleteSet(ctx, m.ID, "a", 50_000)
	require.NoError(t, err)
	_, err = env.engine.MintCompleteSet(ctx, m.ID, "b", 50_000)
	require.NoError(t, err)

	// Everyone dumps NO for YES, inflating YES circulating via swap
	// output and NO circulating via fee mints.
	for range 5 {
		_, err = env.engine.Swap(ctx, m.ID, "a", domain.SideNo, 10_000)
		require.NoError(t, err)
		_, err = env.engine.Swap(ctx, m.ID, "b", domain.SideNo, 10_000)
		require.NoError(t, err)
	}
	env.checkInvariants(t, m.ID, "a", "b", "treasury")

	updated, err := env.engine.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	require.Greater(t, updated.YesCirculating+updated.NoCirculating, 2*updated.Vault,
		"swaps must be able to over-issue")

	_, err = env.engine.Resolve(ctx, m.ID, 600, 1000)
	require.NoError(t, err)

	vault := updated.Vault
	var paid uint64
	for _, acct := range []string{"a", "b", "treasury"} {
		res, err := env.engine.Redeem(ctx, m.ID, acct)
		if err != nil {
			require.ErrorIs(t, err, domain.ErrNothingToRedeem)
			continue
		}
		paid += res.Payout
	}
	require.LessOrEqual(t, paid, vault, "total payouts may never exceed the vault")
}

func TestCancelWindow(t *testing.T) {
	// Cancellation opens at resolution_height + window + timeout =
	// 1000 + 2 + 100 = 1102.
	env := newTestEnv(t, testParams())
	ctx := context.Background()

	m := env.newFundedMarket(t, 0)

	env.heights.height = 1101
	_, err := env.engine.Cancel(ctx, m.ID)
	require.ErrorIs(t, err, domain.ErrTooEarly)

	env.heights.height = 1102
	cancelled, err := env.engine.Cancel(ctx, m.ID)
	require.NoError(t, err)
	require.True(t, cancelled.Cancelled)
	require.Equal(t, domain.MarketStatusCancelled, cancelled.Status())

	_, err = env.engine.Cancel(ctx, m.ID)
	require.ErrorIs(t, err, domain.ErrState, "cancel is terminal")
}

func TestCancelResolvedMarket(t *testing.T) {
	env := newTestEnv(t, testParams())
	ctx := context.Background()
	m := env.newFundedMarket(t, 0)

	_, err := env.engine.Resolve(ctx, m.ID, 600, 1000)
	require.NoError(t, err)

	env.heights.height = 5000
	_, err = env.engine.Cancel(ctx, m.ID)
	require.ErrorIs(t, err, domain.ErrState)
}

func TestRefund(t *testing.T) {
	env := newTestEnv(t, testParams())
	ctx := context.Background()
	m := env.newFundedMarket(t, 0, "a", "b")

	_, err := env.engine.MintCompleteSet(ctx, m.ID, "a", 10_000)
	require.NoError(t, err)
	_, err = env.engine.MintCompleteSet(ctx, m.ID, "b", 5_000)
	require.NoError(t, err)
	// a goes one-sided: 10000 NO becomes YES output.
	_, err = env.engine.Swap(ctx, m.ID, "a", domain.SideNo, 10_000)
	require.NoError(t, err)

	env.heights.height = 2000
	_, err = env.engine.Cancel(ctx, m.ID)
	require.NoError(t, err)

	_, err = env.engine.Refund(ctx, m.ID, "nobody")
	require.ErrorIs(t, err, domain.ErrNothingToRedeem)

	before, err := env.engine.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	balA, err := env.engine.GetBalance(ctx, m.ID, "a")
	require.NoError(t, err)

	res, err := env.engine.Refund(ctx, m.ID, "a")
	require.NoError(t, err)
	require.Equal(t, balA.Yes, res.YesBurned)
	require.Equal(t, balA.No, res.NoBurned)

	userTotal := balA.Yes + balA.No
	circTotal := before.YesCirculating + before.NoCirculating
	want, err := mulDiv(userTotal, before.Vault, circTotal)
	require.NoError(t, err)
	require.Equal(t, want, res.Refund)

	// Issued supply drops only by matched pairs; a's position was fully
	// one-sided after the swap, so only min(yes, no) comes off.
	after, err := env.engine.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	matched := min(balA.Yes, balA.No)
	require.Equal(t, before.YesIssued-matched, after.YesIssued)
	require.Equal(t, before.NoIssued-matched, after.NoIssued)
	require.Equal(t, before.Vault-res.Refund, after.Vault)

	// b's matched 5000-pair claim survives a's refund.
	resB, err := env.engine.Refund(ctx, m.ID, "b")
	require.NoError(t, err)
	require.Positive(t, resB.Refund)
}

func TestRefundRequiresCancelled(t *testing.T) {
	env := newTestEnv(t, testParams())
	ctx := context.Background()
	m := env.newFundedMarket(t, 0, "a")

	_, err := env.engine.MintCompleteSet(ctx, m.ID, "a", 1_000)
	require.NoError(t, err)

	_, err = env.engine.Refund(ctx, m.ID, "a")
	require.ErrorIs(t, err, domain.ErrState)
}

// Payouts always round down. A position too small for even one collateral
// unit burns for a zero payout, and the stranded remainder stays in the
// vault; nothing ever reclaims it.
func TestRedeemFloorsToZero(t *testing.T) {
	env := newTestEnv(t, testParams())
	ctx := context.Background()
	m := env.newFundedMarket(t, 0, "a")

	_, err := env.engine.MintCompleteSet(ctx, m.ID, "a", 1)
	require.NoError(t, err)
	// Model heavy fee over-issuance: 10 winning shares backed by 1 unit.
	env.setMarket(t, m.ID, func(m *domain.Market) {
		m.YesCirculating = 10
	})
	env.setBalance(t, m.ID, "a", domain.SideYes, 9)
	env.setBalance(t, m.ID, "other", domain.SideYes, 1)

	_, err = env.engine.Resolve(ctx, m.ID, 600, 1000)
	require.NoError(t, err)

	res, err := env.engine.Redeem(ctx, m.ID, "a")
	require.NoError(t, err)
	require.Zero(t, res.Payout, "floor(9*1/10) rounds to zero")
	require.Equal(t, uint64(9), res.SharesBurned, "the claim is consumed anyway")

	after, err := env.engine.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(1), after.Vault)
}
