package service

import (
	"errors"
	"testing"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/config"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommissionableBase(t *testing.T) {
	total := config.Product{Price: 10}
	net := config.Product{Price: 8, PurchaseCost: 5, MarginType: config.MarginNet,
		Options: []config.ProductOption{{ID: "1y", Price: 20, PurchaseCost: 12}}}
	loss := config.Product{Price: 4, PurchaseCost: 6, MarginType: config.MarginNet}

	assert.True(t, CommissionableBase(dec("10"), total, "").Equal(dec("10")))
	assert.True(t, CommissionableBase(dec("8"), net, "").Equal(dec("3")))
	assert.True(t, CommissionableBase(dec("20"), net, "1y").Equal(dec("8")))
	assert.True(t, CommissionableBase(dec("4"), loss, "").IsZero())
}

func TestCommissionRate(t *testing.T) {
	rules := testRules()
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	base := domain.NewUser("r", now, true)
	rate, ceiling := CommissionRate(base, rules, 0, now)
	assert.InDelta(t, 0.10, rate, 1e-9)
	assert.Equal(t, 1.0, ceiling)

	stacked := domain.NewUser("r", now, true)
	stacked.VIP = &domain.VIPStatus{ExpiresAt: now.Add(time.Hour), ConsecutiveMonths: 1}
	stacked.PermanentAffiliateBonus = true
	rate, _ = CommissionRate(stacked, rules, 0.10, now)
	assert.InDelta(t, 0.27, rate, 1e-9)

	top1 := domain.NewUser("r", now, true)
	top1.Level = 50
	top1.GuildBonus = &domain.GuildBonus{Type: domain.GuildBonusTop1, CommissionRate: 0.9}
	rate, _ = CommissionRate(top1, rules, 0.10, now)
	assert.Equal(t, 0.9, rate, "top guild rate replaces every other bonus")

	capped := domain.NewUser("r", now, true)
	capped.Level = 10
	capped.GuildBonus = &domain.GuildBonus{Type: domain.GuildBonusTop2, CommissionBoost: 0.10, MaxCommissionRate: 0.25}
	rate, ceiling = CommissionRate(capped, rules, 0.10, now)
	assert.Equal(t, 0.25, rate)
	assert.Equal(t, 0.25, ceiling)
}

func TestCommissionAmounts(t *testing.T) {
	rules := testRules()
	cat := testCatalog()
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	netflix, _ := cat.Product("netflix")

	top1 := domain.NewUser("r", now, true)
	top1.GuildBonus = &domain.GuildBonus{Type: domain.GuildBonusTop1, CommissionRate: 0.9}
	assert.Equal(t, "9", Commission(top1, dec("10"), netflix, "", rules, 0, now).String())

	capped := domain.NewUser("r", now, true)
	capped.Level = 10
	capped.GuildBonus = &domain.GuildBonus{Type: domain.GuildBonusTop3, CommissionBoost: 0.5, MaxCommissionRate: 0.25}
	assert.Equal(t, "2.5", Commission(capped, dec("10"), netflix, "", rules, 0, now).String())

	plain := domain.NewUser("r", now, true)
	assert.True(t, CashoutCommission(plain, dec("100"), rules, now).Equal(dec("5")))
	plain.VIP = &domain.VIPStatus{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, CashoutCommission(plain, dec("100"), rules, now).Equal(dec("10")))
	plain.GuildBonus = &domain.GuildBonus{Type: domain.GuildBonusTop2, CashoutCommissionRate: 0.2}
	assert.True(t, CashoutCommission(plain, dec("100"), rules, now).Equal(dec("20")))
	assert.True(t, CashoutCommission(plain, dec("-1"), rules, now).IsZero())
}

func TestRecordPurchasePaysReferrerAndXP(t *testing.T) {
	env := newTestEnv(t)
	env.seed(&domain.User{ID: "ref"})
	env.seed(&domain.User{ID: "buyer", ReferrerID: "ref", DisplayName: "Alex"})

	res, err := env.svc.Economy.RecordPurchase(env.ctx, Purchase{UserID: "buyer", ProductID: "netflix", RecordedBy: "admin"})
	require.NoError(t, err)
	assert.True(t, res.Price.Equal(dec("10")))
	assert.Equal(t, int64(200), res.XPGranted)
	assert.Equal(t, "ref", res.ReferrerID)
	assert.True(t, res.Commission.Equal(dec("1")), res.Commission.String())

	buyer := env.user("buyer")
	assert.Equal(t, int64(1), buyer.PurchaseCount)
	assert.True(t, buyer.PurchaseTotalValue.Equal(dec("10")))
	assert.Equal(t, int64(250), buyer.XP, "purchase XP plus the first purchase achievement")
	assert.Contains(t, buyer.Achievements, "first_purchase")

	ref := env.user("ref")
	assert.True(t, ref.StoreCredit.Equal(dec("1")))
	assert.True(t, ref.AffiliateEarnings.Equal(dec("1")))
	assert.True(t, ref.WeeklyAffiliateEarnings.Equal(dec("1")))
	assert.Equal(t, int64(1), ref.AffiliateSaleCount)
	assert.NotEmpty(t, env.platform.dmsTo("ref"))
}

func TestRecordPurchaseSubscriptionExtendsVIP(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.svc.Economy.RecordPurchase(env.ctx, Purchase{UserID: "u1", ProductID: "vip"})
	require.NoError(t, err)
	require.NotNil(t, res.VIPUntil)
	assert.Equal(t, env.now.AddDate(0, 0, 7), *res.VIPUntil)
	assert.Equal(t, 1, env.user("u1").VIP.ConsecutiveMonths)
	assert.Contains(t, env.platform.roles["u1"], "VIP")

	_, err = env.svc.Economy.RecordPurchase(env.ctx, Purchase{UserID: "u1", ProductID: "vip"})
	require.NoError(t, err)
	assert.Equal(t, 2, env.user("u1").VIP.ConsecutiveMonths)
}

func TestRecordPurchaseInsufficientCreditChangesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.seed(&domain.User{ID: "u1", StoreCredit: dec("2")})

	_, err := env.svc.Economy.RecordPurchase(env.ctx, Purchase{UserID: "u1", ProductID: "netflix", CreditUsed: dec("5")})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	u := env.user("u1")
	assert.True(t, u.StoreCredit.Equal(dec("2")))
	assert.Zero(t, u.PurchaseCount)
	assert.Empty(t, u.TransactionLog)
}

func TestRecordPurchaseUnknownProduct(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Economy.RecordPurchase(env.ctx, Purchase{UserID: "u1", ProductID: "nope"})
	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestPurchaseXP(t *testing.T) {
	env := newTestEnv(t)
	env.seed(&domain.User{ID: "u1", StoreCredit: dec("3")})

	xp, level, err := env.svc.Economy.PurchaseXP(env.ctx, "u1", dec("2.5"))
	require.NoError(t, err)
	assert.Equal(t, int64(250), xp)
	assert.Equal(t, int64(2), level)
	assert.True(t, env.credit("u1").Equal(dec("0.5")))

	_, _, err = env.svc.Economy.PurchaseXP(env.ctx, "u1", dec("1"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, env.credit("u1").Equal(dec("0.5")))
}

func TestParseCredits(t *testing.T) {
	v, err := ParseCredits(" 12,5 ")
	require.NoError(t, err)
	assert.True(t, v.Equal(dec("12.5")))

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := ParseCredits(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount, bad)
	}
}

func seedCashoutUser(env *testEnv) {
	env.seed(&domain.User{ID: "ref"})
	env.seed(&domain.User{
		ID:          "u1",
		DisplayName: "Sam",
		Level:       5,
		StoreCredit: dec("50"),
		ReferrerID:  "ref",
		JoinedAt:    env.now.AddDate(0, 0, -30),
	})
}

func TestCashoutSubmitAndApprove(t *testing.T) {
	env := newTestEnv(t)
	seedCashoutUser(env)

	pending, err := env.svc.Economy.SubmitCashout(env.ctx, CashoutRequest{UserID: "u1", DisplayName: "Sam", Amount: "20,5", PaypalEmail: "sam@example.com"})
	require.NoError(t, err)
	assert.True(t, pending.PayoutEUR.Equal(dec("20.5")))
	assert.True(t, env.credit("u1").Equal(dec("29.5")))

	posts := env.platform.postsTo("retraits")
	require.Len(t, posts, 1)
	assert.Len(t, posts[0].Msg.Buttons, 2)
	assert.Equal(t, posts[0].Ref.MessageID, pending.ID)

	_, err = env.svc.Economy.ApproveCashout(env.ctx, pending.ID, Staff{ID: "admin", DisplayName: "Admin"})
	require.NoError(t, err)

	u := env.user("u1")
	assert.Equal(t, int64(1), u.CashoutCount)
	assert.True(t, u.StoreCredit.Equal(dec("29.5")))
	_, err = env.store.Cashout(env.ctx, pending.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.True(t, env.credit("ref").Equal(dec("1.02")), "5% of 20.50 truncated to cents")
	assert.Len(t, env.platform.postsTo("transactions"), 1)
	assert.Contains(t, env.platform.edits, pending.ID)

	_, err = env.svc.Economy.ApproveCashout(env.ctx, pending.ID, Staff{ID: "admin"})
	assert.ErrorIs(t, err, ErrCashoutNotFound)
}

func TestCashoutDenyRefunds(t *testing.T) {
	env := newTestEnv(t)
	seedCashoutUser(env)

	pending, err := env.svc.Economy.SubmitCashout(env.ctx, CashoutRequest{UserID: "u1", Amount: "20", PaypalEmail: "sam@example.com"})
	require.NoError(t, err)

	_, err = env.svc.Economy.DenyCashout(env.ctx, pending.ID, Staff{ID: "admin", DisplayName: "Admin"})
	require.NoError(t, err)
	assert.True(t, env.credit("u1").Equal(dec("50")))
	assert.Zero(t, env.user("u1").CashoutCount)
	assert.True(t, env.credit("ref").IsZero())

	_, err = env.svc.Economy.DenyCashout(env.ctx, pending.ID, Staff{ID: "admin"})
	assert.ErrorIs(t, err, ErrCashoutNotFound)
}

func TestCashoutEligibility(t *testing.T) {
	env := newTestEnv(t)
	seedCashoutUser(env)
	env.seed(&domain.User{ID: "newbie", Level: 5, StoreCredit: dec("50"), JoinedAt: env.now.AddDate(0, 0, -1)})
	env.seed(&domain.User{ID: "low", Level: 2, StoreCredit: dec("50")})

	cases := []struct {
		user   string
		amount string
		want   error
	}{
		{"u1", "60", ErrInsufficientFunds},
		{"u1", "5", ErrBelowThreshold},
		{"low", "20", ErrLevelTooLow},
		{"newbie", "20", ErrAccountTooYoung},
		{"u1", "abc", ErrInvalidAmount},
	}
	for _, tc := range cases {
		_, err := env.svc.Economy.SubmitCashout(env.ctx, CashoutRequest{UserID: tc.user, Amount: tc.amount})
		assert.ErrorIs(t, err, tc.want, "%s %s", tc.user, tc.amount)
	}
	assert.True(t, env.credit("u1").Equal(dec("50")))
	assert.True(t, env.credit("low").Equal(dec("50")))
}

func TestCashoutRefundedWhenChannelFails(t *testing.T) {
	env := newTestEnv(t)
	seedCashoutUser(env)
	env.platform.failChannels["retraits"] = errors.New("missing access")

	_, err := env.svc.Economy.SubmitCashout(env.ctx, CashoutRequest{UserID: "u1", Amount: "20"})
	require.Error(t, err)
	assert.True(t, env.credit("u1").Equal(dec("50")))
	assert.Equal(t, refundReason, env.user("u1").TransactionLog[0].Reason)
}

func TestWithdrawalThreshold(t *testing.T) {
	r := config.CashoutRules{
		DefaultThreshold: 50,
		Thresholds:       []config.WithdrawalThreshold{{Level: 10, Threshold: 20}, {Level: 20, Threshold: 10}},
	}
	assert.True(t, withdrawalThreshold(r, 5).Equal(decimal.NewFromInt(50)))
	assert.True(t, withdrawalThreshold(r, 12).Equal(decimal.NewFromInt(20)))
	assert.True(t, withdrawalThreshold(r, 25).Equal(decimal.NewFromInt(10)))
}

func TestSweepVIPExpiresAndRemovesRole(t *testing.T) {
	env := newTestEnv(t)
	env.seed(&domain.User{ID: "gone", VIP: &domain.VIPStatus{ExpiresAt: env.now.Add(-time.Minute), ConsecutiveMonths: 2}})
	env.seed(&domain.User{ID: "still", VIP: &domain.VIPStatus{ExpiresAt: env.now.Add(time.Hour), ConsecutiveMonths: 1}})
	env.platform.addMember(Member{ID: "gone", Roles: []string{"VIP"}})

	expired, failed, err := env.svc.Economy.SweepVIP(env.ctx, env.now)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Zero(t, failed)
	assert.Nil(t, env.user("gone").VIP)
	assert.NotNil(t, env.user("still").VIP)
	assert.NotContains(t, env.platform.roles["gone"], "VIP")
}
