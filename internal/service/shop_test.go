package service

import (
	"testing"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShopBoosters(t *testing.T) {
	env := newTestEnv(t)
	env.seed(&domain.User{ID: "u1", StoreCredit: dec("5")})

	res, err := env.svc.Shop.Buy(env.ctx, "u1", "Sam", "xp_boost_24h")
	require.NoError(t, err)
	require.NotNil(t, res.Booster)
	assert.Equal(t, domain.BoosterXP, res.Booster.Kind)
	assert.Equal(t, 1.5, res.Booster.Multiplier)
	assert.Equal(t, env.now.Add(24*time.Hour), res.Booster.ExpiresAt)

	res, err = env.svc.Shop.Buy(env.ctx, "u1", "Sam", "commission_boost")
	require.NoError(t, err)
	assert.Equal(t, 0.05, res.Booster.Bonus)

	u := env.user("u1")
	assert.True(t, u.StoreCredit.IsZero())
	assert.Len(t, u.ActiveBoosters, 2)
	assert.InDelta(t, 1.5, ComputeBoost(u, env.rules.VIP, env.now), 1e-9)
	rate, _ := CommissionRate(u, env.rules, 0, env.now)
	assert.InDelta(t, 0.15, rate, 1e-9)

	_, err = env.svc.Shop.Buy(env.ctx, "u1", "Sam", "xp_boost_24h")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestShopSpecialItems(t *testing.T) {
	env := newTestEnv(t)
	env.seed(&domain.User{ID: "u1", StoreCredit: dec("3")})

	_, err := env.svc.Shop.Buy(env.ctx, "u1", "Sam", "nope")
	assert.ErrorIs(t, err, ErrUnknownItem)

	res, err := env.svc.Shop.Buy(env.ctx, "u1", "Sam", "xp_pack")
	require.NoError(t, err)
	assert.True(t, res.NeedsAmount)
	assert.True(t, env.credit("u1").Equal(dec("3")))

	res, err = env.svc.Shop.Buy(env.ctx, "u1", "Sam", "ticket")
	require.NoError(t, err)
	require.NotNil(t, res.Lottery)
	assert.Equal(t, 1, res.Lottery.Tickets)
	assert.True(t, env.credit("u1").Equal(dec("2.75")))

	xp, _, err := env.svc.Shop.BuyXP(env.ctx, "u1", "1,5")
	require.NoError(t, err)
	assert.Equal(t, int64(150), xp)
	assert.True(t, env.credit("u1").Equal(dec("1.25")))

	_, _, err = env.svc.Shop.BuyXP(env.ctx, "u1", "beaucoup")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
