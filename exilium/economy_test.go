package exilium

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelForXP(t *testing.T) {
	// 100 xp to clear level 1, then 150, then 225.
	assert.Equal(t, 1, LevelForXP(0))
	assert.Equal(t, 1, LevelForXP(99))
	assert.Equal(t, 2, LevelForXP(100))
	assert.Equal(t, 2, LevelForXP(249))
	assert.Equal(t, 3, LevelForXP(250))
	assert.Equal(t, 3, LevelForXP(474))
	assert.Equal(t, 4, LevelForXP(475))
}

func TestLevelForXPDeterministic(t *testing.T) {
	for _, xp := range []int64{0, 1, 100, 1234, 99999} {
		assert.Equal(t, LevelForXP(xp), LevelForXP(xp))
	}
}

func TestXPProgress(t *testing.T) {
	level, into, next := XPProgress(120)
	assert.Equal(t, 2, level)
	assert.Equal(t, int64(20), into)
	assert.Equal(t, int64(150), next)
}

func TestAddRemoveSouls(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	bal, err := c.economy.AddSouls(ctx, "user1", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal)

	bal, err = c.economy.RemoveSouls(ctx, "user1", 40)
	require.NoError(t, err)
	assert.Equal(t, int64(60), bal)
}

func TestRemoveSoulsInsufficient(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	grantSouls(t, c, "user1", 50)
	_, err := c.economy.RemoveSouls(ctx, "user1", 51)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// The failed debit must not have touched the balance.
	bal, err := c.economy.Balance(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), bal)
}

func TestNegativeAmountsRejected(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	_, err := c.economy.AddSouls(ctx, "user1", -1)
	assert.ErrorIs(t, err, ErrBadInput)
	_, err = c.economy.RemoveSouls(ctx, "user1", -1)
	assert.ErrorIs(t, err, ErrBadInput)
	_, err = c.economy.AddXP(ctx, "user1", -1)
	assert.ErrorIs(t, err, ErrBadInput)
	_, err = c.economy.AddTempo(ctx, "user1", -1)
	assert.ErrorIs(t, err, ErrBadInput)
}

func TestAddXPLevelsUp(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	res, err := c.economy.AddXP(ctx, "user1", 90)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Level)
	assert.False(t, res.LeveledUp)

	res, err = c.economy.AddXP(ctx, "user1", 20)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Level)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, int64(110), res.XP)
	assert.Equal(t, int64(10), res.IntoLevel)
}

func TestAddTempoAccumulates(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	total, err := c.economy.AddTempo(ctx, "user1", 300)
	require.NoError(t, err)
	assert.Equal(t, int64(300), total)
	total, err = c.economy.AddTempo(ctx, "user1", 60)
	require.NoError(t, err)
	assert.Equal(t, int64(360), total)
}

func TestClaimDailyCooldownAndStreak(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.economy.now = func() time.Time { return now }

	res, err := c.economy.ClaimDaily(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Souls)
	assert.Equal(t, 1, res.Streak)

	// Second claim inside the cooldown fails.
	_, err = c.economy.ClaimDaily(ctx, "user1")
	assert.ErrorIs(t, err, ErrCooldownActive)

	// Claim 25h later: streak continues with its bonus.
	now = now.Add(25 * time.Hour)
	res, err = c.economy.ClaimDaily(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(110), res.Souls)
	assert.Equal(t, 2, res.Streak)

	// Claim 3 days later: streak restarts.
	now = now.Add(72 * time.Hour)
	res, err = c.economy.ClaimDaily(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Souls)
	assert.Equal(t, 1, res.Streak)
}

func TestMineCooldown(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.economy.now = func() time.Time { return now }

	res, err := c.economy.Mine(ctx, "user1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Souls, int64(mineMinSouls))
	assert.LessOrEqual(t, res.Souls, int64(mineMaxSouls))

	_, err = c.economy.Mine(ctx, "user1")
	assert.ErrorIs(t, err, ErrCooldownActive)

	now = now.Add(61 * time.Minute)
	_, err = c.economy.Mine(ctx, "user1")
	assert.NoError(t, err)
}

func TestCombatRewardCooldown(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.economy.now = func() time.Time { return now }

	res, err := c.economy.CombatReward(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(combatSouls), res.Souls)

	_, err = c.economy.CombatReward(ctx, "user1")
	assert.ErrorIs(t, err, ErrCooldownActive)
}

func TestAddMessageXPGate(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.economy.now = func() time.Time { return now }

	res, granted, err := c.economy.AddMessageXP(ctx, "user1")
	require.NoError(t, err)
	require.True(t, granted)
	assert.GreaterOrEqual(t, res.XP, int64(messageXPMin))
	assert.LessOrEqual(t, res.XP, int64(messageXPMax))

	// A message inside the window earns nothing, without error.
	res, granted, err = c.economy.AddMessageXP(ctx, "user1")
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Nil(t, res)

	now = now.Add(31 * time.Second)
	_, granted, err = c.economy.AddMessageXP(ctx, "user1")
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestTransferConservation(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	grantSouls(t, c, "a", 300)
	grantSouls(t, c, "b", 100)

	// A manual transfer: remove from one, add to the other.
	_, err := c.economy.RemoveSouls(ctx, "a", 120)
	require.NoError(t, err)
	_, err = c.economy.AddSouls(ctx, "b", 120)
	require.NoError(t, err)

	balA, err := c.economy.Balance(ctx, "a")
	require.NoError(t, err)
	balB, err := c.economy.Balance(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(400), balA+balB)
}
