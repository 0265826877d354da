package exilium

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Leveling curve: level 1 starts with a 100 xp threshold and each level
// multiplies the threshold by 1.5, truncated to an integer. Stored xp is
// cumulative and never consumed; the level is recomputed from it.
const (
	levelBaseThreshold = 100

	dailyCooldown     = 24 * time.Hour
	dailyStreakWindow = 48 * time.Hour
	dailyBaseSouls    = 100
	dailyStreakBonus  = 10

	mineCooldown = time.Hour
	mineMinSouls = 10
	mineMaxSouls = 30

	combatCooldown = 30 * time.Minute
	combatSouls    = 100

	messageXPCooldown = 30 * time.Second
	messageXPMin      = 1
	messageXPMax      = 5
)

// LevelForXP is the pure leveling function: the level implied by a
// cumulative xp total.
func LevelForXP(xp int64) int {
	level, _, _ := XPProgress(xp)
	return level
}

// XPProgress returns the level for the cumulative xp plus how far into the
// level the player is and the threshold for the next one, for display. It
// simulates consuming the cumulative xp against the geometric threshold
// curve without mutating it.
func XPProgress(xp int64) (level int, into int64, next int64) {
	level = 1
	threshold := int64(levelBaseThreshold)
	remaining := xp
	for remaining >= threshold {
		remaining -= threshold
		level++
		threshold = threshold * 3 / 2
	}
	return level, remaining, threshold
}

// XPResult reports an xp mutation.
type XPResult struct {
	XP            int64 `json:"xp"`
	Level         int   `json:"level"`
	LeveledUp     bool  `json:"leveled_up"`
	IntoLevel     int64 `json:"into_level"`
	NextThreshold int64 `json:"next_threshold"`
}

// ClaimResult reports a cooldown-gated reward grant.
type ClaimResult struct {
	Souls   int64     `json:"souls"`
	Streak  int       `json:"streak,omitempty"`
	Balance int64     `json:"balance"`
	NextAt  time.Time `json:"next_at"`
}

// EconomySystem is the currency and experience ledger.
type EconomySystem interface {
	Balance(ctx context.Context, userID string) (int64, error)
	// AddSouls increases the balance; amount must be >= 0.
	AddSouls(ctx context.Context, userID string, amount int64) (int64, error)
	// RemoveSouls decrements the balance, failing with ErrInsufficientFunds
	// and no mutation when the balance is short.
	RemoveSouls(ctx context.Context, userID string, amount int64) (int64, error)
	// AddXP adds to cumulative xp and recomputes the level.
	AddXP(ctx context.Context, userID string, amount int64) (*XPResult, error)

	// AddTempo accumulates voice-presence seconds.
	AddTempo(ctx context.Context, userID string, seconds int64) (int64, error)
	// AddMessageXP grants a small random xp amount, gated by a short
	// per-user cooldown. granted is false when the gate is closed; that is
	// not an error.
	AddMessageXP(ctx context.Context, userID string) (res *XPResult, granted bool, err error)

	ClaimDaily(ctx context.Context, userID string) (*ClaimResult, error)
	Mine(ctx context.Context, userID string) (*ClaimResult, error)
	CombatReward(ctx context.Context, userID string) (*ClaimResult, error)
}

// StoreEconomySystem implements EconomySystem over the snapshot view, with
// all per-user mutations serialized through the shared key locks.
type StoreEconomySystem struct {
	registry *UserRegistry
	locks    *userLocks
	log      *zap.Logger

	randMu sync.Mutex
	rand   *rand.Rand

	now func() time.Time
}

// NewStoreEconomySystem creates the ledger. rng may be nil for a
// time-seeded source.
func NewStoreEconomySystem(registry *UserRegistry, locks *userLocks, log *zap.Logger, rng *rand.Rand) *StoreEconomySystem {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &StoreEconomySystem{
		registry: registry,
		locks:    locks,
		log:      log,
		rand:     rng,
		now:      time.Now,
	}
}

func (e *StoreEconomySystem) rollRange(min, max int64) int64 {
	if max <= min {
		return min
	}
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return min + e.rand.Int63n(max-min+1)
}

func (e *StoreEconomySystem) Balance(ctx context.Context, userID string) (int64, error) {
	uid, err := e.registry.EnsureUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	unlock := e.locks.lock(uid)
	defer unlock()
	rec, err := e.registry.get(ctx, uid)
	if err != nil {
		return 0, err
	}
	return rec.Souls, nil
}

func (e *StoreEconomySystem) AddSouls(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrBadInput
	}
	uid, err := e.registry.EnsureUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	unlock := e.locks.lock(uid)
	defer unlock()
	rec, err := e.registry.get(ctx, uid)
	if err != nil {
		return 0, err
	}
	rec.Souls += amount
	if err := e.registry.put(ctx, uid, rec); err != nil {
		return 0, err
	}
	return rec.Souls, nil
}

func (e *StoreEconomySystem) RemoveSouls(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrBadInput
	}
	uid, err := e.registry.EnsureUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	unlock := e.locks.lock(uid)
	defer unlock()
	rec, err := e.registry.get(ctx, uid)
	if err != nil {
		return 0, err
	}
	if rec.Souls < amount {
		return rec.Souls, ErrInsufficientFunds
	}
	rec.Souls -= amount
	if err := e.registry.put(ctx, uid, rec); err != nil {
		return 0, err
	}
	return rec.Souls, nil
}

func (e *StoreEconomySystem) AddXP(ctx context.Context, userID string, amount int64) (*XPResult, error) {
	if amount < 0 {
		return nil, ErrBadInput
	}
	uid, err := e.registry.EnsureUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	unlock := e.locks.lock(uid)
	defer unlock()
	return e.addXPLocked(ctx, uid, amount)
}

// addXPLocked applies the xp grant; callers must hold the user lock.
func (e *StoreEconomySystem) addXPLocked(ctx context.Context, uid string, amount int64) (*XPResult, error) {
	rec, err := e.registry.get(ctx, uid)
	if err != nil {
		return nil, err
	}
	oldLevel := rec.Level
	rec.XP += amount
	level, into, next := XPProgress(rec.XP)
	rec.Level = level
	if err := e.registry.put(ctx, uid, rec); err != nil {
		return nil, err
	}
	if level > oldLevel {
		e.log.Info("user leveled up",
			zap.String("user", uid), zap.Int("level", level), zap.Int64("xp", rec.XP))
	}
	return &XPResult{
		XP:            rec.XP,
		Level:         level,
		LeveledUp:     level > oldLevel,
		IntoLevel:     into,
		NextThreshold: next,
	}, nil
}

func (e *StoreEconomySystem) AddTempo(ctx context.Context, userID string, seconds int64) (int64, error) {
	if seconds < 0 {
		return 0, ErrBadInput
	}
	uid, err := e.registry.EnsureUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	unlock := e.locks.lock(uid)
	defer unlock()
	rec, err := e.registry.get(ctx, uid)
	if err != nil {
		return 0, err
	}
	rec.TempoTotal += seconds
	if err := e.registry.put(ctx, uid, rec); err != nil {
		return 0, err
	}
	return rec.TempoTotal, nil
}

func (e *StoreEconomySystem) AddMessageXP(ctx context.Context, userID string) (*XPResult, bool, error) {
	uid, err := e.registry.EnsureUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	unlock := e.locks.lock(uid)
	defer unlock()
	rec, err := e.registry.get(ctx, uid)
	if err != nil {
		return nil, false, err
	}
	now := e.now()
	if rec.LastMessageXP != nil && now.Sub(*rec.LastMessageXP) < messageXPCooldown {
		return nil, false, nil
	}
	gain := e.rollRange(messageXPMin, messageXPMax)
	oldLevel := rec.Level
	rec.XP += gain
	level, into, next := XPProgress(rec.XP)
	rec.Level = level
	rec.LastMessageXP = &now
	if err := e.registry.put(ctx, uid, rec); err != nil {
		return nil, false, err
	}
	return &XPResult{
		XP:            rec.XP,
		Level:         level,
		LeveledUp:     level > oldLevel,
		IntoLevel:     into,
		NextThreshold: next,
	}, true, nil
}

func (e *StoreEconomySystem) ClaimDaily(ctx context.Context, userID string) (*ClaimResult, error) {
	uid, err := e.registry.EnsureUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	unlock := e.locks.lock(uid)
	defer unlock()
	rec, err := e.registry.get(ctx, uid)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if rec.LastDaily != nil && now.Sub(*rec.LastDaily) < dailyCooldown {
		return nil, ErrCooldownActive
	}
	// Streak continues when the claim lands within the grace window,
	// otherwise it restarts.
	if rec.LastDaily != nil && now.Sub(*rec.LastDaily) < dailyStreakWindow {
		rec.DailyStreak++
	} else {
		rec.DailyStreak = 1
	}
	amount := int64(dailyBaseSouls + dailyStreakBonus*(rec.DailyStreak-1))
	rec.Souls += amount
	rec.LastDaily = &now
	if err := e.registry.put(ctx, uid, rec); err != nil {
		return nil, err
	}
	return &ClaimResult{
		Souls:   amount,
		Streak:  rec.DailyStreak,
		Balance: rec.Souls,
		NextAt:  now.Add(dailyCooldown),
	}, nil
}

func (e *StoreEconomySystem) Mine(ctx context.Context, userID string) (*ClaimResult, error) {
	uid, err := e.registry.EnsureUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	unlock := e.locks.lock(uid)
	defer unlock()
	rec, err := e.registry.get(ctx, uid)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if rec.LastMine != nil && now.Sub(*rec.LastMine) < mineCooldown {
		return nil, ErrCooldownActive
	}
	amount := e.rollRange(mineMinSouls, mineMaxSouls)
	rec.MineStreak++
	rec.Souls += amount
	rec.LastMine = &now
	if err := e.registry.put(ctx, uid, rec); err != nil {
		return nil, err
	}
	return &ClaimResult{
		Souls:   amount,
		Streak:  rec.MineStreak,
		Balance: rec.Souls,
		NextAt:  now.Add(mineCooldown),
	}, nil
}

func (e *StoreEconomySystem) CombatReward(ctx context.Context, userID string) (*ClaimResult, error) {
	uid, err := e.registry.EnsureUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	unlock := e.locks.lock(uid)
	defer unlock()
	rec, err := e.registry.get(ctx, uid)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if rec.LastCombate != nil && now.Sub(*rec.LastCombate) < combatCooldown {
		return nil, ErrCooldownActive
	}
	rec.Souls += combatSouls
	rec.LastCombate = &now
	if err := e.registry.put(ctx, uid, rec); err != nil {
		return nil, err
	}
	return &ClaimResult{
		Souls:   combatSouls,
		Balance: rec.Souls,
		NextAt:  now.Add(combatCooldown),
	}, nil
}
