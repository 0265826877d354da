package exilium

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LootboxResult reports one opened box.
type LootboxResult struct {
	Tier   string `json:"tier"`
	Rarity string `json:"rarity"`
	// Souls is the reward currency, zero when the reward was an item.
	Souls int64 `json:"souls,omitempty"`
	// ItemID is the reward item, empty when the reward was currency.
	ItemID string `json:"item_id,omitempty"`
	// BonusSouls is the unconditional per-tier bonus rolled on every
	// open, independent of the rarity draw.
	BonusSouls int64 `json:"bonus_souls"`
	Balance    int64 `json:"balance"`
}

// LootboxSystem resolves weighted-rarity rewards for box opens.
type LootboxSystem interface {
	// Open consumes one lootbox item of the tier from the user's
	// inventory and applies the drawn reward plus the tier bonus.
	Open(ctx context.Context, userID, tier string) (*LootboxResult, error)
	// DrawRarity resolves a rarity from the tier's weight table.
	DrawRarity(tier string) (string, error)
	// DrawReward picks uniformly among the rarity's reward pool.
	DrawReward(tier, rarity string) (*LootboxReward, error)
}

// StoreLootboxSystem implements LootboxSystem over the ledger and
// inventory.
type StoreLootboxSystem struct {
	registry  *UserRegistry
	economy   EconomySystem
	inventory InventorySystem
	economia  func() *EconomiaConfig
	log       *zap.Logger

	randMu sync.Mutex
	rand   *rand.Rand
}

// NewStoreLootboxSystem creates the resolver. rng may be nil for a
// time-seeded source.
func NewStoreLootboxSystem(registry *UserRegistry, economy EconomySystem, inventory InventorySystem, economia func() *EconomiaConfig, log *zap.Logger, rng *rand.Rand) *StoreLootboxSystem {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &StoreLootboxSystem{
		registry:  registry,
		economy:   economy,
		inventory: inventory,
		economia:  economia,
		log:       log,
		rand:      rng,
	}
}

func (l *StoreLootboxSystem) randFloat() float64 {
	l.randMu.Lock()
	defer l.randMu.Unlock()
	return l.rand.Float64()
}

func (l *StoreLootboxSystem) randIntn(n int) int {
	l.randMu.Lock()
	defer l.randMu.Unlock()
	return l.rand.Intn(n)
}

func (l *StoreLootboxSystem) rollRange(min, max int64) int64 {
	if max <= min {
		return min
	}
	l.randMu.Lock()
	defer l.randMu.Unlock()
	return min + l.rand.Int63n(max-min+1)
}

func (l *StoreLootboxSystem) DrawRarity(tier string) (string, error) {
	cfg := l.economia()
	weights, ok := cfg.LootboxPesos[tier]
	pool := cfg.LootboxRecompensas[tier]
	if !ok || len(pool) == 0 {
		return "", ErrNotFound
	}

	// Only rarities with at least one configured reward count toward the
	// total; a weighted bucket with an empty pool can never be drawn.
	var total int64
	for _, rarity := range RarityOrder {
		if len(pool[rarity]) > 0 {
			total += weights[rarity]
		}
	}
	if total <= 0 {
		return "", Errorf(INTERNAL_ERROR_CODE, "tier %s has no drawable rarity", tier)
	}

	sample := l.randFloat() * float64(total)
	var cumulative int64
	for _, rarity := range RarityOrder {
		if len(pool[rarity]) == 0 {
			continue
		}
		cumulative += weights[rarity]
		if sample <= float64(cumulative) {
			return rarity, nil
		}
	}
	// Floating-point edge: fall back to the first rarity with entries.
	for _, rarity := range RarityOrder {
		if len(pool[rarity]) > 0 {
			return rarity, nil
		}
	}
	return "", Errorf(INTERNAL_ERROR_CODE, "tier %s has no drawable rarity", tier)
}

func (l *StoreLootboxSystem) DrawReward(tier, rarity string) (*LootboxReward, error) {
	pool := l.economia().LootboxRecompensas[tier][rarity]
	if len(pool) == 0 {
		return nil, ErrNotFound
	}
	return pool[l.randIntn(len(pool))], nil
}

// lootboxItemID maps a tier to the inventory item consumed on open.
func lootboxItemID(tier string) string {
	return fmt.Sprintf("lootbox_%s", tier)
}

func (l *StoreLootboxSystem) Open(ctx context.Context, userID, tier string) (*LootboxResult, error) {
	cfg := l.economia()
	if _, ok := cfg.LootboxRecompensas[tier]; !ok {
		return nil, ErrNotFound
	}
	uid, err := l.registry.EnsureUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// The box itself is the cost: consume it before rolling. RemoveItem
	// fails cleanly when the user has none.
	boxID := lootboxItemID(tier)
	if err := l.inventory.RemoveItem(ctx, uid, boxID, 1); err != nil {
		return nil, err
	}
	// Any failure between consuming the box and landing the reward hands
	// the box back; an unresolved open must not cost anything.
	refund := func(cause error) (*LootboxResult, error) {
		if rbErr := l.inventory.AddItem(ctx, uid, boxID, 1); rbErr != nil {
			l.log.Error("lootbox refund failed",
				zap.String("user", uid), zap.String("tier", tier), zap.Error(rbErr))
		}
		return nil, cause
	}

	rarity, err := l.DrawRarity(tier)
	if err != nil {
		return refund(err)
	}
	reward, err := l.DrawReward(tier, rarity)
	if err != nil {
		return refund(err)
	}

	result := &LootboxResult{Tier: tier, Rarity: rarity}
	switch reward.Tipo {
	case "moeda":
		result.Souls = l.rollRange(reward.Min, reward.Max)
		if _, err := l.economy.AddSouls(ctx, uid, result.Souls); err != nil {
			return refund(err)
		}
	case "item":
		result.ItemID = reward.ID
		if err := l.inventory.AddItem(ctx, uid, reward.ID, 1); err != nil {
			return refund(err)
		}
	default:
		return refund(Errorf(INTERNAL_ERROR_CODE, "unknown reward type %q", reward.Tipo))
	}

	if bonus, ok := cfg.LootboxBonus[tier]; ok && bonus != nil {
		// The main reward already landed; a failed bonus only costs the
		// bonus, never the box.
		result.BonusSouls = l.rollRange(bonus.Min, bonus.Max)
		if _, err := l.economy.AddSouls(ctx, uid, result.BonusSouls); err != nil {
			return nil, err
		}
	}

	balance, err := l.economy.Balance(ctx, uid)
	if err != nil {
		return nil, err
	}
	result.Balance = balance

	l.log.Info("lootbox opened",
		zap.String("user", uid),
		zap.String("tier", tier),
		zap.String("rarity", rarity),
		zap.Int64("souls", result.Souls),
		zap.String("item", result.ItemID),
		zap.Int64("bonus", result.BonusSouls))
	return result, nil
}
