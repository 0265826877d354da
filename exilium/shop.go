package exilium

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// sellRate is the fraction of the multiplied base value paid when selling an
// item back to the shop.
const sellRate = 0.7

// ShopResult reports a buy or sell.
type ShopResult struct {
	ItemID   string `json:"item_id"`
	Quantity int64  `json:"quantity"`
	// Total is souls paid (buy) or received (sell).
	Total   int64 `json:"total"`
	Balance int64 `json:"balance"`
}

// ForgeResult reports a forge attempt. Ingredients and the soul cost are
// consumed either way; Success tells whether the item was produced.
type ForgeResult struct {
	ItemID  string  `json:"item_id"`
	Success bool    `json:"success"`
	Roll    float64 `json:"roll"`
	Cost    int64   `json:"cost"`
	Balance int64   `json:"balance"`
}

// ShopSystem is the NPC-facing side of the economy: fixed-price purchases,
// sell-backs valued off the rarity multiplier, and forging.
type ShopSystem interface {
	// BuyItem purchases qty units from the shop catalog at the listed price.
	BuyItem(ctx context.Context, userID, itemID string, qty int64) (*ShopResult, error)
	// SellItem sells qty owned units back to the shop. The unit payout is
	// int(valor_base * rarity multiplier * 0.7).
	SellItem(ctx context.Context, userID, itemID string, qty int64) (*ShopResult, error)
	// ForgeItem attempts to craft a forge-catalog item, consuming its soul
	// cost and ingredients up front and rolling against its failure rate.
	ForgeItem(ctx context.Context, userID, itemID string) (*ForgeResult, error)
}

// StoreShopSystem implements ShopSystem over the ledger and inventory.
type StoreShopSystem struct {
	registry  *UserRegistry
	locks     *userLocks
	economy   EconomySystem
	inventory InventorySystem
	economia  func() *EconomiaConfig
	log       *zap.Logger

	randMu sync.Mutex
	rand   *rand.Rand
}

// NewStoreShopSystem creates the shop. rng may be nil for a time-seeded
// source.
func NewStoreShopSystem(registry *UserRegistry, locks *userLocks, economy EconomySystem, inventory InventorySystem, economia func() *EconomiaConfig, log *zap.Logger, rng *rand.Rand) *StoreShopSystem {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &StoreShopSystem{
		registry:  registry,
		locks:     locks,
		economy:   economy,
		inventory: inventory,
		economia:  economia,
		log:       log,
		rand:      rng,
	}
}

func (s *StoreShopSystem) randFloat() float64 {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.rand.Float64()
}

func (s *StoreShopSystem) BuyItem(ctx context.Context, userID, itemID string, qty int64) (*ShopResult, error) {
	if itemID == "" || qty < 1 {
		return nil, ErrBadInput
	}
	cfg := s.economia()
	var item *CatalogItem
	if it, ok := cfg.LojaItems[itemID]; ok {
		item = it
	} else if it, ok := cfg.ItensPassivos[itemID]; ok {
		item = it
	}
	if item == nil || item.Valor <= 0 {
		return nil, ErrNotFound
	}
	uid, err := s.registry.EnsureUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	total := item.Valor * qty
	balance, err := s.economy.RemoveSouls(ctx, uid, total)
	if err != nil {
		return nil, err
	}
	if err := s.inventory.AddItem(ctx, uid, itemID, qty); err != nil {
		// Refund rather than leave souls gone with nothing delivered.
		if _, rbErr := s.economy.AddSouls(ctx, uid, total); rbErr != nil {
			s.log.Error("buy refund failed", zap.String("user", uid), zap.Error(rbErr))
		}
		return nil, err
	}
	s.log.Info("shop purchase",
		zap.String("user", uid), zap.String("item", itemID),
		zap.Int64("quantity", qty), zap.Int64("total", total))
	return &ShopResult{ItemID: itemID, Quantity: qty, Total: total, Balance: balance}, nil
}

// SellValue is the unit sell-back price for an item, or 0 when the item has
// no sellable value.
func SellValue(cfg *EconomiaConfig, item *CatalogItem) int64 {
	base := item.ValorBase
	if base == 0 {
		base = item.Valor
	}
	if base <= 0 {
		return 0
	}
	return int64(float64(base) * cfg.Multiplier(item.Raridade) * sellRate)
}

func (s *StoreShopSystem) SellItem(ctx context.Context, userID, itemID string, qty int64) (*ShopResult, error) {
	if itemID == "" || qty < 1 {
		return nil, ErrBadInput
	}
	cfg := s.economia()
	item := cfg.FindItem(itemID)
	if item == nil {
		return nil, ErrNotFound
	}
	unit := SellValue(cfg, item)
	if unit <= 0 {
		return nil, ErrBadInput
	}
	uid, err := s.registry.EnsureUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.inventory.RemoveItem(ctx, uid, itemID, qty); err != nil {
		return nil, err
	}
	total := unit * qty
	balance, err := s.economy.AddSouls(ctx, uid, total)
	if err != nil {
		if rbErr := s.inventory.AddItem(ctx, uid, itemID, qty); rbErr != nil {
			s.log.Error("sell rollback failed", zap.String("user", uid), zap.Error(rbErr))
		}
		return nil, err
	}
	s.log.Info("shop sale",
		zap.String("user", uid), zap.String("item", itemID),
		zap.Int64("quantity", qty), zap.Int64("total", total))
	return &ShopResult{ItemID: itemID, Quantity: qty, Total: total, Balance: balance}, nil
}

func (s *StoreShopSystem) ForgeItem(ctx context.Context, userID, itemID string) (*ForgeResult, error) {
	if itemID == "" {
		return nil, ErrBadInput
	}
	cfg := s.economia()
	recipe, ok := cfg.ItensForja[itemID]
	if !ok {
		return nil, ErrNotFound
	}
	uid, err := s.registry.EnsureUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// The whole forge runs under the user lock: validate everything, then
	// apply the cost, ingredients and outcome in a single record write. A
	// concurrent forge by the same user sees either all of it or none.
	unlock := s.locks.lock(uid)
	defer unlock()
	rec, err := s.registry.get(ctx, uid)
	if err != nil {
		return nil, err
	}
	for ing, need := range recipe.Ingredientes {
		if rec.Itens[ing] < need {
			return nil, ErrInsufficientItems
		}
	}
	if rec.Souls < recipe.CustoAlmas {
		return nil, ErrInsufficientFunds
	}

	rec.Souls -= recipe.CustoAlmas
	for ing, need := range recipe.Ingredientes {
		if rec.Itens[ing] == need {
			delete(rec.Itens, ing)
		} else {
			rec.Itens[ing] -= need
		}
	}

	roll := s.randFloat()
	success := roll >= recipe.TaxaFalha
	if success {
		rec.Itens[itemID]++
	}
	if err := s.registry.put(ctx, uid, rec); err != nil {
		return nil, err
	}

	s.log.Info("forge attempt",
		zap.String("user", uid), zap.String("item", itemID),
		zap.Bool("success", success), zap.Float64("roll", roll))
	return &ForgeResult{
		ItemID:  itemID,
		Success: success,
		Roll:    roll,
		Cost:    recipe.CustoAlmas,
		Balance: rec.Souls,
	}, nil
}
