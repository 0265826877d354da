package exilium

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// exiliumCore wires the store, the snapshot view and the gameplay systems
// into the Exilium surface.
type exiliumCore struct {
	log   *zap.Logger
	store *DualStore
	snap  *Snapshot

	locks    *userLocks
	registry *UserRegistry

	economiaMu sync.RWMutex
	economia   *EconomiaConfig

	economySystem   *StoreEconomySystem
	inventorySystem *StoreInventorySystem
	marketSystem    *StoreMarketSystem
	lootboxSystem   *StoreLootboxSystem
	shopSystem      *StoreShopSystem
}

// Init opens the store, loads the economy reference data (seeding the
// defaults on first run) and wires the gameplay systems. notifier may be nil
// for log-only notifications.
func Init(ctx context.Context, log *zap.Logger, cfg *Config, notifier Notifier) (Exilium, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if notifier == nil {
		notifier = &LogNotifier{Log: log}
	}

	store, err := OpenDualStore(ctx, DualStoreOptions{
		MongoURI:       cfg.MongoURI,
		MongoDatabase:  cfg.MongoDatabase,
		DataPath:       cfg.DataPath,
		ConnectRetries: cfg.ConnectRetries,
		ReconnectSpec:  cfg.ReconnectEvery,
	}, log)
	if err != nil {
		return nil, err
	}

	snap, err := NewSnapshot(ctx, store, cfg.SnapshotTTL)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}

	c := &exiliumCore{
		log:   log,
		store: store,
		snap:  snap,
		locks: newUserLocks(),
	}
	c.registry = NewUserRegistry(snap, c.locks)

	economia, err := store.GetEconomia(ctx)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}
	if economia == nil {
		economia = DefaultEconomia()
		if err := store.SetEconomia(ctx, economia); err != nil {
			log.Warn("default economy not persisted", zap.Error(err))
		}
	}
	c.economia = economia

	economiaFn := c.Economia
	c.economySystem = NewStoreEconomySystem(c.registry, c.locks, log, nil)
	c.inventorySystem = NewStoreInventorySystem(c.registry, c.locks, economiaFn, log)
	c.lootboxSystem = NewStoreLootboxSystem(c.registry, c.economySystem, c.inventorySystem, economiaFn, log, nil)
	c.shopSystem = NewStoreShopSystem(c.registry, c.locks, c.economySystem, c.inventorySystem, economiaFn, log, nil)
	c.marketSystem, err = NewStoreMarketSystem(ctx, c.registry, c.economySystem, c.inventorySystem, store, economiaFn, notifier, log)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}

	log.Info("exilium core initialized",
		zap.Bool("fallback", store.Fallback()),
		zap.String("data_path", cfg.DataPath))
	return c, nil
}

func (c *exiliumCore) EnsureUser(ctx context.Context, userID string) (string, error) {
	return c.registry.EnsureUser(ctx, userID)
}

func (c *exiliumCore) GetEconomySystem() EconomySystem     { return c.economySystem }
func (c *exiliumCore) GetInventorySystem() InventorySystem { return c.inventorySystem }
func (c *exiliumCore) GetMarketSystem() MarketSystem       { return c.marketSystem }
func (c *exiliumCore) GetLootboxSystem() LootboxSystem     { return c.lootboxSystem }
func (c *exiliumCore) GetShopSystem() ShopSystem           { return c.shopSystem }

func (c *exiliumCore) Economia() *EconomiaConfig {
	c.economiaMu.RLock()
	defer c.economiaMu.RUnlock()
	return c.economia
}

func (c *exiliumCore) ImportEconomia(ctx context.Context, cfg *EconomiaConfig) error {
	if cfg == nil {
		return ErrBadInput
	}
	if err := c.store.SetEconomia(ctx, cfg); err != nil {
		return err
	}
	c.economiaMu.Lock()
	c.economia = cfg
	c.economiaMu.Unlock()
	c.log.Info("economy reference data imported")
	return nil
}

// topBy ranks users by the extracted value, highest first, ties broken by
// user id for a stable order.
func (c *exiliumCore) topBy(ctx context.Context, n int, value func(*UserRecord) int64) ([]RankEntry, error) {
	if n <= 0 {
		return nil, ErrBadInput
	}
	users, err := c.snap.All(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]RankEntry, 0, len(users))
	for id, rec := range users {
		entries = append(entries, RankEntry{UserID: id, Value: value(rec)})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Value == entries[j].Value {
			return entries[i].UserID < entries[j].UserID
		}
		return entries[i].Value > entries[j].Value
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

func (c *exiliumCore) TopSouls(ctx context.Context, n int) ([]RankEntry, error) {
	return c.topBy(ctx, n, func(r *UserRecord) int64 { return r.Souls })
}

func (c *exiliumCore) TopTempo(ctx context.Context, n int) ([]RankEntry, error) {
	return c.topBy(ctx, n, func(r *UserRecord) int64 { return r.TempoTotal })
}

func (c *exiliumCore) TopXP(ctx context.Context, n int) ([]RankEntry, error) {
	return c.topBy(ctx, n, func(r *UserRecord) int64 { return r.XP })
}

func (c *exiliumCore) Close(ctx context.Context) error {
	return c.store.Close(ctx)
}
