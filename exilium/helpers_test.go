package exilium

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testCore holds a fully wired core over a throwaway file store.
type testCore struct {
	store     *FileStore
	snap      *Snapshot
	locks     *userLocks
	registry  *UserRegistry
	economia  *EconomiaConfig
	economy   *StoreEconomySystem
	inventory *StoreInventorySystem
	market    *StoreMarketSystem
	lootbox   *StoreLootboxSystem
	shop      *StoreShopSystem
	notifier  *recordingNotifier
}

type recordingNotifier struct {
	notices []*SaleNotice
	fail    bool
}

func (n *recordingNotifier) NotifySale(ctx context.Context, sellerID string, notice *SaleNotice) error {
	if n.fail {
		return ErrInternal
	}
	n.notices = append(n.notices, notice)
	return nil
}

func testLogger() *zap.Logger { return zap.NewNop() }

func newTestCore(t *testing.T) *testCore {
	t.Helper()
	ctx := context.Background()
	log := zap.NewNop()

	store, err := OpenFileStore(filepath.Join(t.TempDir(), "db.json"))
	require.NoError(t, err)
	snap, err := NewSnapshot(ctx, store, DefaultSnapshotTTL)
	require.NoError(t, err)

	c := &testCore{
		store:    store,
		snap:     snap,
		locks:    newUserLocks(),
		economia: DefaultEconomia(),
		notifier: &recordingNotifier{},
	}
	c.registry = NewUserRegistry(snap, c.locks)
	economiaFn := func() *EconomiaConfig { return c.economia }

	rng := rand.New(rand.NewSource(1))
	c.economy = NewStoreEconomySystem(c.registry, c.locks, log, rng)
	c.inventory = NewStoreInventorySystem(c.registry, c.locks, economiaFn, log)
	c.lootbox = NewStoreLootboxSystem(c.registry, c.economy, c.inventory, economiaFn, log, rng)
	c.shop = NewStoreShopSystem(c.registry, c.locks, c.economy, c.inventory, economiaFn, log, rng)
	c.market, err = NewStoreMarketSystem(ctx, c.registry, c.economy, c.inventory, store, economiaFn, c.notifier, log)
	require.NoError(t, err)
	return c
}

// grantSouls puts souls in an account without going through cooldown-gated
// rewards.
func grantSouls(t *testing.T, c *testCore, userID string, amount int64) {
	t.Helper()
	_, err := c.economy.AddSouls(context.Background(), userID, amount)
	require.NoError(t, err)
}

func grantItems(t *testing.T, c *testCore, userID, itemID string, qty int64) {
	t.Helper()
	require.NoError(t, c.inventory.AddItem(context.Background(), userID, itemID, qty))
}
