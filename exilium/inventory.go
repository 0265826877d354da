package exilium

import (
	"context"

	"go.uber.org/zap"
)

// InventorySystem tracks item quantities and equipped passive items.
type InventorySystem interface {
	// Inventory returns the item quantities and equipped set for a user.
	Inventory(ctx context.Context, userID string) (items map[string]int64, equipped map[string]bool, err error)
	// AddItem increments the quantity, creating the entry if absent.
	AddItem(ctx context.Context, userID, itemID string, qty int64) error
	// RemoveItem decrements the quantity, failing with
	// ErrInsufficientItems and no mutation when the owned quantity is
	// short. The entry is deleted entirely when it reaches zero.
	RemoveItem(ctx context.Context, userID, itemID string, qty int64) error
	// Equip marks an owned passive item as active. Equipping does not
	// consume the item.
	Equip(ctx context.Context, userID, itemID string) error
	// Unequip removes an item from the equipped set.
	Unequip(ctx context.Context, userID, itemID string) error
}

// StoreInventorySystem implements InventorySystem over the snapshot view.
type StoreInventorySystem struct {
	registry *UserRegistry
	locks    *userLocks
	economia func() *EconomiaConfig
	log      *zap.Logger
}

// NewStoreInventorySystem creates the inventory store. economia supplies
// the current reference data; only the passive-items catalog is consulted,
// for equip validation.
func NewStoreInventorySystem(registry *UserRegistry, locks *userLocks, economia func() *EconomiaConfig, log *zap.Logger) *StoreInventorySystem {
	return &StoreInventorySystem{registry: registry, locks: locks, economia: economia, log: log}
}

func (i *StoreInventorySystem) Inventory(ctx context.Context, userID string) (map[string]int64, map[string]bool, error) {
	uid, err := i.registry.EnsureUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	unlock := i.locks.lock(uid)
	defer unlock()
	rec, err := i.registry.get(ctx, uid)
	if err != nil {
		return nil, nil, err
	}
	return rec.Itens, rec.Equipados, nil
}

func (i *StoreInventorySystem) AddItem(ctx context.Context, userID, itemID string, qty int64) error {
	if itemID == "" || qty < 1 {
		return ErrBadInput
	}
	uid, err := i.registry.EnsureUser(ctx, userID)
	if err != nil {
		return err
	}
	unlock := i.locks.lock(uid)
	defer unlock()
	rec, err := i.registry.get(ctx, uid)
	if err != nil {
		return err
	}
	rec.Itens[itemID] += qty
	return i.registry.put(ctx, uid, rec)
}

func (i *StoreInventorySystem) RemoveItem(ctx context.Context, userID, itemID string, qty int64) error {
	if itemID == "" || qty < 1 {
		return ErrBadInput
	}
	uid, err := i.registry.EnsureUser(ctx, userID)
	if err != nil {
		return err
	}
	unlock := i.locks.lock(uid)
	defer unlock()
	rec, err := i.registry.get(ctx, uid)
	if err != nil {
		return err
	}
	owned := rec.Itens[itemID]
	if owned < qty {
		return ErrInsufficientItems
	}
	if owned == qty {
		delete(rec.Itens, itemID)
	} else {
		rec.Itens[itemID] = owned - qty
	}
	return i.registry.put(ctx, uid, rec)
}

func (i *StoreInventorySystem) Equip(ctx context.Context, userID, itemID string) error {
	if itemID == "" {
		return ErrBadInput
	}
	if cfg := i.economia(); cfg != nil {
		if _, ok := cfg.ItensPassivos[itemID]; !ok {
			return ErrBadInput
		}
	}
	uid, err := i.registry.EnsureUser(ctx, userID)
	if err != nil {
		return err
	}
	unlock := i.locks.lock(uid)
	defer unlock()
	rec, err := i.registry.get(ctx, uid)
	if err != nil {
		return err
	}
	if rec.Itens[itemID] < 1 {
		return ErrInsufficientItems
	}
	rec.Equipados[itemID] = true
	return i.registry.put(ctx, uid, rec)
}

func (i *StoreInventorySystem) Unequip(ctx context.Context, userID, itemID string) error {
	if itemID == "" {
		return ErrBadInput
	}
	uid, err := i.registry.EnsureUser(ctx, userID)
	if err != nil {
		return err
	}
	unlock := i.locks.lock(uid)
	defer unlock()
	rec, err := i.registry.get(ctx, uid)
	if err != nil {
		return err
	}
	if !rec.Equipados[itemID] {
		return ErrNotEquipped
	}
	delete(rec.Equipados, itemID)
	return i.registry.put(ctx, uid, rec)
}
