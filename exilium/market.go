package exilium

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PurchaseResult reports a completed purchase. SellerNotified records the
// best-effort notification outcome; a false value never means the purchase
// failed.
type PurchaseResult struct {
	Listing        *MarketListing `json:"listing"`
	Quantity       int64          `json:"quantity"`
	Total          int64          `json:"total"`
	Fee            int64          `json:"fee"`
	SellerProceeds int64          `json:"seller_proceeds"`
	Closed         bool           `json:"closed"`
	SellerNotified bool           `json:"seller_notified"`
}

// MarketSystem is the peer-to-peer market. Listing creation escrows the
// items by removing them from the seller's inventory; there is no separate
// escrow ledger.
type MarketSystem interface {
	// CreateListing validates and escrows, then persists the listing.
	CreateListing(ctx context.Context, sellerID, itemID string, qty, unitPrice int64) (*MarketListing, error)
	// ListListings returns the active listings, oldest first.
	ListListings(ctx context.Context) ([]*MarketListing, error)
	// CancelListing returns the escrowed items to the seller and removes
	// the listing. Only the seller may cancel.
	CancelListing(ctx context.Context, sellerID, listingID string) error
	// PurchaseListing buys qty units (qty <= 0 means all remaining).
	// The listing is decremented, or closed and removed when it reaches
	// zero. Closure is atomic: of two concurrent purchases racing for the
	// last unit exactly one succeeds, the other gets ErrNotFound.
	PurchaseListing(ctx context.Context, buyerID, listingID string, qty int64) (*PurchaseResult, error)
}

// StoreMarketSystem implements MarketSystem with an in-memory listing table
// written through to the store. A single mutex serializes every listing
// mutation, which is what makes double sales impossible in-process.
type StoreMarketSystem struct {
	registry  *UserRegistry
	economy   EconomySystem
	inventory InventorySystem
	store     Store
	economia  func() *EconomiaConfig
	notifier  Notifier
	log       *zap.Logger

	mu       sync.Mutex
	listings map[string]*MarketListing
}

// NewStoreMarketSystem loads the persisted listings and returns the market.
func NewStoreMarketSystem(ctx context.Context, registry *UserRegistry, economy EconomySystem, inventory InventorySystem, store Store, economia func() *EconomiaConfig, notifier Notifier, log *zap.Logger) (*StoreMarketSystem, error) {
	persisted, err := store.ListListings(ctx)
	if err != nil {
		return nil, err
	}
	listings := make(map[string]*MarketListing, len(persisted))
	for _, l := range persisted {
		listings[l.ID] = l
	}
	return &StoreMarketSystem{
		registry:  registry,
		economy:   economy,
		inventory: inventory,
		store:     store,
		economia:  economia,
		notifier:  notifier,
		log:       log,
		listings:  listings,
	}, nil
}

func (m *StoreMarketSystem) CreateListing(ctx context.Context, sellerID, itemID string, qty, unitPrice int64) (*MarketListing, error) {
	if itemID == "" || qty <= 0 || unitPrice <= 0 {
		return nil, ErrBadInput
	}
	seller, err := m.registry.EnsureUser(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	// Escrow first: the removal is the ownership transfer. RemoveItem
	// fails without mutation when the seller is short.
	if err := m.inventory.RemoveItem(ctx, seller, itemID, qty); err != nil {
		return nil, err
	}
	listing := &MarketListing{
		ID:        uuid.NewString(),
		SellerID:  seller,
		ItemID:    itemID,
		Quantity:  qty,
		UnitPrice: unitPrice,
		CreatedAt: time.Now().UTC(),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.PutListing(ctx, listing); err != nil {
		// Roll the escrow back rather than strand the items.
		if rbErr := m.inventory.AddItem(ctx, seller, itemID, qty); rbErr != nil {
			m.log.Error("escrow rollback failed",
				zap.String("seller", seller), zap.String("item", itemID), zap.Error(rbErr))
		}
		return nil, err
	}
	m.listings[listing.ID] = listing
	m.log.Info("listing created",
		zap.String("listing", listing.ID),
		zap.String("seller", seller),
		zap.String("item", itemID),
		zap.Int64("quantity", qty),
		zap.Int64("unit_price", unitPrice))
	cp := *listing
	return &cp, nil
}

func (m *StoreMarketSystem) ListListings(ctx context.Context) ([]*MarketListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MarketListing, 0, len(m.listings))
	for _, l := range m.listings {
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *StoreMarketSystem) CancelListing(ctx context.Context, sellerID, listingID string) error {
	seller, err := m.registry.EnsureUser(ctx, sellerID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	listing, ok := m.listings[listingID]
	if !ok {
		return ErrNotFound
	}
	if listing.SellerID != seller {
		return ErrBadInput
	}
	if err := m.store.DeleteListing(ctx, listingID); err != nil {
		return err
	}
	delete(m.listings, listingID)
	if err := m.inventory.AddItem(ctx, seller, listing.ItemID, listing.Quantity); err != nil {
		m.log.Error("escrow return failed on cancel",
			zap.String("listing", listingID), zap.Error(err))
		return err
	}
	m.log.Info("listing cancelled", zap.String("listing", listingID), zap.String("seller", seller))
	return nil
}

func (m *StoreMarketSystem) PurchaseListing(ctx context.Context, buyerID, listingID string, qty int64) (*PurchaseResult, error) {
	buyer, err := m.registry.EnsureUser(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	listing, ok := m.listings[listingID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	if listing.SellerID == buyer {
		m.mu.Unlock()
		return nil, ErrSelfPurchase
	}
	if qty <= 0 {
		qty = listing.Quantity
	}
	if qty > listing.Quantity {
		m.mu.Unlock()
		return nil, ErrBadInput
	}

	total := qty * listing.UnitPrice
	fee := int64(float64(total) * m.economia().FeePercent())

	// Debit the buyer while holding the market lock so the quantity check
	// above cannot be invalidated by a concurrent purchase. Insufficient
	// funds leaves everything untouched.
	if _, err := m.economy.RemoveSouls(ctx, buyer, total); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	if _, err := m.economy.AddSouls(ctx, listing.SellerID, total-fee); err != nil {
		m.log.Error("seller credit failed mid-purchase",
			zap.String("listing", listingID), zap.Error(err))
		if _, rbErr := m.economy.AddSouls(ctx, buyer, total); rbErr != nil {
			m.log.Error("buyer refund failed", zap.String("buyer", buyer), zap.Error(rbErr))
		}
		m.mu.Unlock()
		return nil, err
	}
	if err := m.inventory.AddItem(ctx, buyer, listing.ItemID, qty); err != nil {
		// Unwind both money movements: the listing still holds the items,
		// so neither side may keep souls from the aborted sale.
		m.log.Error("item delivery failed mid-purchase",
			zap.String("listing", listingID), zap.Error(err))
		if _, rbErr := m.economy.RemoveSouls(ctx, listing.SellerID, total-fee); rbErr != nil {
			m.log.Error("seller clawback failed",
				zap.String("seller", listing.SellerID), zap.Error(rbErr))
		}
		if _, rbErr := m.economy.AddSouls(ctx, buyer, total); rbErr != nil {
			m.log.Error("buyer refund failed", zap.String("buyer", buyer), zap.Error(rbErr))
		}
		m.mu.Unlock()
		return nil, err
	}

	listing.Quantity -= qty
	closed := listing.Quantity == 0
	if closed {
		delete(m.listings, listingID)
		if err := m.store.DeleteListing(ctx, listingID); err != nil {
			m.log.Warn("listing delete not persisted", zap.String("listing", listingID), zap.Error(err))
		}
	} else {
		if err := m.store.PutListing(ctx, listing); err != nil {
			m.log.Warn("listing decrement not persisted", zap.String("listing", listingID), zap.Error(err))
		}
	}
	result := &PurchaseResult{
		Listing:        &MarketListing{ID: listing.ID, SellerID: listing.SellerID, ItemID: listing.ItemID, Quantity: listing.Quantity, UnitPrice: listing.UnitPrice, CreatedAt: listing.CreatedAt},
		Quantity:       qty,
		Total:          total,
		Fee:            fee,
		SellerProceeds: total - fee,
		Closed:         closed,
	}
	m.mu.Unlock()

	// Best-effort: the sale already happened, a failed notification only
	// changes the result flag.
	notice := &SaleNotice{
		ListingID: listingID,
		BuyerID:   buyer,
		ItemID:    result.Listing.ItemID,
		Quantity:  qty,
		Proceeds:  total - fee,
	}
	if err := m.notifier.NotifySale(ctx, result.Listing.SellerID, notice); err != nil {
		m.log.Warn("seller notification failed",
			zap.String("listing", listingID), zap.Error(err))
	} else {
		result.SellerNotified = true
	}
	return result, nil
}
