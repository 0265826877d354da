package exilium

import (
	"context"
	"time"
)

// MarketListing is a live market offer. Creating a listing removes the
// quantity from the seller's inventory immediately: the listing is the
// escrow. It is decremented or deleted on purchase and never otherwise
// mutated.
type MarketListing struct {
	ID        string    `json:"id" bson:"_id"`
	SellerID  string    `json:"seller_id" bson:"seller_id"`
	ItemID    string    `json:"item_id" bson:"item_id"`
	Quantity  int64     `json:"quantity" bson:"quantity"`
	UnitPrice int64     `json:"unit_price" bson:"unit_price"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Store is the uniform persistence contract over user documents, market
// listings and economy reference data. Implementations never return an
// error for a missing user; GetUser reports absence through the second
// return value instead.
type Store interface {
	GetUser(ctx context.Context, userID string) (*UserRecord, bool, error)
	// SetUser is a full replace upsert.
	SetUser(ctx context.Context, userID string, rec *UserRecord) error
	// UpdateUser is a shallow merge upsert of the given fields.
	UpdateUser(ctx context.Context, userID string, fields map[string]any) error
	DeleteUser(ctx context.Context, userID string) error
	ListUsers(ctx context.Context) (map[string]*UserRecord, error)

	ListListings(ctx context.Context) ([]*MarketListing, error)
	PutListing(ctx context.Context, listing *MarketListing) error
	DeleteListing(ctx context.Context, listingID string) error

	GetEconomia(ctx context.Context) (*EconomiaConfig, error)
	SetEconomia(ctx context.Context, cfg *EconomiaConfig) error

	Close(ctx context.Context) error
}
