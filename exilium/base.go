package exilium

import (
	"context"
	"fmt"
)

// Error is a typed failure with a grpc-style numeric code, so callers can
// distinguish expected business conditions from internal faults without
// string matching.
type Error struct {
	Message string
	Code    int
}

func (e *Error) Error() string {
	return e.Message
}

// NewError returns a typed error with the given message and code.
func NewError(message string, code int) *Error {
	return &Error{Message: message, Code: code}
}

// Errorf returns a typed error with a formatted message.
func Errorf(code int, format string, v ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, v...), Code: code}
}

var (
	ErrInternal          = NewError("internal error occurred", INTERNAL_ERROR_CODE)
	ErrBadInput          = NewError("bad input", INVALID_ARGUMENT_ERROR_CODE)
	ErrNotFound          = NewError("not found", NOT_FOUND_ERROR_CODE)
	ErrInsufficientFunds = NewError("insufficient souls", FAILED_PRECONDITION_ERROR_CODE)
	ErrInsufficientItems = NewError("insufficient items", FAILED_PRECONDITION_ERROR_CODE)
	ErrNotEquipped       = NewError("item not equipped", FAILED_PRECONDITION_ERROR_CODE)
	ErrCooldownActive    = NewError("cooldown active", FAILED_PRECONDITION_ERROR_CODE)
	ErrSelfPurchase      = NewError("cannot buy your own listing", INVALID_ARGUMENT_ERROR_CODE)
)

// Exilium combines the gameplay systems built on top of the record store.
// Command handlers talk to the core exclusively through this surface and
// receive plain values or typed errors back.
type Exilium interface {
	// EnsureUser creates or backfills the record for the given user and
	// returns the canonical string key for subsequent operations.
	EnsureUser(ctx context.Context, userID string) (string, error)

	GetEconomySystem() EconomySystem
	GetInventorySystem() InventorySystem
	GetMarketSystem() MarketSystem
	GetLootboxSystem() LootboxSystem
	GetShopSystem() ShopSystem

	// Economia returns the read-only economy reference data.
	Economia() *EconomiaConfig
	// ImportEconomia replaces the economy reference data. Administrative
	// use only; gameplay never mutates it.
	ImportEconomia(ctx context.Context, cfg *EconomiaConfig) error

	TopSouls(ctx context.Context, n int) ([]RankEntry, error)
	TopTempo(ctx context.Context, n int) ([]RankEntry, error)
	TopXP(ctx context.Context, n int) ([]RankEntry, error)

	Close(ctx context.Context) error
}

// RankEntry is one row of a ranking, highest value first.
type RankEntry struct {
	UserID string `json:"user_id"`
	Value  int64  `json:"value"`
}
