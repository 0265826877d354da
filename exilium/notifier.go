package exilium

import (
	"context"

	"go.uber.org/zap"
)

// SaleNotice describes a completed sale for the seller's benefit.
type SaleNotice struct {
	ListingID string `json:"listing_id"`
	BuyerID   string `json:"buyer_id"`
	ItemID    string `json:"item_id"`
	Quantity  int64  `json:"quantity"`
	Proceeds  int64  `json:"proceeds"`
}

// Notifier delivers best-effort messages to users. A failing notifier never
// fails the operation that triggered it; the outcome is surfaced in the
// operation's result instead of being silently dropped.
type Notifier interface {
	NotifySale(ctx context.Context, sellerID string, notice *SaleNotice) error
}

// LogNotifier is the default Notifier: it just logs. The chat front end
// installs its own implementation to DM sellers.
type LogNotifier struct {
	Log *zap.Logger
}

func (n *LogNotifier) NotifySale(ctx context.Context, sellerID string, notice *SaleNotice) error {
	n.Log.Info("sale completed",
		zap.String("seller", sellerID),
		zap.String("buyer", notice.BuyerID),
		zap.String("item", notice.ItemID),
		zap.Int64("quantity", notice.Quantity),
		zap.Int64("proceeds", notice.Proceeds))
	return nil
}
