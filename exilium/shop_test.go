package exilium

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuyItem(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	grantSouls(t, c, "user1", 500)
	res, err := c.shop.BuyItem(ctx, "user1", "lootbox_nivel1", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(300), res.Total)
	assert.Equal(t, int64(200), res.Balance)

	items, _, err := c.inventory.Inventory(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), items["lootbox_nivel1"])
}

func TestBuyItemUnknownOrUnaffordable(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	_, err := c.shop.BuyItem(ctx, "user1", "nope", 1)
	assert.ErrorIs(t, err, ErrNotFound)

	grantSouls(t, c, "user1", 100)
	_, err = c.shop.BuyItem(ctx, "user1", "lootbox_nivel1", 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSellItemUsesRarityMultiplier(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	// minerio_ferro: base 20, comum multiplier 1.0 -> int(20*1.0*0.7) = 14.
	grantItems(t, c, "user1", "minerio_ferro", 3)
	res, err := c.shop.SellItem(ctx, "user1", "minerio_ferro", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.Total)

	// espada_ferro: base 300, raro multiplier 1.5 -> int(300*1.5*0.7) = 315.
	grantItems(t, c, "user1", "espada_ferro", 1)
	res, err = c.shop.SellItem(ctx, "user1", "espada_ferro", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(315), res.Total)
}

func TestSellItemRequiresOwnership(t *testing.T) {
	c := newTestCore(t)
	_, err := c.shop.SellItem(context.Background(), "user1", "minerio_ferro", 1)
	assert.ErrorIs(t, err, ErrInsufficientItems)
}

func TestForgeItemSuccess(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	// Zero failure rate makes the roll irrelevant.
	c.economia.ItensForja["espada_ferro"].TaxaFalha = 0

	grantSouls(t, c, "user1", 500)
	grantItems(t, c, "user1", "minerio_ferro", 5)

	res, err := c.shop.ForgeItem(ctx, "user1", "espada_ferro")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(200), res.Cost)
	assert.Equal(t, int64(300), res.Balance)

	items, _, err := c.inventory.Inventory(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), items["espada_ferro"])
	_, present := items["minerio_ferro"]
	assert.False(t, present, "ingredients must be consumed")
}

// A failed forge still consumes the cost and ingredients but produces
// nothing; total wealth only decreases.
func TestForgeItemFailureConsumesInputs(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	// rand.Float64 is always < 1, so a failure rate of 1 always fails.
	c.economia.ItensForja["espada_ferro"].TaxaFalha = 1.0

	grantSouls(t, c, "user1", 500)
	grantItems(t, c, "user1", "minerio_ferro", 5)

	res, err := c.shop.ForgeItem(ctx, "user1", "espada_ferro")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, int64(300), res.Balance)

	items, _, err := c.inventory.Inventory(ctx, "user1")
	require.NoError(t, err)
	_, present := items["espada_ferro"]
	assert.False(t, present)
	_, present = items["minerio_ferro"]
	assert.False(t, present)
}

// Two concurrent forges race for materials that only cover one attempt: the
// loser must fail without keeping its soul debit.
func TestConcurrentForgeLoserConsumesNothing(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	c.economia.ItensForja["espada_ferro"].TaxaFalha = 0
	grantSouls(t, c, "user1", 400)
	grantItems(t, c, "user1", "minerio_ferro", 5)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.shop.ForgeItem(ctx, "user1", "espada_ferro")
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientItems)
		}
	}
	assert.Equal(t, 1, winners)

	// Exactly one cost was paid and one sword produced.
	bal, err := c.economy.Balance(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), bal)
	items, _, err := c.inventory.Inventory(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), items["espada_ferro"])
	_, present := items["minerio_ferro"]
	assert.False(t, present)
}

func TestForgeItemPreconditions(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	_, err := c.shop.ForgeItem(ctx, "user1", "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	// Missing ingredients fail before anything is consumed.
	grantSouls(t, c, "user1", 500)
	_, err = c.shop.ForgeItem(ctx, "user1", "espada_ferro")
	assert.ErrorIs(t, err, ErrInsufficientItems)
	bal, err := c.economy.Balance(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), bal)

	// Missing souls fail after the ingredient check, also without consuming.
	c2 := newTestCore(t)
	grantItems(t, c2, "user1", "minerio_ferro", 5)
	_, err = c2.shop.ForgeItem(ctx, "user1", "espada_ferro")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	items, _, err := c2.inventory.Inventory(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), items["minerio_ferro"])
}
