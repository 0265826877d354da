package exilium

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndRemoveItems(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	grantItems(t, c, "user1", "minerio_ferro", 5)
	items, _, err := c.inventory.Inventory(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), items["minerio_ferro"])

	require.NoError(t, c.inventory.RemoveItem(ctx, "user1", "minerio_ferro", 2))
	items, _, err = c.inventory.Inventory(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), items["minerio_ferro"])
}

func TestRemoveItemInsufficient(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	grantItems(t, c, "user1", "minerio_ferro", 2)
	err := c.inventory.RemoveItem(ctx, "user1", "minerio_ferro", 3)
	assert.ErrorIs(t, err, ErrInsufficientItems)

	// Quantity untouched after the failed removal.
	items, _, err := c.inventory.Inventory(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), items["minerio_ferro"])
}

func TestRemoveItemDeletesZeroEntry(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	grantItems(t, c, "user1", "minerio_ferro", 2)
	require.NoError(t, c.inventory.RemoveItem(ctx, "user1", "minerio_ferro", 2))

	items, _, err := c.inventory.Inventory(ctx, "user1")
	require.NoError(t, err)
	_, present := items["minerio_ferro"]
	assert.False(t, present, "zero-quantity entries must be deleted, not stored")
}

func TestEquipRequiresOwnershipAndCatalog(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	// Not in the passive catalog.
	err := c.inventory.Equip(ctx, "user1", "minerio_ferro")
	assert.ErrorIs(t, err, ErrBadInput)

	// In the catalog but not owned.
	err = c.inventory.Equip(ctx, "user1", "amuleto_sorte")
	assert.ErrorIs(t, err, ErrInsufficientItems)

	grantItems(t, c, "user1", "amuleto_sorte", 1)
	require.NoError(t, c.inventory.Equip(ctx, "user1", "amuleto_sorte"))

	items, equipped, err := c.inventory.Inventory(ctx, "user1")
	require.NoError(t, err)
	assert.True(t, equipped["amuleto_sorte"])
	// Equipping does not consume the item.
	assert.Equal(t, int64(1), items["amuleto_sorte"])
}

func TestUnequip(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	err := c.inventory.Unequip(ctx, "user1", "amuleto_sorte")
	assert.ErrorIs(t, err, ErrNotEquipped)

	grantItems(t, c, "user1", "amuleto_sorte", 1)
	require.NoError(t, c.inventory.Equip(ctx, "user1", "amuleto_sorte"))
	require.NoError(t, c.inventory.Unequip(ctx, "user1", "amuleto_sorte"))

	_, equipped, err := c.inventory.Inventory(ctx, "user1")
	require.NoError(t, err)
	assert.False(t, equipped["amuleto_sorte"])
}
