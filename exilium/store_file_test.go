package exilium

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.json")

	store, err := OpenFileStore(path)
	require.NoError(t, err)

	rec := DefaultUserRecord()
	rec.Souls = 250
	rec.Itens["sword"] = 1
	require.NoError(t, store.SetUser(ctx, "user1", rec))
	require.NoError(t, store.SetEconomia(ctx, DefaultEconomia()))
	require.NoError(t, store.PutListing(ctx, &MarketListing{
		ID: "l1", SellerID: "user1", ItemID: "sword", Quantity: 1, UnitPrice: 10,
		CreatedAt: time.Now().UTC(),
	}))

	// A fresh store over the same file sees everything.
	store2, err := OpenFileStore(path)
	require.NoError(t, err)
	got, found, err := store2.GetUser(ctx, "user1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(250), got.Souls)
	assert.Equal(t, int64(1), got.Itens["sword"])

	economia, err := store2.GetEconomia(ctx)
	require.NoError(t, err)
	require.NotNil(t, economia)
	assert.Equal(t, 0.05, economia.MarketFeePercent)

	listings, err := store2.ListListings(ctx)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "l1", listings[0].ID)
}

func TestFileStoreReservedKeysNotUsers(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.json")

	store, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.SetUser(ctx, "user1", DefaultUserRecord()))
	require.NoError(t, store.SetEconomia(ctx, DefaultEconomia()))

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
	_, hasReserved := users["_economia"]
	assert.False(t, hasReserved)

	// The on-disk layout keeps the reserved key alongside the user ids.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := map[string]json.RawMessage{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "user1")
	assert.Contains(t, doc, "_economia")
}

func TestFileStoreCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store, err := OpenFileStore(path)
	require.NoError(t, err)
	users, err := store.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestFileStoreUpdateUserShallowMerge(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.json")

	store, err := OpenFileStore(path)
	require.NoError(t, err)
	rec := DefaultUserRecord()
	rec.Souls = 100
	rec.XP = 50
	require.NoError(t, store.SetUser(ctx, "user1", rec))

	require.NoError(t, store.UpdateUser(ctx, "user1", map[string]any{"soul": 999}))

	got, found, err := store.GetUser(ctx, "user1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(999), got.Souls)
	// Untouched fields survive the merge.
	assert.Equal(t, int64(50), got.XP)
}

func TestFileStoreDeleteUser(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.json")

	store, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.SetUser(ctx, "user1", DefaultUserRecord()))
	require.NoError(t, store.DeleteUser(ctx, "user1"))

	_, found, err := store.GetUser(ctx, "user1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDualStoreFileOnlyMode(t *testing.T) {
	ctx := context.Background()
	log := testLogger()

	store, err := OpenDualStore(ctx, DualStoreOptions{
		DataPath: filepath.Join(t.TempDir(), "db.json"),
	}, log)
	require.NoError(t, err)
	defer store.Close(ctx)

	assert.True(t, store.Fallback())
	require.NoError(t, store.SetUser(ctx, "user1", DefaultUserRecord()))
	_, found, err := store.GetUser(ctx, "user1")
	require.NoError(t, err)
	assert.True(t, found)
}
