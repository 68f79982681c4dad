package mapping

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "canopy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleMapping() map[string]ItemRef {
	return map[string]ItemRef{
		"URGENT":          {ItemID: "Label_1", Path: []string{"Urgent"}},
		"SALES_NEW_LEADS": {ItemID: "Label_2", Path: []string{"Sales", "New Leads"}},
	}
}

func TestSaveVersionMonotonicity(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for want := 1; want <= 5; want++ {
		version, updatedAt, err := store.Save(ctx, "user-1", "gmail", "client-1", sampleMapping())
		require.NoError(t, err)
		assert.Equal(t, want, version)
		assert.NotEmpty(t, updatedAt)
	}
}

func TestSaveIsolatesUserProviderPairs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	v, _, err := store.Save(ctx, "user-1", "gmail", "", sampleMapping())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// A different provider for the same user starts its own version chain.
	v, _, err = store.Save(ctx, "user-1", "o365", "", sampleMapping())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, _, err = store.Save(ctx, "user-1", "gmail", "", sampleMapping())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestGetRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	m := sampleMapping()
	_, _, err := store.Save(ctx, "user-1", "gmail", "client-9", m)
	require.NoError(t, err)

	rec, err := store.Get(ctx, "user-1", "gmail")
	require.NoError(t, err)
	assert.Equal(t, "user-1", rec.UserID)
	assert.Equal(t, "gmail", rec.Provider)
	assert.Equal(t, "client-9", rec.ClientID)
	assert.Equal(t, 1, rec.Version)
	assert.Equal(t, m, rec.Mapping)
	assert.NotEmpty(t, rec.CreatedAt)
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)
}

func TestGetNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(context.Background(), "nobody", "gmail")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSaveUpdatesKeepCreatedAt(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, _, err := store.Save(ctx, "user-1", "gmail", "", sampleMapping())
	require.NoError(t, err)
	first, err := store.Get(ctx, "user-1", "gmail")
	require.NoError(t, err)

	m := sampleMapping()
	m["SUPPORT"] = ItemRef{ItemID: "Label_3"}
	_, _, err = store.Save(ctx, "user-1", "gmail", "", m)
	require.NoError(t, err)

	second, err := store.Get(ctx, "user-1", "gmail")
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, 2, second.Version)
	assert.Contains(t, second.Mapping, "SUPPORT")
}

func TestValidateMapping(t *testing.T) {
	assert.NoError(t, ValidateMapping(sampleMapping()))

	err := ValidateMapping(nil)
	require.ErrorIs(t, err, ErrInvalidMapping)

	err = ValidateMapping(map[string]ItemRef{"": {ItemID: "x"}})
	require.ErrorIs(t, err, ErrInvalidMapping)

	err = ValidateMapping(map[string]ItemRef{"URGENT": {}})
	require.ErrorIs(t, err, ErrInvalidMapping)
}

func TestSaveRejectsInvalidMapping(t *testing.T) {
	store := openTestStore(t)

	_, _, err := store.Save(context.Background(), "user-1", "gmail", "", nil)
	require.ErrorIs(t, err, ErrInvalidMapping)

	// Nothing was written.
	_, err = store.Get(context.Background(), "user-1", "gmail")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUsers(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	assert.Empty(t, store.Users())

	_, _, err := store.Save(ctx, "bob@acme.com", "gmail", "", sampleMapping())
	require.NoError(t, err)
	_, _, err = store.Save(ctx, "ada@acme.com", "gmail", "", sampleMapping())
	require.NoError(t, err)
	_, _, err = store.Save(ctx, "ada@acme.com", "o365", "", sampleMapping())
	require.NoError(t, err)

	// Distinct, sorted, one entry per user regardless of provider count.
	assert.Equal(t, []string{"ada@acme.com", "bob@acme.com"}, store.Users())
}
