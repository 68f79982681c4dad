package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopymail/canopy/internal/mapping"
	"github.com/canopymail/canopy/internal/provider"
)

// fakeAdapter returns canned discovery and provisioning results.
type fakeAdapter struct {
	p         provider.Provider
	discovery *provider.DiscoveryResult
	report    *provider.ProvisionReport
	err       error

	provisioned []provider.ProvisionItem
}

func (f *fakeAdapter) Provider() provider.Provider { return f.p }

func (f *fakeAdapter) Discover(ctx context.Context) (*provider.DiscoveryResult, error) {
	return f.discovery, f.err
}

func (f *fakeAdapter) Provision(ctx context.Context, items []provider.ProvisionItem) (*provider.ProvisionReport, error) {
	f.provisioned = items
	return f.report, f.err
}

// fakeFactory hands out one adapter per provider, or an error.
type fakeFactory struct {
	adapters map[provider.Provider]*fakeAdapter
	err      error

	lastUser string
}

func (f *fakeFactory) For(ctx context.Context, userID string, p provider.Provider) (provider.Adapter, error) {
	f.lastUser = userID
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.adapters[p]
	if !ok {
		return nil, provider.ErrUnknownProvider
	}
	return a, nil
}

func newTestEngine(t *testing.T, factory AdapterFactory) *Engine {
	t.Helper()
	store, err := mapping.Open(filepath.Join(t.TempDir(), "canopy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	eng, err := New(factory, store)
	require.NoError(t, err)
	return eng
}

func sampleDiscovery() *provider.DiscoveryResult {
	items := []provider.DiscoveredItem{
		{ID: "s1", Name: "INBOX", Path: []string{"INBOX"}, Type: provider.TypeSystem},
		{ID: "u1", Name: "Urgent", Path: []string{"Urgent"}, Type: provider.TypeUser},
		{ID: "u2", Name: "Random", Path: []string{"Random"}, Type: provider.TypeUser},
	}
	res := &provider.DiscoveryResult{
		Provider:     provider.Gmail,
		Items:        items,
		TotalItems:   3,
		UserItems:    2,
		SystemItems:  1,
		Taxonomy:     provider.BuildTree(items[1:]),
		DiscoveredAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	return res
}

func TestEngineDiscover(t *testing.T) {
	adapter := &fakeAdapter{p: provider.Gmail, discovery: sampleDiscovery()}
	factory := &fakeFactory{adapters: map[provider.Provider]*fakeAdapter{provider.Gmail: adapter}}
	eng := newTestEngine(t, factory)

	res, err := eng.Discover(context.Background(), "ada@example.com", provider.Gmail, "default")
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", factory.lastUser)
	assert.Equal(t, 3, res.Existing.TotalItems)
	assert.Equal(t, 2, res.Existing.UserItems)
	assert.Equal(t, 1, res.Existing.SystemItems)
	assert.Equal(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), res.DiscoveredAt)

	// "Urgent" matches the canonical URGENT item exactly.
	entry, ok := res.SuggestedMapping["URGENT"]
	require.True(t, ok)
	assert.Equal(t, "u1", entry.MatchedItemID)
	assert.Positive(t, res.MissingCount)
	assert.Greater(t, res.Analysis.AutomationScore, 0.0)
}

func TestEngineDiscoverAuthError(t *testing.T) {
	factory := &fakeFactory{err: provider.ErrAuthRequired}
	eng := newTestEngine(t, factory)

	_, err := eng.Discover(context.Background(), "ada@example.com", provider.Gmail, "default")
	require.ErrorIs(t, err, provider.ErrAuthRequired)
}

func TestEngineProvision(t *testing.T) {
	adapter := &fakeAdapter{
		p: provider.Gmail,
		report: &provider.ProvisionReport{
			Created: []provider.CreatedItem{{Path: []string{"SALES"}, ProviderID: "Label_1"}},
			Skipped: []provider.SkippedItem{{Path: []string{"URGENT"}, Reason: provider.ReasonAlreadyExists}},
			Failed:  []provider.FailedItem{{Path: []string{"BROKEN"}, Error: "backend error"}},
		},
	}
	factory := &fakeFactory{adapters: map[provider.Provider]*fakeAdapter{provider.Gmail: adapter}}
	eng := newTestEngine(t, factory)

	items := []provider.ProvisionItem{
		{Path: []string{"SALES"}},
		{Path: []string{"URGENT"}},
		{Path: []string{"BROKEN"}},
	}
	res, err := eng.Provision(context.Background(), "ada@example.com", provider.Gmail, items)
	require.NoError(t, err)

	assert.Equal(t, items, adapter.provisioned)
	assert.Equal(t, 3, res.Summary.TotalRequested)
	assert.Equal(t, 1, res.Summary.TotalCreated)
	assert.Equal(t, 1, res.Summary.TotalSkipped)
	assert.Equal(t, 1, res.Summary.TotalFailed)
	assert.False(t, res.ProvisionedAt.IsZero())
}

func TestEngineProvisionRejectsBeforeDialing(t *testing.T) {
	factory := &fakeFactory{err: provider.ErrAuthRequired}
	eng := newTestEngine(t, factory)

	// Validation runs first, so the factory is never consulted.
	_, err := eng.Provision(context.Background(), "ada@example.com", provider.Gmail, nil)
	require.ErrorIs(t, err, provider.ErrValidation)
	assert.Empty(t, factory.lastUser)
}

func TestEngineSaveMapping(t *testing.T) {
	eng := newTestEngine(t, &fakeFactory{})
	ctx := context.Background()
	m := map[string]mapping.ItemRef{"URGENT": {ItemID: "Label_1"}}

	res, err := eng.SaveMapping(ctx, "ada@example.com", provider.Gmail, "", m)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Version)
	assert.NotEmpty(t, res.ClientID, "empty client id gets generated")

	res, err = eng.SaveMapping(ctx, "ada@example.com", provider.Gmail, "client-7", m)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Version)
	assert.Equal(t, "client-7", res.ClientID)

	rec, err := eng.GetMapping(ctx, "ada@example.com", provider.Gmail)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)
	assert.Equal(t, m, rec.Mapping)
}

func TestEngineSaveMappingUnknownProvider(t *testing.T) {
	eng := newTestEngine(t, &fakeFactory{})

	_, err := eng.SaveMapping(context.Background(), "ada@example.com", provider.Provider("hotmail"), "", nil)
	require.ErrorIs(t, err, provider.ErrUnknownProvider)
}

func TestEngineGetMappingNotFound(t *testing.T) {
	eng := newTestEngine(t, &fakeFactory{})

	_, err := eng.GetMapping(context.Background(), "nobody@example.com", provider.Gmail)
	require.ErrorIs(t, err, mapping.ErrNotFound)

	_, err = eng.GetMapping(context.Background(), "nobody@example.com", provider.Provider("hotmail"))
	require.ErrorIs(t, err, provider.ErrUnknownProvider)
}
