// Package engine exposes the boundary operations of the taxonomy subsystem:
// discover, provision, save mapping, get mapping.
//
// An Engine is built once at process start with its collaborators passed in
// explicitly; request handlers and CLI commands hold the one instance and
// never reach for globals.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/canopymail/canopy/internal/mapping"
	"github.com/canopymail/canopy/internal/provider"
	"github.com/canopymail/canopy/internal/suggest"
	"github.com/canopymail/canopy/internal/taxonomy"
)

// AdapterFactory builds a per-user provider adapter with valid credentials.
// Implementations return provider.ErrAuthRequired when no usable credential
// exists for the user.
type AdapterFactory interface {
	For(ctx context.Context, userID string, p provider.Provider) (provider.Adapter, error)
}

// Engine wires the taxonomy registry, provider adapters, suggestion engine,
// and mapping store behind the four boundary operations.
type Engine struct {
	factory AdapterFactory
	store   *mapping.Store
}

// New constructs an Engine. It validates every taxonomy variant up front so
// a malformed canonical definition fails at startup, not mid-request.
func New(factory AdapterFactory, store *mapping.Store) (*Engine, error) {
	if err := taxonomy.ValidateAll(); err != nil {
		return nil, err
	}
	return &Engine{factory: factory, store: store}, nil
}

// Existing is the discovery half of a DiscoverResponse.
type Existing struct {
	TotalItems  int                       `json:"total_items"`
	UserItems   int                       `json:"user_items"`
	SystemItems int                       `json:"system_items"`
	Items       []provider.DiscoveredItem `json:"items"`
	Taxonomy    []*provider.TreeNode      `json:"taxonomy"`
}

// DiscoverResponse is the payload of the discover boundary operation.
type DiscoverResponse struct {
	Existing         Existing                           `json:"existing"`
	SuggestedMapping map[string]suggest.MappingEntry    `json:"suggested_mapping"`
	Suggestions      []suggest.Suggestion               `json:"suggestions"`
	Analysis         suggest.Analysis                   `json:"analysis"`
	MissingCount     int                                `json:"missing_count"`
	DiscoveredAt     time.Time                          `json:"discovered_at"`
}

// Discover enumerates the user's existing labels/folders and computes
// reuse-or-create suggestions against the business type's canonical taxonomy.
func (e *Engine) Discover(ctx context.Context, userID string, p provider.Provider, businessType string) (*DiscoverResponse, error) {
	adapter, err := e.factory.For(ctx, userID, p)
	if err != nil {
		return nil, err
	}

	discovery, err := adapter.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover %s for %s: %w", p, userID, err)
	}
	result := suggest.Suggest(discovery, businessType)

	slog.Info("discovery complete",
		"user", userID, "provider", p,
		"items", discovery.TotalItems, "missing", result.MissingCount,
		"automation_score", result.Analysis.AutomationScore)

	return &DiscoverResponse{
		Existing: Existing{
			TotalItems:  discovery.TotalItems,
			UserItems:   discovery.UserItems,
			SystemItems: discovery.SystemItems,
			Items:       discovery.Items,
			Taxonomy:    discovery.Taxonomy,
		},
		SuggestedMapping: result.SuggestedMapping,
		Suggestions:      result.Suggestions,
		Analysis:         result.Analysis,
		MissingCount:     result.MissingCount,
		DiscoveredAt:     discovery.DiscoveredAt,
	}, nil
}

// ProvisionSummary totals one provisioning call.
type ProvisionSummary struct {
	TotalRequested int `json:"total_requested"`
	TotalCreated   int `json:"total_created"`
	TotalSkipped   int `json:"total_skipped"`
	TotalFailed    int `json:"total_failed"`
}

// ProvisionResponse is the payload of the provision boundary operation.
// It is returned even when some items failed; only an auth or validation
// precondition fails the call as a whole.
type ProvisionResponse struct {
	Created       []provider.CreatedItem `json:"created"`
	Skipped       []provider.SkippedItem `json:"skipped"`
	Failed        []provider.FailedItem  `json:"failed"`
	Summary       ProvisionSummary       `json:"summary"`
	ProvisionedAt time.Time              `json:"provisioned_at"`
}

// Provision idempotently creates the approved items against the provider.
func (e *Engine) Provision(ctx context.Context, userID string, p provider.Provider, items []provider.ProvisionItem) (*ProvisionResponse, error) {
	if err := provider.ValidateItems(items); err != nil {
		return nil, err
	}
	adapter, err := e.factory.For(ctx, userID, p)
	if err != nil {
		return nil, err
	}

	report, err := adapter.Provision(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("provision %s for %s: %w", p, userID, err)
	}

	return &ProvisionResponse{
		Created: report.Created,
		Skipped: report.Skipped,
		Failed:  report.Failed,
		Summary: ProvisionSummary{
			TotalRequested: len(items),
			TotalCreated:   len(report.Created),
			TotalSkipped:   len(report.Skipped),
			TotalFailed:    len(report.Failed),
		},
		ProvisionedAt: time.Now().UTC(),
	}, nil
}

// SaveMappingResponse is the payload of the saveMapping boundary operation.
type SaveMappingResponse struct {
	ClientID  string `json:"client_id"`
	Version   int    `json:"version"`
	UpdatedAt string `json:"updated_at"`
}

// SaveMapping persists the user-approved mapping with a monotonic version.
// An empty clientID gets a generated correlation ID.
func (e *Engine) SaveMapping(ctx context.Context, userID string, p provider.Provider, clientID string, m map[string]mapping.ItemRef) (*SaveMappingResponse, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("%w: %q", provider.ErrUnknownProvider, p)
	}
	if clientID == "" {
		clientID = uuid.NewString()
	}

	version, updatedAt, err := e.store.Save(ctx, userID, string(p), clientID, m)
	if err != nil {
		return nil, err
	}

	slog.Info("mapping saved", "user", userID, "provider", p, "version", version)
	return &SaveMappingResponse{ClientID: clientID, Version: version, UpdatedAt: updatedAt}, nil
}

// GetMapping returns the current persisted mapping, or mapping.ErrNotFound.
func (e *Engine) GetMapping(ctx context.Context, userID string, p provider.Provider) (*mapping.Record, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("%w: %q", provider.ErrUnknownProvider, p)
	}
	return e.store.Get(ctx, userID, string(p))
}
