// Package provider adapts email providers (Gmail, Office 365) to one
// discovery/provisioning contract.
//
// Gmail exposes a flat label namespace where "Parent/Child" names simulate
// nesting; Office 365 exposes truly nested mail folders. Both are normalized into
// DiscoveredItem values whose Path carries the hierarchy, root first.
package provider

import (
	"sort"
	"strings"
	"time"
)

// Provider identifies a supported email provider.
type Provider string

const (
	Gmail Provider = "gmail"
	O365  Provider = "o365"
)

// ValidProviders is the closed set of supported providers.
var ValidProviders = []Provider{Gmail, O365}

// IsValid checks if p names a supported provider.
func (p Provider) IsValid() bool {
	for _, v := range ValidProviders {
		if v == p {
			return true
		}
	}
	return false
}

// ItemType distinguishes user-created items from provider system items.
type ItemType string

const (
	TypeUser   ItemType = "user"
	TypeSystem ItemType = "system"
)

// DiscoveredItem is a normalized provider label or folder.
type DiscoveredItem struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Path           []string `json:"path"`
	Type           ItemType `json:"type"`
	MessagesTotal  int64    `json:"messages_total,omitempty"`
	MessagesUnread int64    `json:"messages_unread,omitempty"`
}

// TreeNode regroups discovered items into a tree by shared path prefixes.
type TreeNode struct {
	Name     string          `json:"name"`
	Item     *DiscoveredItem `json:"item,omitempty"`
	Children []*TreeNode     `json:"children,omitempty"`
}

// DiscoveryResult is the request-scoped outcome of one discovery call.
type DiscoveryResult struct {
	Provider     Provider         `json:"provider"`
	Items        []DiscoveredItem `json:"items"`
	TotalItems   int              `json:"total_items"`
	UserItems    int              `json:"user_items"`
	SystemItems  int              `json:"system_items"`
	Taxonomy     []*TreeNode      `json:"taxonomy"`
	DiscoveredAt time.Time        `json:"discovered_at"`
}

// ProvisionItem is a caller-supplied item to create.
type ProvisionItem struct {
	Path  []string `json:"path"`
	Color string   `json:"color,omitempty"`
}

// Skip reasons recorded in a ProvisionReport.
const (
	ReasonAlreadyExists = "already_exists"
)

// CreatedItem records one successful creation.
type CreatedItem struct {
	Path       []string `json:"path"`
	ProviderID string   `json:"provider_id"`
}

// SkippedItem records an item that needed no mutation.
type SkippedItem struct {
	Path   []string `json:"path"`
	Reason string   `json:"reason"`
}

// FailedItem records a per-item provisioning failure.
type FailedItem struct {
	Path  []string `json:"path"`
	Error string   `json:"error"`
}

// ProvisionReport aggregates one provisioning call. Provisioning is never
// all-or-nothing: failed items do not abort their siblings.
type ProvisionReport struct {
	Created []CreatedItem `json:"created"`
	Skipped []SkippedItem `json:"skipped"`
	Failed  []FailedItem  `json:"failed"`
}

// PathKey folds a path into its case-insensitive identity.
func PathKey(path []string) string {
	return strings.ToLower(strings.Join(path, "/"))
}

// SortParentFirst orders items so any item whose path is a strict prefix of
// another's comes first. Sorting by depth, then by joined path, is a linear
// extension of the prefix relation: a strict prefix is always shorter.
func SortParentFirst(items []ProvisionItem) []ProvisionItem {
	sorted := append([]ProvisionItem{}, items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if len(sorted[i].Path) != len(sorted[j].Path) {
			return len(sorted[i].Path) < len(sorted[j].Path)
		}
		return PathKey(sorted[i].Path) < PathKey(sorted[j].Path)
	})
	return sorted
}
