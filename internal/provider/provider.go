package provider

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	gm "google.golang.org/api/gmail/v1"
)

// Adapter is the contract both providers implement. Adapters are constructed
// per user with an already-authenticated client; they never refresh tokens.
type Adapter interface {
	Provider() Provider
	// Discover lists the user's labels/folders and normalizes them.
	Discover(ctx context.Context) (*DiscoveryResult, error)
	// Provision idempotently creates missing items, parents first.
	Provision(ctx context.Context, items []ProvisionItem) (*ProvisionReport, error)
}

// Clients carries the authenticated transports an adapter may need.
type Clients struct {
	Gmail *gm.Service
	// Graph is an HTTP client whose transport injects the O365 bearer token.
	Graph *http.Client
	// GraphBaseURL overrides the Microsoft Graph endpoint (tests).
	GraphBaseURL string
}

// New selects an adapter for a provider. Adding a provider means extending
// the Provider enum and this switch together.
func New(p Provider, c Clients) (Adapter, error) {
	switch p {
	case Gmail:
		if c.Gmail == nil {
			return nil, fmt.Errorf("gmail adapter: %w", ErrAuthRequired)
		}
		return NewGmailAdapter(c.Gmail), nil
	case O365:
		if c.Graph == nil {
			return nil, fmt.Errorf("o365 adapter: %w", ErrAuthRequired)
		}
		return NewO365Adapter(c.Graph, c.GraphBaseURL), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
}

// Request limits enforced before any network call.
const (
	MaxProvisionItems = 50
	MaxPathSegments   = 5
	MaxSegmentLength  = 100
)

// ValidateItems rejects malformed provisioning requests. Color validity is
// deliberately not checked here: an unusable color falls back to the
// provider default at creation time instead of failing the item.
func ValidateItems(items []ProvisionItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: no items", ErrValidation)
	}
	if len(items) > MaxProvisionItems {
		return fmt.Errorf("%w: %d items exceeds limit of %d", ErrValidation, len(items), MaxProvisionItems)
	}
	for i, it := range items {
		if len(it.Path) == 0 || len(it.Path) > MaxPathSegments {
			return fmt.Errorf("%w: item %d: path must have 1-%d segments, got %d",
				ErrValidation, i, MaxPathSegments, len(it.Path))
		}
		for _, seg := range it.Path {
			if len(seg) == 0 || len(seg) > MaxSegmentLength {
				return fmt.Errorf("%w: item %d: segment length must be 1-%d, got %d",
					ErrValidation, i, MaxSegmentLength, len(seg))
			}
		}
	}
	return nil
}

// BuildTree regroups discovered items into a tree by shared path prefixes.
// Children are sorted by name so the result is deterministic regardless of
// provider listing order.
func BuildTree(items []DiscoveredItem) []*TreeNode {
	root := &TreeNode{}
	for i := range items {
		node := root
		for depth, seg := range items[i].Path {
			child := findChild(node, seg)
			if child == nil {
				child = &TreeNode{Name: seg}
				node.Children = append(node.Children, child)
			}
			if depth == len(items[i].Path)-1 {
				child.Item = &items[i]
			}
			node = child
		}
	}
	sortTree(root)
	return root.Children
}

func findChild(node *TreeNode, name string) *TreeNode {
	for _, c := range node.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func sortTree(node *TreeNode) {
	sort.Slice(node.Children, func(i, j int) bool {
		return node.Children[i].Name < node.Children[j].Name
	})
	for _, c := range node.Children {
		sortTree(c)
	}
}

// summarize fills the counters of a DiscoveryResult from its items.
func summarize(res *DiscoveryResult) {
	res.TotalItems = len(res.Items)
	for _, it := range res.Items {
		if it.Type == TypeSystem {
			res.SystemItems++
		} else {
			res.UserItems++
		}
	}
	userItems := make([]DiscoveredItem, 0, res.UserItems)
	for _, it := range res.Items {
		if it.Type == TypeUser {
			userItems = append(userItems, it)
		}
	}
	res.Taxonomy = BuildTree(userItems)
}
