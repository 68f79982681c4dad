// Package taxonomy defines the canonical business mailbox taxonomy.
//
// The taxonomy is static data loaded once at process start: a tree of
// categories per business type, each with a provider-agnostic hex color.
// Provider adapters and the suggestion engine both read it, nobody writes it.
package taxonomy

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Item is a single canonical taxonomy slot.
type Item struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
	Color       string `json:"color"`
	Children    []Item `json:"children,omitempty"`
}

// MaxDepth is the deepest nesting any provider supports.
const MaxDepth = 5

var (
	ErrTaxonomyInvalid = errors.New("taxonomy invalid")
	ErrNotFound        = errors.New("taxonomy item not found")
)

var hexColorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// IsValidColor reports whether s is a 6-digit hex color like "#FF0000".
func IsValidColor(s string) bool {
	return hexColorRe.MatchString(s)
}

// Business type constants select a taxonomy variant.
const (
	BusinessDefault    = "default"
	BusinessEcommerce  = "ecommerce"
	BusinessServices   = "services"
	BusinessRealEstate = "realestate"
)

// ValidBusinessTypes is the set of business types with a dedicated variant.
var ValidBusinessTypes = []string{BusinessDefault, BusinessEcommerce, BusinessServices, BusinessRealEstate}

// IsValidBusinessType checks if a business type string is known.
func IsValidBusinessType(bt string) bool {
	for _, v := range ValidBusinessTypes {
		if v == bt {
			return true
		}
	}
	return false
}

// defaultTaxonomy is the baseline variant used by small businesses and as
// the fallback for unknown business types.
var defaultTaxonomy = []Item{
	{Key: "URGENT", DisplayName: "Urgent", Color: "#fb4c2f"},
	{Key: "SALES", DisplayName: "Sales", Color: "#16a766", Children: []Item{
		{Key: "SALES_NEW_LEADS", DisplayName: "New Leads", Color: "#43d692"},
		{Key: "SALES_FOLLOW_UP", DisplayName: "Follow Up", Color: "#2da2bb"},
		{Key: "SALES_CLOSED", DisplayName: "Closed", Color: "#999999"},
	}},
	{Key: "SUPPORT", DisplayName: "Support", Color: "#4a86e8", Children: []Item{
		{Key: "SUPPORT_OPEN", DisplayName: "Open Tickets", Color: "#6d9eeb"},
		{Key: "SUPPORT_RESOLVED", DisplayName: "Resolved", Color: "#b6cff5"},
	}},
	{Key: "BILLING", DisplayName: "Billing", Color: "#ffad47", Children: []Item{
		{Key: "BILLING_INVOICES", DisplayName: "Invoices", Color: "#ffd6a2"},
		{Key: "BILLING_RECEIPTS", DisplayName: "Receipts", Color: "#fce8b3"},
	}},
	{Key: "NEWSLETTERS", DisplayName: "Newsletters", Color: "#a479e2"},
}

var ecommerceTaxonomy = []Item{
	{Key: "URGENT", DisplayName: "Urgent", Color: "#fb4c2f"},
	{Key: "ORDERS", DisplayName: "Orders", Color: "#16a766", Children: []Item{
		{Key: "ORDERS_NEW", DisplayName: "New Orders", Color: "#43d692"},
		{Key: "ORDERS_SHIPPED", DisplayName: "Shipped", Color: "#2da2bb"},
		{Key: "ORDERS_RETURNS", DisplayName: "Returns", Color: "#fad165"},
	}},
	{Key: "CUSTOMERS", DisplayName: "Customers", Color: "#4a86e8", Children: []Item{
		{Key: "CUSTOMERS_INQUIRIES", DisplayName: "Inquiries", Color: "#6d9eeb"},
		{Key: "CUSTOMERS_REVIEWS", DisplayName: "Reviews", Color: "#b6cff5"},
	}},
	{Key: "SUPPLIERS", DisplayName: "Suppliers", Color: "#7a4706"},
	{Key: "BILLING", DisplayName: "Billing", Color: "#ffad47", Children: []Item{
		{Key: "BILLING_INVOICES", DisplayName: "Invoices", Color: "#ffd6a2"},
		{Key: "BILLING_RECEIPTS", DisplayName: "Receipts", Color: "#fce8b3"},
	}},
	{Key: "MARKETING", DisplayName: "Marketing", Color: "#a479e2"},
}

var servicesTaxonomy = []Item{
	{Key: "URGENT", DisplayName: "Urgent", Color: "#fb4c2f"},
	{Key: "CLIENTS", DisplayName: "Clients", Color: "#16a766", Children: []Item{
		{Key: "CLIENTS_NEW_LEADS", DisplayName: "New Leads", Color: "#43d692"},
		{Key: "CLIENTS_ACTIVE", DisplayName: "Active", Color: "#2da2bb"},
		{Key: "CLIENTS_ARCHIVED", DisplayName: "Archived", Color: "#999999"},
	}},
	{Key: "PROJECTS", DisplayName: "Projects", Color: "#4a86e8", Children: []Item{
		{Key: "PROJECTS_PROPOSALS", DisplayName: "Proposals", Color: "#6d9eeb"},
		{Key: "PROJECTS_IN_PROGRESS", DisplayName: "In Progress", Color: "#b6cff5"},
	}},
	{Key: "BILLING", DisplayName: "Billing", Color: "#ffad47", Children: []Item{
		{Key: "BILLING_INVOICES", DisplayName: "Invoices", Color: "#ffd6a2"},
		{Key: "BILLING_RECEIPTS", DisplayName: "Receipts", Color: "#fce8b3"},
	}},
}

var realEstateTaxonomy = []Item{
	{Key: "URGENT", DisplayName: "Urgent", Color: "#fb4c2f"},
	{Key: "LISTINGS", DisplayName: "Listings", Color: "#16a766", Children: []Item{
		{Key: "LISTINGS_ACTIVE", DisplayName: "Active", Color: "#43d692"},
		{Key: "LISTINGS_PENDING", DisplayName: "Pending", Color: "#fad165"},
		{Key: "LISTINGS_SOLD", DisplayName: "Sold", Color: "#999999"},
	}},
	{Key: "BUYERS", DisplayName: "Buyers", Color: "#4a86e8"},
	{Key: "SELLERS", DisplayName: "Sellers", Color: "#6d9eeb"},
	{Key: "CONTRACTS", DisplayName: "Contracts", Color: "#7a4706"},
	{Key: "BILLING", DisplayName: "Billing", Color: "#ffad47"},
}

var variants = map[string][]Item{
	BusinessDefault:    defaultTaxonomy,
	BusinessEcommerce:  ecommerceTaxonomy,
	BusinessServices:   servicesTaxonomy,
	BusinessRealEstate: realEstateTaxonomy,
}

// ForBusinessType returns the taxonomy variant for a business type.
// Unknown business types fall back to the default variant: discovery is
// read-only and a wrong hint must not fail the call.
func ForBusinessType(bt string) []Item {
	if items, ok := variants[strings.ToLower(strings.TrimSpace(bt))]; ok {
		return items
	}
	return defaultTaxonomy
}

// Validate checks taxonomy invariants: unique keys across the whole tree,
// 6-digit hex colors, and depth within MaxDepth. A malformed taxonomy is a
// programming error, so main fails loud on it at startup.
func Validate(items []Item) error {
	seen := make(map[string]bool)
	var walk func(items []Item, depth int) error
	walk = func(items []Item, depth int) error {
		if depth > MaxDepth {
			return fmt.Errorf("%w: depth exceeds %d", ErrTaxonomyInvalid, MaxDepth)
		}
		for _, it := range items {
			if it.Key == "" {
				return fmt.Errorf("%w: empty key (display name %q)", ErrTaxonomyInvalid, it.DisplayName)
			}
			if seen[it.Key] {
				return fmt.Errorf("%w: duplicate key %q", ErrTaxonomyInvalid, it.Key)
			}
			seen[it.Key] = true
			if !IsValidColor(it.Color) {
				return fmt.Errorf("%w: item %q has invalid color %q", ErrTaxonomyInvalid, it.Key, it.Color)
			}
			if err := walk(it.Children, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(items, 1)
}

// ValidateAll validates every business-type variant. Called once at startup.
func ValidateAll() error {
	for bt, items := range variants {
		if err := Validate(items); err != nil {
			return fmt.Errorf("business type %s: %w", bt, err)
		}
	}
	return nil
}

// Flatten returns all items of a taxonomy in pre-order. The returned slice
// is a fresh copy on every call; callers may reorder it freely.
func Flatten(items []Item) []Item {
	var out []Item
	var walk func(items []Item)
	walk = func(items []Item) {
		for _, it := range items {
			out = append(out, it)
			walk(it.Children)
		}
	}
	walk(items)
	return out
}

// Get finds an item by key anywhere in the tree.
func Get(items []Item, key string) (Item, error) {
	for _, it := range Flatten(items) {
		if it.Key == key {
			return it, nil
		}
	}
	return Item{}, fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Path returns the canonical path segments of an item, root first,
// built from the display names of its ancestors.
func Path(items []Item, key string) ([]string, error) {
	var found []string
	var walk func(items []Item, prefix []string) bool
	walk = func(items []Item, prefix []string) bool {
		for _, it := range items {
			p := append(append([]string{}, prefix...), it.DisplayName)
			if it.Key == key {
				found = p
				return true
			}
			if walk(it.Children, p) {
				return true
			}
		}
		return false
	}
	if !walk(items, nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return found, nil
}
