package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gm "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"github.com/canopymail/canopy/internal/taxonomy"
)

// Reserved Gmail system labels. Anything with these names (or a CATEGORY_
// prefix) is provider-owned and excluded from user-facing discovery.
var gmailSystemLabels = map[string]bool{
	"INBOX":     true,
	"SENT":      true,
	"DRAFT":     true,
	"SPAM":      true,
	"TRASH":     true,
	"STARRED":   true,
	"UNREAD":    true,
	"IMPORTANT": true,
	"CHAT":      true,
}

// GmailAdapter implements Adapter against the Gmail labels API.
//
// Gmail has no native nesting: a label named "SALES/New Leads" is a single
// flat label whose name encodes the hierarchy. The adapter splits names on
// "/" for discovery and joins paths back for provisioning.
type GmailAdapter struct {
	svc *gm.Service
}

// NewGmailAdapter wraps an authenticated Gmail service.
func NewGmailAdapter(svc *gm.Service) *GmailAdapter {
	return &GmailAdapter{svc: svc}
}

func (a *GmailAdapter) Provider() Provider { return Gmail }

// parseLabel normalizes a raw Gmail label.
func parseLabel(raw *gm.Label) DiscoveredItem {
	item := DiscoveredItem{
		ID:             raw.Id,
		Name:           raw.Name,
		Path:           strings.Split(raw.Name, "/"),
		Type:           TypeUser,
		MessagesTotal:  raw.MessagesTotal,
		MessagesUnread: raw.MessagesUnread,
	}
	if raw.Type == "system" || gmailSystemLabels[raw.Name] || strings.HasPrefix(raw.Name, "CATEGORY_") {
		item.Type = TypeSystem
		// System labels are flat identifiers, not paths.
		item.Path = []string{raw.Name}
	}
	return item
}

// Discover lists all labels and normalizes them into a DiscoveryResult.
func (a *GmailAdapter) Discover(ctx context.Context) (*DiscoveryResult, error) {
	resp, err := a.svc.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return nil, wrapGmailErr("list labels", err)
	}

	res := &DiscoveryResult{
		Provider:     Gmail,
		Items:        make([]DiscoveredItem, 0, len(resp.Labels)),
		DiscoveredAt: time.Now().UTC(),
	}
	for _, raw := range resp.Labels {
		res.Items = append(res.Items, parseLabel(raw))
	}
	summarize(res)

	slog.Debug("gmail discovery complete",
		"total", res.TotalItems, "user", res.UserItems, "system", res.SystemItems)
	return res, nil
}

// Provision creates missing labels, parents before children. Existing labels
// are skipped without any mutation; per-item failures do not abort siblings.
func (a *GmailAdapter) Provision(ctx context.Context, items []ProvisionItem) (*ProvisionReport, error) {
	if err := ValidateItems(items); err != nil {
		return nil, err
	}

	resp, err := a.svc.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return nil, wrapGmailErr("list labels", err)
	}
	existing := make(map[string]string, len(resp.Labels))
	for _, raw := range resp.Labels {
		existing[strings.ToLower(raw.Name)] = raw.Id
	}

	cfg := taxonomy.ConfigFor(string(Gmail))
	report := &ProvisionReport{
		Created: []CreatedItem{},
		Skipped: []SkippedItem{},
		Failed:  []FailedItem{},
	}

	for _, item := range SortParentFirst(items) {
		// An aborted caller stops the queue; in-flight calls already ran.
		if ctx.Err() != nil {
			break
		}

		name := strings.Join(item.Path, "/")
		if len(name) > cfg.MaxNameLength {
			report.Failed = append(report.Failed, FailedItem{
				Path:  item.Path,
				Error: fmt.Sprintf("label name exceeds provider limit of %d characters", cfg.MaxNameLength),
			})
			continue
		}
		if _, ok := existing[strings.ToLower(name)]; ok {
			report.Skipped = append(report.Skipped, SkippedItem{Path: item.Path, Reason: ReasonAlreadyExists})
			continue
		}

		// Gmail labels are flat, so a missing ancestor is its own label.
		// Create any not already present or created earlier in this call.
		failed := false
		for depth := 1; depth < len(item.Path); depth++ {
			ancestor := item.Path[:depth]
			ancestorName := strings.Join(ancestor, "/")
			if _, ok := existing[strings.ToLower(ancestorName)]; ok {
				continue
			}
			id, err := a.createLabel(ctx, ancestorName, "")
			if err != nil {
				report.Failed = append(report.Failed, FailedItem{Path: ancestor, Error: err.Error()})
				failed = true
				break
			}
			existing[strings.ToLower(ancestorName)] = id
			report.Created = append(report.Created, CreatedItem{Path: append([]string{}, ancestor...), ProviderID: id})
		}
		if failed {
			report.Failed = append(report.Failed, FailedItem{Path: item.Path, Error: "ancestor creation failed"})
			continue
		}

		id, err := a.createLabel(ctx, name, item.Color)
		if err != nil {
			report.Failed = append(report.Failed, FailedItem{Path: item.Path, Error: err.Error()})
			continue
		}
		existing[strings.ToLower(name)] = id
		report.Created = append(report.Created, CreatedItem{Path: item.Path, ProviderID: id})
	}

	slog.Info("gmail provisioning complete",
		"created", len(report.Created), "skipped", len(report.Skipped), "failed", len(report.Failed))
	return report, nil
}

// createLabel creates one label. An invalid or out-of-palette color falls
// back to Gmail's default rather than failing the item.
func (a *GmailAdapter) createLabel(ctx context.Context, name, color string) (string, error) {
	label := &gm.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}
	if c, ok := NearestGmailColor(color); ok {
		label.Color = &gm.LabelColor{
			BackgroundColor: c.Background,
			TextColor:       c.Text,
		}
	} else if color != "" {
		slog.Warn("invalid label color, using provider default", "name", name, "color", color)
	}

	created, err := a.svc.Users.Labels.Create("me", label).Context(ctx).Do()
	if err != nil {
		return "", wrapGmailErr("create label "+name, err)
	}
	return created.Id, nil
}

// wrapGmailErr converts Gmail client errors into the engine's error types.
func wrapGmailErr(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == 401 {
			return ErrAuthRequired
		}
		return &ExternalServiceError{Provider: Gmail, StatusCode: gerr.Code, Body: gerr.Message, Err: err}
	}
	return &ExternalServiceError{Provider: Gmail, Err: err}
}
