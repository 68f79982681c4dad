package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultGraphBaseURL is the production Microsoft Graph endpoint.
const DefaultGraphBaseURL = "https://graph.microsoft.com/v1.0"

// Well-known Outlook folders, excluded from user-facing discovery.
var o365SystemFolders = map[string]bool{
	"inbox":                true,
	"drafts":               true,
	"sent items":           true,
	"deleted items":        true,
	"junk email":           true,
	"outbox":               true,
	"archive":              true,
	"conversation history": true,
	"clutter":              true,
	"notes":                true,
	"rss feeds":            true,
	"sync issues":          true,
}

// O365Adapter implements Adapter against the Microsoft Graph mail-folder API.
//
// Unlike Gmail, Outlook folders nest natively: hierarchy comes from walking
// parent/child links, not from parsing names. Graph has no official Go SDK in
// our stack, so the adapter issues REST calls over an oauth2-authenticated
// http.Client directly.
type O365Adapter struct {
	client  *http.Client
	baseURL string
}

// NewO365Adapter wraps an authenticated Graph HTTP client. baseURL may be
// empty to target production Graph.
func NewO365Adapter(client *http.Client, baseURL string) *O365Adapter {
	if baseURL == "" {
		baseURL = DefaultGraphBaseURL
	}
	return &O365Adapter{client: client, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (a *O365Adapter) Provider() Provider { return O365 }

// graphFolder is the subset of the Graph mailFolder resource we read.
type graphFolder struct {
	ID               string `json:"id"`
	DisplayName      string `json:"displayName"`
	ParentFolderID   string `json:"parentFolderId,omitempty"`
	ChildFolderCount int64  `json:"childFolderCount"`
	TotalItemCount   int64  `json:"totalItemCount"`
	UnreadItemCount  int64  `json:"unreadItemCount"`
}

type graphFolderList struct {
	Value    []graphFolder `json:"value"`
	NextLink string        `json:"@odata.nextLink"`
}

// parseFolder normalizes a Graph folder given the path of its parent.
// Alternate flows (tests, import tools) may deliver the whole path as a
// backslash-delimited displayName; that form is split into segments here.
func parseFolder(raw graphFolder, parentPath []string) DiscoveredItem {
	segments := []string{raw.DisplayName}
	if strings.Contains(raw.DisplayName, `\`) {
		segments = strings.Split(raw.DisplayName, `\`)
	}
	path := append(append([]string{}, parentPath...), segments...)

	item := DiscoveredItem{
		ID:             raw.ID,
		Name:           raw.DisplayName,
		Path:           path,
		Type:           TypeUser,
		MessagesTotal:  raw.TotalItemCount,
		MessagesUnread: raw.UnreadItemCount,
	}
	if len(parentPath) == 0 && o365SystemFolders[strings.ToLower(raw.DisplayName)] {
		item.Type = TypeSystem
	}
	return item
}

// Discover walks the full folder tree, root folders first, then each
// subtree depth-first, and normalizes everything into a DiscoveryResult.
func (a *O365Adapter) Discover(ctx context.Context) (*DiscoveryResult, error) {
	res := &DiscoveryResult{
		Provider:     O365,
		Items:        []DiscoveredItem{},
		DiscoveredAt: time.Now().UTC(),
	}

	roots, err := a.listFolders(ctx, a.baseURL+"/me/mailFolders?$top=100")
	if err != nil {
		return nil, err
	}
	for _, raw := range roots {
		if err := a.collect(ctx, raw, nil, res); err != nil {
			return nil, err
		}
	}
	summarize(res)

	slog.Debug("o365 discovery complete",
		"total", res.TotalItems, "user", res.UserItems, "system", res.SystemItems)
	return res, nil
}

// collect appends a folder and recurses into its children.
func (a *O365Adapter) collect(ctx context.Context, raw graphFolder, parentPath []string, res *DiscoveryResult) error {
	item := parseFolder(raw, parentPath)
	res.Items = append(res.Items, item)

	// System folders can still hold user subtrees (rare), but walking them
	// surfaces provider plumbing; only user folders are descended into.
	if item.Type == TypeSystem || raw.ChildFolderCount == 0 {
		return nil
	}
	children, err := a.listFolders(ctx, a.baseURL+"/me/mailFolders/"+raw.ID+"/childFolders?$top=100")
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := a.collect(ctx, child, item.Path, res); err != nil {
			return err
		}
	}
	return nil
}

// listFolders fetches one folder collection, following @odata.nextLink pages.
func (a *O365Adapter) listFolders(ctx context.Context, url string) ([]graphFolder, error) {
	var all []graphFolder
	for url != "" {
		var page graphFolderList
		if err := a.doJSON(ctx, http.MethodGet, url, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Value...)
		url = page.NextLink
	}
	return all, nil
}

// Provision creates missing folders segment by segment, parents before
// children. Folder existence is checked case-insensitively against the
// freshly discovered tree plus anything created earlier in this call.
func (a *O365Adapter) Provision(ctx context.Context, items []ProvisionItem) (*ProvisionReport, error) {
	if err := ValidateItems(items); err != nil {
		return nil, err
	}

	discovery, err := a.Discover(ctx)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]string, len(discovery.Items))
	for _, it := range discovery.Items {
		existing[PathKey(it.Path)] = it.ID
	}

	report := &ProvisionReport{
		Created: []CreatedItem{},
		Skipped: []SkippedItem{},
		Failed:  []FailedItem{},
	}

	for _, item := range SortParentFirst(items) {
		if ctx.Err() != nil {
			break
		}
		if _, ok := existing[PathKey(item.Path)]; ok {
			report.Skipped = append(report.Skipped, SkippedItem{Path: item.Path, Reason: ReasonAlreadyExists})
			continue
		}
		a.provisionOne(ctx, item, existing, report)
	}

	slog.Info("o365 provisioning complete",
		"created", len(report.Created), "skipped", len(report.Skipped), "failed", len(report.Failed))
	return report, nil
}

// provisionOne walks one item's path, creating every missing segment.
func (a *O365Adapter) provisionOne(ctx context.Context, item ProvisionItem, existing map[string]string, report *ProvisionReport) {
	parentID := ""
	for depth := 1; depth <= len(item.Path); depth++ {
		prefix := item.Path[:depth]
		if id, ok := existing[PathKey(prefix)]; ok {
			parentID = id
			continue
		}

		id, err := a.createFolder(ctx, parentID, prefix[depth-1])
		if err != nil {
			report.Failed = append(report.Failed, FailedItem{Path: item.Path, Error: err.Error()})
			return
		}
		existing[PathKey(prefix)] = id
		report.Created = append(report.Created, CreatedItem{Path: append([]string{}, prefix...), ProviderID: id})
		parentID = id
	}

	// Folders carry no color in Graph; a valid color becomes an Outlook
	// category with the nearest preset, best effort only.
	if preset, ok := HexToO365Color(item.Color); ok {
		if err := a.ensureCategory(ctx, item.Path[len(item.Path)-1], preset); err != nil {
			slog.Warn("could not create outlook category", "folder", item.Path, "err", err)
		}
	} else if item.Color != "" {
		slog.Warn("invalid folder color, skipping category", "folder", item.Path, "color", item.Color)
	}
}

// createFolder creates a single folder under parentID ("" means mailbox root).
func (a *O365Adapter) createFolder(ctx context.Context, parentID, displayName string) (string, error) {
	url := a.baseURL + "/me/mailFolders"
	if parentID != "" {
		url = a.baseURL + "/me/mailFolders/" + parentID + "/childFolders"
	}
	var created graphFolder
	body := map[string]string{"displayName": displayName}
	if err := a.doJSON(ctx, http.MethodPost, url, body, &created); err != nil {
		return "", fmt.Errorf("create folder %s: %w", displayName, err)
	}
	return created.ID, nil
}

// ensureCategory creates a master category for the folder's display name.
// Graph returns 409 when the category already exists, which is fine.
func (a *O365Adapter) ensureCategory(ctx context.Context, displayName, preset string) error {
	body := map[string]string{"displayName": displayName, "color": preset}
	err := a.doJSON(ctx, http.MethodPost, a.baseURL+"/me/outlook/masterCategories", body, nil)
	var svcErr *ExternalServiceError
	if err != nil && errors.As(err, &svcErr) && svcErr.StatusCode == http.StatusConflict {
		return nil
	}
	return err
}

// doJSON issues one Graph call and decodes the response.
func (a *O365Adapter) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return &ExternalServiceError{Provider: O365, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrAuthRequired
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ExternalServiceError{Provider: O365, StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
