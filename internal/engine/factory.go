package engine

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/canopymail/canopy/internal/auth"
	"github.com/canopymail/canopy/internal/provider"
)

// FileCredentialFactory builds adapters from per-account credential
// directories under Root: <root>/<account>/credentials.json (+ token.json)
// for Gmail, <root>/<account>/o365_token.json for Office 365.
type FileCredentialFactory struct {
	Root string
	// GraphBaseURL overrides the Graph endpoint (tests).
	GraphBaseURL string
}

// For returns an authenticated adapter for the account, or
// provider.ErrAuthRequired when the account has no usable credential.
func (f *FileCredentialFactory) For(ctx context.Context, userID string, p provider.Provider) (provider.Adapter, error) {
	switch p {
	case provider.Gmail:
		svc, err := auth.LoadGmailService(ctx, filepath.Join(f.Root, userID, "credentials.json"))
		if err != nil {
			return nil, err
		}
		return provider.New(p, provider.Clients{Gmail: svc})
	case provider.O365:
		client, err := auth.LoadGraphClient(ctx, filepath.Join(f.Root, userID, "o365_token.json"))
		if err != nil {
			return nil, err
		}
		return provider.New(p, provider.Clients{Graph: client, GraphBaseURL: f.GraphBaseURL})
	default:
		return provider.New(p, provider.Clients{})
	}
}

// DiscoverAccounts finds accounts by scanning for credential files in
// directories named like email addresses under root.
func DiscoverAccounts(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}

	var accounts []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.Contains(entry.Name(), "@") {
			continue
		}
		for _, cred := range []string{"credentials.json", "o365_token.json"} {
			if _, err := os.Stat(filepath.Join(root, entry.Name(), cred)); err == nil {
				accounts = append(accounts, entry.Name())
				break
			}
		}
	}

	sort.Strings(accounts)
	return accounts
}

// ProviderFor guesses the provider for an account by which credential file
// is present, defaulting to Gmail.
func ProviderFor(root, account string) provider.Provider {
	if _, err := os.Stat(filepath.Join(root, account, "o365_token.json")); err == nil {
		return provider.O365
	}
	return provider.Gmail
}
