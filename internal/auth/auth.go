// Package auth turns stored per-account credentials into authenticated
// provider clients.
//
// It is a credential consumer, not a consent flow: tokens are obtained
// elsewhere (the SaaS OAuth layer, or a local token file), and this package
// only loads and refreshes them. Gmail accounts use the credentials.json +
// token.json layout written by Google's client libraries; O365 accounts use
// a single token.json with the Azure AD token endpoint inlined.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/canopymail/canopy/internal/provider"
)

// GmailScopes are the scopes label discovery and provisioning need.
var GmailScopes = []string{
	"https://www.googleapis.com/auth/gmail.labels",
	"https://www.googleapis.com/auth/gmail.readonly",
}

// GraphScopes are the Microsoft Graph scopes for mail-folder operations.
var GraphScopes = []string{
	"https://graph.microsoft.com/Mail.ReadWrite",
	"offline_access",
}

// storedToken is the on-disk token format, compatible with what Python's
// google-auth library writes for Gmail accounts.
type storedToken struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token"`
	TokenURI     string   `json:"token_uri"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes"`
	Expiry       string   `json:"expiry"`
}

// LoadGmailService returns an authenticated Gmail API service for the given
// account. credentialsPath points at the account's credentials.json; the
// token is expected next to it as token.json.
func LoadGmailService(ctx context.Context, credentialsPath string) (*gmail.Service, error) {
	config, err := loadOAuthConfig(credentialsPath)
	if err != nil {
		return nil, err
	}

	tokenPath := filepath.Join(filepath.Dir(credentialsPath), "token.json")
	client, err := clientFromToken(ctx, config, tokenPath)
	if err != nil {
		return nil, err
	}
	return gmail.NewService(ctx, option.WithHTTPClient(client))
}

// LoadGraphClient returns an HTTP client whose transport injects a valid
// Microsoft Graph bearer token, refreshing through the token endpoint
// recorded in the token file.
func LoadGraphClient(ctx context.Context, tokenPath string) (*http.Client, error) {
	st, err := readToken(tokenPath)
	if err != nil {
		return nil, err
	}
	config := &oauth2.Config{
		ClientID:     st.ClientID,
		ClientSecret: st.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: st.TokenURI},
		Scopes:       GraphScopes,
	}
	return clientFromToken(ctx, config, tokenPath)
}

// clientFromToken builds an auto-refreshing HTTP client from a token file,
// writing any refreshed token back so the next process start reuses it.
func clientFromToken(ctx context.Context, config *oauth2.Config, tokenPath string) (*http.Client, error) {
	st, err := readToken(tokenPath)
	if err != nil {
		return nil, err
	}
	token := st.toOAuth2()

	ts := config.TokenSource(ctx, token)
	newToken, err := ts.Token()
	if err != nil {
		// A dead refresh token means the user has to re-consent.
		return nil, fmt.Errorf("%w: refresh failed: %v", provider.ErrAuthRequired, err)
	}

	if newToken.AccessToken != token.AccessToken {
		if saveErr := saveToken(tokenPath, newToken, config); saveErr != nil {
			fmt.Fprintf(os.Stderr, "warning: could not save refreshed token: %v\n", saveErr)
		}
	}

	return oauth2.NewClient(ctx, ts), nil
}

// loadOAuthConfig reads credentials.json and returns an OAuth2 config.
func loadOAuthConfig(credentialsPath string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no credentials at %s", provider.ErrAuthRequired, credentialsPath)
		}
		return nil, fmt.Errorf("read credentials from %s: %w", credentialsPath, err)
	}

	config, err := google.ConfigFromJSON(data, GmailScopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	return config, nil
}

// readToken reads and parses a stored token file.
func readToken(tokenPath string) (*storedToken, error) {
	data, err := os.ReadFile(tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no token at %s", provider.ErrAuthRequired, tokenPath)
		}
		return nil, fmt.Errorf("read token: %w", err)
	}

	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if st.Token == "" && st.RefreshToken == "" {
		return nil, fmt.Errorf("%w: token file %s holds no token material", provider.ErrAuthRequired, tokenPath)
	}
	return &st, nil
}

func (st *storedToken) toOAuth2() *oauth2.Token {
	// Python writes ISO 8601 with microseconds; accept common variants.
	var expiry time.Time
	if st.Expiry != "" {
		for _, layout := range []string{
			"2006-01-02T15:04:05.999999Z",
			"2006-01-02T15:04:05Z",
			time.RFC3339,
			time.RFC3339Nano,
		} {
			if t, err := time.Parse(layout, st.Expiry); err == nil {
				expiry = t
				break
			}
		}
	}
	return &oauth2.Token{
		AccessToken:  st.Token,
		RefreshToken: st.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       expiry,
	}
}

// saveToken writes a token back in the same format it was read in.
func saveToken(tokenPath string, token *oauth2.Token, config *oauth2.Config) error {
	st := storedToken{
		Token:        token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenURI:     config.Endpoint.TokenURL,
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Scopes:       config.Scopes,
		Expiry:       token.Expiry.UTC().Format("2006-01-02T15:04:05.999999Z"),
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(tokenPath, data, 0o600)
}
