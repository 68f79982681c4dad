package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/canopymail/canopy/internal/display"
	"github.com/canopymail/canopy/internal/engine"
	"github.com/canopymail/canopy/internal/mapping"
	"github.com/canopymail/canopy/internal/provider"
)

var (
	discoverProvider     string
	discoverBusinessType string
	credentialsRoot      string
)

var discoverCmd = &cobra.Command{
	Use:   "discover [ACCOUNT]",
	Short: "Discover a mailbox's labels/folders and suggest a taxonomy mapping",
	Long: `Discover lists the account's existing labels (Gmail) or mail folders
(Office 365), regroups them into a tree, and matches them against the
canonical business taxonomy. Nothing is created or modified.`,
	Example: `  canopy discover user@example.com
  canopy discover user@example.com --business-type ecommerce
  canopy discover user@example.com --provider o365 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		root := resolveRoot()
		accounts := resolveAccounts(root, args)
		if len(accounts) == 0 {
			return fmt.Errorf("no accounts found — add account directories with credentials to %s", root)
		}

		eng, err := engine.New(&engine.FileCredentialFactory{Root: root}, nil)
		if err != nil {
			return err
		}

		for _, account := range accounts {
			p := resolveProvider(root, account)
			resp, err := eng.Discover(ctx, account, p, discoverBusinessType)
			if err != nil {
				display.ErrorMsg("%s — %v", account, err)
				continue
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(resp); err != nil {
					return err
				}
				continue
			}

			display.Header(fmt.Sprintf("%s (%s)", account, p))
			display.SubHeader(fmt.Sprintf("  %d items: %d yours, %d system",
				resp.Existing.TotalItems, resp.Existing.UserItems, resp.Existing.SystemItems))
			display.Tree(resp.Existing.Taxonomy, "  ")
			fmt.Println()
			display.SubHeader(fmt.Sprintf("  Suggested mapping (%s, %.0f%% automatable, %d to create):",
				discoverBusinessType, resp.Analysis.AutomationScore*100, resp.MissingCount))
			display.Suggestions(resp.Suggestions)
			fmt.Println()
		}
		return nil
	},
}

// resolveRoot returns the credentials root directory.
func resolveRoot() string {
	if credentialsRoot != "" {
		return credentialsRoot
	}
	if root := mapping.FindProjectRoot(); root != "" {
		return root
	}
	return "."
}

// resolveAccounts returns the accounts to operate on.
func resolveAccounts(root string, args []string) []string {
	if len(args) > 0 && args[0] != "" {
		return []string{args[0]}
	}
	return engine.DiscoverAccounts(root)
}

// resolveProvider honors --provider, falling back to credential sniffing.
func resolveProvider(root, account string) provider.Provider {
	if discoverProvider != "" {
		return provider.Provider(discoverProvider)
	}
	return engine.ProviderFor(root, account)
}

func init() {
	discoverCmd.Flags().StringVar(&discoverProvider, "provider", "", "Provider: gmail or o365 (default: sniff from credentials)")
	discoverCmd.Flags().StringVarP(&discoverBusinessType, "business-type", "b", "default", "Business type taxonomy variant")
	discoverCmd.Flags().StringVar(&credentialsRoot, "root", "", "Credentials root directory (default: project root)")

	rootCmd.AddCommand(discoverCmd)
}
