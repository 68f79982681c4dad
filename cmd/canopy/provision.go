package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/canopymail/canopy/internal/display"
	"github.com/canopymail/canopy/internal/engine"
	"github.com/canopymail/canopy/internal/provider"
)

var provisionFile string

var provisionCmd = &cobra.Command{
	Use:   "provision ACCOUNT [PATH[:#RRGGBB]...]",
	Short: "Idempotently create missing labels/folders",
	Long: `Provision creates the given labels/folders against the provider,
parents before children. Items that already exist are skipped; a failing
item never aborts its siblings. Running the same provision twice is safe.

Paths use "/" between segments, with an optional hex color suffix:
  "SALES/New Leads:#43d692"`,
	Example: `  canopy provision user@example.com "SALES" "SALES/New Leads:#43d692"
  canopy provision user@example.com --file items.json
  canopy provision user@example.com --provider o365 "Clients/Active"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		account := args[0]
		root := resolveRoot()

		items, err := loadItems(args[1:])
		if err != nil {
			return err
		}

		eng, err := engine.New(&engine.FileCredentialFactory{Root: root}, nil)
		if err != nil {
			return err
		}

		p := resolveProvider(root, account)
		resp, err := eng.Provision(ctx, account, p, items)
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}

		display.Header(fmt.Sprintf("%s (%s)", account, p))
		display.Report(resp.Created, resp.Skipped, resp.Failed)
		display.SuccessMsg("%d requested: %d created, %d skipped, %d failed",
			resp.Summary.TotalRequested, resp.Summary.TotalCreated,
			resp.Summary.TotalSkipped, resp.Summary.TotalFailed)
		return nil
	},
}

// loadItems reads provision items from --file or parses positional args.
func loadItems(args []string) ([]provider.ProvisionItem, error) {
	if provisionFile != "" {
		data, err := os.ReadFile(provisionFile)
		if err != nil {
			return nil, fmt.Errorf("read items from %s: %w", provisionFile, err)
		}
		var items []provider.ProvisionItem
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("parse items from %s: %w", provisionFile, err)
		}
		return items, nil
	}

	items := make([]provider.ProvisionItem, 0, len(args))
	for _, arg := range args {
		item := provider.ProvisionItem{}
		if idx := strings.LastIndex(arg, ":#"); idx >= 0 {
			item.Color = arg[idx+1:]
			arg = arg[:idx]
		}
		item.Path = strings.Split(arg, "/")
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no items given — pass paths or --file")
	}
	return items, nil
}

func init() {
	provisionCmd.Flags().StringVarP(&provisionFile, "file", "f", "", "JSON file with provision items")
	provisionCmd.Flags().StringVar(&discoverProvider, "provider", "", "Provider: gmail or o365 (default: sniff from credentials)")
	provisionCmd.Flags().StringVar(&credentialsRoot, "root", "", "Credentials root directory (default: project root)")

	rootCmd.AddCommand(provisionCmd)
}
