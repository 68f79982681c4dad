package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/canopymail/canopy/internal/display"
	"github.com/canopymail/canopy/internal/engine"
	"github.com/canopymail/canopy/internal/mapping"
	"github.com/canopymail/canopy/internal/provider"
)

var (
	mappingProvider string
	mappingClientID string
	mappingFile     string
)

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Persisted mailbox mapping operations (save, get)",
	Long:  "Save and inspect the versioned mapping between canonical taxonomy keys and provider resources.",
}

var mappingSaveCmd = &cobra.Command{
	Use:   "save ACCOUNT",
	Short: "Persist an approved mapping, bumping its version",
	Long: `Save upserts the mapping for (account, provider). The first save
writes version 1; every later save increments the version atomically.`,
	Example: `  canopy mapping save user@example.com --file mapping.json
  canopy mapping save user@example.com -p o365 -f mapping.json --client-id acme-42`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		account := args[0]
		if mappingFile == "" {
			return fmt.Errorf("no mapping given — pass --file")
		}
		data, err := os.ReadFile(mappingFile)
		if err != nil {
			return fmt.Errorf("read mapping from %s: %w", mappingFile, err)
		}
		var m map[string]mapping.ItemRef
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("parse mapping from %s: %w", mappingFile, err)
		}

		eng, err := engine.New(nil, store)
		if err != nil {
			return err
		}
		resp, err := eng.SaveMapping(context.Background(), account,
			provider.Provider(mappingProvider), mappingClientID, m)
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		display.SuccessMsg("saved mapping for %s (%s): version %d", account, mappingProvider, resp.Version)
		return nil
	},
}

var mappingGetCmd = &cobra.Command{
	Use:     "get ACCOUNT",
	Short:   "Show the current persisted mapping",
	Example: `  canopy mapping get user@example.com -p gmail --json`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		account := args[0]

		eng, err := engine.New(nil, store)
		if err != nil {
			return err
		}
		rec, err := eng.GetMapping(context.Background(), account, provider.Provider(mappingProvider))
		if errors.Is(err, mapping.ErrNotFound) {
			return fmt.Errorf("no mapping saved yet for %s (%s)", account, mappingProvider)
		}
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}

		display.Header(fmt.Sprintf("%s (%s) — version %d", account, rec.Provider, rec.Version))
		if rec.ClientID != "" {
			display.SubHeader("  client: " + rec.ClientID)
		}
		display.SubHeader(fmt.Sprintf("  created %s, updated %s", rec.CreatedAt, rec.UpdatedAt))
		keys := make([]string, 0, len(rec.Mapping))
		for key := range rec.Mapping {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			ref := rec.Mapping[key]
			fmt.Printf("  %-24s → %s %s\n", key, ref.ItemID, display.Dim.Render(strings.Join(ref.Path, " / ")))
		}
		return nil
	},
}

var mappingListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List accounts with a stored mapping",
	Example: `  canopy mapping list --json`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		var records []*mapping.Record
		for _, user := range store.Users() {
			for _, p := range provider.ValidProviders {
				rec, err := store.Get(ctx, user, string(p))
				if errors.Is(err, mapping.ErrNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				records = append(records, rec)
			}
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}

		if len(records) == 0 {
			fmt.Println("no mappings saved yet")
			return nil
		}
		for _, rec := range records {
			fmt.Printf("  %-32s %-6s v%-3d %d keys  %s %s\n",
				rec.UserID, rec.Provider, rec.Version, len(rec.Mapping),
				display.Dim.Render(rec.UpdatedAt),
				display.Muted.Render(display.AccountLabel(rec.UserID)))
		}
		return nil
	},
}

func init() {
	mappingCmd.PersistentFlags().StringVarP(&mappingProvider, "provider", "p", "gmail", "Provider: gmail or o365")
	mappingSaveCmd.Flags().StringVarP(&mappingFile, "file", "f", "", "JSON file with the approved mapping")
	mappingSaveCmd.Flags().StringVar(&mappingClientID, "client-id", "", "Correlation ID (default: generated)")

	mappingCmd.AddCommand(mappingSaveCmd)
	mappingCmd.AddCommand(mappingGetCmd)
	mappingCmd.AddCommand(mappingListCmd)
	rootCmd.AddCommand(mappingCmd)
}
