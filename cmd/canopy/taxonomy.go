package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/canopymail/canopy/internal/display"
	"github.com/canopymail/canopy/internal/taxonomy"
)

var taxonomyBusinessType string

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Canonical taxonomy operations",
}

var taxonomyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Render the canonical taxonomy for a business type",
	Example: `  canopy taxonomy show
  canopy taxonomy show -b ecommerce --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		items := taxonomy.ForBusinessType(taxonomyBusinessType)

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}

		display.Header(fmt.Sprintf("Canonical taxonomy (%s)", taxonomyBusinessType))
		printItems(items, "  ")
		return nil
	},
}

func printItems(items []taxonomy.Item, indent string) {
	for i, it := range items {
		connector := "├─"
		childIndent := indent + "│  "
		if i == len(items)-1 {
			connector = "└─"
			childIndent = indent + "   "
		}
		swatch := display.Dim.Render(strings.ToLower(it.Color))
		fmt.Printf("%s%s %s %s\n", indent, display.Muted.Render(connector), it.DisplayName, swatch)
		printItems(it.Children, childIndent)
	}
}

func init() {
	taxonomyShowCmd.Flags().StringVarP(&taxonomyBusinessType, "business-type", "b", "default", "Business type taxonomy variant")

	taxonomyCmd.AddCommand(taxonomyShowCmd)
	rootCmd.AddCommand(taxonomyCmd)
}
