package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/canopymail/canopy/internal/mapping"
	"github.com/canopymail/canopy/internal/taxonomy"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	dbPath     string
	jsonOutput bool
	quietFlag  bool
	store      *mapping.Store
)

var rootCmd = &cobra.Command{
	Use:   "canopy",
	Short: "canopy - Mailbox taxonomy discovery and provisioning",
	Long:  "Canopy: inspect a mailbox's labels/folders, map them onto the canonical business taxonomy, and provision what is missing.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if quietFlag {
			level = slog.LevelError
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		// Only the mapping commands need the database.
		if cmd.Parent() == nil || cmd.Parent().Name() != "mapping" {
			return nil
		}

		path := dbPath
		if path == "" {
			path = mapping.DiscoverDB()
		}
		if path == "" {
			return fmt.Errorf("no canopy database found — run 'canopy init' first")
		}

		var err error
		store, err = mapping.Open(path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			store.Close()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("canopy version %s\n", Version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize .canopy/ in the project root",
	RunE: func(cmd *cobra.Command, args []string) error {
		root := mapping.FindProjectRoot()
		if root == "" {
			return fmt.Errorf("could not find project root (no .git directory found)")
		}

		path := root + "/.canopy/canopy.db"
		s, err := mapping.Open(path)
		if err != nil {
			return err
		}
		s.Close()

		if !quietFlag {
			fmt.Printf("Initialized canopy at %s\n", path)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: auto-discover .canopy/canopy.db)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	// A broken canonical taxonomy must never reach a user request.
	if err := taxonomy.ValidateAll(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
