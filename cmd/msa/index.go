package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"msarchive/internal/config"
	"msarchive/internal/index"
)

func indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Scan and index Messenger chat exports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			db, err := index.OpenDB(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			fmt.Fprintf(os.Stderr, "Scanning %s\n", cfg.ArchiveRoot)

			stats, err := index.IndexAll(db, cfg.ArchiveRoot)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			fmt.Fprintf(os.Stderr, "Done. %s\n", stats)
			return nil
		},
	}
}
