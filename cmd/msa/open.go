package main

import (
	"github.com/spf13/cobra"

	"msarchive/internal/config"
	"msarchive/internal/index"
	"msarchive/internal/open"
)

func openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <archiveKey>",
		Short: "Open the original export file in $EDITOR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			db, err := index.OpenDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			return open.OpenArchive(db, args[0])
		},
	}
}
