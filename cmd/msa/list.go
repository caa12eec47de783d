package main

import (
	"github.com/spf13/cobra"

	"msarchive/internal/config"
	"msarchive/internal/index"
	"msarchive/internal/search"
	"msarchive/internal/tui"
)

func listCmd() *cobra.Command {
	var format, since string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Browse all archives sorted by last message time",
		Long:  `Opens a TUI panel showing all indexed archives sorted by last message time (newest first). Type to filter by conversation content.`,
		Args:  cobra.NoArgs,
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

			index.IndexAll(db, cfg.ArchiveRoot)

			opts := search.Options{
				Format: format,
				Since:  since,
				Limit:  limit,
			}

			return tui.RunList(db, opts)
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Filter by dialect (msgplus/xml)")
	cmd.Flags().StringVar(&since, "since", "", "Filter archives updated since date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results (0 = no limit)")

	return cmd
}
