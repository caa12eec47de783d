package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"msarchive/internal/config"
	"msarchive/internal/index"
	"msarchive/internal/scan"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Self-check: verify archive root, DB, FTS5, and show stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			// check root
			fmt.Println("=== Archive Root ===")
			checkDir("Root", cfg.ArchiveRoot)

			// scan file counts
			fmt.Println("\n=== File Scan ===")
			files, err := scan.ScanRoot(cfg.ArchiveRoot)
			if err != nil {
				fmt.Printf("  scan error: %v\n", err)
			} else {
				msgplusCount, xmlCount := 0, 0
				for _, f := range files {
					if f.Format == "msgplus" {
						msgplusCount++
					} else {
						xmlCount++
					}
				}
				fmt.Printf("  Messenger Plus exports: %d\n", msgplusCount)
				fmt.Printf("  MSN XML exports:        %d\n", xmlCount)
			}

			// check DB
			fmt.Println("\n=== Database ===")
			fmt.Printf("  Path: %s\n", cfg.DBPath)
			if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
				fmt.Println("  Status: NOT FOUND (run 'msa index' first)")
				return nil
			}

			db, err := index.OpenDB(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			archiveCount, err := db.ArchiveCount()
			if err != nil {
				return fmt.Errorf("count archives: %w", err)
			}

			messageCount, err := db.MessageCount()
			if err != nil {
				return fmt.Errorf("count messages: %w", err)
			}

			fmt.Printf("  Archives: %d\n", archiveCount)
			fmt.Printf("  Messages: %d\n", messageCount)

			// check FTS5
			fmt.Println("\n=== FTS5 ===")
			var ftsCount int
			err = db.Raw().QueryRow("SELECT COUNT(*) FROM messages_fts").Scan(&ftsCount)
			if err != nil {
				fmt.Printf("  FTS5 error: %v\n", err)
			} else {
				fmt.Printf("  FTS5 entries: %d\n", ftsCount)
				if ftsCount == messageCount {
					fmt.Println("  Status: OK (synced)")
				} else {
					fmt.Printf("  Status: MISMATCH (messages=%d, fts=%d)\n", messageCount, ftsCount)
				}
			}

			// check DB file size
			if info, err := os.Stat(cfg.DBPath); err == nil {
				sizeMB := float64(info.Size()) / 1024 / 1024
				fmt.Printf("\n=== DB Size: %.1f MB ===\n", sizeMB)
			}

			return nil
		},
	}
}

func checkDir(name, path string) {
	if info, err := os.Stat(path); err != nil {
		fmt.Printf("  %s: %s (NOT FOUND)\n", name, path)
	} else if !info.IsDir() {
		fmt.Printf("  %s: %s (NOT A DIRECTORY)\n", name, path)
	} else {
		fmt.Printf("  %s: %s (OK)\n", name, path)
	}
}
