package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"msarchive/internal/config"
	"msarchive/internal/index"
	"msarchive/internal/search"
	"msarchive/internal/tui"
)

const (
	sColorReset   = "\033[0m"
	sColorBoldRed = "\033[1;31m"
	sColorBlue    = "\033[1;34m"
	sColorGreen   = "\033[1;32m"
	sColorDim     = "\033[2m"
)

func colorizeFormat(format string) string {
	switch format {
	case "msgplus":
		return sColorBlue + format + sColorReset
	case "xml":
		return sColorGreen + format + sColorReset
	default:
		return format
	}
}

func colorizeSnippet(snippet string) string {
	snippet = strings.ReplaceAll(snippet, ">>>", sColorBoldRed)
	snippet = strings.ReplaceAll(snippet, "<<<", sColorReset)
	return snippet
}

func searchCmd() *cobra.Command {
	var format, sender, since string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search across indexed conversations",
		Long: `Search indexed conversations using FTS5. Output is TSV for fzf integration:
  archiveKey, msgId, updatedAt, format, recipient, summary, snippet

Recommended shell function (add to .zshrc):
  msaf() {
    msa search "$*" | fzf \
      --ansi \
      --delimiter='\t' --with-nth=3.. \
      --preview 'msa preview {1} --hit {2} --context 5 --query {q}' \
      --preview-window=right:60%:wrap \
      --preview-debounce=150 \
      --bind 'enter:execute(msa open {1})'
  }`,
		Args: cobra.ExactArgs(1),
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

			// Auto-update index before searching
			index.IndexAll(db, cfg.ArchiveRoot)

			opts := search.Options{
				Format: format,
				Sender: sender,
				Since:  since,
				Limit:  limit,
			}

			// Interactive TUI when stdout is a terminal; TSV output for pipes
			if term.IsTerminal(int(os.Stdout.Fd())) {
				return tui.Run(db, args[0], opts)
			}

			opts.Query = args[0]
			results, err := search.Search(db, opts)
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Fprintln(os.Stderr, "No results found.")
				return nil
			}

			for _, r := range results {
				snippet := strings.ReplaceAll(r.Snippet, "\t", " ")
				snippet = strings.ReplaceAll(snippet, "\n", " ")
				snippet = colorizeSnippet(snippet)
				summary := strings.ReplaceAll(r.Summary, "\t", " ")
				summary = strings.ReplaceAll(summary, "\n", " ")
				recipient := r.RecipientID
				if recipient == "" {
					recipient = "-"
				}
				// first two fields (archiveKey, msgID) stay plain for fzf {1} {2}
				fmt.Printf("%s\t%d\t%s%s%s\t%s\t%s\t%s\t%s\n",
					r.ArchiveKey,
					r.MsgID,
					sColorDim, r.UpdatedAt, sColorReset,
					colorizeFormat(r.Format),
					recipient,
					summary,
					snippet,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Filter by dialect (msgplus/xml)")
	cmd.Flags().StringVar(&sender, "sender", "", "Filter by sender display name")
	cmd.Flags().StringVar(&since, "since", "", "Filter archives updated since date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Max results")

	return cmd
}
