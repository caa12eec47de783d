package open

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"msarchive/internal/index"
)

// OpenArchive opens the archive's source export in $EDITOR. The exports
// are single-line-heavy HTML/XML so there is no useful line to jump to;
// the file opens at the top.
func OpenArchive(db *index.DB, archiveKey string) error {
	archive, err := db.GetArchiveByKey(archiveKey)
	if err != nil {
		return fmt.Errorf("get archive: %w", err)
	}
	if archive == nil {
		return fmt.Errorf("archive not found: %s", archiveKey)
	}

	filePath := archive.FilePath
	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("file not found: %s", filePath)
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "less"
	}

	return openInEditor(editor, filePath)
}

func openInEditor(editor, filePath string) error {
	var cmd *exec.Cmd

	switch {
	case strings.Contains(editor, "code"):
		cmd = exec.Command(editor, "--wait", filePath)
	default:
		cmd = exec.Command(editor, filePath)
	}

	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
