package scan

import (
	"os"
	"path/filepath"
	"strings"
)

type FileInfo struct {
	Path   string
	Format string // "msgplus" or "xml"
	Mtime  int64
	Size   int64
}

// ScanRoot walks the archive root and collects every Messenger export it
// finds. Messenger Plus keeps its inline images in Images directories
// next to the exports; those are skipped wholesale.
func ScanRoot(root string) ([]FileInfo, error) {
	var files []FileInfo
	if root == "" {
		return files, nil
	}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable dirs
		}
		if info.IsDir() {
			if filepath.Base(path) == "Images" {
				return filepath.SkipDir
			}
			return nil
		}

		var format string
		switch strings.ToLower(filepath.Ext(path)) {
		case ".html", ".htm":
			format = "msgplus"
		case ".xml":
			format = "xml"
		default:
			return nil
		}

		files = append(files, FileInfo{
			Path:   path,
			Format: format,
			Mtime:  info.ModTime().Unix(),
			Size:   info.Size(),
		})
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return files, nil
}
