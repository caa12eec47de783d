package index

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"msarchive/internal/parse"
	"msarchive/internal/scan"
)

const maxSummarySize = 200

type Stats struct {
	Scanned int
	Updated int
	Skipped int
	Pruned  int
	Errors  int
}

func (s Stats) String() string {
	return fmt.Sprintf("scanned=%d updated=%d skipped=%d pruned=%d errors=%d",
		s.Scanned, s.Updated, s.Skipped, s.Pruned, s.Errors)
}

// IndexAll scans the archive root and (re)indexes every export whose
// mtime or size changed. Archives whose files vanished are pruned. A
// parse failure on one archive is counted and reported, not fatal to
// the run.
func IndexAll(db *DB, root string) (Stats, error) {
	var stats Stats

	files, err := scan.ScanRoot(root)
	if err != nil {
		return stats, fmt.Errorf("scan: %w", err)
	}
	stats.Scanned = len(files)

	// track which files we see, for pruning
	seenKeys := make(map[string]struct{})

	for _, fi := range files {
		key := archiveKey(fi, root)
		seenKeys[key] = struct{}{}

		needs, err := needsUpdate(db, key, fi.Mtime, fi.Size)
		if err != nil {
			stats.Errors++
			continue
		}
		if !needs {
			stats.Skipped++
			continue
		}

		result, err := parseArchive(fi)
		if err != nil {
			stats.Errors++
			fmt.Fprintf(os.Stderr, "  WARN: parse %s: %v\n", fi.Path, err)
			continue
		}

		if err := indexArchive(db, key, fi, result); err != nil {
			stats.Errors++
			fmt.Fprintf(os.Stderr, "  WARN: index %s: %v\n", fi.Path, err)
			continue
		}
		stats.Updated++
	}

	// prune archives whose files no longer exist
	pruned, err := pruneArchives(db, seenKeys)
	if err != nil {
		return stats, fmt.Errorf("prune: %w", err)
	}
	stats.Pruned = pruned

	return stats, nil
}

// archiveKey derives a stable key from the root-relative path, prefixed
// by the format so an .html and an .xml export of the same contact do
// not collide.
func archiveKey(fi scan.FileInfo, root string) string {
	rel, err := filepath.Rel(root, fi.Path)
	if err != nil {
		rel = fi.Path
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return fi.Format + ":" + filepath.ToSlash(rel)
}

// parseResult is one fully drained archive.
type parseResult struct {
	details parse.ArchiveDetails
	records []*parse.Record
}

func parseArchive(fi scan.FileInfo) (*parseResult, error) {
	var (
		a   parse.Archive
		err error
	)
	switch fi.Format {
	case "msgplus":
		a, err = parse.OpenMessengerPlus(fi.Path)
	case "xml":
		a, err = parse.OpenXML(fi.Path)
	default:
		return nil, fmt.Errorf("unknown format: %s", fi.Format)
	}
	if err != nil {
		return nil, err
	}
	defer a.Close()

	var result parseResult
	for {
		rec, err := a.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		result.records = append(result.records, rec)
	}

	details, ok := a.Details()
	if !ok {
		return nil, fmt.Errorf("archive details unavailable after drain: %s", fi.Path)
	}
	result.details = details
	return &result, nil
}

// recordText flattens a record's payload for indexing: text runs and the
// system notice verbatim, images as their alt text.
func recordText(rec *parse.Record) string {
	var parts []string
	for _, p := range rec.Payload {
		switch p := p.(type) {
		case parse.Text:
			if s := strings.TrimSpace(p.Content); s != "" {
				parts = append(parts, s)
			}
		case parse.Image:
			if p.Alt != "" {
				parts = append(parts, p.Alt)
			}
		case parse.SystemNotice:
			if p.Text != "" {
				parts = append(parts, p.Text)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// recordKind classifies a record for display filtering.
func recordKind(rec *parse.Record) string {
	for _, p := range rec.Payload {
		switch p.(type) {
		case parse.SystemNotice:
			return "system"
		case parse.Image:
			return "image"
		}
	}
	return "text"
}

func needsUpdate(db *DB, archiveKey string, mtime, size int64) (bool, error) {
	info, err := db.GetArchiveInfo(archiveKey)
	if err != nil {
		return false, err
	}
	if info == nil {
		return true, nil // new archive
	}
	return info.Mtime != mtime || info.Size != size, nil
}

func indexArchive(db *DB, key string, fi scan.FileInfo, result *parseResult) error {
	// delete old data first
	if err := db.DeleteArchive(key); err != nil {
		return err
	}

	tx, err := db.Raw().Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// status rows carry no header time, so skip empty timestamps
	var createdAt, updatedAt, summary string
	for _, rec := range result.records {
		if rec.Timestamp != "" {
			createdAt = rec.Timestamp
			break
		}
	}
	for i := len(result.records) - 1; i >= 0; i-- {
		if result.records[i].Timestamp != "" {
			updatedAt = result.records[i].Timestamp
			break
		}
	}
	for _, rec := range result.records {
		if s := recordText(rec); s != "" {
			if len(s) > maxSummarySize {
				s = s[:maxSummarySize]
			}
			summary = strings.ReplaceAll(s, "\n", " ")
			break
		}
	}

	_, err = tx.Exec(
		`INSERT INTO archives (archive_key, format, file_path, recipient_id, first_session_id,
		                       last_session_id, created_at, updated_at, summary, mtime, size)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key,
		string(result.details.Format),
		fi.Path,
		result.details.RecipientID,
		result.details.FirstSessionID,
		result.details.LastSessionID,
		createdAt,
		updatedAt,
		summary,
		fi.Mtime,
		fi.Size,
	)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO messages (archive_key, msg_id, ts, session_id, sender, receiver, kind, text, tz_offset)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, rec := range result.records {
		_, err := stmt.Exec(
			key,
			i,
			rec.Timestamp,
			rec.SessionID,
			rec.Sender,
			rec.Receiver,
			recordKind(rec),
			recordText(rec),
			rec.TimezoneOffset,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func pruneArchives(db *DB, seenKeys map[string]struct{}) (int, error) {
	allKeys, err := db.AllArchiveKeys()
	if err != nil {
		return 0, err
	}

	pruned := 0
	for key := range allKeys {
		if _, ok := seenKeys[key]; !ok {
			if err := db.DeleteArchive(key); err != nil {
				return pruned, err
			}
			pruned++
		}
	}
	return pruned, nil
}
