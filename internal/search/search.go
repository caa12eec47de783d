package search

import (
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	"msarchive/internal/index"
)

type Result struct {
	ArchiveKey  string
	MsgID       int
	UpdatedAt   string
	Format      string
	RecipientID string
	Summary     string
	Snippet     string
	Sender      string
	Rank        float64
}

type Options struct {
	Query  string
	Format string // "" = all, "msgplus", "xml"
	Sender string // "" = all, otherwise display-name substring
	Since  string // "" = no filter, e.g. "2009-01-01"
	Limit  int
}

// containsCJK returns true if the string contains any CJK Unified Ideograph.
func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// makeSnippet extracts a snippet around the first occurrence of query in text.
func makeSnippet(text, query string, contextChars int) string {
	lower := strings.ToLower(text)
	qLower := strings.ToLower(query)
	idx := strings.Index(lower, qLower)
	if idx < 0 {
		// no match, return head
		if len([]rune(text)) > contextChars*2 {
			return string([]rune(text)[:contextChars*2]) + "..."
		}
		return text
	}
	runes := []rune(text)
	qRunes := []rune(query)
	// find rune position of idx
	runePos := len([]rune(text[:idx]))
	start := runePos - contextChars
	if start < 0 {
		start = 0
	}
	end := runePos + len(qRunes) + contextChars
	if end > len(runes) {
		end = len(runes)
	}
	prefix := ""
	suffix := ""
	if start > 0 {
		prefix = "..."
	}
	if end < len(runes) {
		suffix = "..."
	}
	// wrap the matched part with markers
	snippet := string(runes[start:runePos]) +
		">>>" + string(runes[runePos:runePos+len(qRunes)]) + "<<<" +
		string(runes[runePos+len(qRunes):end])
	return prefix + snippet + suffix
}

func Search(db *index.DB, opts Options) ([]Result, error) {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}

	// Fetch more results before dedup so we still have enough after
	origLimit := opts.Limit
	opts.Limit = origLimit * 3

	var results []Result
	var err error
	if containsCJK(opts.Query) {
		results, err = searchLike(db, opts)
	} else {
		results, err = searchFTS(db, opts)
	}
	if err != nil {
		return nil, err
	}

	// Deduplicate: keep only the best-ranked result per archive
	seen := make(map[string]bool)
	var deduped []Result
	for _, r := range results {
		if seen[r.ArchiveKey] {
			continue
		}
		seen[r.ArchiveKey] = true
		deduped = append(deduped, r)
		if len(deduped) >= origLimit {
			break
		}
	}
	return deduped, nil
}

func filterConditions(opts Options) ([]string, []interface{}) {
	var conditions []string
	var args []interface{}

	if opts.Format != "" {
		conditions = append(conditions, "a.format = ?")
		args = append(args, opts.Format)
	}
	if opts.Sender != "" {
		conditions = append(conditions, "m.sender LIKE ?")
		args = append(args, "%"+opts.Sender+"%")
	}
	if opts.Since != "" {
		conditions = append(conditions, "a.updated_at >= ?")
		args = append(args, opts.Since)
	}
	return conditions, args
}

func searchFTS(db *index.DB, opts Options) ([]Result, error) {
	conditions := []string{"messages_fts MATCH ?"}
	args := []interface{}{opts.Query}

	fc, fa := filterConditions(opts)
	conditions = append(conditions, fc...)
	args = append(args, fa...)

	where := strings.Join(conditions, " AND ")

	query := fmt.Sprintf(`
		SELECT
			m.archive_key,
			m.msg_id,
			a.updated_at,
			a.format,
			a.recipient_id,
			a.summary,
			snippet(messages_fts, 0, '>>>','<<<', '...', 40) as snip,
			m.sender,
			bm25(messages_fts, 1.0) as rank
		FROM messages_fts
		JOIN messages m ON messages_fts.rowid = m.rowid
		JOIN archives a ON m.archive_key = a.archive_key
		WHERE %s
		ORDER BY rank
		LIMIT ?
	`, where)

	args = append(args, opts.Limit)

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// searchLike is the CJK fallback: the unicode61 FTS tokenizer cannot
// split ideographs, so substring LIKE matching stands in.
func searchLike(db *index.DB, opts Options) ([]Result, error) {
	conditions := []string{"m.text LIKE ?"}
	args := []interface{}{"%" + opts.Query + "%"}

	fc, fa := filterConditions(opts)
	conditions = append(conditions, fc...)
	args = append(args, fa...)

	where := strings.Join(conditions, " AND ")

	query := fmt.Sprintf(`
		SELECT
			m.archive_key,
			m.msg_id,
			a.updated_at,
			a.format,
			a.recipient_id,
			a.summary,
			m.text,
			m.sender
		FROM messages m
		JOIN archives a ON m.archive_key = a.archive_key
		WHERE %s
		ORDER BY a.updated_at DESC
		LIMIT ?
	`, where)

	args = append(args, opts.Limit)

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var fullText string
		if err := rows.Scan(
			&r.ArchiveKey, &r.MsgID, &r.UpdatedAt,
			&r.Format, &r.RecipientID, &r.Summary,
			&fullText, &r.Sender,
		); err != nil {
			return nil, err
		}
		r.Snippet = makeSnippet(fullText, opts.Query, 30)
		r.Rank = 0
		results = append(results, r)
	}
	return results, rows.Err()
}

// ListAll returns every indexed archive newest-first, one row per
// archive with its summary as the snippet.
func ListAll(db *index.DB, opts Options) ([]Result, error) {
	var conditions []string
	var args []interface{}

	if opts.Format != "" {
		conditions = append(conditions, "a.format = ?")
		args = append(args, opts.Format)
	}
	if opts.Since != "" {
		conditions = append(conditions, "a.updated_at >= ?")
		args = append(args, opts.Since)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10000
	}

	query := fmt.Sprintf(`
		SELECT
			a.archive_key,
			-1,
			a.updated_at,
			a.format,
			a.recipient_id,
			a.summary,
			a.summary,
			'',
			0.0
		FROM archives a
		%s
		ORDER BY a.updated_at DESC
		LIMIT ?
	`, where)

	args = append(args, limit)

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

func scanResults(rows *sql.Rows) ([]Result, error) {
	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(
			&r.ArchiveKey, &r.MsgID, &r.UpdatedAt,
			&r.Format, &r.RecipientID, &r.Summary,
			&r.Snippet, &r.Sender, &r.Rank,
		); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
