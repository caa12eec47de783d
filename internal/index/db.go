package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA cache_size = -64000;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS archives (
    archive_key      TEXT PRIMARY KEY,
    format           TEXT NOT NULL,
    file_path        TEXT NOT NULL,
    recipient_id     TEXT NOT NULL DEFAULT '',
    first_session_id TEXT NOT NULL DEFAULT '',
    last_session_id  TEXT NOT NULL DEFAULT '',
    created_at       TEXT NOT NULL DEFAULT '',
    updated_at       TEXT NOT NULL DEFAULT '',
    summary          TEXT NOT NULL DEFAULT '',
    mtime            INTEGER NOT NULL DEFAULT 0,
    size             INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS messages (
    archive_key TEXT NOT NULL,
    msg_id      INTEGER NOT NULL,
    ts          TEXT NOT NULL DEFAULT '',
    session_id  TEXT NOT NULL DEFAULT '',
    sender      TEXT NOT NULL DEFAULT '',
    receiver    TEXT NOT NULL DEFAULT '',
    kind        TEXT NOT NULL DEFAULT 'text',
    text        TEXT NOT NULL,
    tz_offset   INTEGER,
    PRIMARY KEY (archive_key, msg_id)
);

CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    text,
    content=messages,
    content_rowid=rowid,
    tokenize='unicode61'
);

-- triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
    INSERT INTO messages_fts(rowid, text) VALUES (new.rowid, new.text);
END;

CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, text) VALUES('delete', old.rowid, old.text);
END;

CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, text) VALUES('delete', old.rowid, old.text);
    INSERT INTO messages_fts(rowid, text) VALUES (new.rowid, new.text);
END;
`

type DB struct {
	db *sql.DB
}

func OpenDB(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	// schema version tracking for forced re-index
	db.Exec("CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT)")
	d := &DB{db: db}
	d.migrateSchemaVersion()

	return d, nil
}

// schemaVersion should be bumped whenever record parsing or flattening
// changes, to force a full re-index.
const schemaVersion = "1"

func (d *DB) migrateSchemaVersion() {
	var ver string
	err := d.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&ver)
	if err != nil || ver != schemaVersion {
		// force re-index by resetting all archive mtime/size to 0
		d.db.Exec("UPDATE archives SET mtime = 0, size = 0")
		d.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)", schemaVersion)
	}
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Raw() *sql.DB {
	return d.db
}

type ArchiveInfo struct {
	Mtime int64
	Size  int64
}

func (d *DB) GetArchiveInfo(archiveKey string) (*ArchiveInfo, error) {
	var info ArchiveInfo
	err := d.db.QueryRow(
		"SELECT mtime, size FROM archives WHERE archive_key = ?",
		archiveKey,
	).Scan(&info.Mtime, &info.Size)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (d *DB) AllArchiveKeys() (map[string]struct{}, error) {
	rows, err := d.db.Query("SELECT archive_key FROM archives")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys[k] = struct{}{}
	}
	return keys, rows.Err()
}

func (d *DB) DeleteArchive(archiveKey string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM messages WHERE archive_key = ?", archiveKey); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM archives WHERE archive_key = ?", archiveKey); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *DB) ArchiveCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM archives").Scan(&n)
	return n, err
}

func (d *DB) MessageCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&n)
	return n, err
}

type ArchiveRow struct {
	ArchiveKey     string
	Format         string
	FilePath       string
	RecipientID    string
	FirstSessionID string
	LastSessionID  string
	CreatedAt      string
	UpdatedAt      string
	Summary        string
}

func (d *DB) GetArchiveByKey(archiveKey string) (*ArchiveRow, error) {
	var a ArchiveRow
	err := d.db.QueryRow(
		`SELECT archive_key, format, file_path, recipient_id, first_session_id, last_session_id,
		        created_at, updated_at, summary
		 FROM archives WHERE archive_key = ?`,
		archiveKey,
	).Scan(&a.ArchiveKey, &a.Format, &a.FilePath, &a.RecipientID, &a.FirstSessionID,
		&a.LastSessionID, &a.CreatedAt, &a.UpdatedAt, &a.Summary)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

type MessageRow struct {
	ArchiveKey string
	MsgID      int
	Ts         string
	SessionID  string
	Sender     string
	Receiver   string
	Kind       string
	Text       string
	TzOffset   *int
}

func (d *DB) GetMessages(archiveKey string) ([]MessageRow, error) {
	rows, err := d.db.Query(
		`SELECT archive_key, msg_id, ts, session_id, sender, receiver, kind, text, tz_offset
		 FROM messages WHERE archive_key = ? ORDER BY msg_id`,
		archiveKey,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []MessageRow
	for rows.Next() {
		var m MessageRow
		if err := rows.Scan(&m.ArchiveKey, &m.MsgID, &m.Ts, &m.SessionID, &m.Sender,
			&m.Receiver, &m.Kind, &m.Text, &m.TzOffset); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// GetMessagesWindow returns a window of messages around a hit message.
// It only loads the necessary rows from the database instead of the
// whole conversation. startPos is the number of messages before the
// returned window; totalCount is the total in the archive.
func (d *DB) GetMessagesWindow(archiveKey string, hitMsgID, context int) (msgs []MessageRow, hitIdx int, startPos int, totalCount int, err error) {
	err = d.db.QueryRow(
		"SELECT COUNT(*) FROM messages WHERE archive_key = ?", archiveKey,
	).Scan(&totalCount)
	if err != nil {
		return nil, -1, 0, 0, err
	}

	// find the row_number (0-based position) of the hit message
	hitPos := -1
	if hitMsgID >= 0 {
		err = d.db.QueryRow(`
			SELECT pos FROM (
				SELECT msg_id, ROW_NUMBER() OVER (ORDER BY msg_id) - 1 AS pos
				FROM messages WHERE archive_key = ?
			) WHERE msg_id = ?`,
			archiveKey, hitMsgID,
		).Scan(&hitPos)
		if err == sql.ErrNoRows {
			hitPos = -1
			err = nil
		} else if err != nil {
			return nil, -1, 0, 0, err
		}
	}

	// compute window bounds
	startPos = 0
	limit := totalCount
	if hitPos >= 0 {
		startPos = hitPos - context
		if startPos < 0 {
			startPos = 0
		}
		endPos := hitPos + context + 1
		if endPos > totalCount {
			endPos = totalCount
		}
		limit = endPos - startPos
	}

	rows, err := d.db.Query(
		`SELECT archive_key, msg_id, ts, session_id, sender, receiver, kind, text, tz_offset
		 FROM messages WHERE archive_key = ? ORDER BY msg_id LIMIT ? OFFSET ?`,
		archiveKey, limit, startPos,
	)
	if err != nil {
		return nil, -1, 0, 0, err
	}
	defer rows.Close()

	var result []MessageRow
	localHitIdx := -1
	for rows.Next() {
		var m MessageRow
		if err := rows.Scan(&m.ArchiveKey, &m.MsgID, &m.Ts, &m.SessionID, &m.Sender,
			&m.Receiver, &m.Kind, &m.Text, &m.TzOffset); err != nil {
			return nil, -1, 0, 0, err
		}
		if m.MsgID == hitMsgID {
			localHitIdx = len(result)
		}
		result = append(result, m)
	}
	return result, localHitIdx, startPos, totalCount, rows.Err()
}
