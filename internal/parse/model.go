// Package parse implements streaming readers for legacy MSN Messenger
// chat archives. Two mutually incompatible dialects are supported: the
// HTML export written by Messenger Plus and the XML export written by
// MSN Messenger itself. Both yield normalized Records one at a time and
// expose archive-level details once the underlying stream is drained.
package parse

import (
	"path/filepath"
	"strings"
)

// Format identifies the archive dialect.
type Format string

const (
	FormatMessengerPlus Format = "msgplus"
	FormatXML           Format = "xml"
)

// ArchiveDetails is archive-wide metadata, accumulated as a side effect
// of pulling records and frozen at end of stream.
type ArchiveDetails struct {
	RecipientID    string
	Format         Format
	FirstSessionID string
	LastSessionID  string
}

// Record is one normalized conversation turn.
type Record struct {
	// Timestamp is ISO-like. Precision varies by dialect: in a Messenger
	// Plus archive only the session marker carries seconds, so the first
	// record of the stream is second-precise and every later one is
	// minute-precise.
	Timestamp string
	// TimezoneOffset is the archive's UTC offset in minutes, when it can
	// be derived. nil means unknown, never zero by default.
	TimezoneOffset *int
	SessionID      string
	Sender         string
	Receiver       string
	Payload        []Payload
}

// Payload is one content entry of a record: Text, Image or SystemNotice.
// Entries keep the order in which content appeared in the archive.
type Payload interface{ isPayload() }

// Text is a styled text run.
type Text struct {
	Style   string
	Content string
}

// Image is an inline image whose bytes are copied from the file stored
// next to the archive.
type Image struct {
	Src     string
	Alt     string
	Content []byte
}

// SystemNotice is a status line such as "Alice is now offline". A record
// holding one has no other payload entries.
type SystemNotice struct {
	Text string
}

func (Text) isPayload()         {}
func (Image) isPayload()        {}
func (SystemNotice) isPayload() {}

// Archive is a pull-based reader over a single archive file. An Archive
// owns its file handle and parse state and must not be shared between
// goroutines. The stream is not restartable.
type Archive interface {
	// Next returns the next record, or io.EOF once the archive is
	// exhausted. A malformed-markup error is terminal and repeats on
	// every later call; a schema or attachment error fails only the
	// record being pulled.
	Next() (*Record, error)
	// Details reports archive-wide metadata. ok is false until the
	// stream has been fully drained; afterwards the value is frozen.
	Details() (details ArchiveDetails, ok bool)
	// Close releases the underlying file. Safe to call more than once;
	// Next closes the file itself on exhaustion or terminal error.
	Close() error
}

var (
	_ Archive = (*MessengerPlusArchive)(nil)
	_ Archive = (*XMLArchive)(nil)
)

// fileStem is the archive file name without directory or extension.
// Exports are named after the contact, so it doubles as the recipient id.
func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
