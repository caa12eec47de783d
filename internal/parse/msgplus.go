package parse

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Strict formats a Messenger Plus export uses. A violation is a schema
// error for the record being pulled.
const (
	sessionIDLayout  = "Session_2006-01-02T15-04-05"
	headerTimeLayout = "(15:04)"
)

// MessengerPlusArchive reads a Messenger Plus HTML export. The export is
// one XHTML document: each chat session is a div marked class=mplsession,
// each conversation turn a table row under it. Inline images reference
// files relative to the archive's directory and are loaded synchronously
// while the record is assembled.
type MessengerPlusArchive struct {
	details ArchiveDetails
	f       *os.File
	dec     *xml.Decoder
	path    pathContext
	session msgPlusSession
	dir     string
	first   bool // next record is the first of the stream
	done    bool
	closed  bool
	fail    error // terminal stream error, latched
}

// msgPlusSession is the state a session marker establishes for every
// following row, until the next marker overwrites it.
type msgPlusSession struct {
	id          string
	date        time.Time
	owner       string
	counterpart string
	style       string
}

// OpenMessengerPlus opens the Messenger Plus export at path. The archive
// must live in a resolvable directory, because inline images are loaded
// from sibling files.
func OpenMessengerPlus(path string) (*MessengerPlusArchive, error) {
	dir := filepath.Dir(path)
	if dir == path {
		return nil, fmt.Errorf("parse: archive %s has no containing directory", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("parse: open archive: %w", err)
	}
	dec := xml.NewDecoder(bufio.NewReader(f))
	dec.Entity = xml.HTMLEntity
	return &MessengerPlusArchive{
		details: ArchiveDetails{
			RecipientID: fileStem(path),
			Format:      FormatMessengerPlus,
		},
		f:     f,
		dec:   dec,
		dir:   dir,
		first: true,
	}, nil
}

// Next drives the event source until the end of the next table row and
// returns the record assembled from it.
func (a *MessengerPlusArchive) Next() (*Record, error) {
	if a.fail != nil {
		return nil, a.fail
	}
	if a.done {
		return nil, io.EOF
	}
	rec := &Record{}
	for {
		tok, err := a.dec.Token()
		if err == io.EOF {
			a.details.LastSessionID = a.session.id
			a.done = true
			a.Close()
			return nil, io.EOF
		}
		if err != nil {
			a.fail = fmt.Errorf("parse: malformed archive: %w", err)
			a.Close()
			return nil, a.fail
		}
		switch t := tok.(type) {
		case xml.StartElement:
			attrs := attrMap(t.Attr)
			err := a.startElement(t.Name.Local, attrs, rec)
			a.path.enter(t.Name.Local, attrs)
			if err != nil {
				return nil, err
			}
		case xml.CharData:
			data := string(t)
			if strings.TrimSpace(data) == "" {
				// inter-tag whitespace, not character data
				continue
			}
			if err := a.charData(data, rec); err != nil {
				return nil, err
			}
		case xml.EndElement:
			a.path.leave()
			if t.Name.Local == "tr" && a.path.endsWith("html", "body", "div", "table", "tbody") {
				return rec, nil
			}
		}
	}
}

// startElement dispatches a start tag against the ancestor path. The tag
// itself is not on the path yet.
func (a *MessengerPlusArchive) startElement(name string, attrs map[string]string, rec *Record) error {
	switch name {
	case "div":
		if a.path.endsWith("html", "body") && attrs["class"] == "mplsession" {
			if id, ok := attrs["id"]; ok {
				date, err := time.Parse(sessionIDLayout, id)
				if err != nil {
					return fmt.Errorf("parse: session marker %q: %w", id, err)
				}
				a.session.id = id
				a.session.date = date
				if a.details.FirstSessionID == "" {
					a.details.FirstSessionID = id
				}
			}
		}
	case "td":
		if a.path.endsWith("html", "body", "div", "table", "tbody", "tr") {
			if style, ok := attrs["style"]; ok {
				a.session.style = strings.TrimSpace(html.UnescapeString(style))
			}
		}
	case "tr":
		if a.path.endsWith("html", "body", "div", "table", "tbody") {
			rec.SessionID = a.session.id
			if attrs["class"] == "msgplus" {
				// status row: placeholder, replaced once its text is read
				rec.Payload = []Payload{SystemNotice{}}
			}
		}
	case "img":
		if a.path.endsWith("html", "body", "div", "table", "tbody", "tr", "td") {
			if src, ok := attrs["src"]; ok {
				img := Image{
					Src: strings.TrimSpace(src),
					Alt: strings.TrimSpace(attrs["alt"]),
				}
				content, err := os.ReadFile(filepath.Join(a.dir, img.Src))
				if err != nil {
					return fmt.Errorf("parse: load image %s: %w", img.Src, err)
				}
				img.Content = content
				rec.Payload = append(rec.Payload, img)
			}
		}
	}
	return nil
}

// charData dispatches character data against the full ancestor path of
// the text node.
func (a *MessengerPlusArchive) charData(data string, rec *Record) error {
	switch {
	case a.path.endsWith("html", "body", "div", "ul", "li"):
		if a.path.top()["class"] == "in" {
			a.session.owner = strings.TrimSpace(data)
		} else {
			a.session.counterpart = strings.TrimSpace(data)
		}

	case a.path.endsWith("html", "body", "div", "table", "tbody", "tr", "th", "span"):
		t, err := time.Parse(headerTimeLayout, data)
		if err != nil {
			return fmt.Errorf("parse: header time %q: %w", data, err)
		}
		d := a.session.date
		if a.first {
			// Only the session marker carries seconds. The first record
			// inherits them; every later one is minute-precise.
			ts := time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), d.Second(), 0, time.UTC)
			rec.Timestamp = ts.Format("2006-01-02T15:04:05")
			a.first = false
		} else {
			ts := time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
			rec.Timestamp = ts.Format("2006-01-02T15:04")
		}

	case a.path.endsWith("html", "body", "div", "table", "tbody", "tr", "th"):
		// The header line mentions the sender by display name. Substring
		// matching is what the format gives us; it is ambiguous when one
		// participant's name contains the other's.
		if strings.Contains(data, a.session.owner) {
			rec.Sender, rec.Receiver = a.session.owner, a.session.counterpart
		} else {
			rec.Sender, rec.Receiver = a.session.counterpart, a.session.owner
		}

	case a.path.endsWith("html", "body", "div", "table", "tbody", "tr", "td"):
		if len(rec.Payload) > 0 {
			if _, ok := rec.Payload[0].(SystemNotice); ok {
				rec.Payload[0] = SystemNotice{Text: strings.TrimSpace(data)}
				return nil
			}
		}
		txt := Text{Content: data}
		if style, ok := a.path.top()["style"]; ok {
			txt.Style = strings.TrimSpace(style)
		} else {
			txt.Style = a.session.style
		}
		rec.Payload = append(rec.Payload, txt)
	}
	return nil
}

// Details reports archive metadata once the stream is exhausted.
func (a *MessengerPlusArchive) Details() (ArchiveDetails, bool) {
	if !a.done {
		return ArchiveDetails{}, false
	}
	return a.details, true
}

// Close releases the archive file.
func (a *MessengerPlusArchive) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	return a.f.Close()
}
