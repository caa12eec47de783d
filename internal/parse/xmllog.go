package parse

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// XMLArchive reads the XML history file MSN Messenger writes when
// message logging is enabled. The document is a single Log element whose
// Message children each become one record. Unlike the Messenger Plus
// dialect, dispatch needs only element names plus an ancestor-presence
// test to tell From users from To users.
type XMLArchive struct {
	details ArchiveDetails
	f       *os.File
	dec     *xml.Decoder
	path    pathContext
	done    bool
	closed  bool
	fail    error
}

// OpenXML opens the MSN Messenger XML export at path.
func OpenXML(path string) (*XMLArchive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("parse: open archive: %w", err)
	}
	return &XMLArchive{
		details: ArchiveDetails{
			RecipientID: fileStem(path),
			Format:      FormatXML,
		},
		f:   f,
		dec: xml.NewDecoder(bufio.NewReader(f)),
	}, nil
}

// Next drives the event source until the next Message element closes and
// returns the record assembled from it.
func (a *XMLArchive) Next() (*Record, error) {
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
			a.startElement(t.Name.Local, attrs, rec)
			a.path.enter(t.Name.Local, attrs)
		case xml.CharData:
			data := string(t)
			if strings.TrimSpace(data) == "" {
				continue
			}
			if a.path.endsWith("Message", "Text") && len(rec.Payload) > 0 {
				if txt, ok := rec.Payload[len(rec.Payload)-1].(Text); ok {
					txt.Content = data
					rec.Payload[len(rec.Payload)-1] = txt
				}
			}
		case xml.EndElement:
			a.path.leave()
			if t.Name.Local == "Message" {
				return rec, nil
			}
		}
	}
}

func (a *XMLArchive) startElement(name string, attrs map[string]string, rec *Record) {
	switch name {
	case "Log":
		a.details.FirstSessionID = attrOr(attrs, "FirstSessionID", "0")
		a.details.LastSessionID = attrOr(attrs, "LastSessionID", "0")
	case "Message":
		rec.SessionID = attrOr(attrs, "SessionID", "0")
		rec.Timestamp = attrs["DateTime"]
		rec.TimezoneOffset = timezoneOffset(attrs["DateTime"], attrs["Time"])
	case "User":
		switch {
		case a.path.contains("From"):
			rec.Sender = attrs["FriendlyName"]
		case a.path.contains("To"):
			rec.Receiver = attrs["FriendlyName"]
		}
	case "Text":
		rec.Payload = append(rec.Payload, Text{Style: attrs["Style"]})
	}
}

// timezoneOffset derives the archive's UTC offset in whole minutes from
// the UTC DateTime attribute and the local wall-clock Time attribute.
// Either one missing or unparsable leaves the offset unknown; that is
// not an error.
func timezoneOffset(dateTime, local string) *int {
	const prefix = "2006-01-02T15:04:05"
	if len(dateTime) < len(prefix) {
		return nil
	}
	utc, err := time.Parse(prefix, dateTime[:len(prefix)])
	if err != nil {
		return nil
	}
	loc, err := parseClock(local)
	if err != nil {
		return nil
	}
	min := (secondOfDay(loc) - secondOfDay(utc)) / 60
	return &min
}

var clockLayouts = []string{"15:04:05", "15:04:05.999999999"}

func parseClock(s string) (time.Time, error) {
	var err error
	for _, layout := range clockLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

func secondOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

// Details reports archive metadata once the stream is exhausted.
func (a *XMLArchive) Details() (ArchiveDetails, bool) {
	if !a.done {
		return ArchiveDetails{}, false
	}
	return a.details, true
}

// Close releases the archive file.
func (a *XMLArchive) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	return a.f.Close()
}
