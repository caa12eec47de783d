package parse

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func TestXMLArchive(t *testing.T) {
	a, err := OpenXML("testdata/alice1234.xml")
	require.NoError(t, err)
	defer a.Close()

	_, ok := a.Details()
	assert.False(t, ok, "details must be unavailable before the stream is drained")

	want := []*Record{
		{
			Timestamp:      "2009-04-06T19:40:41.851Z",
			TimezoneOffset: intp(120),
			SessionID:      "1",
			Sender:         "Alice",
			Receiver:       "Bob",
			Payload: []Payload{
				Text{Style: "font-family:Courier New; color:#004000; ", Content: "Hello!"},
			},
		},
		{
			Timestamp:      "2009-04-06T20:22:05.918Z",
			TimezoneOffset: intp(120),
			SessionID:      "1",
			Sender:         "Bob",
			Receiver:       "Alice",
			Payload: []Payload{
				Text{Style: "font-family:Courier New; color:#004000; ", Content: "Hi "},
				Text{Style: "font-family:Arial; color:#004020; ", Content: "Alice!"},
			},
		},
	}

	for i, w := range want {
		got, err := a.Next()
		require.NoError(t, err, "record %d", i)
		assert.Equal(t, w, got, "record %d", i)
	}

	_, err = a.Next()
	assert.ErrorIs(t, err, io.EOF)

	details, ok := a.Details()
	require.True(t, ok)
	assert.Equal(t, ArchiveDetails{
		RecipientID:    "alice1234",
		Format:         FormatXML,
		FirstSessionID: "1",
		LastSessionID:  "1",
	}, details)
}

// An empty Log still freezes details at end of document: ids default to
// "0" and no records are yielded.
func TestXMLArchiveEmptyLog(t *testing.T) {
	a, err := OpenXML("testdata/scrappy.xml")
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Next()
	assert.ErrorIs(t, err, io.EOF)

	details, ok := a.Details()
	require.True(t, ok)
	assert.Equal(t, ArchiveDetails{
		RecipientID:    "scrappy",
		Format:         FormatXML,
		FirstSessionID: "0",
		LastSessionID:  "0",
	}, details)
}

func TestTimezoneOffset(t *testing.T) {
	tests := []struct {
		name     string
		dateTime string
		local    string
		want     *int
	}{
		{"two hours east", "2009-04-06T19:40:41.851Z", "21:40:41", intp(120)},
		{"five hours west", "2009-04-06T19:40:41.851Z", "14:40:41", intp(-300)},
		{"zero is still a value", "2009-04-06T19:40:41.851Z", "19:40:41", intp(0)},
		{"sub-minute remainder truncates", "2009-04-06T19:40:41.851Z", "21:41:11", intp(120)},
		{"seconds are required on the local clock", "2009-04-06T19:40:41Z", "21:40", nil},
		{"missing local time", "2009-04-06T19:40:41.851Z", "", nil},
		{"unparsable local time", "2009-04-06T19:40:41.851Z", "later", nil},
		{"missing datetime", "", "21:40:41", nil},
		{"truncated datetime", "2009-04-06T19:40", "21:40:41", nil},
		{"unparsable datetime", "not-a-date-not-at-all", "21:40:41", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, timezoneOffset(tt.dateTime, tt.local))
		})
	}
}

func TestXMLArchiveDefaults(t *testing.T) {
	doc := `<?xml version="1.0"?>
<Log>
<Message>
<From><User/></From>
<To><User/></To>
<Text>bare message</Text>
</Message>
</Log>
`
	path := filepath.Join(t.TempDir(), "nolog.xml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	a, err := OpenXML(path)
	require.NoError(t, err)
	defer a.Close()

	rec, err := a.Next()
	require.NoError(t, err)
	assert.Equal(t, "0", rec.SessionID)
	assert.Empty(t, rec.Timestamp)
	assert.Nil(t, rec.TimezoneOffset, "offset stays unset, never zero by default")
	assert.Empty(t, rec.Sender)
	assert.Empty(t, rec.Receiver)
	assert.Equal(t, []Payload{Text{Content: "bare message"}}, rec.Payload)

	_, err = a.Next()
	assert.ErrorIs(t, err, io.EOF)

	details, ok := a.Details()
	require.True(t, ok)
	assert.Equal(t, "0", details.FirstSessionID)
	assert.Equal(t, "0", details.LastSessionID)
}

func TestXMLArchiveRecordCountMatchesMessages(t *testing.T) {
	a, err := OpenXML("testdata/alice1234.xml")
	require.NoError(t, err)
	defer a.Close()

	assert.Len(t, drain(t, a), 2)
}

func TestXMLArchiveMalformed(t *testing.T) {
	doc := `<?xml version="1.0"?>
<Log>
<Message>
`
	path := filepath.Join(t.TempDir(), "broken.xml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	a, err := OpenXML(path)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Next()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)

	_, again := a.Next()
	assert.Equal(t, err, again)
}
