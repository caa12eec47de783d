package parse

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleArchive = "testdata/alice@example.com.html"

func drain(t *testing.T, a Archive) []*Record {
	t.Helper()
	var recs []*Record
	for {
		rec, err := a.Next()
		if err == io.EOF {
			return recs
		}
		require.NoError(t, err)
		recs = append(recs, rec)
	}
}

func TestMessengerPlusArchive(t *testing.T) {
	a, err := OpenMessengerPlus(sampleArchive)
	require.NoError(t, err)
	defer a.Close()

	img, err := os.ReadFile("testdata/Images/MsgPlus_Img0663.png")
	require.NoError(t, err)

	_, ok := a.Details()
	assert.False(t, ok, "details must be unavailable before the stream is drained")

	const session = "Session_2009-08-05T19-30-21"
	courier := `font-family:"Courier New";color:#004000;`
	segoe := `font-family:"Segoe UI";`

	want := []*Record{
		{
			Timestamp: "2009-08-05T19:30:21",
			SessionID: session,
			Sender:    "Bob",
			Receiver:  "Alice",
			Payload: []Payload{
				Text{Style: courier, Content: "Hello Alice!"},
				Text{Style: courier, Content: "How are you?"},
			},
		},
		{
			Timestamp: "2009-08-05T19:30",
			SessionID: session,
			Sender:    "Alice",
			Receiver:  "Bob",
			Payload: []Payload{
				Text{Style: segoe, Content: "I'm fine, thank you!"},
				Text{Style: segoe, Content: "What about you?"},
				Text{Style: segoe, Content: "Have you called John about this weekend?"},
			},
		},
		{
			Timestamp: "2009-08-05T19:31",
			SessionID: session,
			Sender:    "Bob",
			Receiver:  "Alice",
			Payload: []Payload{
				Text{Style: courier, Content: "Yes!"},
				Text{Style: courier, Content: "He should have called you..."},
			},
		},
		{
			Timestamp: "2009-08-05T19:31",
			SessionID: session,
			Sender:    "Alice",
			Receiver:  "Bob",
			Payload:   []Payload{Text{Style: segoe, Content: "He didn't!"}},
		},
		{
			Timestamp: "2009-08-05T19:35",
			SessionID: session,
			Sender:    "Bob",
			Receiver:  "Alice",
			Payload: []Payload{
				Image{Src: "./Images/MsgPlus_Img0663.png", Alt: ":)", Content: img},
				Text{Style: courier, Content: "Maybe you can call him?"},
			},
		},
		{
			Timestamp: "2009-08-05T19:44",
			SessionID: session,
			Payload:   []Payload{SystemNotice{Text: "Alice is now offline"}},
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
		RecipientID:    "alice@example.com",
		Format:         FormatMessengerPlus,
		FirstSessionID: session,
		LastSessionID:  session,
	}, details)
}

func TestMessengerPlusTimestampPrecision(t *testing.T) {
	a, err := OpenMessengerPlus(sampleArchive)
	require.NoError(t, err)
	defer a.Close()

	recs := drain(t, a)
	require.NotEmpty(t, recs)

	assert.Len(t, recs[0].Timestamp, len("2009-08-05T19:30:21"),
		"only the first record carries seconds")
	for i, r := range recs[1:] {
		assert.Len(t, r.Timestamp, len("2009-08-05T19:30"), "record %d", i+1)
	}
}

func TestMessengerPlusReparseIsIdentical(t *testing.T) {
	first, err := OpenMessengerPlus(sampleArchive)
	require.NoError(t, err)
	defer first.Close()
	second, err := OpenMessengerPlus(sampleArchive)
	require.NoError(t, err)
	defer second.Close()

	assert.Equal(t, drain(t, first), drain(t, second))

	d1, ok := first.Details()
	require.True(t, ok)
	d2, ok := second.Details()
	require.True(t, ok)
	assert.Equal(t, d1, d2)
}

func TestMessengerPlusDetailsFrozen(t *testing.T) {
	a, err := OpenMessengerPlus(sampleArchive)
	require.NoError(t, err)
	defer a.Close()
	drain(t, a)

	d1, ok := a.Details()
	require.True(t, ok)
	d2, ok := a.Details()
	require.True(t, ok)
	assert.Equal(t, d1, d2)
}

// ownerArchive builds a two-row archive where the class="in" flag sits on
// the given participant.
func ownerArchive(t *testing.T, inName, otherName string) string {
	t.Helper()
	doc := fmt.Sprintf(`<?xml version="1.0"?>
<html>
<body>
<div class="mplsession" id="Session_2010-01-02T08-15-30">
<ul>
<li class="in">%s</li>
<li>%s</li>
</ul>
<table>
<tbody>
<tr>
<th><span>(08:15)</span> Bob says:</th>
<td style="color:#000000;">first line</td>
</tr>
<tr>
<th><span>(08:16)</span> Alice says:</th>
<td style="color:#000000;">second line</td>
</tr>
</tbody>
</table>
</div>
</body>
</html>
`, inName, otherName)

	path := filepath.Join(t.TempDir(), "contact@example.com.html")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

// Swapping which participant carries the owner flag must swap sender and
// receiver consistently on every record. The underlying substring
// heuristic is inherently ambiguous when one display name contains the
// other; that behavior is preserved on purpose.
func TestMessengerPlusOwnerFlagSwap(t *testing.T) {
	parseSenders := func(path string) [][2]string {
		a, err := OpenMessengerPlus(path)
		require.NoError(t, err)
		defer a.Close()
		var out [][2]string
		for _, r := range drain(t, a) {
			out = append(out, [2]string{r.Sender, r.Receiver})
		}
		return out
	}

	bobOwned := parseSenders(ownerArchive(t, "Bob", "Alice"))
	assert.Equal(t, [][2]string{{"Bob", "Alice"}, {"Alice", "Bob"}}, bobOwned)

	aliceOwned := parseSenders(ownerArchive(t, "Alice", "Bob"))
	assert.Equal(t, [][2]string{{"Bob", "Alice"}, {"Alice", "Bob"}}, aliceOwned)
}

func TestMessengerPlusSystemNoticeRow(t *testing.T) {
	doc := `<?xml version="1.0"?>
<html>
<body>
<div class="mplsession" id="Session_2010-01-02T08-15-30">
<ul>
<li class="in">Bob</li>
<li>Alice</li>
</ul>
<table>
<tbody>
<tr>
<th><span>(08:15)</span> Bob says:</th>
<td style="color:#000000;">hello there</td>
</tr>
<tr class="msgplus">
<td colspan="2">  Alice is now away  </td>
</tr>
</tbody>
</table>
</div>
</body>
</html>
`
	path := filepath.Join(t.TempDir(), "contact@example.com.html")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	a, err := OpenMessengerPlus(path)
	require.NoError(t, err)
	defer a.Close()

	recs := drain(t, a)
	require.Len(t, recs, 2)
	assert.Equal(t, []Payload{SystemNotice{Text: "Alice is now away"}}, recs[1].Payload,
		"placeholder notice is replaced by the trimmed row text, not appended to")
	assert.Empty(t, recs[1].Sender)
	assert.Empty(t, recs[1].Receiver)
}

func TestMessengerPlusBadHeaderTime(t *testing.T) {
	doc := `<?xml version="1.0"?>
<html>
<body>
<div class="mplsession" id="Session_2010-01-02T08-15-30">
<table>
<tbody>
<tr>
<th><span>(8:3x)</span> Bob says:</th>
<td style="color:#000000;">hello</td>
</tr>
</tbody>
</table>
</div>
</body>
</html>
`
	path := filepath.Join(t.TempDir(), "contact@example.com.html")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	a, err := OpenMessengerPlus(path)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header time")
}

func TestMessengerPlusBadSessionMarker(t *testing.T) {
	doc := `<?xml version="1.0"?>
<html>
<body>
<div class="mplsession" id="Session_notadate">
</div>
</body>
</html>
`
	path := filepath.Join(t.TempDir(), "contact@example.com.html")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	a, err := OpenMessengerPlus(path)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session marker")
}

func TestMessengerPlusMissingImage(t *testing.T) {
	doc := `<?xml version="1.0"?>
<html>
<body>
<div class="mplsession" id="Session_2010-01-02T08-15-30">
<table>
<tbody>
<tr>
<th><span>(08:15)</span> Bob says:</th>
<td style="color:#000000;"><img src="./Images/nope.png" alt=":)"/></td>
</tr>
</tbody>
</table>
</div>
</body>
</html>
`
	path := filepath.Join(t.TempDir(), "contact@example.com.html")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	a, err := OpenMessengerPlus(path)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load image")
}

func TestMessengerPlusMalformedMarkup(t *testing.T) {
	doc := `<?xml version="1.0"?>
<html>
<body>
<div class="mplsession" id="Session_2010-01-02T08-15-30">
`
	path := filepath.Join(t.TempDir(), "contact@example.com.html")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	a, err := OpenMessengerPlus(path)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Next()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)

	// the stream error is terminal and repeats
	_, again := a.Next()
	assert.Equal(t, err, again)
}

func TestOpenMessengerPlusErrors(t *testing.T) {
	_, err := OpenMessengerPlus(filepath.Join(t.TempDir(), "missing.html"))
	assert.Error(t, err)

	_, err = OpenMessengerPlus("/")
	assert.Error(t, err, "an archive needs a containing directory")
}
