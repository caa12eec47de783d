package search

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msarchive/internal/index"
)

func fixtureDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.OpenDB(filepath.Join(t.TempDir(), "msa.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = index.IndexAll(db, filepath.Join("..", "parse", "testdata"))
	require.NoError(t, err)
	return db
}

func TestSearchDedupesPerArchive(t *testing.T) {
	db := fixtureDB(t)

	// "Alice" occurs in both dialect fixtures, several times each
	results, err := Search(db, Options{Query: "Alice"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	keys := map[string]bool{}
	for _, r := range results {
		keys[r.ArchiveKey] = true
		assert.Contains(t, r.Snippet, ">>>")
	}
	assert.True(t, keys["msgplus:alice@example.com"])
	assert.True(t, keys["xml:alice1234"])
}

func TestSearchFormatFilter(t *testing.T) {
	db := fixtureDB(t)

	results, err := Search(db, Options{Query: "Alice", Format: "xml"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "xml:alice1234", results[0].ArchiveKey)
	assert.Equal(t, "xml", results[0].Format)
}

func TestSearchSenderFilter(t *testing.T) {
	db := fixtureDB(t)

	// "called" appears in turns from both participants
	results, err := Search(db, Options{Query: "called", Sender: "Bob"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Bob", results[0].Sender)
}

func TestSearchNoMatch(t *testing.T) {
	db := fixtureDB(t)

	results, err := Search(db, Options{Query: "zeppelin"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestListAllNewestFirst(t *testing.T) {
	db := fixtureDB(t)

	results, err := ListAll(db, Options{})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "msgplus:alice@example.com", results[0].ArchiveKey)
	assert.Equal(t, "xml:alice1234", results[1].ArchiveKey)
	assert.Equal(t, "xml:scrappy", results[2].ArchiveKey)
	assert.Equal(t, -1, results[0].MsgID)
	assert.Equal(t, results[0].Summary, results[0].Snippet)
}

func TestListAllSinceFilter(t *testing.T) {
	db := fixtureDB(t)

	results, err := ListAll(db, Options{Since: "2009-05-01"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "msgplus:alice@example.com", results[0].ArchiveKey)
}

func TestContainsCJK(t *testing.T) {
	assert.False(t, containsCJK("hello"))
	assert.True(t, containsCJK("你好"))
	assert.True(t, containsCJK("hi 世界"))
}

func TestMakeSnippet(t *testing.T) {
	s := makeSnippet("Have you called John about this weekend?", "John", 5)
	assert.Equal(t, "...lled >>>John<<< abou...", s)

	// no match returns the head
	s = makeSnippet("short text", "nope", 30)
	assert.Equal(t, "short text", s)
}
