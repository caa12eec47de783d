package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanRoot(t *testing.T) {
	root := t.TempDir()
	write := func(rel string) {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}

	write("alice@example.com.html")
	write("bob1234.xml")
	write("History/carol@example.com.HTM")
	write("Images/MsgPlus_Img0001.png")
	write("Images/stray.html") // attachment dir is skipped wholesale
	write("notes.txt")

	files, err := ScanRoot(root)
	require.NoError(t, err)

	got := map[string]string{}
	for _, f := range files {
		rel, err := filepath.Rel(root, f.Path)
		require.NoError(t, err)
		got[rel] = f.Format
		assert.NotZero(t, f.Mtime)
		assert.Equal(t, int64(1), f.Size)
	}
	assert.Equal(t, map[string]string{
		"alice@example.com.html":            "msgplus",
		"bob1234.xml":                       "xml",
		filepath.Join("History", "carol@example.com.HTM"): "msgplus",
	}, got)
}

func TestScanRootMissing(t *testing.T) {
	files, err := ScanRoot(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestScanRootEmptyRoot(t *testing.T) {
	files, err := ScanRoot("")
	require.NoError(t, err)
	assert.Empty(t, files)
}
