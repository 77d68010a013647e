package heptazip

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSourceArchive(tb testing.TB, files map[string][]byte) *Reader {
	tb.Helper()

	f := tempArchive(tb)

	zw, err := NewWriter(f, WriteOptions{Method: Copy})
	require.NoError(tb, err)

	for name, data := range files {
		require.NoError(tb, zw.AddFile(name, 0o644, time.Now(), bytes.NewReader(data))) //nolint:mnd
	}

	require.NoError(tb, zw.Close())

	info, err := f.Stat()
	require.NoError(tb, err)

	zr, err := NewReader(f, info.Size())
	require.NoError(tb, err)

	return zr
}

func readEntry(tb testing.TB, files []*File, name string) []byte {
	tb.Helper()

	for _, f := range files {
		if f.Name != name {
			continue
		}

		rc, err := f.Open()
		require.NoError(tb, err)

		defer rc.Close()

		data, err := io.ReadAll(rc)
		require.NoError(tb, err)

		return data
	}

	tb.Fatalf("entry %s not found", name)

	return nil
}

func TestEditorApply(t *testing.T) {
	t.Parallel()

	src := buildSourceArchive(t, map[string][]byte{
		"keep.txt":   []byte("keep me"),
		"delete.txt": []byte("remove me"),
		"rename.txt": []byte("rename me"),
		"update.txt": []byte("old content"),
	})

	e := NewEditor(src)

	require.NoError(t, e.Delete("delete.txt"))
	require.NoError(t, e.Rename("rename.txt", "renamed.txt"))
	require.NoError(t, e.Update("update.txt", []byte("new content")))
	require.NoError(t, e.Add("added.txt", 0o644, time.Now(), []byte("brand new"))) //nolint:mnd

	out := tempArchive(t)
	require.NoError(t, e.Apply(out, WriteOptions{Method: Copy}))

	info, err := out.Stat()
	require.NoError(t, err)

	zr, err := NewReader(out, info.Size())
	require.NoError(t, err)

	names := make(map[string]bool, len(zr.File))
	for _, f := range zr.File {
		names[f.Name] = true
	}

	assert.False(t, names["delete.txt"])
	assert.False(t, names["rename.txt"])
	assert.True(t, names["renamed.txt"])
	assert.True(t, names["update.txt"])
	assert.True(t, names["added.txt"])
	assert.True(t, names["keep.txt"])

	assert.Equal(t, []byte("keep me"), readEntry(t, zr.File, "keep.txt"))
	assert.Equal(t, []byte("rename me"), readEntry(t, zr.File, "renamed.txt"))
	assert.Equal(t, []byte("new content"), readEntry(t, zr.File, "update.txt"))
	assert.Equal(t, []byte("brand new"), readEntry(t, zr.File, "added.txt"))
}

func TestEditorValidation(t *testing.T) {
	t.Parallel()

	src := buildSourceArchive(t, map[string][]byte{"a.txt": []byte("a")})
	e := NewEditor(src)

	assert.Error(t, e.Delete("missing.txt"))
	assert.Error(t, e.Rename("missing.txt", "other.txt"))
	assert.Error(t, e.Update("missing.txt", []byte("x")))

	require.NoError(t, e.Add("new.txt", 0o644, time.Now(), []byte("x"))) //nolint:mnd
	assert.Error(t, e.Add("new.txt", 0o644, time.Now(), []byte("y")))    //nolint:mnd
	assert.Error(t, e.Rename("a.txt", "new.txt"))
}

func TestEditorEmptyApplyCopiesEverything(t *testing.T) {
	t.Parallel()

	files := map[string][]byte{
		"one.txt": []byte("one"),
		"two.txt": []byte("two"),
	}

	src := buildSourceArchive(t, files)
	e := NewEditor(src)

	out := tempArchive(t)
	require.NoError(t, e.Apply(out, WriteOptions{Method: Copy}))

	info, err := out.Stat()
	require.NoError(t, err)

	zr, err := NewReader(out, info.Size())
	require.NoError(t, err)

	require.Len(t, zr.File, len(files))

	for name, data := range files {
		assert.Equal(t, data, readEntry(t, zr.File, name))
	}
}
