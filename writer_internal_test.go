package heptazip

import (
	"bytes"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempArchive(tb testing.TB) *os.File {
	tb.Helper()

	f, err := os.CreateTemp(tb.TempDir(), "*.7z")
	require.NoError(tb, err)

	tb.Cleanup(func() { f.Close() })

	return f
}

func TestWriterReaderRoundTrip(t *testing.T) {
	t.Parallel()

	tables := []struct {
		name string
		opts WriteOptions
	}{
		{name: "copy", opts: WriteOptions{Method: Copy}},
		{name: "lzma", opts: WriteOptions{Method: LZMA, Level: 6}},
		{name: "lzma2", opts: WriteOptions{Method: LZMA2, Level: 6}},
		{name: "deflate", opts: WriteOptions{Method: Deflate, Level: 6}},
		{name: "solid-lzma2", opts: WriteOptions{Method: LZMA2, Level: 6, Solid: SolidOn}},
		{
			name: "encrypted",
			opts: WriteOptions{Method: LZMA2, Level: 6, Password: "hunter2", EncryptData: true},
		},
		{
			name: "encrypted-header",
			opts: WriteOptions{
				Method: LZMA2, Level: 6, Password: "hunter2", EncryptData: true, EncryptHeader: true,
			},
		},
		{name: "bcj-filter", opts: WriteOptions{Method: LZMA2, Level: 6, Filter: FilterBCJX86}},
		{name: "delta-filter", opts: WriteOptions{Method: LZMA2, Level: 6, Filter: FilterDelta, DeltaDistance: 4}},
	}

	entries := map[string][]byte{
		"hello.txt":        []byte("Hello, World!"),
		"sub/dir/file.bin": bytes.Repeat([]byte{0xAA, 0x55, 0x00, 0xFF}, 1024), //nolint:mnd
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			t.Parallel()

			f := tempArchive(t)

			zw, err := NewWriter(f, table.opts)
			require.NoError(t, err)

			names := make([]string, 0, len(entries))
			for name := range entries {
				names = append(names, name)
			}

			for _, name := range names {
				require.NoError(t, zw.AddFile(name, 0o644, time.Now(), bytes.NewReader(entries[name]))) //nolint:mnd
			}

			require.NoError(t, zw.Close())

			info, err := f.Stat()
			require.NoError(t, err)

			zr, err := NewReaderWithPassword(f, info.Size(), table.opts.Password)
			require.NoError(t, err)

			assert.Len(t, zr.File, len(entries))

			for _, file := range zr.File {
				want, ok := entries[file.Name]
				require.True(t, ok, "unexpected entry %s", file.Name)

				rc, err := file.Open()
				require.NoError(t, err)

				got, err := io.ReadAll(rc)
				require.NoError(t, err)
				require.NoError(t, rc.Close())

				assert.Equal(t, want, got)
			}
		})
	}
}

func TestWriterWrongPassword(t *testing.T) {
	t.Parallel()

	f := tempArchive(t)

	zw, err := NewWriter(f, WriteOptions{Method: LZMA2, Level: 6, Password: "right", EncryptData: true})
	require.NoError(t, err)
	require.NoError(t, zw.AddFile("secret.txt", 0o644, time.Now(), bytes.NewReader([]byte("top secret")))) //nolint:mnd
	require.NoError(t, zw.Close())

	info, err := f.Stat()
	require.NoError(t, err)

	zr, err := NewReaderWithPassword(f, info.Size(), "right")
	require.NoError(t, err)
	require.Len(t, zr.File, 1)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)

	_, err = io.ReadAll(rc)
	assert.NoError(t, err)
	assert.NoError(t, rc.Close())

	zrWrong, err := NewReaderWithPassword(f, info.Size(), "wrong")
	if err != nil {
		return
	}

	rcWrong, err := zrWrong.File[0].Open()
	require.NoError(t, err)

	_, err = io.ReadAll(rcWrong)
	assert.Error(t, err)
}

func TestWriterEmptyArchive(t *testing.T) {
	t.Parallel()

	f := tempArchive(t)

	zw, err := NewWriter(f, WriteOptions{})
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	info, err := f.Stat()
	require.NoError(t, err)

	zr, err := NewReader(f, info.Size())
	require.NoError(t, err)
	assert.Empty(t, zr.File)
}

func TestWriterDoubleClose(t *testing.T) {
	t.Parallel()

	f := tempArchive(t)

	zw, err := NewWriter(f, WriteOptions{})
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	assert.Error(t, zw.Close())
}

func TestWriterAddAfterClose(t *testing.T) {
	t.Parallel()

	f := tempArchive(t)

	zw, err := NewWriter(f, WriteOptions{})
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	err = zw.AddFile("too-late.txt", 0o644, time.Now(), bytes.NewReader(nil)) //nolint:mnd
	assert.Error(t, err)
}
