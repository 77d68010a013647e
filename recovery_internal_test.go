package heptazip

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildArchiveBytes(tb testing.TB) []byte {
	tb.Helper()

	f := tempArchive(tb)

	zw, err := NewWriter(f, WriteOptions{Method: Copy})
	require.NoError(tb, err)
	require.NoError(tb, zw.AddFile("a.txt", 0o644, time.Now(), bytes.NewReader([]byte("payload")))) //nolint:mnd
	require.NoError(tb, zw.Close())

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(tb, err)

	data, err := io.ReadAll(f)
	require.NoError(tb, err)

	return data
}

func TestRecoverArchivePlain(t *testing.T) {
	t.Parallel()

	data := buildArchiveBytes(t)

	zr, result, err := RecoverArchive(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, FullRecovery, result.Status)
	assert.Equal(t, int64(0), result.Offset)
	require.Len(t, zr.File, 1)
}

func TestRecoverArchiveSFXPrefix(t *testing.T) {
	t.Parallel()

	data := buildArchiveBytes(t)

	stub := make([]byte, 4096) //nolint:mnd
	prefixed := append(stub, data...)

	zr, result, err := RecoverArchive(bytes.NewReader(prefixed), int64(len(prefixed)))
	require.NoError(t, err)
	assert.Equal(t, int64(len(stub)), result.Offset)
	require.Len(t, zr.File, 1)
}

func TestRecoverArchiveFailed(t *testing.T) {
	t.Parallel()

	garbage := bytes.Repeat([]byte{0x00}, 4096) //nolint:mnd

	_, result, err := RecoverArchive(bytes.NewReader(garbage), int64(len(garbage)))
	assert.Error(t, err)
	assert.Equal(t, Failed, result.Status)
}

func TestScanBackward(t *testing.T) {
	t.Parallel()

	data := buildArchiveBytes(t)

	offsets, err := ScanBackward(bytes.NewReader(data), int64(len(data)), 0)
	require.NoError(t, err)
	assert.Contains(t, offsets, int64(0))
}

func TestValidateStartHeaderRejectsCorruption(t *testing.T) {
	t.Parallel()

	data := buildArchiveBytes(t)
	require.NoError(t, ValidateStartHeader(bytes.NewReader(data), 0))

	corrupt := append([]byte(nil), data...)
	corrupt[20] ^= 0xFF

	assert.Error(t, ValidateStartHeader(bytes.NewReader(corrupt), 0))
}
