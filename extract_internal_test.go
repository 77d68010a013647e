package heptazip

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractToMemoryDestination(t *testing.T) {
	t.Parallel()

	files := map[string][]byte{
		"dir/one.txt": []byte("one"),
		"dir/two.txt": []byte("two"),
	}

	src := buildSourceArchive(t, files)

	dst := NewMemoryDestination()

	result, err := src.Extract(context.Background(), dst, nil, ExtractOptions{})
	require.NoError(t, err)
	assert.Equal(t, len(files), result.EntriesExtracted)
	assert.Zero(t, result.EntriesFailed)

	for name, data := range files {
		got, ok := dst.Files[name]
		require.True(t, ok, "missing %s", name)
		assert.Equal(t, data, got)
	}
}

func TestExtractTest(t *testing.T) {
	t.Parallel()

	src := buildSourceArchive(t, map[string][]byte{
		"a.txt": []byte("hello"),
		"b.txt": []byte("world"),
	})

	result, err := src.Test(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.EntriesFailed)
	assert.Equal(t, 2, result.EntriesExtracted) //nolint:mnd
}

func TestExtractParallel(t *testing.T) {
	t.Parallel()

	files := map[string][]byte{}
	for i := 0; i < 8; i++ { //nolint:mnd
		name := fmt.Sprintf("entry-%02d.txt", i)
		files[name] = bytes.Repeat([]byte{byte(i)}, 256) //nolint:mnd
	}

	src := buildSourceArchive(t, files)

	dst := NewMemoryDestination()

	result, err := src.Extract(context.Background(), dst, nil, ExtractOptions{Parallel: 4}) //nolint:mnd
	require.NoError(t, err)
	assert.Equal(t, len(files), result.EntriesExtracted)
}
