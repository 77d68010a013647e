package heptazip

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDestinationRejectsEscape(t *testing.T) {
	t.Parallel()

	assert.NoError(t, checkDestination("dir/file.txt"))
	assert.NoError(t, checkDestination("file.txt"))

	assert.Error(t, checkDestination("../escape.txt"))
	assert.Error(t, checkDestination("dir/../../escape.txt"))
}

func TestCheckSymlinkTargetRejectsEscape(t *testing.T) {
	t.Parallel()

	assert.NoError(t, checkSymlinkTarget("dir/link", "dir", "sibling.txt"))
	assert.NoError(t, checkSymlinkTarget("dir/link", "dir", "../dir/sibling.txt"))

	assert.Error(t, checkSymlinkTarget("link", "", "../outside.txt"))
	assert.Error(t, checkSymlinkTarget("link", "", "/etc/passwd"))
	assert.Error(t, checkSymlinkTarget("link", "", `C:\Windows`))
}

func TestApplyPathSafetyDisabledSkipsChecks(t *testing.T) {
	t.Parallel()

	assert.NoError(t, applyPathSafety(PathSafetyDisabled, "../escape.txt", false, "", ""))
}

func TestApplyPathSafetyRelaxedIgnoresSymlinkTarget(t *testing.T) {
	t.Parallel()

	assert.NoError(t, applyPathSafety(PathSafetyRelaxed, "dir/link", true, "dir", "/etc/passwd"))
	assert.Error(t, applyPathSafety(PathSafetyRelaxed, "../escape.txt", false, "", ""))
}

func TestApplyPathSafetyStrictChecksSymlinkTarget(t *testing.T) {
	t.Parallel()

	assert.NoError(t, applyPathSafety(PathSafetyStrict, "dir/link", true, "dir", "sibling.txt"))
	assert.Error(t, applyPathSafety(PathSafetyStrict, "dir/link", true, "dir", "/etc/passwd"))
}

func TestLimitedReaderAbsoluteSize(t *testing.T) {
	t.Parallel()

	src := strings.NewReader(strings.Repeat("a", 1024)) //nolint:mnd
	lr := newLimitedReader(context.Background(), src, 1, ResourceLimits{MaxAbsoluteBytes: 16}) //nolint:mnd

	buf := make([]byte, 32) //nolint:mnd

	var limitErr *ResourceLimitError

	for {
		_, err := lr.Read(buf)
		if err != nil {
			require.ErrorAs(t, err, &limitErr)
			assert.Equal(t, LimitAbsoluteSize, limitErr.Kind)

			break
		}
	}
}

func TestLimitedReaderRatio(t *testing.T) {
	t.Parallel()

	src := strings.NewReader(strings.Repeat("a", 1<<20)) //nolint:mnd
	limits := ResourceLimits{MaxRatio: 2, RatioGraceBytes: 0}
	lr := newLimitedReader(context.Background(), src, 1, limits)

	buf := make([]byte, 4096) //nolint:mnd

	var limitErr *ResourceLimitError

	for {
		_, err := lr.Read(buf)
		if err != nil {
			require.ErrorAs(t, err, &limitErr)
			assert.Equal(t, LimitRatio, limitErr.Kind)

			break
		}
	}
}

func TestLimitedReaderDeadline(t *testing.T) {
	t.Parallel()

	src := strings.NewReader("payload")
	limits := ResourceLimits{Deadline: time.Now().Add(-time.Minute)}
	lr := newLimitedReader(context.Background(), src, 1, limits)

	buf := make([]byte, 8) //nolint:mnd

	_, err := lr.Read(buf)

	var limitErr *ResourceLimitError

	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, LimitDeadline, limitErr.Kind)
}

func TestLimitedReaderCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lr := newLimitedReader(ctx, strings.NewReader("payload"), 1, ResourceLimits{})

	_, err := lr.Read(make([]byte, 8)) //nolint:mnd
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestLimitedReaderPassesThroughEOF(t *testing.T) {
	t.Parallel()

	lr := newLimitedReader(context.Background(), strings.NewReader("ok"), 1, ResourceLimits{})

	data, err := io.ReadAll(lr)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
}

func TestDefaultResourceLimitsStrictPathSafety(t *testing.T) {
	t.Parallel()

	limits := DefaultResourceLimits()
	assert.Equal(t, PathSafetyStrict, limits.PathSafety)
	assert.Greater(t, limits.MaxRatio, 0.0)
}
