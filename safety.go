package heptazip

import (
	"context"
	"io"
	"path"
	"strings"
	"time"
)

// PathSafety controls how extraction guards against an archive entry's
// path or symlink target escaping the destination directory.
type PathSafety int

// Path safety policies.
const (
	// PathSafetyDisabled performs no checks at all; callers that trust
	// their archives and want raw throughput use this.
	PathSafetyDisabled PathSafety = iota

	// PathSafetyRelaxed rejects only entries whose archive path, joined
	// with the destination, would resolve outside it.
	PathSafetyRelaxed

	// PathSafetyStrict adds symlink-target escape analysis: a link may
	// not walk above the destination root via ".." components, and its
	// target may not be absolute or drive-prefixed.
	PathSafetyStrict
)

// ResourceLimits bounds decompression work so a hostile or corrupt archive
// cannot exhaust memory, disk, or wall-clock time.
type ResourceLimits struct {
	// MaxAbsoluteBytes caps the total decompressed bytes produced for a
	// single entry. Zero means unlimited.
	MaxAbsoluteBytes uint64

	// MaxRatio caps decompressed/compressed bytes once RatioGraceBytes
	// decompressed bytes have been produced. Zero means unlimited.
	MaxRatio float64

	// RatioGraceBytes is the number of decompressed bytes exempt from
	// the ratio check, so small highly-compressible entries (e.g. a
	// run of zeros in a text header) don't trip it immediately.
	RatioGraceBytes uint64

	// Deadline, if non-zero, fails extraction once reached.
	Deadline time.Time

	// MaxHeaderBytes, MaxFolders, and MaxEntries bound header parsing;
	// see header.go's defaultLimits for the values DefaultResourceLimits
	// uses.
	MaxHeaderBytes uint64
	MaxFolders     int
	MaxEntries     int

	PathSafety PathSafety
}

// DefaultResourceLimits matches 7-Zip's own conservative defaults: a 100x
// compression-ratio cap (after a 1 MiB grace window), strict path safety,
// and the header.go parse limits.
func DefaultResourceLimits() ResourceLimits {
	return ResourceLimits{
		MaxRatio:        100, //nolint:mnd
		RatioGraceBytes: 1 << 20,
		MaxHeaderBytes:  uint64(defaultLimits.MaxHeaderSize), //nolint:gosec
		MaxFolders:      defaultLimits.MaxFolders,
		MaxEntries:      defaultLimits.MaxEntries,
		PathSafety:      PathSafetyStrict,
	}
}

// limitedReader wraps a folder's decoded byte stream, counting
// decompressed output against a ResourceLimits policy and the packed size
// of the stream feeding it.
type limitedReader struct {
	r          io.Reader
	ctx        context.Context //nolint:containedctx
	limits     ResourceLimits
	packedSize uint64
	decoded    uint64
}

func newLimitedReader(ctx context.Context, r io.Reader, packedSize uint64, limits ResourceLimits) *limitedReader {
	return &limitedReader{r: r, ctx: ctx, limits: limits, packedSize: packedSize}
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	select {
	case <-lr.ctx.Done():
		return 0, ErrCancelled
	default:
	}

	if !lr.limits.Deadline.IsZero() && time.Now().After(lr.limits.Deadline) {
		return 0, &ResourceLimitError{Kind: LimitDeadline}
	}

	n, err := lr.r.Read(p)
	lr.decoded += uint64(n) //nolint:gosec

	if lr.limits.MaxAbsoluteBytes > 0 && lr.decoded > lr.limits.MaxAbsoluteBytes {
		return n, &ResourceLimitError{Kind: LimitAbsoluteSize}
	}

	if lr.limits.MaxRatio > 0 && lr.decoded > lr.limits.RatioGraceBytes && lr.packedSize > 0 {
		if float64(lr.decoded) > lr.limits.MaxRatio*float64(lr.packedSize) {
			return n, &ResourceLimitError{Kind: LimitRatio}
		}
	}

	if err != nil && err != io.EOF { //nolint:errorlint
		return n, err
	}

	return n, err //nolint:wrapcheck
}

// checkDestination validates that name, joined with any destination root,
// stays inside that root. It implements the Relaxed check and the shared first half of
// Strict; it never touches the filesystem.
func checkDestination(name string) error {
	clean := path.Clean("/" + name)
	if clean == "/.." || strings.HasPrefix(clean, "/../") {
		return &PathTraversalError{Entry: name, Path: clean}
	}

	return nil
}

// checkSymlinkTarget implements Strict's symlink-escape analysis: walk
// linkDir (the symlink's parent, relative to the destination root) and
// target's components, tracking depth from the root. A negative depth, or
// an absolute/drive-prefixed target, means the link would resolve outside
// the destination.
func checkSymlinkTarget(entry, linkDir, target string) error {
	if strings.HasPrefix(target, "/") || strings.HasPrefix(target, `\`) {
		return &SymlinkTargetEscapeError{Entry: entry, Path: linkDir, Target: target}
	}

	if len(target) >= 2 && target[1] == ':' && isASCIILetter(target[0]) {
		return &SymlinkTargetEscapeError{Entry: entry, Path: linkDir, Target: target}
	}

	depth := 0

	for _, seg := range strings.Split(linkDir, "/") {
		if seg != "" && seg != "." {
			depth++
		}
	}

	for _, seg := range strings.FieldsFunc(target, func(r rune) bool { return r == '/' || r == '\\' }) {
		switch seg {
		case "", ".":
			continue
		case "..":
			depth--
			if depth < 0 {
				return &SymlinkTargetEscapeError{Entry: entry, Path: linkDir, Target: target}
			}
		default:
			depth++
		}
	}

	return nil
}

// applyPathSafety is the single gate extraction calls before writing
// anything for an entry: both ordinary destination checks and, in Strict
// mode, symlink-target analysis.
func applyPathSafety(policy PathSafety, entryName string, isSymlink bool, linkDir, target string) error {
	if policy == PathSafetyDisabled {
		return nil
	}

	if err := checkDestination(entryName); err != nil {
		return err
	}

	if policy == PathSafetyStrict && isSymlink {
		return checkSymlinkTarget(entryName, linkDir, target)
	}

	return nil
}
