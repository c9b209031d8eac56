package mirror

import "github.com/ydideh810/nidamllm/pkg/errdefs"

var (
	// ErrFetchFailed marks a sync attempt that left no usable mirror
	// behind.
	ErrFetchFailed = errdefs.NewDomain("mirror", errdefs.CodeFetchFailed, "failed to fetch source")

	// ErrUnreachable marks a refresh failure for a source that still
	// serves a previously mirrored revision.
	ErrUnreachable = errdefs.NewDomain("mirror", errdefs.CodeUnreachable, "source unreachable, serving stale mirror")
)
