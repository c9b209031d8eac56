package bundle

import "github.com/ydideh810/nidamllm/pkg/errdefs"

var (
	// ErrBuilderFailed marks a build attempt that errored but may be
	// retried.
	ErrBuilderFailed = errdefs.NewDomain("bundle", errdefs.CodeBuilderFailed, "bundle build failed")

	// ErrBuildExhausted marks a content hash whose retry budget is
	// spent.
	ErrBuildExhausted = errdefs.NewDomain("bundle", errdefs.CodeBuildExhausted, "bundle build attempts exhausted")

	// ErrBundleCorrupt marks a bundle recorded as ready whose
	// directory is gone or incomplete.
	ErrBundleCorrupt = errdefs.NewDomain("bundle", errdefs.CodeBundleCorrupt, "bundle directory is corrupt")
)
