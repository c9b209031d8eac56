package index

import "github.com/ydideh810/nidamllm/pkg/errdefs"

var (
	// ErrAmbiguousTag marks a bare model name with more than one tag
	// available.
	ErrAmbiguousTag = errdefs.NewDomain("index", errdefs.CodeAmbiguousTag, "model name is ambiguous")

	// ErrModelNotFound marks a reference no source publishes.
	ErrModelNotFound = errdefs.NewDomain("index", errdefs.CodeModelNotFound, "model not found")

	// ErrConflictingDefinition marks a reference that one source
	// publishes more than once after normalization.
	ErrConflictingDefinition = errdefs.NewDomain("index", errdefs.CodeConflictingDefinition, "conflicting model definitions")

	// ErrUnknownSourceAlias marks a reference qualified with an
	// unregistered alias.
	ErrUnknownSourceAlias = errdefs.NewDomain("index", errdefs.CodeUnknownSourceAlias, "unknown source alias")

	// ErrBadReference marks a syntactically invalid model reference.
	ErrBadReference = errdefs.NewDomain("index", errdefs.CodeBadReference, "invalid model reference")
)
