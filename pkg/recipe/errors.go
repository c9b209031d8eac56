package recipe

import "github.com/ydideh810/nidamllm/pkg/errdefs"

var (
	// ErrMalformedKey marks a top-level key that is not a valid
	// name:tag pair.
	ErrMalformedKey = errdefs.NewDomain("recipe", errdefs.CodeMalformedKey, "malformed recipe key")

	// ErrSchema marks an entry body that failed schema validation.
	ErrSchema = errdefs.NewDomain("recipe", errdefs.CodeSchema, "recipe entry failed validation")

	// ErrDocument marks a catalog document that could not be parsed
	// at all.
	ErrDocument = errdefs.NewDomain("recipe", errdefs.CodeDocument, "malformed catalog document")
)
