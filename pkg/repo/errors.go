package repo

import "github.com/ydideh810/nidamllm/pkg/errdefs"

// Registry domain errors.
var (
	ErrDuplicateAlias  = errdefs.NewDomain("registry", errdefs.CodeDuplicateAlias, "source alias already registered")
	ErrSourceNotFound  = errdefs.NewDomain("registry", errdefs.CodeSourceNotFound, "source not found")
	ErrProtectedSource = errdefs.NewDomain("registry", errdefs.CodeProtectedSource, "source is protected and cannot be removed")
	ErrInvalidAlias    = errdefs.NewDomain("registry", errdefs.CodeInvalidInput, "invalid source alias")
)
