package rendering

import "errors"

// Rendering errors
var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrTemplateParse    = errors.New("failed to parse template")
	ErrRenderFailed     = errors.New("failed to render template")
	ErrBadArgument      = errors.New("bad template function argument")
)
