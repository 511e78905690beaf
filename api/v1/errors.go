package v1

import "errors"

var (
	ErrRequestCtx   = errors.New("request missing in context")
	ErrNormalizeCtx = errors.New("normalize body missing in context")
	ErrContentType  = errors.New("Content-Type must be application/json")
	ErrEventStream  = errors.New("event stream unavailable")
)
