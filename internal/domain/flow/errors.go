package flow

import "errors"

// Sentinel errors for flow networks.
var (
	ErrInvalidNode     = errors.New("invalid node")
	ErrInvalidArc      = errors.New("invalid arc")
	ErrInvalidCapacity = errors.New("invalid capacity")
	ErrCorrupt         = errors.New("flow network corrupt")
)
