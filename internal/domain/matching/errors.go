package matching

import "errors"

// Sentinel errors for the matcher.
var (
	ErrUnknownAlgorithm = errors.New("unknown matching algorithm")
	ErrFlowValue        = errors.New("flow value differs from the theoretical maximum")
)
