package courses

import "errors"

// Sentinel errors for course assignment.
var (
	ErrInvalidReference = errors.New("invalid reference")
	ErrCapacity         = errors.New("course capacity exceeded")
	ErrConflict         = errors.New("conflicting courses assigned")
)
