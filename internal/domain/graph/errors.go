package graph

import "errors"

// Sentinel errors for graph construction and validation.
var (
	ErrInvalidReference = errors.New("invalid reference")
	ErrNegativeCapacity = errors.New("negative capacity")
	ErrIntegrity        = errors.New("matching integrity violation")
)
