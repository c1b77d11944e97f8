package cost

import "errors"

// Sentinel errors for the cost model.
var (
	ErrAlreadyRegistered = errors.New("cost component already registered")
	ErrNotRegistered     = errors.New("cost component not registered")
	ErrUnknownComponent  = errors.New("unknown cost component")
	ErrNegativeWeight    = errors.New("cost coefficient must not be negative")
)
