package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("run not found")
	ErrExists       = errors.New("run already exists")
	ErrInvalidLimit = errors.New("invalid list limit")
	ErrClosed       = errors.New("store closed")
)
