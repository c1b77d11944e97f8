package service

import "errors"

// Sentinel errors returned by the service.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrInvalidRequest = errors.New("invalid request")
	ErrBackpressure   = errors.New("run queue full")
	ErrUnknownPayload = errors.New("unknown run payload")
)
