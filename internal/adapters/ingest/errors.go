package ingest

import "errors"

// ErrMalformedInput reports a record that cannot be turned into an entity.
var ErrMalformedInput = errors.New("malformed input")
