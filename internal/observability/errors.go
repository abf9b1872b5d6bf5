package observability

import "errors"

// ErrInvalidLogLevel is returned by ParseLevel for an unknown level name.
var ErrInvalidLogLevel = errors.New("invalid log level")
