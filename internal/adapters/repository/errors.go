package repository

import "errors"

// Sentinel kinds for cache errors.
var (
	ErrClosed      = errors.New("cache closed")
	ErrEmptyKey    = errors.New("empty requirement id")
	ErrKeyMismatch = errors.New("envelope requirement id does not match key")
)
