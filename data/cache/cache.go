package cache

import "errors"

// ErrMiss is returned when a key is absent or its entry has expired.
var ErrMiss = errors.New("cache miss")
