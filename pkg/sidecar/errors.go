package sidecar

import "errors"

// ErrWrite indicates meta.json could not be persisted.
var ErrWrite = errors.New("failed to write metadata")
