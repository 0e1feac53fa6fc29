package database

import "errors"

// ErrNotReady is returned by history queries issued before the startup
// ping has reached PostgreSQL.
var ErrNotReady = errors.New("output history database unavailable")
