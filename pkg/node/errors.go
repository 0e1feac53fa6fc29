package node

import (
	"errors"
	"net/http"
)

// Registry errors.
var (
	ErrUnknownNode  = errors.New("unknown node")
	ErrDuplicate    = errors.New("node already registered")
	ErrInvalidInput = errors.New("invalid node input")
)

// MapHTTPStatus maps registry errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrUnknownNode) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrInvalidInput) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
