package storage

import (
	"errors"
	"net/http"
)

// Archive errors.
var (
	ErrNotFound   = errors.New("archived output not found")
	ErrEmptyKey   = errors.New("archive key is empty")
	ErrInvalidKey = errors.New("archive key leaves the container prefix")
)

// MapHTTPStatus maps archive errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyKey), errors.Is(err, ErrInvalidKey):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
