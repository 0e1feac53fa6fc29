package history

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/metainfo/pkg/database"
)

// Domain errors for history operations.
var (
	ErrNotFound     = errors.New("output not found")
	ErrDuplicate    = errors.New("output already recorded")
	ErrInvalidID    = errors.New("invalid output id")
	ErrInvalidQuery = errors.New("invalid search request")
)

// MapHTTPStatus maps history errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidID), errors.Is(err, ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
