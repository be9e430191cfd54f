package dto

import (
	"net/http"

	"github.com/library/backend/internal/domain/shared"
)

// General error codes used by the read API
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
)

// kindHTTPStatus maps domain error kinds to HTTP status codes. The write
// path never reaches here; commands flow through the broker and report
// failures via the dead-letter surface.
var kindHTTPStatus = map[shared.ErrorKind]int{
	shared.KindValidation:   http.StatusBadRequest,
	shared.KindNotFound:     http.StatusNotFound,
	shared.KindConflict:     http.StatusConflict,
	shared.KindCapacity:     http.StatusUnprocessableEntity,
	shared.KindUnavailable:  http.StatusUnprocessableEntity,
	shared.KindRenewalLimit: http.StatusUnprocessableEntity,
	shared.KindNotRenewable: http.StatusUnprocessableEntity,
	shared.KindTransient:    http.StatusServiceUnavailable,
}

// HTTPStatusForKind returns the HTTP status for a domain error kind,
// defaulting to 500 for unknown kinds.
func HTTPStatusForKind(kind shared.ErrorKind) int {
	if status, ok := kindHTTPStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}
