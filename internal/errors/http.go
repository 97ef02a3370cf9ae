package errors

import "net/http"

// HTTPStatus maps the domain error type to the status code returned by the api
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case ErrInvalidArgument:
		return http.StatusBadRequest
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrAlreadyExists, ErrConflict:
		return http.StatusConflict
	case ErrFailedPrecond:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
