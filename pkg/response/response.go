package response

import "errors"

type Response struct {
	ResponseError `json:"error,omitzero"`
}

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error Codes
type ErrCode string

var (
	FAILED_REQUEST       ErrCode = "REQUEST_FAILED"
	BAD_REQUEST          ErrCode = "FAILED_TO_DECODE"
	UNAUTHORIZED         ErrCode = "UNAUTHORIZED"
	NOT_FOUND            ErrCode = "NOT_FOUND"
	FORBIDDEN            ErrCode = "FORBIDDEN"
	INVALID_TRANSITION   ErrCode = "INVALID_TRANSITION"
	MECHANIC_UNAVAILABLE ErrCode = "MECHANIC_UNAVAILABLE"
	CONCURRENT_CONFLICT  ErrCode = "CONCURRENT_CONFLICT"
	LOCKED               ErrCode = "LOCKED"
	SERVICE_UNAVAILABLE  ErrCode = "SERVICE_UNAVAILABLE"
)

var (
	ErrBadRequest          = errors.New("bad request")
	ErrUnauthorized        = errors.New("missing or invalid credentials")
	ErrNotFound            = errors.New("resource not found")
	ErrForbidden           = errors.New("operation not permitted for this actor")
	ErrInvalidTransition   = errors.New("status transition not allowed")
	ErrMechanicUnavailable = errors.New("mechanic is not available during this time slot")
	ErrConcurrentConflict  = errors.New("concurrent modification detected")
	ErrLocked              = errors.New("resource is locked")
	ErrServiceUnavailable  = errors.New("service is currently unavailable")
)

func Error(code, msg string) Response {
	return Response{
		ResponseError: ResponseError{
			Code:    code,
			Message: msg,
		},
	}
}
