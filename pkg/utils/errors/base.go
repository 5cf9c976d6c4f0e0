package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// OK is the success errno.
var OK = Register(New(0, http.StatusOK, codes.OK, "OK", "성공"))

// Common errors (service 00).
var (
	ErrBadRequest       = NewRequestErr(ServiceCommon, 1, "Bad request", "잘못된 요청")
	ErrInvalidParam     = NewRequestErr(ServiceCommon, 2, "Invalid parameter", "잘못된 매개변수")
	ErrMissingParam     = NewRequestErr(ServiceCommon, 3, "Missing required parameter", "필수 매개변수 누락")
	ErrValidationFailed = NewRequestErr(ServiceCommon, 4, "Validation failed", "유효성 검사 실패")

	ErrRouteNotFound    = NewNotFoundErr(ServiceCommon, 1, "Route not found", "경로를 찾을 수 없음")
	ErrMethodNotAllowed = NewError(ServiceCommon, CategoryResource, 2, http.StatusMethodNotAllowed, codes.Unimplemented, "Method not allowed", "허용되지 않는 메서드")

	ErrTooManyRequests = NewRateLimitErr(ServiceCommon, 1, "Too many requests", "요청이 너무 많음")

	ErrInternal = NewInternalErr(ServiceCommon, 1, "Internal server error", "내부 서버 오류")
	ErrPanic    = NewInternalErr(ServiceCommon, 2, "Internal panic", "내부 패닉")

	ErrRequestTimeout = NewTimeoutErr(ServiceCommon, 1, "Request timeout", "요청 시간 초과")

	ErrConfigInvalid = NewConfigErr(ServiceCommon, 1, "Invalid configuration", "잘못된 설정")
)
