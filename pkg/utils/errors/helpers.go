package errors

import (
	"context"
	stderrors "errors"
)

// FromError 将任意错误转换为 Errno。
// 错误链中已有 Errno 时直接返回；超时归为 ErrRequestTimeout，其余归为 ErrInternal。
func FromError(err error) *Errno {
	if err == nil {
		return nil
	}
	var e *Errno
	if stderrors.As(err, &e) {
		return e
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return ErrRequestTimeout.WithCause(err)
	}
	return ErrInternal.WithCause(err)
}

// IsCode 判断错误链中的 Errno 是否为指定错误码。
func IsCode(err error, code int) bool {
	var e *Errno
	return stderrors.As(err, &e) && e.Code == code
}

// CodeOf 返回错误对应的业务码，nil 对应 OK。
func CodeOf(err error) int {
	if err == nil {
		return OK.Code
	}
	return FromError(err).Code
}
