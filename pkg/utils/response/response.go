// Package response provides the error envelope written by the advisor API.
// Successful calls return their payload as-is; failures are rendered as a
// Response carrying the errno code, message and request id.
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/sentinel-advisor/pkg/utils/errors"
	"github.com/kart-io/sentinel-advisor/pkg/utils/json"
)

// HeaderRequestID is the response header carrying the request id.
const HeaderRequestID = "X-Request-ID"

// Response is the unified API error structure.
type Response struct {
	// Code is the business error code (0 = success)
	Code int `json:"code"`

	// HTTPCode is the HTTP status code (not serialized)
	HTTPCode int `json:"-"`

	// Message is a human-readable message
	Message string `json:"message"`

	// Data contains optional details
	Data interface{} `json:"data,omitempty"`

	// RequestID is the unique request identifier for tracing
	RequestID string `json:"request_id,omitempty"`

	// Timestamp is the response timestamp (Unix milliseconds)
	Timestamp int64 `json:"timestamp,omitempty"`
}

// Success creates a successful response with data.
func Success(data interface{}) *Response {
	return &Response{
		Code:     0,
		HTTPCode: http.StatusOK,
		Message:  "success",
		Data:     data,
	}
}

// Err creates an error response from an Errno type.
func Err(e *errors.Errno) *Response {
	if e == nil {
		return Success(nil)
	}
	return &Response{
		Code:     e.Code,
		HTTPCode: e.HTTPStatus(),
		Message:  e.MessageEN,
	}
}

// ErrWithLang creates an error response with language-specific message.
func ErrWithLang(e *errors.Errno, lang string) *Response {
	if e == nil {
		return Success(nil)
	}
	return &Response{
		Code:     e.Code,
		HTTPCode: e.HTTPStatus(),
		Message:  e.Message(lang),
	}
}

// ErrorWithCode creates an error response with code and message.
func ErrorWithCode(code int, message string) *Response {
	r := &Response{
		Code:    code,
		Message: message,
	}
	r.HTTPCode = r.HTTPStatus()
	return r
}

// WithRequestID adds request ID to the response.
func (r *Response) WithRequestID(requestID string) *Response {
	r.RequestID = requestID
	return r
}

// WithTimestamp adds timestamp to the response.
func (r *Response) WithTimestamp(timestamp int64) *Response {
	r.Timestamp = timestamp
	return r
}

// IsSuccess returns true if the response indicates success.
func (r *Response) IsSuccess() bool {
	return r.Code == 0
}

// HTTPStatus returns the appropriate HTTP status code for this response.
// It looks up the registered errno to get the correct HTTP status.
func (r *Response) HTTPStatus() int {
	if r.HTTPCode != 0 {
		return r.HTTPCode
	}

	if r.Code == 0 {
		return http.StatusOK
	}

	if e, ok := errors.Lookup(r.Code); ok {
		return e.HTTPStatus()
	}

	// Fallback: determine by category from error code
	switch errors.GetCategory(r.Code) {
	case errors.CategoryRequest:
		return http.StatusBadRequest
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryPermission:
		return http.StatusForbidden
	case errors.CategoryResource:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case errors.CategoryTimeout:
		return http.StatusGatewayTimeout
	case errors.CategoryNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Fail aborts the request with the errno envelope for err.
// Errors that are not an Errno are reported as ErrInternal.
func Fail(c *gin.Context, err error) {
	e := errors.FromError(err)
	resp := ErrWithLang(e, c.GetHeader("Accept-Language")).
		WithRequestID(c.Writer.Header().Get(HeaderRequestID)).
		WithTimestamp(time.Now().UnixMilli())
	Write(c, resp.HTTPStatus(), resp)
	c.Abort()
}

// Write renders v as JSON with the shared encoder.
func Write(c *gin.Context, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(status, "application/json; charset=utf-8", body)
}
