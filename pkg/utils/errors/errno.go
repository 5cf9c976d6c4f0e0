// Package errors provides the structured error code system of the advisor service.
//
// Error Code Format: AABBCCC (7 digits)
//
//	AA  (00-99): Service/Module code - identifies the source service
//	BB  (00-99): Category code - identifies the error category
//	CCC (000-999): Sequence number - specific error within the category
//
// Every Errno carries the HTTP status and the gRPC code it maps to, an English
// message and an optional Korean message for the bundled frontend.
//
// Usage:
//
//	// Using predefined errors
//	return errors.ErrInvalidParam.WithMessage("q is required")
//
//	// Wrapping underlying errors
//	return errors.ErrEmbeddingFailed.WithCause(err)
package errors

import (
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/grpc/codes"
)

// Errno represents a structured error with code and messages.
type Errno struct {
	// Code is the unique error code
	Code int `json:"code"`

	// HTTP is the HTTP status code to return
	HTTP int `json:"-"`

	// GRPCCode is the gRPC status code
	GRPCCode codes.Code `json:"-"`

	// MessageEN is the English error message
	MessageEN string `json:"message"`

	// MessageKO is the Korean error message
	MessageKO string `json:"message_ko,omitempty"`

	cause error
}

// New creates a new Errno with the given parameters.
func New(code int, httpStatus int, grpcCode codes.Code, messageEN, messageKO string) *Errno {
	return &Errno{
		Code:      code,
		HTTP:      httpStatus,
		GRPCCode:  grpcCode,
		MessageEN: messageEN,
		MessageKO: messageKO,
	}
}

// Error implements the error interface.
func (e *Errno) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("errno %d: %s: %v", e.Code, e.MessageEN, e.cause)
	}
	return fmt.Sprintf("errno %d: %s", e.Code, e.MessageEN)
}

// Unwrap returns the underlying cause.
func (e *Errno) Unwrap() error {
	return e.cause
}

// Cause returns the underlying cause, or nil.
func (e *Errno) Cause() error {
	return e.cause
}

func (e *Errno) clone() *Errno {
	c := *e
	return &c
}

// WithCause creates a new Errno with the given cause.
func (e *Errno) WithCause(cause error) *Errno {
	c := e.clone()
	c.cause = cause
	return c
}

// WithMessage creates a new Errno with custom English message.
// The registered Korean message is dropped so the custom text is served
// for every language until WithMessageKO sets a translation.
func (e *Errno) WithMessage(msg string) *Errno {
	c := e.clone()
	c.MessageEN = msg
	c.MessageKO = ""
	return c
}

// WithMessagef creates a new Errno with formatted English message.
func (e *Errno) WithMessagef(format string, args ...interface{}) *Errno {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithMessageKO creates a new Errno with custom Korean message.
func (e *Errno) WithMessageKO(msg string) *Errno {
	c := e.clone()
	c.MessageKO = msg
	return c
}

// Message returns the message based on language. lang may be a raw
// Accept-Language value, only its first tag is considered.
func (e *Errno) Message(lang string) string {
	if isKorean(lang) && e.MessageKO != "" {
		return e.MessageKO
	}
	return e.MessageEN
}

func isKorean(lang string) bool {
	if i := strings.IndexAny(lang, ",;"); i >= 0 {
		lang = lang[:i]
	}
	lang = strings.ToLower(strings.TrimSpace(lang))
	return lang == "ko" || strings.HasPrefix(lang, "ko-") || strings.HasPrefix(lang, "ko_")
}

// HTTPStatus returns the HTTP status code.
func (e *Errno) HTTPStatus() int {
	if e.HTTP != 0 {
		return e.HTTP
	}
	return http.StatusInternalServerError
}

// GRPCStatus returns the gRPC status code.
func (e *Errno) GRPCStatus() codes.Code {
	if e.GRPCCode != codes.OK {
		return e.GRPCCode
	}
	return codes.Internal
}

// Is checks if this error matches the target error code.
func (e *Errno) Is(target error) bool {
	if t, ok := target.(*Errno); ok {
		return e.Code == t.Code
	}
	return false
}

// Format implements fmt.Formatter.
func (e *Errno) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "errno %d [HTTP %d, gRPC %s]: %s", e.Code, e.HTTPStatus(), e.GRPCStatus().String(), e.MessageEN)
			if e.cause != nil {
				_, _ = fmt.Fprintf(s, "\ncaused by: %+v", e.cause)
			}
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}
