// Package common provides shared request-scoped helpers for middleware and handlers.
package common

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// Header constants used across middleware.
const (
	// HeaderXRequestID is the header name for request ID.
	HeaderXRequestID = "X-Request-ID"
	// HeaderTraceID is the header name for trace ID.
	HeaderTraceID = "X-Trace-ID"
)

// RequestIDKey is the context key type for request ID.
type RequestIDKey struct{}

// GetRequestID returns the request ID from the context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey{}, requestID)
}

var requestIDCounter uint64

// GenerateRequestID generates a 32 character hex request ID.
// If random generation fails, it falls back to a timestamp and counter.
func GenerateRequestID() string {
	b := make([]byte, 16)
	n, err := rand.Read(b)
	if err != nil || n != 16 {
		return generateFallbackRequestID()
	}
	return hex.EncodeToString(b)
}

// GenerateULID generates a lexicographically sortable 26 character request ID.
func GenerateULID() string {
	return ulid.Make().String()
}

// Generator returns the ID generator for the given type name.
func Generator(typ string) func() string {
	if typ == "ulid" {
		return GenerateULID
	}
	return GenerateRequestID
}

func generateFallbackRequestID() string {
	timestamp := time.Now().Unix()
	counter := atomic.AddUint64(&requestIDCounter, 1)
	return fmt.Sprintf("%x-%x", timestamp, counter)
}
