// Package server runs the advisor's network servers under one lifecycle.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
)

// Runnable is a server the Manager starts and stops. Start returns once the
// server accepts work.
type Runnable interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Failer is implemented by servers that can fail after Start returns.
type Failer interface {
	Err() <-chan error
}

// CloseFunc releases a resource on shutdown.
type CloseFunc func(ctx context.Context) error

type namedCloser struct {
	name string
	fn   CloseFunc
}

// runClosers runs hooks in reverse registration order so a resource is
// released before the ones it was built on (the vector index before the
// Milvus client, the pools before Redis).
func runClosers(ctx context.Context, closers []namedCloser) []error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		start := time.Now()
		if err := c.fn(ctx); err != nil {
			logger.Warnw("Shutdown hook failed", "name", c.name, "error", err.Error())
			errs = append(errs, fmt.Errorf("failed to close %s: %w", c.name, err))
			continue
		}
		logger.Debugw("Shutdown hook done", "name", c.name, "elapsed", time.Since(start).String())
	}
	return errs
}
