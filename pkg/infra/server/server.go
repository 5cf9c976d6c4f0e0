package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// Manager starts servers in order and stops them in reverse order,
// then runs the registered close hooks.
type Manager struct {
	mu              sync.Mutex
	servers         []Runnable
	closers         []namedCloser
	shutdownTimeout time.Duration
	started         []Runnable
}

// NewManager creates a new server manager.
func NewManager(shutdownTimeout time.Duration) *Manager {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	return &Manager{shutdownTimeout: shutdownTimeout}
}

// AddServer adds a server to the manager.
func (m *Manager) AddServer(s Runnable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = append(m.servers, s)
}

// OnShutdown registers a close hook, run after all servers stopped.
// Hooks run in reverse registration order.
func (m *Manager) OnShutdown(name string, fn CloseFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closers = append(m.closers, namedCloser{name: name, fn: fn})
}

// Start starts all servers. If one fails, the already started ones are stopped.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.started) > 0 {
		return errors.New("server manager already started")
	}

	for _, s := range m.servers {
		if err := s.Start(ctx); err != nil {
			m.stopStarted(ctx)
			return fmt.Errorf("failed to start server %s: %w", s.Name(), err)
		}
		logger.Infow("Server started", "name", s.Name())
		m.started = append(m.started, s)
	}
	return nil
}

// Stop stops started servers and runs the close hooks.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	errs := m.stopStarted(ctx)
	errs = append(errs, runClosers(ctx, m.closers)...)
	m.closers = nil
	return errors.Join(errs...)
}

func (m *Manager) stopStarted(ctx context.Context) []error {
	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		s := m.started[i]
		if err := s.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop server %s: %w", s.Name(), err))
			continue
		}
		logger.Infow("Server stopped", "name", s.Name())
	}
	m.started = nil
	return errs
}

// Run starts all servers and blocks until ctx is cancelled or a server fails,
// then shuts everything down within the shutdown timeout.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		_ = m.Stop(context.Background())
		return err
	}

	failed := make(chan error, 1)
	m.mu.Lock()
	for _, s := range m.started {
		f, ok := s.(Failer)
		if !ok {
			continue
		}
		go func(name string, ch <-chan error) {
			if err, ok := <-ch; ok && err != nil {
				select {
				case failed <- fmt.Errorf("server %s: %w", name, err):
				default:
				}
			}
		}(s.Name(), f.Err())
	}
	m.mu.Unlock()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Server shutting down...")
	case runErr = <-failed:
		logger.Errorw("Server failed, shutting down", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
	defer cancel()

	return errors.Join(runErr, m.Stop(shutdownCtx))
}
