// Package resilience 提供 LLM 调用的韧性模式：重试与熔断。
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// RetryConfig 重试配置。
type RetryConfig struct {
	// MaxAttempts 最大尝试次数（包括首次调用）。
	MaxAttempts int
	// InitialDelay 初始延迟时间。
	InitialDelay time.Duration
	// MaxDelay 最大延迟时间。
	MaxDelay time.Duration
	// Multiplier 延迟倍增因子（指数退避）。
	Multiplier float64
	// Retryable 判断错误是否可重试，为空时使用 IsRetryableError。
	Retryable func(error) bool
}

// DefaultRetryConfig 返回默认重试配置。
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Retryable:    IsRetryableError,
	}
}

func (c *RetryConfig) retryable(err error) bool {
	if c.Retryable == nil {
		return IsRetryableError(err)
	}
	return c.Retryable(err)
}

// BreakerConfig 熔断器配置。
type BreakerConfig struct {
	// MaxFailures 连续失败达到该次数后打开熔断器。
	MaxFailures int
	// OpenTimeout 熔断器打开后进入半开状态前的等待时间。
	OpenTimeout time.Duration
	// HalfOpenMaxCalls 半开状态允许的探测调用次数。
	HalfOpenMaxCalls int
	// OnStateChange 状态变化回调，可用于指标上报。
	OnStateChange func(name string, from, to State)
}

// DefaultBreakerConfig 返回默认熔断器配置。
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		MaxFailures:      5,
		OpenTimeout:      60 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// State 熔断器状态。
type State int

const (
	// StateClosed 熔断器关闭，正常工作。
	StateClosed State = iota
	// StateOpen 熔断器打开，拒绝所有请求。
	StateOpen
	// StateHalfOpen 熔断器半开，允许部分请求探测。
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen 熔断器打开时返回。
var ErrBreakerOpen = errors.New("circuit breaker is open")

// BreakerStats 熔断器快照。
type BreakerStats struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	Failures        int       `json:"failures"`
	LastFailureTime time.Time `json:"last_failure_time,omitempty"`
	Rejected        int64     `json:"rejected"`
}

// Breaker 熔断器。
type Breaker struct {
	name   string
	config *BreakerConfig
	now    func() time.Time

	mu                sync.Mutex
	state             State
	failures          int
	lastFailure       time.Time
	halfOpenCalls     int
	halfOpenSuccesses int
	rejected          int64
}

// NewBreaker 创建熔断器，name 用于日志和指标。
func NewBreaker(name string, config *BreakerConfig) *Breaker {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	return &Breaker{
		name:   name,
		config: config,
		now:    time.Now,
		state:  StateClosed,
	}
}

// Name 返回熔断器名称。
func (b *Breaker) Name() string { return b.name }

// Execute 通过熔断器执行函数。
func (b *Breaker) Execute(fn func() error) error {
	if err := b.beforeCall(); err != nil {
		return err
	}
	err := fn()
	b.afterCall(err)
	return err
}

func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.lastFailure) >= b.config.OpenTimeout {
			b.transition(StateHalfOpen)
			b.halfOpenCalls = 1
			b.halfOpenSuccesses = 0
			return nil
		}
	case StateHalfOpen:
		if b.halfOpenCalls < b.config.HalfOpenMaxCalls {
			b.halfOpenCalls++
			return nil
		}
	}
	b.rejected++
	return ErrBreakerOpen
}

func (b *Breaker) afterCall(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// 调用方取消不计入失败。
	if errors.Is(err, context.Canceled) {
		return
	}

	if err == nil {
		switch b.state {
		case StateClosed:
			b.failures = 0
		case StateHalfOpen:
			b.halfOpenSuccesses++
			if b.halfOpenSuccesses >= b.config.HalfOpenMaxCalls {
				b.failures = 0
				b.transition(StateClosed)
			}
		}
		return
	}

	b.failures++
	b.lastFailure = b.now()
	switch b.state {
	case StateClosed:
		if b.failures >= b.config.MaxFailures {
			logger.Warnw("circuit breaker opening",
				"breaker", b.name,
				"failures", b.failures,
				"max_failures", b.config.MaxFailures,
			)
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		logger.Warnw("circuit breaker re-opening after half-open failure", "breaker", b.name)
		b.transition(StateOpen)
	}
}

// transition 需持有锁。
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	logger.Infow("circuit breaker state changed", "breaker", b.name, "from", from.String(), "to", to.String())
	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.name, from, to)
	}
}

// State 获取当前状态。
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats 获取熔断器快照。
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{
		Name:            b.name,
		State:           b.state.String(),
		Failures:        b.failures,
		LastFailureTime: b.lastFailure,
		Rejected:        b.rejected,
	}
}

// Reset 重置熔断器状态。
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
	b.failures = 0
	b.halfOpenCalls = 0
	b.halfOpenSuccesses = 0
}

// Retry 使用指数退避重试 fn。
func Retry(ctx context.Context, config *RetryConfig, fn func(ctx context.Context) error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := config.InitialDelay
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !config.retryable(err) {
			return err
		}
		if attempt >= attempts {
			logger.Warnw("max retry attempts reached", "attempts", attempt, "error", err.Error())
			return fmt.Errorf("max retry attempts (%d) reached: %w", attempts, err)
		}

		logger.Debugw("retrying after delay", "attempt", attempt, "delay", delay.String(), "error", err.Error())
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}
}

// Call 结合重试和熔断器执行 fn 并返回其结果。
func Call[T any](ctx context.Context, retry *RetryConfig, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Retry(ctx, retry, func(ctx context.Context) error {
		return b.Execute(func() error {
			var err error
			result, err = fn(ctx)
			return err
		})
	})
	return result, err
}
