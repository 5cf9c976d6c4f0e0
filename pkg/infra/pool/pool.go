package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// Type defines the type of worker pool.
type Type string

const (
	// FetchPool 下载 URL 来源
	FetchPool Type = "fetch"
	// EmbedPool 并发调用 embedding 接口
	EmbedPool Type = "embed"
	// BackgroundPool 后台任务池（缓存写入等）
	BackgroundPool Type = "background"
)

// Config defines the configuration for the worker pool.
type Config struct {
	// Capacity 池容量（最大并发 goroutine 数）
	Capacity int
	// ExpiryDuration goroutine 空闲过期时间
	ExpiryDuration time.Duration
	// PreAlloc 是否预分配内存
	PreAlloc bool
	// Nonblocking 提交任务是否非阻塞（若池满则返回错误）
	Nonblocking bool
	// MaxBlockingTasks 当 Nonblocking=false 时，最大等待任务数（0 表示无限制）
	MaxBlockingTasks int
	// PanicHandler 恐慌处理函数
	PanicHandler func(interface{})
}

// ConfigFor 返回指定池类型的默认配置，capacity > 0 时覆盖容量
func ConfigFor(typ Type, capacity int) *Config {
	var cfg *Config
	switch typ {
	case FetchPool:
		cfg = &Config{Capacity: 4, ExpiryDuration: 30 * time.Second}
	case EmbedPool:
		cfg = &Config{Capacity: 4, ExpiryDuration: 30 * time.Second}
	default:
		cfg = &Config{
			Capacity:         16,
			ExpiryDuration:   60 * time.Second,
			Nonblocking:      true,
			MaxBlockingTasks: 100,
		}
	}
	if capacity > 0 {
		cfg.Capacity = capacity
	}
	return cfg
}

// Pool represents a worker pool.
type Pool struct {
	name     string
	typ      Type
	pool     *ants.Pool
	config   *Config
	stats    poolStatsCounter
	closed   atomic.Bool
	closedMu sync.Mutex
}

type poolStatsCounter struct {
	SubmittedTasks atomic.Int64
	CompletedTasks atomic.Int64
	FailedTasks    atomic.Int64
	RejectedTasks  atomic.Int64
	PanicRecovered atomic.Int64
}

// Stats contains statistics about the worker pool.
type Stats struct {
	SubmittedTasks int64 // 已提交任务数
	CompletedTasks int64 // 已完成任务数
	FailedTasks    int64 // 失败任务数
	RejectedTasks  int64 // 拒绝任务数
	PanicRecovered int64 // 恢复的 panic 数
}

// NewPool creates a new worker pool with the given configuration.
func NewPool(name string, typ Type, config *Config) (*Pool, error) {
	if config == nil {
		config = ConfigFor(typ, 0)
	}
	if config.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", ErrInvalidPoolConfig)
	}

	p := &Pool{
		name:   name,
		typ:    typ,
		config: config,
	}

	pool, err := ants.NewPool(config.Capacity, buildAntsOptions(name, config)...)
	if err != nil {
		return nil, fmt.Errorf("create ants pool: %w", err)
	}
	p.pool = pool

	logger.Debugw("Worker pool created",
		"name", name,
		"type", string(typ),
		"capacity", config.Capacity,
	)

	return p, nil
}

func buildAntsOptions(name string, config *Config) []ants.Option {
	opts := []ants.Option{
		ants.WithExpiryDuration(config.ExpiryDuration),
		ants.WithPreAlloc(config.PreAlloc),
		ants.WithNonblocking(config.Nonblocking),
		ants.WithMaxBlockingTasks(config.MaxBlockingTasks),
	}

	if config.PanicHandler != nil {
		opts = append(opts, ants.WithPanicHandler(config.PanicHandler))
	} else {
		opts = append(opts, ants.WithPanicHandler(func(p interface{}) {
			logger.Errorw("Worker panic recovered",
				"pool", name,
				"panic", p,
			)
		}))
	}

	return opts
}

// Name 返回池名称
func (p *Pool) Name() string {
	return p.name
}

// Type 返回池类型
func (p *Pool) Type() Type {
	return p.typ
}

// Cap 返回池容量
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Running 返回正在运行的 goroutine 数量
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Submit 提交任务到池中执行
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	p.stats.SubmittedTasks.Add(1)
	err := p.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				p.stats.PanicRecovered.Add(1)
				p.stats.FailedTasks.Add(1)
				// 交给 ants PanicHandler
				panic(r)
			}
			p.stats.CompletedTasks.Add(1)
		}()

		task()
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolOverload) {
			p.stats.RejectedTasks.Add(1)
			return ErrPoolOverload
		}
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrPoolClosed
		}
		p.stats.FailedTasks.Add(1)
		return err
	}

	return nil
}

// RunAll 并发执行所有任务并等待完成，返回第一个错误。
// 任一任务失败后，尚未开始的任务会收到已取消的上下文。
func (p *Pool) RunAll(ctx context.Context, tasks ...func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	setErr := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for _, task := range tasks {
		wg.Add(1)
		err := p.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					setErr(fmt.Errorf("task panic: %v", r))
				}
			}()
			if err := ctx.Err(); err != nil {
				setErr(err)
				return
			}
			if err := task(ctx); err != nil {
				setErr(err)
			}
		})
		if err != nil {
			wg.Done()
			setErr(err)
			break
		}
	}

	wg.Wait()
	return firstErr
}

// Release 关闭池并释放资源
func (p *Pool) Release() {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Swap(true) {
		return
	}
	p.pool.Release()
	logger.Debugw("Worker pool released", "name", p.name)
}

// ReleaseTimeout 带超时关闭池，等待任务完成直到超时
func (p *Pool) ReleaseTimeout(timeout time.Duration) error {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Swap(true) {
		return nil
	}
	return p.pool.ReleaseTimeout(timeout)
}

// Stats 返回池统计信息快照
func (p *Pool) Stats() Stats {
	return Stats{
		SubmittedTasks: p.stats.SubmittedTasks.Load(),
		CompletedTasks: p.stats.CompletedTasks.Load(),
		FailedTasks:    p.stats.FailedTasks.Load(),
		RejectedTasks:  p.stats.RejectedTasks.Load(),
		PanicRecovered: p.stats.PanicRecovered.Load(),
	}
}
