package store

import (
	"context"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// retireCloseTimeout 最后一个读者释放后关闭旧索引的超时时间。
const retireCloseTimeout = 30 * time.Second

// Handle 是某一代索引的只读句柄。
// 通过 Current 获得的句柄必须调用 Release，旧索引在最后一个句柄释放后才关闭。
type Handle struct {
	Index      VectorIndex
	Generation uint64

	gen *generation
}

// Release 释放句柄，可重复调用。
func (h *Handle) Release() {
	if h.gen == nil {
		return
	}
	h.gen.release()
	h.gen = nil
}

// generation 为一代索引计数读者。
type generation struct {
	index VectorIndex
	id    uint64

	mu      sync.Mutex
	refs    int
	retired bool
	closed  bool
}

func (g *generation) acquire() {
	g.mu.Lock()
	g.refs++
	g.mu.Unlock()
}

func (g *generation) release() {
	g.mu.Lock()
	g.refs--
	shouldClose := g.retired && g.refs == 0 && !g.closed
	if shouldClose {
		g.closed = true
	}
	g.mu.Unlock()

	if shouldClose {
		ctx, cancel := context.WithTimeout(context.Background(), retireCloseTimeout)
		defer cancel()
		g.close(ctx)
	}
}

// retire 标记为已替换；没有读者时立即关闭，否则由最后一个读者关闭。
func (g *generation) retire(ctx context.Context) error {
	g.mu.Lock()
	g.retired = true
	shouldClose := g.refs == 0 && !g.closed
	if shouldClose {
		g.closed = true
	}
	g.mu.Unlock()

	if !shouldClose {
		logger.Debugw("replaced index still in use, close deferred", "generation", g.id)
		return nil
	}
	return g.close(ctx)
}

func (g *generation) close(ctx context.Context) error {
	err := g.index.Close(ctx)
	if err != nil {
		logger.Warnw("failed to close replaced index", "generation", g.id, "error", err.Error())
	}
	return err
}

// HolderStats 索引持有者的状态快照。
type HolderStats struct {
	Ready      bool      `json:"ready"`
	Generation uint64    `json:"generation"`
	Chunks     int       `json:"chunks"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// IndexHolder 持有当前索引。读取走读锁，替换走写锁，代数单调递增。
type IndexHolder struct {
	mu         sync.RWMutex
	current    *generation
	generation uint64
	updatedAt  time.Time
}

// NewIndexHolder 创建空的索引持有者。
func NewIndexHolder() *IndexHolder {
	return &IndexHolder{}
}

// Current 获取当前索引句柄；尚未导入时返回 false。
func (h *IndexHolder) Current() (Handle, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return Handle{}, false
	}
	h.current.acquire()
	return Handle{Index: h.current.index, Generation: h.current.id, gen: h.current}, true
}

// NextGeneration 返回下一次 Replace 将使用的代数，用于构建前命名资源。
func (h *IndexHolder) NextGeneration() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.generation + 1
}

// Replace 安装新索引并返回新代数。
// 旧索引在持有其句柄的请求全部释放后关闭。
func (h *IndexHolder) Replace(ctx context.Context, idx VectorIndex) uint64 {
	h.mu.Lock()
	old := h.current
	h.generation++
	gen := h.generation
	h.current = &generation{index: idx, id: gen}
	h.updatedAt = time.Now()
	h.mu.Unlock()

	if old != nil {
		_ = old.retire(ctx)
	}
	return gen
}

// Stats 返回状态快照。
func (h *IndexHolder) Stats() HolderStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := HolderStats{Generation: h.generation, UpdatedAt: h.updatedAt}
	if h.current != nil {
		s.Ready = true
		s.Chunks = h.current.index.Len()
	}
	return s
}

// Close 卸下当前索引；仍有读者时由最后一个读者关闭。
func (h *IndexHolder) Close(ctx context.Context) error {
	h.mu.Lock()
	cur := h.current
	h.current = nil
	h.mu.Unlock()

	if cur == nil {
		return nil
	}
	return cur.retire(ctx)
}
