// Package pool provides ants-backed worker pools for ingest fan-out and
// background work.
package pool

import "errors"

// 池相关错误定义
var (
	// ErrPoolClosed 池已关闭
	ErrPoolClosed = errors.New("pool closed")

	// ErrPoolOverload 池已满
	ErrPoolOverload = errors.New("pool overloaded")

	// ErrInvalidPoolConfig 无效的池配置
	ErrInvalidPoolConfig = errors.New("invalid pool config")
)
