package errors

import (
	"fmt"
	"sync"
)

// 错误码在包初始化阶段注册，之后只读。
var registry = struct {
	sync.RWMutex
	byCode map[int]*Errno
}{byCode: make(map[int]*Errno)}

// Register 登记错误码并返回 e。
// 错误码重复，或缺少英文与韩文任一消息时 panic：两种语言都会直接返回给前端。
func Register(e *Errno) *Errno {
	if e.MessageEN == "" || e.MessageKO == "" {
		panic(fmt.Sprintf("errno %d must carry both English and Korean messages", e.Code))
	}

	registry.Lock()
	defer registry.Unlock()
	if existing, ok := registry.byCode[e.Code]; ok {
		panic(fmt.Sprintf("errno code %d already registered: %s", e.Code, existing.MessageEN))
	}
	registry.byCode[e.Code] = e
	return e
}

// Lookup 按错误码查找已登记的 Errno。
func Lookup(code int) (*Errno, bool) {
	registry.RLock()
	defer registry.RUnlock()
	e, ok := registry.byCode[code]
	return e, ok
}
