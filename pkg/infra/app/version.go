package app

import (
	"runtime"

	"github.com/kart-io/logger/option"
	"github.com/kart-io/version"
)

// Version 返回构建时注入的版本号。
func Version() string {
	return version.Get().GitVersion
}

// AnnotateLogger 为日志添加服务名、版本号与 Go 版本等初始字段。
// 需在 LogOption.Init 之前调用。
func AnnotateLogger(opt *option.LogOption, name string) {
	opt.AddInitialField("service.name", name)
	opt.AddInitialField("service.version", Version())
	opt.AddInitialField("service.go_version", runtime.Version())
}
