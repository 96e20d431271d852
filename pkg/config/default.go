package config

import (
	"github.com/ninja0404/whale-signal/pkg/config/reader"
	"github.com/ninja0404/whale-signal/pkg/config/source"
)

// DefaultConfig 进程级默认配置
var DefaultConfig = NewConfig()

// Init 替换默认配置实例
func Init(opts ...Option) {
	DefaultConfig = NewConfig(opts...)
}

// Load 加载配置来源到默认配置
func Load(sources ...source.Source) error {
	return DefaultConfig.Load(sources...)
}

// Get 按路径读取配置
func Get(path ...string) reader.Value {
	return DefaultConfig.Get(path...)
}

// Scan 整体反序列化到结构体
func Scan(v interface{}) error {
	return DefaultConfig.Scan(v)
}

// OnChange 注册默认配置的变更回调
func OnChange(fn func()) {
	DefaultConfig.OnChange(fn)
}
