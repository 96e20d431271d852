package config

import (
	"github.com/ninja0404/whale-signal/pkg/config/reader"
	"github.com/ninja0404/whale-signal/pkg/config/source"
)

type Options struct {
	Source []source.Source
	Reader reader.Reader
	// WithWatch 为 true 时监听所有来源的变更
	WithWatch bool
}

type Option func(o *Options)

// WithSource appends a source to list of sources
func WithSource(s source.Source) Option {
	return func(o *Options) {
		o.Source = append(o.Source, s)
	}
}

// WithReader sets the config reader
func WithReader(r reader.Reader) Option {
	return func(o *Options) {
		o.Reader = r
	}
}

// WithWatch 开启热更新
func WithWatch(watch bool) Option {
	return func(o *Options) {
		o.WithWatch = watch
	}
}
