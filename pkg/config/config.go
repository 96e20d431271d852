package config

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/ninja0404/whale-signal/pkg/config/reader"
	"github.com/ninja0404/whale-signal/pkg/config/reader/json"
	"github.com/ninja0404/whale-signal/pkg/config/source"
)

// Config 分层配置，多来源按加载顺序覆盖
type Config interface {
	Load(sources ...source.Source) error
	Get(path ...string) reader.Value
	Scan(v interface{}) error
	Bytes() []byte
	// OnChange 注册变更回调，回调在来源变化并重新合并后触发
	OnChange(fn func())
	Close() error
}

type config struct {
	opts Options

	mu       sync.RWMutex
	sets     []*source.ChangeSet
	vals     reader.Values
	watchers []source.Watcher
	onChange []func()
	exit     chan struct{}
}

// NewConfig 创建配置实例
func NewConfig(opts ...Option) Config {
	options := Options{
		Reader: json.NewReader(),
	}
	for _, o := range opts {
		o(&options)
	}

	c := &config{
		opts: options,
		exit: make(chan struct{}),
	}
	if len(options.Source) > 0 {
		if err := c.Load(); err != nil {
			panic(err)
		}
	}
	return c
}

func (c *config) Load(sources ...source.Source) error {
	c.mu.Lock()
	c.opts.Source = append(c.opts.Source, sources...)
	all := c.opts.Source
	c.mu.Unlock()

	sets := make([]*source.ChangeSet, len(all))
	for i, s := range all {
		cs, err := s.Read()
		if err != nil {
			return errors.Wrapf(err, "read source %s", s.String())
		}
		sets[i] = cs
	}

	if err := c.apply(sets); err != nil {
		return err
	}

	if c.opts.WithWatch {
		for i, s := range sources {
			w, err := s.Watch()
			if err != nil {
				return errors.Wrapf(err, "watch source %s", s.String())
			}
			c.mu.Lock()
			c.watchers = append(c.watchers, w)
			idx := len(all) - len(sources) + i
			c.mu.Unlock()
			go c.watch(idx, w)
		}
	}
	return nil
}

func (c *config) apply(sets []*source.ChangeSet) error {
	merged, err := c.opts.Reader.Merge(sets...)
	if err != nil {
		return errors.Wrap(err, "merge config")
	}
	vals, err := c.opts.Reader.Values(merged)
	if err != nil {
		return errors.Wrap(err, "parse config")
	}

	c.mu.Lock()
	c.sets = sets
	c.vals = vals
	c.mu.Unlock()
	return nil
}

func (c *config) watch(idx int, w source.Watcher) {
	for {
		cs, err := w.Next()
		if err != nil {
			if errors.Is(err, source.ErrWatcherStopped) {
				return
			}
			select {
			case <-c.exit:
				return
			default:
				continue
			}
		}

		c.mu.RLock()
		sets := make([]*source.ChangeSet, len(c.sets))
		copy(sets, c.sets)
		callbacks := append([]func(){}, c.onChange...)
		c.mu.RUnlock()

		if idx >= len(sets) {
			continue
		}
		sets[idx] = cs
		if err := c.apply(sets); err != nil {
			continue
		}
		for _, fn := range callbacks {
			fn()
		}
	}
}

func (c *config) Get(path ...string) reader.Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals == nil {
		return json.EmptyValue()
	}
	return c.vals.Get(path...)
}

func (c *config) Scan(v interface{}) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals == nil {
		return errors.New("config not loaded")
	}
	return c.vals.Scan(v)
}

func (c *config) Bytes() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals == nil {
		return []byte{}
	}
	return c.vals.Bytes()
}

func (c *config) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = append(c.onChange, fn)
	c.mu.Unlock()
}

func (c *config) Close() error {
	select {
	case <-c.exit:
		return nil
	default:
		close(c.exit)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, w := range c.watchers {
		if err := w.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.watchers = nil
	return firstErr
}
