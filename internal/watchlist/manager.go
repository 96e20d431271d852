package watchlist

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/pkg/logger"
)

const DefaultRefreshInterval = 5 * time.Minute

// ChangeFunc 名单变化后回调，参数为新名单
type ChangeFunc func(tokens []model.WatchedToken)

// Manager 持有当前名单快照并定期从 Catalog 刷新
type Manager struct {
	catalog  Catalog
	interval time.Duration
	current  atomic.Pointer[Snapshot]

	// refreshMu 串行化 Refresh，加载、替换快照和回调在同一把锁内完成
	refreshMu sync.Mutex

	mu       sync.Mutex
	onChange []ChangeFunc
	onTick   []func()
	cron     *cron.Cron
}

func NewManager(catalog Catalog, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	m := &Manager{catalog: catalog, interval: interval}
	m.current.Store(NewSnapshot(nil))
	return m
}

// Current 当前快照，读取无锁
func (m *Manager) Current() *Snapshot {
	return m.current.Load()
}

// OnChange 注册名单变化回调
func (m *Manager) OnChange(fn ChangeFunc) {
	m.mu.Lock()
	m.onChange = append(m.onChange, fn)
	m.mu.Unlock()
}

// OnTick 注册定时刷新后的回调，名单没变化也会触发
func (m *Manager) OnTick(fn func()) {
	m.mu.Lock()
	m.onTick = append(m.onTick, fn)
	m.mu.Unlock()
}

// Refresh 重新加载名单，内容有变化时替换快照并触发回调
func (m *Manager) Refresh(ctx context.Context) (bool, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	entries, err := m.catalog.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load watchlist from %s: %w", m.catalog.Name(), err)
	}

	next := NewSnapshot(Validate(entries))
	prev := m.current.Load()
	if prev.fingerprint() == next.fingerprint() {
		return false, nil
	}
	m.current.Store(next)

	logger.Info("📋 监控名单已更新",
		logger.String("catalog", m.catalog.Name()),
		logger.Int("before", prev.Len()),
		logger.Int("after", next.Len()))

	m.mu.Lock()
	callbacks := append([]ChangeFunc(nil), m.onChange...)
	m.mu.Unlock()
	for _, fn := range callbacks {
		fn(next.Tokens())
	}
	return true, nil
}

// Start 先同步加载一次，之后按间隔后台刷新
func (m *Manager) Start(ctx context.Context) error {
	if _, err := m.Refresh(ctx); err != nil {
		return err
	}
	if m.Current().Len() == 0 {
		logger.Warn("⚠️ 监控名单为空", logger.String("catalog", m.catalog.Name()))
	}

	l := cronLogger{}
	c := cron.New(cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)), cron.WithLogger(l))
	_, err := c.AddFunc(fmt.Sprintf("@every %s", m.interval), func() { m.tick(ctx) })
	if err != nil {
		return fmt.Errorf("schedule watchlist refresh: %w", err)
	}
	c.Start()

	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()

	logger.Info("✅ 监控名单已加载",
		logger.String("catalog", m.catalog.Name()),
		logger.Int("tokens", m.Current().Len()),
		logger.Duration("refresh_interval", m.interval))
	return nil
}

// tick 定时任务：刷新名单后执行 OnTick 回调
func (m *Manager) tick(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()
	if _, err := m.Refresh(refreshCtx); err != nil {
		logger.Error("❌ 刷新监控名单失败", logger.FieldErr(err))
	}

	m.mu.Lock()
	callbacks := append([]func(){}, m.onTick...)
	m.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

// Stop 停止定时刷新，等待正在执行的刷新结束
func (m *Manager) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// cronLogger 把 cron 日志写到 zap
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Named("cron").Sugar().Debugw(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Named("cron").Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
