package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/source"
	"github.com/ninja0404/whale-signal/pkg/clock"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/retry"
)

const (
	DefaultBufferSize     = 10_000
	DefaultReconnectDelay = 5 * time.Second
	DefaultReconnectMax   = 60 * time.Second
)

var ErrAlreadyStarted = errors.New("subscription manager already started")

// Options 订阅管理器参数
type Options struct {
	Topics     []ethcommon.Hash
	BufferSize int
	Backoff    retry.Backoff
	Clock      clock.Clock
	Observer   source.Observer
}

type stopReason int

const (
	reasonStopped stopReason = iota
	reasonResubscribe
	reasonFailure
)

// session 一次连接加一个订阅
type session struct {
	client source.LogSubscriber
	sub    ethereum.Subscription
	logs   chan types.Log
}

func (s *session) close() {
	s.sub.Unsubscribe()
	s.client.Close()
}

// Manager 维持唯一一个日志订阅，断线后按退避重连并重新订阅当前完整名单
type Manager struct {
	dial    source.Dialer
	opts    Options
	state   atomic.Int32
	logger  *logger.Logger
	resubCh chan struct{}

	mu        sync.Mutex
	addresses []ethcommon.Address
	out       chan *model.RawLog
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewManager(dial source.Dialer, opts Options) *Manager {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Backoff == nil {
		opts.Backoff = retry.Exponential(DefaultReconnectDelay, DefaultReconnectMax)
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	return &Manager{
		dial:    dial,
		opts:    opts,
		logger:  logger.Named("subscription"),
		resubCh: make(chan struct{}, 1),
		out:     make(chan *model.RawLog),
	}
}

func (m *Manager) State() source.State {
	return source.State(m.state.Load())
}

func (m *Manager) setState(s source.State) {
	if source.State(m.state.Swap(int32(s))) == s {
		return
	}
	m.logger.Info("🔄 订阅状态变更", logger.String("state", s.String()))
	if m.opts.Observer != nil {
		m.opts.Observer.OnStateChange(s)
	}
}

func (m *Manager) Logs() <-chan *model.RawLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.out
}

// Start 首次订阅同步完成，失败时直接返回错误；之后的断线都在后台重连
func (m *Manager) Start(ctx context.Context, tokens []model.WatchedToken) error {
	if !m.state.CompareAndSwap(int32(source.Stopped), int32(source.Starting)) {
		return ErrAlreadyStarted
	}
	if m.opts.Observer != nil {
		m.opts.Observer.OnStateChange(source.Starting)
	}

	select {
	case <-m.resubCh:
	default:
	}

	m.mu.Lock()
	m.addresses = source.WatchAddresses(tokens)
	m.out = make(chan *model.RawLog, m.opts.BufferSize)
	m.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	sess, err := m.open(runCtx)
	if err != nil {
		cancel()
		m.setState(source.Stopped)
		return fmt.Errorf("initial subscribe: %w", err)
	}

	done := make(chan struct{})
	m.mu.Lock()
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	m.setState(source.Running)
	go m.run(runCtx, sess, done)
	return nil
}

// Stop 等待后台协程退出，关闭 Logs 通道
func (m *Manager) Stop() error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}

	m.setState(source.Stopping)
	cancel()
	<-done
	m.setState(source.Stopped)
	return nil
}

// Resubscribe 替换名单；运行中则立即重建订阅，不走退避
func (m *Manager) Resubscribe(tokens []model.WatchedToken) {
	addresses := source.WatchAddresses(tokens)
	m.mu.Lock()
	m.addresses = addresses
	m.mu.Unlock()

	select {
	case m.resubCh <- struct{}{}:
	default:
	}
}

func (m *Manager) currentAddresses() []ethcommon.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ethcommon.Address(nil), m.addresses...)
}

func (m *Manager) open(ctx context.Context) (*session, error) {
	client, err := m.dial(ctx)
	if err != nil {
		return nil, err
	}

	addresses := m.currentAddresses()
	logs := make(chan types.Log, m.opts.BufferSize)
	sub, err := client.SubscribeLogs(ctx, addresses, m.opts.Topics, logs)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("subscribe logs: %w", err)
	}

	m.logger.Info("✅ 日志订阅已建立",
		logger.Int("addresses", len(addresses)),
		logger.Int("topics", len(m.opts.Topics)))
	return &session{client: client, sub: sub, logs: logs}, nil
}

func (m *Manager) run(ctx context.Context, sess *session, done chan struct{}) {
	m.mu.Lock()
	out := m.out
	m.mu.Unlock()

	defer func() {
		close(out)
		close(done)
	}()

	attempt := 0
	for {
		if sess == nil {
			m.setState(source.Reconnecting)
			attempt++
			delay := m.opts.Backoff(attempt)
			m.logger.Warn("⏳ 等待重连",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay))
			if err := clock.Sleep(ctx, m.opts.Clock, delay); err != nil {
				return
			}

			s, err := m.open(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				m.logger.Error("❌ 重连失败", logger.Int("attempt", attempt), logger.FieldErr(err))
				continue
			}
			sess = s
			attempt = 0
			if m.opts.Observer != nil {
				m.opts.Observer.OnReconnect()
			}
			m.setState(source.Running)
		}

		reason := m.pump(ctx, sess, out)
		// 旧订阅先拆除，再建立新的
		sess.close()
		sess = nil

		switch reason {
		case reasonStopped:
			return
		case reasonResubscribe:
			s, err := m.open(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				m.logger.Error("❌ 重新订阅失败，转入重连", logger.FieldErr(err))
				continue
			}
			sess = s
		}
	}
}

// pump 转发日志直到订阅出错、收到重订阅请求或 ctx 取消
func (m *Manager) pump(ctx context.Context, sess *session, out chan<- *model.RawLog) stopReason {
	for {
		select {
		case <-ctx.Done():
			return reasonStopped

		case <-m.resubCh:
			m.logger.Info("📋 监控名单变更，重新订阅")
			return reasonResubscribe

		case err, ok := <-sess.sub.Err():
			if !ok {
				err = errors.New("subscription closed")
			}
			m.logger.Error("❌ 日志订阅断开", logger.FieldErr(err))
			return reasonFailure

		case l, ok := <-sess.logs:
			if !ok {
				m.logger.Error("❌ 日志通道已关闭")
				return reasonFailure
			}
			m.deliver(out, model.NewRawLog(l, m.opts.Clock.Now()))
		}
	}
}

// deliver 下游积压时丢弃，不阻塞订阅
func (m *Manager) deliver(out chan<- *model.RawLog, raw *model.RawLog) {
	select {
	case out <- raw:
	default:
		m.logger.Warn("⚠️ 日志缓冲已满，丢弃",
			logger.FieldTxHash(raw.TxHash.Hex()),
			logger.Uint("log_index", raw.LogIndex))
		if m.opts.Observer != nil {
			m.opts.Observer.OnDrop()
		}
	}
}
