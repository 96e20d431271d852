package source

import (
	"context"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ninja0404/whale-signal/internal/model"
)

// State 订阅生命周期
//
//	Stopped → Starting → Running ⇄ Reconnecting
//	任意状态 → Stopping → Stopped
type State int32

const (
	Stopped State = iota
	Starting
	Running
	Reconnecting
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Reconnecting:
		return "reconnecting"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// LogSubscriber 一条节点连接，订阅失败或断开后整体丢弃
type LogSubscriber interface {
	// SubscribeLogs 订阅指定合约与 topic0 的日志，Err 通道关闭或收到错误即视为断开
	SubscribeLogs(ctx context.Context, addresses []ethcommon.Address, topics []ethcommon.Hash, ch chan<- types.Log) (ethereum.Subscription, error)

	// Close 关闭底层连接
	Close()
}

// Dialer 建立新连接
type Dialer func(ctx context.Context) (LogSubscriber, error)

// LogSource 日志数据源
type LogSource interface {
	// Start 按监控名单建立订阅
	Start(ctx context.Context, tokens []model.WatchedToken) error

	// Stop 停止接收新日志
	Stop() error

	// Resubscribe 替换监控名单并立即重建订阅
	Resubscribe(tokens []model.WatchedToken)

	// State 当前状态
	State() State

	// Logs 原始日志流，Stop 后关闭
	Logs() <-chan *model.RawLog
}

// Observer 订阅状态与丢弃事件回调
type Observer interface {
	OnStateChange(state State)
	OnReconnect()
	OnDrop()
}

// WatchAddresses 监控名单对应的订阅地址：代币合约与其交易池，去重后按原顺序返回
func WatchAddresses(tokens []model.WatchedToken) []ethcommon.Address {
	seen := make(map[ethcommon.Address]struct{}, len(tokens)*2)
	out := make([]ethcommon.Address, 0, len(tokens)*2)
	add := func(a ethcommon.Address) {
		if a == (ethcommon.Address{}) {
			return
		}
		if _, ok := seen[a]; ok {
			return
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	for _, t := range tokens {
		add(t.TokenAddress)
		if t.HasPool() {
			add(t.PoolAddress)
		}
	}
	return out
}
