package decoder

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/ninja0404/whale-signal/internal/model"
)

// ErrMalformedLog 签名已注册但数据无法解析
var ErrMalformedLog = errors.New("malformed log")

// DecodeFunc 把原始日志解析为具体事件
type DecodeFunc func(raw *model.RawLog) (model.DecodedEvent, error)

// EventDef 一个事件签名的解析规则
type EventDef struct {
	Name   string
	Kind   model.EventKind
	Topic  ethcommon.Hash
	Decode DecodeFunc
}

// Watchlist 判断日志来源合约是否在监控范围
type Watchlist interface {
	TokenByAddress(addr ethcommon.Address) (model.WatchedToken, bool)
	TokenByPool(addr ethcommon.Address) (model.WatchedToken, bool)
}

// Registry topic0 到解析规则的映射
type Registry struct {
	mu   sync.RWMutex
	defs map[ethcommon.Hash]EventDef
}

func NewRegistry(defs ...EventDef) *Registry {
	r := &Registry{defs: make(map[ethcommon.Hash]EventDef, len(defs))}
	for _, s := range defs {
		r.Register(s)
	}
	return r
}

// DefaultRegistry ERC-20 Transfer 以及 Uniswap V2/V3、PancakeSwap V3 的 Swap
func DefaultRegistry() *Registry {
	return NewRegistry(
		TransferDef(),
		UniswapV3SwapDef(),
		PancakeV3SwapDef(),
		UniswapV2SwapDef(),
	)
}

func (r *Registry) Register(def EventDef) {
	r.mu.Lock()
	r.defs[def.Topic] = def
	r.mu.Unlock()
}

func (r *Registry) Lookup(topic ethcommon.Hash) (EventDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.defs[topic]
	return s, ok
}

// Topics 订阅过滤用的 topic0 列表，按字节序排序保证每次订阅参数一致
func (r *Registry) Topics() []ethcommon.Hash {
	r.mu.RLock()
	topics := make([]ethcommon.Hash, 0, len(r.defs))
	for t := range r.defs {
		topics = append(topics, t)
	}
	r.mu.RUnlock()

	sort.Slice(topics, func(i, j int) bool {
		return topics[i].Cmp(topics[j]) < 0
	})
	return topics
}

// Decode 解析日志并定位所属代币。未注册的签名、非监控合约发出的日志、
// 以及被回滚的日志返回 (nil, nil, nil)
func (r *Registry) Decode(raw *model.RawLog, wl Watchlist) (model.DecodedEvent, *model.WatchedToken, error) {
	if raw == nil || raw.Removed {
		return nil, nil, nil
	}
	topic, ok := raw.Topic0()
	if !ok {
		return nil, nil, nil
	}
	def, ok := r.Lookup(topic)
	if !ok {
		return nil, nil, nil
	}

	var (
		token model.WatchedToken
		found bool
	)
	switch def.Kind {
	case model.TransferKind:
		token, found = wl.TokenByAddress(raw.Address)
	case model.SwapKind:
		token, found = wl.TokenByPool(raw.Address)
	}
	if !found {
		return nil, nil, nil
	}

	event, err := def.Decode(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: %w", def.Name, raw.ID(), err)
	}
	return event, &token, nil
}
