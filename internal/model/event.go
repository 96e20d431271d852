package model

import (
	"fmt"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// RawLog 订阅收到的原始日志
type RawLog struct {
	Address     ethcommon.Address
	Topics      []ethcommon.Hash
	Data        []byte
	TxHash      ethcommon.Hash
	BlockNumber uint64
	LogIndex    uint
	Removed     bool
	ReceivedAt  time.Time
}

// NewRawLog 从 go-ethereum 日志转换
func NewRawLog(l types.Log, receivedAt time.Time) *RawLog {
	return &RawLog{
		Address:     l.Address,
		Topics:      l.Topics,
		Data:        l.Data,
		TxHash:      l.TxHash,
		BlockNumber: l.BlockNumber,
		LogIndex:    l.Index,
		Removed:     l.Removed,
		ReceivedAt:  receivedAt,
	}
}

// ID 日志唯一标识，用于日志输出与错误定位
func (r *RawLog) ID() string {
	return fmt.Sprintf("%s-%d", r.TxHash.Hex(), r.LogIndex)
}

// DedupKey 巨鲸交易去重主键。同一笔交易里池子的 Transfer 与 Swap 只记一条
func (r *RawLog) DedupKey() string {
	return r.TxHash.Hex()
}

// Topic0 事件签名
func (r *RawLog) Topic0() (ethcommon.Hash, bool) {
	if len(r.Topics) == 0 {
		return ethcommon.Hash{}, false
	}
	return r.Topics[0], true
}

type EventKind int32

const (
	TransferKind EventKind = iota + 1
	SwapKind
)

func (k EventKind) String() string {
	switch k {
	case TransferKind:
		return "transfer"
	case SwapKind:
		return "swap"
	default:
		return "unknown"
	}
}

// DecodedEvent 解码结果，只有 *TransferEvent 与 *SwapEvent 两种
type DecodedEvent interface {
	Kind() EventKind
	decodedEvent()
}

// TransferEvent ERC-20 Transfer
type TransferEvent struct {
	From  ethcommon.Address
	To    ethcommon.Address
	Value *big.Int
}

func (*TransferEvent) Kind() EventKind { return TransferKind }
func (*TransferEvent) decodedEvent()   {}

// SwapEvent DEX 成交，金额为正表示流入池子，为负表示流出
type SwapEvent struct {
	Protocol  string
	Sender    ethcommon.Address
	Recipient ethcommon.Address
	Amount0   *big.Int
	Amount1   *big.Int
}

func (*SwapEvent) Kind() EventKind { return SwapKind }
func (*SwapEvent) decodedEvent()   {}

// Leg 按池内位置取对应的带符号数量
func (s *SwapEvent) Leg(index int) *big.Int {
	if index == 1 {
		return s.Amount1
	}
	return s.Amount0
}
