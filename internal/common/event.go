package common

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventType int32

const (
	WhaleTransferEventType EventType = iota + 1
	WhaleSwapEventType
)

func (e EventType) Enum() int32 {
	return int32(e)
}

func (e EventType) String() string {
	switch e {
	case WhaleTransferEventType:
		return "whale_transfer"
	case WhaleSwapEventType:
		return "whale_swap"
	default:
		return "unknown"
	}
}

// Event 下游广播的事件信封
type Event struct {
	Type       EventType  `json:"type"`
	InnerEvent InnerEvent `json:"inner_event"`
}

type InnerEvent interface {
	GetKey() string
}

// WhaleEvent 已落库的巨鲸交易摘要
type WhaleEvent struct {
	ID           string `json:"id"`
	TxHash       string `json:"tx_hash"`
	BlockNumber  uint64 `json:"block_number"`
	LogIndex     uint   `json:"log_index"`
	TokenAddress string `json:"token_address"`
	Symbol       string `json:"symbol"`
	FromAddress  string `json:"from_address"`
	ToAddress    string `json:"to_address"`

	Action        Action          `json:"action"`
	AmountToken   decimal.Decimal `json:"amount_token"`
	AmountUSD     decimal.Decimal `json:"amount_usd"`
	PriceUSD      decimal.Decimal `json:"price_usd"`
	PercentSupply decimal.Decimal `json:"percent_supply"`
	PriceSource   string          `json:"price_source"`

	Timestamp time.Time `json:"timestamp"`
}

func (e *WhaleEvent) GetKey() string {
	return e.TokenAddress
}
