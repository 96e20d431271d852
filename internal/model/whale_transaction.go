package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/internal/common"
)

const TableNameWhaleTransaction = "whale_transactions"

// WhaleTransaction 通过阈值过滤的巨鲸交易，写入后不再修改
type WhaleTransaction struct {
	ID           string `gorm:"column:id;primaryKey;type:varchar(100);comment:交易hash，去重主键" json:"id"`
	TxHash       string `gorm:"column:tx_hash;type:varchar(66);index:idx_tx_hash;not null;comment:交易hash" json:"tx_hash"`
	BlockNumber  uint64 `gorm:"column:block_number;not null;comment:区块高度" json:"block_number"`
	LogIndex     uint   `gorm:"column:log_index;not null;comment:日志在区块中的序号" json:"log_index"`
	TokenAddress string `gorm:"column:token_address;type:varchar(42);index:idx_token_time,priority:1;not null;comment:代币地址" json:"token_address"`
	Symbol       string `gorm:"column:symbol;type:varchar(32);not null;default:'';comment:代币符号" json:"symbol"`
	EventKind    string `gorm:"column:event_kind;type:varchar(16);not null;comment:transfer/swap" json:"event_kind"`
	FromAddress  string `gorm:"column:from_address;type:varchar(42);not null;default:'';comment:转出方或swap发起方" json:"from_address"`
	ToAddress    string `gorm:"column:to_address;type:varchar(42);not null;default:'';comment:接收方" json:"to_address"`

	Action        common.Action   `gorm:"column:action;not null;comment:0=未知, 1=买, 2=卖, 3=转账" json:"action"`
	AmountToken   decimal.Decimal `gorm:"column:amount_token;type:decimal(65,18);not null;comment:代币数量" json:"amount_token"`
	AmountUSD     decimal.Decimal `gorm:"column:amount_usd;type:decimal(32,6);not null;default:0;comment:美元价值" json:"amount_usd"`
	PriceUSD      decimal.Decimal `gorm:"column:price_usd;type:decimal(32,18);not null;default:0;comment:代币单价" json:"price_usd"`
	PriceSource   string          `gorm:"column:price_source;type:varchar(32);not null;default:'';comment:价格来源" json:"price_source"`
	PercentSupply decimal.Decimal `gorm:"column:percent_supply;type:decimal(20,10);not null;default:0;comment:占总量百分比" json:"percent_supply"`

	Timestamp time.Time  `gorm:"column:timestamp;index:idx_token_time,priority:2;not null;comment:检测时间" json:"timestamp"`
	CreatedAt *time.Time `gorm:"column:created_at;not null;autoCreateTime" json:"created_at"`
}

func (*WhaleTransaction) TableName() string {
	return TableNameWhaleTransaction
}

// ToEvent 转为下游广播事件
func (t *WhaleTransaction) ToEvent() *common.Event {
	eventType := common.WhaleTransferEventType
	if t.EventKind == SwapKind.String() {
		eventType = common.WhaleSwapEventType
	}
	return &common.Event{
		Type: eventType,
		InnerEvent: &common.WhaleEvent{
			ID:            t.ID,
			TxHash:        t.TxHash,
			BlockNumber:   t.BlockNumber,
			LogIndex:      t.LogIndex,
			TokenAddress:  t.TokenAddress,
			Symbol:        t.Symbol,
			FromAddress:   t.FromAddress,
			ToAddress:     t.ToAddress,
			Action:        t.Action,
			AmountToken:   t.AmountToken,
			AmountUSD:     t.AmountUSD,
			PriceUSD:      t.PriceUSD,
			PercentSupply: t.PercentSupply,
			PriceSource:   t.PriceSource,
			Timestamp:     t.Timestamp,
		},
	}
}
