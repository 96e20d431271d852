package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/internal/common"
)

const TableNameNotificationRecord = "whale_notifications"

// NotificationRecord 通知流水，只追加不去重
type NotificationRecord struct {
	ID            string          `gorm:"column:id;primaryKey;type:varchar(26);comment:ULID" json:"id"`
	WhaleTxID     string          `gorm:"column:whale_tx_id;type:varchar(100);index;not null;comment:关联巨鲸交易" json:"whale_tx_id"`
	Symbol        string          `gorm:"column:symbol;type:varchar(32);not null;default:''" json:"symbol"`
	Action        common.Action   `gorm:"column:action;not null" json:"action"`
	AmountUSD     decimal.Decimal `gorm:"column:amount_usd;type:decimal(32,6);not null;default:0" json:"amount_usd"`
	PercentSupply decimal.Decimal `gorm:"column:percent_supply;type:decimal(20,10);not null;default:0" json:"percent_supply"`
	Summary       string          `gorm:"column:summary;type:varchar(512);not null;default:'';comment:通知摘要" json:"summary"`
	CreatedAt     time.Time       `gorm:"column:created_at;not null" json:"created_at"`
}

func (*NotificationRecord) TableName() string {
	return TableNameNotificationRecord
}
